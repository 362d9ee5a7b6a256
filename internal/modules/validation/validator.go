package validation

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/quantfold/riskdecomp/internal/modules/alignment"
	"github.com/quantfold/riskdecomp/pkg/formulas"
)

// Validator checks risk-calculation inputs at a fixed strictness level.
// Stateless apart from configuration; safe for concurrent use.
type Validator struct {
	level      Level
	thresholds Thresholds
	log        zerolog.Logger
}

// NewValidator creates a validator for the given strictness level.
func NewValidator(level Level, log zerolog.Logger) *Validator {
	return &Validator{
		level:      level,
		thresholds: ThresholdsForLevel(level),
		log:        log.With().Str("component", "validation").Str("level", string(level)).Logger(),
	}
}

// Level returns the validator's strictness level.
func (v *Validator) Level() Level { return v.level }

// builder accumulates check outcomes into a Result.
type builder struct {
	result Result
	scores []float64
}

func newBuilder(level Level) *builder {
	return &builder{result: Result{IsValid: true, Level: level}}
}

func (b *builder) fail(score float64, message, action string) {
	b.result.IsValid = false
	b.result.Messages = append(b.result.Messages, message)
	if action != "" {
		b.result.CorrectiveActions = append(b.result.CorrectiveActions, action)
	}
	b.scores = append(b.scores, formulas.Clamp(score, 0, 1))
}

func (b *builder) warn(score float64, message string) {
	b.result.Warnings = append(b.result.Warnings, message)
	b.scores = append(b.scores, formulas.Clamp(score, 0, 1))
}

func (b *builder) pass(score float64) {
	b.scores = append(b.scores, formulas.Clamp(score, 0, 1))
}

// finish computes the overall quality score as the unweighted mean of the
// component scores and, at strict level only, rejects results below the
// minimum quality gate.
func (b *builder) finish(t Thresholds, level Level) Result {
	if len(b.scores) > 0 {
		b.result.QualityScore = stat.Mean(b.scores, nil)
	}
	if level == LevelStrict && b.result.QualityScore < t.MinQualityScore {
		b.result.IsValid = false
		b.result.Messages = append(b.result.Messages, fmt.Sprintf(
			"overall quality score %.2f is below the strict minimum %.2f",
			b.result.QualityScore, t.MinQualityScore))
		b.result.CorrectiveActions = append(b.result.CorrectiveActions,
			"improve data quality or validate at a lower strictness level")
	}
	return b.result
}

// ValidateReturnData checks an aligned return matrix: shape, observation
// count, missing-data ratio, per-strategy variance, pairwise correlations
// and covariance conditioning.
func (v *Validator) ValidateReturnData(m *alignment.AlignedReturnMatrix) Result {
	t := v.thresholds
	b := newBuilder(v.level)

	if m == nil || m.Returns == nil {
		b.fail(0, "no return data provided", "supply an aligned return matrix")
		return b.finish(t, v.level)
	}

	rows, cols := m.Returns.Dims()
	if cols != len(m.StrategyNames) || rows != len(m.Dates) || rows == 0 || cols == 0 {
		b.fail(0, fmt.Sprintf(
			"return matrix shape %dx%d does not match %d dates and %d strategy names",
			rows, cols, len(m.Dates), len(m.StrategyNames)),
			"rebuild the matrix through the aligner")
		return b.finish(t, v.level)
	}
	b.pass(1)

	if rows < t.MinObservations {
		b.fail(float64(rows)/float64(t.MinObservations),
			fmt.Sprintf("%d observations are below the minimum of %d", rows, t.MinObservations),
			fmt.Sprintf("collect at least %d aligned observations", t.MinObservations))
		if v.level != LevelPermissive {
			return b.finish(t, v.level)
		}
	} else {
		b.pass(1)
	}

	total := rows * cols
	invalid := 0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			x := m.Returns.At(i, j)
			if math.IsNaN(x) || math.IsInf(x, 0) {
				invalid++
			}
		}
	}
	missingRatio := float64(invalid) / float64(total)
	if missingRatio > t.MaxMissingRatio {
		b.fail(1-missingRatio,
			fmt.Sprintf("missing/invalid ratio %.3f exceeds the maximum %.3f", missingRatio, t.MaxMissingRatio),
			"clean or re-source the return data before retrying")
		if v.level != LevelPermissive {
			return b.finish(t, v.level)
		}
	} else {
		b.pass(1 - missingRatio)
	}

	// Variance, correlation and conditioning operate on complete rows only.
	complete := completeRows(m.Returns)
	if complete == nil {
		b.fail(0, "no complete observations remain after removing invalid entries",
			"clean or re-source the return data before retrying")
		return b.finish(t, v.level)
	}

	v.checkColumnVariances(b, complete, m.StrategyNames)
	v.checkCorrelations(b, complete, m.StrategyNames)
	v.checkReturnConditioning(b, complete)

	return b.finish(t, v.level)
}

func (v *Validator) checkColumnVariances(b *builder, data *mat.Dense, names []string) {
	t := v.thresholds
	rows, cols := data.Dims()

	degenerate := []string{}
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, data)
		if stat.Variance(col, nil) < t.MinVariance {
			degenerate = append(degenerate, names[j])
		}
	}

	if len(degenerate) == 0 {
		b.pass(1)
		return
	}

	score := 1 - float64(len(degenerate))/float64(cols)
	msg := fmt.Sprintf("strategies with near-zero variance: %v", degenerate)
	if v.level == LevelStrict {
		b.fail(score, msg, "remove constant-return strategies or extend the sample")
	} else {
		b.warn(score, msg)
	}
}

func (v *Validator) checkCorrelations(b *builder, data *mat.Dense, names []string) {
	t := v.thresholds
	rows, cols := data.Dims()
	if cols < 2 || rows < 2 {
		b.pass(1)
		return
	}

	maxAbs := 0.0
	pair := [2]string{}
	colI := make([]float64, rows)
	colJ := make([]float64, rows)
	for i := 0; i < cols; i++ {
		mat.Col(colI, i, data)
		for j := i + 1; j < cols; j++ {
			mat.Col(colJ, j, data)
			c := math.Abs(stat.Correlation(colI, colJ, nil))
			if math.IsNaN(c) {
				continue
			}
			if c > maxAbs {
				maxAbs = c
				pair = [2]string{names[i], names[j]}
			}
		}
	}

	if maxAbs <= t.MaxCorrelation {
		b.pass(1)
		return
	}

	score := formulas.Clamp((1-maxAbs)/(1-t.MaxCorrelation), 0, 1)
	msg := fmt.Sprintf("correlation %.3f between %s and %s exceeds the maximum %.2f",
		maxAbs, pair[0], pair[1], t.MaxCorrelation)
	if v.level == LevelStrict && maxAbs >= perfectCorrelation {
		b.fail(score, fmt.Sprintf("near-perfect correlation %.3f between %s and %s", maxAbs, pair[0], pair[1]),
			"merge or drop one of the duplicated strategies")
		return
	}
	b.warn(score, msg)
}

func (v *Validator) checkReturnConditioning(b *builder, data *mat.Dense) {
	t := v.thresholds
	rows, cols := data.Dims()
	if cols < 2 || rows < 3 {
		b.pass(1)
		return
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, data, nil)

	cond, ok := conditionNumber(&cov)
	if !ok {
		b.warn(0.5, "covariance conditioning could not be evaluated")
		return
	}

	if cond <= t.MaxConditionNumber {
		b.pass(1)
		return
	}

	score := formulas.Clamp(t.MaxConditionNumber/cond, 0, 1)
	msg := fmt.Sprintf("covariance condition number %.0f exceeds the maximum %.0f", cond, t.MaxConditionNumber)
	if v.level == LevelStrict {
		b.fail(score, msg, "apply shrinkage or remove nearly collinear strategies")
	} else {
		b.warn(score, msg)
	}
}

// ValidatePortfolioWeights checks a weight vector against the expected
// strategy count: shape, finiteness, sign, positive sum and concentration.
func (v *Validator) ValidatePortfolioWeights(weights []float64, numStrategies int) Result {
	t := v.thresholds
	b := newBuilder(v.level)

	if len(weights) != numStrategies {
		b.fail(0, fmt.Sprintf("got %d weights for %d strategies", len(weights), numStrategies),
			"supply exactly one weight per strategy")
		return b.finish(t, v.level)
	}
	b.pass(1)

	if !formulas.AllFinite(weights) {
		b.fail(0, "weights contain NaN or Inf values", "replace invalid weights before retrying")
		return b.finish(t, v.level)
	}
	b.pass(1)

	negative := 0
	sum := 0.0
	maxWeight := math.Inf(-1)
	for _, w := range weights {
		if w < 0 {
			negative++
		}
		sum += w
		if w > maxWeight {
			maxWeight = w
		}
	}

	if negative > 0 {
		score := 1 - float64(negative)/float64(len(weights))
		msg := fmt.Sprintf("%d negative weights present", negative)
		if v.level == LevelStrict {
			b.fail(score, msg, "long-only portfolios require non-negative weights")
		} else {
			b.warn(score, msg)
		}
	} else {
		b.pass(1)
	}

	if sum <= 0 {
		b.fail(0, fmt.Sprintf("weight sum %.4f is not positive", sum),
			"weights must sum to a positive value")
		return b.finish(t, v.level)
	}
	b.pass(1)

	share := maxWeight / sum
	switch {
	case share > concentrationHardShare && v.level == LevelStrict:
		b.fail(0, fmt.Sprintf("single-strategy concentration %.1f%% exceeds the %.0f%% hard limit",
			share*100, concentrationHardShare*100),
			"diversify the allocation before running strict validation")
	case share > concentrationWarnShare:
		b.warn(0.5, fmt.Sprintf("single-strategy concentration %.1f%% exceeds %.0f%%",
			share*100, concentrationWarnShare*100))
	default:
		b.pass(1)
	}

	return b.finish(t, v.level)
}

// ValidateCovarianceMatrix checks a covariance matrix: shape, finiteness,
// symmetry, positive definiteness, conditioning, diagonal signs and implied
// correlation bounds.
func (v *Validator) ValidateCovarianceMatrix(cov *mat.SymDense, numStrategies int) Result {
	t := v.thresholds
	b := newBuilder(v.level)

	if cov == nil {
		b.fail(0, "no covariance matrix provided", "supply a covariance matrix")
		return b.finish(t, v.level)
	}

	n := cov.SymmetricDim()
	if n != numStrategies || n == 0 {
		b.fail(0, fmt.Sprintf("covariance matrix is %dx%d, expected %dx%d", n, n, numStrategies, numStrategies),
			"rebuild the covariance matrix for the strategy set")
		return b.finish(t, v.level)
	}
	b.pass(1)

	finite := true
	for i := 0; i < n && finite; i++ {
		for j := 0; j < n; j++ {
			x := cov.At(i, j)
			if math.IsNaN(x) || math.IsInf(x, 0) {
				finite = false
				break
			}
		}
	}
	if !finite {
		b.fail(0, "covariance matrix contains NaN or Inf entries",
			"recompute the covariance from clean return data")
		return b.finish(t, v.level)
	}
	b.pass(1)

	// mat.SymDense is symmetric by construction, but an upstream copy from a
	// dense source can still carry asymmetric noise in the raw data; verify
	// against the tolerance anyway.
	asym := maxAsymmetry(cov)
	if asym > t.SymmetryTolerance {
		b.fail(0.5, fmt.Sprintf("covariance asymmetry %.2e exceeds tolerance %.0e", asym, t.SymmetryTolerance),
			"symmetrize the matrix as (A + Aᵀ)/2 before validation")
	} else {
		b.pass(1)
	}

	nonPositiveDiag := 0
	for i := 0; i < n; i++ {
		if cov.At(i, i) <= 0 {
			nonPositiveDiag++
		}
	}
	if nonPositiveDiag > 0 {
		score := 1 - float64(nonPositiveDiag)/float64(n)
		msg := fmt.Sprintf("%d non-positive diagonal entries", nonPositiveDiag)
		if v.level == LevelPermissive {
			b.warn(score, msg)
		} else {
			b.fail(score, msg, "variances on the diagonal must be positive")
		}
	} else {
		b.pass(1)
	}

	var eig mat.EigenSym
	if !eig.Factorize(cov, false) {
		b.fail(0, "eigendecomposition of the covariance matrix failed",
			"recompute the covariance from clean return data")
		return b.finish(t, v.level)
	}
	eigenvalues := eig.Values(nil)
	minEig, maxEig := eigenvalues[0], eigenvalues[0]
	for _, ev := range eigenvalues[1:] {
		minEig = math.Min(minEig, ev)
		maxEig = math.Max(maxEig, ev)
	}

	if minEig <= 0 {
		msg := fmt.Sprintf("smallest eigenvalue %.2e is not positive (matrix is not positive definite)", minEig)
		if v.level == LevelPermissive {
			b.warn(0.25, msg)
		} else {
			b.fail(0.25, msg, "apply shrinkage or add a small ridge to the diagonal")
		}
	} else {
		b.pass(1)
	}

	if minEig > 0 {
		cond := maxEig / minEig
		if cond > t.MaxConditionNumber {
			score := formulas.Clamp(t.MaxConditionNumber/cond, 0, 1)
			msg := fmt.Sprintf("condition number %.0f exceeds the maximum %.0f", cond, t.MaxConditionNumber)
			if v.level == LevelStrict {
				b.fail(score, msg, "apply shrinkage or remove nearly collinear strategies")
			} else {
				b.warn(score, msg)
			}
		} else {
			b.pass(1)
		}
	}

	badCorrelations := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			vi, vj := cov.At(i, i), cov.At(j, j)
			if vi <= 0 || vj <= 0 {
				continue
			}
			corr := cov.At(i, j) / math.Sqrt(vi*vj)
			if math.Abs(corr) > correlationNumericalBound {
				badCorrelations++
			}
		}
	}
	if badCorrelations > 0 {
		msg := fmt.Sprintf("%d implied correlations outside [-1.01, 1.01] indicate numerical corruption",
			badCorrelations)
		if v.level == LevelPermissive {
			b.warn(0.25, msg)
		} else {
			b.fail(0.25, msg, "recompute the covariance matrix at higher precision")
		}
	} else {
		b.pass(1)
	}

	return b.finish(t, v.level)
}

// ValidateRiskCalculationInputs composes the return-data, weight and
// covariance checks for a full risk-calculation request. The covariance may
// be nil when the calculator derives it from returns internally.
func (v *Validator) ValidateRiskCalculationInputs(
	m *alignment.AlignedReturnMatrix,
	weights []float64,
	cov *mat.SymDense,
) Result {
	numStrategies := 0
	if m != nil {
		numStrategies = len(m.StrategyNames)
	}

	parts := []Result{
		v.ValidateReturnData(m),
		v.ValidatePortfolioWeights(weights, numStrategies),
	}
	if cov != nil {
		parts = append(parts, v.ValidateCovarianceMatrix(cov, numStrategies))
	}

	combined := Result{IsValid: true, Level: v.level}
	scores := make([]float64, 0, len(parts))
	for _, p := range parts {
		combined.IsValid = combined.IsValid && p.IsValid
		combined.Messages = append(combined.Messages, p.Messages...)
		combined.Warnings = append(combined.Warnings, p.Warnings...)
		combined.CorrectiveActions = append(combined.CorrectiveActions, p.CorrectiveActions...)
		scores = append(scores, p.QualityScore)
	}
	combined.QualityScore = stat.Mean(scores, nil)

	v.log.Debug().
		Bool("is_valid", combined.IsValid).
		Float64("quality_score", combined.QualityScore).
		Int("failures", len(combined.Messages)).
		Int("warnings", len(combined.Warnings)).
		Msg("Validated risk calculation inputs")

	return combined
}

// completeRows returns the submatrix of rows with only finite entries, or
// nil when none remain.
func completeRows(data *mat.Dense) *mat.Dense {
	rows, cols := data.Dims()
	kept := make([]float64, 0, rows*cols)
	numKept := 0
	for i := 0; i < rows; i++ {
		finite := true
		for j := 0; j < cols; j++ {
			x := data.At(i, j)
			if math.IsNaN(x) || math.IsInf(x, 0) {
				finite = false
				break
			}
		}
		if finite {
			for j := 0; j < cols; j++ {
				kept = append(kept, data.At(i, j))
			}
			numKept++
		}
	}
	if numKept == 0 {
		return nil
	}
	return mat.NewDense(numKept, cols, kept)
}

// conditionNumber returns maxEig/minEig for a symmetric matrix, or false
// when the decomposition fails or the matrix is singular.
func conditionNumber(cov *mat.SymDense) (float64, bool) {
	var eig mat.EigenSym
	if !eig.Factorize(cov, false) {
		return 0, false
	}
	values := eig.Values(nil)
	minEig, maxEig := values[0], values[0]
	for _, ev := range values[1:] {
		minEig = math.Min(minEig, ev)
		maxEig = math.Max(maxEig, ev)
	}
	if minEig <= 0 {
		return math.Inf(1), true
	}
	return maxEig / minEig, true
}

// maxAsymmetry measures the largest |a_ij - a_ji| in the matrix's raw
// storage. For SymDense this is zero unless the backing data was corrupted.
func maxAsymmetry(cov *mat.SymDense) float64 {
	n := cov.SymmetricDim()
	maxDiff := 0.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			diff := math.Abs(cov.At(i, j) - cov.At(j, i))
			if diff > maxDiff {
				maxDiff = diff
			}
		}
	}
	return maxDiff
}

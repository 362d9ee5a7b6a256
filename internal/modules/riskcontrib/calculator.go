// Package riskcontrib decomposes portfolio variance into per-strategy risk
// contributions using the Euler (marginal-contribution) decomposition. The
// percentage contributions always sum to 1 when the portfolio variance is
// positive; the two degenerate-variance behaviors are explicit policies, not
// implementation accidents.
package riskcontrib

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/quantfold/riskdecomp/internal/modules/alignment"
)

// PctSumTolerance is the maximum accepted deviation of the percentage
// contributions from 1 before post-hoc renormalization kicks in.
const PctSumTolerance = 1e-5

// DegeneratePolicy selects the behavior when portfolio variance is zero or
// negative. Both behaviors exist in production use; callers pick one
// explicitly instead of the calculator guessing.
type DegeneratePolicy int

const (
	// DegenerateFail returns a DegenerateVarianceError.
	DegenerateFail DegeneratePolicy = iota
	// DegenerateEqualWeight logs a warning and attributes risk equally
	// across strategies.
	DegenerateEqualWeight
)

func (p DegeneratePolicy) String() string {
	if p == DegenerateEqualWeight {
		return "equal_weight"
	}
	return "fail"
}

// StrategyContribution is one strategy's share of portfolio risk.
type StrategyContribution struct {
	Weight               float64
	MarginalContribution float64
	RiskContribution     float64
	RiskContributionPct  float64
}

// Result is a full risk decomposition. Strategy order follows the input.
type Result struct {
	PortfolioVolatility float64
	PortfolioVariance   float64
	StrategyOrder       []string
	Contributions       map[string]StrategyContribution
}

// Calculator computes risk decompositions. Stateless; safe for concurrent use.
type Calculator struct {
	log zerolog.Logger
}

// NewCalculator creates a risk contribution calculator.
func NewCalculator(log zerolog.Logger) *Calculator {
	return &Calculator{log: log.With().Str("component", "risk_contrib").Logger()}
}

// Decompose computes the risk decomposition from an aligned return matrix,
// building the sample covariance internally. The historical default policy
// for this entry point is DegenerateEqualWeight.
func (c *Calculator) Decompose(
	m *alignment.AlignedReturnMatrix,
	weights []float64,
	policy DegeneratePolicy,
) (*Result, error) {
	if m == nil || m.Returns == nil {
		return nil, fmt.Errorf("no aligned return matrix provided")
	}
	if len(weights) != m.Strategies() {
		return nil, &WeightError{Reason: fmt.Sprintf(
			"got %d weights for %d strategies", len(weights), m.Strategies())}
	}

	cov := SampleCovariance(m)
	return c.DecomposeWithCovariance(cov, weights, m.StrategyNames, policy)
}

// DecomposeWithCovariance computes the risk decomposition from a supplied
// covariance matrix. The historical default policy for this entry point is
// DegenerateFail.
func (c *Calculator) DecomposeWithCovariance(
	cov *mat.SymDense,
	weights []float64,
	strategyNames []string,
	policy DegeneratePolicy,
) (*Result, error) {
	n := len(strategyNames)
	if n == 0 {
		return nil, fmt.Errorf("no strategy names provided")
	}
	if cov == nil || cov.SymmetricDim() != n {
		return nil, fmt.Errorf("covariance matrix does not match %d strategies", n)
	}
	if len(weights) != n {
		return nil, &WeightError{Reason: fmt.Sprintf("got %d weights for %d strategies", len(weights), n)}
	}

	normalized, err := normalizeWeights(weights)
	if err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			x := cov.At(i, j)
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("covariance matrix contains NaN or Inf at (%d,%d)", i, j)
			}
		}
	}

	w := mat.NewVecDense(n, normalized)

	// marginal = Σw, variance = wᵀΣw
	marginal := mat.NewVecDense(n, nil)
	marginal.MulVec(cov, w)
	variance := mat.Dot(w, marginal)

	if variance <= 0 {
		switch policy {
		case DegenerateEqualWeight:
			c.log.Warn().
				Float64("portfolio_variance", variance).
				Msg("Degenerate portfolio variance, falling back to equal-weight contributions")
			return c.equalWeightResult(strategyNames, normalized), nil
		default:
			return nil, &DegenerateVarianceError{Variance: variance}
		}
	}

	components := make([]float64, n)
	for i := 0; i < n; i++ {
		components[i] = normalized[i] * marginal.AtVec(i)
	}

	pcts := make([]float64, n)
	for i := range components {
		pcts[i] = components[i] / variance
	}

	// The Euler decomposition sums to 1 by construction; renormalize only
	// when floating-point drift pushes it past tolerance.
	sum := 0.0
	finite := true
	for _, p := range pcts {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			finite = false
			break
		}
		sum += p
	}
	if !finite || sum == 0 {
		c.log.Warn().Msg("Contribution normalization degenerated, falling back to equal weights")
		return c.equalWeightResult(strategyNames, normalized), nil
	}
	if math.Abs(sum-1) > PctSumTolerance {
		for i := range pcts {
			pcts[i] /= sum
		}
	}

	contributions := make(map[string]StrategyContribution, n)
	for i, name := range strategyNames {
		contributions[name] = StrategyContribution{
			Weight:               normalized[i],
			MarginalContribution: marginal.AtVec(i),
			RiskContribution:     components[i],
			RiskContributionPct:  pcts[i],
		}
	}

	return &Result{
		PortfolioVolatility: math.Sqrt(variance),
		PortfolioVariance:   variance,
		StrategyOrder:       append([]string(nil), strategyNames...),
		Contributions:       contributions,
	}, nil
}

// equalWeightResult attributes risk equally across strategies when the
// portfolio variance is degenerate.
func (c *Calculator) equalWeightResult(strategyNames []string, weights []float64) *Result {
	n := len(strategyNames)
	contributions := make(map[string]StrategyContribution, n)
	for i, name := range strategyNames {
		contributions[name] = StrategyContribution{
			Weight:              weights[i],
			RiskContributionPct: 1 / float64(n),
		}
	}
	return &Result{
		StrategyOrder: append([]string(nil), strategyNames...),
		Contributions: contributions,
	}
}

// normalizeWeights fails fast on NaN, Inf, negative values and non-positive
// sums, then rescales the weights to sum to 1.
func normalizeWeights(weights []float64) ([]float64, error) {
	sum := 0.0
	for i, w := range weights {
		if math.IsNaN(w) {
			return nil, &WeightError{Reason: fmt.Sprintf("weight %d is NaN", i)}
		}
		if math.IsInf(w, 0) {
			return nil, &WeightError{Reason: fmt.Sprintf("weight %d is Inf", i)}
		}
		if w < 0 {
			return nil, &WeightError{Reason: fmt.Sprintf("weight %d is negative (%.4f)", i, w)}
		}
		sum += w
	}
	if sum <= 0 {
		return nil, &WeightError{Reason: fmt.Sprintf("weight sum %.4f is not positive", sum)}
	}

	normalized := make([]float64, len(weights))
	for i, w := range weights {
		normalized[i] = w / sum
	}
	return normalized, nil
}

// SampleCovariance builds the unbiased sample covariance matrix of an
// aligned return matrix's columns.
func SampleCovariance(m *alignment.AlignedReturnMatrix) *mat.SymDense {
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, m.Returns, nil)
	return &cov
}

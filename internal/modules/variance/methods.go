package variance

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/quantfold/riskdecomp/pkg/formulas"
)

// RiskMetricsLambda is the fallback EWMA decay when the maximum-likelihood
// fit does not converge.
const RiskMetricsLambda = 0.94

// rollingInstabilityCV is the coefficient-of-variation threshold above which
// the rolling method flags variance instability.
const rollingInstabilityCV = 0.5

// bootstrapDispersionRatio is the resample-dispersion threshold (relative to
// the point estimate) above which the bootstrap method warns.
const bootstrapDispersionRatio = 0.3

// bayesianShrinkageWarn is the prior-weight share above which the bayesian
// method warns that the prior dominates the estimate.
const bayesianShrinkageWarn = 0.5

// Rolling computes the mean of variances over a sliding window. The window
// is adaptive (clamp(n/4, 10, 60)) unless overridden via Config. The CI uses
// a normal approximation on the rolling-variance series, and a coefficient
// of variation above 0.5 flags instability.
func (e *Estimator) Rolling(returns []float64) (Estimate, error) {
	if err := validateInput(MethodRolling, returns, minObsRolling); err != nil {
		return Estimate{}, err
	}

	n := len(returns)
	window := e.cfg.RollingWindow
	if window <= 0 {
		window = adaptiveWindow(n)
	}
	if window >= n {
		return Estimate{}, &EstimationError{Method: MethodRolling, Kind: ErrInsufficientData,
			Message: fmt.Sprintf("window %d must be smaller than series length %d", window, n)}
	}

	rollVars := make([]float64, 0, n-window+1)
	for start := 0; start+window <= n; start++ {
		rollVars = append(rollVars, stat.Variance(returns[start:start+window], nil))
	}

	point := stat.Mean(rollVars, nil)
	sd := 0.0
	if len(rollVars) > 1 {
		sd = stat.StdDev(rollVars, nil)
	}

	var warnings []string
	if point > 0 && sd/point > rollingInstabilityCV {
		warnings = append(warnings, fmt.Sprintf(
			"rolling variance is unstable: coefficient of variation %.2f exceeds %.1f",
			sd/point, rollingInstabilityCV))
	}

	// Normal approximation on the mean of the rolling-variance series.
	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(1 - (1-e.cfg.Confidence)/2)
	se := sd / math.Sqrt(float64(len(rollVars)))
	low := math.Max(0, point-z*se)
	high := point + z*se

	return Estimate{
		Value:            point,
		CILow:            low,
		CIHigh:           high,
		Method:           MethodRolling,
		QualityScore:     e.QualityScore(returns),
		ObservationsUsed: n,
		Warnings:         warnings,
	}, nil
}

// EWMA computes the exponentially weighted variance. The decay lambda is
// taken from Config or fit by maximizing the Gaussian log-likelihood of the
// returns under the EWMA variance path, with a bounded search over
// [0.01, 0.99] and a fallback to the RiskMetrics default 0.94. The CI uses a
// chi-squared approximation on the effective sample size 2/(1-lambda).
func (e *Estimator) EWMA(returns []float64) (Estimate, error) {
	if err := validateInput(MethodEWMA, returns, minObsEWMA); err != nil {
		return Estimate{}, err
	}

	var warnings []string
	lambda := e.cfg.Lambda
	if lambda <= 0 || lambda >= 1 {
		fitted, ok := fitEWMALambda(returns)
		if ok {
			lambda = fitted
		} else {
			lambda = RiskMetricsLambda
			warnings = append(warnings,
				"ewma decay fit did not converge, using RiskMetrics default 0.94")
			e.log.Debug().Msg("EWMA lambda fit failed to converge, using default")
		}
	}

	v := ewmaVariance(returns, lambda)
	ess := 2 / (1 - lambda)
	low, high := chiSquaredInterval(v, ess, e.cfg.Confidence)

	return Estimate{
		Value:                 v,
		CILow:                 low,
		CIHigh:                high,
		Method:                MethodEWMA,
		QualityScore:          e.QualityScore(returns),
		ObservationsUsed:      len(returns),
		EffectiveObservations: ess,
		Warnings:              warnings,
	}, nil
}

// ewmaVariance runs the RiskMetrics recursion seeded with the sample
// variance and returns the final variance state after consuming the series.
func ewmaVariance(returns []float64, lambda float64) float64 {
	v := stat.Variance(returns, nil)
	if v <= 0 {
		v = returns[0] * returns[0]
	}
	for _, r := range returns {
		v = lambda*v + (1-lambda)*r*r
	}
	return v
}

// ewmaNegLogLikelihood evaluates the negative Gaussian log-likelihood of the
// returns under the EWMA variance path for a given lambda.
func ewmaNegLogLikelihood(returns []float64, lambda float64) float64 {
	v := stat.Variance(returns, nil)
	if v <= 0 {
		v = returns[0]*returns[0] + 1e-12
	}

	ll := 0.0
	for _, r := range returns {
		if v <= 0 {
			return math.Inf(1)
		}
		ll += -0.5 * (math.Log(2*math.Pi) + math.Log(v) + r*r/v)
		v = lambda*v + (1-lambda)*r*r
	}
	return -ll
}

// fitEWMALambda maximizes the likelihood over lambda in [0.01, 0.99] using a
// logit reparameterization so the gonum optimizer can search unconstrained.
func fitEWMALambda(returns []float64) (float64, bool) {
	const lo, hi = 0.01, 0.99

	toLambda := func(x float64) float64 {
		return lo + (hi-lo)/(1+math.Exp(-x))
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return ewmaNegLogLikelihood(returns, toLambda(x[0]))
		},
	}

	// Start at the RiskMetrics default.
	x0 := -math.Log((hi-lo)/(RiskMetricsLambda-lo) - 1)

	result, err := optimize.Minimize(problem, []float64{x0}, nil, &optimize.NelderMead{})
	if err != nil {
		return 0, false
	}
	if err := result.Status.Err(); err != nil {
		return 0, false
	}

	lambda := toLambda(result.X[0])
	if math.IsNaN(lambda) || lambda < lo || lambda > hi {
		return 0, false
	}
	return lambda, true
}

// Bootstrap estimates variance by resampling the series with replacement
// (resample size n). The point estimate is the mean of the resample
// variances and the CI is the empirical percentile interval. The seed is
// fixed in Config so repeated calls on the same series are identical.
func (e *Estimator) Bootstrap(returns []float64) (Estimate, error) {
	if err := validateInput(MethodBootstrap, returns, minObsBootstrap); err != nil {
		return Estimate{}, err
	}

	n := len(returns)
	rng := rand.New(rand.NewSource(e.cfg.BootstrapSeed))

	resampleVars := make([]float64, e.cfg.BootstrapResamples)
	resample := make([]float64, n)
	for b := range resampleVars {
		for i := range resample {
			resample[i] = returns[rng.Intn(n)]
		}
		resampleVars[b] = stat.Variance(resample, nil)
	}

	point := stat.Mean(resampleVars, nil)
	sd := stat.StdDev(resampleVars, nil)

	var warnings []string
	if point > 0 && sd > bootstrapDispersionRatio*point {
		warnings = append(warnings, fmt.Sprintf(
			"bootstrap variance dispersion %.2g exceeds 30%% of the point estimate %.2g", sd, point))
	}

	sorted := make([]float64, len(resampleVars))
	copy(sorted, resampleVars)
	sort.Float64s(sorted)

	alpha := 1 - e.cfg.Confidence
	low := formulas.Percentile(sorted, alpha/2*100)
	high := formulas.Percentile(sorted, (1-alpha/2)*100)

	return Estimate{
		Value:            point,
		CILow:            low,
		CIHigh:           high,
		Method:           MethodBootstrap,
		QualityScore:     e.QualityScore(returns),
		ObservationsUsed: n,
		Warnings:         warnings,
	}, nil
}

// Bayesian shrinks the sample variance toward a prior (default 0.0004,
// roughly 20% annualized vol) with a prior weight of max(1, 252/n)
// pseudo-observations. The posterior is the precision-weighted average and
// the CI uses a chi-squared on the posterior degrees of freedom.
func (e *Estimator) Bayesian(returns []float64) (Estimate, error) {
	if err := validateInput(MethodBayesian, returns, minObsBayesian); err != nil {
		return Estimate{}, err
	}

	n := len(returns)
	sampleVar := stat.Variance(returns, nil)

	priorWeight := math.Max(1, 252/float64(n))
	sampleDF := float64(n - 1)
	posteriorDF := priorWeight + sampleDF
	posteriorVar := (priorWeight*e.cfg.PriorVariance + sampleDF*sampleVar) / posteriorDF

	shrinkage := priorWeight / posteriorDF
	var warnings []string
	if shrinkage > bayesianShrinkageWarn {
		warnings = append(warnings, fmt.Sprintf(
			"prior dominates the estimate: shrinkage %.2f exceeds %.1f", shrinkage, bayesianShrinkageWarn))
	}

	low, high := chiSquaredInterval(posteriorVar, posteriorDF, e.cfg.Confidence)

	return Estimate{
		Value:                 posteriorVar,
		CILow:                 low,
		CIHigh:                high,
		Method:                MethodBayesian,
		QualityScore:          e.QualityScore(returns),
		ObservationsUsed:      n,
		EffectiveObservations: posteriorDF,
		Warnings:              warnings,
	}, nil
}

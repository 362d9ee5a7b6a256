// Package variance estimates the variance of a single return series using
// one of five methods, each with a confidence interval, minimum-observation
// requirement and data-quality score. Estimations are independent per
// series: a failure for one strategy never aborts sibling estimations.
package variance

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/quantfold/riskdecomp/pkg/formulas"
)

// Method identifies a variance estimation method.
type Method string

const (
	MethodSample    Method = "sample"
	MethodRolling   Method = "rolling"
	MethodEWMA      Method = "ewma"
	MethodBootstrap Method = "bootstrap"
	MethodBayesian  Method = "bayesian"
)

// AllMethods lists every supported method in selection-fallback order.
var AllMethods = []Method{MethodSample, MethodRolling, MethodEWMA, MethodBootstrap, MethodBayesian}

// Minimum observation counts per method.
const (
	minObsSample    = 2
	minObsRolling   = 10
	minObsEWMA      = 5
	minObsBootstrap = 30
	minObsBayesian  = 20
)

// Estimate is a point variance estimate with its confidence interval,
// quality score and any method-specific warnings. Consumed, never mutated.
type Estimate struct {
	Value                 float64
	CILow                 float64
	CIHigh                float64
	Method                Method
	QualityScore          float64
	ObservationsUsed      int
	EffectiveObservations float64 // 0 when the method has no effective-n notion
	Warnings              []string
}

// Config holds estimator tuning. Zero values select the documented defaults.
type Config struct {
	Confidence         float64 // CI confidence level, default 0.95
	RollingWindow      int     // 0 = adaptive clamp(n/4, 10, 60)
	Lambda             float64 // 0 = fit by maximum likelihood
	BootstrapResamples int     // default 1000
	BootstrapSeed      int64   // default 42
	PriorVariance      float64 // bayesian prior, default 0.0004 (~20% annualized vol)
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Confidence:         0.95,
		BootstrapResamples: 1000,
		BootstrapSeed:      42,
		PriorVariance:      0.0004,
	}
}

func (c Config) withDefaults() Config {
	if c.Confidence <= 0 || c.Confidence >= 1 {
		c.Confidence = 0.95
	}
	if c.BootstrapResamples <= 0 {
		c.BootstrapResamples = 1000
	}
	if c.BootstrapSeed == 0 {
		c.BootstrapSeed = 42
	}
	if c.PriorVariance <= 0 {
		c.PriorVariance = 0.0004
	}
	return c
}

// Estimator produces variance estimates for return series. Stateless apart
// from configuration; safe for concurrent use across strategies.
type Estimator struct {
	cfg Config
	log zerolog.Logger
}

// NewEstimator creates an estimator with the given configuration.
func NewEstimator(cfg Config, log zerolog.Logger) *Estimator {
	return &Estimator{
		cfg: cfg.withDefaults(),
		log: log.With().Str("component", "variance").Logger(),
	}
}

// Estimate dispatches to the named method.
func (e *Estimator) Estimate(returns []float64, method Method) (Estimate, error) {
	switch method {
	case MethodSample:
		return e.Sample(returns)
	case MethodRolling:
		return e.Rolling(returns)
	case MethodEWMA:
		return e.EWMA(returns)
	case MethodBootstrap:
		return e.Bootstrap(returns)
	case MethodBayesian:
		return e.Bayesian(returns)
	default:
		return Estimate{}, &EstimationError{Method: method, Kind: ErrUnknownMethod,
			Message: fmt.Sprintf("unknown estimation method %q", method)}
	}
}

// Sample computes the unbiased sample variance (n-1 denominator) with a
// chi-squared confidence interval on n-1 degrees of freedom.
func (e *Estimator) Sample(returns []float64) (Estimate, error) {
	if err := validateInput(MethodSample, returns, minObsSample); err != nil {
		return Estimate{}, err
	}

	n := len(returns)
	v := stat.Variance(returns, nil)
	low, high := chiSquaredInterval(v, float64(n-1), e.cfg.Confidence)

	return Estimate{
		Value:            v,
		CILow:            low,
		CIHigh:           high,
		Method:           MethodSample,
		QualityScore:     e.QualityScore(returns),
		ObservationsUsed: n,
	}, nil
}

// validateInput rejects series that are too short, contain NaN/Inf, or are
// identically zero. Failures are scoped to this single estimation.
func validateInput(method Method, returns []float64, minObs int) error {
	if len(returns) < minObs {
		return &EstimationError{Method: method, Kind: ErrInsufficientData,
			Message: fmt.Sprintf("%s requires at least %d observations, got %d", method, minObs, len(returns))}
	}
	if !formulas.AllFinite(returns) {
		return &EstimationError{Method: method, Kind: ErrInvalidInput,
			Message: "returns contain NaN or Inf values"}
	}
	allZero := true
	for _, r := range returns {
		if r != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return &EstimationError{Method: method, Kind: ErrInvalidInput,
			Message: "returns are identically zero"}
	}
	return nil
}

// chiSquaredInterval returns the two-sided confidence interval for a
// variance estimate v with df degrees of freedom: df*v/χ² at the upper and
// lower quantiles. df may be fractional (effective sample sizes).
func chiSquaredInterval(v, df, confidence float64) (low, high float64) {
	if v <= 0 || df <= 0 {
		return 0, 0
	}
	alpha := 1 - confidence
	dist := distuv.ChiSquared{K: df}
	upperQ := dist.Quantile(1 - alpha/2)
	lowerQ := dist.Quantile(alpha / 2)
	if upperQ <= 0 || lowerQ <= 0 {
		return 0, math.Inf(1)
	}
	return df * v / upperQ, df * v / lowerQ
}

// adaptiveWindow returns clamp(n/4, 10, 60).
func adaptiveWindow(n int) int {
	w := n / 4
	if w < 10 {
		w = 10
	}
	if w > 60 {
		w = 60
	}
	return w
}

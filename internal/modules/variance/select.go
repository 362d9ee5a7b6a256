package variance

import "fmt"

// selection thresholds for the automatic method decision table.
const (
	selectSmallSample  = 30
	selectMediumSample = 100
	selectHighQuality  = 0.7
)

// minObservationsFor returns the minimum observation requirement of a method.
func minObservationsFor(method Method) int {
	switch method {
	case MethodSample:
		return minObsSample
	case MethodRolling:
		return minObsRolling
	case MethodEWMA:
		return minObsEWMA
	case MethodBootstrap:
		return minObsBootstrap
	case MethodBayesian:
		return minObsBayesian
	default:
		return 0
	}
}

// SelectBest picks an estimator via a deterministic decision table and runs
// it. Preference by sample size:
//
//	n < 30:        bootstrap, then bayesian
//	30 <= n < 100: ewma, then bayesian
//	n >= 100:      sample when the quality score exceeds 0.7, otherwise
//	               rolling, then ewma
//
// A preferred method whose minimum-observation requirement is unmet falls
// through to the next applicable candidate. Candidates outside the
// preference table are tried last, in the given order. When no candidate is
// applicable the call fails.
func (e *Estimator) SelectBest(returns []float64, candidates []Method) (Estimate, error) {
	if len(candidates) == 0 {
		candidates = AllMethods
	}

	n := len(returns)

	var preferred []Method
	switch {
	case n < selectSmallSample:
		preferred = []Method{MethodBootstrap, MethodBayesian}
	case n < selectMediumSample:
		preferred = []Method{MethodEWMA, MethodBayesian}
	default:
		if e.QualityScore(returns) > selectHighQuality {
			preferred = []Method{MethodSample, MethodRolling, MethodEWMA}
		} else {
			preferred = []Method{MethodRolling, MethodEWMA, MethodSample}
		}
	}

	candidateSet := make(map[Method]bool, len(candidates))
	for _, m := range candidates {
		candidateSet[m] = true
	}

	tried := make(map[Method]bool, len(candidates))
	order := make([]Method, 0, len(candidates))
	for _, m := range preferred {
		if candidateSet[m] && !tried[m] {
			order = append(order, m)
			tried[m] = true
		}
	}
	for _, m := range candidates {
		if !tried[m] {
			order = append(order, m)
			tried[m] = true
		}
	}

	for _, m := range order {
		if n < minObservationsFor(m) {
			continue
		}
		est, err := e.Estimate(returns, m)
		if err != nil {
			// An applicable method can still reject the input (NaN, all-zero
			// or an unknown candidate name); surface that instead of masking
			// it with a fall-through.
			return Estimate{}, err
		}
		e.log.Debug().
			Str("method", string(m)).
			Int("observations", n).
			Float64("variance", est.Value).
			Msg("Selected variance estimator")
		return est, nil
	}

	return Estimate{}, &EstimationError{Kind: ErrNoApplicableMethod,
		Message: fmt.Sprintf("no candidate method is applicable to %d observations", n)}
}

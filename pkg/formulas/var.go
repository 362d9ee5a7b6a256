package formulas

import (
	"math"
	"sort"
)

// VaR calculates historical Value-at-Risk at the given confidence level
// (e.g. 0.95). The result is the return at the (1-confidence) percentile of
// the distribution, so losses come back negative.
func VaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	return Percentile(returns, (1-confidence)*100)
}

// CVaR calculates Conditional Value-at-Risk (expected shortfall) at the
// given confidence level: the mean of the returns at or below the VaR
// threshold.
func CVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	if len(returns) == 1 {
		return returns[0]
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	// The epsilon keeps float drift in 1-confidence (e.g. 0.95 -> 0.050000...044)
	// from pushing an exact tail boundary over the next integer.
	tailProbability := 1 - confidence
	tailCount := int(math.Ceil(float64(len(sorted))*tailProbability - 1e-9))
	if tailCount == 0 {
		tailCount = 1
	}
	if tailCount > len(sorted) {
		tailCount = len(sorted)
	}

	sum := 0.0
	for _, r := range sorted[:tailCount] {
		sum += r
	}
	return sum / float64(tailCount)
}

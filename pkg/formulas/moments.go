package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Skewness calculates the bias-corrected third standardized moment
// (adjusted Fisher-Pearson coefficient). Requires at least 3 observations
// and non-zero variance; degenerate inputs return 0.
func Skewness(data []float64) float64 {
	n := float64(len(data))
	if n < 3 {
		return 0
	}

	mean := stat.Mean(data, nil)
	sd := stat.StdDev(data, nil)
	if sd == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range data {
		z := (v - mean) / sd
		sum += z * z * z
	}
	return n / ((n - 1) * (n - 2)) * sum
}

// ExcessKurtosis calculates the fourth standardized moment minus 3.
// Requires at least 4 observations and non-zero variance; degenerate inputs
// return 0.
func ExcessKurtosis(data []float64) float64 {
	n := float64(len(data))
	if n < 4 {
		return 0
	}

	mean := stat.Mean(data, nil)
	variance := stat.Variance(data, nil)
	if variance == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range data {
		d := v - mean
		sum += d * d * d * d
	}
	// Population fourth moment over squared population-style variance, minus 3.
	m4 := sum / n
	m2 := variance * (n - 1) / n
	if m2 == 0 {
		return 0
	}
	return m4/(m2*m2) - 3
}

// Percentile returns the p-th percentile (p in [0, 100]) of the data using
// linear interpolation between closest ranks. Empty input returns 0.
func Percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	if len(data) == 1 {
		return data[0]
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

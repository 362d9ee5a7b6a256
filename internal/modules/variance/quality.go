package variance

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/quantfold/riskdecomp/pkg/formulas"
)

// Quality-score component weights. They must sum to 1.
const (
	weightSampleSize   = 0.30
	weightCompleteness = 0.20
	weightVariance     = 0.20
	weightKurtosis     = 0.15
	weightStationarity = 0.15
)

// qualityFullSample is the observation count at which the sample-size
// component saturates (one trading year).
const qualityFullSample = 252

// QualityScore blends five data-quality components into a [0,1] score:
// sample-size adequacy, completeness, non-zero variance, an excess-kurtosis
// penalty and a stationarity proxy from rolling-variance dispersion.
func (e *Estimator) QualityScore(returns []float64) float64 {
	n := len(returns)
	if n == 0 {
		return 0
	}

	sizeScore := math.Min(1, float64(n)/qualityFullSample)

	finite := 0
	for _, r := range returns {
		if !math.IsNaN(r) && !math.IsInf(r, 0) {
			finite++
		}
	}
	completeness := float64(finite) / float64(n)

	clean := make([]float64, 0, n)
	for _, r := range returns {
		if !math.IsNaN(r) && !math.IsInf(r, 0) {
			clean = append(clean, r)
		}
	}

	varianceScore := 0.0
	if len(clean) >= 2 && stat.Variance(clean, nil) > 0 {
		varianceScore = 1.0
	}

	kurtScore := 1.0
	if len(clean) >= 4 {
		excess := formulas.ExcessKurtosis(clean)
		// Heavy tails erode confidence in second-moment estimates. An excess
		// kurtosis of 10 zeroes the component.
		kurtScore = formulas.Clamp(1-math.Max(0, excess)/10, 0, 1)
	}

	stationarity := 0.5
	if len(clean) >= 2*minObsRolling {
		window := adaptiveWindow(len(clean))
		rollVars := make([]float64, 0, len(clean)-window+1)
		for start := 0; start+window <= len(clean); start++ {
			rollVars = append(rollVars, stat.Variance(clean[start:start+window], nil))
		}
		mean := stat.Mean(rollVars, nil)
		if mean > 0 && len(rollVars) > 1 {
			cv := stat.StdDev(rollVars, nil) / mean
			stationarity = formulas.Clamp(1-cv, 0, 1)
		}
	}

	return weightSampleSize*sizeScore +
		weightCompleteness*completeness +
		weightVariance*varianceScore +
		weightKurtosis*kurtScore +
		weightStationarity*stationarity
}

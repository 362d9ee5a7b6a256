package riskcontrib

import "fmt"

// WeightError reports an invalid weight vector: NaN, Inf, negative entries
// or a non-positive sum. Always fatal.
type WeightError struct {
	Reason string
}

func (e *WeightError) Error() string {
	return fmt.Sprintf("invalid portfolio weights: %s", e.Reason)
}

// DegenerateVarianceError reports a zero or negative portfolio variance
// under the DegenerateFail policy.
type DegenerateVarianceError struct {
	Variance float64
}

func (e *DegenerateVarianceError) Error() string {
	return fmt.Sprintf("portfolio variance %.6g is not positive", e.Variance)
}

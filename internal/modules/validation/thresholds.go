// Package validation gates risk-calculation inputs. It validates aligned
// return matrices, weight vectors and covariance matrices against a
// per-level threshold table and reports structured results. Validators never
// return errors: failure is signalled via Result.IsValid plus Messages, and
// the reject-or-proceed decision stays with the caller.
package validation

// Level selects the strictness of the validation gate.
type Level string

const (
	LevelStrict     Level = "strict"
	LevelModerate   Level = "moderate"
	LevelPermissive Level = "permissive"
)

// Thresholds is the explicit configuration for one strictness level. Every
// recognized option and its default lives here; there is no free-form
// configuration map.
type Thresholds struct {
	MinObservations    int
	MinVariance        float64
	MaxCorrelation     float64
	MaxConditionNumber float64
	MinQualityScore    float64
	MaxMissingRatio    float64
	SymmetryTolerance  float64
}

// Weight-concentration limits shared by all levels. A single strategy above
// the warning share draws a warning; above the hard limit it is a failure at
// strict.
const (
	concentrationWarnShare = 0.80
	concentrationHardShare = 0.95
)

// perfectCorrelation is the hard-fail bound at strict level.
const perfectCorrelation = 0.99

// correlationNumericalBound flags implied correlations that exceed 1 by more
// than numerical noise allows.
const correlationNumericalBound = 1.01

// ThresholdsForLevel returns the threshold table for a strictness level.
// Unknown levels fall back to moderate.
func ThresholdsForLevel(level Level) Thresholds {
	switch level {
	case LevelStrict:
		return Thresholds{
			MinObservations:    30,
			MinVariance:        1e-8,
			MaxCorrelation:     0.95,
			MaxConditionNumber: 1000,
			MinQualityScore:    0.7,
			MaxMissingRatio:    0.05,
			SymmetryTolerance:  1e-10,
		}
	case LevelPermissive:
		return Thresholds{
			MinObservations:    10,
			MinVariance:        1e-12,
			MaxCorrelation:     0.99,
			MaxConditionNumber: 10000,
			MinQualityScore:    0.3,
			MaxMissingRatio:    0.2,
			SymmetryTolerance:  1e-8,
		}
	default:
		return Thresholds{
			MinObservations:    20,
			MinVariance:        1e-10,
			MaxCorrelation:     0.98,
			MaxConditionNumber: 5000,
			MinQualityScore:    0.5,
			MaxMissingRatio:    0.1,
			SymmetryTolerance:  1e-9,
		}
	}
}

// Result is the outcome of validating one object. Messages are failures,
// Warnings are non-fatal observations, CorrectiveActions tell the caller how
// to repair a rejected input.
type Result struct {
	IsValid           bool
	Level             Level
	Messages          []string
	Warnings          []string
	QualityScore      float64
	CorrectiveActions []string
}

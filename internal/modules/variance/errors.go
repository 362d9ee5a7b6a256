package variance

import "fmt"

// ErrorKind classifies estimation failures.
type ErrorKind int

const (
	// ErrInsufficientData means the series is shorter than the method's
	// minimum observation requirement.
	ErrInsufficientData ErrorKind = iota
	// ErrInvalidInput means the series contains NaN/Inf or is all-zero.
	ErrInvalidInput
	// ErrUnknownMethod means the requested method name is not recognized.
	ErrUnknownMethod
	// ErrNoApplicableMethod means automatic selection found no candidate
	// whose requirements the series meets.
	ErrNoApplicableMethod
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInsufficientData:
		return "insufficient_data"
	case ErrInvalidInput:
		return "invalid_input"
	case ErrUnknownMethod:
		return "unknown_method"
	case ErrNoApplicableMethod:
		return "no_applicable_method"
	default:
		return "unknown"
	}
}

// EstimationError is a fatal, single-estimation failure. It never aborts
// sibling estimations for other strategies.
type EstimationError struct {
	Method  Method
	Kind    ErrorKind
	Message string
}

func (e *EstimationError) Error() string {
	return fmt.Sprintf("variance estimation failed (%s, %s): %s", e.Method, e.Kind, e.Message)
}

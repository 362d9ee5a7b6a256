package alignment

import "fmt"

// ErrorKind classifies alignment failures. All of them are fatal to the
// request that triggered them.
type ErrorKind int

const (
	// ErrInsufficientObservations means the common-date intersection is
	// smaller than the configured minimum.
	ErrInsufficientObservations ErrorKind = iota
	// ErrDuplicateStrategy means two input series share a strategy ID. This
	// is a configuration error, never silently deduplicated.
	ErrDuplicateStrategy
	// ErrMisalignedDates means a series has duplicate or non-increasing
	// dates, or a join produced an unexpected length.
	ErrMisalignedDates
	// ErrMissingData means a series is empty or has mismatched lengths.
	ErrMissingData
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInsufficientObservations:
		return "insufficient_observations"
	case ErrDuplicateStrategy:
		return "duplicate_strategy"
	case ErrMisalignedDates:
		return "misaligned_dates"
	case ErrMissingData:
		return "missing_data"
	default:
		return "unknown"
	}
}

// Error is a data-alignment failure.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("alignment error (%s): %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

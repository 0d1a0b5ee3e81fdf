package cluster

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures so callers can react without matching messages.
type Kind int

const (
	// KindComputation is any numeric failure that invalidates the whole request.
	KindComputation Kind = iota
	// KindInputEmpty means no image survived extraction and filtering.
	KindInputEmpty
	// KindExtraction is a per-image decode or no-face failure.
	KindExtraction
	// KindDegenerate is a zero-norm vector or centroid.
	KindDegenerate
)

func (k Kind) String() string {
	switch k {
	case KindInputEmpty:
		return "input_empty"
	case KindExtraction:
		return "extraction"
	case KindDegenerate:
		return "degenerate"
	default:
		return "computation"
	}
}

var (
	ErrNoValidInput       = errors.New("no valid input")
	ErrNoDominantCluster  = errors.New("no dominant cluster could be established")
	ErrDegenerateVector   = errors.New("degenerate vector")
	ErrDegenerateCentroid = errors.New("centroid is the zero vector")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
	ErrProjection         = errors.New("principal component decomposition failed")
	ErrInvalidParams      = errors.New("invalid parameters")
)

// Error is a pipeline failure tagged with its Kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain.
// Errors that did not originate in the pipeline are reported as KindComputation.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindComputation
}

package prodcon

import (
	"errors"
	"fmt"
)

// Error kinds, one per failure class of the pipeline.
var (
	ErrFormat               = errors.New("format error")
	ErrCodec                = errors.New("codec error")
	ErrSigning              = errors.New("signing error")
	ErrScheduling           = errors.New("scheduling error")
	ErrTransactionRejected  = errors.New("transaction rejected")
	ErrNoStateChange        = errors.New("no state change")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrResultShape          = errors.New("unexpected execution result shape")
	ErrStateStore           = errors.New("state store error")
)

// ErrExecutionTimeout is the cause of a scheduling error when the
// execution result did not arrive in time.
var ErrExecutionTimeout = errors.New("execution timed out")

// Error is a pipeline failure: the kind, the operation that failed
// and the underlying cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	switch {
	case e.Op == "" && e.Err == nil:
		return e.Kind.Error()
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	case e.Op == "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Err)
	}
}

// Unwrap makes errors.Is match both the kind and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func schedulingError(op string, err error) error {
	return &Error{Kind: ErrScheduling, Op: op, Err: err}
}

package batch

import (
	"errors"
	"fmt"
)

// OpErrorCode categorizes operation failures.
type OpErrorCode string

const (
	// ErrCodeNotFound indicates an update or delete targeted a missing key.
	ErrCodeNotFound OpErrorCode = "NOT_FOUND"

	// ErrCodeDispatchFailed indicates the repository or handler returned an error.
	ErrCodeDispatchFailed OpErrorCode = "DISPATCH_FAILED"

	// ErrCodeUnknownHandler indicates a custom operation named an unregistered handler.
	ErrCodeUnknownHandler OpErrorCode = "UNKNOWN_HANDLER"

	// ErrCodePanic indicates the repository or handler panicked.
	ErrCodePanic OpErrorCode = "PANIC"

	// ErrCodePageFailed indicates the whole page failed at the session level.
	ErrCodePageFailed OpErrorCode = "PAGE_FAILED"
)

// OpError describes why a queued operation failed.
type OpError struct {
	Code OpErrorCode

	// Op is the operation that failed.
	Op Operation

	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.Code, e.Message, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Op)
}

// Unwrap returns the underlying error.
func (e *OpError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a not-found operation error.
func IsNotFound(err error) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Code == ErrCodeNotFound
	}
	return false
}

// IsPageError reports whether err is a page-level failure.
func IsPageError(err error) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Code == ErrCodePageFailed
	}
	return false
}

func newNotFoundError(op Operation) *OpError {
	return &OpError{
		Code:    ErrCodeNotFound,
		Op:      op,
		Message: fmt.Sprintf("%s %v not found", op.EntityName(), op.Key),
	}
}

func newDispatchError(op Operation, err error) *OpError {
	return &OpError{
		Code:    ErrCodeDispatchFailed,
		Op:      op,
		Message: fmt.Sprintf("%s failed", op.Kind),
		Err:     err,
	}
}

func newPageError(op Operation, err error) *OpError {
	return &OpError{
		Code:    ErrCodePageFailed,
		Op:      op,
		Message: "page failed",
		Err:     err,
	}
}

// UsageError is returned synchronously when an operation is malformed
// (unknown kind, missing entity, key, or handler name). Nothing is queued.
type UsageError struct {
	Kind   Kind
	Reason string
}

// Error implements the error interface.
func (e *UsageError) Error() string {
	return fmt.Sprintf("invalid %s operation: %s", e.Kind, e.Reason)
}

// FailedOperation is one entry in the error queue.
type FailedOperation struct {
	Operation Operation
	Message   string
	Err       error
}

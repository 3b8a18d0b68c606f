// Package cerrors defines the engine's closed set of error kinds
// (spec.md §7). Each kind wraps an OperationError carrying the failed
// operation, the component that failed, the resource involved, and the
// underlying cause, in the shape the teacher's pkg/shared/errors uses.
package cerrors

import (
	"errors"
	"fmt"
)

// Kind is one of the fixed error kinds spec.md §7 names.
type Kind string

const (
	KindInvalidAlert         Kind = "InvalidAlert"
	KindUnknownRunbook       Kind = "UnknownRunbook"
	KindLockBusy             Kind = "LockBusy"
	KindToolNotAllowed       Kind = "ToolNotAllowed"
	KindOwnerResolutionFailed Kind = "OwnerResolutionFailed"
	KindAmbiguousContainer   Kind = "AmbiguousContainer"
	KindClusterAPIError      Kind = "ClusterAPIError"
	KindLLMError             Kind = "LLMError"
	KindDBError              Kind = "DBError"
	KindCancelled            Kind = "Cancelled"
	KindTimeout              Kind = "Timeout"
	KindPolicyDenied         Kind = "PolicyDenied"
)

// OperationError is the engine-wide error shape: an operation that failed,
// optionally scoped to a component and a resource, wrapping a cause.
type OperationError struct {
	Kind      Kind
	Operation string
	Component string
	Resource  string
	Retryable bool
	Cause     error
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("%s: failed to %s", e.Kind, e.Operation)
	if e.Component != "" {
		msg += fmt.Sprintf(", component: %s", e.Component)
	}
	if e.Resource != "" {
		msg += fmt.Sprintf(", resource: %s", e.Resource)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(", cause: %s", e.Cause)
	}
	return msg
}

func (e *OperationError) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, cerrors.KindX) style kind checks via a sentinel
// comparator: errors.Is(err, &OperationError{Kind: KindX}) matches any
// OperationError of that kind regardless of operation/resource.
func (e *OperationError) Is(target error) bool {
	t, ok := target.(*OperationError)
	if !ok {
		return false
	}
	if t.Operation == "" && t.Component == "" && t.Resource == "" && t.Cause == nil {
		return e.Kind == t.Kind
	}
	return false
}

// New constructs an OperationError of the given kind.
func New(kind Kind, operation string, cause error) *OperationError {
	return &OperationError{Kind: kind, Operation: operation, Cause: cause}
}

// WithResource sets the Resource field, returning the same error for chaining.
func (e *OperationError) WithResource(resource string) *OperationError {
	e.Resource = resource
	return e
}

// WithComponent sets the Component field, returning the same error for chaining.
func (e *OperationError) WithComponent(component string) *OperationError {
	e.Component = component
	return e
}

// WithRetryable marks a ClusterAPIError (or any kind) as retryable, matching
// spec.md §7's ClusterAPIError{retryable?}.
func (e *OperationError) WithRetryable(retryable bool) *OperationError {
	e.Retryable = retryable
	return e
}

// Sentinel kind-matchers for errors.Is.
var (
	ErrLockBusy = &OperationError{Kind: KindLockBusy}
)

// KindOf returns the Kind of err if it (or something it wraps) is an
// *OperationError, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var oe *OperationError
	if errors.As(err, &oe) {
		return oe.Kind, true
	}
	return "", false
}

package corebind

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for conditions that carry no extra context.
var (
	ErrContainerSealed = errors.New("corebind: container is sealed")
	ErrRootScopeActive = errors.New("corebind: root scope cannot be ended while the container is active")
	ErrServiceKeyEmpty = errors.New("corebind: service id cannot be empty")
	ErrConstructorNil  = errors.New("corebind: constructor cannot be nil")
	ErrNotAFunction    = errors.New("corebind: constructor must be a function")
	ErrDanglingAlias   = errors.New("corebind: alias does not resolve to a registered service")
	ErrAliasCycle      = errors.New("corebind: alias chain forms a cycle")
	ErrDecoratorNil    = errors.New("corebind: decorator cannot be nil")
	ErrResolvingNil    = errors.New("corebind: resolving callback cannot be nil")
)

// ServiceNotFoundError is returned when an id (after alias expansion) has no
// binding registered for it.
type ServiceNotFoundError struct {
	ID ServiceID
}

func (e *ServiceNotFoundError) Error() string {
	return fmt.Sprintf("corebind: service not found: %s", e.ID)
}

// CircularDependencyError reports a cycle discovered on the live resolution
// stack (or, during validation, on the declared dependency graph).
type CircularDependencyError struct {
	Path []ServiceID
}

func (e *CircularDependencyError) Error() string {
	parts := make([]string, len(e.Path))
	for i, id := range e.Path {
		parts[i] = string(id)
	}
	return fmt.Sprintf("corebind: circular dependency detected: %s", strings.Join(parts, " -> "))
}

// MaxDepthExceededError is distinct from CircularDependencyError: it reports
// a resolution stack deeper than the configured maximum on an acyclic graph.
type MaxDepthExceededError struct {
	Path     []ServiceID
	MaxDepth int
}

func (e *MaxDepthExceededError) Error() string {
	return fmt.Sprintf("corebind: max resolution depth %d exceeded at %s", e.MaxDepth, e.Path[len(e.Path)-1])
}

// UnresolvableParameterError is returned when a constructor parameter has no
// override, no polymorphic binding, no default, and is not nullable.
type UnresolvableParameterError struct {
	Param  string
	Target ServiceID
}

func (e *UnresolvableParameterError) Error() string {
	return fmt.Sprintf("corebind: cannot resolve parameter %q for %s", e.Param, e.Target)
}

// UnresolvablePropertyError is returned when a required injected property
// cannot be resolved.
type UnresolvablePropertyError struct {
	Property string
	Target   ServiceID
}

func (e *UnresolvablePropertyError) Error() string {
	return fmt.Sprintf("corebind: cannot resolve property %q for %s", e.Property, e.Target)
}

// AnalysisError is returned by the prototype analyzer when a constructor
// cannot be inspected.
type AnalysisError struct {
	Type   string
	Reason string
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("corebind: cannot analyze %s: %s", e.Type, e.Reason)
}

// LifetimeImmutabilityError is returned when a re-registration attempts to
// change a ServiceID's lifetime.
type LifetimeImmutabilityError struct {
	ID        ServiceID
	Current   Lifetime
	Requested Lifetime
}

func (e *LifetimeImmutabilityError) Error() string {
	return fmt.Sprintf("corebind: %s already registered as %s, cannot re-register as %s",
		e.ID, e.Current, e.Requested)
}

// ScopeEndedError is returned by any access to an Ended scope.
type ScopeEndedError struct {
	ScopeID string
}

func (e *ScopeEndedError) Error() string {
	return fmt.Sprintf("corebind: scope %s has ended", e.ScopeID)
}

// ScopeEndErrors aggregates dispose-hook failures encountered while ending a
// scope. All disposables are still attempted even after a failure.
type ScopeEndErrors struct {
	Errors []error
}

func (e *ScopeEndErrors) Error() string {
	parts := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("corebind: %d dispose error(s): %s", len(e.Errors), strings.Join(parts, "; "))
}

func (e *ScopeEndErrors) Unwrap() []error { return e.Errors }

// ResolutionTimeoutError is returned when a resolution's deadline elapses
// before construction completes. The partially built instance is discarded.
type ResolutionTimeoutError struct {
	Path    []ServiceID
	Elapsed time.Duration
}

func (e *ResolutionTimeoutError) Error() string {
	return fmt.Sprintf("corebind: resolution of %s timed out after %s", e.Path[len(e.Path)-1], e.Elapsed)
}

func (e *ResolutionTimeoutError) Is(target error) bool {
	return target == errResolutionDeadline
}

var errResolutionDeadline = errors.New("corebind: resolution deadline exceeded")

// DecoratorError wraps a failure from a decorator or resolving callback; the
// pre-decoration instance is left unpublished.
type DecoratorError struct {
	ID    ServiceID
	Cause error
}

func (e *DecoratorError) Error() string {
	return fmt.Sprintf("corebind: decorator failed for %s: %v", e.ID, e.Cause)
}

func (e *DecoratorError) Unwrap() error { return e.Cause }

// LifetimeError indicates an invalid or unparsable Lifetime value.
type LifetimeError struct {
	Value interface{}
}

func (e *LifetimeError) Error() string {
	return fmt.Sprintf("corebind: invalid lifetime: %v", e.Value)
}

// ===========================================================================
// Error classification helpers
// ===========================================================================

// IsNotFound reports whether err (or a wrapped cause) is a ServiceNotFoundError.
func IsNotFound(err error) bool {
	var e *ServiceNotFoundError
	return errors.As(err, &e)
}

// IsCircularDependency reports whether err is a CircularDependencyError.
func IsCircularDependency(err error) bool {
	var e *CircularDependencyError
	return errors.As(err, &e)
}

// IsScopeEnded reports whether err is a ScopeEndedError.
func IsScopeEnded(err error) bool {
	var e *ScopeEndedError
	return errors.As(err, &e)
}

// IsTimeout reports whether err is a ResolutionTimeoutError.
func IsTimeout(err error) bool {
	var e *ResolutionTimeoutError
	return errors.As(err, &e)
}

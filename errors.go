package rowlock

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-openapi/inflect"
)

// Standard sentinel errors for common conditions.
var (
	// ErrNotFound is returned when a targeted row does not exist for an
	// update or delete. It is distinct from a policy violation.
	ErrNotFound = errors.New("rowlock: row not found")

	// ErrPolicyViolation is returned when a deny or validate policy
	// blocks an operation.
	ErrPolicyViolation = errors.New("rowlock: policy violation")

	// ErrContextRequired is returned when an operation on a governed
	// resource runs without an auth context and the caller configured
	// RequireContext.
	ErrContextRequired = errors.New("rowlock: auth context required")

	// ErrUnsupported is returned when a query representation lacks a
	// capability the operation requires, such as setting column values
	// on an engine that does not expose mutation fields.
	ErrUnsupported = errors.New("rowlock: operation not supported by engine")
)

// PluginErrorKind classifies plugin-set validation failures.
type PluginErrorKind int

// Plugin validation failure kinds. All are fatal at setup time.
const (
	DuplicateName PluginErrorKind = iota
	MissingDependency
	Conflict
	CircularDependency
	InitializationFailed
)

// String returns the kind name.
func (k PluginErrorKind) String() string {
	switch k {
	case DuplicateName:
		return "duplicate name"
	case MissingDependency:
		return "missing dependency"
	case Conflict:
		return "conflict"
	case CircularDependency:
		return "circular dependency"
	case InitializationFailed:
		return "initialization failed"
	default:
		return "unknown"
	}
}

// PluginError reports a plugin-set validation or initialization failure.
// Setup-time errors always abort initialization; no partial pipeline is
// ever returned.
type PluginError struct {
	Kind PluginErrorKind
	// Plugin is the offending plugin name.
	Plugin string
	// Dependency is the related plugin name for MissingDependency and
	// Conflict kinds.
	Dependency string
	// Cycle holds the full dependency cycle path for CircularDependency.
	Cycle []string
	// Err is the wrapped cause for InitializationFailed.
	Err error
}

// Error returns the error string.
func (e *PluginError) Error() string {
	switch e.Kind {
	case DuplicateName:
		return fmt.Sprintf("rowlock: duplicate plugin name %q", e.Plugin)
	case MissingDependency:
		return fmt.Sprintf("rowlock: plugin %q depends on missing plugin %q", e.Plugin, e.Dependency)
	case Conflict:
		return fmt.Sprintf("rowlock: plugin %q conflicts with plugin %q", e.Plugin, e.Dependency)
	case CircularDependency:
		return fmt.Sprintf("rowlock: circular plugin dependency: %s", strings.Join(e.Cycle, " -> "))
	case InitializationFailed:
		return fmt.Sprintf("rowlock: plugin %q initialization failed: %v", e.Plugin, e.Err)
	default:
		return fmt.Sprintf("rowlock: plugin %q: %s", e.Plugin, e.Kind)
	}
}

// Unwrap returns the wrapped cause, if any.
func (e *PluginError) Unwrap() error { return e.Err }

// IsPluginError reports whether err is a PluginError, optionally of the
// given kinds.
func IsPluginError(err error, kinds ...PluginErrorKind) bool {
	var e *PluginError
	if !errors.As(err, &e) {
		return false
	}
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if e.Kind == k {
			return true
		}
	}
	return false
}

// ViolationError reports a policy denial. It carries enough structured
// detail to build an actionable message without leaking row data.
type ViolationError struct {
	// Resource is the governed resource the operation targeted.
	Resource string
	// Operation is the blocked operation.
	Operation Op
	// Policy is the name of the blocking policy, if it has one.
	Policy string
	// Reason is a short human-readable explanation.
	Reason string
	// SubjectID identifies the caller whose operation was blocked.
	SubjectID string
}

// Error returns the error string.
func (e *ViolationError) Error() string {
	label := inflect.Singularize(e.Resource)
	if e.Policy != "" {
		return fmt.Sprintf("rowlock: %s on %s denied by policy %q: %s", e.Operation, label, e.Policy, e.Reason)
	}
	return fmt.Sprintf("rowlock: %s on %s denied: %s", e.Operation, label, e.Reason)
}

// Is reports whether the target matches ErrPolicyViolation.
func (e *ViolationError) Is(err error) bool {
	return err == ErrPolicyViolation
}

// NewViolationError returns a new ViolationError.
func NewViolationError(resource string, op Op, policy, reason string) *ViolationError {
	if reason == "" {
		reason = "operation not permitted"
	}
	return &ViolationError{Resource: resource, Operation: op, Policy: policy, Reason: reason}
}

// IsViolation reports whether err is a policy violation.
func IsViolation(err error) bool {
	if err == nil {
		return false
	}
	var e *ViolationError
	return errors.As(err, &e) || errors.Is(err, ErrPolicyViolation)
}

// ContextError reports a missing auth context for a governed operation.
type ContextError struct {
	Resource  string
	Operation Op
}

// Error returns the error string.
func (e *ContextError) Error() string {
	return fmt.Sprintf("rowlock: %s on %s requires an auth context", e.Operation, e.Resource)
}

// Is reports whether the target matches ErrContextRequired.
func (e *ContextError) Is(err error) bool {
	return err == ErrContextRequired
}

// NewContextError returns a new ContextError.
func NewContextError(resource string, op Op) *ContextError {
	return &ContextError{Resource: resource, Operation: op}
}

// IsContextError reports whether err is a missing-context error.
func IsContextError(err error) bool {
	if err == nil {
		return false
	}
	var e *ContextError
	return errors.As(err, &e) || errors.Is(err, ErrContextRequired)
}

// NotFoundError reports that a targeted row does not exist.
type NotFoundError struct {
	resource string
	id       any
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	label := inflect.Singularize(e.resource)
	if e.id != nil {
		return fmt.Sprintf("rowlock: %s not found (id=%v)", label, e.id)
	}
	return fmt.Sprintf("rowlock: %s not found", label)
}

// Is reports whether the target matches ErrNotFound.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Resource returns the resource name.
func (e *NotFoundError) Resource() string { return e.resource }

// ID returns the row identifier that was searched for, if known.
func (e *NotFoundError) ID() any { return e.id }

// NewNotFoundError returns a new NotFoundError for the given resource.
func NewNotFoundError(resource string, id any) *NotFoundError {
	return &NotFoundError{resource: resource, id: id}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// RollbackError wraps an error that occurred while rolling back a
// transaction, joined with the error that triggered the rollback.
type RollbackError struct {
	Err error
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("rowlock: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error { return e.Err }

// AggregateError collects multiple errors from one operation, such as
// plugin teardown.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "rowlock: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("rowlock: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// NewAggregateError joins the non-nil errors, returning nil when none
// remain and the single error when only one remains.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	switch len(filtered) {
	case 0:
		return nil
	case 1:
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}

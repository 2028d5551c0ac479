// Package rowlock provides a pluggable query-interception pipeline with a
// built-in row-level-security policy engine. The package itself owns no
// storage: every data-access entry point is delegated to an external query
// engine that satisfies the Engine contract, while rowlock validates and
// orders the registered plugins, routes each entry-point call through the
// plugin chain, and evaluates declarative authorization policies for the
// caller identity attached to the context.
package rowlock

import (
	"context"
	"strings"

	"github.com/rowlock/rowlock/dialect/sql"
)

// Op is a bitmask of entry-point operations. A single operation is one of
// the Op constants below; policy declarations may combine several with the
// bitwise OR operator (e.g. OpCreate|OpUpdate).
type Op uint

// Entry-point operations routed through the interception pipeline.
const (
	OpRead Op = 1 << iota
	OpCreate
	OpUpdate
	OpReplace
	OpDelete
	OpMerge

	opEnd
)

// OpWrite combines all mutating operations.
const OpWrite = OpCreate | OpUpdate | OpReplace | OpDelete | OpMerge

// OpAll combines all operations.
const OpAll = OpRead | OpWrite

var opNames = map[Op]string{
	OpRead:    "read",
	OpCreate:  "create",
	OpUpdate:  "update",
	OpReplace: "replace",
	OpDelete:  "delete",
	OpMerge:   "merge",
}

// Is reports whether o matches any of the operations in the given mask.
func (o Op) Is(mask Op) bool { return o&mask != 0 }

// Mutating reports whether the operation modifies data.
func (o Op) Mutating() bool { return o.Is(OpWrite) }

// Each calls fn for every single operation set in the mask, in constant
// declaration order.
func (o Op) Each(fn func(Op)) {
	for op := OpRead; op < opEnd; op <<= 1 {
		if o&op != 0 {
			fn(op)
		}
	}
}

// String returns the operation name, or a pipe-joined list for masks.
func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	var names []string
	o.Each(func(op Op) { names = append(names, opNames[op]) })
	if len(names) == 0 {
		return "invalid"
	}
	return strings.Join(names, "|")
}

// OpFromString returns the single operation named by s.
func OpFromString(s string) (Op, bool) {
	for op, name := range opNames {
		if name == s {
			return op, true
		}
	}
	return 0, false
}

// Row is a single database row keyed by column name.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// ExecutionContext carries per-call state through the interceptor chain.
// A fresh context is created for every intercepted entry-point call;
// interceptors mutate its metadata to pass signals downstream (for
// example, asking a later plugin to skip the call).
type ExecutionContext struct {
	// Operation is the entry-point operation being intercepted.
	Operation Op
	// Resource is the table or resource name the call targets.
	Resource string
	// Schema is the schema scope of the handle, if any.
	Schema string

	meta map[string]any
	skip map[string]bool
}

// NewExecutionContext returns a fresh execution context for a call.
func NewExecutionContext(op Op, resource, schema string) *ExecutionContext {
	return &ExecutionContext{Operation: op, Resource: resource, Schema: schema}
}

// Set stores a metadata value for downstream interceptors.
func (ec *ExecutionContext) Set(key string, value any) {
	if ec.meta == nil {
		ec.meta = make(map[string]any)
	}
	ec.meta[key] = value
}

// Get returns the metadata value for key, if present.
func (ec *ExecutionContext) Get(key string) (any, bool) {
	v, ok := ec.meta[key]
	return v, ok
}

// SkipPlugin marks the named plugin to be skipped for this call.
func (ec *ExecutionContext) SkipPlugin(name string) {
	if ec.skip == nil {
		ec.skip = make(map[string]bool)
	}
	ec.skip[name] = true
}

// Skipped reports whether the named plugin was marked to be skipped.
func (ec *ExecutionContext) Skipped(name string) bool { return ec.skip[name] }

// Query is the mutable representation of a pending statement, as returned
// by an engine entry point. The concrete type is owned by the engine;
// interceptors discover additional capabilities through the Filterable and
// FieldSetter interfaces.
type Query interface {
	// Op returns the operation this query performs.
	Op() Op
	// Resource returns the table or resource name the query targets.
	Resource() string
}

// Filterable is implemented by query representations that support
// appending storage-level predicates. Read queries must implement it for
// row-level-security filtering to apply.
type Filterable interface {
	// WhereP appends storage-level predicates to the query. Every
	// appended predicate narrows the result set (predicates combine
	// conjunctively).
	WhereP(...func(*sql.Selector))
}

// FieldSetter is implemented by mutation query representations that allow
// interceptors to set column values (e.g. timestamps).
type FieldSetter interface {
	SetField(name string, value any)
	// Field returns the value staged for the named column, if any.
	Field(name string) (any, bool)
}

// Engine is the contract the interception pipeline requires from the
// underlying query engine. Entry points return the mutable query
// representation; execution is a separate step so interceptors can
// transform the representation in between.
type Engine interface {
	// Query begins a new statement of the given operation against the
	// named resource and returns its mutable representation.
	Query(ctx context.Context, op Op, resource string) (Query, error)

	// All executes a read representation and returns the matched rows.
	All(ctx context.Context, q Query) ([]Row, error)

	// Exec executes a mutation representation and returns the number of
	// affected rows.
	Exec(ctx context.Context, q Query) (int64, error)

	// Transaction runs fn inside a transaction. The engine handle passed
	// to fn is scoped to the transaction.
	Transaction(ctx context.Context, fn func(Engine) error) error

	// WithSchema returns a handle scoped to the named schema.
	WithSchema(schema string) Engine

	// With returns a handle that carries a named sub-query (CTE) built by
	// fn. The handle passed to fn must be used to build the sub-query.
	With(name string, fn func(Engine) (Query, error)) Engine
}

// Rawer is implemented by wrapped engine handles that can expose the
// underlying raw engine for privileged internal use, such as a plugin
// avoiding re-triggering its own interceptor.
type Rawer interface {
	Raw() Engine
}

// Raw unwraps eng down to the innermost engine. It returns eng unchanged
// if the handle is not wrapped.
func Raw(eng Engine) Engine {
	for {
		r, ok := eng.(Rawer)
		if !ok {
			return eng
		}
		eng = r.Raw()
	}
}

package engine

import (
	"github.com/rowlock/rowlock"
	"github.com/rowlock/rowlock/dialect/sql"
)

// ReadQuery is the mutable representation of a SELECT. It satisfies
// Filterable, so interceptors can narrow it with additional predicates.
type ReadQuery struct {
	sel *sql.Selector
}

// Op implements rowlock.Query.
func (q *ReadQuery) Op() rowlock.Op { return rowlock.OpRead }

// Resource implements rowlock.Query.
func (q *ReadQuery) Resource() string { return q.sel.Table() }

// WhereP implements rowlock.Filterable. Every appended predicate narrows
// the result set.
func (q *ReadQuery) WhereP(fns ...func(*sql.Selector)) {
	for _, fn := range fns {
		fn(q.sel)
	}
}

// Selector exposes the underlying SELECT builder for ordering,
// projection and pagination.
func (q *ReadQuery) Selector() *sql.Selector { return q.sel }

func (q *ReadQuery) render() (string, []any) { return q.sel.Query() }

// InsertQuery is the mutable representation of an INSERT, REPLACE or
// merge statement.
type InsertQuery struct {
	op rowlock.Op
	b  *sql.InsertBuilder
}

func (q *InsertQuery) Op() rowlock.Op   { return q.op }
func (q *InsertQuery) Resource() string { return q.b.Table() }

// SetField implements rowlock.FieldSetter.
func (q *InsertQuery) SetField(name string, value any) { q.b.Set(name, value) }

// Field implements rowlock.FieldSetter.
func (q *InsertQuery) Field(name string) (any, bool) { return q.b.Get(name) }

// Keys sets the conflict key columns for merge statements.
func (q *InsertQuery) Keys(columns ...string) { q.b.Keys(columns...) }

func (q *InsertQuery) render() (string, []any) { return q.b.Query() }

// UpdateQuery is the mutable representation of an UPDATE. Predicates
// appended through WhereP are carried on a scratch selector and
// transferred to the statement at render time, so filter policies apply
// to mutations exactly as they do to reads.
type UpdateQuery struct {
	b       *sql.UpdateBuilder
	scratch *sql.Selector
}

func (q *UpdateQuery) Op() rowlock.Op   { return rowlock.OpUpdate }
func (q *UpdateQuery) Resource() string { return q.b.Table() }

func (q *UpdateQuery) SetField(name string, value any) { q.b.Set(name, value) }
func (q *UpdateQuery) Field(name string) (any, bool)   { return q.b.Get(name) }

// WhereP implements rowlock.Filterable.
func (q *UpdateQuery) WhereP(fns ...func(*sql.Selector)) {
	for _, fn := range fns {
		fn(q.scratch)
	}
}

func (q *UpdateQuery) render() (string, []any) {
	for _, p := range q.scratch.Predicates() {
		q.b.Where(p)
	}
	return q.b.Query()
}

// DeleteQuery is the mutable representation of a DELETE.
type DeleteQuery struct {
	b       *sql.DeleteBuilder
	scratch *sql.Selector
}

func (q *DeleteQuery) Op() rowlock.Op   { return rowlock.OpDelete }
func (q *DeleteQuery) Resource() string { return q.b.Table() }

// WhereP implements rowlock.Filterable.
func (q *DeleteQuery) WhereP(fns ...func(*sql.Selector)) {
	for _, fn := range fns {
		fn(q.scratch)
	}
}

func (q *DeleteQuery) render() (string, []any) {
	for _, p := range q.scratch.Predicates() {
		q.b.Where(p)
	}
	return q.b.Query()
}

// renderer is satisfied by every query representation this engine
// produces.
type renderer interface {
	render() (string, []any)
}

var (
	_ rowlock.Query       = (*ReadQuery)(nil)
	_ rowlock.Filterable  = (*ReadQuery)(nil)
	_ rowlock.Query       = (*InsertQuery)(nil)
	_ rowlock.FieldSetter = (*InsertQuery)(nil)
	_ rowlock.Query       = (*UpdateQuery)(nil)
	_ rowlock.FieldSetter = (*UpdateQuery)(nil)
	_ rowlock.Filterable  = (*UpdateQuery)(nil)
	_ rowlock.Query       = (*DeleteQuery)(nil)
	_ rowlock.Filterable  = (*DeleteQuery)(nil)
)

// Package sql provides compact SQL statement builders and the
// database/sql-backed driver used by the reference engine. Builders
// render parameterized statements; predicate composition is the only
// query surface the row-level-security layer depends on.
package sql

import (
	"strconv"
	"strings"
)

// Builder is the low-level statement writer shared by all builders. It
// accumulates the statement text and its bound arguments, and handles
// dialect-specific identifier quoting and placeholders.
type Builder struct {
	sb      strings.Builder
	args    []any
	dialect string
}

// NewBuilder returns a statement writer for the given dialect.
func NewBuilder(dialect string) *Builder {
	return &Builder{dialect: dialect}
}

// Dialect returns the dialect the builder renders for.
func (b *Builder) Dialect() string { return b.dialect }

// WriteString appends raw text to the statement.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// Ident appends a quoted identifier. Dotted names are quoted per part so
// schema-qualified columns render correctly. Expressions (anything
// containing a parenthesis, space or star) are written unquoted.
func (b *Builder) Ident(s string) *Builder {
	if strings.ContainsAny(s, "( *") {
		b.sb.WriteString(s)
		return b
	}
	quote := `"`
	if b.dialect == "mysql" {
		quote = "`"
	}
	for i, part := range strings.Split(s, ".") {
		if i > 0 {
			b.sb.WriteString(".")
		}
		b.sb.WriteString(quote)
		b.sb.WriteString(part)
		b.sb.WriteString(quote)
	}
	return b
}

// Arg binds an argument and writes its placeholder.
func (b *Builder) Arg(v any) *Builder {
	b.args = append(b.args, v)
	if b.dialect == "postgres" {
		b.sb.WriteString("$")
		b.sb.WriteString(strconv.Itoa(len(b.args)))
	} else {
		b.sb.WriteString("?")
	}
	return b
}

// Query returns the rendered statement and its arguments.
func (b *Builder) Query() (string, []any) {
	return b.sb.String(), b.args
}

// Selector builds a SELECT statement.
type Selector struct {
	dialect  string
	schema   string
	table    string
	columns  []string
	preds    []*Predicate
	orderBy  []string
	limit    *int
	offset   *int
	distinct bool
	ctes     []cte
}

type cte struct {
	name string
	s    *Selector
}

// NewSelector returns a SELECT builder for the given dialect.
func NewSelector(dialect string) *Selector {
	return &Selector{dialect: dialect}
}

// From sets the table the statement selects from.
func (s *Selector) From(table string) *Selector {
	s.table = table
	return s
}

// Schema sets the schema qualifier for the table.
func (s *Selector) Schema(schema string) *Selector {
	s.schema = schema
	return s
}

// Select sets the selected columns. Defaults to * when unset.
func (s *Selector) Select(columns ...string) *Selector {
	s.columns = columns
	return s
}

// C returns the column name for use in predicate constructors.
func (s *Selector) C(column string) string { return column }

// Where appends a predicate. Multiple predicates combine with AND.
func (s *Selector) Where(p *Predicate) *Selector {
	if p != nil {
		s.preds = append(s.preds, p)
	}
	return s
}

// Predicates returns the accumulated predicates.
func (s *Selector) Predicates() []*Predicate { return s.preds }

// OrderBy appends ascending order terms.
func (s *Selector) OrderBy(columns ...string) *Selector {
	s.orderBy = append(s.orderBy, columns...)
	return s
}

// OrderDesc appends a descending order term.
func (s *Selector) OrderDesc(column string) *Selector {
	s.orderBy = append(s.orderBy, column+" DESC")
	return s
}

// Limit caps the number of returned rows.
func (s *Selector) Limit(n int) *Selector {
	s.limit = &n
	return s
}

// Offset skips the first n rows.
func (s *Selector) Offset(n int) *Selector {
	s.offset = &n
	return s
}

// Distinct configures the statement to drop duplicate rows.
func (s *Selector) Distinct() *Selector {
	s.distinct = true
	return s
}

// AppendCTE attaches a named common table expression to the statement.
func (s *Selector) AppendCTE(name string, sub *Selector) *Selector {
	s.ctes = append(s.ctes, cte{name: name, s: sub})
	return s
}

// Table returns the target table name.
func (s *Selector) Table() string { return s.table }

func (s *Selector) qualifiedTable() string {
	if s.schema != "" {
		return s.schema + "." + s.table
	}
	return s.table
}

// Query renders the statement and its arguments.
func (s *Selector) Query() (string, []any) {
	b := NewBuilder(s.dialect)
	s.render(b)
	return b.Query()
}

func (s *Selector) render(b *Builder) {
	if len(s.ctes) > 0 {
		b.WriteString("WITH ")
		for i, c := range s.ctes {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Ident(c.name).WriteString(" AS (")
			c.s.render(b)
			b.WriteString(")")
		}
		b.WriteString(" ")
	}
	b.WriteString("SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	if len(s.columns) == 0 {
		b.WriteString("*")
	} else {
		for i, c := range s.columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Ident(c)
		}
	}
	b.WriteString(" FROM ").Ident(s.qualifiedTable())
	renderWhere(b, s.preds)
	if len(s.orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range s.orderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			if col, ok := strings.CutSuffix(o, " DESC"); ok {
				b.Ident(col).WriteString(" DESC")
			} else {
				b.Ident(o)
			}
		}
	}
	if s.limit != nil {
		b.WriteString(" LIMIT ").WriteString(strconv.Itoa(*s.limit))
	}
	if s.offset != nil {
		b.WriteString(" OFFSET ").WriteString(strconv.Itoa(*s.offset))
	}
}

func renderWhere(b *Builder, preds []*Predicate) {
	if len(preds) == 0 {
		return
	}
	b.WriteString(" WHERE ")
	And(preds...).apply(b)
}

// InsertBuilder builds INSERT, REPLACE and upsert (merge) statements.
type InsertBuilder struct {
	dialect string
	schema  string
	table   string
	columns []string
	values  []any
	replace bool
	merge   bool
	keys    []string
}

// NewInsert returns an INSERT builder for the given dialect and table.
func NewInsert(dialect, table string) *InsertBuilder {
	return &InsertBuilder{dialect: dialect, table: table}
}

// Schema sets the schema qualifier for the table.
func (i *InsertBuilder) Schema(schema string) *InsertBuilder {
	i.schema = schema
	return i
}

// Set stages a column value. Setting the same column twice overwrites.
func (i *InsertBuilder) Set(column string, v any) *InsertBuilder {
	for n, c := range i.columns {
		if c == column {
			i.values[n] = v
			return i
		}
	}
	i.columns = append(i.columns, column)
	i.values = append(i.values, v)
	return i
}

// Get returns the staged value for a column.
func (i *InsertBuilder) Get(column string) (any, bool) {
	for n, c := range i.columns {
		if c == column {
			return i.values[n], true
		}
	}
	return nil, false
}

// Replace renders the statement as a REPLACE (delete-then-insert upsert).
func (i *InsertBuilder) Replace() *InsertBuilder {
	i.replace = true
	return i
}

// Merge renders the statement as an insert-or-update upsert keyed by the
// columns set via Keys (default "id").
func (i *InsertBuilder) Merge() *InsertBuilder {
	i.merge = true
	return i
}

// Keys sets the conflict key columns for Merge.
func (i *InsertBuilder) Keys(columns ...string) *InsertBuilder {
	i.keys = columns
	return i
}

// Table returns the target table name.
func (i *InsertBuilder) Table() string { return i.table }

// Query renders the statement and its arguments.
func (i *InsertBuilder) Query() (string, []any) {
	b := NewBuilder(i.dialect)
	switch {
	case i.replace && i.dialect == "mysql":
		b.WriteString("REPLACE INTO ")
	case i.replace:
		b.WriteString("INSERT OR REPLACE INTO ")
	default:
		b.WriteString("INSERT INTO ")
	}
	table := i.table
	if i.schema != "" {
		table = i.schema + "." + i.table
	}
	b.Ident(table).WriteString(" (")
	for n, c := range i.columns {
		if n > 0 {
			b.WriteString(", ")
		}
		b.Ident(c)
	}
	b.WriteString(") VALUES (")
	for n, v := range i.values {
		if n > 0 {
			b.WriteString(", ")
		}
		b.Arg(v)
	}
	b.WriteString(")")
	if i.merge {
		i.renderMerge(b)
	}
	return b.Query()
}

func (i *InsertBuilder) renderMerge(b *Builder) {
	keys := i.keys
	if len(keys) == 0 {
		keys = []string{"id"}
	}
	keySet := make(map[string]bool, len(keys))
	for _, k := range keys {
		keySet[k] = true
	}
	if i.dialect == "mysql" {
		b.WriteString(" ON DUPLICATE KEY UPDATE ")
		first := true
		for _, c := range i.columns {
			if keySet[c] {
				continue
			}
			if !first {
				b.WriteString(", ")
			}
			first = false
			b.Ident(c).WriteString(" = VALUES(").Ident(c).WriteString(")")
		}
		return
	}
	b.WriteString(" ON CONFLICT (")
	for n, k := range keys {
		if n > 0 {
			b.WriteString(", ")
		}
		b.Ident(k)
	}
	b.WriteString(") DO UPDATE SET ")
	first := true
	for _, c := range i.columns {
		if keySet[c] {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.Ident(c).WriteString(" = excluded.").Ident(c)
	}
}

// UpdateBuilder builds an UPDATE statement.
type UpdateBuilder struct {
	dialect string
	schema  string
	table   string
	columns []string
	values  []any
	preds   []*Predicate
}

// NewUpdate returns an UPDATE builder for the given dialect and table.
func NewUpdate(dialect, table string) *UpdateBuilder {
	return &UpdateBuilder{dialect: dialect, table: table}
}

// Schema sets the schema qualifier for the table.
func (u *UpdateBuilder) Schema(schema string) *UpdateBuilder {
	u.schema = schema
	return u
}

// Set stages a column assignment.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	for n, c := range u.columns {
		if c == column {
			u.values[n] = v
			return u
		}
	}
	u.columns = append(u.columns, column)
	u.values = append(u.values, v)
	return u
}

// Get returns the staged value for a column.
func (u *UpdateBuilder) Get(column string) (any, bool) {
	for n, c := range u.columns {
		if c == column {
			return u.values[n], true
		}
	}
	return nil, false
}

// Where appends a predicate. Multiple predicates combine with AND.
func (u *UpdateBuilder) Where(p *Predicate) *UpdateBuilder {
	if p != nil {
		u.preds = append(u.preds, p)
	}
	return u
}

// Table returns the target table name.
func (u *UpdateBuilder) Table() string { return u.table }

// Query renders the statement and its arguments.
func (u *UpdateBuilder) Query() (string, []any) {
	b := NewBuilder(u.dialect)
	table := u.table
	if u.schema != "" {
		table = u.schema + "." + u.table
	}
	b.WriteString("UPDATE ").Ident(table).WriteString(" SET ")
	for n, c := range u.columns {
		if n > 0 {
			b.WriteString(", ")
		}
		b.Ident(c).WriteString(" = ")
		b.Arg(u.values[n])
	}
	renderWhere(b, u.preds)
	return b.Query()
}

// DeleteBuilder builds a DELETE statement.
type DeleteBuilder struct {
	dialect string
	schema  string
	table   string
	preds   []*Predicate
}

// NewDelete returns a DELETE builder for the given dialect and table.
func NewDelete(dialect, table string) *DeleteBuilder {
	return &DeleteBuilder{dialect: dialect, table: table}
}

// Schema sets the schema qualifier for the table.
func (d *DeleteBuilder) Schema(schema string) *DeleteBuilder {
	d.schema = schema
	return d
}

// Where appends a predicate. Multiple predicates combine with AND.
func (d *DeleteBuilder) Where(p *Predicate) *DeleteBuilder {
	if p != nil {
		d.preds = append(d.preds, p)
	}
	return d
}

// Table returns the target table name.
func (d *DeleteBuilder) Table() string { return d.table }

// Query renders the statement and its arguments.
func (d *DeleteBuilder) Query() (string, []any) {
	b := NewBuilder(d.dialect)
	table := d.table
	if d.schema != "" {
		table = d.schema + "." + d.table
	}
	b.WriteString("DELETE FROM ").Ident(table)
	renderWhere(b, d.preds)
	return b.Query()
}

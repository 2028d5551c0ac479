// Package engine provides the reference query engine over dialect/sql.
// It satisfies the rowlock.Engine contract: entry points return mutable
// builder-backed query representations, execution scans rows into
// generic row maps, and transactions, schema scopes and sub-queries are
// modeled as derived engine handles. A pluggable result cache turns
// repeated reads into cache hits and is invalidated on writes.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rowlock/rowlock"
	"github.com/rowlock/rowlock/dialect"
	"github.com/rowlock/rowlock/dialect/sql"
)

// Option configures the engine.
type Option func(*Engine)

// WithLogger sets the statement trace logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithCache enables read-through result caching with the given store and
// TTL. Reads inside transactions always bypass the cache.
func WithCache(c rowlock.Cache, ttl time.Duration) Option {
	return func(e *Engine) { e.cache = newResultCache(c, ttl) }
}

type namedCTE struct {
	name string
	sel  *sql.Selector
}

// Engine executes queries against a dialect driver. Derived handles
// (transaction scopes, schema scopes, CTE carriers) share the driver and
// cache of the root engine.
type Engine struct {
	drv  dialect.Driver
	conn dialect.ExecQuerier

	schema string
	ctes   []namedCTE
	cteErr error
	inTx   bool

	cache *resultCache
	log   *zap.Logger
}

// New returns an engine over the given driver.
func New(drv dialect.Driver, opts ...Option) *Engine {
	e := &Engine{drv: drv, conn: drv, log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open opens a database connection and returns an engine over it.
func Open(dialectName, source string, opts ...Option) (*Engine, error) {
	drv, err := sql.Open(dialectName, source)
	if err != nil {
		return nil, err
	}
	return New(drv, opts...), nil
}

// Close closes the underlying driver.
func (e *Engine) Close() error { return e.drv.Close() }

func (e *Engine) clone() *Engine {
	c := *e
	c.ctes = append([]namedCTE(nil), e.ctes...)
	return &c
}

// Query implements rowlock.Engine.
func (e *Engine) Query(_ context.Context, op rowlock.Op, resource string) (rowlock.Query, error) {
	if e.cteErr != nil {
		return nil, e.cteErr
	}
	d := e.drv.Dialect()
	switch op {
	case rowlock.OpRead:
		sel := sql.NewSelector(d).From(resource)
		if e.schema != "" {
			sel.Schema(e.schema)
		}
		for _, c := range e.ctes {
			sel.AppendCTE(c.name, c.sel)
		}
		return &ReadQuery{sel: sel}, nil
	case rowlock.OpCreate, rowlock.OpReplace, rowlock.OpMerge:
		b := sql.NewInsert(d, resource)
		if e.schema != "" {
			b.Schema(e.schema)
		}
		switch op {
		case rowlock.OpReplace:
			b.Replace()
		case rowlock.OpMerge:
			b.Merge()
		}
		return &InsertQuery{op: op, b: b}, nil
	case rowlock.OpUpdate:
		b := sql.NewUpdate(d, resource)
		if e.schema != "" {
			b.Schema(e.schema)
		}
		return &UpdateQuery{b: b, scratch: sql.NewSelector(d).From(resource)}, nil
	case rowlock.OpDelete:
		b := sql.NewDelete(d, resource)
		if e.schema != "" {
			b.Schema(e.schema)
		}
		return &DeleteQuery{b: b, scratch: sql.NewSelector(d).From(resource)}, nil
	default:
		return nil, fmt.Errorf("engine: unsupported operation %s", op)
	}
}

// All implements rowlock.Engine. When caching is enabled and the engine
// is not inside a transaction, identical statements are served from the
// cache and concurrent misses are collapsed into a single database
// round-trip.
func (e *Engine) All(ctx context.Context, q rowlock.Query) ([]rowlock.Row, error) {
	r, ok := q.(renderer)
	if !ok {
		return nil, fmt.Errorf("engine: foreign query type %T", q)
	}
	if !q.Op().Is(rowlock.OpRead) {
		return nil, fmt.Errorf("engine: All requires a read query, got %s", q.Op())
	}
	stmt, args := r.render()
	load := func() ([]rowlock.Row, error) {
		return e.scan(ctx, stmt, args)
	}
	if e.cache == nil || e.inTx {
		return load()
	}
	key := rowlock.CacheKey{
		Schema:     e.schema,
		Table:      q.Resource(),
		Statement:  stmt,
		ArgsDigest: digest(args),
	}
	return e.cache.fetch(ctx, key, load)
}

func (e *Engine) scan(ctx context.Context, stmt string, args []any) ([]rowlock.Row, error) {
	e.log.Debug("query", zap.String("stmt", stmt), zap.Int("args", len(args)))
	var rows sql.Rows
	if err := e.conn.Query(ctx, stmt, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []rowlock.Row
	for rows.Next() {
		dest := make([]any, len(columns))
		for i := range dest {
			dest[i] = new(any)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(rowlock.Row, len(columns))
		for i, c := range columns {
			v := *dest[i].(*any)
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[c] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Exec implements rowlock.Engine. Every successful write invalidates the
// cached reads of the targeted resource.
func (e *Engine) Exec(ctx context.Context, q rowlock.Query) (int64, error) {
	r, ok := q.(renderer)
	if !ok {
		return 0, fmt.Errorf("engine: foreign query type %T", q)
	}
	if !q.Op().Mutating() {
		return 0, fmt.Errorf("engine: Exec requires a mutation query, got %s", q.Op())
	}
	stmt, args := r.render()
	e.log.Debug("exec", zap.String("stmt", stmt), zap.Int("args", len(args)))
	var res sql.Result
	if err := e.conn.Exec(ctx, stmt, args, &res); err != nil {
		return 0, err
	}
	if e.cache != nil {
		e.cache.invalidate(ctx, e.schema, q.Resource())
	}
	return res.RowsAffected()
}

// ExecRaw executes a raw statement, bypassing the builders and the
// cache. Intended for DDL and migrations.
func (e *Engine) ExecRaw(ctx context.Context, stmt string, args ...any) error {
	return e.conn.Exec(ctx, stmt, args, nil)
}

// Transaction implements rowlock.Engine. A nested call reuses the
// enclosing transaction. A rollback failure after fn's error is reported
// alongside the original error.
func (e *Engine) Transaction(ctx context.Context, fn func(rowlock.Engine) error) error {
	if e.inTx {
		return fn(e)
	}
	tx, err := e.drv.Tx(ctx)
	if err != nil {
		return err
	}
	child := e.clone()
	child.conn = tx
	child.inTx = true
	if err := fn(child); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return rowlock.NewAggregateError(err, &rowlock.RollbackError{Err: rerr})
		}
		return err
	}
	return tx.Commit()
}

// WithSchema implements rowlock.Engine.
func (e *Engine) WithSchema(schema string) rowlock.Engine {
	child := e.clone()
	child.schema = schema
	return child
}

// With implements rowlock.Engine. The sub-query built by fn is attached
// as a CTE to every read query created from the returned handle. A
// build failure is deferred to the next Query call, keeping the builder
// chain fluent.
func (e *Engine) With(name string, fn func(rowlock.Engine) (rowlock.Query, error)) rowlock.Engine {
	child := e.clone()
	sub := e.clone()
	q, err := fn(sub)
	if err != nil {
		child.cteErr = fmt.Errorf("engine: build cte %q: %w", name, err)
		return child
	}
	rq, ok := q.(*ReadQuery)
	if !ok {
		child.cteErr = fmt.Errorf("engine: cte %q requires a read query, got %T", name, q)
		return child
	}
	child.ctes = append(child.ctes, namedCTE{name: name, sel: rq.sel})
	return child
}

var _ rowlock.Engine = (*Engine)(nil)

// Package pipeline wires a validated plugin set around an engine handle.
// Wrap resolves the plugin order, runs the init hooks, and returns a
// drop-in Engine whose entry points route every call through the plugin
// chain exactly once. Derived handles (transactions, schema scopes,
// sub-queries) are produced through a single wrapping factory, so every
// handle reachable from a wrapped handle is itself wrapped.
package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/rowlock/rowlock"
)

// Option configures Wrap.
type Option func(*shared)

// WithLogger sets the logger used for chain traces and lifecycle events.
func WithLogger(log *zap.Logger) Option {
	return func(s *shared) { s.log = log }
}

// WithIDColumn sets the identifier column used by the repositories the
// handle builds. Defaults to "id".
func WithIDColumn(column string) Option {
	return func(s *shared) { s.idColumn = column }
}

// shared is the plugin-chain state common to a root handle and every
// handle derived from it.
type shared struct {
	order     []*rowlock.Plugin
	chain     []*rowlock.Plugin // plugins with an interceptor hook
	extenders []*rowlock.Plugin // plugins with a repository hook
	log       *zap.Logger
	idColumn  string
	closeOnce sync.Once
	closeErr  error
}

// Wrap validates and orders the plugin set, runs every init hook in
// resolved order, and returns the wrapped engine handle. Any validation
// or initialization failure aborts construction: already-initialized
// plugins are destroyed in reverse order and no handle is returned.
func Wrap(ctx context.Context, eng rowlock.Engine, plugins []*rowlock.Plugin, opts ...Option) (*Handle, error) {
	order, err := rowlock.ResolveOrder(plugins)
	if err != nil {
		return nil, err
	}
	s := &shared{order: order, log: zap.NewNop(), idColumn: "id"}
	for _, opt := range opts {
		opt(s)
	}
	for _, p := range order {
		if p.InterceptQuery != nil {
			s.chain = append(s.chain, p)
		}
		if p.ExtendRepository != nil {
			s.extenders = append(s.extenders, p)
		}
	}
	h := &Handle{eng: eng, sh: s}
	for i, p := range order {
		if p.Init == nil {
			continue
		}
		if err := p.Init(ctx, h); err != nil {
			destroy(ctx, order[:i], s.log)
			return nil, &rowlock.PluginError{
				Kind:   rowlock.InitializationFailed,
				Plugin: p.Name,
				Err:    err,
			}
		}
		s.log.Debug("plugin initialized", zap.String("plugin", p.Name))
	}
	return h, nil
}

// destroy runs the destroy hooks of the given plugins in reverse order.
func destroy(ctx context.Context, order []*rowlock.Plugin, log *zap.Logger) error {
	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		p := order[i]
		if p.Destroy == nil {
			continue
		}
		if err := p.Destroy(ctx); err != nil {
			errs = append(errs, err)
		}
		log.Debug("plugin destroyed", zap.String("plugin", p.Name))
	}
	return rowlock.NewAggregateError(errs...)
}

// Handle is a wrapped engine. It behaves exactly like the raw handle for
// non-intercepted operations and routes every entry-point call through
// the plugin chain. A handle with no interceptor-capable plugins takes a
// fast path that adds no work beyond the delegating call.
type Handle struct {
	eng    rowlock.Engine
	sh     *shared
	schema string

	schemas sync.Map // schema name -> *Handle
	repos   sync.Map // resource name -> rowlock.Repository
}

var _ rowlock.Engine = (*Handle)(nil)
var _ rowlock.Rawer = (*Handle)(nil)

// child is the single factory through which every derived handle is
// produced, preserving the invariant that nested scopes stay wrapped.
func (h *Handle) child(eng rowlock.Engine, schema string) *Handle {
	return &Handle{eng: eng, sh: h.sh, schema: schema}
}

// Query begins a statement and routes it through the interceptor chain.
// Each intercepted call gets a fresh execution context; interceptors may
// return a different query representation and may signal later plugins
// through the context metadata.
func (h *Handle) Query(ctx context.Context, op rowlock.Op, resource string) (rowlock.Query, error) {
	q, err := h.eng.Query(ctx, op, resource)
	if err != nil || len(h.sh.chain) == 0 {
		return q, err
	}
	ec := rowlock.NewExecutionContext(op, resource, h.schema)
	for _, p := range h.sh.chain {
		if ec.Skipped(p.Name) {
			continue
		}
		q, err = p.InterceptQuery(ctx, q, ec)
		if err != nil {
			return nil, err
		}
	}
	h.sh.log.Debug("query intercepted",
		zap.Stringer("op", op),
		zap.String("resource", resource),
		zap.Int("plugins", len(h.sh.chain)),
	)
	return q, nil
}

// All executes a read representation through the underlying engine.
func (h *Handle) All(ctx context.Context, q rowlock.Query) ([]rowlock.Row, error) {
	return h.eng.All(ctx, q)
}

// Exec executes a mutation representation through the underlying engine.
func (h *Handle) Exec(ctx context.Context, q rowlock.Query) (int64, error) {
	return h.eng.Exec(ctx, q)
}

// Transaction starts a transaction and hands fn a wrapped handle sharing
// the same plugin chain, so queries inside the transaction are
// intercepted identically to the outer scope.
func (h *Handle) Transaction(ctx context.Context, fn func(rowlock.Engine) error) error {
	return h.eng.Transaction(ctx, func(tx rowlock.Engine) error {
		return fn(h.child(tx, h.schema))
	})
}

// WithSchema returns a wrapped handle scoped to the named schema.
// Repeated calls with the same schema on the same handle return the
// memoized wrapper; racing constructions may build two equivalent
// wrappers, the first stored wins.
func (h *Handle) WithSchema(schema string) rowlock.Engine {
	if v, ok := h.schemas.Load(schema); ok {
		return v.(*Handle)
	}
	child := h.child(h.eng.WithSchema(schema), schema)
	if v, loaded := h.schemas.LoadOrStore(schema, child); loaded {
		return v.(*Handle)
	}
	return child
}

// With returns a wrapped handle carrying a named sub-query. The build
// callback receives a wrapped handle, never the raw one, so sub-query
// construction cannot escape interception.
func (h *Handle) With(name string, fn func(rowlock.Engine) (rowlock.Query, error)) rowlock.Engine {
	inner := h.eng.With(name, func(sub rowlock.Engine) (rowlock.Query, error) {
		return fn(h.child(sub, h.schema))
	})
	return h.child(inner, h.schema)
}

// Raw returns the underlying engine, bypassing the plugin chain. It is
// intended for privileged internal use, such as a plugin avoiding
// re-triggering its own interceptor; it is deliberately not part of the
// Engine interface.
func (h *Handle) Raw() rowlock.Engine { return h.eng }

// Plugins returns the resolved plugin names in execution order.
func (h *Handle) Plugins() []string {
	names := make([]string, len(h.sh.order))
	for i, p := range h.sh.order {
		names[i] = p.Name
	}
	return names
}

// Repository returns a repository for the named resource with every
// plugin's repository extension applied in resolved order. Repositories
// are memoized per handle.
func (h *Handle) Repository(resource string) rowlock.Repository {
	if v, ok := h.repos.Load(resource); ok {
		return v.(rowlock.Repository)
	}
	repo := h.ExtendRepository(NewRepository(h, resource, h.sh.idColumn))
	if v, loaded := h.repos.LoadOrStore(resource, repo); loaded {
		return v.(rowlock.Repository)
	}
	return repo
}

// ExtendRepository applies every plugin's repository extension to a
// caller-supplied repository, in resolved order.
func (h *Handle) ExtendRepository(repo rowlock.Repository) rowlock.Repository {
	for _, p := range h.sh.extenders {
		repo = p.ExtendRepository(repo)
	}
	return repo
}

// Close destroys the plugins in reverse resolved order. It is safe to
// call from any handle derived from the same Wrap call; only the first
// call runs the hooks.
func (h *Handle) Close(ctx context.Context) error {
	h.sh.closeOnce.Do(func() {
		h.sh.closeErr = destroy(ctx, h.sh.order, h.sh.log)
	})
	return h.sh.closeErr
}

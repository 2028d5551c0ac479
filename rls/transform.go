package rls

import (
	"context"

	"github.com/rowlock/rowlock"
	"github.com/rowlock/rowlock/dialect/sql"
)

// intercept is the plugin's query hook. Reads of governed resources get
// the filter predicates of every active filter policy appended; each
// predicate narrows the result further. Mutations pass through here and
// are guarded at the repository layer, where the current row state is
// available.
func (e *Enforcer) intercept(ctx context.Context, q rowlock.Query, ec *rowlock.ExecutionContext) (rowlock.Query, error) {
	if !ec.Operation.Is(rowlock.OpRead) {
		return q, nil
	}
	if !e.reg.HasResource(ec.Resource) {
		return q, nil
	}
	ac := rowlock.AuthFromContext(ctx)
	if e.bypass(ac) {
		return q, nil
	}
	f, ok := q.(rowlock.Filterable)
	if !ok {
		// A governed resource whose read representation cannot be
		// filtered must not be readable at all.
		return nil, rowlock.ErrUnsupported
	}
	if ac == nil {
		if e.cfg.RequireContext {
			return nil, rowlock.NewContextError(ec.Resource, ec.Operation)
		}
		if !e.cfg.AllowUnfiltered {
			// No identity to filter by: match nothing.
			f.WhereP(func(s *sql.Selector) {
				s.Where(sql.False())
			})
		}
		return q, nil
	}
	for _, p := range e.reg.Filters(ec.Resource) {
		if !p.Active(ac) {
			continue
		}
		f.WhereP(p.Predicate(ac))
	}
	return q, nil
}

package plugins

import (
	"context"
	"slices"
	"time"

	"github.com/rowlock/rowlock"
	"github.com/rowlock/rowlock/dialect/sql"
)

// SoftDeleteConfig configures the SoftDelete plugin.
type SoftDeleteConfig struct {
	// Resources lists the tables under soft deletion. Other resources
	// pass through untouched.
	Resources []string
	// Column is the deletion marker. Default "deleted_at".
	Column string
	// Now supplies the deletion timestamp. Defaults to time.Now.
	Now func() time.Time
}

// SoftDelete returns a plugin that converts deletes of the configured
// resources into updates stamping the deletion marker, and hides marked
// rows from reads. The engine handle captured at init is unwrapped so
// the replacement update does not re-enter the plugin chain.
func SoftDelete(cfg SoftDeleteConfig) *rowlock.Plugin {
	if cfg.Column == "" {
		cfg.Column = "deleted_at"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	var eng rowlock.Engine
	governed := func(resource string) bool {
		return slices.Contains(cfg.Resources, resource)
	}
	return &rowlock.Plugin{
		Name:    "soft-delete",
		Version: "1.0.0",
		Init: func(_ context.Context, e rowlock.Engine) error {
			eng = rowlock.Raw(e)
			return nil
		},
		InterceptQuery: func(ctx context.Context, q rowlock.Query, ec *rowlock.ExecutionContext) (rowlock.Query, error) {
			if !governed(ec.Resource) {
				return q, nil
			}
			switch {
			case ec.Operation.Is(rowlock.OpRead):
				if f, ok := q.(rowlock.Filterable); ok {
					f.WhereP(func(s *sql.Selector) {
						s.Where(sql.IsNull(s.C(cfg.Column)))
					})
				}
				return q, nil
			case ec.Operation.Is(rowlock.OpDelete):
				target := eng
				if ec.Schema != "" {
					// The delete was intercepted on a schema-scoped
					// handle; the replacement update must target the
					// same schema.
					target = target.WithSchema(ec.Schema)
				}
				upd, err := target.Query(ctx, rowlock.OpUpdate, ec.Resource)
				if err != nil {
					return nil, err
				}
				fs, ok := upd.(rowlock.FieldSetter)
				if !ok {
					return nil, rowlock.ErrUnsupported
				}
				fs.SetField(cfg.Column, cfg.Now())
				// Interception runs at construction time, before the
				// caller appends its row targeting, so predicates added
				// after this point land on the update directly.
				return upd, nil
			default:
				return q, nil
			}
		},
	}
}

package plugins

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rowlock/rowlock"
)

// AuditConfig configures the Audit plugin.
type AuditConfig struct {
	// Logger receives the audit records. Required.
	Logger *zap.Logger
	// Operations masks which operations are recorded. Defaults to all
	// mutations.
	Operations rowlock.Op
}

// Audit returns a plugin that emits a structured audit record for every
// intercepted mutation, tagged with a unique event id and the caller
// identity. It observes and never modifies the query, so it composes
// with any position in the chain; register it after enforcement plugins
// to record only operations that passed.
func Audit(cfg AuditConfig) *rowlock.Plugin {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Operations == 0 {
		cfg.Operations = rowlock.OpWrite
	}
	return &rowlock.Plugin{
		Name:    "audit",
		Version: "1.0.0",
		InterceptQuery: func(ctx context.Context, q rowlock.Query, ec *rowlock.ExecutionContext) (rowlock.Query, error) {
			if !ec.Operation.Is(cfg.Operations) {
				return q, nil
			}
			fields := []zap.Field{
				zap.String("event_id", uuid.NewString()),
				zap.Stringer("op", ec.Operation),
				zap.String("resource", ec.Resource),
			}
			if ec.Schema != "" {
				fields = append(fields, zap.String("schema", ec.Schema))
			}
			if ac := rowlock.AuthFromContext(ctx); ac != nil {
				fields = append(fields,
					zap.String("subject", ac.SubjectID),
					zap.String("tenant", ac.TenantID),
				)
			}
			log.Info("audit", fields...)
			return q, nil
		},
	}
}

// Package plugins provides reusable pipeline plugins for common
// application concerns: automatic timestamps, soft deletion and audit
// logging. Each constructor returns a plain rowlock.Plugin that composes
// with any other through the regular resolver.
package plugins

import (
	"context"
	"time"

	"github.com/rowlock/rowlock"
)

// TimestampsConfig configures the Timestamps plugin.
type TimestampsConfig struct {
	// CreatedColumn is the column stamped on create. Default "created_at".
	CreatedColumn string
	// UpdatedColumn is the column stamped on create and update. Default
	// "updated_at".
	UpdatedColumn string
	// Now supplies the timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Timestamps returns a plugin that stamps creation and update times on
// mutations. Columns the caller already set explicitly are left alone.
func Timestamps(cfg TimestampsConfig) *rowlock.Plugin {
	if cfg.CreatedColumn == "" {
		cfg.CreatedColumn = "created_at"
	}
	if cfg.UpdatedColumn == "" {
		cfg.UpdatedColumn = "updated_at"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &rowlock.Plugin{
		Name:    "timestamps",
		Version: "1.0.0",
		InterceptQuery: func(_ context.Context, q rowlock.Query, ec *rowlock.ExecutionContext) (rowlock.Query, error) {
			fs, ok := q.(rowlock.FieldSetter)
			if !ok {
				return q, nil
			}
			now := cfg.Now()
			switch {
			case ec.Operation.Is(rowlock.OpCreate | rowlock.OpReplace | rowlock.OpMerge):
				setIfAbsent(fs, cfg.CreatedColumn, now)
				setIfAbsent(fs, cfg.UpdatedColumn, now)
			case ec.Operation.Is(rowlock.OpUpdate):
				setIfAbsent(fs, cfg.UpdatedColumn, now)
			}
			return q, nil
		},
	}
}

func setIfAbsent(fs rowlock.FieldSetter, column string, v any) {
	if _, ok := fs.Field(column); !ok {
		fs.SetField(column, v)
	}
}

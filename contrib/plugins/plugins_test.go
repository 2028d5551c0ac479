package plugins

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rowlock/rowlock"
	"github.com/rowlock/rowlock/dialect"
	"github.com/rowlock/rowlock/dialect/sql"
	"github.com/rowlock/rowlock/engine"
)

// newQuery builds a query representation without a database; rendering
// it is enough to observe what a plugin did.
func newQuery(t *testing.T, op rowlock.Op, resource string) rowlock.Query {
	t.Helper()
	q, err := engine.New(sql.OpenDB(dialect.Postgres, nil)).
		Query(context.Background(), op, resource)
	require.NoError(t, err)
	return q
}

func TestTimestamps(t *testing.T) {
	frozen := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	plugin := Timestamps(TimestampsConfig{Now: func() time.Time { return frozen }})
	intercept := func(t *testing.T, q rowlock.Query, op rowlock.Op) rowlock.Query {
		t.Helper()
		ec := rowlock.NewExecutionContext(op, "orders", "")
		out, err := plugin.InterceptQuery(context.Background(), q, ec)
		require.NoError(t, err)
		return out
	}

	t.Run("create_stamps_both", func(t *testing.T) {
		q := intercept(t, newQuery(t, rowlock.OpCreate, "orders"), rowlock.OpCreate)
		fs := q.(rowlock.FieldSetter)
		created, ok := fs.Field("created_at")
		require.True(t, ok)
		assert.Equal(t, frozen, created)
		updated, ok := fs.Field("updated_at")
		require.True(t, ok)
		assert.Equal(t, frozen, updated)
	})
	t.Run("merge_stamps_both", func(t *testing.T) {
		q := intercept(t, newQuery(t, rowlock.OpMerge, "orders"), rowlock.OpMerge)
		_, ok := q.(rowlock.FieldSetter).Field("created_at")
		assert.True(t, ok)
	})
	t.Run("update_stamps_updated_only", func(t *testing.T) {
		q := intercept(t, newQuery(t, rowlock.OpUpdate, "orders"), rowlock.OpUpdate)
		fs := q.(rowlock.FieldSetter)
		_, ok := fs.Field("created_at")
		assert.False(t, ok)
		_, ok = fs.Field("updated_at")
		assert.True(t, ok)
	})
	t.Run("explicit_value_preserved", func(t *testing.T) {
		q := newQuery(t, rowlock.OpCreate, "orders")
		custom := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
		q.(rowlock.FieldSetter).SetField("created_at", custom)
		out := intercept(t, q, rowlock.OpCreate)
		v, ok := out.(rowlock.FieldSetter).Field("created_at")
		require.True(t, ok)
		assert.Equal(t, custom, v)
	})
	t.Run("reads_pass_through", func(t *testing.T) {
		q := newQuery(t, rowlock.OpRead, "orders")
		assert.Same(t, q, intercept(t, q, rowlock.OpRead))
	})
	t.Run("custom_columns", func(t *testing.T) {
		p := Timestamps(TimestampsConfig{
			CreatedColumn: "inserted",
			UpdatedColumn: "touched",
			Now:           func() time.Time { return frozen },
		})
		q := newQuery(t, rowlock.OpCreate, "orders")
		ec := rowlock.NewExecutionContext(rowlock.OpCreate, "orders", "")
		out, err := p.InterceptQuery(context.Background(), q, ec)
		require.NoError(t, err)
		_, ok := out.(rowlock.FieldSetter).Field("inserted")
		assert.True(t, ok)
		_, ok = out.(rowlock.FieldSetter).Field("touched")
		assert.True(t, ok)
	})
}

func TestSoftDelete(t *testing.T) {
	frozen := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	wire := func(t *testing.T) *rowlock.Plugin {
		t.Helper()
		p := SoftDelete(SoftDeleteConfig{
			Resources: []string{"orders"},
			Now:       func() time.Time { return frozen },
		})
		eng := engine.New(sql.OpenDB(dialect.Postgres, nil))
		require.NoError(t, p.Init(context.Background(), eng))
		return p
	}

	t.Run("reads_hide_deleted_rows", func(t *testing.T) {
		p := wire(t)
		q := newQuery(t, rowlock.OpRead, "orders")
		ec := rowlock.NewExecutionContext(rowlock.OpRead, "orders", "")
		out, err := p.InterceptQuery(context.Background(), q, ec)
		require.NoError(t, err)
		stmt, _ := out.(*engine.ReadQuery).Selector().Query()
		assert.Equal(t, `SELECT * FROM "orders" WHERE "deleted_at" IS NULL`, stmt)
	})
	t.Run("ungoverned_resource_untouched", func(t *testing.T) {
		p := wire(t)
		q := newQuery(t, rowlock.OpRead, "users")
		ec := rowlock.NewExecutionContext(rowlock.OpRead, "users", "")
		out, err := p.InterceptQuery(context.Background(), q, ec)
		require.NoError(t, err)
		assert.Same(t, q, out)
		stmt, _ := out.(*engine.ReadQuery).Selector().Query()
		assert.Equal(t, `SELECT * FROM "users"`, stmt)
	})
	t.Run("delete_becomes_marker_update", func(t *testing.T) {
		p := wire(t)
		q := newQuery(t, rowlock.OpDelete, "orders")
		ec := rowlock.NewExecutionContext(rowlock.OpDelete, "orders", "")
		out, err := p.InterceptQuery(context.Background(), q, ec)
		require.NoError(t, err)
		upd, ok := out.(*engine.UpdateQuery)
		require.True(t, ok)
		// Row targeting appended after interception lands on the update.
		upd.WhereP(func(s *sql.Selector) { s.Where(sql.EQ(s.C("id"), 7)) })
		v, ok := upd.Field("deleted_at")
		require.True(t, ok)
		assert.Equal(t, frozen, v)
	})
	t.Run("schema_scope_preserved", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		p := SoftDelete(SoftDeleteConfig{
			Resources: []string{"orders"},
			Now:       func() time.Time { return frozen },
		})
		eng := engine.New(sql.OpenDB(dialect.Postgres, db))
		require.NoError(t, p.Init(context.Background(), eng))

		// A delete intercepted on a schema-scoped handle is rewritten
		// into an update against the same schema.
		ec := rowlock.NewExecutionContext(rowlock.OpDelete, "orders", "tenant_a")
		out, err := p.InterceptQuery(context.Background(), newQuery(t, rowlock.OpDelete, "orders"), ec)
		require.NoError(t, err)

		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "tenant_a"."orders" SET "deleted_at" = $1`)).
			WithArgs(frozen).
			WillReturnResult(sqlmock.NewResult(0, 1))
		_, err = eng.Exec(context.Background(), out)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("updates_pass_through", func(t *testing.T) {
		p := wire(t)
		q := newQuery(t, rowlock.OpUpdate, "orders")
		ec := rowlock.NewExecutionContext(rowlock.OpUpdate, "orders", "")
		out, err := p.InterceptQuery(context.Background(), q, ec)
		require.NoError(t, err)
		assert.Same(t, q, out)
	})
}

func TestAudit(t *testing.T) {
	record := func(t *testing.T, cfg AuditConfig, ctx context.Context, op rowlock.Op) []observer.LoggedEntry {
		t.Helper()
		core, logs := observer.New(zap.InfoLevel)
		cfg.Logger = zap.New(core)
		p := Audit(cfg)
		q := newQuery(t, rowlock.OpCreate, "orders")
		ec := rowlock.NewExecutionContext(op, "orders", "tenant_a")
		out, err := p.InterceptQuery(ctx, q, ec)
		require.NoError(t, err)
		assert.Same(t, q, out)
		return logs.AllUntimed()
	}

	t.Run("records_mutations", func(t *testing.T) {
		ctx := rowlock.WithAuth(context.Background(), &rowlock.AuthContext{
			SubjectID: "alice",
			TenantID:  "7",
		})
		entries := record(t, AuditConfig{}, ctx, rowlock.OpCreate)
		require.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		assert.NotEmpty(t, fields["event_id"])
		assert.Equal(t, "create", fields["op"])
		assert.Equal(t, "orders", fields["resource"])
		assert.Equal(t, "tenant_a", fields["schema"])
		assert.Equal(t, "alice", fields["subject"])
		assert.Equal(t, "7", fields["tenant"])
	})
	t.Run("reads_skipped_by_default", func(t *testing.T) {
		entries := record(t, AuditConfig{}, context.Background(), rowlock.OpRead)
		assert.Empty(t, entries)
	})
	t.Run("operation_mask", func(t *testing.T) {
		entries := record(t, AuditConfig{Operations: rowlock.OpDelete}, context.Background(), rowlock.OpUpdate)
		assert.Empty(t, entries)
		entries = record(t, AuditConfig{Operations: rowlock.OpDelete}, context.Background(), rowlock.OpDelete)
		assert.Len(t, entries, 1)
	})
}

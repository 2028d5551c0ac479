package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowlock/rowlock"
	"github.com/rowlock/rowlock/dialect/sql"
)

func alwaysTrue(*rowlock.AuthContext, rowlock.Row, rowlock.Row) bool  { return true }
func alwaysFalse(*rowlock.AuthContext, rowlock.Row, rowlock.Row) bool { return false }

func TestBuilders(t *testing.T) {
	t.Run("allow", func(t *testing.T) {
		p := NewAllow(rowlock.OpWrite, alwaysTrue, WithName("writer"), WithPriority(7))
		assert.Equal(t, Allow, p.Kind)
		assert.Equal(t, rowlock.OpWrite, p.Operations)
		assert.Equal(t, "writer", p.Name)
		assert.Equal(t, 7, p.Priority)
	})
	t.Run("deny_default_priority", func(t *testing.T) {
		p := NewDeny(rowlock.OpDelete, nil)
		assert.Equal(t, Deny, p.Kind)
		assert.Equal(t, 100, p.Priority)
		// Unconditional deny always matches.
		assert.True(t, p.Match(nil, nil, nil))
	})
	t.Run("filter_reads_only", func(t *testing.T) {
		p := NewFilter(func(*rowlock.AuthContext) func(*sql.Selector) {
			return func(*sql.Selector) {}
		})
		assert.Equal(t, Filter, p.Kind)
		assert.Equal(t, rowlock.OpRead, p.Operations)
	})
	t.Run("validate_defaults_to_create_update", func(t *testing.T) {
		p := NewValidate(0, alwaysTrue)
		assert.Equal(t, rowlock.OpCreate|rowlock.OpUpdate, p.Operations)
		p = NewValidate(rowlock.OpCreate, alwaysTrue)
		assert.Equal(t, rowlock.OpCreate, p.Operations)
	})
}

func TestActivation(t *testing.T) {
	ac := &rowlock.AuthContext{
		SubjectID:   "alice",
		Environment: "production",
		Features:    map[string]bool{"beta": true},
		Timestamp:   time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	t.Run("nil_activation_is_active", func(t *testing.T) {
		p := NewDeny(rowlock.OpAll, nil)
		assert.True(t, p.Active(ac))
		assert.True(t, p.Active(nil))
	})
	t.Run("when_environment", func(t *testing.T) {
		p := WhenEnvironment(NewDeny(rowlock.OpAll, nil), "staging", "production")
		assert.True(t, p.Active(ac))
		p = WhenEnvironment(NewDeny(rowlock.OpAll, nil), "staging")
		assert.False(t, p.Active(ac))
		assert.False(t, p.Active(nil))
	})
	t.Run("when_feature", func(t *testing.T) {
		assert.True(t, WhenFeature(NewDeny(rowlock.OpAll, nil), "beta").Active(ac))
		assert.False(t, WhenFeature(NewDeny(rowlock.OpAll, nil), "gamma").Active(ac))
	})
	t.Run("when_time_range", func(t *testing.T) {
		from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		until := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		assert.True(t, WhenTimeRange(NewDeny(rowlock.OpAll, nil), from, until).Active(ac))
		past := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		assert.False(t, WhenTimeRange(NewDeny(rowlock.OpAll, nil), past, from).Active(ac))
	})
	t.Run("conditions_chain_with_and", func(t *testing.T) {
		p := NewDeny(rowlock.OpAll, nil)
		p = WhenEnvironment(p, "production")
		p = WhenFeature(p, "beta")
		assert.True(t, p.Active(ac))
		noBeta := &rowlock.AuthContext{Environment: "production"}
		assert.False(t, p.Active(noBeta))
	})
	t.Run("original_policy_unchanged", func(t *testing.T) {
		base := NewDeny(rowlock.OpAll, nil, WithName("base"))
		_ = WhenEnvironment(base, "staging")
		assert.True(t, base.Active(ac))
	})
}

func TestCompose(t *testing.T) {
	a := NewAllow(rowlock.OpRead, alwaysTrue, WithName("a"))
	b := NewDeny(rowlock.OpWrite, nil, WithName("b"))
	c := NewValidate(0, alwaysTrue, WithName("c"))

	t.Run("compose_preserves_order", func(t *testing.T) {
		out := ComposePolicies([]Policy{a}, []Policy{b, c})
		require.Len(t, out, 3)
		assert.Equal(t, []string{"a", "b", "c"}, []string{out[0].Name, out[1].Name, out[2].Name})
	})
	t.Run("extend_appends", func(t *testing.T) {
		base := []Policy{a}
		out := ExtendPolicy(base, b)
		assert.Len(t, base, 1)
		require.Len(t, out, 2)
		assert.Equal(t, "b", out[1].Name)
	})
	t.Run("override_replaces_by_name", func(t *testing.T) {
		replacement := NewDeny(rowlock.OpAll, nil, WithName("b"), WithPriority(999))
		out := OverridePolicy([]Policy{a, b}, "b", replacement)
		require.Len(t, out, 2)
		assert.Equal(t, 999, out[1].Priority)
		// The base bundle keeps its original rule.
		assert.Equal(t, 100, b.Priority)
	})
	t.Run("override_without_match", func(t *testing.T) {
		out := OverridePolicy([]Policy{a}, "ghost", b)
		require.Len(t, out, 1)
		assert.Equal(t, "a", out[0].Name)
	})
}

func TestPresets(t *testing.T) {
	tenant7 := &rowlock.AuthContext{SubjectID: "alice", TenantID: "7"}

	t.Run("tenant_isolation_write", func(t *testing.T) {
		bundle := TenantIsolation("tenant_id")
		require.Len(t, bundle, 2)
		write := bundle[1]
		assert.Equal(t, Allow, write.Kind)
		assert.True(t, write.Match(tenant7, nil, rowlock.Row{"tenant_id": "7"}))
		assert.False(t, write.Match(tenant7, nil, rowlock.Row{"tenant_id": "9"}))
		// Without an explicit tenant the caller's is inherited.
		assert.True(t, write.Match(tenant7, nil, rowlock.Row{}))
		// The current row decides when the data does not carry the column.
		assert.False(t, write.Match(tenant7, rowlock.Row{"tenant_id": "9"}, rowlock.Row{}))
	})
	t.Run("owned_by_write", func(t *testing.T) {
		write := OwnedBy("owner_id")[1]
		assert.True(t, write.Match(tenant7, rowlock.Row{"owner_id": "alice"}, nil))
		assert.False(t, write.Match(tenant7, rowlock.Row{"owner_id": "bob"}, nil))
	})
	t.Run("status_gated", func(t *testing.T) {
		deny := StatusGated("status", "pending", "paid")[0]
		assert.Equal(t, Deny, deny.Kind)
		assert.Equal(t, rowlock.OpUpdate|rowlock.OpDelete, deny.Operations)
		assert.True(t, deny.Match(tenant7, rowlock.Row{"status": "shipped"}, nil))
		assert.False(t, deny.Match(tenant7, rowlock.Row{"status": "pending"}, nil))
		// Rows without the column are not gated.
		assert.False(t, deny.Match(tenant7, rowlock.Row{}, nil))
	})
	t.Run("admin_bypass", func(t *testing.T) {
		allow := AdminBypass("admin", "superuser")[0]
		assert.Equal(t, rowlock.OpAll, allow.Operations)
		assert.Equal(t, 1000, allow.Priority)
		admin := &rowlock.AuthContext{Roles: []string{"admin"}}
		assert.True(t, allow.Match(admin, nil, nil))
		assert.False(t, allow.Match(tenant7, nil, nil))
	})
}

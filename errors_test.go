package rowlock

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPluginError(t *testing.T) {
	t.Run("messages", func(t *testing.T) {
		tests := []struct {
			err  *PluginError
			want string
		}{
			{&PluginError{Kind: DuplicateName, Plugin: "audit"}, `rowlock: duplicate plugin name "audit"`},
			{&PluginError{Kind: MissingDependency, Plugin: "rls", Dependency: "metrics"}, `rowlock: plugin "rls" depends on missing plugin "metrics"`},
			{&PluginError{Kind: Conflict, Plugin: "a", Dependency: "b"}, `rowlock: plugin "a" conflicts with plugin "b"`},
			{&PluginError{Kind: CircularDependency, Cycle: []string{"a", "b", "a"}}, "rowlock: circular plugin dependency: a -> b -> a"},
		}
		for _, tt := range tests {
			assert.Equal(t, tt.want, tt.err.Error())
		}
	})
	t.Run("kind_filter", func(t *testing.T) {
		err := fmt.Errorf("setup: %w", &PluginError{Kind: Conflict, Plugin: "a", Dependency: "b"})
		assert.True(t, IsPluginError(err))
		assert.True(t, IsPluginError(err, Conflict))
		assert.True(t, IsPluginError(err, DuplicateName, Conflict))
		assert.False(t, IsPluginError(err, CircularDependency))
		assert.False(t, IsPluginError(errors.New("boom")))
	})
	t.Run("unwrap", func(t *testing.T) {
		cause := errors.New("dial failed")
		err := &PluginError{Kind: InitializationFailed, Plugin: "audit", Err: cause}
		assert.ErrorIs(t, err, cause)
	})
}

func TestViolationError(t *testing.T) {
	t.Run("matches_sentinel", func(t *testing.T) {
		err := NewViolationError("orders", OpUpdate, "status-gate", "")
		assert.ErrorIs(t, err, ErrPolicyViolation)
		assert.True(t, IsViolation(err))
		assert.True(t, IsViolation(fmt.Errorf("repo: %w", err)))
		assert.False(t, IsViolation(nil))
		assert.False(t, IsViolation(errors.New("boom")))
	})
	t.Run("default_reason", func(t *testing.T) {
		err := NewViolationError("orders", OpDelete, "", "")
		assert.Equal(t, "operation not permitted", err.Reason)
	})
	t.Run("singular_label", func(t *testing.T) {
		err := NewViolationError("orders", OpUpdate, "status-gate", "shipped orders are frozen")
		assert.Contains(t, err.Error(), "update on order")
		assert.Contains(t, err.Error(), `policy "status-gate"`)
	})
}

func TestContextError(t *testing.T) {
	err := NewContextError("orders", OpRead)
	assert.ErrorIs(t, err, ErrContextRequired)
	assert.True(t, IsContextError(err))
	assert.False(t, IsContextError(errors.New("boom")))
	assert.Contains(t, err.Error(), "requires an auth context")
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("orders", 42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(fmt.Errorf("repo: %w", err)))
	assert.False(t, IsNotFound(nil))
	assert.Equal(t, "orders", err.Resource())
	assert.Equal(t, 42, err.ID())
	assert.Contains(t, err.Error(), "order not found (id=42)")
}

func TestAggregateError(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.NoError(t, NewAggregateError())
		assert.NoError(t, NewAggregateError(nil, nil))
	})
	t.Run("single_passthrough", func(t *testing.T) {
		cause := errors.New("boom")
		assert.Same(t, cause, NewAggregateError(nil, cause, nil))
	})
	t.Run("multiple", func(t *testing.T) {
		err := NewAggregateError(errors.New("first"), errors.New("second"))
		var agg *AggregateError
		require.ErrorAs(t, err, &agg)
		assert.Len(t, agg.Errors, 2)
		assert.Contains(t, err.Error(), "multiple errors")
		assert.Contains(t, err.Error(), "first")
		assert.Contains(t, err.Error(), "second")
	})
}

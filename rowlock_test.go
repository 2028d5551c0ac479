package rowlock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOp(t *testing.T) {
	t.Run("is", func(t *testing.T) {
		assert.True(t, OpRead.Is(OpAll))
		assert.True(t, OpUpdate.Is(OpWrite))
		assert.True(t, OpUpdate.Is(OpCreate|OpUpdate))
		assert.False(t, OpRead.Is(OpWrite))
		assert.False(t, OpDelete.Is(OpCreate|OpUpdate))
	})
	t.Run("mutating", func(t *testing.T) {
		assert.False(t, OpRead.Mutating())
		for _, op := range []Op{OpCreate, OpUpdate, OpReplace, OpDelete, OpMerge} {
			assert.True(t, op.Mutating(), op.String())
		}
	})
	t.Run("string", func(t *testing.T) {
		assert.Equal(t, "read", OpRead.String())
		assert.Equal(t, "create|update", (OpCreate | OpUpdate).String())
		assert.Equal(t, "invalid", Op(0).String())
	})
	t.Run("each_order", func(t *testing.T) {
		var got []Op
		(OpDelete | OpRead | OpUpdate).Each(func(op Op) { got = append(got, op) })
		assert.Equal(t, []Op{OpRead, OpUpdate, OpDelete}, got)
	})
	t.Run("from_string", func(t *testing.T) {
		op, ok := OpFromString("merge")
		require.True(t, ok)
		assert.Equal(t, OpMerge, op)
		_, ok = OpFromString("drop")
		assert.False(t, ok)
	})
}

func TestRowClone(t *testing.T) {
	r := Row{"id": 1, "name": "a"}
	c := r.Clone()
	c["name"] = "b"
	assert.Equal(t, "a", r["name"])
	assert.Nil(t, Row(nil).Clone())
}

func TestExecutionContext(t *testing.T) {
	ec := NewExecutionContext(OpUpdate, "orders", "tenant7")
	assert.Equal(t, OpUpdate, ec.Operation)
	assert.Equal(t, "orders", ec.Resource)
	assert.Equal(t, "tenant7", ec.Schema)

	t.Run("metadata", func(t *testing.T) {
		_, ok := ec.Get("k")
		assert.False(t, ok)
		ec.Set("k", 42)
		v, ok := ec.Get("k")
		require.True(t, ok)
		assert.Equal(t, 42, v)
	})
	t.Run("skip", func(t *testing.T) {
		assert.False(t, ec.Skipped("audit"))
		ec.SkipPlugin("audit")
		assert.True(t, ec.Skipped("audit"))
		assert.False(t, ec.Skipped("rls"))
	})
}

func TestAuthContext(t *testing.T) {
	t.Run("roles", func(t *testing.T) {
		ac := &AuthContext{Roles: []string{"editor", "viewer"}}
		assert.True(t, ac.HasRole("editor"))
		assert.False(t, ac.HasRole("admin"))
		assert.True(t, ac.HasAnyRole("admin", "viewer"))
		assert.False(t, ac.HasAnyRole("admin", "owner"))
	})
	t.Run("nil_safe", func(t *testing.T) {
		var ac *AuthContext
		assert.False(t, ac.HasRole("any"))
		assert.False(t, ac.HasAnyRole("any"))
		assert.False(t, ac.HasFeature("any"))
	})
	t.Run("features", func(t *testing.T) {
		ac := &AuthContext{Features: map[string]bool{"beta": true, "off": false}}
		assert.True(t, ac.HasFeature("beta"))
		assert.False(t, ac.HasFeature("off"))
		assert.False(t, ac.HasFeature("absent"))
	})
	t.Run("context_round_trip", func(t *testing.T) {
		assert.Nil(t, AuthFromContext(context.Background()))
		ac := &AuthContext{SubjectID: "alice", Timestamp: time.Now()}
		ctx := WithAuth(context.Background(), ac)
		assert.Same(t, ac, AuthFromContext(ctx))
	})
	t.Run("scoped_identity", func(t *testing.T) {
		outer := WithAuth(context.Background(), &AuthContext{SubjectID: "alice"})
		inner := WithAuth(outer, &AuthContext{SubjectID: "bob"})
		assert.Equal(t, "bob", AuthFromContext(inner).SubjectID)
		// The outer scope is untouched.
		assert.Equal(t, "alice", AuthFromContext(outer).SubjectID)
	})
}

// innerEngine does not implement Rawer and terminates unwrapping.
type innerEngine struct{ Engine }

type wrappedEngine struct{ Engine }

func (w *wrappedEngine) Raw() Engine { return w.Engine }

func TestRaw(t *testing.T) {
	inner := &innerEngine{}
	once := &wrappedEngine{Engine: inner}
	twice := &wrappedEngine{Engine: once}
	assert.Same(t, inner, Raw(twice))
	assert.Same(t, inner, Raw(once))
	assert.Same(t, inner, Raw(inner))
}

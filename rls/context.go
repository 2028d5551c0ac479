package rls

import (
	"context"
	"time"

	"github.com/rowlock/rowlock"
)

// System returns a privileged system identity that bypasses all policy
// evaluation.
func System() *rowlock.AuthContext {
	return &rowlock.AuthContext{
		SubjectID: "system",
		IsSystem:  true,
		Timestamp: time.Now(),
	}
}

// RunAs runs fn with the given identity installed on a derived context.
// The outer context is untouched; the identity ends with the scope.
func RunAs(ctx context.Context, ac *rowlock.AuthContext, fn func(context.Context) error) error {
	return fn(rowlock.WithAuth(ctx, ac))
}

// RunAsSystem runs fn with a system identity, for maintenance paths that
// must see and touch every row.
func RunAsSystem(ctx context.Context, fn func(context.Context) error) error {
	return RunAs(ctx, System(), fn)
}

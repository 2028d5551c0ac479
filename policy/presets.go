package policy

import (
	"slices"

	"github.com/rowlock/rowlock"
	"github.com/rowlock/rowlock/dialect/sql"
)

// Common access patterns, pre-built from the same primitives as any
// user-defined bundle. They are plain bundles: compose, extend or
// override them like any other.

// TenantIsolation confines all access to the caller's tenant: reads are
// filtered on column, and writes are allowed only when the incoming data
// (or the current row) carries the caller's tenant.
func TenantIsolation(column string) []Policy {
	return []Policy{
		NewFilter(func(ac *rowlock.AuthContext) func(*sql.Selector) {
			return func(s *sql.Selector) {
				s.Where(sql.EQ(s.C(column), ac.TenantID))
			}
		}, WithName("tenant-isolation/read")),
		NewAllow(rowlock.OpWrite, func(ac *rowlock.AuthContext, row, data rowlock.Row) bool {
			v, ok := fieldValue(row, data, column)
			// Creates without an explicit tenant inherit the caller's.
			return !ok || v == ac.TenantID
		}, WithName("tenant-isolation/write")),
	}
}

// OwnedBy grants access only to rows owned by the caller: reads are
// filtered on column = subject, and writes require the row (or incoming
// data) to name the caller as owner.
func OwnedBy(column string) []Policy {
	return []Policy{
		NewFilter(func(ac *rowlock.AuthContext) func(*sql.Selector) {
			return func(s *sql.Selector) {
				s.Where(sql.EQ(s.C(column), ac.SubjectID))
			}
		}, WithName("ownership/read")),
		NewAllow(rowlock.OpWrite, func(ac *rowlock.AuthContext, row, data rowlock.Row) bool {
			v, ok := fieldValue(row, data, column)
			return !ok || v == ac.SubjectID
		}, WithName("ownership/write")),
	}
}

// WithoutSoftDeleted hides soft-deleted rows from reads. column is the
// deletion marker (e.g. "deleted_at"); rows where it is non-null are
// filtered out.
func WithoutSoftDeleted(column string) []Policy {
	return []Policy{
		NewFilter(func(*rowlock.AuthContext) func(*sql.Selector) {
			return func(s *sql.Selector) {
				s.Where(sql.IsNull(s.C(column)))
			}
		}, WithName("soft-delete/read")),
	}
}

// StatusGated denies updates and deletes of rows whose status column
// holds a value outside the mutable set.
func StatusGated(column string, mutable ...string) []Policy {
	return []Policy{
		NewDeny(rowlock.OpUpdate|rowlock.OpDelete, func(_ *rowlock.AuthContext, row, _ rowlock.Row) bool {
			v, ok := row[column].(string)
			if !ok {
				return false
			}
			return !slices.Contains(mutable, v)
		}, WithName("status-gate")),
	}
}

// AdminBypass allows every operation for callers holding any of the
// given roles. Its priority outranks default-priority deny policies;
// pair with explicit higher-priority denies to pierce it.
func AdminBypass(roles ...string) []Policy {
	return []Policy{
		NewAllow(rowlock.OpAll, func(ac *rowlock.AuthContext, _, _ rowlock.Row) bool {
			return ac.HasAnyRole(roles...)
		}, WithName("admin-bypass"), WithPriority(1000)),
	}
}

// fieldValue returns the value of the named column from the incoming
// data when present, falling back to the current row.
func fieldValue(row, data rowlock.Row, column string) (any, bool) {
	if v, ok := data[column]; ok {
		return v, true
	}
	v, ok := row[column]
	return v, ok
}

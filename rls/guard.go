package rls

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rowlock/rowlock"
	"github.com/rowlock/rowlock/policy"
)

// CheckRead reports whether the caller may see the given row. It
// evaluates the allow/deny rules declared for reads; filter policies are
// applied at query time and do not participate here.
func (e *Enforcer) CheckRead(ctx context.Context, resource string, row rowlock.Row) error {
	return e.check(ctx, resource, rowlock.OpRead, row, nil)
}

// CheckCreate reports whether the caller may create a row with the given
// data.
func (e *Enforcer) CheckCreate(ctx context.Context, resource string, data rowlock.Row) error {
	return e.check(ctx, resource, rowlock.OpCreate, nil, data)
}

// CheckUpdate reports whether the caller may apply data to the given
// row.
func (e *Enforcer) CheckUpdate(ctx context.Context, resource string, row, data rowlock.Row) error {
	return e.check(ctx, resource, rowlock.OpUpdate, row, data)
}

// CheckDelete reports whether the caller may delete the given row.
func (e *Enforcer) CheckDelete(ctx context.Context, resource string, row rowlock.Row) error {
	return e.check(ctx, resource, rowlock.OpDelete, row, nil)
}

// check is the guard core. The compiled bucket is walked once, highest
// priority first; the first matching deny and the first matching allow
// decide the outcome, and a matching deny wins at equal or higher
// priority. Validate policies are evaluated independently and all must
// pass. Ungoverned resources, system identities and bypass roles pass
// unconditionally; otherwise the default is closed.
func (e *Enforcer) check(ctx context.Context, resource string, op rowlock.Op, row, data rowlock.Row) error {
	if !e.reg.HasResource(resource) {
		return nil
	}
	ac := rowlock.AuthFromContext(ctx)
	if e.bypass(ac) {
		return nil
	}
	if ac == nil && e.cfg.RequireContext {
		return rowlock.NewContextError(resource, op)
	}
	// Conditions always receive a non-nil identity. A caller without
	// context evaluates as an anonymous zero-valued subject, so
	// identity-reading conditions fall through to the closed default
	// instead of dereferencing nil.
	eval := ac
	if eval == nil {
		eval = &rowlock.AuthContext{}
	}
	var (
		denyMatched, allowMatched bool
		denyPriority              int
		denyName                  string
		allowPriority             int
	)
	for _, p := range e.reg.Rules(resource, op) {
		if !p.Active(eval) {
			continue
		}
		switch p.Kind {
		case policy.Deny:
			if !denyMatched && p.Match(eval, row, data) {
				denyMatched = true
				denyPriority = p.Priority
				denyName = p.Name
			}
		case policy.Allow:
			if !allowMatched && p.Match(eval, row, data) {
				allowMatched = true
				allowPriority = p.Priority
			}
		case policy.Validate:
			if !p.Match(eval, row, data) {
				return e.violation(ctx, ac, resource, op, p.Name, "validation failed")
			}
		}
	}
	switch {
	case denyMatched && (!allowMatched || denyPriority >= allowPriority):
		return e.violation(ctx, ac, resource, op, denyName, "")
	case !allowMatched:
		return e.violation(ctx, ac, resource, op, "", "no policy allows the operation")
	}
	return nil
}

// violation logs and reports a blocked operation.
func (e *Enforcer) violation(ctx context.Context, ac *rowlock.AuthContext, resource string, op rowlock.Op, policyName, reason string) error {
	err := rowlock.NewViolationError(resource, op, policyName, reason)
	if ac != nil {
		err.SubjectID = ac.SubjectID
	}
	e.log.Warn("policy violation",
		zap.String("resource", resource),
		zap.Stringer("op", op),
		zap.String("policy", policyName),
		zap.String("subject", err.SubjectID),
	)
	if e.cfg.OnViolation != nil {
		e.cfg.OnViolation(ctx, &ViolationEvent{
			ID:        uuid.NewString(),
			Resource:  resource,
			Operation: op,
			SubjectID: err.SubjectID,
			Policy:    policyName,
			Reason:    err.Reason,
		})
	}
	return err
}

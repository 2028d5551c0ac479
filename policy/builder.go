package policy

import "github.com/rowlock/rowlock"

// Option configures a policy produced by one of the factories.
type Option func(*Policy)

// WithName names the policy. Named policies can be replaced with
// OverridePolicy and are reported in violations.
func WithName(name string) Option {
	return func(p *Policy) { p.Name = name }
}

// WithPriority overrides the policy's evaluation priority.
func WithPriority(priority int) Option {
	return func(p *Policy) { p.Priority = priority }
}

// WithActivation sets the policy's activation condition.
func WithActivation(fn Activation) Option {
	return func(p *Policy) { p.Activation = fn }
}

// NewAllow returns an allow policy for the given operations. The
// operation succeeds when no matching deny outranks it and cond holds.
func NewAllow(ops rowlock.Op, cond Condition, opts ...Option) Policy {
	p := Policy{Kind: Allow, Operations: ops, Condition: cond}
	return apply(p, opts)
}

// NewDeny returns a deny policy for the given operations. A nil cond
// denies unconditionally. Deny policies default to priority 100 so they
// outrank allow policies (default 0) unless explicitly overridden.
func NewDeny(ops rowlock.Op, cond Condition, opts ...Option) Policy {
	p := Policy{Kind: Deny, Operations: ops, Condition: cond, Priority: 100}
	return apply(p, opts)
}

// NewFilter returns a filter policy narrowing read queries with the
// predicates produced by pred.
func NewFilter(pred Predicate, opts ...Option) Policy {
	p := Policy{Kind: Filter, Operations: rowlock.OpRead, Predicate: pred}
	return apply(p, opts)
}

// NewValidate returns a validate policy for create and/or update. ops
// defaults to both when zero.
func NewValidate(ops rowlock.Op, cond Condition, opts ...Option) Policy {
	if ops == 0 {
		ops = rowlock.OpCreate | rowlock.OpUpdate
	}
	p := Policy{Kind: Validate, Operations: ops, Condition: cond}
	return apply(p, opts)
}

func apply(p Policy, opts []Option) Policy {
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Package policy provides the declarative authorization building blocks
// of rowlock: policy records, factory builders, conditional activation
// wrappers, bundle composition, reusable access patterns, and the
// compiled registry consumed by the row-level-security plugin.
package policy

import (
	"errors"

	"github.com/rowlock/rowlock"
	"github.com/rowlock/rowlock/dialect/sql"
)

// Kind classifies what a policy does when it matches.
type Kind uint8

// Policy kinds.
const (
	// Allow grants the operation when the condition holds.
	Allow Kind = iota + 1
	// Deny rejects the operation when the condition holds. Deny wins
	// over Allow at equal or higher priority.
	Deny
	// Filter narrows read queries with additional predicates. Filter
	// policies apply only to reads.
	Filter
	// Validate checks incoming data for create and update. All matching
	// validate policies must pass, independent of allow/deny.
	Validate
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case Filter:
		return "filter"
	case Validate:
		return "validate"
	default:
		return "unknown"
	}
}

// Condition decides whether a policy matches a call. ac is never nil:
// a caller without an auth context is presented as a zero-valued
// identity. row holds the current row state when available (update,
// delete, ad-hoc read checks); data holds the incoming values for
// create and update. Either may be nil depending on the operation.
type Condition func(ac *rowlock.AuthContext, row, data rowlock.Row) bool

// Predicate produces the storage predicates a filter policy injects into
// a read query for the given auth context.
type Predicate func(ac *rowlock.AuthContext) func(*sql.Selector)

// Activation gates whether a policy participates in evaluation at all
// (environment, feature flag, time window, custom predicate). A nil
// activation means always active.
type Activation func(ac *rowlock.AuthContext) bool

// Policy is a single declarative authorization rule.
type Policy struct {
	// Name identifies the policy in violations and for OverridePolicy.
	Name string
	// Kind determines the rule's effect.
	Kind Kind
	// Operations is the mask of operations the policy applies to.
	Operations rowlock.Op
	// Condition decides whether the policy matches. Nil means
	// always-matching (valid only for Deny).
	Condition Condition
	// Predicate supplies filter predicates. Set only for Filter.
	Predicate Predicate
	// Priority orders evaluation; higher evaluates first. Deny policies
	// default to 100, everything else to 0.
	Priority int
	// Activation conditionally enables the policy.
	Activation Activation
}

// Active reports whether the policy participates for the given context.
func (p Policy) Active(ac *rowlock.AuthContext) bool {
	return p.Activation == nil || p.Activation(ac)
}

// Match reports whether the policy's condition holds.
func (p Policy) Match(ac *rowlock.AuthContext, row, data rowlock.Row) bool {
	return p.Condition == nil || p.Condition(ac, row, data)
}

// Schema maps resource names to their declared policies. It is the input
// of Compile.
type Schema map[string][]Policy

// ErrMalformed is wrapped by all schema validation failures.
var ErrMalformed = errors.New("policy: malformed policy")

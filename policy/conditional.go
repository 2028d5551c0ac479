package policy

import (
	"slices"
	"time"

	"github.com/rowlock/rowlock"
)

// WhenCondition returns a copy of p activated only when fn holds. When p
// already carries an activation condition the two chain with logical
// AND: the inner condition must also hold.
func WhenCondition(p Policy, fn Activation) Policy {
	inner := p.Activation
	if inner == nil {
		p.Activation = fn
		return p
	}
	p.Activation = func(ac *rowlock.AuthContext) bool {
		return fn(ac) && inner(ac)
	}
	return p
}

// WhenEnvironment activates p only in the named environments.
func WhenEnvironment(p Policy, environments ...string) Policy {
	return WhenCondition(p, func(ac *rowlock.AuthContext) bool {
		return ac != nil && slices.Contains(environments, ac.Environment)
	})
}

// WhenFeature activates p only when the named feature flag is enabled
// for the caller.
func WhenFeature(p Policy, feature string) Policy {
	return WhenCondition(p, func(ac *rowlock.AuthContext) bool {
		return ac.HasFeature(feature)
	})
}

// WhenTimeRange activates p only when the context timestamp (or the
// current time, if the context carries none) falls within [from, until).
func WhenTimeRange(p Policy, from, until time.Time) Policy {
	return WhenCondition(p, func(ac *rowlock.AuthContext) bool {
		now := time.Now()
		if ac != nil && !ac.Timestamp.IsZero() {
			now = ac.Timestamp
		}
		return !now.Before(from) && now.Before(until)
	})
}

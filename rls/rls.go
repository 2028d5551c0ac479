// Package rls implements row-level security as a pipeline plugin. It
// compiles a declarative policy schema into a registry, narrows read
// queries with the filter predicates active for the caller, and guards
// repository mutations with allow/deny/validate evaluation. Resources
// without declared policies pass through untouched.
package rls

import (
	"context"

	"go.uber.org/zap"

	"github.com/rowlock/rowlock"
	"github.com/rowlock/rowlock/policy"
)

// PluginName is the name the plugin registers under. Other plugins
// order themselves relative to it through their dependency lists.
const PluginName = "rls"

// ViolationEvent describes a blocked operation for audit sinks.
type ViolationEvent struct {
	// ID is a unique event identifier.
	ID string
	// Resource is the governed resource the operation targeted.
	Resource string
	// Operation is the blocked operation.
	Operation rowlock.Op
	// SubjectID identifies the caller, empty when no context was set.
	SubjectID string
	// Policy names the blocking policy, if it has a name.
	Policy string
	// Reason is the violation reason.
	Reason string
}

// Config configures the row-level-security plugin.
type Config struct {
	// Resources declares the policies per resource. Ignored when
	// Registry is set.
	Resources policy.Schema
	// Registry supplies a precompiled registry, for callers that share
	// one across pipelines or compile at program start.
	Registry *policy.Registry

	// RequireContext rejects operations on governed resources that run
	// without an auth context, instead of silently returning no rows.
	RequireContext bool
	// AllowUnfiltered lets context-less reads of governed resources pass
	// without filtering. Without it such reads match no rows. It has no
	// effect when RequireContext is set.
	AllowUnfiltered bool
	// BypassRoles names roles that skip all policy evaluation, in
	// addition to system identities.
	BypassRoles []string

	// OnViolation is invoked for every blocked operation, after the
	// violation is logged and before the error is returned.
	OnViolation func(ctx context.Context, ev *ViolationEvent)
	// Logger receives violation and lifecycle logs. Defaults to a nop
	// logger.
	Logger *zap.Logger
}

// New compiles the policy schema and returns the row-level-security
// plugin. Schema compilation failures surface here, before the plugin
// ever joins a pipeline.
func New(cfg Config) (*rowlock.Plugin, error) {
	e, err := NewEnforcer(cfg)
	if err != nil {
		return nil, err
	}
	return &rowlock.Plugin{
		Name:             PluginName,
		Version:          "1.0.0",
		InterceptQuery:   e.intercept,
		ExtendRepository: e.extend,
		Destroy: func(context.Context) error {
			e.reg.Clear()
			return nil
		},
	}, nil
}

// Enforcer evaluates compiled policies. It backs the plugin hooks and is
// exported for ad-hoc permission checks outside the repository path.
type Enforcer struct {
	reg *policy.Registry
	cfg Config
	log *zap.Logger
}

// NewEnforcer compiles the policy schema and returns a standalone
// enforcer.
func NewEnforcer(cfg Config) (*Enforcer, error) {
	reg := cfg.Registry
	if reg == nil {
		var err error
		reg, err = policy.Compile(cfg.Resources)
		if err != nil {
			return nil, err
		}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Enforcer{reg: reg, cfg: cfg, log: log}, nil
}

// Registry returns the compiled registry the enforcer evaluates.
func (e *Enforcer) Registry() *policy.Registry { return e.reg }

// bypass reports whether the caller skips policy evaluation entirely.
func (e *Enforcer) bypass(ac *rowlock.AuthContext) bool {
	if ac == nil {
		return false
	}
	return ac.IsSystem || ac.HasAnyRole(e.cfg.BypassRoles...)
}

// extend wraps a repository with the mutation guards.
func (e *Enforcer) extend(repo rowlock.Repository) rowlock.Repository {
	return &guardedRepository{Repository: repo, e: e}
}

package rowlock

import "context"

// Plugin declares a middleware participating in the interception
// pipeline. Plugins are plain records: identity and graph metadata plus
// optional lifecycle and hook functions. A registered set is validated
// and ordered by the resolver before any hook runs.
type Plugin struct {
	// Name uniquely identifies the plugin within a registered set.
	Name string
	// Version is informational.
	Version string
	// Dependencies names plugins that must be registered and must run
	// before this one.
	Dependencies []string
	// ConflictsWith names plugins that must not be co-registered.
	ConflictsWith []string
	// Priority breaks ordering ties between independent plugins; higher
	// runs first. Defaults to 0.
	Priority int

	// Init is called once during pipeline construction, in resolved
	// order. A failure aborts the remaining initializations.
	Init func(ctx context.Context, eng Engine) error
	// Destroy is called during pipeline teardown, in reverse resolved
	// order, so later-initialized plugins release resources first.
	Destroy func(ctx context.Context) error
	// InterceptQuery transforms the query representation of an
	// intercepted entry-point call. It may return a different
	// representation. Interceptors run in resolved order.
	InterceptQuery func(ctx context.Context, q Query, ec *ExecutionContext) (Query, error)
	// ExtendRepository wraps a repository with additional behavior.
	// Extensions are applied in resolved order.
	ExtendRepository func(repo Repository) Repository
}

// Repository is the capability interface a value must satisfy for
// repository extensions to apply: a resource name, an engine handle, and
// the standard row operations.
type Repository interface {
	// ResourceName returns the table or resource this repository manages.
	ResourceName() string
	// Engine returns the engine handle the repository executes against.
	Engine() Engine

	FindByID(ctx context.Context, id any) (Row, error)
	FindAll(ctx context.Context) ([]Row, error)
	Create(ctx context.Context, data Row) (Row, error)
	Update(ctx context.Context, id any, data Row) (Row, error)
	Delete(ctx context.Context, id any) error
}

package policy

import (
	"fmt"
	"sort"

	"github.com/rowlock/rowlock"
)

// Registry holds a compiled policy schema indexed by (resource,
// operation), each bucket sorted by priority descending with declaration
// order breaking ties. A registry is built once at initialization time
// and is immutable thereafter, making concurrent reads safe without
// locking; rebuilding requires re-initializing the plugin set.
type Registry struct {
	buckets   map[string]map[rowlock.Op][]Policy
	resources []string
}

// Compile validates the schema and builds a registry from it.
// Multi-operation policies are expanded into one entry per operation.
// A validation failure aborts compilation; no partial registry is
// returned.
func Compile(schema Schema) (*Registry, error) {
	r := &Registry{buckets: make(map[string]map[rowlock.Op][]Policy, len(schema))}
	for resource, policies := range schema {
		ops := make(map[rowlock.Op][]Policy)
		for i, p := range policies {
			if err := validate(resource, i, p); err != nil {
				return nil, err
			}
			p.Operations.Each(func(op rowlock.Op) {
				ops[op] = append(ops[op], p)
			})
		}
		for op := range ops {
			bucket := ops[op]
			sort.SliceStable(bucket, func(i, j int) bool {
				return bucket[i].Priority > bucket[j].Priority
			})
			ops[op] = bucket
		}
		r.buckets[resource] = ops
		r.resources = append(r.resources, resource)
	}
	sort.Strings(r.resources)
	return r, nil
}

// validate fails fast on malformed policies.
func validate(resource string, idx int, p Policy) error {
	name := p.Name
	if name == "" {
		name = fmt.Sprintf("#%d", idx)
	}
	fail := func(format string, a ...any) error {
		return fmt.Errorf("%w: resource %q policy %s: %s", ErrMalformed, resource, name, fmt.Sprintf(format, a...))
	}
	if p.Operations == 0 {
		return fail("no operations declared")
	}
	switch p.Kind {
	case Allow:
		if p.Condition == nil {
			return fail("allow policy requires a condition")
		}
	case Deny:
		// An unconditional deny is legal.
	case Filter:
		if p.Predicate == nil {
			return fail("filter policy requires a predicate")
		}
		if p.Operations != rowlock.OpRead {
			return fail("filter policies apply only to read, got %s", p.Operations)
		}
	case Validate:
		if p.Condition == nil {
			return fail("validate policy requires a condition")
		}
		if p.Operations&^(rowlock.OpCreate|rowlock.OpUpdate) != 0 {
			return fail("validate policies apply only to create/update, got %s", p.Operations)
		}
	default:
		return fail("unknown policy kind %d", p.Kind)
	}
	return nil
}

// Rules returns the compiled bucket for (resource, op), highest priority
// first. The returned slice must not be modified.
func (r *Registry) Rules(resource string, op rowlock.Op) []Policy {
	return r.buckets[resource][op]
}

// Filters returns the compiled filter policies for reads of resource.
func (r *Registry) Filters(resource string) []Policy {
	var out []Policy
	for _, p := range r.Rules(resource, rowlock.OpRead) {
		if p.Kind == Filter {
			out = append(out, p)
		}
	}
	return out
}

// HasResource reports whether the registry governs the named resource.
func (r *Registry) HasResource(name string) bool {
	_, ok := r.buckets[name]
	return ok
}

// Resources returns the governed resource names, sorted.
func (r *Registry) Resources() []string {
	out := make([]string, len(r.resources))
	copy(out, r.resources)
	return out
}

// Clear frees the compiled state. The registry is unusable afterwards;
// it exists for teardown symmetry with Compile.
func (r *Registry) Clear() {
	r.buckets = map[string]map[rowlock.Op][]Policy{}
	r.resources = nil
}

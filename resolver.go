package rowlock

import "sort"

// ValidatePlugins checks a plugin set for duplicate names, missing
// dependencies, declared conflicts and dependency cycles. The first
// failure found is returned as a *PluginError; a nil return means the
// set is well-formed and ResolveOrder will succeed.
func ValidatePlugins(plugins []*Plugin) error {
	byName := make(map[string]*Plugin, len(plugins))
	for _, p := range plugins {
		if _, ok := byName[p.Name]; ok {
			return &PluginError{Kind: DuplicateName, Plugin: p.Name}
		}
		byName[p.Name] = p
	}
	for _, p := range plugins {
		for _, dep := range p.Dependencies {
			if _, ok := byName[dep]; !ok {
				return &PluginError{Kind: MissingDependency, Plugin: p.Name, Dependency: dep}
			}
		}
		// A conflict is fatal when either co-present plugin declares it.
		for _, other := range p.ConflictsWith {
			if _, ok := byName[other]; ok {
				return &PluginError{Kind: Conflict, Plugin: p.Name, Dependency: other}
			}
		}
	}
	if cycle := findCycle(plugins, byName); cycle != nil {
		return &PluginError{Kind: CircularDependency, Cycle: cycle}
	}
	return nil
}

// ResolveOrder validates the plugin set and computes its canonical
// execution order: every dependency before its dependents, ties broken
// by descending priority and then ascending name. The returned order is
// a stable function of (dependency graph, priority, name); repeated
// calls on an identical input yield an identical order. This order
// governs every hook: init and interceptors run forward, destroy runs
// in reverse.
func ResolveOrder(plugins []*Plugin) ([]*Plugin, error) {
	if err := ValidatePlugins(plugins); err != nil {
		return nil, err
	}
	if len(plugins) == 0 {
		return []*Plugin{}, nil
	}
	byName := make(map[string]*Plugin, len(plugins))
	indegree := make(map[string]int, len(plugins))
	dependents := make(map[string][]string, len(plugins))
	for _, p := range plugins {
		byName[p.Name] = p
		indegree[p.Name] = len(p.Dependencies)
	}
	for _, p := range plugins {
		for _, dep := range p.Dependencies {
			dependents[dep] = append(dependents[dep], p.Name)
		}
	}
	var ready []*Plugin
	for _, p := range plugins {
		if indegree[p.Name] == 0 {
			ready = append(ready, p)
		}
	}
	order := make([]*Plugin, 0, len(plugins))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			if ready[i].Priority != ready[j].Priority {
				return ready[i].Priority > ready[j].Priority
			}
			return ready[i].Name < ready[j].Name
		})
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, dep := range dependents[next.Name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, byName[dep])
			}
		}
	}
	return order, nil
}

// findCycle runs a depth-first traversal with a recursion stack and
// returns the full cycle path when one exists, closing the loop with a
// repeated first element for diagnostics.
func findCycle(plugins []*Plugin, byName map[string]*Plugin) []string {
	const (
		unvisited = iota
		inStack
		done
	)
	state := make(map[string]int, len(plugins))
	var stack []string

	var visit func(name string) []string
	visit = func(name string) []string {
		state[name] = inStack
		stack = append(stack, name)
		p := byName[name]
		for _, dep := range p.Dependencies {
			switch state[dep] {
			case inStack:
				// Close the cycle from the first occurrence of dep.
				for i, n := range stack {
					if n == dep {
						cycle := append([]string{}, stack[i:]...)
						return append(cycle, dep)
					}
				}
			case unvisited:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = done
		return nil
	}

	// Iterate in declaration order for a deterministic report.
	for _, p := range plugins {
		if state[p.Name] == unvisited {
			if cycle := visit(p.Name); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// Package policyfile loads policy schemas from YAML documents, so
// deployments can declare row-level-security rules without recompiling.
// Conditions and activation gates are CEL expressions; filter policies
// use a column/attribute shorthand that compiles to an equality
// predicate against the caller identity.
//
//	resources:
//	  orders:
//	    - name: tenant-read
//	      kind: filter
//	      column: tenant_id
//	      attr: tenant_id
//	    - name: shipped-frozen
//	      kind: deny
//	      operations: [update, delete]
//	      when: 'row.status == "shipped"'
//	      priority: 150
package policyfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rowlock/rowlock"
	"github.com/rowlock/rowlock/dialect/sql"
	"github.com/rowlock/rowlock/policy"
	"github.com/rowlock/rowlock/policy/celcond"
)

type fileSchema struct {
	Resources map[string][]filePolicy `yaml:"resources"`
}

type filePolicy struct {
	Name       string   `yaml:"name"`
	Kind       string   `yaml:"kind"`
	Operations []string `yaml:"operations"`
	// Column and Attr declare the filter shorthand: column = auth.<attr>.
	Column string `yaml:"column"`
	Attr   string `yaml:"attr"`
	// When is the CEL condition for allow/deny/validate policies.
	When string `yaml:"when"`
	// Activation is a CEL gate over the auth variable only.
	Activation string `yaml:"activation"`
	Priority   *int   `yaml:"priority"`
}

// Load reads and parses the YAML schema at path.
func Load(path string) (policy.Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policyfile: read %s: %w", path, err)
	}
	schema, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("policyfile: %s: %w", path, err)
	}
	return schema, nil
}

// Parse parses a YAML schema document.
func Parse(raw []byte) (policy.Schema, error) {
	var doc fileSchema
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	schema := make(policy.Schema, len(doc.Resources))
	for resource, policies := range doc.Resources {
		for i, fp := range policies {
			p, err := build(fp)
			if err != nil {
				return nil, fmt.Errorf("resource %q policy %d: %w", resource, i, err)
			}
			schema[resource] = append(schema[resource], p)
		}
	}
	return schema, nil
}

func build(fp filePolicy) (policy.Policy, error) {
	ops, err := parseOps(fp.Operations)
	if err != nil {
		return policy.Policy{}, err
	}
	var opts []policy.Option
	if fp.Name != "" {
		opts = append(opts, policy.WithName(fp.Name))
	}
	if fp.Priority != nil {
		opts = append(opts, policy.WithPriority(*fp.Priority))
	}
	if fp.Activation != "" {
		act, err := celcond.Activation(fp.Activation)
		if err != nil {
			return policy.Policy{}, err
		}
		opts = append(opts, policy.WithActivation(act))
	}

	switch fp.Kind {
	case "filter":
		if ops&^rowlock.OpRead != 0 {
			return policy.Policy{}, fmt.Errorf("filter policy applies to reads only, got %s", ops)
		}
		pred, err := predicate(fp)
		if err != nil {
			return policy.Policy{}, err
		}
		return policy.NewFilter(pred, opts...), nil
	case "allow", "deny", "validate":
		var cond policy.Condition
		if fp.When != "" {
			cond, err = celcond.Condition(fp.When)
			if err != nil {
				return policy.Policy{}, err
			}
		}
		switch fp.Kind {
		case "allow":
			if cond == nil {
				return policy.Policy{}, fmt.Errorf("allow policy requires a when expression")
			}
			if ops == 0 {
				ops = rowlock.OpAll
			}
			return policy.NewAllow(ops, cond, opts...), nil
		case "deny":
			if ops == 0 {
				ops = rowlock.OpAll
			}
			return policy.NewDeny(ops, cond, opts...), nil
		default:
			if cond == nil {
				return policy.Policy{}, fmt.Errorf("validate policy requires a when expression")
			}
			return policy.NewValidate(ops, cond, opts...), nil
		}
	default:
		return policy.Policy{}, fmt.Errorf("unknown kind %q", fp.Kind)
	}
}

// predicate compiles the filter shorthand column = auth.<attr>.
func predicate(fp filePolicy) (policy.Predicate, error) {
	if fp.Column == "" {
		return nil, fmt.Errorf("filter policy requires a column")
	}
	column := fp.Column
	var value func(*rowlock.AuthContext) any
	switch fp.Attr {
	case "tenant_id":
		value = func(ac *rowlock.AuthContext) any { return ac.TenantID }
	case "subject_id", "":
		value = func(ac *rowlock.AuthContext) any { return ac.SubjectID }
	default:
		return nil, fmt.Errorf("unknown attr %q (want tenant_id or subject_id)", fp.Attr)
	}
	return func(ac *rowlock.AuthContext) func(*sql.Selector) {
		return func(s *sql.Selector) {
			s.Where(sql.EQ(s.C(column), value(ac)))
		}
	}, nil
}

func parseOps(names []string) (rowlock.Op, error) {
	var ops rowlock.Op
	for _, name := range names {
		op, ok := rowlock.OpFromString(name)
		if !ok {
			switch name {
			case "write":
				op = rowlock.OpWrite
			case "all", "*":
				op = rowlock.OpAll
			default:
				return 0, fmt.Errorf("unknown operation %q", name)
			}
		}
		ops |= op
	}
	return ops, nil
}

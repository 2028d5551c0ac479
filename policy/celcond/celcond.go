// Package celcond adapts CEL expressions into policy conditions and
// activation gates. Expressions are compiled once at construction time;
// evaluation allocates only the activation map. The expression sees
// three map variables: auth (the caller identity), row (the current row
// state, empty when unavailable) and data (the incoming values, empty
// for reads and deletes).
//
//	cond, err := celcond.Condition(`auth.tenant_id == row.tenant_id`)
package celcond

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rowlock/rowlock"
	"github.com/rowlock/rowlock/policy"
)

var (
	envOnce sync.Once
	env     *cel.Env
	envErr  error
)

func celEnv() (*cel.Env, error) {
	envOnce.Do(func() {
		env, envErr = cel.NewEnv(
			cel.Variable("auth", cel.MapType(cel.StringType, cel.DynType)),
			cel.Variable("row", cel.MapType(cel.StringType, cel.DynType)),
			cel.Variable("data", cel.MapType(cel.StringType, cel.DynType)),
		)
	})
	return env, envErr
}

func compile(expr string) (cel.Program, error) {
	e, err := celEnv()
	if err != nil {
		return nil, fmt.Errorf("celcond: environment: %w", err)
	}
	ast, issues := e.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("celcond: compile %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("celcond: expression %q must evaluate to bool, got %s", expr, ast.OutputType())
	}
	prg, err := e.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("celcond: program %q: %w", expr, err)
	}
	return prg, nil
}

// Condition compiles expr into a policy condition. An evaluation error
// at runtime counts as a non-match, keeping the guard's closed default.
func Condition(expr string) (policy.Condition, error) {
	prg, err := compile(expr)
	if err != nil {
		return nil, err
	}
	return func(ac *rowlock.AuthContext, row, data rowlock.Row) bool {
		out, _, err := prg.Eval(map[string]any{
			"auth": authMap(ac),
			"row":  rowMap(row),
			"data": rowMap(data),
		})
		if err != nil {
			return false
		}
		b, ok := out.Value().(bool)
		return ok && b
	}, nil
}

// Activation compiles expr into an activation gate. The expression sees
// only the auth variable; row and data are always empty.
func Activation(expr string) (policy.Activation, error) {
	prg, err := compile(expr)
	if err != nil {
		return nil, err
	}
	empty := map[string]any{}
	return func(ac *rowlock.AuthContext) bool {
		out, _, err := prg.Eval(map[string]any{
			"auth": authMap(ac),
			"row":  empty,
			"data": empty,
		})
		if err != nil {
			return false
		}
		b, ok := out.Value().(bool)
		return ok && b
	}, nil
}

// MustCondition is Condition, panicking on compile errors. For
// package-level policy declarations.
func MustCondition(expr string) policy.Condition {
	cond, err := Condition(expr)
	if err != nil {
		panic(err)
	}
	return cond
}

// authMap projects the identity into the CEL activation.
func authMap(ac *rowlock.AuthContext) map[string]any {
	if ac == nil {
		return map[string]any{}
	}
	roles := make([]any, len(ac.Roles))
	for i, r := range ac.Roles {
		roles[i] = r
	}
	features := make(map[string]any, len(ac.Features))
	for k, v := range ac.Features {
		features[k] = v
	}
	return map[string]any{
		"subject_id":  ac.SubjectID,
		"tenant_id":   ac.TenantID,
		"roles":       roles,
		"is_system":   ac.IsSystem,
		"environment": ac.Environment,
		"features":    features,
	}
}

func rowMap(r rowlock.Row) map[string]any {
	if r == nil {
		return map[string]any{}
	}
	return map[string]any(r)
}

package notification

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"fieldops/internal/domain/events"
)

// DefaultBroadcastRule sends approval requests when an item reaches the
// awaiting-approval stage.
const DefaultBroadcastRule = `to_status == "step4"`

// Rule decides whether a status change is broadcast to managers and admins.
// Expressions see to_status, from_status and entity_type as strings.
type Rule struct {
	expr string
	prg  cel.Program
}

// CompileRule parses and type-checks expr. The expression must yield a bool.
func CompileRule(expr string) (*Rule, error) {
	if expr == "" {
		expr = DefaultBroadcastRule
	}

	env, err := cel.NewEnv(
		cel.Variable("to_status", cel.StringType),
		cel.Variable("from_status", cel.StringType),
		cel.Variable("entity_type", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile broadcast rule %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("broadcast rule %q must return bool, got %s", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("cel program: %w", err)
	}
	return &Rule{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (r *Rule) String() string {
	return r.expr
}

// Match evaluates the rule against a status change.
func (r *Rule) Match(ev events.StatusChanged) (bool, error) {
	out, _, err := r.prg.Eval(map[string]any{
		"to_status":   ev.To,
		"from_status": ev.From,
		"entity_type": ev.EntityType,
	})
	if err != nil {
		return false, fmt.Errorf("eval broadcast rule: %w", err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("broadcast rule returned %T", out.Value())
	}
	return matched, nil
}

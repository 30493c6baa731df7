// Package cel provides the CEL-based activation condition evaluator.
// Roles may carry a condition expression over the runtime properties
// supplied at session creation; a role whose condition evaluates false
// is not eligible for activation in that session.
package cel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
)

// maxExpressionLength is the maximum allowed length for condition
// expressions.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit to prevent
// cost-exhaustion through pathological expressions.
const maxCostBudget = 100_000

// evalTimeout is the maximum time allowed for a single evaluation.
const evalTimeout = 5 * time.Second

// interruptCheckFreq is how often (in comprehension iterations) context
// cancellation is checked.
const interruptCheckFreq = 100

// Evaluator compiles and evaluates activation condition expressions.
type Evaluator struct {
	env *cel.Env
}

// NewEvaluator creates an evaluator with the condition environment:
//
//	user  (string)              the session's user ID
//	ou    (string)              the user's organizational unit
//	role  (string)              the candidate role name
//	props (map[string]string)   runtime properties from the caller
func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("user", cel.StringType),
		cel.Variable("ou", cel.StringType),
		cel.Variable("role", cel.StringType),
		cel.Variable("props", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create condition environment: %w", err)
	}
	return &Evaluator{env: env}, nil
}

// Compile parses and type-checks a condition, returning a compiled
// program.
func (e *Evaluator) Compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}

	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}
	return prg, nil
}

// ValidateExpression checks that a condition is syntactically valid and
// within safety limits. Called when a role with a condition is saved.
func (e *Evaluator) ValidateExpression(expr string) error {
	if expr == "" {
		return errors.New("expression is empty")
	}
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}
	if _, err := e.Compile(expr); err != nil {
		return fmt.Errorf("invalid condition expression: %w", err)
	}
	return nil
}

// Evaluate runs a compiled condition. Returns true only when the
// expression evaluates to boolean true. ContextEval with a timeout
// prevents indefinite evaluation hangs.
func (e *Evaluator) Evaluate(prg cel.Program, user, ou, role string, props map[string]string) (bool, error) {
	if props == nil {
		props = map[string]string{}
	}
	activation := map[string]any{
		"user":  user,
		"ou":    ou,
		"role":  role,
		"props": props,
	}

	ctx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()

	result, _, err := prg.ContextEval(ctx, activation)
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}

	boolResult, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition did not return a boolean, got %T", result.Value())
	}
	return boolResult, nil
}

// EvaluateExpression compiles and runs a condition in one step. Used on
// the session construction path where each role carries at most one
// short expression; compiled programs are not cached across sessions.
func (e *Evaluator) EvaluateExpression(expr, user, ou, role string, props map[string]string) (bool, error) {
	if expr == "" {
		return true, nil
	}
	prg, err := e.Compile(expr)
	if err != nil {
		return false, err
	}
	return e.Evaluate(prg, user, ou, role, props)
}

package derive

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// RuleEvaluator evaluates MUST rule checks: CEL expressions over the
// variable spec, which holds the whole document.
type RuleEvaluator struct {
	env      *cel.Env
	programs map[string]cel.Program
}

// CompileError reports a check expression that does not compile.
type CompileError struct {
	Expr   string
	Detail string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("check %q does not compile: %s", e.Expr, e.Detail)
}

// NewRuleEvaluator creates an evaluator.
func NewRuleEvaluator() (*RuleEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("spec", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	return &RuleEvaluator{env: env, programs: make(map[string]cel.Program)}, nil
}

func (r *RuleEvaluator) program(expr string) (cel.Program, error) {
	if prg, ok := r.programs[expr]; ok {
		return prg, nil
	}
	checked, issues := r.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, &CompileError{Expr: expr, Detail: issues.Err().Error()}
	}
	if !checked.OutputType().IsExactType(cel.BoolType) && !checked.OutputType().IsExactType(cel.DynType) {
		return nil, &CompileError{Expr: expr, Detail: "result type " + checked.OutputType().String() + " is not bool"}
	}
	prg, err := r.env.Program(checked)
	if err != nil {
		return nil, &CompileError{Expr: expr, Detail: err.Error()}
	}
	r.programs[expr] = prg
	return prg, nil
}

// Check evaluates expr against doc (native Go values). A runtime error,
// such as a missing key, is returned as an error; a non-bool result is an
// error too.
func (r *RuleEvaluator) Check(expr string, doc map[string]any) (bool, error) {
	prg, err := r.program(expr)
	if err != nil {
		return false, err
	}
	val, _, err := prg.Eval(map[string]any{"spec": doc})
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", expr, err)
	}
	b, ok := val.Value().(bool)
	if !ok {
		return false, fmt.Errorf("evaluate %q: result %v is not bool", expr, val.Value())
	}
	return b, nil
}

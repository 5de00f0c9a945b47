package loyalty

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// DefaultRule accrues points on invoices only.
const DefaultRule = `documentType == "Invoice"`

// Rule is a compiled eligibility expression.
//
// Variables available to the expression:
//
//	documentType string  ("Invoice", "ServiceOrder", ...)
//	grandTotal   double
//	counterparty string
type Rule struct {
	expr string
	prg  cel.Program
}

// CompileRule parses and type-checks expr. The expression must yield a bool.
func CompileRule(expr string) (*Rule, error) {
	env, err := cel.NewEnv(
		cel.Variable("documentType", cel.StringType),
		cel.Variable("grandTotal", cel.DoubleType),
		cel.Variable("counterparty", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("compile loyalty rule %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("loyalty rule %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build loyalty rule program: %w", err)
	}
	return &Rule{expr: expr, prg: prg}, nil
}

// MustCompileRule is CompileRule that panics. Use for constants and tests.
func MustCompileRule(expr string) *Rule {
	r, err := CompileRule(expr)
	if err != nil {
		panic(err)
	}
	return r
}

// String returns the source expression.
func (r *Rule) String() string { return r.expr }

// Eligible evaluates the rule against a finalized document.
func (r *Rule) Eligible(b Basis) (bool, error) {
	out, _, err := r.prg.Eval(map[string]any{
		"documentType": b.DocumentType,
		"grandTotal":   b.GrandTotal.InexactFloat64(),
		"counterparty": b.Counterparty,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate loyalty rule: %w", err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("loyalty rule returned %T", out.Value())
	}
	return ok, nil
}

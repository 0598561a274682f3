// Package condition evaluates rule conditions against transaction fields.
//
// Conditions are boolean expressions over named transaction fields, e.g.
//
//	transaction_amount > 10000 and transaction_channel == "online"
//
// The grammar is deliberately closed: field references, literals (numbers,
// quoted strings, true/false), the six comparison operators, and/or/not, and
// parentheses. No function calls, no attribute access, no assignment. Rule
// authors cannot execute code, only compare fields.
//
// Field resolution: an identifier that is absent from the field map resolves
// to the number 0. A rule that references a field the transaction does not
// carry therefore compares against zero instead of failing, matching how
// missing numeric inputs are treated everywhere else in the pipeline.
package condition

import (
	"encoding/json"
	"fmt"
)

// ConditionError describes why a condition could not be evaluated: a syntax
// error, a type mismatch, or an unsupported operator. The decision pipeline
// treats any ConditionError as "rule does not match" and moves on.
type ConditionError struct {
	Cond string // the offending condition text
	Pos  int    // byte offset into Cond, -1 if not positional
	Msg  string
}

func (e *ConditionError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("condition %q: %s (at offset %d)", e.Cond, e.Msg, e.Pos)
	}
	return fmt.Sprintf("condition %q: %s", e.Cond, e.Msg)
}

// Evaluate parses and evaluates a condition against a transaction's fields.
// The returned error, if non-nil, is always a *ConditionError.
func Evaluate(cond string, fields map[string]any) (bool, error) {
	expr, err := Parse(cond)
	if err != nil {
		return false, err
	}
	return expr.Eval(fields)
}

// Parse compiles a condition into a reusable expression tree. Evaluating a
// parsed expression is cheap, so callers iterating many transactions over the
// same rule set can compile once.
func Parse(cond string) (Expr, error) {
	p := &parser{lex: newLexer(cond)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.errorf(p.tok.pos, "unexpected %q after expression", p.tok.text)
	}
	return expr, nil
}

// resolve maps a transaction field value into one of the three value types
// the evaluator understands: float64, string, or bool. Missing fields become
// the number 0.
func resolve(cond, name string, fields map[string]any) (any, error) {
	v, ok := fields[name]
	if !ok || v == nil {
		return float64(0), nil
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil, &ConditionError{Cond: cond, Pos: -1, Msg: fmt.Sprintf("field %q is not a valid number", name)}
		}
		return f, nil
	case string:
		return x, nil
	case bool:
		return x, nil
	default:
		return nil, &ConditionError{Cond: cond, Pos: -1, Msg: fmt.Sprintf("field %q has unsupported type %T", name, v)}
	}
}

package condition

import "fmt"

// Expr is a compiled condition. Safe for concurrent evaluation.
type Expr interface {
	// Eval evaluates the condition against a transaction's fields. The
	// expression must produce a boolean; any other result is a type error.
	Eval(fields map[string]any) (bool, error)
}

// Grammar (lowest to highest precedence):
//
//	or     := and ("or" and)*
//	and    := unary ("and" unary)*
//	unary  := "not" unary | cmp
//	cmp    := primary (("==" | "!=" | "<" | "<=" | ">" | ">=") primary)?
//	primary:= IDENT | NUMBER | STRING | BOOL | "(" or ")"
type parser struct {
	lex *lexer
	tok token
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) errorf(pos int, format string, args ...any) *ConditionError {
	return &ConditionError{Cond: p.lex.src, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseOr() (*exprTree, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOr {
		pos := p.tok.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &exprTree{cond: p.lex.src, root: &boolOpNode{op: tokOr, pos: pos, lhs: left.root, rhs: right.root}}
	}
	return left, nil
}

func (p *parser) parseAnd() (*exprTree, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokAnd {
		pos := p.tok.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &exprTree{cond: p.lex.src, root: &boolOpNode{op: tokAnd, pos: pos, lhs: left.root, rhs: right.root}}
	}
	return left, nil
}

func (p *parser) parseUnary() (*exprTree, error) {
	if p.tok.kind == tokNot {
		pos := p.tok.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &exprTree{cond: p.lex.src, root: &notNode{pos: pos, x: inner.root}}, nil
	}
	return p.parseCmp()
}

func (p *parser) parseCmp() (*exprTree, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	switch p.tok.kind {
	case tokEq, tokNe, tokLt, tokLe, tokGt, tokGe:
		op := p.tok.kind
		opText := p.tok.text
		pos := p.tok.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &exprTree{cond: p.lex.src, root: &cmpNode{op: op, opText: opText, pos: pos, lhs: left, rhs: right}}, nil
	}
	// Bare primary, e.g. a parenthesized boolean sub-expression or a
	// boolean field reference.
	return &exprTree{cond: p.lex.src, root: &valueNode{v: left}}, nil
}

func (p *parser) parsePrimary() (valNode, error) {
	tok := p.tok
	switch tok.kind {
	case tokIdent:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &identNode{name: tok.text}, nil
	case tokNumber:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &litNode{v: tok.num}, nil
	case tokString:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &litNode{v: tok.str}, nil
	case tokBool:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &litNode{v: tok.b}, nil
	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, p.errorf(p.tok.pos, "expected ')'")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &groupNode{root: inner.root}, nil
	case tokEOF:
		return nil, p.errorf(tok.pos, "unexpected end of condition")
	default:
		return nil, p.errorf(tok.pos, "unexpected %q", tok.text)
	}
}

// -----------------------------------------------------------------------------
// Expression tree
// -----------------------------------------------------------------------------

// valNode produces a value (number, string, or bool).
type valNode interface {
	value(cond string, fields map[string]any) (any, error)
}

// boolNode produces a boolean.
type boolNode interface {
	truth(cond string, fields map[string]any) (bool, error)
}

type exprTree struct {
	cond string
	root boolNode
}

func (e *exprTree) Eval(fields map[string]any) (bool, error) {
	return e.root.truth(e.cond, fields)
}

type identNode struct{ name string }

func (n *identNode) value(cond string, fields map[string]any) (any, error) {
	return resolve(cond, n.name, fields)
}

type litNode struct{ v any }

func (n *litNode) value(string, map[string]any) (any, error) { return n.v, nil }

// groupNode adapts a parenthesized boolean sub-expression into value position
// so it can appear as a comparison operand (e.g. `(a > 1) == false`).
type groupNode struct{ root boolNode }

func (n *groupNode) value(cond string, fields map[string]any) (any, error) {
	return n.root.truth(cond, fields)
}

// valueNode adapts a bare value into boolean position. Only boolean values
// are accepted; a bare number or string is a type error, not Python-style
// truthiness.
type valueNode struct{ v valNode }

func (n *valueNode) truth(cond string, fields map[string]any) (bool, error) {
	v, err := n.v.value(cond, fields)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, &ConditionError{Cond: cond, Pos: -1, Msg: fmt.Sprintf("expression yields %T, want boolean", v)}
	}
	return b, nil
}

type notNode struct {
	pos int
	x   boolNode
}

func (n *notNode) truth(cond string, fields map[string]any) (bool, error) {
	b, err := n.x.truth(cond, fields)
	if err != nil {
		return false, err
	}
	return !b, nil
}

type boolOpNode struct {
	op       tokenKind // tokAnd or tokOr
	pos      int
	lhs, rhs boolNode
}

func (n *boolOpNode) truth(cond string, fields map[string]any) (bool, error) {
	left, err := n.lhs.truth(cond, fields)
	if err != nil {
		return false, err
	}
	// Short-circuit like every infix language does.
	if n.op == tokAnd && !left {
		return false, nil
	}
	if n.op == tokOr && left {
		return true, nil
	}
	return n.rhs.truth(cond, fields)
}

type cmpNode struct {
	op       tokenKind
	opText   string
	pos      int
	lhs, rhs valNode
}

func (n *cmpNode) truth(cond string, fields map[string]any) (bool, error) {
	lv, err := n.lhs.value(cond, fields)
	if err != nil {
		return false, err
	}
	rv, err := n.rhs.value(cond, fields)
	if err != nil {
		return false, err
	}
	return compare(cond, n.op, n.opText, n.pos, lv, rv)
}

func compare(cond string, op tokenKind, opText string, pos int, lv, rv any) (bool, error) {
	switch l := lv.(type) {
	case float64:
		r, ok := rv.(float64)
		if !ok {
			return false, typeMismatch(cond, pos, opText, lv, rv)
		}
		return compareOrdered(op, l, r), nil
	case string:
		r, ok := rv.(string)
		if !ok {
			return false, typeMismatch(cond, pos, opText, lv, rv)
		}
		return compareOrdered(op, l, r), nil
	case bool:
		r, ok := rv.(bool)
		if !ok {
			return false, typeMismatch(cond, pos, opText, lv, rv)
		}
		switch op {
		case tokEq:
			return l == r, nil
		case tokNe:
			return l != r, nil
		default:
			return false, &ConditionError{Cond: cond, Pos: pos, Msg: fmt.Sprintf("operator %q not defined for booleans", opText)}
		}
	default:
		return false, typeMismatch(cond, pos, opText, lv, rv)
	}
}

func compareOrdered[T float64 | string](op tokenKind, l, r T) bool {
	switch op {
	case tokEq:
		return l == r
	case tokNe:
		return l != r
	case tokLt:
		return l < r
	case tokLe:
		return l <= r
	case tokGt:
		return l > r
	default: // tokGe
		return l >= r
	}
}

func typeMismatch(cond string, pos int, opText string, lv, rv any) *ConditionError {
	return &ConditionError{
		Cond: cond,
		Pos:  pos,
		Msg:  fmt.Sprintf("cannot compare %s %s %s", typeName(lv), opText, typeName(rv)),
	}
}

func typeName(v any) string {
	switch v.(type) {
	case float64:
		return "number"
	case string:
		return "string"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}

package condition

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokBool
	tokAnd
	tokOr
	tokNot
	tokEq  // ==
	tokNe  // !=
	tokLt  // <
	tokLe  // <=
	tokGt  // >
	tokGe  // >=
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	num  float64 // valid when kind == tokNumber
	str  string  // valid when kind == tokString
	b    bool    // valid when kind == tokBool
	pos  int
}

type lexer struct {
	src string
	off int
}

func newLexer(src string) *lexer {
	return &lexer{src: src}
}

func (l *lexer) errorf(pos int, format string, args ...any) *ConditionError {
	return &ConditionError{Cond: l.src, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) next() (token, error) {
	for l.off < len(l.src) && isSpace(l.src[l.off]) {
		l.off++
	}
	if l.off >= len(l.src) {
		return token{kind: tokEOF, pos: l.off}, nil
	}

	start := l.off
	c := l.src[l.off]

	switch {
	case c == '(':
		l.off++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case c == ')':
		l.off++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case c == '=':
		if l.peekAt(1) == '=' {
			l.off += 2
			return token{kind: tokEq, text: "==", pos: start}, nil
		}
		return token{}, l.errorf(start, "single '=' is not an operator, use '=='")
	case c == '!':
		if l.peekAt(1) == '=' {
			l.off += 2
			return token{kind: tokNe, text: "!=", pos: start}, nil
		}
		l.off++
		return token{kind: tokNot, text: "!", pos: start}, nil
	case c == '<':
		if l.peekAt(1) == '=' {
			l.off += 2
			return token{kind: tokLe, text: "<=", pos: start}, nil
		}
		l.off++
		return token{kind: tokLt, text: "<", pos: start}, nil
	case c == '>':
		if l.peekAt(1) == '=' {
			l.off += 2
			return token{kind: tokGe, text: ">=", pos: start}, nil
		}
		l.off++
		return token{kind: tokGt, text: ">", pos: start}, nil
	case c == '&':
		if l.peekAt(1) == '&' {
			l.off += 2
			return token{kind: tokAnd, text: "&&", pos: start}, nil
		}
		return token{}, l.errorf(start, "unexpected '&', use 'and' or '&&'")
	case c == '|':
		if l.peekAt(1) == '|' {
			l.off += 2
			return token{kind: tokOr, text: "||", pos: start}, nil
		}
		return token{}, l.errorf(start, "unexpected '|', use 'or' or '||'")
	case c == '"' || c == '\'':
		return l.scanString(c)
	case c >= '0' && c <= '9' || c == '.':
		return l.scanNumber()
	case c == '-':
		// Negative literal. Unary minus on identifiers is not supported;
		// thresholds are written directly into conditions.
		if d := l.peekAt(1); d >= '0' && d <= '9' || d == '.' {
			l.off++
			tok, err := l.scanNumber()
			if err != nil {
				return token{}, err
			}
			tok.num = -tok.num
			tok.text = "-" + tok.text
			tok.pos = start
			return tok, nil
		}
		return token{}, l.errorf(start, "unexpected '-'")
	case isIdentStart(rune(c)):
		return l.scanIdent()
	default:
		r, _ := utf8.DecodeRuneInString(l.src[l.off:])
		return token{}, l.errorf(start, "unexpected character %q", r)
	}
}

func (l *lexer) peekAt(n int) byte {
	if l.off+n < len(l.src) {
		return l.src[l.off+n]
	}
	return 0
}

func (l *lexer) scanString(quote byte) (token, error) {
	start := l.off
	l.off++ // opening quote
	var sb strings.Builder
	for l.off < len(l.src) {
		c := l.src[l.off]
		if c == quote {
			l.off++
			return token{kind: tokString, text: l.src[start:l.off], str: sb.String(), pos: start}, nil
		}
		if c == '\\' && l.off+1 < len(l.src) {
			l.off++
			c = l.src[l.off]
		}
		sb.WriteByte(c)
		l.off++
	}
	return token{}, l.errorf(start, "unterminated string literal")
}

func (l *lexer) scanNumber() (token, error) {
	start := l.off
	sawDot := false
	for l.off < len(l.src) {
		c := l.src[l.off]
		if c == '.' {
			if sawDot {
				return token{}, l.errorf(start, "malformed number %q", l.src[start:l.off+1])
			}
			sawDot = true
			l.off++
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		l.off++
	}
	text := l.src[start:l.off]
	if text == "." {
		return token{}, l.errorf(start, "malformed number %q", text)
	}
	num, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return token{}, l.errorf(start, "malformed number %q", text)
	}
	return token{kind: tokNumber, text: text, num: num, pos: start}, nil
}

func (l *lexer) scanIdent() (token, error) {
	start := l.off
	for l.off < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.off:])
		if !isIdentPart(r) {
			break
		}
		l.off += size
	}
	text := l.src[start:l.off]
	switch strings.ToLower(text) {
	case "and":
		return token{kind: tokAnd, text: text, pos: start}, nil
	case "or":
		return token{kind: tokOr, text: text, pos: start}, nil
	case "not":
		return token{kind: tokNot, text: text, pos: start}, nil
	case "true":
		return token{kind: tokBool, text: text, b: true, pos: start}, nil
	case "false":
		return token{kind: tokBool, text: text, b: false, pos: start}, nil
	}
	return token{kind: tokIdent, text: text, pos: start}, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

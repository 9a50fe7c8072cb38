package expr

import (
	"fmt"
	"strings"

	"github.com/hugr-lab/sqlcalc/calcerr"
	"github.com/hugr-lab/sqlcalc/table"
)

const (
	precOr = iota + 1
	precAnd
	precNot
	precCmp
	precAdd
	precMul
)

type parser struct {
	engine *Engine
	tokens []token
	pos    int
}

// CompileString parses and compiles a syntax string such as
// "price * 2 > 10 AND contain(tags, 'a|b')".
func (e *Engine) CompileString(src string) (Expression, error) {
	if strings.TrimSpace(src) == "" {
		return nil, calcerr.Compile("syntax", "empty expression")
	}
	tokens, err := lex(src)
	if err != nil {
		return nil, calcerr.Wrap(calcerr.KindCompile, "syntax", err)
	}
	p := &parser{engine: e, tokens: tokens}
	x, err := p.parseExpr(precOr)
	if err != nil {
		return nil, calcerr.Wrap(calcerr.KindCompile, "syntax", err)
	}
	if tok := p.peek(); tok.typ != tokEOF {
		return nil, calcerr.Compile("syntax", "unexpected %s (%q) at position %d", tok.typ, tok.val, tok.pos)
	}
	return x, nil
}

func (p *parser) peek() token {
	if p.pos >= len(p.tokens) {
		return token{typ: tokEOF}
	}
	return p.tokens[p.pos]
}

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.tokens) {
		return token{typ: tokEOF}
	}
	return p.tokens[p.pos+n]
}

func (p *parser) advance() token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *parser) expect(tt tokenType) (token, error) {
	tok := p.advance()
	if tok.typ != tt {
		return tok, fmt.Errorf("expected %s, got %s (%q) at position %d", tt, tok.typ, tok.val, tok.pos)
	}
	return tok, nil
}

func (p *parser) parseExpr(minPrec int) (Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()

		// x [NOT] IN (...)
		if tok.typ == tokIn || (tok.typ == tokNot && p.peekAt(1).typ == tokIn) {
			if precCmp < minPrec {
				break
			}
			negate := tok.typ == tokNot
			p.advance()
			if negate {
				p.advance()
			}
			list, err := p.parseList()
			if err != nil {
				return nil, err
			}
			if left, err = NewIn(left, list, negate); err != nil {
				return nil, err
			}
			continue
		}

		op, prec, ok := binaryOp(tok.typ)
		if !ok || prec < minPrec {
			break
		}
		p.advance()

		right, err := p.parseExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		switch tok.typ {
		case tokAnd, tokOr:
			left, err = NewLogical(tok.typ == tokAnd, left, right)
		default:
			left, err = NewBinary(op, left, right)
		}
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func binaryOp(tt tokenType) (string, int, bool) {
	switch tt {
	case tokOr:
		return "OR", precOr, true
	case tokAnd:
		return "AND", precAnd, true
	case tokEq:
		return "=", precCmp, true
	case tokNeq:
		return "!=", precCmp, true
	case tokLt:
		return "<", precCmp, true
	case tokLte:
		return "<=", precCmp, true
	case tokGt:
		return ">", precCmp, true
	case tokGte:
		return ">=", precCmp, true
	case tokPlus:
		return "+", precAdd, true
	case tokMinus:
		return "-", precAdd, true
	case tokStar:
		return "*", precMul, true
	case tokSlash:
		return "/", precMul, true
	case tokPercent:
		return "%", precMul, true
	}
	return "", 0, false
}

func (p *parser) parseUnary() (Expression, error) {
	switch p.peek().typ {
	case tokNot:
		p.advance()
		x, err := p.parseExpr(precNot)
		if err != nil {
			return nil, err
		}
		return NewNot(x)
	case tokMinus:
		p.advance()
		if next := p.peek(); next.typ == tokInt || next.typ == tokFloat {
			p.advance()
			lit, ok := numberLiteral("-" + next.val)
			if !ok {
				return nil, fmt.Errorf("invalid number -%s at position %d", next.val, next.pos)
			}
			return Constant(lit), nil
		}
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return NewNeg(x)
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expression, error) {
	tok := p.advance()

	switch tok.typ {
	case tokInt, tokFloat:
		lit, ok := numberLiteral(tok.val)
		if !ok {
			return nil, fmt.Errorf("invalid number %q at position %d", tok.val, tok.pos)
		}
		return Constant(lit), nil

	case tokString:
		return Constant(table.StringValue(tok.val)), nil

	case tokTrue, tokFalse:
		return Constant(table.BoolValue(tok.typ == tokTrue)), nil

	case tokCast:
		return p.parseCast()

	case tokIdent:
		if p.peek().typ == tokLParen {
			args, err := p.parseList()
			if err != nil {
				return nil, fmt.Errorf("in function %s: %w", tok.val, err)
			}
			return NewCall(tok.val, args)
		}
		return p.engine.Column(tok.val)

	case tokLParen:
		x, err := p.parseExpr(precOr)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return x, nil
	}

	return nil, fmt.Errorf("unexpected %s (%q) at position %d", tok.typ, tok.val, tok.pos)
}

// parseList parses "(a, b, ...)"; the list may be empty.
func (p *parser) parseList() ([]Expression, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	var out []Expression
	if p.peek().typ == tokRParen {
		p.advance()
		return out, nil
	}
	for {
		x, err := p.parseExpr(precOr)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
		if p.peek().typ != tokComma {
			break
		}
		p.advance()
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return out, nil
}

// parseCast parses "(x AS TYPE)" after the CAST keyword. TYPE may carry its
// own parenthesized argument, as in ARRAY(INTEGER) or VARCHAR(32).
func (p *parser) parseCast() (Expression, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	x, err := p.parseExpr(precOr)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokAs); err != nil {
		return nil, err
	}

	name, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	typeName := name.val
	if p.peek().typ == tokLParen {
		p.advance()
		arg := p.advance()
		if arg.typ != tokIdent && arg.typ != tokInt {
			return nil, fmt.Errorf("unexpected %s in type at position %d", arg.typ, arg.pos)
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		typeName += "(" + arg.val + ")"
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}

	to, err := table.ParseType(typeName)
	if err != nil {
		return nil, err
	}
	return NewCast(x, to)
}

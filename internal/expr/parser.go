package expr

import (
	"strings"

	apperrors "github.com/copyleftdev/calclab/internal/errors"
)

const (
	// MaxLength bounds the size of accepted source text in bytes.
	MaxLength = 4096
	// MaxDepth bounds how deeply sub-expressions may nest (parentheses,
	// function calls, unary signs and exponents all count).
	MaxDepth = 64
)

// parser is a recursive-descent parser over a token slice:
//
//	expr    := term (('+' | '-') term)*
//	term    := unary (('*' | '/') unary)*
//	unary   := ('-' | '+') unary | power
//	power   := primary ('^' unary)?
//	primary := number | 'x' | constant | name '(' expr ')' | '(' expr ')'
//
// Every recursive path goes through unary, which is where depth is counted.
type parser struct {
	toks  []token
	pos   int
	depth int
}

func parse(src string) (Node, error) {
	if len(src) > MaxLength {
		return nil, apperrors.Parse("expression is longer than %d bytes", MaxLength)
	}
	if strings.TrimSpace(src) == "" {
		return nil, apperrors.Parse("empty expression")
	}

	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		if t.kind == tokRParen {
			return nil, apperrors.Parse("unmatched \")\" at position %d", t.pos)
		}
		return nil, apperrors.Parse("unexpected %s", t.describe())
	}
	return root, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(ops string) (byte, bool) {
	t := p.peek()
	if t.kind == tokOp && strings.Contains(ops, t.text) {
		return t.text[0], true
	}
	return 0, false
}

func (p *parser) parseExpr() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.isOp("+-")
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseTerm() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.isOp("*/")
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (Node, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > MaxDepth {
		return nil, apperrors.Parse("expression nests deeper than %d levels", MaxDepth)
	}

	if op, ok := p.isOp("+-"); ok {
		p.next()
		arg, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if op == SubtractOp {
			return &Neg{Arg: arg}, nil
		}
		return arg, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (Node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if _, ok := p.isOp("^"); !ok {
		return base, nil
	}
	p.next()
	exp, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &Binary{Op: PowOp, Left: base, Right: exp}, nil
}

func (p *parser) parsePrimary() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return &Num{Value: t.value}, nil
	case tokIdent:
		return p.parseIdent(t)
	case tokLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			if closing.kind == tokEOF {
				return nil, apperrors.Parse("unmatched \"(\" at position %d", t.pos)
			}
			return nil, apperrors.Parse("expected \")\" but found %s", closing.describe())
		}
		return inner, nil
	case tokRParen:
		return nil, apperrors.Parse("unmatched \")\" at position %d", t.pos)
	case tokEOF:
		return nil, apperrors.Parse("unexpected end of expression")
	default:
		return nil, apperrors.Parse("unexpected %s", t.describe())
	}
}

func (p *parser) parseIdent(t token) (Node, error) {
	if t.text == "x" {
		return Var{}, nil
	}
	if v, ok := constants[t.text]; ok {
		return &Num{Value: v}, nil
	}
	fn, ok := Lookup(t.text)
	if !ok {
		return nil, apperrors.Parse("unknown identifier %q at position %d", t.text, t.pos)
	}

	open := p.next()
	if open.kind != tokLParen {
		return nil, apperrors.Parse("function %q at position %d must be followed by \"(\"", fn.Name, t.pos)
	}
	if p.peek().kind == tokRParen {
		return nil, apperrors.Parse("function %q takes exactly 1 argument, got 0", fn.Name)
	}
	arg, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	switch closing := p.next(); closing.kind {
	case tokRParen:
		return &Call{Fn: fn, Arg: arg}, nil
	case tokComma:
		return nil, apperrors.Parse("function %q takes exactly 1 argument", fn.Name)
	case tokEOF:
		return nil, apperrors.Parse("unmatched \"(\" at position %d", open.pos)
	default:
		return nil, apperrors.Parse("expected \")\" but found %s", closing.describe())
	}
}

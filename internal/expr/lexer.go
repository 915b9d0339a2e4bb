package expr

import (
	"fmt"
	"strconv"

	apperrors "github.com/copyleftdev/calclab/internal/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp // + - * / ^
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind  tokenKind
	text  string
	value float64
	pos   int // 1-based byte offset
}

func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of expression"
	case tokNumber:
		return fmt.Sprintf("number %q at position %d", t.text, t.pos)
	case tokIdent:
		return fmt.Sprintf("identifier %q at position %d", t.text, t.pos)
	default:
		return fmt.Sprintf("%q at position %d", t.text, t.pos)
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

// tokenize splits src into tokens. The caller bounds len(src).
func tokenize(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		start := i
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isDigit(c) || c == '.':
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				i++
			}
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				i++
				if i < len(src) && (src[i] == '+' || src[i] == '-') {
					i++
				}
				digits := i
				for i < len(src) && isDigit(src[i]) {
					i++
				}
				if i == digits {
					return nil, apperrors.Parse("malformed number %q at position %d: missing exponent digits", src[start:i], start+1)
				}
			}
			text := src[start:i]
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, apperrors.Parse("malformed number %q at position %d", text, start+1)
			}
			toks = append(toks, token{kind: tokNumber, text: text, value: v, pos: start + 1})
		case isIdentStart(c):
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start + 1})
		case c == '+' || c == '-' || c == '*' || c == '/' || c == '^':
			i++
			toks = append(toks, token{kind: tokOp, text: src[start:i], pos: start + 1})
		case c == '(':
			i++
			toks = append(toks, token{kind: tokLParen, text: "(", pos: start + 1})
		case c == ')':
			i++
			toks = append(toks, token{kind: tokRParen, text: ")", pos: start + 1})
		case c == ',':
			i++
			toks = append(toks, token{kind: tokComma, text: ",", pos: start + 1})
		default:
			return nil, apperrors.Parse("unexpected character %q at position %d", rune(c), start+1)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src) + 1}), nil
}

package expr

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenType int

const (
	tokLParen tokenType = iota
	tokRParen
	tokComma

	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokPercent
	tokEq
	tokNeq
	tokLt
	tokLte
	tokGt
	tokGte

	tokAnd
	tokOr
	tokNot
	tokIn
	tokCast
	tokAs
	tokTrue
	tokFalse

	tokInt
	tokFloat
	tokString
	tokIdent

	tokEOF
)

var tokenNames = map[tokenType]string{
	tokLParen: "(", tokRParen: ")", tokComma: ",",
	tokPlus: "+", tokMinus: "-", tokStar: "*", tokSlash: "/", tokPercent: "%",
	tokEq: "=", tokNeq: "!=", tokLt: "<", tokLte: "<=", tokGt: ">", tokGte: ">=",
	tokAnd: "AND", tokOr: "OR", tokNot: "NOT", tokIn: "IN", tokCast: "CAST", tokAs: "AS",
	tokTrue: "TRUE", tokFalse: "FALSE",
	tokInt: "INT", tokFloat: "FLOAT", tokString: "STRING", tokIdent: "IDENT", tokEOF: "EOF",
}

func (t tokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(t))
}

type token struct {
	typ tokenType
	val string
	pos int
}

var keywords = map[string]tokenType{
	"and":   tokAnd,
	"or":    tokOr,
	"not":   tokNot,
	"in":    tokIn,
	"cast":  tokCast,
	"as":    tokAs,
	"true":  tokTrue,
	"false": tokFalse,
}

// lex tokenizes an expression. Identifiers may start with '$' and may be
// quoted with backticks or double quotes; string literals use single quotes
// and a doubled quote escapes a quote.
func lex(input string) ([]token, error) {
	var tokens []token
	runes := []rune(input)
	i := 0

	emit := func(tt tokenType, val string, pos, width int) {
		tokens = append(tokens, token{tt, val, pos})
		i += width
	}

	for i < len(runes) {
		ch := runes[i]
		if unicode.IsSpace(ch) {
			i++
			continue
		}

		pos := i
		next := rune(0)
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch ch {
		case '(':
			emit(tokLParen, "(", pos, 1)
			continue
		case ')':
			emit(tokRParen, ")", pos, 1)
			continue
		case ',':
			emit(tokComma, ",", pos, 1)
			continue
		case '+':
			emit(tokPlus, "+", pos, 1)
			continue
		case '-':
			emit(tokMinus, "-", pos, 1)
			continue
		case '*':
			emit(tokStar, "*", pos, 1)
			continue
		case '/':
			emit(tokSlash, "/", pos, 1)
			continue
		case '%':
			emit(tokPercent, "%", pos, 1)
			continue
		case '=':
			if next == '=' {
				emit(tokEq, "=", pos, 2)
			} else {
				emit(tokEq, "=", pos, 1)
			}
			continue
		case '!':
			if next != '=' {
				return nil, fmt.Errorf("unexpected character '!' at position %d", pos)
			}
			emit(tokNeq, "!=", pos, 2)
			continue
		case '<':
			switch next {
			case '=':
				emit(tokLte, "<=", pos, 2)
			case '>':
				emit(tokNeq, "!=", pos, 2)
			default:
				emit(tokLt, "<", pos, 1)
			}
			continue
		case '>':
			if next == '=' {
				emit(tokGte, ">=", pos, 2)
			} else {
				emit(tokGt, ">", pos, 1)
			}
			continue
		case '\'':
			s, end, err := lexQuoted(runes, i, '\'')
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{tokString, s, pos})
			i = end
			continue
		case '`', '"':
			s, end, err := lexQuoted(runes, i, ch)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{tokIdent, s, pos})
			i = end
			continue
		}

		if unicode.IsDigit(ch) || (ch == '.' && unicode.IsDigit(next)) {
			tok, end := lexNumber(runes, i)
			tokens = append(tokens, tok)
			i = end
			continue
		}

		if isIdentStart(ch) {
			start := i
			i++
			for i < len(runes) && isIdentPart(runes[i]) {
				i++
			}
			val := string(runes[start:i])
			if tt, ok := keywords[strings.ToLower(val)]; ok {
				tokens = append(tokens, token{tt, val, start})
			} else {
				tokens = append(tokens, token{tokIdent, strings.TrimPrefix(val, "$"), start})
			}
			continue
		}

		return nil, fmt.Errorf("unexpected character %q at position %d", ch, pos)
	}

	tokens = append(tokens, token{tokEOF, "", len(runes)})
	return tokens, nil
}

// lexQuoted reads a literal delimited by quote. A doubled quote inside the
// literal stands for one quote character.
func lexQuoted(runes []rune, start int, quote rune) (string, int, error) {
	var sb strings.Builder
	i := start + 1
	for i < len(runes) {
		if runes[i] == quote {
			if i+1 < len(runes) && runes[i+1] == quote {
				sb.WriteRune(quote)
				i += 2
				continue
			}
			return sb.String(), i + 1, nil
		}
		sb.WriteRune(runes[i])
		i++
	}
	return "", 0, fmt.Errorf("unterminated literal starting at position %d", start)
}

func lexNumber(runes []rune, start int) (token, int) {
	i := start
	isFloat := false
	for i < len(runes) && unicode.IsDigit(runes[i]) {
		i++
	}
	if i < len(runes) && runes[i] == '.' {
		isFloat = true
		i++
		for i < len(runes) && unicode.IsDigit(runes[i]) {
			i++
		}
	}
	if i < len(runes) && (runes[i] == 'e' || runes[i] == 'E') {
		j := i + 1
		if j < len(runes) && (runes[j] == '+' || runes[j] == '-') {
			j++
		}
		if j < len(runes) && unicode.IsDigit(runes[j]) {
			isFloat = true
			i = j
			for i < len(runes) && unicode.IsDigit(runes[i]) {
				i++
			}
		}
	}

	val := string(runes[start:i])
	if isFloat {
		return token{tokFloat, val, start}, i
	}
	return token{tokInt, val, start}, i
}

func isIdentStart(ch rune) bool {
	return unicode.IsLetter(ch) || ch == '_' || ch == '$'
}

func isIdentPart(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' || ch == '.'
}

package skiplogic

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/adiatmad/xlsformbuilderku/internal/model"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokRef
	tokString
	tokNumber
	tokOp
	tokAnd
	tokOr
	tokLParen
	tokRParen
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of expression"
	case tokRef:
		return "reference"
	case tokString:
		return "string"
	case tokNumber:
		return "number"
	case tokOp:
		return "comparator"
	case tokAnd:
		return "'and'"
	case tokOr:
		return "'or'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	}
	return "token"
}

type token struct {
	kind tokenKind
	text string // identifier, literal contents or operator
	pos  int
}

type lexer struct {
	src string
	pos int
}

func tokenize(src string) ([]token, error) {
	l := &lexer{src: src}
	var toks []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}

func (l *lexer) fail(pos int, reason string) error {
	return &model.MalformedExpressionWarning{Expression: l.src, Pos: pos, Reason: reason}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !unicode.IsSpace(r) {
			break
		}
		l.pos += size
	}
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: start}, nil
	}

	c := l.src[l.pos]
	switch {
	case strings.HasPrefix(l.src[l.pos:], "${"):
		return l.reference()
	case c == '\'' || c == '"':
		return l.quoted(c)
	case isDigit(c) || ((c == '-' || c == '+' || c == '.') && l.pos+1 < len(l.src) && (isDigit(l.src[l.pos+1]) || l.src[l.pos+1] == '.')):
		return l.number()
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case c == '=':
		l.pos++
		return token{kind: tokOp, text: "=", pos: start}, nil
	case c == '!':
		if strings.HasPrefix(l.src[l.pos:], "!=") {
			l.pos += 2
			return token{kind: tokOp, text: "!=", pos: start}, nil
		}
		return token{}, l.fail(start, "expected '=' after '!'")
	case c == '>' || c == '<':
		l.pos++
		if l.pos < len(l.src) && l.src[l.pos] == '=' {
			l.pos++
			return token{kind: tokOp, text: string(c) + "=", pos: start}, nil
		}
		return token{kind: tokOp, text: string(c), pos: start}, nil
	case isWordByte(c):
		for l.pos < len(l.src) && isWordByte(l.src[l.pos]) {
			l.pos++
		}
		word := l.src[start:l.pos]
		switch word {
		case "and":
			return token{kind: tokAnd, text: word, pos: start}, nil
		case "or":
			return token{kind: tokOr, text: word, pos: start}, nil
		}
		return token{}, l.fail(start, "unsupported word '"+word+"'")
	}
	return token{}, l.fail(start, "unexpected character '"+string(c)+"'")
}

func (l *lexer) reference() (token, error) {
	start := l.pos
	l.pos += 2
	end := strings.IndexByte(l.src[l.pos:], '}')
	if end < 0 {
		return token{}, l.fail(start, "unterminated reference")
	}
	ident := l.src[l.pos : l.pos+end]
	if ident == "" {
		return token{}, l.fail(start, "empty reference")
	}
	for i := 0; i < len(ident); i++ {
		if !isIdentByte(ident[i]) {
			return token{}, l.fail(l.pos+i, "invalid character in reference name")
		}
	}
	l.pos += end + 1
	return token{kind: tokRef, text: ident, pos: start}, nil
}

func (l *lexer) quoted(quote byte) (token, error) {
	start := l.pos
	end := strings.IndexByte(l.src[l.pos+1:], quote)
	if end < 0 {
		return token{}, l.fail(start, "unterminated string")
	}
	text := l.src[l.pos+1 : l.pos+1+end]
	l.pos += end + 2
	return token{kind: tokString, text: text, pos: start}, nil
}

func (l *lexer) number() (token, error) {
	start := l.pos
	if c := l.src[l.pos]; c == '-' || c == '+' {
		l.pos++
	}
	dots := 0
	for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '.') {
		if l.src[l.pos] == '.' {
			dots++
		}
		l.pos++
	}
	text := l.src[start:l.pos]
	if dots > 1 || strings.Trim(text, "+-.") == "" {
		return token{}, l.fail(start, "invalid number '"+text+"'")
	}
	if l.pos < len(l.src) && isWordByte(l.src[l.pos]) {
		return token{}, l.fail(l.pos, "unexpected character after number")
	}
	return token{kind: tokNumber, text: text, pos: start}, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isWordByte(c) || isDigit(c) || c == '-' || c == '.' || c >= utf8.RuneSelf
}

// Package skiplogic parses and evaluates the restricted "relevant" expressions
// that decide whether a question is shown.
//
// An expression compares two operands, each a reference to an earlier answer
// (${name}) or a literal:
//
//	${age} >= 18
//	${consent} = 'yes' and (${region} = 'north' or ${region} = 'east')
//
// 'and' binds tighter than 'or'.
package skiplogic

import (
	"strconv"
	"strings"

	"github.com/adiatmad/xlsformbuilderku/internal/model"
)

// Op is a comparison operator.
type Op string

const (
	OpEq Op = "="
	OpNe Op = "!="
	OpGt Op = ">"
	OpLt Op = "<"
	OpGe Op = ">="
	OpLe Op = "<="
)

// OperandKind tells how an operand is resolved.
type OperandKind int

const (
	// Reference operands read an answer by question name.
	Reference OperandKind = iota
	// StringLiteral operands are quoted text.
	StringLiteral
	// NumberLiteral operands are unquoted numbers.
	NumberLiteral
)

// Operand is one side of a comparison.
type Operand struct {
	Kind OperandKind
	Text string // question name for references, literal text otherwise
}

func (o Operand) String() string {
	switch o.Kind {
	case Reference:
		return "${" + o.Text + "}"
	case StringLiteral:
		if strings.Contains(o.Text, "'") {
			return `"` + o.Text + `"`
		}
		return "'" + o.Text + "'"
	}
	return o.Text
}

// Node is a parsed expression.
type Node interface {
	String() string
	node()
}

// Comparison is a single binary comparison.
type Comparison struct {
	Left  Operand
	Op    Op
	Right Operand
}

func (*Comparison) node() {}

func (c *Comparison) String() string {
	return c.Left.String() + " " + string(c.Op) + " " + c.Right.String()
}

// Logical joins two expressions with 'and' or 'or'.
type Logical struct {
	Op    string // "and" or "or"
	Left  Node
	Right Node
}

func (*Logical) node() {}

func (l *Logical) String() string {
	return "(" + l.Left.String() + " " + l.Op + " " + l.Right.String() + ")"
}

// Parse compiles src into a Node. Failures are returned as
// *model.MalformedExpressionWarning.
func Parse(src string) (Node, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.unexpected(tok, "end of expression")
	}
	return n, nil
}

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) advance() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) unexpected(tok token, want string) error {
	got := tok.kind.String()
	if tok.text != "" && tok.kind != tokString {
		got = "'" + tok.text + "'"
	}
	return &model.MalformedExpressionWarning{
		Expression: p.src,
		Pos:        tok.pos,
		Reason:     "expected " + want + ", found " + got,
	}
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseClause()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.advance()
		right, err := p.parseClause()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseClause() (Node, error) {
	if p.peek().kind == tokLParen {
		p.advance()
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if tok := p.advance(); tok.kind != tokRParen {
			return nil, p.unexpected(tok, "')'")
		}
		return n, nil
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	tok := p.advance()
	if tok.kind != tokOp {
		return nil, p.unexpected(tok, "comparator")
	}
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &Comparison{Left: left, Op: Op(tok.text), Right: right}, nil
}

func (p *parser) parseOperand() (Operand, error) {
	tok := p.advance()
	switch tok.kind {
	case tokRef:
		return Operand{Kind: Reference, Text: tok.text}, nil
	case tokString:
		return Operand{Kind: StringLiteral, Text: tok.text}, nil
	case tokNumber:
		if _, err := strconv.ParseFloat(tok.text, 64); err != nil {
			return Operand{}, &model.MalformedExpressionWarning{Expression: p.src, Pos: tok.pos, Reason: "invalid number '" + tok.text + "'"}
		}
		return Operand{Kind: NumberLiteral, Text: tok.text}, nil
	}
	return Operand{}, p.unexpected(tok, "reference or literal")
}

// References returns the question names referenced by src, in order of first
// appearance.
func References(src string) ([]string, error) {
	n, err := Parse(src)
	if err != nil {
		return nil, err
	}
	var refs []string
	seen := make(map[string]bool)
	add := func(o Operand) {
		if o.Kind == Reference && !seen[o.Text] {
			seen[o.Text] = true
			refs = append(refs, o.Text)
		}
	}
	var walk func(Node)
	walk = func(n Node) {
		switch n := n.(type) {
		case *Comparison:
			add(n.Left)
			add(n.Right)
		case *Logical:
			walk(n.Left)
			walk(n.Right)
		}
	}
	walk(n)
	return refs, nil
}

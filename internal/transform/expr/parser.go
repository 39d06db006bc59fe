package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// node is a syntax tree node. The set of node types is closed.
type node interface {
	isNode()
}

type literalNode struct{ val any } // nil, string, int64, float64 or bool
type valueNode struct{}
type unaryNode struct {
	op      string // "-" or "not"
	operand node
}
type binaryNode struct {
	op          string
	left, right node
}
type condNode struct {
	then, cond, otherwise node
}
type callNode struct {
	name string
	fn   builtin
	args []node
}

func (literalNode) isNode() {}
func (valueNode) isNode()   {}
func (unaryNode) isNode()   {}
func (binaryNode) isNode()  {}
func (condNode) isNode()    {}
func (callNode) isNode()    {}

type parser struct {
	toks  []token
	pos   int
	depth int
	nodes int
}

func parse(src string) (node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, &SyntaxError{Pos: tok.pos, Message: fmt.Sprintf("unexpected %q", tok.text)}
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) isKeyword(word string) bool {
	tok := p.peek()
	return tok.kind == tokIdent && tok.text == word
}

func (p *parser) isOp(ops ...string) bool {
	tok := p.peek()
	if tok.kind != tokOp {
		return false
	}
	for _, op := range ops {
		if tok.text == op {
			return true
		}
	}
	return false
}

// enter tracks recursion depth and node count; every production that builds
// a node calls it.
func (p *parser) enter() error {
	p.depth++
	p.nodes++
	if p.depth > MaxDepth {
		return &SyntaxError{Pos: p.peek().pos, Message: fmt.Sprintf("expression nested deeper than %d", MaxDepth)}
	}
	if p.nodes > MaxNodes {
		return &SyntaxError{Pos: p.peek().pos, Message: fmt.Sprintf("expression larger than %d nodes", MaxNodes)}
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

// expr := or ["if" or "else" expr]
func (p *parser) parseExpr() (node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	then, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("if") {
		return then, nil
	}
	p.next()
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("else") {
		return nil, &SyntaxError{Pos: p.peek().pos, Message: "expected else"}
	}
	p.next()
	otherwise, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return condNode{then: then, cond: cond, otherwise: otherwise}, nil
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: "or", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: "and", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if !p.isKeyword("not") {
		return p.parseComparison()
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	p.next()
	operand, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	return unaryNode{op: "not", operand: operand}, nil
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.isOp("==", "!=", "<", "<=", ">", ">=") {
		op := p.next().text
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.isOp("+", "-") {
		op := p.next().text
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*", "/", "%") {
		op := p.next().text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if !p.isOp("-") {
		return p.parsePrimary()
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	p.next()
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return unaryNode{op: "-", operand: operand}, nil
}

func (p *parser) parsePrimary() (node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	tok := p.next()
	switch tok.kind {
	case tokNumber:
		return parseNumberLiteral(tok)
	case tokString:
		return literalNode{val: tok.text}, nil
	case tokLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, &SyntaxError{Pos: p.peek().pos, Message: "expected )"}
		}
		p.next()
		return inner, nil
	case tokIdent:
		return p.parseIdent(tok)
	case tokEOF:
		return nil, &SyntaxError{Pos: tok.pos, Message: "unexpected end of expression"}
	default:
		return nil, &SyntaxError{Pos: tok.pos, Message: fmt.Sprintf("unexpected %q", tok.text)}
	}
}

func (p *parser) parseIdent(tok token) (node, error) {
	switch tok.text {
	case "value":
		return valueNode{}, nil
	case "true":
		return literalNode{val: true}, nil
	case "false":
		return literalNode{val: false}, nil
	case "null":
		return literalNode{val: nil}, nil
	}
	if keywords[tok.text] {
		return nil, &SyntaxError{Pos: tok.pos, Message: fmt.Sprintf("unexpected keyword %q", tok.text)}
	}

	fn, ok := builtins[tok.text]
	if !ok {
		return nil, &SyntaxError{Pos: tok.pos, Message: fmt.Sprintf("unknown name %q", tok.text)}
	}
	if p.peek().kind != tokLParen {
		return nil, &SyntaxError{Pos: p.peek().pos, Message: fmt.Sprintf("%s must be called", tok.text)}
	}
	p.next()

	var args []node
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if p.peek().kind != tokRParen {
		return nil, &SyntaxError{Pos: p.peek().pos, Message: "expected ) after arguments"}
	}
	p.next()

	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return nil, &SyntaxError{Pos: tok.pos, Message: fmt.Sprintf("%s: wrong number of arguments (%d)", tok.text, len(args))}
	}
	return callNode{name: tok.text, fn: fn, args: args}, nil
}

func parseNumberLiteral(tok token) (node, error) {
	if !strings.ContainsAny(tok.text, ".eE") {
		n, err := strconv.ParseInt(tok.text, 10, 64)
		if err == nil {
			return literalNode{val: n}, nil
		}
	}
	f, err := strconv.ParseFloat(tok.text, 64)
	if err != nil {
		return nil, &SyntaxError{Pos: tok.pos, Message: fmt.Sprintf("invalid number %q", tok.text)}
	}
	return literalNode{val: f}, nil
}

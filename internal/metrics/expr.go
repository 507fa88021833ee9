package metrics

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Derived-metric formulas are a deliberately small expression language:
// numbers, quoted metric references, arithmetic, parentheses, and the two
// cross-reference forms
//
//	other("config", "metric")   the named configuration's value for the
//	                            same instantiation index
//	shift("metric", k)          this configuration's value k positions
//	                            away in its own instantiation sequence
//
// Formulas never evaluate arbitrary code; everything resolves against a
// typed context built from the aggregated result set.

// uval is a value with an uncertainty, propagated through arithmetic the
// standard quadrature way.
type uval struct {
	v float64
	e float64
}

func (a uval) add(b uval) uval {
	return uval{v: a.v + b.v, e: math.Hypot(a.e, b.e)}
}

func (a uval) sub(b uval) uval {
	return uval{v: a.v - b.v, e: math.Hypot(a.e, b.e)}
}

func (a uval) mul(b uval) uval {
	return uval{v: a.v * b.v, e: math.Hypot(b.v*a.e, a.v*b.e)}
}

func (a uval) div(b uval) (uval, error) {
	if b.v == 0 {
		return uval{}, fmt.Errorf("division by zero")
	}
	v := a.v / b.v
	return uval{v: v, e: math.Hypot(a.e/b.v, a.v*b.e/(b.v*b.v))}, nil
}

func (a uval) neg() uval {
	return uval{v: -a.v, e: a.e}
}

type exprNode interface {
	eval(ctx *evalContext) (uval, error)
}

type numberNode float64

func (n numberNode) eval(*evalContext) (uval, error) {
	return uval{v: float64(n)}, nil
}

type metricNode string

func (n metricNode) eval(ctx *evalContext) (uval, error) {
	return ctx.metric(string(n))
}

type negNode struct{ operand exprNode }

func (n negNode) eval(ctx *evalContext) (uval, error) {
	value, err := n.operand.eval(ctx)
	if err != nil {
		return uval{}, err
	}
	return value.neg(), nil
}

type binaryNode struct {
	op          byte
	left, right exprNode
}

func (n binaryNode) eval(ctx *evalContext) (uval, error) {
	left, err := n.left.eval(ctx)
	if err != nil {
		return uval{}, err
	}
	right, err := n.right.eval(ctx)
	if err != nil {
		return uval{}, err
	}
	switch n.op {
	case '+':
		return left.add(right), nil
	case '-':
		return left.sub(right), nil
	case '*':
		return left.mul(right), nil
	case '/':
		return left.div(right)
	}
	return uval{}, fmt.Errorf("unknown operator %q", n.op)
}

type otherNode struct {
	config string
	metric string
}

func (n otherNode) eval(ctx *evalContext) (uval, error) {
	return ctx.other(n.config, n.metric)
}

type shiftNode struct {
	metric string
	offset int
}

func (n shiftNode) eval(ctx *evalContext) (uval, error) {
	return ctx.shift(n.metric, n.offset)
}

// parseFormula compiles one formula string into an expression tree.
func parseFormula(formula string) (exprNode, error) {
	p := &parser{input: formula}
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return nil, fmt.Errorf("unexpected %q at offset %d", p.input[p.pos], p.pos)
	}
	return node, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		return fmt.Errorf("expected %q at offset %d", c, p.pos)
	}
	p.pos++
	return nil
}

func (p *parser) parseExpr() (exprNode, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseTerm() (exprNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (exprNode, error) {
	p.skipSpace()
	if p.peek() == '-' {
		p.pos++
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negNode{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (exprNode, error) {
	p.skipSpace()
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		node, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return node, nil
	case c == '"':
		name, err := p.parseString()
		if err != nil {
			return nil, err
		}
		return metricNode(name), nil
	case c >= '0' && c <= '9' || c == '.':
		return p.parseNumber()
	case isIdentStart(c):
		return p.parseCall()
	}
	return nil, fmt.Errorf("unexpected %q at offset %d", c, p.pos)
}

func (p *parser) parseString() (string, error) {
	if p.peek() != '"' {
		return "", fmt.Errorf("expected string at offset %d", p.pos)
	}
	p.pos++
	start := p.pos
	for p.pos < len(p.input) && p.input[p.pos] != '"' {
		p.pos++
	}
	if p.pos >= len(p.input) {
		return "", fmt.Errorf("unterminated string at offset %d", start-1)
	}
	value := p.input[start:p.pos]
	p.pos++
	return value, nil
}

func (p *parser) parseNumber() (exprNode, error) {
	start := p.pos
	for p.pos < len(p.input) && (isDigit(p.input[p.pos]) || p.input[p.pos] == '.') {
		p.pos++
	}
	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return nil, fmt.Errorf("bad number %q", p.input[start:p.pos])
	}
	return numberNode(value), nil
}

func (p *parser) parseCall() (exprNode, error) {
	start := p.pos
	for p.pos < len(p.input) && isIdentPart(p.input[p.pos]) {
		p.pos++
	}
	name := p.input[start:p.pos]
	if err := p.expect('('); err != nil {
		return nil, err
	}
	switch name {
	case "other":
		p.skipSpace()
		config, err := p.parseString()
		if err != nil {
			return nil, err
		}
		if err := p.expect(','); err != nil {
			return nil, err
		}
		p.skipSpace()
		metric, err := p.parseString()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return otherNode{config: config, metric: metric}, nil
	case "shift":
		p.skipSpace()
		metric, err := p.parseString()
		if err != nil {
			return nil, err
		}
		if err := p.expect(','); err != nil {
			return nil, err
		}
		offset, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return shiftNode{metric: metric, offset: offset}, nil
	}
	return nil, fmt.Errorf("unknown function %q", name)
}

func (p *parser) parseInt() (int, error) {
	p.skipSpace()
	start := p.pos
	if p.peek() == '-' || p.peek() == '+' {
		p.pos++
	}
	for p.pos < len(p.input) && isDigit(p.input[p.pos]) {
		p.pos++
	}
	value, err := strconv.Atoi(strings.TrimSpace(p.input[start:p.pos]))
	if err != nil {
		return 0, fmt.Errorf("bad integer at offset %d", start)
	}
	return value, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

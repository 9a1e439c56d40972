package triggers

import "fmt"

type parser struct {
	tokens []token
	pos    int
}

// parse turns source text into an expression tree.
func parse(src string) (node, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at %d", tok.text, tok.pos)
	}
	return n, nil
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) acceptOp(ops ...string) (string, bool) {
	tok := p.peek()
	if tok.kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if tok.text == op {
			p.pos++
			return op, true
		}
	}
	return "", false
}

func (p *parser) expectOp(op string) error {
	if _, ok := p.acceptOp(op); !ok {
		tok := p.peek()
		return fmt.Errorf("expected %q at %d, found %q", op, tok.pos, tok.text)
	}
	return nil
}

func (p *parser) binary(next func() (node, error), ops ...string) (node, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp(ops...)
		if !ok {
			return left, nil
		}
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseOr() (node, error)  { return p.binary(p.parseAnd, "||") }
func (p *parser) parseAnd() (node, error) { return p.binary(p.parseEquality, "&&") }
func (p *parser) parseEquality() (node, error) {
	return p.binary(p.parseRelational, "==", "!=")
}

func (p *parser) parseRelational() (node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("<", "<=", ">", ">=")
		if !ok {
			if tok := p.peek(); tok.kind == tokIdent && tok.text == "in" {
				p.next()
				op, ok = "in", true
			}
		}
		if !ok {
			return left, nil
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseAdditive() (node, error) {
	return p.binary(p.parseMultiplicative, "+", "-")
}

func (p *parser) parseMultiplicative() (node, error) {
	return p.binary(p.parseUnary, "*", "/", "%")
}

func (p *parser) parseUnary() (node, error) {
	if op, ok := p.acceptOp("!", "-"); ok {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: op, operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.peekOp("."):
			p.next()
			name := p.next()
			if name.kind != tokIdent {
				return nil, fmt.Errorf("expected property name at %d", name.pos)
			}
			if p.peekOp("(") {
				args, err := p.parseArgs()
				if err != nil {
					return nil, err
				}
				n = callNode{target: n, name: name.text, args: args}
				continue
			}
			n = memberNode{object: n, name: name.text}
		case p.peekOp("["):
			p.next()
			idx, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp("]"); err != nil {
				return nil, err
			}
			n = indexNode{object: n, index: idx}
		case p.peekOp("("):
			ident, ok := n.(identNode)
			if !ok {
				return nil, fmt.Errorf("only named helpers can be called")
			}
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			n = callNode{name: ident.name, args: args}
		default:
			return n, nil
		}
	}
}

func (p *parser) peekOp(op string) bool {
	tok := p.peek()
	return tok.kind == tokOp && tok.text == op
}

func (p *parser) parseArgs() ([]node, error) {
	if err := p.expectOp("("); err != nil {
		return nil, err
	}
	var args []node
	if _, ok := p.acceptOp(")"); ok {
		return args, nil
	}
	for {
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if _, ok := p.acceptOp(","); ok {
			continue
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return args, nil
	}
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		return literalNode{value: tok.num}, nil
	case tokString:
		return literalNode{value: tok.text}, nil
	case tokIdent:
		switch tok.text {
		case "true":
			return literalNode{value: true}, nil
		case "false":
			return literalNode{value: false}, nil
		case "null", "undefined":
			return literalNode{value: nil}, nil
		}
		return identNode{name: tok.text}, nil
	case tokOp:
		if tok.text == "(" {
			n, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return n, nil
		}
	case tokEOF:
		return nil, fmt.Errorf("unexpected end of expression")
	}
	return nil, fmt.Errorf("unexpected %q at %d", tok.text, tok.pos)
}

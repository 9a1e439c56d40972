package triggers

// node is one element of a parsed expression.
type node interface{ isNode() }

type literalNode struct{ value any }

type identNode struct{ name string }

type memberNode struct {
	object node
	name   string
}

type indexNode struct {
	object node
	index  node
}

// callNode is either a helper call (target nil) or a method call on target.
type callNode struct {
	target node
	name   string
	args   []node
}

type unaryNode struct {
	op      string
	operand node
}

type binaryNode struct {
	op          string
	left, right node
}

func (literalNode) isNode() {}
func (identNode) isNode()   {}
func (memberNode) isNode()  {}
func (indexNode) isNode()   {}
func (callNode) isNode()    {}
func (unaryNode) isNode()   {}
func (binaryNode) isNode()  {}

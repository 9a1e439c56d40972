package triggers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"Wulin-Chronicle/server/internal/state"
)

// Program is a compiled trigger expression.
type Program struct {
	source string
	root   node
}

// Compile parses an expression. The result can be evaluated many times.
func Compile(src string) (*Program, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("empty expression")
	}
	root, err := parse(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse expression %q: %w", src, err)
	}
	return &Program{source: src, root: root}, nil
}

func (p *Program) String() string { return p.source }

// Eval runs the program against a state. The state is exposed as the
// read-only identifier "state" using its JSON field names.
func (p *Program) Eval(ctx context.Context, s *state.GameState, h Helpers) (bool, error) {
	root, err := project(s)
	if err != nil {
		return false, err
	}
	ev := &evaluator{ctx: ctx, root: root, helpers: h}
	v, err := ev.eval(p.root)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

func project(s *state.GameState) (map[string]any, error) {
	if s == nil {
		return nil, fmt.Errorf("nil state")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to project state: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to project state: %w", err)
	}
	return out, nil
}

type evaluator struct {
	ctx     context.Context
	root    map[string]any
	helpers Helpers
}

func (e *evaluator) eval(n node) (any, error) {
	switch n := n.(type) {
	case literalNode:
		return n.value, nil
	case identNode:
		if n.name == "state" {
			return e.root, nil
		}
		return nil, fmt.Errorf("unknown identifier %q", n.name)
	case memberNode:
		obj, err := e.eval(n.object)
		if err != nil {
			return nil, err
		}
		return member(obj, n.name)
	case indexNode:
		obj, err := e.eval(n.object)
		if err != nil {
			return nil, err
		}
		idx, err := e.eval(n.index)
		if err != nil {
			return nil, err
		}
		return index(obj, idx)
	case callNode:
		return e.call(n)
	case unaryNode:
		v, err := e.eval(n.operand)
		if err != nil {
			return nil, err
		}
		if n.op == "!" {
			return !truthy(v), nil
		}
		num, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("cannot negate %T", v)
		}
		return -num, nil
	case binaryNode:
		return e.binary(n)
	}
	return nil, fmt.Errorf("unsupported node %T", n)
}

func (e *evaluator) binary(n binaryNode) (any, error) {
	left, err := e.eval(n.left)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "&&":
		if !truthy(left) {
			return false, nil
		}
		right, err := e.eval(n.right)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	case "||":
		if truthy(left) {
			return true, nil
		}
		right, err := e.eval(n.right)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	}

	right, err := e.eval(n.right)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "==":
		return equal(left, right), nil
	case "!=":
		return !equal(left, right), nil
	case "in":
		return contains(right, left)
	case "<", "<=", ">", ">=":
		return compare(n.op, left, right)
	case "+":
		if ls, ok := left.(string); ok {
			return ls + fmt.Sprint(right), nil
		}
	}

	l, lok := left.(float64)
	r, rok := right.(float64)
	if !lok || !rok {
		return nil, fmt.Errorf("operator %s needs numbers, got %T and %T", n.op, left, right)
	}
	switch n.op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return l / r, nil
	case "%":
		if r == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return math.Mod(l, r), nil
	}
	return nil, fmt.Errorf("unknown operator %s", n.op)
}

func (e *evaluator) call(n callNode) (any, error) {
	args := make([]any, 0, len(n.args))
	for _, a := range n.args {
		v, err := e.eval(a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	if n.target != nil {
		target, err := e.eval(n.target)
		if err != nil {
			return nil, err
		}
		switch n.name {
		case "includes", "has", "contains":
			if len(args) != 1 {
				return nil, fmt.Errorf("%s expects one argument", n.name)
			}
			return contains(target, args[0])
		}
		return nil, fmt.Errorf("method %q is not allowed", n.name)
	}

	switch n.name {
	case "randomInt", "getRandomInt":
		if len(args) != 2 {
			return nil, fmt.Errorf("%s expects two arguments", n.name)
		}
		lo, lok := args[0].(float64)
		hi, hok := args[1].(float64)
		if !lok || !hok {
			return nil, fmt.Errorf("%s expects numbers", n.name)
		}
		if e.helpers.RandomInt == nil {
			return nil, fmt.Errorf("random source unavailable")
		}
		return float64(e.helpers.RandomInt(int(lo), int(hi))), nil
	case "isFactionWarHappening":
		if e.helpers.IsFactionWarHappening == nil {
			return nil, fmt.Errorf("faction lookup unavailable")
		}
		return e.helpers.IsFactionWarHappening(e.ctx)
	case "contains":
		if len(args) != 2 {
			return nil, fmt.Errorf("contains expects two arguments")
		}
		return contains(args[0], args[1])
	}
	return nil, fmt.Errorf("helper %q is not allowed", n.name)
}

func member(obj any, name string) (any, error) {
	switch o := obj.(type) {
	case map[string]any:
		if name == "length" {
			if v, ok := o[name]; ok {
				return v, nil
			}
			return float64(len(o)), nil
		}
		return o[name], nil
	case []any:
		if name == "length" {
			return float64(len(o)), nil
		}
	case string:
		if name == "length" {
			return float64(utf8.RuneCountInString(o)), nil
		}
	case nil:
		return nil, fmt.Errorf("cannot read %q of null", name)
	}
	return nil, nil
}

func index(obj, idx any) (any, error) {
	switch o := obj.(type) {
	case map[string]any:
		return o[keyString(idx)], nil
	case []any:
		f, ok := idx.(float64)
		if !ok {
			return nil, fmt.Errorf("array index must be a number")
		}
		i := int(f)
		if i < 0 || i >= len(o) {
			return nil, nil
		}
		return o[i], nil
	case nil:
		return nil, fmt.Errorf("cannot index null")
	}
	return nil, nil
}

func contains(collection, item any) (any, error) {
	switch c := collection.(type) {
	case []any:
		for _, v := range c {
			if equal(v, item) {
				return true, nil
			}
		}
		return false, nil
	case map[string]any:
		_, ok := c[keyString(item)]
		return ok, nil
	case string:
		s, ok := item.(string)
		if !ok {
			return false, nil
		}
		return strings.Contains(c, s), nil
	case nil:
		return false, nil
	}
	return nil, fmt.Errorf("cannot search in %T", collection)
}

func compare(op string, left, right any) (any, error) {
	if l, ok := left.(float64); ok {
		r, ok := right.(float64)
		if !ok {
			return nil, fmt.Errorf("cannot compare number with %T", right)
		}
		switch op {
		case "<":
			return l < r, nil
		case "<=":
			return l <= r, nil
		case ">":
			return l > r, nil
		default:
			return l >= r, nil
		}
	}
	if l, ok := left.(string); ok {
		r, ok := right.(string)
		if !ok {
			return nil, fmt.Errorf("cannot compare string with %T", right)
		}
		switch op {
		case "<":
			return l < r, nil
		case "<=":
			return l <= r, nil
		case ">":
			return l > r, nil
		default:
			return l >= r, nil
		}
	}
	return nil, fmt.Errorf("cannot compare %T", left)
}

func equal(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case float64, string, bool:
		return a == b
	default:
		return reflect.DeepEqual(av, b)
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		return t != ""
	}
	return true
}

func keyString(v any) string {
	switch k := v.(type) {
	case string:
		return k
	case float64:
		return strconv.FormatFloat(k, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(k)
	}
	return fmt.Sprint(v)
}

package expr

import (
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/roach88/ingestlab/internal/ir"
)

// Program is a compiled expression. It is immutable and safe for concurrent use.
type Program struct {
	source string
	root   node
}

// Compile checks and parses an expression.
func Compile(code string) (*Program, error) {
	if err := CheckSource(code); err != nil {
		return nil, err
	}
	root, err := parse(code)
	if err != nil {
		return nil, err
	}
	return &Program{source: code, root: root}, nil
}

// Source returns the expression text.
func (p *Program) Source() string { return p.source }

// Eval runs the program with `value` bound to v.
//
// Results map back onto ir values: null to ir.Null, strings to ir.Text,
// integers to ir.Int, floats to ir.Float and booleans to the text
// "true" or "false".
func (p *Program) Eval(v ir.Value) (ir.Value, error) {
	out, err := eval(p.root, fromValue(v))
	if err != nil {
		return nil, err
	}
	return toValue(out), nil
}

func fromValue(v ir.Value) any {
	switch val := v.(type) {
	case nil, ir.Null:
		return nil
	case ir.Text:
		return string(val)
	case ir.Date:
		return string(val)
	case ir.Int:
		return int64(val)
	case ir.Float:
		return float64(val)
	default:
		return v.String()
	}
}

func toValue(v any) ir.Value {
	switch val := v.(type) {
	case nil:
		return ir.Null{}
	case string:
		return ir.Text(val)
	case int64:
		return ir.Int(val)
	case float64:
		return ir.Float(val)
	case bool:
		return ir.Text(strconv.FormatBool(val))
	default:
		return ir.Text(fmt.Sprint(val))
	}
}

func eval(n node, value any) (any, error) {
	switch n := n.(type) {
	case literalNode:
		return n.val, nil
	case valueNode:
		return value, nil
	case unaryNode:
		operand, err := eval(n.operand, value)
		if err != nil {
			return nil, err
		}
		if n.op == "not" {
			return !truthy(operand), nil
		}
		return negate(operand)
	case binaryNode:
		return evalBinary(n, value)
	case condNode:
		cond, err := eval(n.cond, value)
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return eval(n.then, value)
		}
		return eval(n.otherwise, value)
	case callNode:
		args := make([]any, len(n.args))
		for i, a := range n.args {
			v, err := eval(a, value)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		out, err := n.fn.call(args)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n.name, err)
		}
		if f, ok := out.(float64); ok && !isFinite(f) {
			return nil, fmt.Errorf("%s: %w", n.name, evalErr("result is not a finite number"))
		}
		return checkString(out)
	default:
		return nil, evalErr("unknown node %T", n)
	}
}

func evalBinary(n binaryNode, value any) (any, error) {
	left, err := eval(n.left, value)
	if err != nil {
		return nil, err
	}

	// and/or short-circuit and yield an operand, not a bool.
	switch n.op {
	case "and":
		if !truthy(left) {
			return left, nil
		}
		return eval(n.right, value)
	case "or":
		if truthy(left) {
			return left, nil
		}
		return eval(n.right, value)
	}

	right, err := eval(n.right, value)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "==":
		return equal(left, right), nil
	case "!=":
		return !equal(left, right), nil
	case "<", "<=", ">", ">=":
		c, err := compare(left, right)
		if err != nil {
			return nil, err
		}
		switch n.op {
		case "<":
			return c < 0, nil
		case "<=":
			return c <= 0, nil
		case ">":
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	case "+":
		_, ls := left.(string)
		_, rs := right.(string)
		if ls || rs {
			if left == nil || right == nil {
				return nil, evalErr("cannot concatenate null")
			}
			return checkString(textOf(left) + textOf(right))
		}
		return arith(n.op, left, right)
	default:
		return arith(n.op, left, right)
	}
}

func checkString(v any) (any, error) {
	if s, ok := v.(string); ok && utf8.RuneCountInString(s) > MaxStringLength {
		return nil, evalErr("string result longer than %d characters", MaxStringLength)
	}
	return v, nil
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int64:
		return val != 0
	case float64:
		return val != 0
	default:
		return true
	}
}

func textOf(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// asFloat reports the numeric value of ints and floats.
func asFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case int64:
		return float64(val), true
	case float64:
		return val, true
	default:
		return 0, false
	}
}

func equal(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return a == b
}

func compare(a, b any) (int, error) {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			switch {
			case fa < fb:
				return -1, nil
			case fa > fb:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		switch {
		case sa < sb:
			return -1, nil
		case sa > sb:
			return 1, nil
		default:
			return 0, nil
		}
	}
	return 0, evalErr("cannot compare %s and %s", typeName(a), typeName(b))
}

func negate(v any) (any, error) {
	switch val := v.(type) {
	case int64:
		if val == math.MinInt64 {
			return nil, evalErr("integer overflow")
		}
		return -val, nil
	case float64:
		return -val, nil
	default:
		return nil, evalErr("cannot negate %s", typeName(v))
	}
}

func arith(op string, a, b any) (any, error) {
	ia, aInt := a.(int64)
	ib, bInt := b.(int64)
	if aInt && bInt && op != "/" {
		switch op {
		case "+":
			s := ia + ib
			if (s > ia) != (ib > 0) {
				return nil, evalErr("integer overflow")
			}
			return s, nil
		case "-":
			d := ia - ib
			if (d < ia) != (ib > 0) {
				return nil, evalErr("integer overflow")
			}
			return d, nil
		case "*":
			if ia != 0 && ib != 0 {
				p := ia * ib
				if p/ib != ia || (ia == -1 && ib == math.MinInt64) || (ib == -1 && ia == math.MinInt64) {
					return nil, evalErr("integer overflow")
				}
				return p, nil
			}
			return int64(0), nil
		case "%":
			if ib == 0 {
				return nil, evalErr("modulo by zero")
			}
			return ia % ib, nil
		}
	}

	fa, aok := asFloat(a)
	fb, bok := asFloat(b)
	if !aok || !bok {
		return nil, evalErr("unsupported operands for %s: %s and %s", op, typeName(a), typeName(b))
	}
	var out float64
	switch op {
	case "+":
		out = fa + fb
	case "-":
		out = fa - fb
	case "*":
		out = fa * fb
	case "/":
		if fb == 0 {
			return nil, evalErr("division by zero")
		}
		out = fa / fb
	case "%":
		if fb == 0 {
			return nil, evalErr("modulo by zero")
		}
		out = math.Mod(fa, fb)
	default:
		return nil, evalErr("unknown operator %s", op)
	}
	if !isFinite(out) {
		return nil, evalErr("result is not a finite number")
	}
	return out, nil
}

func isFinite(f float64) bool { return !math.IsInf(f, 0) && !math.IsNaN(f) }

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "text"
	case int64:
		return "int"
	case float64:
		return "float"
	case bool:
		return "bool"
	default:
		return fmt.Sprintf("%T", v)
	}
}

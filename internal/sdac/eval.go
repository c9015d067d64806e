package sdac

import (
	"github.com/speckdavid/symk-sub001/internal/ddkit"
	"github.com/speckdavid/symk-sub001/internal/symvars"
)

// VarIndex resolves a cost expression's variable name to the task's
// variable index; callers (internal/planio's task loader) build this from
// the task file's `variables` section.
type VarIndex func(name string) (int, bool)

// Eval folds a parsed cost expression to an ADD over sv.
func Eval(e Expr, sv *symvars.SymVariables, vars VarIndex) (ddkit.Edge, error) {
	f := sv.Forest()
	switch n := e.(type) {
	case Const:
		return f.Terminal(n.Value), nil
	case VarRef:
		idx, ok := vars(n.Name)
		if !ok {
			return ddkit.Edge{}, &EvalError{Msg: "unresolved variable " + n.Name}
		}
		return sv.ValueADD(idx)
	case Binary:
		return evalBinary(f, sv, vars, n)
	case Unary:
		return evalUnary(f, sv, vars, n)
	default:
		return ddkit.Edge{}, &EvalError{Msg: "unknown expression node"}
	}
}

func evalBinary(f *ddkit.Forest, sv *symvars.SymVariables, vars VarIndex, n Binary) (ddkit.Edge, error) {
	lhs, err := Eval(n.Left, sv, vars)
	if err != nil {
		return ddkit.Edge{}, err
	}
	rhs, err := Eval(n.Right, sv, vars)
	if err != nil {
		return ddkit.Edge{}, err
	}
	switch n.Op {
	case "+":
		return f.ApplyNumeric(func(x, y float64) float64 { return x + y }, lhs, rhs)
	case "-":
		return f.ApplyNumeric(func(x, y float64) float64 { return x - y }, lhs, rhs)
	case "*":
		return f.ApplyNumeric(func(x, y float64) float64 { return x * y }, lhs, rhs)
	case "/":
		divByZero := false
		result, err := f.ApplyNumeric(func(x, y float64) float64 {
			if y == 0 {
				divByZero = true
				return 0
			}
			return x / y
		}, lhs, rhs)
		if err != nil {
			return ddkit.Edge{}, err
		}
		if divByZero {
			return ddkit.Edge{}, &EvalError{Msg: "division by zero"}
		}
		return result, nil
	case "==":
		return f.ApplyNumeric(func(x, y float64) float64 { return boolF(x == y) }, lhs, rhs)
	case ">":
		return f.ApplyNumeric(func(x, y float64) float64 { return boolF(x > y) }, lhs, rhs)
	case ">=":
		return f.ApplyNumeric(func(x, y float64) float64 { return boolF(x >= y) }, lhs, rhs)
	case "<":
		return f.ApplyNumeric(func(x, y float64) float64 { return boolF(x < y) }, lhs, rhs)
	case "<=":
		return f.ApplyNumeric(func(x, y float64) float64 { return boolF(x <= y) }, lhs, rhs)
	case "&&":
		return f.ApplyNumeric(func(x, y float64) float64 { return boolF(x != 0 && y != 0) }, lhs, rhs)
	case "||":
		return f.ApplyNumeric(func(x, y float64) float64 { return boolF(x != 0 || y != 0) }, lhs, rhs)
	default:
		return ddkit.Edge{}, &EvalError{Msg: "unknown binary operator " + n.Op}
	}
}

func evalUnary(f *ddkit.Forest, sv *symvars.SymVariables, vars VarIndex, n Unary) (ddkit.Edge, error) {
	operand, err := Eval(n.Expr, sv, vars)
	if err != nil {
		return ddkit.Edge{}, err
	}
	switch n.Op {
	case "-":
		return f.ApplyNumeric(func(x, _ float64) float64 { return -x }, operand, operand)
	case "!":
		return f.ApplyNumeric(func(x, _ float64) float64 { return boolF(x == 0) }, operand, operand)
	case "abs":
		neg, err := f.ApplyNumeric(func(x, _ float64) float64 { return -x }, operand, operand)
		if err != nil {
			return ddkit.Edge{}, err
		}
		return f.ApplyNumeric(func(x, y float64) float64 {
			if x > y {
				return x
			}
			return y
		}, operand, neg)
	default:
		return ddkit.Edge{}, &EvalError{Msg: "unknown unary operator " + n.Op}
	}
}

func boolF(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

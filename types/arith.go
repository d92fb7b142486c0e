package types

import (
	"bytes"
	"math"
)

// Arith, Compare, and the unary operators live here (rather than in eval,
// where the rest of the tree-walking dispatch lives) so that both the
// interpreter and the jit package's compiled closures call the identical
// code path — the byte-for-byte parity spec.md §8 requires between
// "jit.eval(a)" and "interpreter.eval(a)" is guaranteed by construction
// this way, not by keeping two hand-written copies in sync.

func ToNumeric(v Value) (value float64, isFloat bool, ok bool) {
	switch n := v.(type) {
	case IntValue:
		return float64(n), false, true
	case FloatValue:
		return float64(n), true, true
	default:
		return 0, false, false
	}
}

func UnaryMinus(v Value) (Value, *EvalError) {
	switch n := v.(type) {
	case IntValue:
		return NewInt(-int64(n)), nil
	case FloatValue:
		return NewFloat(-float64(n)), nil
	default:
		return nil, ErrTypeError("unary - requires int or float, got %v", v.Type())
	}
}

func UnaryNot(v Value) (Value, *EvalError) { return NewBool(!v.Truthy()), nil }

func Add(left, right Value) (Value, *EvalError) {
	if ls, ok := left.(StringValue); ok {
		if rs, ok := right.(StringValue); ok {
			return NewString(string(ls) + string(rs)), nil
		}
		return nil, ErrBinaryTypeError("+", left, right)
	}
	return arith("+", left, right, func(a, b int64) (int64, bool) { return a + b, true },
		func(a, b float64) float64 { return a + b })
}

func Subtract(left, right Value) (Value, *EvalError) {
	return arith("-", left, right, func(a, b int64) (int64, bool) { return a - b, true },
		func(a, b float64) float64 { return a - b })
}

func Multiply(left, right Value) (Value, *EvalError) {
	return arith("*", left, right, func(a, b int64) (int64, bool) { return a * b, true },
		func(a, b float64) float64 { return a * b })
}

func Divide(left, right Value) (Value, *EvalError) {
	li, lIsFloat, lOk := ToNumeric(left)
	ri, rIsFloat, rOk := ToNumeric(right)
	if !lOk || !rOk {
		return nil, ErrBinaryTypeError("/", left, right)
	}
	if lIsFloat || rIsFloat {
		if ri == 0 {
			return nil, ErrDivisionByZero()
		}
		return NewFloat(li / ri), nil
	}
	r := int64(ri)
	if r == 0 {
		return nil, ErrDivisionByZero()
	}
	return NewInt(int64(li) / r), nil
}

func Modulo(left, right Value) (Value, *EvalError) {
	li, lIsFloat, lOk := ToNumeric(left)
	ri, rIsFloat, rOk := ToNumeric(right)
	if !lOk || !rOk {
		return nil, ErrBinaryTypeError("%", left, right)
	}
	if ri == 0 {
		return nil, ErrDivisionByZero()
	}
	if lIsFloat || rIsFloat {
		result := math.Mod(li, ri)
		if result != 0 && (result < 0) != (ri < 0) {
			result += ri
		}
		return NewFloat(result), nil
	}
	a, b := int64(li), int64(ri)
	result := a % b
	if result != 0 && (result < 0) != (b < 0) {
		result += b
	}
	return NewInt(result), nil
}

func Power(left, right Value) (Value, *EvalError) {
	li, lIsFloat, lOk := ToNumeric(left)
	ri, rIsFloat, rOk := ToNumeric(right)
	if !lOk || !rOk {
		return nil, ErrBinaryTypeError("^", left, right)
	}
	result := math.Pow(li, ri)
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return nil, ErrInvalidOperation("^ overflowed")
	}
	if !lIsFloat && !rIsFloat && result == math.Floor(result) &&
		result >= float64(math.MinInt64) && result <= float64(math.MaxInt64) {
		return NewInt(int64(result)), nil
	}
	return NewFloat(result), nil
}

func arith(op string, left, right Value, intOp func(a, b int64) (int64, bool), floatOp func(a, b float64) float64) (Value, *EvalError) {
	li, lIsFloat, lOk := ToNumeric(left)
	ri, rIsFloat, rOk := ToNumeric(right)
	if !lOk || !rOk {
		return nil, ErrBinaryTypeError(op, left, right)
	}
	if lIsFloat || rIsFloat {
		return NewFloat(floatOp(li, ri)), nil
	}
	result, ok := intOp(int64(li), int64(ri))
	if !ok {
		return nil, ErrInvalidOperation("%s overflowed", op)
	}
	return NewInt(result), nil
}

func Equal(left, right Value) Value    { return NewBool(left.Equal(right)) }
func NotEqual(left, right Value) Value { return NewBool(!left.Equal(right)) }

func Compare(left, right Value) (int, *EvalError) {
	li, _, lOk := ToNumeric(left)
	ri, _, rOk := ToNumeric(right)
	if lOk && rOk {
		switch {
		case li < ri:
			return -1, nil
		case li > ri:
			return 1, nil
		default:
			return 0, nil
		}
	}

	if ls, ok := left.(StringValue); ok {
		if rs, ok := right.(StringValue); ok {
			return bytes.Compare([]byte(ls), []byte(rs)), nil
		}
	}

	if lo, ok := left.(ObjectValue); ok {
		if ro, ok := right.(ObjectValue); ok {
			return bytes.Compare(lo.ID.Bytes(), ro.ID.Bytes()), nil
		}
	}

	return 0, ErrBinaryTypeError("<", left, right)
}

func Less(left, right Value) (Value, *EvalError) {
	cmp, err := Compare(left, right)
	if err != nil {
		return nil, err
	}
	return NewBool(cmp < 0), nil
}

func LessEqual(left, right Value) (Value, *EvalError) {
	cmp, err := Compare(left, right)
	if err != nil {
		return nil, err
	}
	return NewBool(cmp <= 0), nil
}

func Greater(left, right Value) (Value, *EvalError) {
	cmp, err := Compare(left, right)
	if err != nil {
		return nil, err
	}
	return NewBool(cmp > 0), nil
}

func GreaterEqual(left, right Value) (Value, *EvalError) {
	cmp, err := Compare(left, right)
	if err != nil {
		return nil, err
	}
	return NewBool(cmp >= 0), nil
}

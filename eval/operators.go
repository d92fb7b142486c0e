package eval

import "echo/types"

// Binary/unary operator dispatch, thinned down to wrap types.Add/Compare/etc
// (see types/arith.go) in a Result so the jit package's compiled closures
// and the interpreter's evalBinary/evalNode both run the exact same
// arithmetic/comparison code — required for the byte-for-byte parity
// spec.md §8 demands between a JIT-compiled expression and its interpreted
// equivalent.

func evalUnaryMinus(v types.Value) Result {
	r, err := types.UnaryMinus(v)
	if err != nil {
		return ErrResult(err)
	}
	return Ok(r)
}

func evalUnaryNot(v types.Value) Result {
	r, _ := types.UnaryNot(v)
	return Ok(r)
}

func evalAdd(left, right types.Value) Result      { return wrap(types.Add(left, right)) }
func evalSubtract(left, right types.Value) Result { return wrap(types.Subtract(left, right)) }
func evalMultiply(left, right types.Value) Result { return wrap(types.Multiply(left, right)) }
func evalDivide(left, right types.Value) Result   { return wrap(types.Divide(left, right)) }
func evalModulo(left, right types.Value) Result   { return wrap(types.Modulo(left, right)) }
func evalPower(left, right types.Value) Result    { return wrap(types.Power(left, right)) }

func evalEqual(left, right types.Value) Result    { return Ok(types.Equal(left, right)) }
func evalNotEqual(left, right types.Value) Result { return Ok(types.NotEqual(left, right)) }

func evalLess(left, right types.Value) Result         { return wrap(types.Less(left, right)) }
func evalLessEqual(left, right types.Value) Result    { return wrap(types.LessEqual(left, right)) }
func evalGreater(left, right types.Value) Result      { return wrap(types.Greater(left, right)) }
func evalGreaterEqual(left, right types.Value) Result { return wrap(types.GreaterEqual(left, right)) }

func wrap(v types.Value, err *types.EvalError) Result {
	if err != nil {
		return ErrResult(err)
	}
	return Ok(v)
}

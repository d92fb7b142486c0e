package jit

import (
	"echo/ast"
	"echo/types"
)

// compile reduces node to a CompiledFunc, or reports ok=false if node (or
// any sub-node) falls outside the supported classes spec.md §4.6 names:
// int/float arithmetic, unary +/-, comparisons, short-circuit and/or, If
// over supported bodies. It calls the exact same types.Add/Compare/etc
// helpers the interpreter uses (see types/arith.go), so a compiled closure
// and eval.evalNode never disagree on a result.
func compile(node ast.Node) (CompiledFunc, bool) {
	switch n := node.(type) {
	case ast.ExpressionStatement:
		return compile(n.Expr)

	case ast.NumberLit:
		v := types.NewInt(n.Value)
		return func(Env) (types.Value, *types.EvalError) { return v, nil }, true
	case ast.FloatLit:
		v := types.NewFloat(n.Value)
		return func(Env) (types.Value, *types.EvalError) { return v, nil }, true
	case ast.BooleanLit:
		v := types.NewBool(n.Value)
		return func(Env) (types.Value, *types.EvalError) { return v, nil }, true
	case ast.NullLit:
		return func(Env) (types.Value, *types.EvalError) { return types.Null, nil }, true

	case ast.Identifier:
		name := n.Name
		return func(env Env) (types.Value, *types.EvalError) {
			if v, ok := env.Get(name); ok {
				return v, nil
			}
			return nil, types.ErrVariableNotFound(name)
		}, true

	case ast.UnaryExpr:
		operand, ok := compile(n.Operand)
		if !ok {
			return nil, false
		}
		switch n.Op {
		case ast.OpUnaryMinus:
			return func(env Env) (types.Value, *types.EvalError) {
				v, err := operand(env)
				if err != nil {
					return nil, err
				}
				return types.UnaryMinus(v)
			}, true
		case ast.OpUnaryPlus:
			return operand, true
		case ast.OpNot:
			return func(env Env) (types.Value, *types.EvalError) {
				v, err := operand(env)
				if err != nil {
					return nil, err
				}
				return types.UnaryNot(v)
			}, true
		}
		return nil, false

	case ast.BinaryExpr:
		return compileBinary(n)

	case ast.If:
		return compileIf(n)

	default:
		return nil, false
	}
}

func compileBinary(n ast.BinaryExpr) (CompiledFunc, bool) {
	if n.Op == ast.OpAnd || n.Op == ast.OpOr {
		left, ok := compile(n.Left)
		if !ok {
			return nil, false
		}
		right, ok := compile(n.Right)
		if !ok {
			return nil, false
		}
		isAnd := n.Op == ast.OpAnd
		return func(env Env) (types.Value, *types.EvalError) {
			lv, err := left(env)
			if err != nil {
				return nil, err
			}
			if isAnd && !lv.Truthy() {
				return types.NewBool(false), nil
			}
			if !isAnd && lv.Truthy() {
				return types.NewBool(true), nil
			}
			rv, err := right(env)
			if err != nil {
				return nil, err
			}
			return types.NewBool(rv.Truthy()), nil
		}, true
	}

	left, ok := compile(n.Left)
	if !ok {
		return nil, false
	}
	right, ok := compile(n.Right)
	if !ok {
		return nil, false
	}

	var op func(a, b types.Value) (types.Value, *types.EvalError)
	switch n.Op {
	case ast.OpAdd:
		op = types.Add
	case ast.OpSubtract:
		op = types.Subtract
	case ast.OpMultiply:
		op = types.Multiply
	case ast.OpDivide:
		op = types.Divide
	case ast.OpModulo:
		op = types.Modulo
	case ast.OpPower:
		op = types.Power
	case ast.OpEqual:
		op = func(a, b types.Value) (types.Value, *types.EvalError) { return types.Equal(a, b), nil }
	case ast.OpNotEqual:
		op = func(a, b types.Value) (types.Value, *types.EvalError) { return types.NotEqual(a, b), nil }
	case ast.OpLess:
		op = types.Less
	case ast.OpLessEqual:
		op = types.LessEqual
	case ast.OpGreater:
		op = types.Greater
	case ast.OpGreaterEqual:
		op = types.GreaterEqual
	default:
		return nil, false
	}

	return func(env Env) (types.Value, *types.EvalError) {
		lv, err := left(env)
		if err != nil {
			return nil, err
		}
		rv, err := right(env)
		if err != nil {
			return nil, err
		}
		return op(lv, rv)
	}, true
}

func compileIf(n ast.If) (CompiledFunc, bool) {
	cond, ok := compile(n.Condition)
	if !ok {
		return nil, false
	}
	then, ok := compile(n.Then)
	if !ok {
		return nil, false
	}
	type branch struct {
		cond CompiledFunc
		body CompiledFunc
	}
	var elseIfs []branch
	for _, ei := range n.ElseIfs {
		c, ok := compile(ei.Condition)
		if !ok {
			return nil, false
		}
		b, ok := compile(ei.Body)
		if !ok {
			return nil, false
		}
		elseIfs = append(elseIfs, branch{cond: c, body: b})
	}
	var els CompiledFunc
	if n.Else != nil {
		e, ok := compile(n.Else)
		if !ok {
			return nil, false
		}
		els = e
	}

	return func(env Env) (types.Value, *types.EvalError) {
		cv, err := cond(env)
		if err != nil {
			return nil, err
		}
		if cv.Truthy() {
			return then(env)
		}
		for _, b := range elseIfs {
			bv, err := b.cond(env)
			if err != nil {
				return nil, err
			}
			if bv.Truthy() {
				return b.body(env)
			}
		}
		if els != nil {
			return els(env)
		}
		return types.Null, nil
	}, true
}

package eval

import (
	"sort"
	"strings"

	"echo/trace"
	"echo/types"
)

// callBuiltin dispatches the MOO-compatible builtins table (spec.md
// "MOO-compatible builtins"). ok is false when name isn't a builtin, so
// evalFunctionCall can fall through to looking up a lambda of that name.
func (e *Evaluator) callBuiltin(name string, args []types.Value, env *Environment) (types.Value, *types.EvalError, bool) {
	switch name {
	case "valid":
		return e.builtinValid(args)
	case "typeof":
		return builtinTypeof(args)
	case "tostr":
		return builtinTostr(args)
	case "notify":
		return e.builtinNotify(args, env)
	case "abs":
		return builtinAbs(args)
	case "length":
		return builtinLength(args)
	case "set":
		return builtinSet(args)
	case "get":
		return builtinGet(args)
	case "keys":
		return builtinKeys(args)
	case "values":
		return builtinValues(args)
	default:
		return nil, nil, false
	}
}

func arity(name string, args []types.Value, n int) *types.EvalError {
	if len(args) != n {
		return types.ErrInvalidOperation("%s expects %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

func (e *Evaluator) builtinValid(args []types.Value) (types.Value, *types.EvalError, bool) {
	if err := arity("valid", args, 1); err != nil {
		return nil, err, true
	}
	ov, ok := args[0].(types.ObjectValue)
	if !ok {
		return types.NewInt(0), nil, true
	}
	_, found, err := e.Objects.Get(ov.ID)
	if err != nil {
		return nil, err.(*types.EvalError), true
	}
	if found {
		return types.NewInt(1), nil, true
	}
	return types.NewInt(0), nil, true
}

func builtinTypeof(args []types.Value) (types.Value, *types.EvalError, bool) {
	if err := arity("typeof", args, 1); err != nil {
		return nil, err, true
	}
	return types.NewInt(int64(args[0].Type())), nil, true
}

func builtinTostr(args []types.Value) (types.Value, *types.EvalError, bool) {
	if len(args) == 0 {
		return nil, types.ErrInvalidOperation("tostr expects at least 1 argument"), true
	}
	var b strings.Builder
	for _, a := range args {
		b.WriteString(a.String())
	}
	return types.NewString(b.String()), nil, true
}

func (e *Evaluator) builtinNotify(args []types.Value, env *Environment) (types.Value, *types.EvalError, bool) {
	if err := arity("notify", args, 2); err != nil {
		return nil, err, true
	}
	var id types.ObjectID
	switch who := args[0].(type) {
	case types.ObjectValue:
		id = who.ID
	case types.IntValue:
		rid, err := e.resolveObjectRef(int64(who), env)
		if err != nil {
			return nil, err, true
		}
		id = rid
	default:
		return nil, types.ErrTypeError("notify: who must be an object or int, got %v", args[0].Type()), true
	}
	if _, err := e.Objects.MustGet(id); err != nil {
		return nil, err.(*types.EvalError), true
	}
	e.emitUI(UIEvent{
		Action: "NotifyPlayer",
		Target: id.String(),
		Data: map[string]types.Value{
			"player_id": types.NewObject(id),
			"message":   args[1],
		},
	})
	trace.Notify(id, args[1].String())
	return args[1], nil, true
}

func builtinAbs(args []types.Value) (types.Value, *types.EvalError, bool) {
	if err := arity("abs", args, 1); err != nil {
		return nil, err, true
	}
	switch v := args[0].(type) {
	case types.IntValue:
		if v < 0 {
			return types.NewInt(int64(-v)), nil, true
		}
		return v, nil, true
	case types.FloatValue:
		if v < 0 {
			return types.NewFloat(float64(-v)), nil, true
		}
		return v, nil, true
	default:
		return nil, types.ErrTypeError("abs requires int or float, got %v", v.Type()), true
	}
}

func builtinLength(args []types.Value) (types.Value, *types.EvalError, bool) {
	if err := arity("length", args, 1); err != nil {
		return nil, err, true
	}
	switch v := args[0].(type) {
	case types.StringValue:
		return types.NewInt(int64(len(string(v)))), nil, true
	case types.ListValue:
		return types.NewInt(int64(len(v.Elements))), nil, true
	case types.MapValue:
		return types.NewInt(int64(len(v.Entries))), nil, true
	default:
		return nil, types.ErrTypeError("length requires a string, list, or map, got %v", v.Type()), true
	}
}

// builtinSet(coll, key, value) returns a new collection with key set to
// value: list keys are ints, map keys are strings, matching indexValue's
// own key-type rules.
func builtinSet(args []types.Value) (types.Value, *types.EvalError, bool) {
	if err := arity("set", args, 3); err != nil {
		return nil, err, true
	}
	switch coll := args[0].(type) {
	case types.ListValue:
		i, ok := args[1].(types.IntValue)
		if !ok {
			return nil, types.ErrTypeError("set: list key must be an int"), true
		}
		if int64(i) < 0 || int(i) >= len(coll.Elements) {
			return nil, types.ErrInvalidOperation("set: list index %d out of range (len %d)", int64(i), len(coll.Elements)), true
		}
		next := make([]types.Value, len(coll.Elements))
		copy(next, coll.Elements)
		next[int(i)] = args[2]
		return types.ListValue{Elements: next}, nil, true
	case types.MapValue:
		key, ok := args[1].(types.StringValue)
		if !ok {
			return nil, types.ErrTypeError("set: map key must be a string"), true
		}
		return coll.Set(string(key), args[2]), nil, true
	default:
		return nil, types.ErrTypeError("set requires a list or map, got %v", coll.Type()), true
	}
}

func builtinGet(args []types.Value) (types.Value, *types.EvalError, bool) {
	if len(args) != 2 && len(args) != 3 {
		return nil, types.ErrInvalidOperation("get expects 2 or 3 arguments, got %d", len(args)), true
	}
	r := indexValue(args[0], args[1])
	if r.Err != nil {
		if len(args) == 3 {
			return args[2], nil, true
		}
		return nil, r.Err, true
	}
	return r.Value, nil, true
}

func builtinKeys(args []types.Value) (types.Value, *types.EvalError, bool) {
	if err := arity("keys", args, 1); err != nil {
		return nil, err, true
	}
	m, ok := args[0].(types.MapValue)
	if !ok {
		return nil, types.ErrTypeError("keys requires a map, got %v", args[0].Type()), true
	}
	ks := make([]string, 0, len(m.Entries))
	for k := range m.Entries {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	out := make([]types.Value, len(ks))
	for i, k := range ks {
		out[i] = types.NewString(k)
	}
	return types.ListValue{Elements: out}, nil, true
}

func builtinValues(args []types.Value) (types.Value, *types.EvalError, bool) {
	if err := arity("values", args, 1); err != nil {
		return nil, err, true
	}
	m, ok := args[0].(types.MapValue)
	if !ok {
		return nil, types.ErrTypeError("values requires a map, got %v", args[0].Type()), true
	}
	ks := make([]string, 0, len(m.Entries))
	for k := range m.Entries {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	out := make([]types.Value, len(ks))
	for i, k := range ks {
		out[i] = m.Entries[k]
	}
	return types.ListValue{Elements: out}, nil, true
}

package eval

import (
	"echo/ast"
	"echo/objstore"
	"echo/security"
	"echo/types"
)

func (e *Evaluator) evalArgs(exprs []ast.Expr, env *Environment) ([]types.Value, Result) {
	args := make([]types.Value, len(exprs))
	for i, a := range exprs {
		r := e.evalNode(a, env)
		if !r.IsNormal() {
			return nil, r
		}
		args[i] = r.Value
	}
	return args, Result{}
}

func (e *Evaluator) evalFunctionCall(n ast.FunctionCall, env *Environment) Result {
	args, bad := e.evalArgs(n.Args, env)
	if bad.Err != nil || bad.Signal != signalNone {
		return bad
	}
	if v, err, ok := e.callBuiltin(n.Name, args, env); ok {
		if err != nil {
			return ErrResult(err)
		}
		return Ok(v)
	}
	if bound, ok := env.Get(n.Name); ok {
		if lv, ok := bound.(LambdaValue); ok {
			return e.invokeLambda(lv, args)
		}
		return ErrResult(types.ErrTypeError("%q is not callable", n.Name))
	}
	return ErrResult(types.ErrVariableNotFound(n.Name))
}

func (e *Evaluator) evalCall(n ast.Call, env *Environment) Result {
	fnR := e.evalNode(n.Func, env)
	if !fnR.IsNormal() {
		return fnR
	}
	lv, ok := fnR.Value.(LambdaValue)
	if !ok {
		return ErrResult(types.ErrTypeError("cannot call a %v", fnR.Value.Type()))
	}
	args, bad := e.evalArgs(n.Args, env)
	if bad.Err != nil || bad.Signal != signalNone {
		return bad
	}
	return e.invokeLambda(lv, args)
}

// invokeLambda binds params into a frame whose parent is the lambda's
// captured snapshot (spec.md §4.5 "Lambdas").
func (e *Evaluator) invokeLambda(lv LambdaValue, args []types.Value) Result {
	frame := NewChildEnvironment(lv.Captured)
	if err := e.bindParams(frame, lv.Params, args); err != nil {
		return ErrResult(err)
	}
	r := e.evalNode(lv.Body, frame)
	if r.Signal == signalReturn {
		return Ok(r.Value)
	}
	if r.Signal == signalBreak || r.Signal == signalContinue {
		return ErrResult(types.ErrInvalidOperation("break/continue escaped lambda body"))
	}
	return r
}

func (e *Evaluator) evalAssignment(n ast.Assignment, env *Environment) Result {
	rhs := e.evalNode(n.Value, env)
	if !rhs.IsNormal() {
		return rhs
	}
	switch target := n.Target.(type) {
	case ast.IdentifierLValue:
		if err := env.Assign(target.Name, rhs.Value); err != nil {
			return ErrResult(err.(*types.EvalError))
		}
		return Ok(rhs.Value)
	case ast.PropertyLValue:
		return e.assignProperty(target, rhs.Value, env)
	case ast.IndexLValue:
		return e.assignIndex(target, rhs.Value, env)
	default:
		return ErrResult(types.ErrInvalidOperation("unsupported assignment target"))
	}
}

func (e *Evaluator) assignProperty(target ast.PropertyLValue, v types.Value, env *Environment) Result {
	objR := e.evalNode(target.Object, env)
	if !objR.IsNormal() {
		return objR
	}
	obj, _, err := resolveObject(e.Objects, objR.Value)
	if err != nil {
		return ErrResult(err)
	}
	subject := types.SYSTEM
	if e.currentPlayer != nil {
		subject = *e.currentPlayer
	}
	if cerr := e.checkCapability(subject, security.Capability{Kind: security.WriteProperty, Object: obj.ID, Name: target.Property}); cerr != nil {
		return ErrResult(cerr)
	}
	pv, perr := types.ValueToProperty(v)
	if perr != nil {
		return ErrResult(types.ErrInvalidOperation("%v", perr))
	}
	obj.SetProperty(target.Property, pv)
	if serr := e.Objects.Store(obj); serr != nil {
		return ErrResult(serr.(*types.EvalError))
	}
	return Ok(v)
}

// assignIndex handles `target[idx] = v` where target is an identifier or a
// property path; list elements are mutated in place (the Go slice backing
// array is shared with whatever holds the List), map updates rebuild the
// map (MapValue.Set is copy-on-write) and are written back to target.
func (e *Evaluator) assignIndex(target ast.IndexLValue, v types.Value, env *Environment) Result {
	coll := e.evalNode(target.Target, env)
	if !coll.IsNormal() {
		return coll
	}
	idx := e.evalNode(target.Index, env)
	if !idx.IsNormal() {
		return idx
	}

	var updated types.Value
	switch c := coll.Value.(type) {
	case types.ListValue:
		i, ok := idx.Value.(types.IntValue)
		if !ok {
			return ErrResult(types.ErrTypeError("list index must be an int"))
		}
		if int64(i) < 0 || int(i) >= len(c.Elements) {
			return ErrResult(types.ErrInvalidOperation("list index %d out of range (len %d)", int64(i), len(c.Elements)))
		}
		c.Elements[int(i)] = v
		updated = c
	case types.MapValue:
		key, ok := idx.Value.(types.StringValue)
		if !ok {
			return ErrResult(types.ErrTypeError("map index must be a string"))
		}
		updated = c.Set(string(key), v)
	default:
		return ErrResult(types.ErrTypeError("cannot index-assign into %v", coll.Value.Type()))
	}

	switch t := target.Target.(type) {
	case ast.Identifier:
		if err := env.Assign(t.Name, updated); err != nil {
			return ErrResult(err.(*types.EvalError))
		}
	case ast.PropertyAccess:
		return e.assignProperty(ast.PropertyLValue{Base: t.Base, Object: t.Object, Property: t.Property}, updated, env)
	default:
		return ErrResult(types.ErrInvalidOperation("unsupported nested index assignment target"))
	}
	return Ok(v)
}

func (e *Evaluator) evalDestructuring(n ast.DestructuringAssignment, env *Environment) Result {
	rhs := e.evalNode(n.Value, env)
	if !rhs.IsNormal() {
		return rhs
	}
	list, ok := rhs.Value.(types.ListValue)
	if !ok {
		return ErrResult(types.ErrTypeError("destructuring requires a list, got %v", rhs.Value.Type()))
	}
	vs := list.Elements
	for i, target := range n.Targets {
		switch target.Kind {
		case ast.DestructSimple:
			if i >= len(vs) {
				return ErrResult(types.ErrInvalidOperation("destructuring target %q has no matching value", target.Name))
			}
			env.Define(target.Name, vs[i], false)
		case ast.DestructOptional:
			if i < len(vs) {
				env.Define(target.Name, vs[i], false)
				continue
			}
			var def types.Value = types.Null
			if target.Default != nil {
				r := e.evalNode(target.Default, env)
				if !r.IsNormal() {
					return r
				}
				def = r.Value
			}
			env.Define(target.Name, def, false)
		case ast.DestructRest:
			var rest []types.Value
			if i < len(vs) {
				rest = append(rest, vs[i:]...)
			}
			env.Define(target.Name, types.ListValue{Elements: rest}, false)
		}
	}
	return Ok(rhs.Value)
}

// evalObjectDef implements spec.md §4.5 "Object definition": allocate (or
// reuse by name), resolve parent, install members, persist, return the new
// object reference.
func (e *Evaluator) evalObjectDef(n ast.ObjectDef, env *Environment) Result {
	owner := types.SYSTEM
	if e.currentPlayer != nil {
		owner = *e.currentPlayer
	}

	var id types.ObjectID
	if existing, ok, err := e.Objects.FindByName(n.Name); err != nil {
		return ErrResult(err.(*types.EvalError))
	} else if ok {
		id = existing.ID
	} else {
		id = types.NewObjectID()
	}
	obj := objstore.NewObject(id, n.Name, owner)

	if n.Parent != "" {
		parentID, perr := e.resolveParentName(n.Parent, env)
		if perr != nil {
			return ErrResult(perr)
		}
		obj.Parent = &parentID
	}

	for _, p := range n.Props {
		r := e.evalNode(p.Value, env)
		if !r.IsNormal() {
			return r
		}
		pv, perr := types.ValueToProperty(r.Value)
		if perr != nil {
			return ErrResult(types.ErrInvalidOperation("property %q: %v", p.Name, perr))
		}
		obj.SetProperty(p.Name, pv)
	}
	for _, v := range n.Verbs {
		obj.SetVerb(objstore.VerbDefinition{
			Name:      v.Name,
			Signature: v.Signature,
			Params:    v.Params,
			Body:      v.Body,
			Source:    v.Source,
			Owner:     owner,
		})
	}
	for _, ev := range n.Events {
		obj.SetEvent(objstore.EventDefinition{
			Name:   ev.Name,
			Params: ev.Params,
			Body:   ev.Body,
			Source: ev.Source,
			Owner:  owner,
		})
		// Events are also reachable as an ordinary verb under a mangled
		// name, so callVerb's parent-chain dispatch can invoke a handler
		// the same way it invokes any other verb (spec.md §4.5 "event
		// members register a verb under the mangled name __event_<name>").
		obj.SetVerb(objstore.VerbDefinition{
			Name:   "__event_" + ev.Name,
			Params: ev.Params,
			Body:   ev.Body,
			Source: ev.Source,
			Owner:  owner,
		})
	}

	if err := e.Objects.Store(obj); err != nil {
		return ErrResult(err.(*types.EvalError))
	}
	return Ok(types.NewObject(id))
}

func (e *Evaluator) resolveParentName(name string, env *Environment) (types.ObjectID, *types.EvalError) {
	if obj, ok, err := e.Objects.FindByName(name); err != nil {
		return types.ObjectID{}, err.(*types.EvalError)
	} else if ok {
		return obj.ID, nil
	}
	if v, ok := env.Get(name); ok {
		if ov, ok := v.(types.ObjectValue); ok {
			return ov.ID, nil
		}
	}
	return types.ObjectID{}, types.ErrObjectNotFound(types.ObjectID{})
}

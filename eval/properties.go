package eval

import (
	"echo/ast"
	"echo/objstore"
	"echo/parser"
	"echo/security"
	"echo/trace"
	"echo/types"
)

// resolveObject fetches the stored object backing v, requiring v to be an
// ObjectValue (spec.md §4.5 dispatch sections all begin this way).
func resolveObject(objects *objstore.Store, v types.Value) (*objstore.Object, types.ObjectID, *types.EvalError) {
	ov, ok := v.(types.ObjectValue)
	if !ok {
		return nil, types.ObjectID{}, types.ErrTypeError("expected an object, got %v", v.Type())
	}
	obj, err := objects.MustGet(ov.ID)
	if err != nil {
		return nil, ov.ID, err.(*types.EvalError)
	}
	return obj, ov.ID, nil
}

// findProperty walks the parent chain starting at obj looking for name
// (spec.md §4.5 "Dispatch: property access").
func (e *Evaluator) findProperty(obj *objstore.Object, name string) (types.PropertyValue, *objstore.Object, bool, *types.EvalError) {
	cur := obj
	for {
		if pv, ok := cur.Properties[name]; ok {
			return pv, cur, true, nil
		}
		if cur.Parent == nil {
			return types.PropertyValue{}, nil, false, nil
		}
		parent, err := e.Objects.MustGet(*cur.Parent)
		if err != nil {
			return types.PropertyValue{}, nil, false, err.(*types.EvalError)
		}
		cur = parent
	}
}

// findVerb walks the parent chain looking for a verb named name.
func (e *Evaluator) findVerb(obj *objstore.Object, name string) (*objstore.VerbDefinition, *objstore.Object, *types.EvalError) {
	cur := obj
	for {
		if v, ok := cur.Verbs[name]; ok {
			return &v, cur, nil
		}
		if cur.Parent == nil {
			return nil, nil, nil
		}
		parent, err := e.Objects.MustGet(*cur.Parent)
		if err != nil {
			return nil, nil, err.(*types.EvalError)
		}
		cur = parent
	}
}

func (e *Evaluator) evalPropertyAccess(n ast.PropertyAccess, env *Environment) Result {
	objR := e.evalNode(n.Object, env)
	if !objR.IsNormal() {
		return objR
	}
	obj, _, err := resolveObject(e.Objects, objR.Value)
	if err != nil {
		return ErrResult(err)
	}
	pv, _, found, err := e.findProperty(obj, n.Property)
	if err != nil {
		return ErrResult(err)
	}
	if !found {
		return ErrResult(types.ErrPropertyNotFound(n.Property))
	}
	return Ok(pv.ToValue())
}

// evalSystemProperty resolves #0.<name>, falling back to a player-local
// variable of the same name (spec.md §4.5: "this fallback is what allows
// the REPL to bind temporaries like $x without polluting #0").
func (e *Evaluator) evalSystemProperty(n ast.SystemProperty, env *Environment) Result {
	system, err := e.Objects.MustGet(types.SYSTEM)
	if err != nil {
		return ErrResult(err.(*types.EvalError))
	}
	if pv, _, found, ferr := e.findProperty(system, n.Name); ferr != nil {
		return ErrResult(ferr)
	} else if found {
		return Ok(pv.ToValue())
	}
	if v, ok := env.Get(n.Name); ok {
		return Ok(v)
	}
	return ErrResult(types.ErrPropertyNotFound(n.Name))
}

// resolveObjectRef implements spec.md §4.4's four-step ObjectRef
// resolution, stopping at the first hit.
func (e *Evaluator) resolveObjectRef(n int64, env *Environment) (types.ObjectID, *types.EvalError) {
	if n == 0 {
		return types.SYSTEM, nil
	}
	if n == 1 {
		return types.ROOT, nil
	}
	system, err := e.Objects.MustGet(types.SYSTEM)
	if err != nil {
		return types.ObjectID{}, err.(*types.EvalError)
	}
	if verb, _, verr := e.findVerb(system, "object_map"); verr != nil {
		return types.ObjectID{}, verr
	} else if verb != nil {
		r := e.callVerb(verb, types.NewObject(types.SYSTEM), types.NewObject(types.SYSTEM),
			[]types.Value{types.NewInt(n)}, env)
		if r.Err != nil {
			return types.ObjectID{}, r.Err
		}
		if r.Value != nil && r.Value.Type() != types.TypeNull {
			if ov, ok := r.Value.(types.ObjectValue); ok {
				return ov.ID, nil
			}
		}
	}
	if pv, _, found, ferr := e.findProperty(system, "object_map"); ferr != nil {
		return types.ObjectID{}, ferr
	} else if found && pv.Kind == types.PropMap {
		key := types.NewInt(n).String()
		if entry, ok := pv.Map[key]; ok && entry.Kind == types.PropObject {
			return entry.Object, nil
		}
	}
	return types.ObjectID{}, types.ObjectRefResolutionError(n)
}

func (e *Evaluator) checkCapability(subject types.ObjectID, cap security.Capability) *types.EvalError {
	if !e.RequireCapabilities || e.Security == nil {
		return nil
	}
	if !e.Security.Check(subject, cap) {
		return types.ErrPermissionDenied("capability denied: %v on %v", cap.Kind, cap.Object)
	}
	return nil
}

func (e *Evaluator) evalMethodCall(n ast.MethodCall, env *Environment) Result {
	objR := e.evalNode(n.Object, env)
	if !objR.IsNormal() {
		return objR
	}
	obj, objID, err := resolveObject(e.Objects, objR.Value)
	if err != nil {
		return ErrResult(err)
	}
	verb, definer, verr := e.findVerb(obj, n.Method)
	if verr != nil {
		return ErrResult(verr)
	}
	if verb == nil {
		return ErrResult(types.ErrVerbNotFound(n.Method))
	}

	subject := types.SYSTEM
	if e.currentPlayer != nil {
		subject = *e.currentPlayer
	}
	if cerr := e.checkCapability(subject, security.Capability{Kind: security.CallVerb, Object: definer.ID, Name: n.Method}); cerr != nil {
		return ErrResult(cerr)
	}

	args := make([]types.Value, len(n.Args))
	for i, a := range n.Args {
		r := e.evalNode(a, env)
		if !r.IsNormal() {
			return r
		}
		args[i] = r.Value
	}
	return e.callVerb(verb, types.NewObject(objID), types.NewObject(subject), args, env)
}

// verbBody returns verb's parsed body, re-parsing verb.Source and caching
// the result under the source text if the persisted record arrived with a
// nil Body. Store.Get always decodes a fresh Object with Body nil — gob
// never carries the parsed AST, only Source (objstore/encode.go) — so every
// verb/event dispatched after a load leans on this instead of the Body a
// freshly-defined-this-session verb already carries.
func (e *Evaluator) verbBody(verb *objstore.VerbDefinition) (ast.Node, *types.EvalError) {
	if verb.Body != nil {
		return verb.Body, nil
	}
	if cached, ok := e.parsedBodies[verb.Source]; ok {
		return cached, nil
	}
	prog, err := parser.Parse(verb.Source)
	if err != nil {
		return nil, types.ErrParse("verb %q: %v", verb.Name, err)
	}
	body := &ast.Block{Base: prog.Base, Statements: prog.Statements}
	if e.parsedBodies == nil {
		e.parsedBodies = make(map[string]*ast.Block)
	}
	e.parsedBodies[verb.Source] = body
	return body, nil
}

// callVerb opens a fresh frame (this/caller/args + parameter bindings) and
// evaluates the verb's body in it (spec.md §4.5 "Dispatch: method calls").
// A Return signal terminates the call with its value; otherwise the last
// statement's value is the result. Entry, return, and exception are all
// reported to the trace package (SPEC_FULL.md §6 ECHO_TRACE), which drops
// them silently when no tracer is installed.
func (e *Evaluator) callVerb(verb *objstore.VerbDefinition, this, caller types.Value, args []types.Value, callerEnv *Environment) Result {
	objID, _ := this.(types.ObjectValue)
	callerID, _ := caller.(types.ObjectValue)
	player := types.SYSTEM
	if e.currentPlayer != nil {
		player = *e.currentPlayer
	}
	trace.VerbCall(objID.ID, verb.Name, args, player, callerID.ID)

	body, berr := e.verbBody(verb)
	if berr != nil {
		trace.Exception(objID.ID, verb.Name, berr)
		return ErrResult(berr)
	}

	frame := NewEnvironment()
	frame.Define("this", this, false)
	frame.Define("caller", caller, false)
	frame.Define("args", types.ListValue{Elements: args}, false)
	if err := e.bindParams(frame, verb.Params, args); err != nil {
		trace.Exception(objID.ID, verb.Name, err)
		return ErrResult(err)
	}
	r := e.evalNode(body, frame)
	if r.Signal == signalReturn {
		trace.VerbReturn(objID.ID, verb.Name, r.Value)
		return Ok(r.Value)
	}
	if r.Signal != signalNone {
		err := types.ErrInvalidOperation("break/continue escaped verb %q", verb.Name)
		trace.Exception(objID.ID, verb.Name, err)
		return ErrResult(err)
	}
	if r.Err != nil {
		trace.Exception(objID.ID, verb.Name, r.Err)
		return r
	}
	trace.VerbReturn(objID.ID, verb.Name, r.Value)
	return r
}

// bindParams binds args into frame per each param's Simple/Optional/Rest
// shape (the same destructuring target kinds used for `let [...]`). An
// Optional parameter's default is only evaluated when the argument is
// absent (spec.md §4.5 "the Optional default is only evaluated when
// needed"), in frame itself so a later default can reference an earlier
// parameter.
func (e *Evaluator) bindParams(frame *Environment, params []ast.Param, args []types.Value) *types.EvalError {
	for i, p := range params {
		switch p.Kind {
		case ast.DestructSimple:
			if i >= len(args) {
				return types.ErrInvalidOperation("missing argument %q", p.Name)
			}
			frame.Define(p.Name, args[i], false)
		case ast.DestructOptional:
			if i < len(args) {
				frame.Define(p.Name, args[i], false)
				continue
			}
			var def types.Value = types.Null
			if p.Default != nil {
				r := e.evalNode(p.Default, frame)
				if r.Err != nil {
					return r.Err
				}
				def = r.Value
			}
			frame.Define(p.Name, def, false)
		case ast.DestructRest:
			var rest []types.Value
			if i < len(args) {
				rest = append(rest, args[i:]...)
			}
			frame.Define(p.Name, types.ListValue{Elements: rest}, false)
			return nil
		}
	}
	return nil
}

// Package eval is the tree-walking evaluator (spec.md §4.5, C5): dispatch
// over the parsed AST against the object store and event log, under a
// per-player environment. Modeled on MongooseMoo's eval/eval.go (a single
// Evaluator type holding store+env, one Eval dispatch method per node kind,
// Result-returning throughout), generalized from MOO's flat global scope and
// parser.Expr nodes onto Echo's block-scoped environments and ast.Node tree.
package eval

import (
	"time"

	"echo/ast"
	"echo/events"
	"echo/jit"
	"echo/objstore"
	"echo/parser"
	"echo/security"
	"echo/trace"
	"echo/types"
)

// UIEvent is the evaluator's notification sink payload (spec.md §6 "UI event
// contract"). REPL/web front ends consume these through SetUICallback; the
// callback is invoked synchronously, so a callback that blocks stalls
// evaluation.
type UIEvent struct {
	Action string
	Target string
	Data   map[string]types.Value
}

const defaultMaxEvalDepth = 1000

// Evaluator is the dispatch engine: one object store, one event log, one
// capability manager, and a per-player set of root environments.
type Evaluator struct {
	Objects  *objstore.Store
	Events   *events.Store
	Security *security.Manager

	// RequireCapabilities gates whether verb dispatch and property writes
	// consult Security at all. Default false: the capability manager is a
	// available hook (exercised directly by callers and tests that opt in),
	// not an unconditional default-deny gate on every dispatch — a brand
	// new, ungranted Manager would otherwise brick every verb call.
	RequireCapabilities bool

	MaxEvalDepth int

	// JIT is the optional C6 adjunct (spec.md §4.6). Nil means every node
	// goes through the interpreter, same as EnableJIT=false in
	// config.Config.
	JIT *jit.Adjunct

	environments  map[types.ObjectID]*Environment
	currentPlayer *types.ObjectID
	uiCallback    func(UIEvent)
	depth         int

	// parsedBodies caches the re-parse of a verb/event Source string, keyed
	// by the source text itself (parsing is pure, so identical source
	// always yields an equivalent body). Store.Get always hands back a
	// VerbDefinition with Body nil — gob never carries the parsed AST (see
	// objstore/encode.go) — so callVerb leans on this cache instead of
	// re-parsing on every single dispatch.
	parsedBodies map[string]*ast.Block
}

// New builds an Evaluator over the given collaborators. The JIT adjunct is
// off by default; call EnableJIT to turn it on.
func New(objects *objstore.Store, ev *events.Store, sec *security.Manager) *Evaluator {
	return &Evaluator{
		Objects:      objects,
		Events:       ev,
		Security:     sec,
		MaxEvalDepth: defaultMaxEvalDepth,
		environments: make(map[types.ObjectID]*Environment),
	}
}

// EnableJIT installs a fresh jit.Adjunct, making evalNode consult it for
// every supported node class before falling through to the interpreter.
func (e *Evaluator) EnableJIT() { e.JIT = jit.New() }

// SetUICallback installs the UI-event sink (spec.md §4.5 "set_ui_callback").
func (e *Evaluator) SetUICallback(cb func(UIEvent)) { e.uiCallback = cb }

func (e *Evaluator) emitUI(evt UIEvent) {
	if e.uiCallback != nil {
		e.uiCallback(evt)
	}
}

// CurrentPlayer returns the current player, if any.
func (e *Evaluator) CurrentPlayer() *types.ObjectID { return e.currentPlayer }

// envFor returns (creating if necessary) the root environment for player.
func (e *Evaluator) envFor(player types.ObjectID) *Environment {
	env, ok := e.environments[player]
	if !ok {
		env = NewEnvironment()
		e.environments[player] = env
	}
	return env
}

// GetEnvironmentVars returns the current player's top-level bindings
// (runtime.rs's get_environment_vars, SPEC_FULL.md §4.5 "Supplemented").
func (e *Evaluator) GetEnvironmentVars() []struct {
	Name  string
	Value types.Value
} {
	if e.currentPlayer == nil {
		return nil
	}
	env := e.envFor(*e.currentPlayer)
	out := make([]struct {
		Name  string
		Value types.Value
	}, 0, len(env.vars))
	for name, v := range env.vars {
		out = append(out, struct {
			Name  string
			Value types.Value
		}{Name: name, Value: v})
	}
	return out
}

// EvalSource parses and evaluates src against the current player's
// environment, defaulting to a find-or-create "default" player if none is
// current yet (SPEC_FULL.md §4.5 "Default-player bootstrap convenience").
func (e *Evaluator) EvalSource(src string) (types.Value, error) {
	if e.currentPlayer == nil {
		if err := e.ensureDefaultPlayer(); err != nil {
			return nil, err
		}
	}
	prog, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}
	return e.Eval(prog)
}

func (e *Evaluator) ensureDefaultPlayer() error {
	if id, ok, err := e.FindPlayerByUsername("default"); err != nil {
		return err
	} else if ok {
		return e.SwitchPlayer(id)
	}
	id, err := e.CreatePlayer("default")
	if err != nil {
		return err
	}
	return e.SwitchPlayer(id)
}

// Eval evaluates node against the current player's environment.
func (e *Evaluator) Eval(node ast.Node) (types.Value, error) {
	if e.currentPlayer == nil {
		return nil, types.ErrRuntime("no current player: call CreatePlayer/SwitchPlayer first")
	}
	return e.evalTop(node, e.envFor(*e.currentPlayer))
}

// EvalWithPlayer evaluates node against player's environment without
// changing which player is current.
func (e *Evaluator) EvalWithPlayer(node ast.Node, player types.ObjectID) (types.Value, error) {
	if _, err := e.Objects.MustGet(player); err != nil {
		return nil, err
	}
	return e.evalTop(node, e.envFor(player))
}

func (e *Evaluator) evalTop(node ast.Node, env *Environment) (types.Value, error) {
	e.depth = 0
	r := e.evalNode(node, env)
	if r.Err != nil {
		return nil, r.Err
	}
	if r.Value == nil {
		return types.Null, nil
	}
	return r.Value, nil
}

// evalNode is the core dispatch, mirroring MongooseMoo's per-node-kind
// switch over parser.Node but over ast.Node, returning a Result that
// threads return/break/continue signals alongside values and errors.
func (e *Evaluator) evalNode(node ast.Node, env *Environment) Result {
	e.depth++
	defer func() { e.depth-- }()
	if e.depth > e.maxDepth() {
		return ErrResult(types.ErrInvalidOperation("max_eval_depth (%d) exceeded", e.maxDepth()))
	}

	switch n := node.(type) {
	case *ast.Program:
		return e.evalStatements(n.Statements, env)
	case *ast.Block:
		child := NewChildEnvironment(env)
		return e.evalStatements(n.Statements, child)
	case ast.ExpressionStatement:
		return e.evalNode(n.Expr, env)

	case ast.NumberLit:
		return Ok(types.NewInt(n.Value))
	case ast.FloatLit:
		return Ok(types.NewFloat(n.Value))
	case ast.StringLit:
		return Ok(types.NewString(n.Value))
	case ast.BooleanLit:
		return Ok(types.NewBool(n.Value))
	case ast.NullLit:
		return Ok(types.Null)

	case ast.Identifier:
		if v, ok := env.Get(n.Name); ok {
			return Ok(v)
		}
		return ErrResult(types.ErrVariableNotFound(n.Name))
	case ast.SystemProperty:
		return e.evalSystemProperty(n, env)
	case ast.ObjectRef:
		id, err := e.resolveObjectRef(n.Number, env)
		if err != nil {
			return ErrResult(err)
		}
		return Ok(types.NewObject(id))

	case ast.List:
		elems := make([]types.Value, len(n.Elements))
		for i, elExpr := range n.Elements {
			r := e.evalNode(elExpr, env)
			if !r.IsNormal() {
				return r
			}
			elems[i] = r.Value
		}
		return Ok(types.ListValue{Elements: elems})
	case ast.Map:
		m := types.NewMap()
		for _, entry := range n.Entries {
			r := e.evalNode(entry.Value, env)
			if !r.IsNormal() {
				return r
			}
			m = m.Set(entry.Key, r.Value)
		}
		return Ok(m)

	case ast.BinaryExpr:
		if v, ok, jerr := e.tryJIT(n, env); ok {
			return resultFromJIT(v, jerr)
		}
		return e.evalBinary(n, env)
	case ast.UnaryExpr:
		if v, ok, jerr := e.tryJIT(n, env); ok {
			return resultFromJIT(v, jerr)
		}
		r := e.evalNode(n.Operand, env)
		if !r.IsNormal() {
			return r
		}
		switch n.Op {
		case ast.OpUnaryMinus:
			return evalUnaryMinus(r.Value)
		case ast.OpUnaryPlus:
			return r
		case ast.OpNot:
			return evalUnaryNot(r.Value)
		default:
			return ErrResult(types.ErrInvalidOperation("unknown unary operator"))
		}

	case ast.PropertyAccess:
		return e.evalPropertyAccess(n, env)
	case ast.MethodCall:
		return e.evalMethodCall(n, env)
	case ast.FunctionCall:
		return e.evalFunctionCall(n, env)
	case ast.Call:
		return e.evalCall(n, env)

	case ast.LocalAssignment:
		r := e.evalNode(n.Value, env)
		if !r.IsNormal() {
			return r
		}
		env.Define(n.Name, r.Value, false)
		return Ok(r.Value)
	case ast.ConstAssignment:
		if _, alreadyLocal := env.vars[n.Name]; alreadyLocal {
			return ErrResult(types.ErrPermissionDenied("cannot redeclare %q as const", n.Name))
		}
		r := e.evalNode(n.Value, env)
		if !r.IsNormal() {
			return r
		}
		env.Define(n.Name, r.Value, true)
		return Ok(r.Value)
	case ast.Assignment:
		return e.evalAssignment(n, env)
	case ast.DestructuringAssignment:
		return e.evalDestructuring(n, env)

	case ast.If:
		if v, ok, jerr := e.tryJIT(n, env); ok {
			return resultFromJIT(v, jerr)
		}
		return e.evalIf(n, env)
	case ast.While:
		return e.evalWhile(n, env)
	case ast.For:
		return e.evalFor(n, env)
	case ast.Break:
		return breakSignal(n.Label)
	case ast.Continue:
		return continueSignal(n.Label)
	case ast.Return:
		if n.Value == nil {
			return returnSignal(types.Null)
		}
		r := e.evalNode(n.Value, env)
		if !r.IsNormal() {
			return r
		}
		return returnSignal(r.Value)
	case ast.Try:
		return e.evalTry(n, env)
	case ast.Match:
		return e.evalMatch(n, env)

	case ast.ObjectDef:
		return e.evalObjectDef(n, env)
	case ast.Lambda:
		return Ok(LambdaValue{Params: n.Params, Body: n.Body, Captured: env.snapshot(), Source: n.Source})
	case ast.Emit:
		return e.evalEmit(n, env)

	case ast.Index:
		return e.evalIndex(n, env)

	default:
		return ErrResult(types.ErrRuntime("unsupported node type %T", node))
	}
}

// tryJIT consults the JIT adjunct, if one is installed, for node. ok=false
// on any bail-out — trivial node, not yet hot, or a sub-node outside the
// supported classes — meaning the caller must fall back to its own
// interpreted evaluation for node (spec.md §4.6 "Fallback discipline").
func (e *Evaluator) tryJIT(node ast.Node, env *Environment) (types.Value, bool, *types.EvalError) {
	if e.JIT == nil {
		return nil, false, nil
	}
	return e.JIT.Eval(node, env)
}

func resultFromJIT(v types.Value, err *types.EvalError) Result {
	if err != nil {
		return ErrResult(err)
	}
	return Ok(v)
}

func (e *Evaluator) maxDepth() int {
	if e.MaxEvalDepth <= 0 {
		return defaultMaxEvalDepth
	}
	return e.MaxEvalDepth
}

// evalStatements evaluates a sequence, returning the last statement's
// result (or Null for an empty sequence, spec.md §8 "An empty Program([])
// evaluates to Null").
func (e *Evaluator) evalStatements(stmts []ast.Node, env *Environment) Result {
	last := Ok(types.Value(types.Null))
	for _, s := range stmts {
		r := e.evalNode(s, env)
		if !r.IsNormal() {
			return r
		}
		last = r
	}
	return last
}

func (e *Evaluator) evalBinary(n ast.BinaryExpr, env *Environment) Result {
	if n.Op == ast.OpAnd || n.Op == ast.OpOr {
		left := e.evalNode(n.Left, env)
		if !left.IsNormal() {
			return left
		}
		if n.Op == ast.OpAnd && !left.Value.Truthy() {
			return Ok(types.NewBool(false))
		}
		if n.Op == ast.OpOr && left.Value.Truthy() {
			return Ok(types.NewBool(true))
		}
		right := e.evalNode(n.Right, env)
		if !right.IsNormal() {
			return right
		}
		return Ok(types.NewBool(right.Value.Truthy()))
	}

	left := e.evalNode(n.Left, env)
	if !left.IsNormal() {
		return left
	}
	right := e.evalNode(n.Right, env)
	if !right.IsNormal() {
		return right
	}
	switch n.Op {
	case ast.OpAdd:
		return evalAdd(left.Value, right.Value)
	case ast.OpSubtract:
		return evalSubtract(left.Value, right.Value)
	case ast.OpMultiply:
		return evalMultiply(left.Value, right.Value)
	case ast.OpDivide:
		return evalDivide(left.Value, right.Value)
	case ast.OpModulo:
		return evalModulo(left.Value, right.Value)
	case ast.OpPower:
		return evalPower(left.Value, right.Value)
	case ast.OpEqual:
		return evalEqual(left.Value, right.Value)
	case ast.OpNotEqual:
		return evalNotEqual(left.Value, right.Value)
	case ast.OpLess:
		return evalLess(left.Value, right.Value)
	case ast.OpGreater:
		return evalGreater(left.Value, right.Value)
	case ast.OpLessEqual:
		return evalLessEqual(left.Value, right.Value)
	case ast.OpGreaterEqual:
		return evalGreaterEqual(left.Value, right.Value)
	default:
		return ErrResult(types.ErrInvalidOperation("unknown binary operator"))
	}
}

func (e *Evaluator) evalIndex(n ast.Index, env *Environment) Result {
	target := e.evalNode(n.Target, env)
	if !target.IsNormal() {
		return target
	}
	idx := e.evalNode(n.Index, env)
	if !idx.IsNormal() {
		return idx
	}
	return indexValue(target.Value, idx.Value)
}

func indexValue(target, idx types.Value) Result {
	switch coll := target.(type) {
	case types.ListValue:
		i, ok := idx.(types.IntValue)
		if !ok {
			return ErrResult(types.ErrTypeError("list index must be an int"))
		}
		if int64(i) < 0 || int(i) >= len(coll.Elements) {
			return ErrResult(types.ErrInvalidOperation("list index %d out of range (len %d)", int64(i), len(coll.Elements)))
		}
		return Ok(coll.Elements[int(i)])
	case types.MapValue:
		key, ok := idx.(types.StringValue)
		if !ok {
			return ErrResult(types.ErrTypeError("map index must be a string"))
		}
		v, ok := coll.Get(string(key))
		if !ok {
			return ErrResult(types.ErrPropertyNotFound(string(key)))
		}
		return Ok(v)
	default:
		return ErrResult(types.ErrTypeError("cannot index %v", target.Type()))
	}
}

func (e *Evaluator) evalIf(n ast.If, env *Environment) Result {
	cond := e.evalNode(n.Condition, env)
	if !cond.IsNormal() {
		return cond
	}
	if cond.Value.Truthy() {
		return e.evalNode(n.Then, env)
	}
	for _, ei := range n.ElseIfs {
		c := e.evalNode(ei.Condition, env)
		if !c.IsNormal() {
			return c
		}
		if c.Value.Truthy() {
			return e.evalNode(ei.Body, env)
		}
	}
	if n.Else != nil {
		return e.evalNode(n.Else, env)
	}
	return Ok(types.Null)
}

func (e *Evaluator) evalWhile(n ast.While, env *Environment) Result {
	for {
		cond := e.evalNode(n.Condition, env)
		if !cond.IsNormal() {
			return cond
		}
		if !cond.Value.Truthy() {
			return Ok(types.Null)
		}
		body := e.evalNode(n.Body, NewChildEnvironment(env))
		if body.Signal == signalBreak {
			if body.Label == "" || body.Label == n.Label {
				return Ok(types.Null)
			}
			return body
		}
		if body.Signal == signalContinue {
			if body.Label == "" || body.Label == n.Label {
				continue
			}
			return body
		}
		if !body.IsNormal() {
			return body
		}
	}
}

func (e *Evaluator) evalFor(n ast.For, env *Environment) Result {
	iter := e.evalNode(n.Iter, env)
	if !iter.IsNormal() {
		return iter
	}
	list, ok := iter.Value.(types.ListValue)
	if !ok {
		return ErrResult(types.ErrTypeError("for-in requires a list, got %v", iter.Value.Type()))
	}
	for _, elem := range list.Elements {
		child := NewChildEnvironment(env)
		child.Define(n.Var, elem, false)
		body := e.evalNode(n.Body, child)
		if body.Signal == signalBreak {
			if body.Label == "" || body.Label == n.Label {
				return Ok(types.Null)
			}
			return body
		}
		if body.Signal == signalContinue {
			if body.Label == "" || body.Label == n.Label {
				continue
			}
			return body
		}
		if !body.IsNormal() {
			return body
		}
	}
	return Ok(types.Null)
}

func (e *Evaluator) evalTry(n ast.Try, env *Environment) Result {
	result := e.evalNode(n.Body, NewChildEnvironment(env))
	if result.Err != nil && n.Catch != nil {
		catchEnv := NewChildEnvironment(env)
		if n.Catch.ErrorVar != "" {
			catchEnv.Define(n.Catch.ErrorVar, types.NewString(result.Err.Error()), false)
		}
		result = e.evalNode(n.Catch.Body, catchEnv)
	}
	if n.Finally != nil {
		finallyResult := e.evalNode(n.Finally.Body, NewChildEnvironment(env))
		if !finallyResult.IsNormal() {
			return finallyResult
		}
	}
	return result
}

func (e *Evaluator) evalMatch(n ast.Match, env *Environment) Result {
	subject := e.evalNode(n.Expr, env)
	if !subject.IsNormal() {
		return subject
	}
	for _, arm := range n.Arms {
		armEnv := NewChildEnvironment(env)
		matched := false
		switch arm.Pattern.Kind {
		case ast.PatternWildcard:
			matched = true
		case ast.PatternIdentifier:
			armEnv.Define(arm.Pattern.Name, subject.Value, false)
			matched = true
		case ast.PatternLiteral:
			matched = arm.Pattern.Literal != nil && arm.Pattern.Literal.Equal(subject.Value)
		}
		if !matched {
			continue
		}
		if arm.Guard != nil {
			g := e.evalNode(arm.Guard, armEnv)
			if !g.IsNormal() {
				return g
			}
			if !g.Value.Truthy() {
				continue
			}
		}
		return e.evalNode(arm.Body, armEnv)
	}
	return Ok(types.Null)
}

func (e *Evaluator) evalEmit(n ast.Emit, env *Environment) Result {
	args := make([]types.PropertyValue, len(n.Args))
	for i, a := range n.Args {
		r := e.evalNode(a, env)
		if !r.IsNormal() {
			return r
		}
		pv, perr := types.ValueToProperty(r.Value)
		if perr != nil {
			return ErrResult(types.ErrInvalidOperation("emit: %v", perr))
		}
		args[i] = pv
	}
	source := types.SYSTEM
	if e.currentPlayer != nil {
		source = *e.currentPlayer
	}
	evt := events.Event{
		Name:      n.Event,
		Source:    source,
		Timestamp: time.Now().UnixNano(),
		Args:      args,
	}
	if e.currentPlayer != nil {
		p := *e.currentPlayer
		evt.Player = &p
	}
	if e.Events != nil {
		_, subscriberCount, err := e.Events.Emit(evt)
		if err != nil {
			return ErrResult(err.(*types.EvalError))
		}
		trace.EmitEvent(n.Event, source, subscriberCount)
	}
	return Ok(types.Null)
}

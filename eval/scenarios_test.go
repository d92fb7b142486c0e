package eval

import (
	"testing"

	"echo/events"
	"echo/objstore"
	"echo/types"
)

// S1: arithmetic over let-bound locals.
func TestScenarioArithmeticLocals(t *testing.T) {
	e := newTestEvaluator(t)
	v := mustEval(t, e, "let x = 5; let y = 10; x + y")
	i, ok := v.(types.IntValue)
	if !ok || int64(i) != 15 {
		t.Fatalf("got %#v, want Integer(15)", v)
	}
}

// S2: a verb defined on an object, invoked through a property access on
// `this`, dispatched via a direct object reference rather than a bare
// identifier (named objects aren't addressable as identifiers on their
// own — only through #0.object_map or a let-bound alias).
func TestScenarioObjectDefAndVerbDispatch(t *testing.T) {
	e := newTestEvaluator(t)
	mustEval(t, e, `
object greeter
  name = "Bob";

  verb greet() [this, none, none]
    return "Hello from " + this.name + "!";
  endverb
endobject
`)
	greeter, ok, err := e.Objects.FindByName("greeter")
	if err != nil || !ok {
		t.Fatalf("FindByName(greeter): ok=%v err=%v", ok, err)
	}

	env := e.envFor(*e.currentPlayer)
	env.Define("g", types.NewObject(greeter.ID), false)

	v := mustEval(t, e, "g.greet()")
	s, ok := v.(types.StringValue)
	if !ok || string(s) != "Hello from Bob!" {
		t.Fatalf("got %#v, want String(\"Hello from Bob!\")", v)
	}
}

// S3: each player gets an isolated root environment; switching players
// switches which environment `let`/identifier lookups see.
func TestScenarioPerPlayerEnvironmentIsolation(t *testing.T) {
	e := newTestEvaluator(t)

	aliceID, err := e.CreatePlayer("alice")
	if err != nil {
		t.Fatalf("CreatePlayer(alice): %v", err)
	}
	if err := e.SwitchPlayer(aliceID); err != nil {
		t.Fatalf("SwitchPlayer(alice): %v", err)
	}
	mustEval(t, e, "let x = 100;")

	bobID, err := e.CreatePlayer("bob")
	if err != nil {
		t.Fatalf("CreatePlayer(bob): %v", err)
	}
	if err := e.SwitchPlayer(bobID); err != nil {
		t.Fatalf("SwitchPlayer(bob): %v", err)
	}
	if _, err := e.EvalSource("x"); err == nil {
		t.Fatalf("expected VariableNotFound for bob's x, got no error")
	} else if ee, ok := err.(*types.EvalError); !ok || ee.Kind != types.KindVariableNotFound {
		t.Fatalf("expected KindVariableNotFound, got %#v", err)
	}
	mustEval(t, e, "let x = 200;")

	if err := e.SwitchPlayer(aliceID); err != nil {
		t.Fatalf("SwitchPlayer(alice): %v", err)
	}
	v := mustEval(t, e, "x")
	i, ok := v.(types.IntValue)
	if !ok || int64(i) != 100 {
		t.Fatalf("got %#v, want Integer(100) for alice's x", v)
	}
}

// S4: a division error is caught and replaced by the catch body's value.
func TestScenarioTryCatchRecoversFromError(t *testing.T) {
	e := newTestEvaluator(t)
	v := mustEval(t, e, `
try
  1 / 0;
catch e
  "caught";
endtry
`)
	s, ok := v.(types.StringValue)
	if !ok || string(s) != "caught" {
		t.Fatalf("got %#v, want String(\"caught\")", v)
	}
}

// S5: #<N> resolves through #0.object_map when N isn't 0 or 1.
func TestScenarioObjectRefViaObjectMap(t *testing.T) {
	e := newTestEvaluator(t)
	mustEval(t, e, `
object greeter
  name = "Bob";
endobject
`)
	greeter, ok, err := e.Objects.FindByName("greeter")
	if err != nil || !ok {
		t.Fatalf("FindByName(greeter): ok=%v err=%v", ok, err)
	}

	system, serr := e.Objects.MustGet(types.SYSTEM)
	if serr != nil {
		t.Fatalf("MustGet(SYSTEM): %v", serr)
	}
	system.SetProperty("object_map", types.MapProp(map[string]types.PropertyValue{
		"10": types.ObjectProp(greeter.ID),
	}))
	if err := e.Objects.Store(system); err != nil {
		t.Fatalf("Store(system): %v", err)
	}

	v := mustEval(t, e, "#10.name")
	s, ok := v.(types.StringValue)
	if !ok || string(s) != "Bob" {
		t.Fatalf("got %#v, want String(\"Bob\")", v)
	}
}

// S6: emitting the same event name twice delivers both occurrences to the
// subscriber in order, with the expected name, source and payload.
func TestScenarioEmitAndSubscribe(t *testing.T) {
	e := newTestEvaluator(t)
	if _, err := e.CreatePlayer("mover"); err != nil {
		t.Fatalf("CreatePlayer: %v", err)
	}
	if err := e.SwitchPlayerByUsername("mover"); err != nil {
		t.Fatalf("SwitchPlayerByUsername: %v", err)
	}
	player := *e.CurrentPlayer()

	_, ch := e.Events.Subscribe(events.ExactPattern("player_moved"))

	mustEval(t, e, `emit player_moved("north");`)

	select {
	case got := <-ch:
		if got.Name != "player_moved" {
			t.Fatalf("got event name %q", got.Name)
		}
		if got.Source != player {
			t.Fatalf("got source %v, want %v", got.Source, player)
		}
		if len(got.Args) != 1 || got.Args[0].Kind != types.PropString || got.Args[0].Str != "north" {
			t.Fatalf("got args %#v", got.Args)
		}
	default:
		t.Fatal("subscriber received nothing")
	}

	mustEval(t, e, `emit player_moved("south");`)
	select {
	case got := <-ch:
		if len(got.Args) != 1 || got.Args[0].Str != "south" {
			t.Fatalf("second emit got %#v", got.Args)
		}
	default:
		t.Fatal("subscriber received nothing on second emit")
	}
}

// Boundary: notify(#-1, "x") fails (no such object); notify(1, "x") (root)
// succeeds and emits a NotifyPlayer UI event carrying player_id=1.
func TestBoundaryNotify(t *testing.T) {
	e := newTestEvaluator(t)

	var seen []UIEvent
	e.SetUICallback(func(evt UIEvent) { seen = append(seen, evt) })

	if _, err := e.EvalSource(`notify(#-1, "x");`); err == nil {
		t.Fatalf("expected notify(#-1, ...) to fail")
	}

	v := mustEval(t, e, `notify(#1, "x");`)
	if s, ok := v.(types.StringValue); !ok || string(s) != "x" {
		t.Fatalf("notify should return its message unchanged, got %#v", v)
	}
	if len(seen) != 1 || seen[0].Action != "NotifyPlayer" {
		t.Fatalf("expected one NotifyPlayer UI event, got %#v", seen)
	}
	pid, ok := seen[0].Data["player_id"].(types.ObjectValue)
	if !ok || pid.ID != types.ROOT {
		t.Fatalf("expected player_id=ROOT, got %#v", seen[0].Data["player_id"])
	}
}

// Boundary: typeof(true) == 0, typeof(null) == 4.
func TestBoundaryTypeof(t *testing.T) {
	e := newTestEvaluator(t)
	v := mustEval(t, e, "typeof(true);")
	if i, ok := v.(types.IntValue); !ok || int64(i) != 0 {
		t.Fatalf("typeof(true) = %#v, want 0", v)
	}
	v = mustEval(t, e, "typeof(null);")
	if i, ok := v.(types.IntValue); !ok || int64(i) != 4 {
		t.Fatalf("typeof(null) = %#v, want 4", v)
	}
}

// Boundary: an empty Program evaluates to Null.
func TestBoundaryEmptyProgramIsNull(t *testing.T) {
	e := newTestEvaluator(t)
	v := mustEval(t, e, "")
	if v.Type() != types.TypeNull {
		t.Fatalf("got %#v, want Null", v)
	}
}

// Boundary: an If with no taken branch evaluates to Null.
func TestBoundaryIfWithNoTakenBranchIsNull(t *testing.T) {
	e := newTestEvaluator(t)
	v := mustEval(t, e, "if false\n  1;\nendif")
	if v.Type() != types.TypeNull {
		t.Fatalf("got %#v, want Null", v)
	}
}

// Boundary: break inside a for-loop over [1,2,3,4,5] at x==3 stops the
// accumulation before 3 is added, leaving a running sum of 3 (1+2).
func TestBoundaryForLoopBreakStopsAccumulation(t *testing.T) {
	e := newTestEvaluator(t)
	v := mustEval(t, e, `
let sum = 0;
for x in [1, 2, 3, 4, 5]
  if x == 3
    break;
  endif
  sum = sum + x;
endfor
sum
`)
	i, ok := v.(types.IntValue)
	if !ok || int64(i) != 3 {
		t.Fatalf("got %#v, want Integer(3)", v)
	}
}

// Recursion depth above max_eval_depth raises InvalidOperation without
// corrupting the environment: a later, unrelated evaluation still succeeds.
func TestBoundaryMaxEvalDepthDoesNotCorruptEnvironment(t *testing.T) {
	e := newTestEvaluator(t)
	e.MaxEvalDepth = 20

	deep := "1"
	for i := 0; i < 50; i++ {
		deep = "(" + deep + " + 1)"
	}
	if _, err := e.EvalSource(deep + ";"); err == nil {
		t.Fatalf("expected max_eval_depth error")
	} else if ee, ok := err.(*types.EvalError); !ok || ee.Kind != types.KindInvalidOperation {
		t.Fatalf("expected KindInvalidOperation, got %#v", err)
	}

	v := mustEval(t, e, "1 + 1;")
	if i, ok := v.(types.IntValue); !ok || int64(i) != 2 {
		t.Fatalf("evaluator corrupted after depth error, got %#v", v)
	}
}

// Invariant: an object stored under a name is retrievable both by id and
// by name.
func TestInvariantStoreThenFindByName(t *testing.T) {
	e := newTestEvaluator(t)
	id := types.NewObjectID()
	obj := objstore.NewObject(id, "widget", types.SYSTEM)
	if err := e.Objects.Store(obj); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, ok, err := e.Objects.Get(id)
	if err != nil || !ok || got.Name != "widget" {
		t.Fatalf("Get(id): ok=%v err=%v got=%#v", ok, err, got)
	}
	found, ok, err := e.Objects.FindByName("widget")
	if err != nil || !ok || found.ID != id {
		t.Fatalf("FindByName: ok=%v err=%v found=%#v", ok, err, found)
	}
}

// Invariant: duplicate create(name) for a player leaves the first player
// unaffected and reports an error for the second.
func TestInvariantDuplicatePlayerCreateFails(t *testing.T) {
	e := newTestEvaluator(t)
	first, err := e.CreatePlayer("dup")
	if err != nil {
		t.Fatalf("first CreatePlayer: %v", err)
	}
	if _, err := e.CreatePlayer("dup"); err == nil {
		t.Fatalf("expected second CreatePlayer(dup) to fail")
	}
	again, ok, err := e.FindPlayerByUsername("dup")
	if err != nil || !ok || again != first {
		t.Fatalf("first player record disturbed: ok=%v err=%v again=%v first=%v", ok, err, again, first)
	}
}

// Invariant: player creation registers the username only in
// #0.player_registry, never as a same-named property directly on #0.
func TestInvariantPlayerRegistryNeverOnSystemDirectly(t *testing.T) {
	e := newTestEvaluator(t)
	if _, err := e.CreatePlayer("carol"); err != nil {
		t.Fatalf("CreatePlayer: %v", err)
	}
	system, err := e.Objects.MustGet(types.SYSTEM)
	if err != nil {
		t.Fatalf("MustGet(SYSTEM): %v", err)
	}
	if _, ok := system.Properties["carol"]; ok {
		t.Fatalf("found a property named carol directly on #0")
	}
	reg, ok := system.Properties["player_registry"]
	if !ok || reg.Kind != types.PropMap {
		t.Fatalf("expected #0.player_registry to be a map, got %#v", reg)
	}
	if _, ok := reg.Map["carol"]; !ok {
		t.Fatalf("expected carol in #0.player_registry, got %#v", reg.Map)
	}
}

// Round-trip: create_player(N) then change_player_username(id, N) is a
// no-op.
func TestRoundTripRenamePlayerToSameNameIsNoop(t *testing.T) {
	e := newTestEvaluator(t)
	id, err := e.CreatePlayer("dana")
	if err != nil {
		t.Fatalf("CreatePlayer: %v", err)
	}
	if err := e.ChangePlayerUsername(id, "dana"); err != nil {
		t.Fatalf("ChangePlayerUsername(self-rename): %v", err)
	}
	got, ok, err := e.FindPlayerByUsername("dana")
	if err != nil || !ok || got != id {
		t.Fatalf("registry disturbed by self-rename: ok=%v err=%v got=%v", ok, err, got)
	}
}

// Round-trip: rename(o, new) removes the old name from the index.
func TestRoundTripRenameRemovesOldName(t *testing.T) {
	e := newTestEvaluator(t)
	id, err := e.CreatePlayer("old")
	if err != nil {
		t.Fatalf("CreatePlayer: %v", err)
	}
	if err := e.ChangePlayerUsername(id, "new"); err != nil {
		t.Fatalf("ChangePlayerUsername: %v", err)
	}
	if _, ok, err := e.FindPlayerByUsername("old"); err != nil {
		t.Fatalf("FindPlayerByUsername(old): %v", err)
	} else if ok {
		t.Fatalf("expected old username to be gone from the registry")
	}
}

// Round-trip: delete(id) twice is legal; the second is a no-op.
func TestRoundTripDeleteTwiceIsNoop(t *testing.T) {
	e := newTestEvaluator(t)
	id := types.NewObjectID()
	obj := objstore.NewObject(id, "ephemeral", types.SYSTEM)
	if err := e.Objects.Store(obj); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := e.Objects.Delete(id); err != nil {
		t.Fatalf("first Delete: %v", err)
	}
	if err := e.Objects.Delete(id); err != nil {
		t.Fatalf("second Delete should be a no-op, got: %v", err)
	}
}

// Invariant: ObjectRef(0) resolves to SYSTEM, ObjectRef(1) resolves to ROOT.
func TestInvariantObjectRefZeroAndOneAreWellKnown(t *testing.T) {
	e := newTestEvaluator(t)
	v := mustEval(t, e, "#0;")
	if ov, ok := v.(types.ObjectValue); !ok || ov.ID != types.SYSTEM {
		t.Fatalf("#0 = %#v, want SYSTEM", v)
	}
	v = mustEval(t, e, "#1;")
	if ov, ok := v.(types.ObjectValue); !ok || ov.ID != types.ROOT {
		t.Fatalf("#1 = %#v, want ROOT", v)
	}
}

// Invariant: destructuring `[a, b=d, ...rest] = xs` binds a, b (or its
// default when absent), and rest.
func TestInvariantDestructuringShapes(t *testing.T) {
	e := newTestEvaluator(t)
	v := mustEval(t, e, `
let [a, b = 99, ...rest] = [1, 2, 3, 4];
[a, b, rest]
`)
	lv, ok := v.(types.ListValue)
	if !ok || len(lv.Elements) != 3 {
		t.Fatalf("got %#v", v)
	}
	if a, ok := lv.Elements[0].(types.IntValue); !ok || int64(a) != 1 {
		t.Fatalf("a = %#v, want 1", lv.Elements[0])
	}
	if b, ok := lv.Elements[1].(types.IntValue); !ok || int64(b) != 2 {
		t.Fatalf("b = %#v, want 2 (present, default unused)", lv.Elements[1])
	}
	rest, ok := lv.Elements[2].(types.ListValue)
	if !ok || len(rest.Elements) != 2 {
		t.Fatalf("rest = %#v, want [3, 4]", lv.Elements[2])
	}

	v = mustEval(t, e, `
let [a2, b2 = 99, ...rest2] = [1];
[a2, b2, rest2]
`)
	lv = v.(types.ListValue)
	if b2, ok := lv.Elements[1].(types.IntValue); !ok || int64(b2) != 99 {
		t.Fatalf("b2 = %#v, want 99 (default evaluated)", lv.Elements[1])
	}
	restEmpty := lv.Elements[2].(types.ListValue)
	if len(restEmpty.Elements) != 0 {
		t.Fatalf("rest2 = %#v, want []", restEmpty)
	}
}

package runtime

import (
	"path/filepath"
	"testing"

	"echo/config"
	"echo/eval"
	"echo/types"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	cfg := config.Default()
	cfg.StoragePath = filepath.Join(t.TempDir(), "echo.db")
	cfg.EnableJIT = true
	cfg.JITHotThreshold = 2

	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

// New wires a working evaluator: EvalSource can run without any further
// setup, the same ready-to-use engine a front end gets out of the box.
func TestNewProducesAWorkingEvaluator(t *testing.T) {
	r := newTestRuntime(t)
	v, err := r.EvalSource("1 + 2")
	if err != nil {
		t.Fatalf("EvalSource: %v", err)
	}
	if i, ok := v.(types.IntValue); !ok || int64(i) != 3 {
		t.Fatalf("got %#v, want Integer(3)", v)
	}
}

// EnableJIT wiring: the Engine's JIT adjunct is present and configured to
// the requested hot threshold.
func TestNewWiresJITHotThreshold(t *testing.T) {
	r := newTestRuntime(t)
	if r.Engine.JIT == nil {
		t.Fatalf("expected JIT adjunct to be installed")
	}
	if stats := r.Engine.JIT.Stats(); stats.HotThreshold != 2 {
		t.Fatalf("got HotThreshold %d, want 2", stats.HotThreshold)
	}
}

// EnableJIT=false leaves the Engine's JIT adjunct nil.
func TestJITDisabledLeavesAdjunctNil(t *testing.T) {
	cfg := config.Default()
	cfg.StoragePath = filepath.Join(t.TempDir(), "echo.db")
	cfg.EnableJIT = false

	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()
	if r.Engine.JIT != nil {
		t.Fatalf("expected no JIT adjunct when EnableJIT is false")
	}
}

// ParseProgram/Eval round trip: parsing separately from evaluating yields
// the same result as EvalSource in one step. Eval does not bootstrap a
// default player the way EvalSource does, so one is made current first.
func TestParseProgramThenEvalMatchesEvalSource(t *testing.T) {
	r := newTestRuntime(t)
	id, err := r.CreatePlayer("parser")
	if err != nil {
		t.Fatalf("CreatePlayer: %v", err)
	}
	if err := r.SwitchPlayer(id); err != nil {
		t.Fatalf("SwitchPlayer: %v", err)
	}
	prog, err := r.ParseProgram("2 * 21")
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	v, err := r.Eval(prog)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if i, ok := v.(types.IntValue); !ok || int64(i) != 42 {
		t.Fatalf("got %#v, want Integer(42)", v)
	}
}

// Player lifecycle: create, switch, find by name, list, current all agree.
func TestPlayerLifecycle(t *testing.T) {
	r := newTestRuntime(t)

	id, err := r.CreatePlayer("zara")
	if err != nil {
		t.Fatalf("CreatePlayer: %v", err)
	}
	if err := r.SwitchPlayer(id); err != nil {
		t.Fatalf("SwitchPlayer: %v", err)
	}
	if cur := r.CurrentPlayer(); cur == nil || *cur != id {
		t.Fatalf("CurrentPlayer = %v, want %v", cur, id)
	}

	found, ok, err := r.FindPlayerByName("zara")
	if err != nil || !ok || found != id {
		t.Fatalf("FindPlayerByName: ok=%v err=%v found=%v", ok, err, found)
	}

	if err := r.SwitchPlayerByName("zara"); err != nil {
		t.Fatalf("SwitchPlayerByName: %v", err)
	}

	players, err := r.ListPlayers()
	if err != nil {
		t.Fatalf("ListPlayers: %v", err)
	}
	var matched bool
	for _, p := range players {
		if p.Name == "zara" && p.ID == id {
			matched = true
		}
	}
	if !matched {
		t.Fatalf("expected zara/%v in ListPlayers, got %#v", id, players)
	}
}

// SetUICallback wiring: a notify() call reaches the installed callback.
func TestSetUICallbackReceivesNotify(t *testing.T) {
	r := newTestRuntime(t)
	var got []eval.UIEvent
	r.SetUICallback(func(evt eval.UIEvent) { got = append(got, evt) })

	if _, err := r.EvalSource(`notify(#1, "hi");`); err != nil {
		t.Fatalf("EvalSource: %v", err)
	}
	if len(got) != 1 || got[0].Action != "NotifyPlayer" {
		t.Fatalf("expected one NotifyPlayer event, got %#v", got)
	}
}

// GetEnvironmentVars reflects let-bindings made through EvalSource.
func TestGetEnvironmentVarsReflectsLetBindings(t *testing.T) {
	r := newTestRuntime(t)
	if _, err := r.EvalSource("let answer = 42;"); err != nil {
		t.Fatalf("EvalSource: %v", err)
	}
	vars := r.GetEnvironmentVars()
	var found bool
	for _, v := range vars {
		if v.Name == "answer" {
			found = true
			if i, ok := v.Value.(types.IntValue); !ok || int64(i) != 42 {
				t.Fatalf("answer = %#v, want Integer(42)", v.Value)
			}
		}
	}
	if !found {
		t.Fatalf("expected 'answer' among environment vars, got %#v", vars)
	}
}

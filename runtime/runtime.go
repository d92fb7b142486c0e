// Package runtime is the embedding façade (SPEC_FULL.md §6 "EXTERNAL
// INTERFACES"): it wires storage, the object store, the event log, security,
// and the evaluator (with its optional JIT adjunct) into one handle that a
// CLI or REPL front end drives without touching any of those packages
// directly. Modeled on MongooseMoo's own top-level wiring in cmd/barn/main.go
// (open storage, build the world, hand a ready-to-use engine to the front
// end) and eval.Evaluator's exported surface, which this façade forwards
// almost verbatim.
package runtime

import (
	"echo/ast"
	"echo/config"
	"echo/events"
	"echo/eval"
	"echo/kv"
	"echo/objstore"
	"echo/parser"
	"echo/security"
	"echo/types"
)

// Runtime bundles one evaluator over one on-disk substrate, plus the
// storage handle needed to close it down cleanly.
type Runtime struct {
	Config config.Config
	Engine *eval.Evaluator

	storage *kv.Substrate
}

// New opens storage at cfg.StoragePath, bootstraps the object store and
// event log over it, and returns a Runtime ready for EvalSource calls. The
// JIT adjunct is installed and its hot threshold configured iff
// cfg.EnableJIT.
func New(cfg config.Config) (*Runtime, error) {
	sub, err := kv.Open(cfg.StoragePath)
	if err != nil {
		return nil, err
	}

	objects, err := objstore.Open(sub)
	if err != nil {
		sub.Close()
		return nil, err
	}
	ev := events.Open(sub)
	sec := security.NewManager()

	e := eval.New(objects, ev, sec)
	e.MaxEvalDepth = cfg.MaxEvalDepth
	if cfg.EnableJIT {
		e.EnableJIT()
		e.JIT.SetHotThreshold(cfg.JITHotThreshold)
	}

	return &Runtime{Config: cfg, Engine: e, storage: sub}, nil
}

// Close flushes and closes the underlying storage substrate.
func (r *Runtime) Close() error {
	return r.storage.Close()
}

// EvalSource parses and evaluates src against the current player.
func (r *Runtime) EvalSource(src string) (types.Value, error) {
	return r.Engine.EvalSource(src)
}

// ParseProgram parses src into an AST without evaluating it, for front ends
// that want to inspect or cache the tree first.
func (r *Runtime) ParseProgram(src string) (*ast.Program, error) {
	return parser.Parse(src)
}

// Eval evaluates an already-parsed node against the current player.
func (r *Runtime) Eval(node ast.Node) (types.Value, error) {
	return r.Engine.Eval(node)
}

// CreatePlayer registers a new player object under the given username.
func (r *Runtime) CreatePlayer(username string) (types.ObjectID, error) {
	return r.Engine.CreatePlayer(username)
}

// SwitchPlayer makes id the current player for subsequent Eval calls.
func (r *Runtime) SwitchPlayer(id types.ObjectID) error {
	return r.Engine.SwitchPlayer(id)
}

// SwitchPlayerByName looks up a player by username and switches to it.
func (r *Runtime) SwitchPlayerByName(name string) error {
	return r.Engine.SwitchPlayerByUsername(name)
}

// FindPlayerByName reports the ObjectID registered under name, if any.
func (r *Runtime) FindPlayerByName(name string) (types.ObjectID, bool, error) {
	return r.Engine.FindPlayerByUsername(name)
}

// ListPlayers returns every registered (username, ObjectId) pair.
func (r *Runtime) ListPlayers() ([]struct {
	Name string
	ID   types.ObjectID
}, error) {
	return r.Engine.ListPlayers()
}

// CurrentPlayer returns the current player's ObjectId, or nil if none is set.
func (r *Runtime) CurrentPlayer() *types.ObjectID {
	return r.Engine.CurrentPlayer()
}

// SetUICallback installs the sink that receives UI events emitted by
// builtins such as notify() (SPEC_FULL.md §6 "UI event contract").
func (r *Runtime) SetUICallback(cb func(eval.UIEvent)) {
	r.Engine.SetUICallback(cb)
}

// GetEnvironmentVars returns the current player's top-level bindings.
func (r *Runtime) GetEnvironmentVars() []struct {
	Name  string
	Value types.Value
} {
	return r.Engine.GetEnvironmentVars()
}

package eval

import (
	"testing"

	"echo/events"
	"echo/kv"
	"echo/objstore"
	"echo/security"
	"echo/types"
)

// newTestEvaluator wires a fresh Evaluator over a throwaway on-disk kv
// substrate, mirroring MongooseMoo's pattern of round-tripping through a
// real store rather than a mock (see db/reader_test.go).
func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	sub, err := kv.Open(t.TempDir())
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	t.Cleanup(func() { sub.Close() })

	objects, err := objstore.Open(sub)
	if err != nil {
		t.Fatalf("objstore.Open: %v", err)
	}
	ev := events.Open(sub)
	sec := security.NewManager()
	return New(objects, ev, sec)
}

// mustEval parses and evaluates src, failing the test on any error.
func mustEval(t *testing.T, e *Evaluator, src string) types.Value {
	t.Helper()
	v, err := e.EvalSource(src)
	if err != nil {
		t.Fatalf("EvalSource(%q): %v", src, err)
	}
	return v
}

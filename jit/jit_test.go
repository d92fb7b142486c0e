package jit

import (
	"testing"

	"echo/ast"
	"echo/types"
)

// mapEnv is the minimal jit.Env a test needs: a flat variable map.
type mapEnv map[string]types.Value

func (m mapEnv) Get(name string) (types.Value, bool) {
	v, ok := m[name]
	return v, ok
}

func add(left, right ast.Expr) ast.BinaryExpr {
	return ast.BinaryExpr{Op: ast.OpAdd, Left: left, Right: right}
}

func num(n int64) ast.NumberLit { return ast.NumberLit{Value: n} }

// A binary expression never compiles on its first hit: the hot threshold
// gates compilation, so the interpreter must keep handling it until it
// has been seen hotThreshold times.
func TestEvalBailsOutBelowHotThreshold(t *testing.T) {
	a := New()
	a.SetHotThreshold(3)
	node := add(num(1), num(2))

	for i := 0; i < 2; i++ {
		if _, ok, _ := a.Eval(node, mapEnv{}); ok {
			t.Fatalf("iteration %d: expected bail-out below hot threshold", i)
		}
	}
	stats := a.Stats()
	if stats.CompilationCount != 0 {
		t.Fatalf("expected no compilations yet, got %d", stats.CompilationCount)
	}
}

// Once a fingerprint crosses the hot threshold, Eval compiles it and
// subsequent hits reuse the cached closure without recompiling.
func TestEvalCompilesOnceAfterHotThreshold(t *testing.T) {
	a := New()
	a.SetHotThreshold(2)
	node := add(num(1), num(2))

	for i := 0; i < 2; i++ {
		a.Eval(node, mapEnv{})
	}
	v, ok, err := a.Eval(node, mapEnv{})
	if !ok || err != nil {
		t.Fatalf("expected a compiled hit, got ok=%v err=%v", ok, err)
	}
	if iv, ok := v.(types.IntValue); !ok || int64(iv) != 3 {
		t.Fatalf("got %#v, want Integer(3)", v)
	}

	stats := a.Stats()
	if stats.CompilationCount != 1 {
		t.Fatalf("expected exactly 1 compilation, got %d", stats.CompilationCount)
	}
	if stats.CompiledFunctions != 1 {
		t.Fatalf("expected 1 cached function, got %d", stats.CompiledFunctions)
	}

	a.Eval(node, mapEnv{})
	a.Eval(node, mapEnv{})
	if a.Stats().CompilationCount != 1 {
		t.Fatalf("expected no recompilation on subsequent hits, got %d", a.Stats().CompilationCount)
	}
}

// Trivial nodes (bare literals, bare identifiers) never get fingerprinted
// or compiled no matter how many times they're hit.
func TestEvalNeverCompilesTrivialNodes(t *testing.T) {
	a := New()
	a.SetHotThreshold(1)
	for i := 0; i < 5; i++ {
		if _, ok, _ := a.Eval(num(1), mapEnv{}); ok {
			t.Fatalf("iteration %d: a bare literal should never be JIT-handled", i)
		}
	}
	if a.Stats().CompilationCount != 0 {
		t.Fatalf("expected 0 compilations for trivial nodes, got %d", a.Stats().CompilationCount)
	}
}

// A subtree containing a node class outside the supported set bails out
// permanently: Fingerprint rejects it, so Eval defers to the interpreter on
// every hit without counting hits or attempting compilation.
func TestEvalBailsOutPermanentlyOnUnsupportedSubnode(t *testing.T) {
	a := New()
	a.SetHotThreshold(1)

	// A function call is not in the supported node set; wrapping it in a
	// supported BinaryExpr still has to bail because Fingerprint recurses
	// into it and reports the whole subtree unsupported.
	unsupported := ast.BinaryExpr{
		Op:   ast.OpAdd,
		Left: num(1),
		Right: ast.FunctionCall{Name: "f"},
	}
	for i := 0; i < 3; i++ {
		if _, ok, _ := a.Eval(unsupported, mapEnv{}); ok {
			t.Fatalf("iteration %d: expected permanent bail-out", i)
		}
	}
	if a.Stats().CompilationCount != 0 {
		t.Fatalf("expected 0 compilations, got %d", a.Stats().CompilationCount)
	}
}

// Identifier lookups read through the supplied Env.
func TestCompiledIdentifierReadsEnv(t *testing.T) {
	a := New()
	a.SetHotThreshold(1)
	node := add(ast.Identifier{Name: "x"}, num(1))
	env := mapEnv{"x": types.NewInt(41)}

	a.Eval(node, env) // first hit already compiles at threshold 1
	v, ok, err := a.Eval(node, env)
	if !ok || err != nil {
		t.Fatalf("expected compiled hit, got ok=%v err=%v", ok, err)
	}
	iv, ok := v.(types.IntValue)
	if !ok || int64(iv) != 42 {
		t.Fatalf("got %#v, want Integer(42)", v)
	}
}

// A missing identifier surfaces as a VariableNotFound EvalError, not a panic.
func TestCompiledIdentifierMissingVariable(t *testing.T) {
	a := New()
	a.SetHotThreshold(1)
	node := add(ast.Identifier{Name: "missing"}, num(1))

	a.Eval(node, mapEnv{})
	_, ok, err := a.Eval(node, mapEnv{})
	if !ok {
		t.Fatalf("expected a compiled hit even on an error path")
	}
	if err == nil || err.Kind != types.KindVariableNotFound {
		t.Fatalf("expected KindVariableNotFound, got %#v", err)
	}
}

// Short-circuit evaluation: the right operand of `and`/`or` is never
// evaluated once the left operand already decides the result.
func TestCompiledShortCircuitAnd(t *testing.T) {
	a := New()
	a.SetHotThreshold(1)
	node := ast.BinaryExpr{
		Op:   ast.OpAnd,
		Left: ast.BooleanLit{Value: false},
		Right: ast.Identifier{Name: "never_read"},
	}
	a.Eval(node, mapEnv{})
	v, ok, err := a.Eval(node, mapEnv{})
	if !ok || err != nil {
		t.Fatalf("expected compiled hit, got ok=%v err=%v", ok, err)
	}
	if bv, ok := v.(types.BoolValue); !ok || bool(bv) != false {
		t.Fatalf("got %#v, want false", v)
	}
}

// An If over a supported condition/then/else compiles and picks the
// matching branch.
func TestCompiledIfPicksBranch(t *testing.T) {
	a := New()
	a.SetHotThreshold(1)
	node := ast.If{
		Condition: ast.BinaryExpr{Op: ast.OpGreater, Left: num(5), Right: num(3)},
		Then:      num(100),
		Else:      num(200),
	}
	a.Eval(node, mapEnv{})
	v, ok, err := a.Eval(node, mapEnv{})
	if !ok || err != nil {
		t.Fatalf("expected compiled hit, got ok=%v err=%v", ok, err)
	}
	if iv, ok := v.(types.IntValue); !ok || int64(iv) != 100 {
		t.Fatalf("got %#v, want Integer(100)", v)
	}
}

// Stats reports JITEnabled true and the configured hot threshold.
func TestStatsReflectConfiguration(t *testing.T) {
	a := New()
	a.SetHotThreshold(7)
	stats := a.Stats()
	if !stats.JITEnabled {
		t.Fatalf("expected JITEnabled true")
	}
	if stats.HotThreshold != 7 {
		t.Fatalf("got HotThreshold %d, want 7", stats.HotThreshold)
	}
}

// Fingerprint is stable across two structurally identical trees and
// differs across structurally distinct ones.
func TestFingerprintStabilityAndDiscrimination(t *testing.T) {
	a := add(num(1), num(2))
	b := add(num(1), num(2))
	c := add(num(1), num(3))

	fpA, okA := Fingerprint(a)
	fpB, okB := Fingerprint(b)
	fpC, okC := Fingerprint(c)
	if !okA || !okB || !okC {
		t.Fatalf("expected all three to be fingerprintable")
	}
	if fpA != fpB {
		t.Fatalf("expected identical trees to fingerprint identically")
	}
	if fpA == fpC {
		t.Fatalf("expected structurally distinct trees to fingerprint differently")
	}
}

// Fingerprint reports supported=false for a node class the JIT doesn't
// cover at all.
func TestFingerprintUnsupportedNodeClass(t *testing.T) {
	if _, ok := Fingerprint(ast.FunctionCall{Name: "f"}); ok {
		t.Fatalf("expected supported=false for a FunctionCall")
	}
}

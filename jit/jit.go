// Package jit is the speculative adjunct described in spec.md §4.6 (C6): a
// fingerprint-keyed cache of compiled closures for the arithmetic/boolean
// subset of the AST, threshold-gated so trivial nodes are never compiled,
// with unconditional fallback to the tree-walking interpreter for anything
// outside the supported node classes. Modeled on MongooseMoo's vm package
// (an AST -> executable-form compiler with its own opcode cache) in spirit
// — compile once, run the compiled form many times — but scoped down to
// the much smaller "first tier" spec.md §4.6 actually names, and compiling
// to native Go closures rather than a bytecode+VM pair, since nothing in
// this corpus reaches for an in-process assembler/codegen library and
// spec.md itself says the caching/fingerprinting/fallback policy is "the
// interesting systems content," not the code-generation backend.
package jit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"

	"echo/ast"
	"echo/types"
)

// Env is the minimal read access a compiled closure needs from an
// evaluation environment. eval.Environment satisfies this directly; jit
// does not import eval; callers deciding whether to consult the JIT supply
// whatever Env-shaped thing they have.
type Env interface {
	Get(name string) (types.Value, bool)
}

// CompiledFunc is a fingerprinted AST subgraph reduced to a Go closure.
type CompiledFunc func(env Env) (types.Value, *types.EvalError)

// Stats mirrors spec.md §4.6 "Statistics (observable, for tests)".
type Stats struct {
	CompilationCount int64
	ExecutionCount   int64
	CompiledFunctions int
	HotThreshold      int
	JITEnabled        bool
}

const defaultHotThreshold = 10

// Adjunct is the shared, process-wide JIT cache (spec.md §9 "the only
// process-wide mutable state is the storage handle and the shared JIT
// cache"). It is safe for concurrent use: compilation is serialized by mu,
// execution of an already-compiled function takes no lock.
type Adjunct struct {
	mu          sync.Mutex
	hitCounts   map[string]int64
	compiled    map[string]CompiledFunc
	hotThreshold int

	compilationCount int64
	executionCount   int64
	enabled          bool
}

// New returns an Adjunct with the default hot threshold, enabled.
// is_jit_enabled() (spec.md §4.6) would report false only on a build/host
// that cannot provide a code generator; since compiling to Go closures has
// no such restriction, enabled is always true here — see DESIGN.md.
func New() *Adjunct {
	return &Adjunct{
		hitCounts:    make(map[string]int64),
		compiled:     make(map[string]CompiledFunc),
		hotThreshold: defaultHotThreshold,
		enabled:      true,
	}
}

// SetHotThreshold overrides the default repetition count a node must reach
// before the adjunct attempts to compile it.
func (a *Adjunct) SetHotThreshold(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n > 0 {
		a.hotThreshold = n
	}
}

// Stats snapshots the adjunct's counters.
func (a *Adjunct) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{
		CompilationCount:  atomic.LoadInt64(&a.compilationCount),
		ExecutionCount:    atomic.LoadInt64(&a.executionCount),
		CompiledFunctions: len(a.compiled),
		HotThreshold:      a.hotThreshold,
		JITEnabled:        a.enabled,
	}
}

// Eval attempts to run node through the JIT. ok is false on any bail-out
// (unsupported node class, or not yet hot) — spec.md §7 "JIT errors never
// surface to the user; they become an internal bail-out to the
// interpreter", so callers must fall back to C5 whenever ok is false,
// including when err is also nil.
func (a *Adjunct) Eval(node ast.Node, env Env) (value types.Value, ok bool, err *types.EvalError) {
	if !a.enabled {
		return nil, false, nil
	}
	if trivial(node) {
		// Threshold gate (spec.md §4.6): single literal / single variable
		// read nodes are never JITted, compiling would cost more than
		// interpreting them directly.
		return nil, false, nil
	}

	fp, supported := Fingerprint(node)
	if !supported {
		return nil, false, nil
	}

	a.mu.Lock()
	if fn, cached := a.compiled[fp]; cached {
		a.mu.Unlock()
		if fn == nil {
			// A previous attempt to compile this fingerprint hit an
			// unsupported sub-node; remembered as a permanent bail-out so
			// we don't retry compilation on every subsequent hit.
			return nil, false, nil
		}
		atomic.AddInt64(&a.executionCount, 1)
		v, cerr := fn(env)
		return v, true, cerr
	}
	a.hitCounts[fp]++
	hot := a.hitCounts[fp] >= int64(a.hotThreshold)
	if !hot {
		a.mu.Unlock()
		return nil, false, nil
	}
	fn, compileOK := compile(node)
	if !compileOK {
		// Whole-unit bail-out discipline: a node inside the supported
		// fingerprint set can still contain a sub-node compile() doesn't
		// know how to reduce (e.g. a BinaryExpr or UnaryExpr whose operator
		// compile() has no case for);
		// don't cache a partial compilation, just defer to C5 forever.
		a.compiled[fp] = nil
		a.mu.Unlock()
		return nil, false, nil
	}
	a.compiled[fp] = fn
	atomic.AddInt64(&a.compilationCount, 1)
	a.mu.Unlock()

	atomic.AddInt64(&a.executionCount, 1)
	v, cerr := fn(env)
	return v, true, cerr
}

func trivial(node ast.Node) bool {
	switch node.(type) {
	case ast.NumberLit, ast.FloatLit, ast.StringLit, ast.BooleanLit, ast.NullLit, ast.Identifier:
		return true
	default:
		return false
	}
}

// Fingerprint computes a deterministic identifier for the AST subgraph
// rooted at node (the GLOSSARY's "Fingerprint"), or reports supported=false
// if node isn't built from the JIT's supported node classes at all —
// callers use this to decide whether hit-counting even applies before the
// hot-threshold gate runs.
func Fingerprint(node ast.Node) (fingerprint string, supported bool) {
	var b []byte
	if !appendFingerprint(&b, node) {
		return "", false
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), true
}

func appendFingerprint(b *[]byte, node ast.Node) bool {
	switch n := node.(type) {
	case ast.NumberLit:
		*b = append(*b, fmt.Sprintf("N%d;", n.Value)...)
	case ast.FloatLit:
		*b = append(*b, fmt.Sprintf("F%v;", n.Value)...)
	case ast.BooleanLit:
		*b = append(*b, fmt.Sprintf("B%v;", n.Value)...)
	case ast.NullLit:
		*b = append(*b, "U;"...)
	case ast.Identifier:
		*b = append(*b, fmt.Sprintf("I%s;", n.Name)...)
	case ast.UnaryExpr:
		*b = append(*b, fmt.Sprintf("U%d(", n.Op)...)
		if !appendFingerprint(b, n.Operand) {
			return false
		}
		*b = append(*b, ')')
	case ast.BinaryExpr:
		*b = append(*b, fmt.Sprintf("B%d(", n.Op)...)
		if !appendFingerprint(b, n.Left) || !appendFingerprint(b, n.Right) {
			return false
		}
		*b = append(*b, ')')
	case ast.If:
		*b = append(*b, "IF("...)
		if !appendFingerprint(b, n.Condition) || !appendFingerprint(b, n.Then) {
			return false
		}
		for _, ei := range n.ElseIfs {
			*b = append(*b, "EI("...)
			if !appendFingerprint(b, ei.Condition) || !appendFingerprint(b, ei.Body) {
				return false
			}
			*b = append(*b, ')')
		}
		if n.Else != nil {
			*b = append(*b, "EL("...)
			if !appendFingerprint(b, n.Else) {
				return false
			}
			*b = append(*b, ')')
		}
		*b = append(*b, ')')
	case ast.ExpressionStatement:
		return appendFingerprint(b, n.Expr)
	default:
		return false
	}
	return true
}

package eval

import "echo/types"

// Environment is a lexically-scoped variable binding chain, following the
// teacher's environment.go shape (parent-chained maps) generalized from
// MOO's flat global scope onto Echo's block-scoped let/const (spec.md §4.5
// "Scoping").
type Environment struct {
	vars   map[string]types.Value
	consts map[string]bool
	parent *Environment
}

// NewEnvironment returns a fresh environment with no parent (the global
// scope of one evaluation).
func NewEnvironment() *Environment {
	return &Environment{
		vars:   make(map[string]types.Value),
		consts: make(map[string]bool),
	}
}

// NewChildEnvironment returns a new block-scoped environment nested under
// parent (if/while/for/try bodies and lambda calls each get one).
func NewChildEnvironment(parent *Environment) *Environment {
	return &Environment{
		vars:   make(map[string]types.Value),
		consts: make(map[string]bool),
		parent: parent,
	}
}

// Get searches the current scope, then enclosing scopes.
func (e *Environment) Get(name string) (types.Value, bool) {
	if v, ok := e.vars[name]; ok {
		return v, true
	}
	if e.parent != nil {
		return e.parent.Get(name)
	}
	return nil, false
}

// Define introduces name in the current scope (let/const/function params),
// shadowing any enclosing binding of the same name.
func (e *Environment) Define(name string, v types.Value, isConst bool) {
	e.vars[name] = v
	e.consts[name] = isConst
}

// snapshot returns a new parentless Environment holding a copy of every
// binding visible from e (its own scope plus every enclosing scope) — the
// capture lambdas take at creation time (spec.md §9 "captures are a
// snapshot, not a live reference").
func (e *Environment) snapshot() *Environment {
	out := NewEnvironment()
	var chain []*Environment
	for env := e; env != nil; env = env.parent {
		chain = append(chain, env)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].vars {
			out.vars[k] = v
			out.consts[k] = chain[i].consts[k]
		}
	}
	return out
}

// Assign sets an existing binding, walking up to whichever scope first
// declared name — matching the resolved Open Question that bare `x = expr`
// (without `let`) assigns the nearest existing binding, or creates a new
// local one if none exists (spec.md §4.5 "Destructuring semantics").
func (e *Environment) Assign(name string, v types.Value) error {
	for env := e; env != nil; env = env.parent {
		if _, ok := env.vars[name]; ok {
			if env.consts[name] {
				return types.ErrPermissionDenied("cannot assign to const %q", name)
			}
			env.vars[name] = v
			return nil
		}
	}
	e.vars[name] = v
	return nil
}

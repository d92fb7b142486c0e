// Package security implements Echo's capability-checked dispatch layer
// (SPEC_FULL.md §4.4 "Capability-checked dispatch"), lifted from
// original_source/crates/echo-core/src/security.rs and
// security/capabilities.rs. The distilled spec.md only gestures at this as
// "the capability manager (§6 interface)"; the original names the concrete
// shape reused here.
package security

import (
	"sync"

	"echo/types"
)

// Policy bounds resource usage for one evaluation (spec.md §5, values from
// security.rs's SecurityPolicy::default()).
type Policy struct {
	MaxMemoryBytes    uint64
	MaxExecutionTime  int64 // milliseconds
	MaxObjects        int
	MaxEvalDepth      int
}

// DefaultPolicy matches security.rs's Default impl.
func DefaultPolicy() Policy {
	return Policy{
		MaxMemoryBytes:   100 * 1024 * 1024,
		MaxExecutionTime: 30 * 1000,
		MaxObjects:       100_000,
		MaxEvalDepth:     1000,
	}
}

// Context pairs a Policy with the current player, threaded through
// evaluation the way MongooseMoo's TaskContext threads tick counts and
// permissions through Evaluator.Eval.
type Context struct {
	Policy        Policy
	CurrentPlayer *types.ObjectID
}

// NewContext builds a Context from policy with no current player.
func NewContext(policy Policy) *Context {
	return &Context{Policy: policy}
}

// SetPlayer records the current player.
func (c *Context) SetPlayer(id types.ObjectID) { c.CurrentPlayer = &id }

// CheckResourceUsage reports whether objects/evalDepth are within policy,
// mirroring SecurityContext::check_resource_usage.
func (c *Context) CheckResourceUsage(objects, evalDepth int) error {
	if objects > c.Policy.MaxObjects {
		return types.ErrPermissionDenied("resource limit exceeded: objects (limit %d, actual %d)", c.Policy.MaxObjects, objects)
	}
	if evalDepth > c.Policy.MaxEvalDepth {
		return types.ErrPermissionDenied("resource limit exceeded: eval_depth (limit %d, actual %d)", c.Policy.MaxEvalDepth, evalDepth)
	}
	return nil
}

// CapabilityKind enumerates the checkable capability classes (capabilities.rs).
type CapabilityKind int

const (
	ReadProperty CapabilityKind = iota
	WriteProperty
	CallFunction
	CallVerb
	EmitEvent
	ExecuteQuery
	AccessRoom
	ModifyHealth
	SystemAccess
)

// Capability is one checkable permission: a kind plus the object/name it
// applies to. Not every kind uses both fields (EmitEvent and SystemAccess
// only use Name, AccessRoom/ModifyHealth only use Object), matching the
// variant-specific payloads of capabilities.rs's enum.
type Capability struct {
	Kind   CapabilityKind
	Object types.ObjectID
	Name   string
}

// Manager grants/denies capabilities per subject object, default-deny.
// Denials take precedence over grants (capabilities.rs check_capability).
type Manager struct {
	mu      sync.RWMutex
	grants  map[types.ObjectID]map[Capability]struct{}
	denials map[types.ObjectID]map[Capability]struct{}
}

// NewManager returns an empty, default-deny capability manager.
func NewManager() *Manager {
	return &Manager{
		grants:  make(map[types.ObjectID]map[Capability]struct{}),
		denials: make(map[types.ObjectID]map[Capability]struct{}),
	}
}

// Check reports whether subject holds cap: denied wins over granted, and
// the default (neither granted nor denied) is deny.
func (m *Manager) Check(subject types.ObjectID, cap Capability) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if denied, ok := m.denials[subject]; ok {
		if _, denied := denied[cap]; denied {
			return false
		}
	}
	if granted, ok := m.grants[subject]; ok {
		if _, granted := granted[cap]; granted {
			return true
		}
	}
	return false
}

// Grant grants subject the given capability.
func (m *Manager) Grant(subject types.ObjectID, cap Capability) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.grants[subject] == nil {
		m.grants[subject] = make(map[Capability]struct{})
	}
	m.grants[subject][cap] = struct{}{}
}

// Deny explicitly denies subject the given capability, overriding any grant.
func (m *Manager) Deny(subject types.ObjectID, cap Capability) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.denials[subject] == nil {
		m.denials[subject] = make(map[Capability]struct{})
	}
	m.denials[subject][cap] = struct{}{}
}

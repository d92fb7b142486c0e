// Package objstore implements the object store (spec.md §4.2) and its
// index manager (§4.2.1): persisted object records, a name index, and the
// parent/type/property/verb reverse indices that let the evaluator answer
// "who are this object's children" and "who defines verb X" without a full
// scan. Grounded on original_source/crates/echo-core/src/storage/mod.rs
// and storage/index.rs, laid on top of the kv substrate the way the
// teacher's db.Store sits on an in-memory map.
package objstore

import (
	"echo/ast"
	"echo/types"
)

// VerbDefinition is a stored verb: signature, parameter list, and source
// text plus the parsed body (kept alongside Source so re-parsing on every
// dispatch isn't required, mirroring how barn/vm.Compiler caches a parsed
// form next to source).
type VerbDefinition struct {
	Name      string
	Signature ast.VerbSignature
	Params    []ast.Param
	Body      ast.Node
	Source    string
	Owner     types.ObjectID
}

// EventDefinition is a stored event handler: spec.md §3's Event type plus
// the owner needed for capability checks.
type EventDefinition struct {
	Name   string
	Params []ast.Param
	Body   ast.Node
	Source string
	Owner  types.ObjectID
}

// Object is the persisted record for one object (spec.md §3 "MetaObject").
// ActiveTasks is carried as a reserved slice of green-thread tags per
// SPEC_FULL.md §3 and is never populated by anything in this repo; no
// scheduler consumes it.
type Object struct {
	ID          types.ObjectID
	Name        string
	Parent      *types.ObjectID
	Properties  map[string]types.PropertyValue
	Verbs       map[string]VerbDefinition
	Events      map[string]EventDefinition
	Owner       types.ObjectID
	ActiveTasks []string
}

// NewObject constructs an empty object record owned by owner.
func NewObject(id types.ObjectID, name string, owner types.ObjectID) *Object {
	return &Object{
		ID:         id,
		Name:       name,
		Properties: make(map[string]types.PropertyValue),
		Verbs:      make(map[string]VerbDefinition),
		Events:     make(map[string]EventDefinition),
		Owner:      owner,
	}
}

// Clone makes a deep-enough copy for safe mutation by a caller holding the
// store lock only briefly (read-modify-write cycles go through Store.Store).
func (o *Object) Clone() *Object {
	c := &Object{
		ID:          o.ID,
		Name:        o.Name,
		Properties:  make(map[string]types.PropertyValue, len(o.Properties)),
		Verbs:       make(map[string]VerbDefinition, len(o.Verbs)),
		Events:      make(map[string]EventDefinition, len(o.Events)),
		Owner:       o.Owner,
		ActiveTasks: append([]string(nil), o.ActiveTasks...),
	}
	if o.Parent != nil {
		p := *o.Parent
		c.Parent = &p
	}
	for k, v := range o.Properties {
		c.Properties[k] = v
	}
	for k, v := range o.Verbs {
		c.Verbs[k] = v
	}
	for k, v := range o.Events {
		c.Events[k] = v
	}
	return c
}

// SetProperty sets prop on the object. Uniqueness of property names
// (spec.md §3 invariant 6) is structural: a Go map cannot hold two entries
// under the same key.
func (o *Object) SetProperty(name string, v types.PropertyValue) {
	o.Properties[name] = v
}

// SetVerb installs or replaces a verb definition.
func (o *Object) SetVerb(v VerbDefinition) {
	o.Verbs[v.Name] = v
}

// SetEvent installs or replaces an event handler definition.
func (o *Object) SetEvent(e EventDefinition) {
	o.Events[e.Name] = e
}

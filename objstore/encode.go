package objstore

import (
	"bytes"
	"encoding/gob"

	"echo/ast"
	"echo/types"
)

// record is the on-disk shape of an Object. It omits the parsed ast.Node
// bodies carried by the in-memory Object: gob cannot encode an interface
// value without a registration step for every concrete implementor, and
// Source is already the durable source of truth (spec.md §4.2: "objects
// store verb source text; the parsed form is a cache"). A verb/event body
// is re-parsed from Source the first time it's dispatched after a load;
// see eval.Evaluator.verbBody.
type record struct {
	ID          types.ObjectID
	Name        string
	HasParent   bool
	Parent      types.ObjectID
	Properties  map[string]types.PropertyValue
	Verbs       map[string]verbRecord
	Events      map[string]eventRecord
	Owner       types.ObjectID
	ActiveTasks []string
}

type verbRecord struct {
	Name      string
	Signature ast.VerbSignature
	Params    []ast.Param
	Source    string
	Owner     types.ObjectID
}

type eventRecord struct {
	Name   string
	Params []ast.Param
	Source string
	Owner  types.ObjectID
}

func toRecord(o *Object) record {
	r := record{
		ID:          o.ID,
		Name:        o.Name,
		Properties:  o.Properties,
		Verbs:       make(map[string]verbRecord, len(o.Verbs)),
		Events:      make(map[string]eventRecord, len(o.Events)),
		Owner:       o.Owner,
		ActiveTasks: o.ActiveTasks,
	}
	if o.Parent != nil {
		r.HasParent = true
		r.Parent = *o.Parent
	}
	for name, v := range o.Verbs {
		r.Verbs[name] = verbRecord{Name: v.Name, Signature: v.Signature, Params: v.Params, Source: v.Source, Owner: v.Owner}
	}
	for name, e := range o.Events {
		r.Events[name] = eventRecord{Name: e.Name, Params: e.Params, Source: e.Source, Owner: e.Owner}
	}
	return r
}

func fromRecord(r record) *Object {
	o := &Object{
		ID:          r.ID,
		Name:        r.Name,
		Properties:  r.Properties,
		Verbs:       make(map[string]VerbDefinition, len(r.Verbs)),
		Events:      make(map[string]EventDefinition, len(r.Events)),
		Owner:       r.Owner,
		ActiveTasks: r.ActiveTasks,
	}
	if r.Properties == nil {
		o.Properties = make(map[string]types.PropertyValue)
	}
	if r.HasParent {
		p := r.Parent
		o.Parent = &p
	}
	for name, v := range r.Verbs {
		o.Verbs[name] = VerbDefinition{Name: v.Name, Signature: v.Signature, Params: v.Params, Source: v.Source, Owner: v.Owner}
	}
	for name, e := range r.Events {
		o.Events[name] = EventDefinition{Name: e.Name, Params: e.Params, Source: e.Source, Owner: e.Owner}
	}
	return o
}

// encodeObject gob-encodes o for storage in the kv substrate.
func encodeObject(o *Object) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(toRecord(o)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeObject reverses encodeObject. Verb/event Body fields come back nil;
// callers that need to dispatch re-parse Source on demand.
func decodeObject(b []byte) (*Object, error) {
	var r record
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&r); err != nil {
		return nil, err
	}
	return fromRecord(r), nil
}

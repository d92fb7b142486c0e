package objstore

import (
	"bytes"
	"encoding/gob"

	"echo/kv"
	"echo/types"
)

// IndexManager maintains the four reverse indices (parent, type, property,
// verb) described in spec.md §4.2.1, mirroring
// original_source/crates/echo-core/src/storage/index.rs field-for-field.
// Each index maps its key dimension to a gob-encoded []types.ObjectID.
type IndexManager struct {
	parent   *kv.Tree
	typeIdx  *kv.Tree
	property *kv.Tree
	verb     *kv.Tree
}

func newIndexManager(sub *kv.Substrate) *IndexManager {
	return &IndexManager{
		parent:   sub.Tree(kv.TreeIdxParent),
		typeIdx:  sub.Tree(kv.TreeIdxType),
		property: sub.Tree(kv.TreeIdxProperty),
		verb:     sub.Tree(kv.TreeIdxVerb),
	}
}

func encodeIDs(ids []types.ObjectID) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ids); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeIDs(b []byte) ([]types.ObjectID, error) {
	if b == nil {
		return nil, nil
	}
	var ids []types.ObjectID
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func containsID(ids []types.ObjectID, id types.ObjectID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// getList is a small helper shared by the four "get objects by <key>"
// accessors below: absent key -> empty list, not an error.
func getList(tree *kv.Tree, key []byte) ([]types.ObjectID, error) {
	raw, ok, err := tree.Get(key)
	if err != nil {
		return nil, types.ErrStorage("index: %v", err)
	}
	if !ok {
		return nil, nil
	}
	ids, err := decodeIDs(raw)
	if err != nil {
		return nil, types.ErrStorage("index: decode: %v", err)
	}
	return ids, nil
}

// GetChildren returns the direct children of parent.
func (m *IndexManager) GetChildren(parent types.ObjectID) ([]types.ObjectID, error) {
	return getList(m.parent, parent.Bytes())
}

// UpdateParent records that child's parent is now parent; it cannot record
// "no parent" (callers that want to clear a parent call removeParentEdge
// directly). Per spec.md §4.2.1, this scans all existing
// parent-index entries to strip any stale membership before inserting the
// fresh one: "inefficient but works," preserved verbatim from the original.
func (m *IndexManager) UpdateParent(child, parent types.ObjectID) error {
	if err := m.removeChildFromAllParents(child); err != nil {
		return err
	}
	children, err := m.GetChildren(parent)
	if err != nil {
		return err
	}
	if !containsID(children, child) {
		children = append(children, child)
	}
	return m.putIDs(m.parent, parent.Bytes(), children)
}

func (m *IndexManager) removeParentEdge(parent, child types.ObjectID) error {
	children, err := m.GetChildren(parent)
	if err != nil {
		return err
	}
	out := children[:0]
	for _, c := range children {
		if c != child {
			out = append(out, c)
		}
	}
	return m.putIDs(m.parent, parent.Bytes(), out)
}

func (m *IndexManager) removeChildFromAllParents(child types.ObjectID) error {
	var toUpdate []kv.KV
	err := m.parent.Iterate(func(pair kv.KV) bool {
		toUpdate = append(toUpdate, kv.KV{Key: append([]byte(nil), pair.Key...), Value: append([]byte(nil), pair.Value...)})
		return true
	})
	if err != nil {
		return types.ErrStorage("index: %v", err)
	}
	for _, pair := range toUpdate {
		ids, err := decodeIDs(pair.Value)
		if err != nil {
			return types.ErrStorage("index: decode: %v", err)
		}
		if !containsID(ids, child) {
			continue
		}
		filtered := ids[:0]
		for _, id := range ids {
			if id != child {
				filtered = append(filtered, id)
			}
		}
		if err := m.putIDs(m.parent, pair.Key, filtered); err != nil {
			return err
		}
	}
	return nil
}

// GetDescendants walks the parent index transitively from parent,
// following the same explicit-stack traversal as
// original_source/.../index.rs get_descendants.
func (m *IndexManager) GetDescendants(parent types.ObjectID) ([]types.ObjectID, error) {
	var descendants []types.ObjectID
	toVisit := []types.ObjectID{parent}
	for len(toVisit) > 0 {
		current := toVisit[len(toVisit)-1]
		toVisit = toVisit[:len(toVisit)-1]
		children, err := m.GetChildren(current)
		if err != nil {
			return nil, err
		}
		descendants = append(descendants, children...)
		toVisit = append(toVisit, children...)
	}
	return descendants, nil
}

// UpdateType indexes obj under the class name typeName (the name of its
// prototype-defining parent, in the MOO-style "parent chain is the class
// hierarchy" convention).
func (m *IndexManager) UpdateType(obj types.ObjectID, typeName string) error {
	objs, err := getList(m.typeIdx, []byte(typeName))
	if err != nil {
		return err
	}
	if containsID(objs, obj) {
		return nil
	}
	objs = append(objs, obj)
	return m.putIDs(m.typeIdx, []byte(typeName), objs)
}

// GetObjectsByType returns every object indexed under typeName.
func (m *IndexManager) GetObjectsByType(typeName string) ([]types.ObjectID, error) {
	return getList(m.typeIdx, []byte(typeName))
}

func propKey(name string) []byte { return []byte("prop:" + name) }
func verbKey(name string) []byte { return []byte("verb:" + name) }

// UpdateProperties indexes obj under every property name it defines.
func (m *IndexManager) UpdateProperties(obj types.ObjectID, props []string) error {
	for _, name := range props {
		objs, err := getList(m.property, propKey(name))
		if err != nil {
			return err
		}
		if containsID(objs, obj) {
			continue
		}
		objs = append(objs, obj)
		if err := m.putIDs(m.property, propKey(name), objs); err != nil {
			return err
		}
	}
	return nil
}

// GetObjectsWithProperty returns every object that defines name.
func (m *IndexManager) GetObjectsWithProperty(name string) ([]types.ObjectID, error) {
	return getList(m.property, propKey(name))
}

// UpdateVerbs indexes obj under every verb name it defines.
func (m *IndexManager) UpdateVerbs(obj types.ObjectID, verbs []string) error {
	for _, name := range verbs {
		objs, err := getList(m.verb, verbKey(name))
		if err != nil {
			return err
		}
		if containsID(objs, obj) {
			continue
		}
		objs = append(objs, obj)
		if err := m.putIDs(m.verb, verbKey(name), objs); err != nil {
			return err
		}
	}
	return nil
}

// GetObjectsWithVerb returns every object that defines name.
func (m *IndexManager) GetObjectsWithVerb(name string) ([]types.ObjectID, error) {
	return getList(m.verb, verbKey(name))
}

func (m *IndexManager) putIDs(tree *kv.Tree, key []byte, ids []types.ObjectID) error {
	enc, err := encodeIDs(ids)
	if err != nil {
		return types.ErrStorage("index: encode: %v", err)
	}
	if err := tree.Insert(key, enc); err != nil {
		return types.ErrStorage("index: %v", err)
	}
	return nil
}

// reindexTypeAndMembers refreshes the type/property/verb indices for obj.
// Called by Store.Store after every write, matching spec.md §4.2.1's note
// that "callers must invoke the index updates alongside object writes."
// parentName is the name of obj.Parent as already resolved by the caller
// (Store.Store, which has the objects tree handy); it is empty when obj has
// no parent or the parent record isn't readable yet (mid-bootstrap).
func (m *IndexManager) reindexTypeAndMembers(obj *Object, parentName string) error {
	if parentName != "" {
		if err := m.UpdateType(obj.ID, parentName); err != nil {
			return err
		}
	}
	props := make([]string, 0, len(obj.Properties))
	for name := range obj.Properties {
		props = append(props, name)
	}
	if err := m.UpdateProperties(obj.ID, props); err != nil {
		return err
	}
	verbs := make([]string, 0, len(obj.Verbs))
	for name := range obj.Verbs {
		verbs = append(verbs, name)
	}
	return m.UpdateVerbs(obj.ID, verbs)
}

// removeTypeAndMembers is best-effort cleanup on delete; indices are
// rebuilt lazily and tolerate stale entries (a stale ObjectID simply
// resolves to "not found" on next Get), so this only strips the common case.
func (m *IndexManager) removeTypeAndMembers(obj *Object) error {
	for name := range obj.Properties {
		objs, err := getList(m.property, propKey(name))
		if err != nil {
			return err
		}
		filtered := objs[:0]
		for _, id := range objs {
			if id != obj.ID {
				filtered = append(filtered, id)
			}
		}
		if err := m.putIDs(m.property, propKey(name), filtered); err != nil {
			return err
		}
	}
	for name := range obj.Verbs {
		objs, err := getList(m.verb, verbKey(name))
		if err != nil {
			return err
		}
		filtered := objs[:0]
		for _, id := range objs {
			if id != obj.ID {
				filtered = append(filtered, id)
			}
		}
		if err := m.putIDs(m.verb, verbKey(name), filtered); err != nil {
			return err
		}
	}
	return nil
}

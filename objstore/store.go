package objstore

import (
	"encoding/binary"
	"sync"

	"echo/kv"
	"echo/types"
)

func nameKey(name string) []byte { return []byte("name:" + name) }
func mooKey(n int64) []byte {
	b := make([]byte, 4+8)
	copy(b, "moo:")
	binary.BigEndian.PutUint64(b[4:], uint64(n))
	return b
}

// Store owns the "objects" tree plus the name and legacy-MOO-id indices
// layered over the shared "indices" tree (spec.md §4.2: both live under
// indices["name:"+name] and a disjoint "moo:"-prefixed keyspace).
type Store struct {
	mu      sync.Mutex
	objects *kv.Tree
	names   *kv.Tree
	mooIDs  *kv.Tree // legacy MOO integer -> ObjectID, for GetOrCreateMooID
	Index   *IndexManager
}

// Open opens (and bootstraps, if empty) an object store over sub.
// Bootstrap creates SYSTEM ("#0") and ROOT ("#1") exactly once (spec.md §3
// invariant 3), the same one-time seeding MongooseMoo's db package performs
// implicitly by pre-allocating #0 before the server accepts connections.
func Open(sub *kv.Substrate) (*Store, error) {
	s := &Store{
		objects: sub.Tree(kv.TreeObjects),
		names:   sub.Tree(kv.TreeIndices), // keys prefixed "name:", per spec.md §4.2
		mooIDs:  sub.Tree(kv.TreeIndices), // keys prefixed "moo:", disjoint from "name:"
		Index:   newIndexManager(sub),
	}
	if err := s.bootstrap(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) bootstrap() error {
	if _, ok, err := s.objects.Get(types.SYSTEM.Bytes()); err != nil {
		return types.ErrStorage("bootstrap: %v", err)
	} else if !ok {
		system := NewObject(types.SYSTEM, "$system", types.SYSTEM)
		system.SetProperty("system", types.ObjectProp(types.SYSTEM))
		if err := s.Store(system); err != nil {
			return err
		}
	}
	if _, ok, err := s.objects.Get(types.ROOT.Bytes()); err != nil {
		return types.ErrStorage("bootstrap: %v", err)
	} else if !ok {
		root := NewObject(types.ROOT, "$root", types.SYSTEM)
		root.Parent = &types.SYSTEM
		if err := s.Store(root); err != nil {
			return err
		}
	}
	return nil
}

// Store persists obj, replacing any existing record with the same ID and
// keeping the name index consistent: spec.md §4.2 requires stale name-index
// entries to be cleaned up whenever a stored object's name changes (e.g. on
// rename-via-restore).
func (s *Store) Store(obj *Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok, err := s.objects.Get(obj.ID.Bytes()); err != nil {
		return types.ErrStorage("store: %v", err)
	} else if ok {
		old, err := decodeObject(prev)
		if err != nil {
			return types.ErrStorage("store: decode previous record: %v", err)
		}
		if old.Name != obj.Name {
			if err := s.names.Remove(nameKey(old.Name)); err != nil {
				return types.ErrStorage("store: %v", err)
			}
		}
		if old.Parent != nil && (obj.Parent == nil || *old.Parent != *obj.Parent) {
			if err := s.Index.removeParentEdge(*old.Parent, obj.ID); err != nil {
				return err
			}
		}
	}

	enc, err := encodeObject(obj)
	if err != nil {
		return types.ErrStorage("store: encode: %v", err)
	}
	if err := s.objects.Insert(obj.ID.Bytes(), enc); err != nil {
		return types.ErrStorage("store: %v", err)
	}
	if err := s.names.Insert(nameKey(obj.Name), obj.ID.Bytes()); err != nil {
		return types.ErrStorage("store: %v", err)
	}
	var parentName string
	if obj.Parent != nil {
		if err := s.Index.UpdateParent(obj.ID, *obj.Parent); err != nil {
			return err
		}
		if parentRaw, ok, err := s.objects.Get(obj.Parent.Bytes()); err != nil {
			return types.ErrStorage("store: %v", err)
		} else if ok {
			if parentObj, derr := decodeObject(parentRaw); derr == nil {
				parentName = parentObj.Name
			}
		}
	}
	return s.Index.reindexTypeAndMembers(obj, parentName)
}

// Get retrieves the object with the given id, or (nil, false) if it
// doesn't exist (spec.md §4.2 invariant 1: Get never panics on an absent
// or malformed id).
func (s *Store) Get(id types.ObjectID) (*Object, bool, error) {
	raw, ok, err := s.objects.Get(id.Bytes())
	if err != nil {
		return nil, false, types.ErrStorage("get: %v", err)
	}
	if !ok {
		return nil, false, nil
	}
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, false, types.ErrStorage("get: decode: %v", err)
	}
	return obj, true, nil
}

// MustGet is Get plus the ErrObjectNotFound surfacing expected at
// evaluator call sites that require the object to exist.
func (s *Store) MustGet(id types.ObjectID) (*Object, error) {
	obj, ok, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.ErrObjectNotFound(id)
	}
	return obj, nil
}

// FindByName returns the object registered under exactly this name, or
// (nil, false) if no such object exists (spec.md §4.2 invariant 2: name
// lookups are exact-match, not prefix/fuzzy).
func (s *Store) FindByName(name string) (*Object, bool, error) {
	raw, ok, err := s.names.Get(nameKey(name))
	if err != nil {
		return nil, false, types.ErrStorage("find_by_name: %v", err)
	}
	if !ok {
		return nil, false, nil
	}
	id, err := types.ObjectIDFromBytes(raw)
	if err != nil {
		return nil, false, types.ErrStorage("find_by_name: %v", err)
	}
	return s.Get(id)
}

// Delete removes obj and its name/parent/property/verb index entries. Its
// type index entry is not removed.
func (s *Store) Delete(id types.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok, err := s.Get(id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := s.names.Remove(nameKey(obj.Name)); err != nil {
		return types.ErrStorage("delete: %v", err)
	}
	if obj.Parent != nil {
		if err := s.Index.removeParentEdge(*obj.Parent, id); err != nil {
			return err
		}
	}
	if err := s.Index.removeTypeAndMembers(obj); err != nil {
		return err
	}
	if err := s.objects.Remove(id.Bytes()); err != nil {
		return types.ErrStorage("delete: %v", err)
	}
	return nil
}

// ListAll returns every object currently stored. Ordering follows the
// underlying substrate's key order (ObjectID byte order), which is stable
// but not meaningful; callers needing a specific order sort explicitly.
func (s *Store) ListAll() ([]*Object, error) {
	var out []*Object
	var decodeErr error
	err := s.objects.Iterate(func(pair kv.KV) bool {
		obj, derr := decodeObject(pair.Value)
		if derr != nil {
			decodeErr = derr
			return false
		}
		out = append(out, obj)
		return true
	})
	if err != nil {
		return nil, types.ErrStorage("list_all: %v", err)
	}
	if decodeErr != nil {
		return nil, types.ErrStorage("list_all: decode: %v", decodeErr)
	}
	return out, nil
}

// EstimatedSize reports the substrate's on-disk footprint in bytes.
func (s *Store) EstimatedSize(sub *kv.Substrate) uint64 {
	return sub.EstimatedSize()
}

// GetOrCreateMooID returns the ObjectID deterministically associated with
// legacy MOO integer n, creating and persisting the mapping on first use
// (spec.md §4.2 "get_or_create_moo_id": idempotent, stable across calls).
func (s *Store) GetOrCreateMooID(n int64) (types.ObjectID, error) {
	key := mooKey(n)

	s.mu.Lock()
	defer s.mu.Unlock()

	if raw, ok, err := s.mooIDs.Get(key); err != nil {
		return types.ObjectID{}, types.ErrStorage("get_or_create_moo_id: %v", err)
	} else if ok {
		return types.ObjectIDFromBytes(raw)
	}

	id := types.ObjectIDFromMOONumber(n)
	if err := s.mooIDs.Insert(key, id.Bytes()); err != nil {
		return types.ObjectID{}, types.ErrStorage("get_or_create_moo_id: %v", err)
	}
	return id, nil
}

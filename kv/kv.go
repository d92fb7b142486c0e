// Package kv implements the durable KV substrate (spec.md §4.1): an
// ordered, crash-safe byte store exposing named trees with atomic
// point operations, a compare-and-update primitive, ordered iteration, and
// an explicit flush barrier.
//
// The backing engine is badger (github.com/dgraph-io/badger/v4), an
// embedded ordered key-value store in the same lineage as the sled engine
// original_source/crates/echo-core/src/storage/mod.rs builds on, and the
// same engine open-policy-agent/opa's storage/disk package wraps for its
// on-disk backend. Trees are realized as a shared *badger.DB namespaced by
// a per-tree key prefix, following that same pattern.
package kv

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// StorageError wraps any substrate failure. Per spec.md §4.1, "any
// substrate error is fatal to the operation and surfaced as a storage error
// to the caller; no partial writes are visible."
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("kv: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// Required tree names (spec.md §4.1).
const (
	TreeObjects       = "objects"
	TreeIndices       = "indices"
	TreeEvents        = "events"
	TreeEventSequence = "event_sequence"
	TreeIdxParent     = "idx_parent"
	TreeIdxType       = "idx_type"
	TreeIdxProperty   = "idx_property"
	TreeIdxVerb       = "idx_verb"
)

// Substrate owns the badger handle shared by every Tree opened from it.
type Substrate struct {
	db *badger.DB
}

// Open opens (creating if necessary) a substrate rooted at dir. An empty
// dir opens an in-memory-only substrate, handy for tests.
func Open(dir string) (*Substrate, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, wrap("open", err)
	}
	return &Substrate{db: db}, nil
}

// Close releases the substrate's resources.
func (s *Substrate) Close() error {
	return wrap("close", s.db.Close())
}

// Flush forces a durability barrier: every write acknowledged before Flush
// returns is guaranteed durable.
func (s *Substrate) Flush() error {
	return wrap("flush", s.db.Sync())
}

// Tree returns a namespaced view over the substrate. Opening the same name
// twice yields two handles over the same underlying keyspace.
func (s *Substrate) Tree(name string) *Tree {
	return &Tree{db: s.db, prefix: append([]byte(name), 0)}
}

// EstimatedSize reports the approximate size, in bytes, of the substrate on
// disk (spec.md §4.2 "estimated_size").
func (s *Substrate) EstimatedSize() uint64 {
	lsm, vlog := s.db.Size()
	if lsm < 0 {
		lsm = 0
	}
	if vlog < 0 {
		vlog = 0
	}
	return uint64(lsm) + uint64(vlog)
}

// Tree is an ordered byte-keyed namespace within a Substrate.
type Tree struct {
	db     *badger.DB
	prefix []byte
}

func (t *Tree) key(k []byte) []byte {
	full := make([]byte, 0, len(t.prefix)+len(k))
	full = append(full, t.prefix...)
	full = append(full, k...)
	return full
}

func (t *Tree) strip(full []byte) []byte {
	return full[len(t.prefix):]
}

// Get retrieves the value stored under key, or (nil, false) if absent.
func (t *Tree) Get(key []byte) ([]byte, bool, error) {
	var out []byte
	err := t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(t.key(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, false, wrap("get", err)
	}
	return out, out != nil || t.exists(key), nil
}

func (t *Tree) exists(key []byte) bool {
	var found bool
	_ = t.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(t.key(key))
		found = err == nil
		return nil
	})
	return found
}

// Insert writes value under key, replacing any existing value.
func (t *Tree) Insert(key, value []byte) error {
	err := t.db.Update(func(txn *badger.Txn) error {
		return txn.Set(t.key(key), value)
	})
	return wrap("insert", err)
}

// Remove deletes key. Removing an absent key is a no-op, not an error.
func (t *Tree) Remove(key []byte) error {
	err := t.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(t.key(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	return wrap("remove", err)
}

// UpdateFn is the callback passed to FetchAndUpdate: given the current
// value (nil if absent), it returns the new value (nil to delete).
type UpdateFn func(old []byte) (new []byte, err error)

// FetchAndUpdate atomically applies fn to the value at key and returns the
// value fn computed. It retries on badger's optimistic-concurrency conflict
// error, the same compare-and-swap loop sled's fetch_and_update performs
// internally (see original_source/.../storage/event_store.rs
// next_sequence_key, which this substrate exists to back).
func (t *Tree) FetchAndUpdate(key []byte, fn UpdateFn) ([]byte, error) {
	for {
		var result []byte
		err := t.db.Update(func(txn *badger.Txn) error {
			var old []byte
			item, err := txn.Get(t.key(key))
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
				old = nil
			case err != nil:
				return err
			default:
				if verr := item.Value(func(val []byte) error {
					old = append([]byte(nil), val...)
					return nil
				}); verr != nil {
					return verr
				}
			}

			newVal, err := fn(old)
			if err != nil {
				return err
			}
			result = newVal
			if newVal == nil {
				if old == nil {
					return nil
				}
				return txn.Delete(t.key(key))
			}
			return txn.Set(t.key(key), newVal)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, wrap("fetch_and_update", err)
		}
		return result, nil
	}
}

// KV is a key/value pair returned by iteration.
type KV struct {
	Key   []byte
	Value []byte
}

// Iterate walks the tree in forward (ascending) key order, calling fn for
// each pair until fn returns false or the tree is exhausted.
func (t *Tree) Iterate(fn func(KV) bool) error {
	return t.iterate(false, fn)
}

// IterateReverse walks the tree in descending key order.
func (t *Tree) IterateReverse(fn func(KV) bool) error {
	return t.iterate(true, fn)
}

func (t *Tree) iterate(reverse bool, fn func(KV) bool) error {
	err := t.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Reverse = reverse
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := t.prefix
		if reverse {
			// Seek to just past the prefix range so Reverse iteration
			// starts at the last key with this prefix.
			seek = append(append([]byte(nil), t.prefix...), 0xFF)
		}
		for it.Seek(seek); it.ValidForPrefix(t.prefix); it.Next() {
			item := it.Item()
			full := item.KeyCopy(nil)
			if !bytes.HasPrefix(full, t.prefix) {
				break
			}
			var val []byte
			if err := item.Value(func(v []byte) error {
				val = append([]byte(nil), v...)
				return nil
			}); err != nil {
				return err
			}
			if !fn(KV{Key: t.strip(full), Value: val}) {
				break
			}
		}
		return nil
	})
	return wrap("iterate", err)
}

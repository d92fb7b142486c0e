package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// ObjectID is a stable 128-bit identifier for an object record. Unlike the
// small signed integers MOO uses for #123-style references, IDs here are
// never reused: once allocated (or resolved via ObjectRef, see ast.ObjectRef)
// an ID stays valid for the lifetime of the store.
type ObjectID [16]byte

// SYSTEM is the all-zero ID, the root of the object graph ("#0" in MOO terms).
var SYSTEM ObjectID

// ROOT is the well-known ID for the object beneath SYSTEM that everything
// else descends from ("#1" in MOO terms): all-zero with the low 8 bytes
// holding big-endian 1.
var ROOT ObjectID

func init() {
	binary.BigEndian.PutUint64(ROOT[8:], 1)
}

// NewObjectID allocates a fresh, globally unique object ID.
func NewObjectID() ObjectID {
	return ObjectID(uuid.New())
}

// ObjectIDFromBytes reconstructs an ObjectID from its 16-byte form. It
// returns an error if b is not exactly 16 bytes.
func ObjectIDFromBytes(b []byte) (ObjectID, error) {
	var id ObjectID
	if len(b) != 16 {
		return id, fmt.Errorf("types: invalid object id length %d", len(b))
	}
	copy(id[:], b)
	return id, nil
}

// Bytes returns the raw 16-byte key form used by the KV substrate.
func (id ObjectID) Bytes() []byte {
	out := make([]byte, 16)
	copy(out, id[:])
	return out
}

// IsSystem reports whether id is the well-known SYSTEM object.
func (id ObjectID) IsSystem() bool { return id == SYSTEM }

// IsRoot reports whether id is the well-known ROOT object.
func (id ObjectID) IsRoot() bool { return id == ROOT }

// String renders the display form used in tostr() and error messages:
// "#0" and "#1" for the well-known objects, otherwise a short hex tag.
func (id ObjectID) String() string {
	switch id {
	case SYSTEM:
		return "#0"
	case ROOT:
		return "#1"
	}
	return "#" + hex.EncodeToString(id[:])[:12]
}

// mooIDSalt namespaces legacy MOO integer references from randomly
// allocated IDs so get_or_create_moo_id is deterministic and collision-free
// against UUIDs created via NewObjectID.
var mooIDSalt = [8]byte{'e', 'c', 'h', 'o', 'm', 'o', 'o', '#'}

// ObjectIDFromMOONumber deterministically derives an ObjectID for a legacy
// MOO object number, used by the textdump importer (out of scope here; this
// is the stable mapping it relies on). The same n always yields the same ID.
func ObjectIDFromMOONumber(n int64) ObjectID {
	if n == 0 {
		return SYSTEM
	}
	if n == 1 {
		return ROOT
	}
	var id ObjectID
	copy(id[:8], mooIDSalt[:])
	binary.BigEndian.PutUint64(id[8:], uint64(n))
	return id
}

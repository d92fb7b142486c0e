// Package events implements the append-only event log and in-process
// pub/sub fan-out (spec.md §4.3, C3), grounded on
// original_source/crates/echo-core/src/storage/event_store.rs. Persistence
// goes through the kv substrate; the subscription table is in-memory only,
// matching the Rust original's DashMap-of-channels (MongooseMoo favors
// explicit mutex+map over sync.Map elsewhere, so this package does too).
package events

import (
	"echo/types"

	"github.com/google/uuid"
)

// Event is the persisted, fanned-out record for one emitted occurrence
// (spec.md §3 "Event").
type Event struct {
	ID        uuid.UUID
	Name      string
	Source    types.ObjectID
	Timestamp int64 // unix nanoseconds, set by the caller (events never call time.Now itself; see Store.Emit)
	Args      []types.PropertyValue
	Player    *types.ObjectID
	Location  *types.ObjectID
}

// PatternKind tags the five EventPattern variants (spec.md §4.3).
type PatternKind int

const (
	PatternExact PatternKind = iota
	PatternPrefix
	PatternFromObject
	PatternAll
	PatternCustom
)

// EventPattern selects which emitted events a subscription receives.
type EventPattern struct {
	Kind   PatternKind
	Name   string         // Exact, Prefix
	Source types.ObjectID // FromObject
	Tag    string         // Custom: reserved, always matches until predicate evaluation lands
}

func ExactPattern(name string) EventPattern  { return EventPattern{Kind: PatternExact, Name: name} }
func PrefixPattern(p string) EventPattern    { return EventPattern{Kind: PatternPrefix, Name: p} }
func FromObjectPattern(id types.ObjectID) EventPattern {
	return EventPattern{Kind: PatternFromObject, Source: id}
}
func AllPattern() EventPattern            { return EventPattern{Kind: PatternAll} }
func CustomPattern(tag string) EventPattern { return EventPattern{Kind: PatternCustom, Tag: tag} }

// Matches reports whether e satisfies p. Custom is stubbed "always true",
// carried forward from event_store.rs's own
// "// TODO: Implement predicate evaluation" rather than invented here.
func (p EventPattern) Matches(e Event) bool {
	switch p.Kind {
	case PatternExact:
		return e.Name == p.Name
	case PatternPrefix:
		return len(e.Name) >= len(p.Name) && e.Name[:len(p.Name)] == p.Name
	case PatternFromObject:
		return e.Source == p.Source
	case PatternAll:
		return true
	case PatternCustom:
		return true
	default:
		return false
	}
}

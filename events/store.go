package events

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"sync"

	"echo/kv"
	"echo/types"

	"github.com/google/uuid"
)

// subscription pairs a pattern with the non-blocking channel a matching
// event is delivered on.
type subscription struct {
	pattern EventPattern
	ch      chan Event
}

// Store is the event log plus its live subscriber table.
type Store struct {
	events   *kv.Tree
	sequence *kv.Tree

	mu   sync.Mutex
	subs map[uuid.UUID]subscription
}

// Open opens an event store over sub.
func Open(sub *kv.Substrate) *Store {
	return &Store{
		events:   sub.Tree(kv.TreeEvents),
		sequence: sub.Tree(kv.TreeEventSequence),
		subs:     make(map[uuid.UUID]subscription),
	}
}

var sequenceKey = []byte("seq")

func (s *Store) nextSequence() (uint64, error) {
	raw, err := s.sequence.FetchAndUpdate(sequenceKey, func(old []byte) ([]byte, error) {
		var n uint64
		if old != nil {
			n = binary.BigEndian.Uint64(old)
		}
		n++
		next := make([]byte, 8)
		binary.BigEndian.PutUint64(next, n)
		return next, nil
	})
	if err != nil {
		return 0, types.ErrStorage("event sequence: %v", err)
	}
	return binary.BigEndian.Uint64(raw), nil
}

type record struct {
	ID        [16]byte
	Name      string
	Source    types.ObjectID
	Timestamp int64
	Args      []types.PropertyValue
	HasPlayer bool
	Player    types.ObjectID
	HasLoc    bool
	Location  types.ObjectID
}

func toRecord(e Event) record {
	r := record{ID: e.ID, Name: e.Name, Source: e.Source, Timestamp: e.Timestamp, Args: e.Args}
	if e.Player != nil {
		r.HasPlayer = true
		r.Player = *e.Player
	}
	if e.Location != nil {
		r.HasLoc = true
		r.Location = *e.Location
	}
	return r
}

func fromRecord(r record) Event {
	e := Event{ID: r.ID, Name: r.Name, Source: r.Source, Timestamp: r.Timestamp, Args: r.Args}
	if r.HasPlayer {
		p := r.Player
		e.Player = &p
	}
	if r.HasLoc {
		l := r.Location
		e.Location = &l
	}
	return e
}

// Emit durably appends event under the next sequence key, then visits every
// subscription and attempts a non-blocking send to each match. Per spec.md
// §4.3, fan-out happens only after the event is durably persisted, and a
// subscriber whose channel rejects the send is dropped before the next
// event is processed — the emitter never blocks on a slow subscriber. The
// returned int is the number of subscriptions that matched e, for callers
// that want to log or trace fan-out width.
func (s *Store) Emit(e Event) (Event, int, error) {
	if e.ID == (uuid.UUID{}) {
		e.ID = uuid.New()
	}
	seq, err := s.nextSequence()
	if err != nil {
		return Event{}, 0, err
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(toRecord(e)); err != nil {
		return Event{}, 0, types.ErrStorage("emit: encode: %v", err)
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	if err := s.events.Insert(key, buf.Bytes()); err != nil {
		return Event{}, 0, types.ErrStorage("emit: %v", err)
	}

	s.mu.Lock()
	var dead []uuid.UUID
	matched := 0
	for id, sub := range s.subs {
		if !sub.pattern.Matches(e) {
			continue
		}
		matched++
		select {
		case sub.ch <- e:
		default:
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		delete(s.subs, id)
	}
	s.mu.Unlock()

	return e, matched, nil
}

// Subscribe registers pattern and returns a subscription id plus the
// channel events matching pattern are delivered on. The channel is
// buffered so a brief consumer stall doesn't immediately drop the
// subscription on the very next event.
func (s *Store) Subscribe(pattern EventPattern) (uuid.UUID, <-chan Event) {
	id := uuid.New()
	ch := make(chan Event, 16)

	s.mu.Lock()
	s.subs[id] = subscription{pattern: pattern, ch: ch}
	s.mu.Unlock()

	return id, ch
}

// Unsubscribe removes a subscription. Unsubscribing an unknown id is a
// no-op.
func (s *Store) Unsubscribe(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[id]; ok {
		close(sub.ch)
		delete(s.subs, id)
	}
}

// QueryHistory walks the events tree in reverse sequence order, returning
// up to limit events satisfying filter. A non-positive limit means
// unlimited (spec.md §4.3: "events_between(t0, t1) is
// query_history(λe. t0 ≤ e.timestamp ≤ t1, ∞)").
func (s *Store) QueryHistory(filter func(Event) bool, limit int) ([]Event, error) {
	var out []Event
	var decodeErr error
	err := s.events.IterateReverse(func(pair kv.KV) bool {
		var r record
		if derr := gob.NewDecoder(bytes.NewReader(pair.Value)).Decode(&r); derr != nil {
			decodeErr = derr
			return false
		}
		e := fromRecord(r)
		if filter == nil || filter(e) {
			out = append(out, e)
		}
		return limit <= 0 || len(out) < limit
	})
	if err != nil {
		return nil, types.ErrStorage("query_history: %v", err)
	}
	if decodeErr != nil {
		return nil, types.ErrStorage("query_history: decode: %v", decodeErr)
	}
	return out, nil
}

// EventsBetween returns every event with t0 <= Timestamp <= t1, in reverse
// sequence order, unlimited.
func (s *Store) EventsBetween(t0, t1 int64) ([]Event, error) {
	return s.QueryHistory(func(e Event) bool {
		return e.Timestamp >= t0 && e.Timestamp <= t1
	}, 0)
}

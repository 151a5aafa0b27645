// Package route tracks which advertised routes have been configured on the
// host and drives the external configuration action.
package route

import (
	"errors"
	"net/netip"
	"sort"
	"sync"
)

// State is the lifecycle state of a route inside the store.
type State int

const (
	// StatePending means the route has been seen but not successfully
	// configured yet. A later identical advertisement retries it.
	StatePending State = iota
	// StateConfigured means the external action reported success. The
	// route is never attempted again for the life of the process.
	StateConfigured
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConfigured:
		return "configured"
	default:
		return "unknown"
	}
}

// Key identifies one candidate route: the masked prefix with its length,
// plus the router that announced it. Equality is exact.
type Key struct {
	Prefix netip.Prefix
	Router netip.Addr
}

func (k Key) String() string {
	return k.Prefix.String() + " via " + k.Router.String()
}

// ErrUnknownKey is returned by MarkConfigured for a key that was never
// recorded. Given the calling protocol this indicates a programming error,
// not an expected runtime condition.
var ErrUnknownKey = errors.New("route key not present in store")

// Record is one store entry, as exposed to inspection surfaces.
type Record struct {
	Key   Key
	State State
}

// Store is the process-wide dedup record of candidate routes. Its lifetime
// is exactly the process lifetime; there is no persistence, state is
// rebuilt from the periodic advertisements after a restart.
//
// The store is safe for concurrent use so that inspection surfaces (status
// API, command socket) can read it while the capture loop writes.
type Store struct {
	mu      sync.Mutex
	records map[Key]State
	// routers remembers the most recent router recorded per prefix, so
	// the capture loop can report when a route is being superseded.
	routers map[netip.Prefix]netip.Addr
}

// NewStore creates an empty dedup store.
func NewStore() *Store {
	return &Store{
		records: make(map[Key]State),
		routers: make(map[netip.Prefix]netip.Addr),
	}
}

// Lookup returns the state of key and whether it has ever been recorded.
func (s *Store) Lookup(key Key) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.records[key]
	return state, ok
}

// RecordPending inserts key in the pending state. Recording an already
// known key is a no-op; in particular it never demotes a configured route.
func (s *Store) RecordPending(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; ok {
		return
	}
	s.records[key] = StatePending
	s.routers[key.Prefix] = key.Router
}

// MarkConfigured transitions an existing record to the configured state.
// The transition is one-way.
func (s *Store) MarkConfigured(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return ErrUnknownKey
	}
	s.records[key] = StateConfigured
	return nil
}

// PreviousRouter returns the router most recently recorded for prefix, if
// any. The capture loop uses it to log route supersession when a prefix
// reappears behind a different router.
func (s *Store) PreviousRouter(prefix netip.Prefix) (netip.Addr, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	router, ok := s.routers[prefix]
	return router, ok
}

// Len returns the number of recorded routes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Snapshot returns all records ordered by prefix, then router.
func (s *Store) Snapshot() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0, len(s.records))
	for key, state := range s.records {
		out = append(out, Record{Key: key, State: state})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Prefix != out[j].Key.Prefix {
			return out[i].Key.Prefix.String() < out[j].Key.Prefix.String()
		}
		return out[i].Key.Router.Less(out[j].Key.Router)
	})
	return out
}

package game

import (
	"fmt"
	"sync"

	"github.com/seawire/broadside/internal/dependencies/random"
	"github.com/seawire/broadside/internal/model"
)

// RoomID derives the deterministic room identifier for an unordered pair
// of players. The ids are ordered lexicographically so both orderings of
// the same pair map to the same room for the lifetime of the process.
func RoomID(a, b model.UserID) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("room-%s-%s", a, b)
}

// Registry owns all active matches, keyed by room id. It is the
// serialization point for room creation: two racing accepts for the same
// pair resolve to a single match.
type Registry struct {
	mu      sync.RWMutex
	matches map[string]*Match
	rnd     random.Random
}

// NewRegistry creates an empty match registry
func NewRegistry(rnd random.Random) *Registry {
	return &Registry{
		matches: make(map[string]*Match),
		rnd:     rnd,
	}
}

// Create makes a new match for the given room, or returns the existing one
// if a racing create already built it.
func (r *Registry) Create(roomID string, playerA, playerB model.UserID) *Match {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.matches[roomID]; ok {
		return m
	}
	m := NewMatch(roomID, playerA, playerB, r.rnd)
	r.matches[roomID] = m
	return m
}

// Get looks up the match for a room
func (r *Registry) Get(roomID string) (*Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[roomID]
	return m, ok
}

// Destroy removes the match for a room. Removing an absent room is a no-op.
func (r *Registry) Destroy(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.matches, roomID)
}

// Len returns the number of active matches
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}

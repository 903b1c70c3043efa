// Package lobby tracks presence for users browsing for an opponent.
package lobby

import (
	"sync"

	"github.com/seawire/broadside/internal/model"
	"github.com/seawire/broadside/internal/transport"
)

// Presence is a copy of one user's lobby record. PendingWith names the
// counterpart of an outstanding challenge; empty means none.
type Presence struct {
	UserID      model.UserID
	Username    string
	Client      transport.ClientID
	PendingWith model.UserID
}

// InPendingChallenge reports whether the user has an outstanding challenge
func (p Presence) InPendingChallenge() bool {
	return p.PendingWith != ""
}

// Registry maps user ids to presence records. A single lock guards the
// whole map, so every challenge operation touching two records runs in
// one critical section and symmetric challenge attempts cannot deadlock
// or interleave partially.
type Registry struct {
	mu    sync.Mutex
	users map[model.UserID]*Presence
}

// NewRegistry creates an empty lobby registry
func NewRegistry() *Registry {
	return &Registry{
		users: make(map[model.UserID]*Presence),
	}
}

// Join adds a user to the lobby. Joining while already present overwrites
// the prior record, so a reconnect replaces the stale connection handle.
// An outstanding challenge is dissolved; the released counterpart is
// returned so the caller can notify them.
func (r *Registry) Join(userID model.UserID, username string, client transport.ClientID) (Presence, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	released, ok := r.dissolvePending(userID)
	r.users[userID] = &Presence{
		UserID:   userID,
		Username: username,
		Client:   client,
	}
	return released, ok
}

// Leave removes a user from the lobby. Leaving while absent is a no-op.
// An outstanding challenge is dissolved; the released counterpart is
// returned so the caller can notify them.
func (r *Registry) Leave(userID model.UserID) (Presence, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	released, ok := r.dissolvePending(userID)
	delete(r.users, userID)
	return released, ok
}

// Lookup returns a copy of a user's presence record
func (r *Registry) Lookup(userID model.UserID) (Presence, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.users[userID]
	if !ok {
		return Presence{}, false
	}
	return *p, true
}

// Snapshot returns a point-in-time copy of the lobby for broadcast.
// Connection handles are never part of the snapshot.
func (r *Registry) Snapshot() map[model.UserID]model.LobbyUser {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[model.UserID]model.LobbyUser, len(r.users))
	for id, p := range r.users {
		out[id] = model.LobbyUser{
			ID:                 id,
			Username:           p.Username,
			InPendingChallenge: p.PendingWith != "",
		}
	}
	return out
}

// MarkPending links both sides of a challenge. It fails if either user is
// absent or already in a pending challenge, so two racing requests against
// the same user resolve to exactly one success.
func (r *Registry) MarkPending(challengerID, challengedID model.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	challenger, ok := r.users[challengerID]
	if !ok {
		return model.ErrNotInLobby
	}
	challenged, ok := r.users[challengedID]
	if !ok {
		return model.ErrChallengeUnavailable
	}
	if challenger.PendingWith != "" || challenged.PendingWith != "" {
		return model.ErrChallengeUnavailable
	}

	challenger.PendingWith = challengedID
	challenged.PendingWith = challengerID
	return nil
}

// ClearPending drops the pending link on both sides of a challenge. A side
// that already left the lobby, or is pending with someone else, is skipped.
func (r *Registry) ClearPending(challengerID, challengedID model.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cleared := false
	pairs := [2][2]model.UserID{{challengerID, challengedID}, {challengedID, challengerID}}
	for _, pair := range pairs {
		if p, ok := r.users[pair[0]]; ok && p.PendingWith == pair[1] {
			p.PendingWith = ""
			cleared = true
		}
	}
	if !cleared {
		return model.ErrNoPendingChallenge
	}
	return nil
}

// ClaimPair atomically verifies the two users are present and mutually
// pending, then removes both records, returning copies. Used at challenge
// acceptance: the pair leaves the lobby and enters a room as one
// indivisible step.
func (r *Registry) ClaimPair(challengerID, challengedID model.UserID) (Presence, Presence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	challenger, ok := r.users[challengerID]
	if !ok {
		return Presence{}, Presence{}, model.ErrNotInLobby
	}
	challenged, ok := r.users[challengedID]
	if !ok {
		return Presence{}, Presence{}, model.ErrNotInLobby
	}
	if challenger.PendingWith != challengedID || challenged.PendingWith != challengerID {
		return Presence{}, Presence{}, model.ErrNoPendingChallenge
	}

	delete(r.users, challengerID)
	delete(r.users, challengedID)
	return *challenger, *challenged, nil
}

// Len returns the number of users currently in the lobby
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// dissolvePending clears both sides of the user's outstanding challenge
// and returns a copy of the released counterpart, if one is still present.
// Caller holds the lock.
func (r *Registry) dissolvePending(userID model.UserID) (Presence, bool) {
	p, ok := r.users[userID]
	if !ok || p.PendingWith == "" {
		return Presence{}, false
	}
	counterpartID := p.PendingWith
	p.PendingWith = ""

	counterpart, ok := r.users[counterpartID]
	if !ok || counterpart.PendingWith != userID {
		return Presence{}, false
	}
	counterpart.PendingWith = ""
	return *counterpart, true
}

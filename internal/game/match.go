package game

import (
	"sync"

	"github.com/seawire/broadside/internal/dependencies/random"
	"github.com/seawire/broadside/internal/model"
)

// State is the phase of a match
type State string

const (
	StateForming    State = "forming"     // waiting for ship placement
	StateBothReady  State = "both_ready"  // both fleets placed, picking first turn
	StateInProgress State = "in_progress" // shots being exchanged
	StateFinished   State = "finished"    // won, forfeited or cancelled
)

// OutcomeKind classifies the result of a resolved shot
type OutcomeKind int

const (
	OutcomeMiss OutcomeKind = iota
	OutcomeHit
	OutcomeSunk
	OutcomeGameOver
)

// ShotOutcome is the result of ApplyShot. NextTurn is empty on game over.
type ShotOutcome struct {
	Kind     OutcomeKind
	ShipID   string       // set when Kind is OutcomeSunk
	Winner   model.UserID // set when Kind is OutcomeGameOver
	NextTurn model.UserID
}

// Departure is the result of a player leaving a match
type Departure struct {
	Remaining int
	Forfeit   bool         // the departure awarded the match to the remaining player
	Winner    model.UserID // set when Forfeit
	Empty     bool         // no players remain; caller should tear the match down
}

// Match is the state machine for one two-player room. All access is
// serialized by the match's own lock, so concurrent events for the same
// room never interleave partially.
type Match struct {
	mu sync.Mutex

	roomID  string
	players []model.UserID
	boards  map[model.UserID]*Board
	ready   map[model.UserID]bool
	state   State
	turn    model.UserID
	rnd     random.Random
}

// NewMatch creates a match in the Forming state with empty boards for
// both participants.
func NewMatch(roomID string, playerA, playerB model.UserID, rnd random.Random) *Match {
	return &Match{
		roomID:  roomID,
		players: []model.UserID{playerA, playerB},
		boards: map[model.UserID]*Board{
			playerA: NewBoard(),
			playerB: NewBoard(),
		},
		ready: make(map[model.UserID]bool),
		state: StateForming,
		rnd:   rnd,
	}
}

// RoomID returns the match's room identifier
func (m *Match) RoomID() string {
	return m.roomID
}

// State returns the current phase
func (m *Match) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CurrentTurn returns the player whose turn it is, or empty if no turn is
// active.
func (m *Match) CurrentTurn() model.UserID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turn
}

// Players returns a copy of the current participant list
func (m *Match) Players() []model.UserID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.UserID, len(m.players))
	copy(out, m.players)
	return out
}

// HasPlayer reports whether the given user is a current participant
func (m *Match) HasPlayer(playerID model.UserID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexOf(playerID) >= 0
}

// OpponentOf returns the other participant, or false if the given player
// is absent or has no opponent left.
func (m *Match) OpponentOf(playerID model.UserID) (model.UserID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opponentOf(playerID)
}

// SetReady stores the player's fleet layout and marks them ready. The
// returned bool reports whether both players are now ready; when it
// becomes true the match has already picked a starting player and moved
// to InProgress.
//
// Re-submission overwrites the prior layout, but only while the match is
// still forming.
func (m *Match) SetReady(playerID model.UserID, ships map[string][]string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexOf(playerID) < 0 {
		return false, model.ErrNotInMatch
	}
	if m.state != StateForming {
		return false, model.ErrInvalidState
	}

	board := NewBoard()
	for shipID, cells := range ships {
		board.Place(shipID, cells)
	}
	if !board.Ready() {
		return false, model.ErrFleetIncomplete
	}

	m.boards[playerID] = board
	m.ready[playerID] = true

	if !m.allReady() {
		return false, nil
	}

	m.state = StateBothReady
	m.chooseStartingPlayer()
	m.state = StateInProgress
	return true, nil
}

// AllReady reports whether every current participant has submitted a fleet
func (m *Match) AllReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allReady()
}

// ResetShips re-arms the player's board to empty. The player must re-submit
// a full layout before they count as ready again.
func (m *Match) ResetShips(playerID model.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexOf(playerID) < 0 {
		return model.ErrNotInMatch
	}
	if m.state != StateForming {
		return model.ErrInvalidState
	}
	if !m.ready[playerID] {
		return model.ErrInvalidState
	}

	m.boards[playerID].Clear()
	m.ready[playerID] = false
	return nil
}

// ApplyShot resolves a shot by the given player against their opponent's
// board. The shot is classified and applied in one critical section, so a
// duplicate submission racing the turn flip is rejected as out of turn
// rather than double-applied.
func (m *Match) ApplyShot(shooterID model.UserID, square string) (ShotOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateInProgress {
		return ShotOutcome{}, model.ErrInvalidState
	}
	if m.indexOf(shooterID) < 0 {
		return ShotOutcome{}, model.ErrNotInMatch
	}
	if m.turn != shooterID {
		return ShotOutcome{}, model.ErrOutOfTurn
	}

	opponent, ok := m.opponentOf(shooterID)
	if !ok {
		return ShotOutcome{}, model.ErrNotInMatch
	}

	result := m.boards[opponent].RecordShot(square)

	if result.Kind == ShotSunk && m.boards[opponent].FleetDestroyed() {
		m.state = StateFinished
		m.turn = ""
		return ShotOutcome{Kind: OutcomeGameOver, ShipID: result.ShipID, Winner: shooterID}, nil
	}

	m.turn = opponent

	switch result.Kind {
	case ShotHit:
		return ShotOutcome{Kind: OutcomeHit, NextTurn: opponent}, nil
	case ShotSunk:
		return ShotOutcome{Kind: OutcomeSunk, ShipID: result.ShipID, NextTurn: opponent}, nil
	default:
		return ShotOutcome{Kind: OutcomeMiss, NextTurn: opponent}, nil
	}
}

// RemovePlayer drops a participant. If exactly one player remains and the
// match was in progress, the departure is a forfeit and the remaining
// player wins; if the match was still forming it is a cancellation. Boards
// are retained until the whole match is torn down.
func (m *Match) RemovePlayer(playerID model.UserID) (Departure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexOf(playerID)
	if idx < 0 {
		return Departure{}, model.ErrNotInMatch
	}

	wasInProgress := m.state == StateInProgress
	m.players = append(m.players[:idx], m.players[idx+1:]...)

	if len(m.players) == 0 {
		m.state = StateFinished
		m.turn = ""
		return Departure{Remaining: 0, Empty: true}, nil
	}

	dep := Departure{Remaining: len(m.players)}
	if wasInProgress {
		dep.Forfeit = true
		dep.Winner = m.players[0]
	}
	m.state = StateFinished
	m.turn = ""
	return dep, nil
}

// Board returns the board owned by the given player, or nil if the match
// never had that participant.
func (m *Match) Board(playerID model.UserID) *Board {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.boards[playerID]
}

// chooseStartingPlayer picks uniformly between the two players.
// Caller holds the lock; called exactly once, at the transition out of
// BothReady.
func (m *Match) chooseStartingPlayer() {
	m.turn = m.players[m.rnd.Intn(len(m.players))]
}

func (m *Match) allReady() bool {
	for _, p := range m.players {
		if !m.ready[p] {
			return false
		}
	}
	return len(m.players) == 2
}

func (m *Match) indexOf(playerID model.UserID) int {
	for i, p := range m.players {
		if p == playerID {
			return i
		}
	}
	return -1
}

func (m *Match) opponentOf(playerID model.UserID) (model.UserID, bool) {
	if m.indexOf(playerID) < 0 {
		return "", false
	}
	for _, p := range m.players {
		if p != playerID {
			return p, true
		}
	}
	return "", false
}

package game

// FleetSize is the number of ships a complete fleet must place
const FleetSize = 5

// ShotKind classifies the result of a shot against a board
type ShotKind int

const (
	ShotMiss ShotKind = iota
	ShotHit
	ShotSunk
)

// ShotResult is the outcome of recording a single shot
type ShotResult struct {
	Kind   ShotKind
	ShipID string // set when Kind is ShotSunk
}

// Board is one player's authoritative game board: ship placement plus the
// hits and misses recorded against it. Pure data and rules, no I/O and no
// locking; the owning Match serializes access.
type Board struct {
	ships  map[string]map[string]struct{} // ship id -> remaining unstruck cells
	hits   []string
	misses []string
	missed map[string]struct{} // dedupe index over misses
	struck map[string]struct{} // dedupe index over hits
}

// NewBoard creates an empty board with no ships placed
func NewBoard() *Board {
	return &Board{
		ships:  make(map[string]map[string]struct{}),
		missed: make(map[string]struct{}),
		struck: make(map[string]struct{}),
	}
}

// Place records a ship's cell set. Placing an existing ship id overwrites
// the prior placement (last write wins).
func (b *Board) Place(shipID string, cells []string) {
	set := make(map[string]struct{}, len(cells))
	for _, c := range cells {
		set[c] = struct{}{}
	}
	b.ships[shipID] = set
}

// RecordShot classifies a shot and applies it in a single step, so a shot
// is counted exactly once no matter how often the client re-sends it.
//
// A cell that was already struck is no longer in any ship's remaining set,
// so a repeated shot there classifies as a miss without touching hits or
// misses.
func (b *Board) RecordShot(square string) ShotResult {
	for shipID, cells := range b.ships {
		if _, ok := cells[square]; !ok {
			continue
		}
		delete(cells, square)
		b.hits = append(b.hits, square)
		b.struck[square] = struct{}{}
		if len(cells) == 0 {
			delete(b.ships, shipID)
			return ShotResult{Kind: ShotSunk, ShipID: shipID}
		}
		return ShotResult{Kind: ShotHit}
	}

	if _, hit := b.struck[square]; !hit {
		if _, seen := b.missed[square]; !seen {
			b.misses = append(b.misses, square)
			b.missed[square] = struct{}{}
		}
	}
	return ShotResult{Kind: ShotMiss}
}

// FleetDestroyed reports whether every ship has had all its cells struck
func (b *Board) FleetDestroyed() bool {
	return len(b.ships) == 0
}

// Ready reports whether the fleet is fully placed
func (b *Board) Ready() bool {
	return len(b.ships) == FleetSize
}

// Clear removes all ships and recorded shots, re-arming the board
func (b *Board) Clear() {
	b.ships = make(map[string]map[string]struct{})
	b.hits = nil
	b.misses = nil
	b.missed = make(map[string]struct{})
	b.struck = make(map[string]struct{})
}

// ShipCount returns the number of ships still afloat
func (b *Board) ShipCount() int {
	return len(b.ships)
}

// Hits returns a copy of the hit sequence recorded against this board
func (b *Board) Hits() []string {
	out := make([]string, len(b.hits))
	copy(out, b.hits)
	return out
}

// Misses returns a copy of the miss sequence recorded against this board
func (b *Board) Misses() []string {
	out := make([]string, len(b.misses))
	copy(out, b.misses)
	return out
}

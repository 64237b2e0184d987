package orderbook

import (
	"errors"

	"github.com/aetherbook/aetherbook/fixedpoint"
)

// Public errors.
var (
	// ErrMalformedSnapshot is returned by SetFromSnapshot when a price/size
	// string cannot be decoded. SetFromSnapshot does not detect missing
	// fields: an absent lastUpdateId arrives as 0 and absent ladders as
	// empty sides.
	ErrMalformedSnapshot = errors.New("orderbook: malformed snapshot")
	// ErrMalformedEvent is returned by ApplyEvent when a price/size string
	// in the event cannot be decoded. The book is left unchanged.
	ErrMalformedEvent = errors.New("orderbook: malformed event")
)

// ApplyResult reports the outcome of ApplyEvent.
type ApplyResult int

const (
	// Malformed is the zero value, returned alongside a non-nil error when
	// ApplyEvent could not decode the event at all. Callers must check the
	// error before branching on the result.
	Malformed ApplyResult = iota
	// Applied means the event's changes were merged into the book and
	// last_update_id advanced to the event's u.
	Applied
	// Ignored means the event was entirely older than the book's current
	// last_update_id; no state changed.
	Ignored
	// Gap means a sequence gap was detected (U > last_update_id+1); no
	// state changed. The caller must resynchronize.
	Gap
)

func (r ApplyResult) String() string {
	switch r {
	case Malformed:
		return "Malformed"
	case Applied:
		return "Applied"
	case Ignored:
		return "Ignored"
	case Gap:
		return "Gap"
	default:
		return "Unknown"
	}
}

// LevelChange is a single [price-string, size-string] entry from a depth
// update or snapshot payload. A Size of "0" deletes the level.
type LevelChange struct {
	Price string
	Size  string
}

// DepthEvent is the logical shape of a decoded "depthUpdate" message: U and
// u bound the inclusive range of update IDs the event accounts for, and Bids
// / Asks carry the changed levels.
type DepthEvent struct {
	FirstUpdateID uint64 // U
	LastUpdateID  uint64 // u
	Bids          []LevelChange
	Asks          []LevelChange
}

// Snapshot is the logical shape of a decoded REST depth snapshot.
type Snapshot struct {
	LastUpdateID uint64
	Bids         []LevelChange
	Asks         []LevelChange
}

// Tranche is a single price level: a price and the size resting there.
type Tranche struct {
	Price fixedpoint.Value
	Size  fixedpoint.Value
}

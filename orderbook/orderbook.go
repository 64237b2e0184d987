package orderbook

import (
	"fmt"
	"sync"

	"github.com/aetherbook/aetherbook/fixedpoint"
)

// OrderBook is a price-indexed two-sided ladder for a single symbol,
// mutated under strict sequence invariants (spec.md §4.1). It is safe for
// concurrent use, though in this system only the Synchronizer goroutine
// ever touches one.
type OrderBook struct {
	mu sync.Mutex

	bids side
	asks side

	lastUpdateID uint64
	scale        int64
}

// New returns an empty OrderBook. scale is the fixed-point scale applied to
// every price and size string decoded by this book; pass
// fixedpoint.DefaultScale unless the caller has a reason to parameterize it
// (spec.md §9, "Fixed-point scale").
func New(scale int64) *OrderBook {
	return &OrderBook{
		bids:  side{descending: true},
		asks:  side{descending: false},
		scale: scale,
	}
}

// parseLevels decodes a list of [price, size] string pairs into Tranches.
// It does not mutate the book: a failure here must never leave the book
// partially applied.
func (b *OrderBook) parseLevels(changes []LevelChange) ([]Tranche, error) {
	out := make([]Tranche, len(changes))
	for i, c := range changes {
		price, err := fixedpoint.Parse(c.Price, b.scale)
		if err != nil {
			return nil, fmt.Errorf("price %q: %w", c.Price, err)
		}
		size, err := fixedpoint.Parse(c.Size, b.scale)
		if err != nil {
			return nil, fmt.Errorf("size %q: %w", c.Size, err)
		}
		out[i] = Tranche{Price: price, Size: size}
	}
	return out, nil
}

// SetFromSnapshot clears both sides and rebuilds the book from a REST depth
// snapshot. Levels with size 0 in the snapshot are dropped silently.
func (b *OrderBook) SetFromSnapshot(snap Snapshot) error {
	bids, err := b.parseLevels(snap.Bids)
	if err != nil {
		return fmt.Errorf("%w: bids: %v", ErrMalformedSnapshot, err)
	}
	asks, err := b.parseLevels(snap.Asks)
	if err != nil {
		return fmt.Errorf("%w: asks: %v", ErrMalformedSnapshot, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.bids.reset()
	b.asks.reset()
	for _, t := range bids {
		if t.Size > 0 {
			b.bids.set(t.Price, t.Size)
		}
	}
	for _, t := range asks {
		if t.Size > 0 {
			b.asks.set(t.Price, t.Size)
		}
	}
	b.lastUpdateID = snap.LastUpdateID
	return nil
}

// ApplyEvent applies a single depth update per spec.md §4.1:
//
//   - u < last_update_id            -> Ignored, no state change
//   - U > last_update_id + 1        -> Gap, no state change
//   - otherwise                     -> Applied, levels merged, last_update_id = u
//
// Any undecodable price/size string returns Malformed and ErrMalformedEvent,
// leaving the book untouched, even if the event would otherwise have been
// Ignored or caused a Gap; the caller cannot tell the difference between a
// malformed event and a well-formed one without successfully parsing it
// first, and must check the error before branching on the result.
func (b *OrderBook) ApplyEvent(ev DepthEvent) (ApplyResult, error) {
	bids, err := b.parseLevels(ev.Bids)
	if err != nil {
		return Malformed, fmt.Errorf("%w: bids: %v", ErrMalformedEvent, err)
	}
	asks, err := b.parseLevels(ev.Asks)
	if err != nil {
		return Malformed, fmt.Errorf("%w: asks: %v", ErrMalformedEvent, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if ev.LastUpdateID < b.lastUpdateID {
		return Ignored, nil
	}
	if ev.FirstUpdateID > b.lastUpdateID+1 {
		return Gap, nil
	}

	for _, t := range bids {
		b.bids.set(t.Price, t.Size)
	}
	for _, t := range asks {
		b.asks.set(t.Price, t.Size)
	}
	b.lastUpdateID = ev.LastUpdateID
	return Applied, nil
}

// BestBid returns the highest bid, or ok=false if the bid side is empty.
func (b *OrderBook) BestBid() (Tranche, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bids.best()
}

// BestAsk returns the lowest ask, or ok=false if the ask side is empty.
func (b *OrderBook) BestAsk() (Tranche, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.asks.best()
}

// LastUpdateID returns the book's current last_update_id.
func (b *OrderBook) LastUpdateID() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastUpdateID
}

// TotalLevels returns the combined number of non-empty bid and ask levels.
func (b *OrderBook) TotalLevels() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.bids.levels) + len(b.asks.levels)
}

// Bids returns a copy of the current bid ladder, highest price first.
func (b *OrderBook) Bids() []Tranche {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bids.clone()
}

// Asks returns a copy of the current ask ladder, lowest price first.
func (b *OrderBook) Asks() []Tranche {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.asks.clone()
}

// Scale returns the fixed-point scale this book decodes prices and sizes
// with.
func (b *OrderBook) Scale() int64 {
	return b.scale
}

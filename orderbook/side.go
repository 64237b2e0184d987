package orderbook

import (
	"sort"

	"github.com/aetherbook/aetherbook/fixedpoint"
)

// side is an ordered ladder of price -> size. Bids are kept descending by
// price (best bid first); asks ascending (best ask first). It is not
// thread-safe on its own; OrderBook guards access with its own mutex.
//
// A plain sorted slice with binary-search insert/delete, rather than the
// teacher's reusable-node linked list (exchanges/orderbook/node.go,
// levels.go), is enough here: this book carries one symbol, not dozens of
// concurrently-churning exchange books, so the stack/freelist machinery the
// teacher needs to avoid GC pressure under high update volume buys nothing.
type side struct {
	levels     []Tranche
	descending bool
}

// less reports whether a should sort before b for this side's direction.
func (s *side) less(a, b fixedpoint.Value) bool {
	if s.descending {
		return a > b
	}
	return a < b
}

// find returns the index of price if present, and the index it would be
// inserted at (both using binary search over the ordered slice).
func (s *side) find(price fixedpoint.Value) (idx int, found bool) {
	idx = sort.Search(len(s.levels), func(i int) bool {
		return !s.less(s.levels[i].Price, price)
	})
	found = idx < len(s.levels) && s.levels[idx].Price == price
	return idx, found
}

// set inserts or amends a level. size <= 0 deletes the level (no-op if not
// present).
func (s *side) set(price, size fixedpoint.Value) {
	idx, found := s.find(price)
	if size <= 0 {
		if found {
			s.levels = append(s.levels[:idx], s.levels[idx+1:]...)
		}
		return
	}
	if found {
		s.levels[idx].Size = size
		return
	}
	s.levels = append(s.levels, Tranche{})
	copy(s.levels[idx+1:], s.levels[idx:])
	s.levels[idx] = Tranche{Price: price, Size: size}
}

// best returns the front of the ladder (highest bid / lowest ask).
func (s *side) best() (Tranche, bool) {
	if len(s.levels) == 0 {
		return Tranche{}, false
	}
	return s.levels[0], true
}

// clone returns a copy of the current levels, safe for a caller to retain.
func (s *side) clone() []Tranche {
	out := make([]Tranche, len(s.levels))
	copy(out, s.levels)
	return out
}

func (s *side) reset() {
	s.levels = s.levels[:0]
}

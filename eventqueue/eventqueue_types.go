package eventqueue

import "github.com/aetherbook/aetherbook/orderbook"

// BufferedEvent pairs a decoded depth update with the producer's monotonic
// receive timestamp, in microseconds, and the raw JSON bytes the WS reader
// received it as. The timestamp is carried for future latency analysis only
// and never affects book state. The raw bytes are what the Synchronizer
// republishes into the Ring (spec.md §4.4 phases 5/6); re-encoding the
// decoded event would not byte-for-byte match what the exchange sent.
type BufferedEvent struct {
	Event         orderbook.DepthEvent
	RawJSON       []byte
	LocalRecvTSUS int64
}

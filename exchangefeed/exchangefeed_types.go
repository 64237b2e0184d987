// Package exchangefeed talks to the exchange: a REST client that fetches a
// depth snapshot, and a WebSocket reader that streams diff-depth events.
// Both hand raw exchange payloads up to the caller; decoding into
// orderbook types happens here, but sequencing decisions belong to the
// Synchronizer (spec.md §4.4).
package exchangefeed

import (
	"errors"
	"fmt"
)

// restBaseURL and wsBaseURL are package variables, not constants, so
// tests can point them at an httptest server instead of the real
// exchange.
var (
	restBaseURL = "https://api.binance.com/api/v3/depth"
	wsBaseURL   = "wss://stream.binance.com:9443/ws"
)

// snapshotLimit is the deepest book Binance will hand back in one REST
// call. spec.md §6 does not mandate a specific depth; 5000 matches the
// original implementation's request.
const snapshotLimit = 5000

var (
	ErrMalformedSnapshotResponse = errors.New("exchangefeed: malformed snapshot response")
	ErrSnapshotHTTPStatus        = errors.New("exchangefeed: unexpected snapshot HTTP status")
)

// depthSnapshotResponse mirrors Binance's GET /api/v3/depth JSON shape.
type depthSnapshotResponse struct {
	LastUpdateID uint64     `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// depthUpdateMessage mirrors Binance's raw-stream (/ws/) diff-depth event,
// field names taken directly from the exchange's wire format (spec.md §3
// "DepthEvent"), same tags the teacher uses in
// exchanges/binance/binance_types.go's WebsocketDepthStream.
type depthUpdateMessage struct {
	EventType     string     `json:"e"`
	EventTime     int64      `json:"E"`
	Symbol        string     `json:"s"`
	FirstUpdateID uint64     `json:"U"`
	LastUpdateID  uint64     `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

func snapshotURL(symbol string) string {
	return fmt.Sprintf("%s?symbol=%s&limit=%d", restBaseURL, symbol, snapshotLimit)
}

func streamURL(symbol, updateSpeed string) string {
	stream := fmt.Sprintf("%s@depth", symbol)
	if updateSpeed != "" {
		stream += "@" + updateSpeed
	}
	return fmt.Sprintf("%s/%s", wsBaseURL, stream)
}

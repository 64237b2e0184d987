package exchangefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aetherbook/aetherbook/eventqueue"
	"github.com/aetherbook/aetherbook/log"
	"github.com/aetherbook/aetherbook/orderbook"
)

// WSReader dials the exchange's diff-depth stream and pushes every
// decodable event onto an EventQueue, tagging each with the local receive
// timestamp (spec.md §4.2). A malformed frame is logged and dropped; it
// never terminates the reader, since a single bad frame must not take
// down the whole stream (spec.md §7 error propagation policy).
type WSReader struct {
	dialer *websocket.Dialer
}

// NewWSReader returns a WSReader using default dial settings.
func NewWSReader() *WSReader {
	return &WSReader{dialer: websocket.DefaultDialer}
}

// Run dials symbol's depth stream and blocks, pushing decoded events into
// q until ctx is cancelled or the connection drops. updateSpeed is an
// empty string for the default 1000ms cadence, or "100ms" for the faster
// feed, per spec.md §6.
func (r *WSReader) Run(ctx context.Context, symbol, updateSpeed string, q *eventqueue.EventQueue) error {
	url := streamURL(symbol, updateSpeed)
	log.ExchangeFeed.Infof("dialing %s", url)

	conn, _, err := r.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("exchangefeed: dial %s: %w", url, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("exchangefeed: read: %w", err)
		}

		event, ok := decodeDepthEvent(raw)
		if !ok {
			continue
		}

		q.Push(eventqueue.BufferedEvent{
			Event:         event,
			RawJSON:       raw,
			LocalRecvTSUS: time.Now().UnixMicro(),
		})
	}
}

// decodeDepthEvent parses a single WS frame into a DepthEvent. ok is
// false for anything that is not a depthUpdate event or fails to decode;
// decode failures are logged here, and the caller drops every !ok frame
// rather than treating it as fatal.
func decodeDepthEvent(raw []byte) (orderbook.DepthEvent, bool) {
	var msg depthUpdateMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.ExchangeFeed.Warnf("dropping malformed WS frame: %v", err)
		return orderbook.DepthEvent{}, false
	}
	if msg.EventType != "depthUpdate" {
		return orderbook.DepthEvent{}, false
	}
	return orderbook.DepthEvent{
		FirstUpdateID: msg.FirstUpdateID,
		LastUpdateID:  msg.LastUpdateID,
		Bids:          toLevelChanges(msg.Bids),
		Asks:          toLevelChanges(msg.Asks),
	}, true
}

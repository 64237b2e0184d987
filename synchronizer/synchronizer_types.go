// Package synchronizer orchestrates the reconciliation of a buffered
// WebSocket diff-depth stream with a REST snapshot into a single
// consistent OrderBook (spec.md §4.4), and republishes accepted events
// into a Ring for downstream consumers.
package synchronizer

import (
	"context"
	"errors"
	"time"

	"github.com/aetherbook/aetherbook/exchangefeed"
)

// SnapshotFetcher is the subset of *exchangefeed.RESTClient the
// Synchronizer needs, broken out as an interface so tests can supply a
// fake instead of hitting a real HTTP endpoint.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, symbol string) (exchangefeed.SnapshotResult, error)
}

const (
	minEvents           = 5
	phase1GracePeriod   = 100 * time.Millisecond
	phase1Timeout       = 500 * time.Millisecond
	pollInterval        = 50 * time.Millisecond
	warnAfterFailures   = 5
	ringPublishMaxTries = 3
)

// snapshotRetryDelay is a var, not a const, so tests can shrink it and
// exercise phase2's retry loop without a real one-second sleep per
// iteration.
var snapshotRetryDelay = time.Second

var ringPublishBackoff = []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}

// Sequence errors. These are fatal: the caller (cmd/aetherbook) maps them
// to distinct process exit codes so a supervisor can tell a cold-start
// failure from a mid-session desync apart from the exit code alone.
var (
	ErrCoverageGap = errors.New("synchronizer: buffered events do not straddle snapshot lastUpdateId")
	ErrBacklogGap  = errors.New("synchronizer: gap detected while applying buffered backlog")
	ErrLiveGap     = errors.New("synchronizer: gap detected in live stream")
	ErrStopped     = errors.New("synchronizer: stopped before completing initial sync")
)

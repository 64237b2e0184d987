package synchronizer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"

	"github.com/aetherbook/aetherbook/eventqueue"
	"github.com/aetherbook/aetherbook/exchangefeed"
	"github.com/aetherbook/aetherbook/log"
	"github.com/aetherbook/aetherbook/orderbook"
	"github.com/aetherbook/aetherbook/ring"
)

// Synchronizer drives the six-phase reconciliation protocol for a single
// symbol. Each instance is tagged with a run ID (mirroring the teacher's
// orderbook.Depth dispatch UUID in exchanges/orderbook/depth.go) carried
// into every log line for correlation across a process's lifetime.
type Synchronizer struct {
	runID  uuid.UUID
	symbol string

	queue *eventqueue.EventQueue
	rest  SnapshotFetcher
	ring  *ring.Ring // nil if the Ring failed to initialize (spec.md §7)
	book  *orderbook.OrderBook

	stopped atomic.Bool
}

// New returns a Synchronizer for symbol (already uppercased for REST use)
// reading from queue and fetching snapshots with rest. ringHandle may be
// nil: per spec.md §7, a Ring initialization failure is logged by the
// caller and the system runs on without one.
func New(symbol string, queue *eventqueue.EventQueue, rest SnapshotFetcher, ringHandle *ring.Ring, scale int64) *Synchronizer {
	runID, err := uuid.NewV4()
	if err != nil {
		// uuid.NewV4 only fails if the system CSPRNG is broken; fall
		// back to the nil UUID rather than making run-ID generation a
		// fatal startup error.
		runID = uuid.Nil
	}
	return &Synchronizer{
		runID:  runID,
		symbol: symbol,
		queue:  queue,
		rest:   rest,
		ring:   ringHandle,
		book:   orderbook.New(scale),
	}
}

// Book returns the OrderBook this Synchronizer maintains. Safe to read
// concurrently; OrderBook guards its own state.
func (s *Synchronizer) Book() *orderbook.OrderBook { return s.book }

// Stop requests a graceful shutdown. Run's live loop checks this between
// pops; combined with closing the EventQueue (the caller's
// responsibility, since the WS reader also needs to stop pushing to it),
// this unblocks a Run stuck in pop_blocking.
func (s *Synchronizer) Stop() { s.stopped.Store(true) }

// Run executes all six phases in order and then blocks in the live loop
// until ctx is cancelled, Stop is called, or a sequence error occurs. A
// nil return means clean shutdown; a non-nil return is always one of
// ErrCoverageGap, ErrBacklogGap, ErrLiveGap, ErrStopped, a wrapped
// orderbook.ErrMalformedSnapshot from phase 4, or a wrapped
// transport/context error.
func (s *Synchronizer) Run(ctx context.Context) error {
	log.Synchronizer.Infof("[%s] starting sync for %s", s.runID, s.symbol)

	firstU, err := s.phase1(ctx)
	if err != nil {
		return fmt.Errorf("phase1: %w", err)
	}
	log.Synchronizer.Debugf("[%s] phase1 complete, firstU=%d", s.runID, firstU)

	snapResult, err := s.phase2(ctx, firstU)
	if err != nil {
		return fmt.Errorf("phase2: %w", err)
	}
	log.Synchronizer.Debugf("[%s] phase2 complete, lastUpdateId=%d", s.runID, snapResult.Snapshot.LastUpdateID)

	backlog, err := s.phase3(snapResult.Snapshot.LastUpdateID)
	if err != nil {
		log.Synchronizer.Errorf("[%s] %v", s.runID, err)
		return err
	}
	log.Synchronizer.Debugf("[%s] phase3 complete, backlog=%d events", s.runID, len(backlog))

	if err := s.phase4(snapResult); err != nil {
		return fmt.Errorf("phase4: %w", err)
	}

	if err := s.phase5(backlog); err != nil {
		log.Synchronizer.Errorf("[%s] %v", s.runID, err)
		return err
	}
	log.Synchronizer.Infof("[%s] initial sync complete, entering live loop", s.runID)

	return s.phase6(ctx)
}

// phase1 buffers and records the sequence ID of the first event the WS
// reader delivered, per spec.md §4.4 phase 1's three-way wait condition.
// A timeout with the queue still empty does not abort: the original
// implementation (original_source/include/utils.h's wait_for_initial_buffer)
// keeps waiting past phase1Timeout until at least one event arrives, and a
// slow-to-dial WS connection is not itself a sequence error.
func (s *Synchronizer) phase1(ctx context.Context) (uint64, error) {
	deadline := time.Now().Add(phase1Timeout)
	start := time.Now()

	for {
		if s.stopped.Load() {
			return 0, ErrStopped
		}

		size := s.queue.Size()
		timedOut := time.Now().After(deadline)

		ready := (size >= minEvents) ||
			(size >= 1 && time.Since(start) >= phase1GracePeriod) ||
			(size >= 1 && timedOut)

		if ready {
			if u, ok := s.queue.PeekFirstU(); ok {
				return u, nil
			}
		}
		if timedOut && size >= 1 {
			return 0, fmt.Errorf("no decodable event received within %s", phase1Timeout)
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// phase2 retries the REST snapshot fetch until it covers firstU, per
// spec.md §4.4 phase 2. The loop is intentionally unbounded (an Open
// Question spec.md leaves for the implementation to resolve); from the
// warnAfterFailures-th consecutive transport/parse failure on, each one is
// logged at Warn so an operator watching logs notices a stuck synchronizer
// without changing the retry behavior itself.
func (s *Synchronizer) phase2(ctx context.Context, firstU uint64) (exchangefeed.SnapshotResult, error) {
	consecutiveFailures := 0
	for {
		if s.stopped.Load() {
			return exchangefeed.SnapshotResult{}, ErrStopped
		}

		result, err := s.rest.FetchSnapshot(ctx, s.symbol)
		if err != nil {
			consecutiveFailures++
			if consecutiveFailures >= warnAfterFailures {
				log.Synchronizer.Warnf("[%s] snapshot fetch failing repeatedly (%d consecutive): %v", s.runID, consecutiveFailures, err)
			} else {
				log.Synchronizer.Debugf("[%s] snapshot fetch error, retrying: %v", s.runID, err)
			}
			if !s.sleepOrStop(ctx, snapshotRetryDelay) {
				return exchangefeed.SnapshotResult{}, ErrStopped
			}
			continue
		}
		consecutiveFailures = 0

		if result.Snapshot.LastUpdateID >= firstU {
			return result, nil
		}
		log.Synchronizer.Debugf("[%s] snapshot stale (lastUpdateId=%d < firstU=%d), retrying", s.runID, result.Snapshot.LastUpdateID, firstU)
		if !s.sleepOrStop(ctx, snapshotRetryDelay) {
			return exchangefeed.SnapshotResult{}, ErrStopped
		}
	}
}

// phase3 drains the EventQueue and selects the backlog that must be
// applied on top of the snapshot, per spec.md §4.4 phase 3.
func (s *Synchronizer) phase3(lastUpdateID uint64) ([]eventqueue.BufferedEvent, error) {
	backlog := s.queue.DrainAll()

	i := 0
	for i < len(backlog) && backlog[i].Event.LastUpdateID <= lastUpdateID {
		i++
	}
	backlog = backlog[i:]

	if len(backlog) == 0 {
		return nil, nil
	}

	first := backlog[0].Event
	if !(first.FirstUpdateID <= lastUpdateID+1 && lastUpdateID+1 <= first.LastUpdateID) {
		return nil, fmt.Errorf("%w: lastUpdateId=%d, backlog head U=%d u=%d", ErrCoverageGap, lastUpdateID, first.FirstUpdateID, first.LastUpdateID)
	}
	return backlog, nil
}

// phase4 builds the OrderBook from the accepted snapshot and, if a Ring
// is attached, publishes it as a type-2 frame before any live event can
// reach a consumer.
func (s *Synchronizer) phase4(snapResult exchangefeed.SnapshotResult) error {
	if err := s.book.SetFromSnapshot(snapResult.Snapshot); err != nil {
		return err
	}
	if s.ring != nil {
		if err := s.publishWithRetry(ring.SnapshotJSON, snapResult.RawJSON); err != nil {
			log.Ring.Warnf("[%s] snapshot publish failed after retries: %v", s.runID, err)
		}
	}
	return nil
}

// phase5 applies the selected backlog in order, aborting with
// ErrBacklogGap if any event turns out to be a gap despite phase3's
// coverage check (possible if parseLevels fails partway and the caller
// never reaches Gap, or if the backlog's internal ordering itself has a
// gap between two buffered events).
func (s *Synchronizer) phase5(backlog []eventqueue.BufferedEvent) error {
	for _, buffered := range backlog {
		result, err := s.book.ApplyEvent(buffered.Event)
		if err != nil {
			log.OrderBook.Warnf("[%s] dropping malformed backlog event: %v", s.runID, err)
			continue
		}
		if result == orderbook.Gap {
			return fmt.Errorf("%w: at u=%d", ErrBacklogGap, buffered.Event.LastUpdateID)
		}
		if result == orderbook.Applied && s.ring != nil {
			if err := s.publishWithRetry(ring.DepthUpdate, buffered.RawJSON); err != nil {
				log.Ring.Warnf("[%s] backlog event publish failed after retries: %v", s.runID, err)
			}
		}
	}
	return nil
}

// phase6 is the steady-state live loop: pop, classify, apply, publish,
// forever, until stopped or a live gap is detected.
func (s *Synchronizer) phase6(ctx context.Context) error {
	for {
		if s.stopped.Load() || ctx.Err() != nil {
			return nil
		}

		buffered, ok := s.queue.PopBlocking()
		if !ok {
			return nil
		}

		ev := buffered.Event
		lastUpdateID := s.book.LastUpdateID()

		if ev.LastUpdateID < lastUpdateID {
			continue // stale, spec.md §4.4 phase 6
		}
		if ev.FirstUpdateID > lastUpdateID+1 {
			return fmt.Errorf("%w: at u=%d (book lastUpdateId=%d)", ErrLiveGap, ev.LastUpdateID, lastUpdateID)
		}

		result, err := s.book.ApplyEvent(ev)
		if err != nil {
			log.OrderBook.Warnf("[%s] dropping malformed live event: %v", s.runID, err)
			continue
		}
		if result != orderbook.Applied {
			continue
		}

		if s.ring != nil {
			if err := s.publishWithRetry(ring.DepthUpdate, buffered.RawJSON); err != nil {
				log.Ring.Warnf("[%s] live event publish failed after retries: %v", s.runID, err)
			}
		}
	}
}

// publishWithRetry publishes to the Ring with the bounded backoff
// spec.md §4.4 phases 5/6 specify. A failure here never touches the
// OrderBook; the Ring is best-effort transport (spec.md §7).
func (s *Synchronizer) publishWithRetry(msgType ring.MessageType, payload []byte) error {
	var lastErr error
	for attempt := 0; attempt < ringPublishMaxTries; attempt++ {
		if lastErr = s.ring.Publish(msgType, payload); lastErr == nil {
			return nil
		}
		if attempt < len(ringPublishBackoff) {
			time.Sleep(ringPublishBackoff[attempt])
		}
	}
	return lastErr
}

// sleepOrStop sleeps for d, returning false early if ctx is cancelled or
// Stop is called during the wait.
func (s *Synchronizer) sleepOrStop(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return !s.stopped.Load()
	}
}

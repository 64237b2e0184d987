// Command aetherbook synchronizes a single symbol's L2 order book from a
// Binance-style REST snapshot and WebSocket diff-depth stream, and
// republishes the reconciled stream into a shared-memory ring for other
// local processes to consume.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/aetherbook/aetherbook/eventqueue"
	"github.com/aetherbook/aetherbook/exchangefeed"
	"github.com/aetherbook/aetherbook/fixedpoint"
	"github.com/aetherbook/aetherbook/log"
	"github.com/aetherbook/aetherbook/ring"
	"github.com/aetherbook/aetherbook/signaler"
	"github.com/aetherbook/aetherbook/synchronizer"
)

const (
	defaultRingPath    = "/dev/shm/aether.byte.ring"
	defaultRingBufSize = 16 * 1024 * 1024

	restRatePerSecond = 10
	restBurst         = 5
)

func main() {
	app := &cli.App{
		Name:      "aetherbook",
		Usage:     "synchronize an order book from a REST snapshot and a WebSocket diff-depth stream",
		ArgsUsage: "SYMBOL [UPDATE_SPEED] [RING_PATH]",
		Action:    run,
	}

	if err := app.Run(os.Args); err != nil {
		log.CLI.Errorf("%v", err)
		if exitErr, ok := err.(cli.ExitCoder); ok {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("SYMBOL is required", 1)
	}
	symbolArg := c.Args().Get(0)
	updateSpeed := c.Args().Get(1)
	if updateSpeed != "100ms" {
		updateSpeed = ""
	}
	ringPath := c.Args().Get(2)
	if ringPath == "" {
		ringPath = defaultRingPath
	}

	symbolLower := strings.ToLower(symbolArg)
	symbolUpper := strings.ToUpper(symbolArg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-signaler.WaitForInterrupt()
		log.CLI.Warnf("interrupt received, shutting down")
		cancel()
	}()

	q := eventqueue.New()
	reader := exchangefeed.NewWSReader()

	readerDone := make(chan error, 1)
	go func() {
		readerDone <- reader.Run(ctx, symbolLower, updateSpeed, q)
	}()

	ringHandle, err := openOrCreateRing(ringPath)
	if err != nil {
		log.Ring.Warnf("ring unavailable at %s, continuing without it: %v", ringPath, err)
	} else {
		defer ringHandle.Close()
	}

	rest := exchangefeed.NewRESTClient(restRatePerSecond, restBurst)
	s := synchronizer.New(symbolUpper, q, rest, ringHandle, fixedpoint.DefaultScale)

	go func() {
		<-ctx.Done()
		s.Stop()
		q.Close()
	}()

	runErr := s.Run(ctx)
	cancel()
	q.Close()

	if readerErr := <-readerDone; readerErr != nil && !errors.Is(readerErr, context.Canceled) {
		log.ExchangeFeed.Warnf("WS reader exited: %v", readerErr)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, synchronizer.ErrStopped) {
		return cli.Exit(runErr.Error(), exitCodeFor(runErr))
	}
	return nil
}

// openOrCreateRing opens ringPath if it already exists (another process
// may have created it), otherwise creates a fresh one. Failure here is
// never fatal to the caller (spec.md §7, "Ring initialization failure").
func openOrCreateRing(path string) (*ring.Ring, error) {
	if r, err := ring.Open(path); err == nil {
		return r, nil
	}
	r, err := ring.Create(path, defaultRingBufSize)
	if err != nil {
		return nil, fmt.Errorf("create or open %s: %w", path, err)
	}
	return r, nil
}

// exitCodeFor maps a sequence error to the process exit code an external
// supervisor uses to distinguish failure modes (spec.md §6, plus the
// live-gap code 4 this implementation adds per spec.md §9's open
// question).
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, synchronizer.ErrCoverageGap):
		return 2
	case errors.Is(err, synchronizer.ErrBacklogGap):
		return 3
	case errors.Is(err, synchronizer.ErrLiveGap):
		return 4
	default:
		return 1
	}
}

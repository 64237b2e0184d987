package signaler

import (
	"os"
	"os/signal"
	"syscall"
)

// WaitForInterrupt returns a channel that receives the process's termination
// signals (SIGINT and SIGTERM). The channel buffers one signal; a signal
// arriving while it is full is dropped. The Synchronizer's caller waits on
// this channel to drive a clean shutdown: set the stop flag, join the WS
// reader, close the Ring.
func WaitForInterrupt() chan os.Signal {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	return c
}

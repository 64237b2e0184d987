package log

import (
	"io"
	"sync"
)

// Levels flags which message classes a SubLogger will emit.
type Levels struct {
	Info, Debug, Warn, Error bool
}

// SubLogger is a named, independently level-gated logging channel. Each
// subsystem of aetherbook (the Synchronizer, the Ring, the exchange feed
// reader, the order book) owns one so that, for example, Ring publish
// warnings can be silenced without silencing Synchronizer phase transitions.
type SubLogger struct {
	name   string
	output io.Writer
	Levels

	mu sync.RWMutex
}

var (
	registryMu sync.Mutex
	registry   = map[string]*SubLogger{}
)

// NewSubLogger registers and returns a new SubLogger writing to w with the
// default level set (info, warn, error enabled; debug disabled). Registering
// the same name twice returns the existing instance.
func NewSubLogger(name string, w io.Writer) *SubLogger {
	registryMu.Lock()
	defer registryMu.Unlock()
	if existing, ok := registry[name]; ok {
		return existing
	}
	sl := &SubLogger{
		name:   name,
		output: w,
		Levels: Levels{Info: true, Warn: true, Error: true},
	}
	registry[name] = sl
	return sl
}

// SetLevels replaces the enabled levels for this sub-logger.
func (sl *SubLogger) SetLevels(l Levels) {
	sl.mu.Lock()
	sl.Levels = l
	sl.mu.Unlock()
}

// SetOutput redirects where this sub-logger writes formatted lines.
func (sl *SubLogger) SetOutput(w io.Writer) {
	sl.mu.Lock()
	sl.output = w
	sl.mu.Unlock()
}

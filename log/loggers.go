package log

import (
	"fmt"
	"os"
	"time"
)

const (
	timestampFormat = "2006-01-02T15:04:05.000Z07:00"
	spacer          = " | "

	infoHeader  = "[INFO]"
	warnHeader  = "[WARN]"
	debugHeader = "[DEBUG]"
	errorHeader = "[ERROR]"
)

// Package-level sub-loggers for aetherbook's core subsystems. Each is
// independently level-gated; see SubLogger.SetLevels.
var (
	Synchronizer = NewSubLogger("SYNC", os.Stderr)
	Ring         = NewSubLogger("RING", os.Stderr)
	ExchangeFeed = NewSubLogger("FEED", os.Stderr)
	OrderBook    = NewSubLogger("ORDERBOOK", os.Stderr)
	CLI          = NewSubLogger("CLI", os.Stderr)
)

func (sl *SubLogger) write(header, data string) {
	sl.mu.RLock()
	w := sl.output
	sl.mu.RUnlock()
	if w == nil {
		return
	}
	line := time.Now().UTC().Format(timestampFormat) + spacer + header + spacer + sl.name + spacer + data
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line += "\n"
	}
	_, _ = w.Write([]byte(line))
}

// Info logs data at info level.
func (sl *SubLogger) Info(data string) {
	if sl.Levels.Info {
		sl.write(infoHeader, data)
	}
}

// Infof formats and logs at info level.
func (sl *SubLogger) Infof(format string, v ...interface{}) {
	if sl.Levels.Info {
		sl.write(infoHeader, fmt.Sprintf(format, v...))
	}
}

// Debug logs data at debug level.
func (sl *SubLogger) Debug(data string) {
	if sl.Levels.Debug {
		sl.write(debugHeader, data)
	}
}

// Debugf formats and logs at debug level.
func (sl *SubLogger) Debugf(format string, v ...interface{}) {
	if sl.Levels.Debug {
		sl.write(debugHeader, fmt.Sprintf(format, v...))
	}
}

// Warn logs data at warn level.
func (sl *SubLogger) Warn(data string) {
	if sl.Levels.Warn {
		sl.write(warnHeader, data)
	}
}

// Warnf formats and logs at warn level.
func (sl *SubLogger) Warnf(format string, v ...interface{}) {
	if sl.Levels.Warn {
		sl.write(warnHeader, fmt.Sprintf(format, v...))
	}
}

// Error logs data at error level.
func (sl *SubLogger) Error(data string) {
	if sl.Levels.Error {
		sl.write(errorHeader, data)
	}
}

// Errorf formats and logs at error level.
func (sl *SubLogger) Errorf(format string, v ...interface{}) {
	if sl.Levels.Error {
		sl.write(errorHeader, fmt.Sprintf(format, v...))
	}
}

// Package logger writes the server's leveled log lines. Adapters log through
// the standard log package directly; SetOutput redirects both.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables debug lines.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose reports whether debug lines are written.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the destination for this package and the standard logger.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	log.SetOutput(w)
}

// Writer returns the current destination.
func Writer() io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	return output
}

func logf(level, format string, args ...any) {
	log.Output(3, level+" "+fmt.Sprintf(format, args...))
}

// Debugf logs only in verbose mode.
func Debugf(format string, args ...any) {
	if IsVerbose() {
		logf("[DEBUG]", format, args...)
	}
}

func Infof(format string, args ...any)  { logf("[INFO]", format, args...) }
func Warnf(format string, args ...any)  { logf("[WARN]", format, args...) }
func Errorf(format string, args ...any) { logf("[ERROR]", format, args...) }

// Package obs provides the component-tagged leveled loggers used across the
// pipeline, built on charmbracelet/log. Every stage gets its own Logger via
// New(tag) so log lines read "INFO vad: ..." the way the teacher's
// "[Tag] message" log.Printf calls used to, but leveled and structured.
package obs

import (
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// Logger is a thin alias so callers don't import charmbracelet/log directly.
type Logger = *log.Logger

var (
	mu      sync.Mutex
	level   = log.InfoLevel
	root    = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	})
)

// SetLevel changes the level for all loggers created after this call, and
// for every logger already handed out (they share the root handler's level).
func SetLevel(l log.Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
	root.SetLevel(l)
}

// New returns a logger tagged with the given component name, e.g. "vad",
// "asr", "session". Tags stay short and lower-case to match the teacher's
// bracketed prefixes ("[VoicePrint]", "[Session]", ...).
func New(tag string) Logger {
	mu.Lock()
	defer mu.Unlock()
	l := root.WithPrefix(tag)
	l.SetLevel(level)
	return l
}

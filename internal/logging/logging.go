// Package logging provides the structured logger used throughout the
// workservice core. It is a thin façade over hclog, mirroring the
// GetLogger/With/Debug/Info/Warn/Error surface used pervasively in the
// teacher codebase's common/logging package.
package logging

import (
	"os"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Logger wraps hclog.Logger with the narrower surface this module uses.
type Logger struct {
	hclog.Logger
}

var (
	rootOnce sync.Once
	root     hclog.Logger
)

func rootLogger() hclog.Logger {
	rootOnce.Do(func() {
		root = hclog.New(&hclog.LoggerOptions{
			Name:       "workservice",
			Level:      hclog.Warn,
			Output:     os.Stderr,
			JSONFormat: false,
		})
	})
	return root
}

// GetLogger returns a named logger, e.g. GetLogger("registry").
func GetLogger(name string) *Logger {
	return &Logger{Logger: rootLogger().Named(name)}
}

// With returns a logger with the given key/value pairs attached to every
// subsequent message, matching the teacher's sc.logger.With("k", v) idiom.
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// SetLevel adjusts the root logger's verbosity. Intended for the demo CLI's
// --log.level flag.
func SetLevel(level string) {
	rootLogger().SetLevel(hclog.LevelFromString(level))
}

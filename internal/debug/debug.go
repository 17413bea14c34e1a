// Package debug provides an opt-in diagnostic log. It is silent unless
// the GITTASK_DEBUG environment variable is set; user-facing output goes
// through the CLI, never through this package.
package debug

import (
	"log"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	once   sync.Once
	logger *log.Logger
)

// Enabled reports whether debug logging is active.
func Enabled() bool {
	return os.Getenv("GITTASK_DEBUG") != ""
}

// Logf writes a formatted line to the debug log. A no-op when disabled.
//
// GITTASK_DEBUG=1 logs to ~/.gittask/debug.log with rotation;
// any other value is treated as an explicit log file path.
func Logf(format string, args ...any) {
	if !Enabled() {
		return
	}
	once.Do(initLogger)
	if logger != nil {
		logger.Printf(format, args...)
	}
}

func initLogger() {
	path := os.Getenv("GITTASK_DEBUG")
	if path == "1" || path == "true" {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		path = filepath.Join(home, ".gittask", "debug.log")
	}
	logger = log.New(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
	}, "", log.LstdFlags|log.Lmicroseconds)
}

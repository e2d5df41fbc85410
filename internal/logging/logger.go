// Package logging wires the process-wide structured logger. Output always
// goes to the console writer; the ENVIRONMENT variable selects only the
// level (info in production, debug otherwise). There is no JSON output mode.
package logging

import (
	"sync"

	"github.com/ternarybob/arbor"
	arborcommon "github.com/ternarybob/arbor/common"
	"github.com/ternarybob/arbor/models"

	"github.com/privacyanalyzer/privacyanalyzer/internal/config"
)

var (
	globalLogger arbor.ILogger
	mu           sync.RWMutex
)

// Setup configures and installs the global logger based on cfg.
func Setup(cfg *config.Config) arbor.ILogger {
	logger := arbor.NewLogger()

	writerCfg := models.WriterConfiguration{
		Type:             models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05.000",
		DisableTimestamp: false,
	}
	logger = logger.WithConsoleWriter(writerCfg)

	level := "info"
	if !cfg.IsProduction() {
		level = "debug"
	}
	logger = logger.WithLevelFromString(level)

	mu.Lock()
	globalLogger = logger
	mu.Unlock()

	return logger
}

// Get returns the global logger, falling back to a bare console logger if
// Setup has not run yet (e.g. very early startup errors).
func Get() arbor.ILogger {
	mu.RLock()
	if globalLogger != nil {
		defer mu.RUnlock()
		return globalLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		globalLogger = arbor.NewLogger().WithConsoleWriter(models.WriterConfiguration{
			Type:       models.LogWriterTypeConsole,
			TimeFormat: "15:04:05.000",
		})
	}
	return globalLogger
}

// Stop flushes any buffered log writers before process exit.
func Stop() {
	arborcommon.Stop()
}

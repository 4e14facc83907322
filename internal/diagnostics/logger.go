package diagnostics

import "github.com/tphakala/hackrf-stream/internal/logger"

// GetLogger returns the diagnostics module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("diagnostics")
}

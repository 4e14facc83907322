package metrics

import "github.com/tphakala/hackrf-stream/internal/logger"

// GetLogger returns the metrics module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("metrics")
}

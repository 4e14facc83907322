package iqstream

import "github.com/tphakala/hackrf-stream/internal/logger"

// GetLogger returns the iqstream module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("iqstream")
}

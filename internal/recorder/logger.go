package recorder

import "github.com/tphakala/hackrf-stream/internal/logger"

// GetLogger returns the recorder module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("recorder")
}

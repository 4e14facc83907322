package transfer

import "github.com/tphakala/hackrf-stream/internal/logger"

// GetLogger returns the transfer module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("transfer")
}

package sim

import "github.com/tphakala/hackrf-stream/internal/logger"

// GetLogger returns the simulator module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("hackrf.sim")
}

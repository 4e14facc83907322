// Package conf provides configuration management for hackrf-stream.
package conf

import "github.com/tphakala/hackrf-stream/internal/logger"

// GetLogger returns the config package logger. It is fetched from the global logger each
// time because the central logger is installed after package init.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}

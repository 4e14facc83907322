package observability

import "github.com/tphakala/hackrf-stream/internal/logger"

// Package-level cached logger instance.
var log = logger.Global().Module("telemetry")

// Package metrics provides the Prometheus collectors for the sample streams, the
// transfer callbacks, recordings and the HTTP control surface.
package metrics

import "time"

// Label values
const (
	// LabelRx is the direction label for receive
	LabelRx = "rx"
	// LabelTx is the direction label for transmit
	LabelTx = "tx"
	// StatusSuccess marks a completed operation
	StatusSuccess = "success"
	// StatusError marks a failed operation
	StatusError = "error"
)

// Histogram bucket configuration
const (
	// BucketStart1KB is the starting bucket for byte size histograms (1KB to ~1GB range)
	BucketStart1KB = 1024.0
	// BucketStart100B is the starting bucket for response size histograms
	BucketStart100B = 100.0
	// BucketFactor2 is the exponential growth factor for byte buckets
	BucketFactor2 = 2
	// BucketFactor10 is the growth factor for response size buckets
	BucketFactor10 = 10
	// BucketCount6 defines 6 exponential buckets
	BucketCount6 = 6
	// BucketCount20 defines 20 exponential buckets
	BucketCount20 = 20
)

// ShutdownTimeout is the timeout for graceful shutdown of the metrics endpoint
const ShutdownTimeout = 5 * time.Second

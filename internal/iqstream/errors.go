package iqstream

import (
	"context"

	"github.com/tphakala/hackrf-stream/internal/errors"
)

const componentIQStream = "iqstream"

var (
	// ErrCapacityExceeded is returned by Buffer.Write when the bytes do not fit before limit
	ErrCapacityExceeded = errors.NewStd("buffer capacity exceeded")

	// ErrBufferNotOwned is returned when a buffer the caller does not hold is enqueued
	ErrBufferNotOwned = errors.NewStd("buffer not owned by caller")

	// ErrStreamClosed is returned by blocking operations on a closed stream
	ErrStreamClosed = errors.NewStd("stream closed")

	// ErrInvalidCursor is returned when a position or limit would break 0 <= position <= limit <= capacity
	ErrInvalidCursor = errors.NewStd("invalid buffer cursor")
)

func streamError(err error, stream, operation string) error {
	return errors.New(err).
		Component(componentIQStream).
		Category(errors.CategoryStream).
		Context("stream", stream).
		Context("operation", operation).
		Build()
}

// waitError classifies a context error from a blocking wait
func waitError(err error, stream, operation string) error {
	category := errors.CategoryCancellation
	if errors.Is(err, context.DeadlineExceeded) {
		category = errors.CategoryTimeout
	}
	return errors.New(err).
		Component(componentIQStream).
		Category(category).
		Context("stream", stream).
		Context("operation", operation).
		Build()
}

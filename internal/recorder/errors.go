package recorder

import (
	"github.com/tphakala/hackrf-stream/internal/errors"
)

const componentRecorder = "recorder"

var (
	// ErrNoDevice is returned by Start when the source has no open device
	ErrNoDevice = errors.NewStd("no device open")

	// ErrAlreadyRecording is returned by Start while a recording is running
	ErrAlreadyRecording = errors.NewStd("recording already in progress")

	// ErrUnknownFormat is returned for an unsupported sink format
	ErrUnknownFormat = errors.NewStd("unknown recording format")

	// ErrSizeLimit ends a recording whose next samples would not fit the file format
	ErrSizeLimit = errors.NewStd("recording size limit reached")
)

func recordingError(err error, category errors.ErrorCategory, path, operation string) error {
	return errors.New(err).
		Component(componentRecorder).
		Category(category).
		Context("path", path).
		Context("operation", operation).
		Build()
}

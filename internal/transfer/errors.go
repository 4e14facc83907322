package transfer

import (
	"github.com/tphakala/hackrf-stream/internal/errors"
	"github.com/tphakala/hackrf-stream/internal/hackrf"
)

const componentTransfer = "transfer"

var (
	// ErrNoDevice is returned when an operation needs an open device
	ErrNoDevice = errors.NewStd("no device open")

	// ErrAlreadyOpen is returned by Open when a device is already open
	ErrAlreadyOpen = errors.NewStd("device already open")

	// ErrInvalidParameter is returned when a value is outside the hardware bounds
	ErrInvalidParameter = errors.NewStd("invalid parameter")

	// ErrBusy is returned when starting a mode while another one is active
	ErrBusy = errors.NewStd("device busy")
)

func stateError(err error, operation string) error {
	category := errors.CategoryState
	if errors.Is(err, ErrNoDevice) {
		category = errors.CategoryNotFound
	}
	return errors.New(err).
		Component(componentTransfer).
		Category(category).
		Context("operation", operation).
		Build()
}

func invalidParameter(name string, value any, bound string) error {
	return errors.New(ErrInvalidParameter).
		Component(componentTransfer).
		Category(errors.CategoryValidation).
		Context("parameter", name).
		Context("value", value).
		Context("bound", bound).
		Build()
}

// hardwareError wraps a driver failure keeping its status code reachable with errors.As
func hardwareError(err error, operation string) error {
	builder := errors.New(err).
		Component(componentTransfer).
		Category(errors.CategoryHardware).
		Context("operation", operation)

	var code hackrf.Error
	if errors.As(err, &code) {
		builder = builder.Context("status", code.Name()).Context("code", code.Code())
	}
	return builder.Build()
}

// StatusCode maps an error returned by a Session back to a driver status code
func StatusCode(err error) hackrf.Error {
	var code hackrf.Error
	switch {
	case err == nil:
		return hackrf.Success
	case errors.Is(err, ErrNoDevice):
		return hackrf.ErrorNotFound
	case errors.Is(err, ErrAlreadyOpen), errors.Is(err, ErrBusy):
		return hackrf.ErrorBusy
	case errors.Is(err, ErrInvalidParameter):
		return hackrf.ErrorInvalidParam
	case errors.As(err, &code):
		return code
	default:
		return hackrf.ErrorOther
	}
}

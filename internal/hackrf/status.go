package hackrf

import (
	"strconv"

	"github.com/tphakala/hackrf-stream/internal/errors"
)

// Error is a driver status code. Success and True are not errors but share the type so a
// raw code can round-trip through the host bridge.
type Error int

const (
	Success                  Error = 0
	True                     Error = 1
	ErrorInvalidParam        Error = -2
	ErrorNotFound            Error = -5
	ErrorBusy                Error = -6
	ErrorNoMem               Error = -11
	ErrorLibUSB              Error = -1000
	ErrorThread              Error = -1001
	ErrorStreamingThreadErr  Error = -1002
	ErrorStreamingStopped    Error = -1003
	ErrorStreamingExitCalled Error = -1004
	ErrorUSBAPIVersion       Error = -1005
	ErrorNotLastDevice       Error = -2000
	ErrorOther               Error = -9999
)

var statusText = map[Error]struct{ name, message string }{
	Success:                  {"HACKRF_SUCCESS", "no error"},
	True:                     {"HACKRF_TRUE", "no error"},
	ErrorInvalidParam:        {"HACKRF_ERROR_INVALID_PARAM", "invalid parameter(s)"},
	ErrorNotFound:            {"HACKRF_ERROR_NOT_FOUND", "HackRF not found"},
	ErrorBusy:                {"HACKRF_ERROR_BUSY", "HackRF busy"},
	ErrorNoMem:               {"HACKRF_ERROR_NO_MEM", "insufficient memory"},
	ErrorLibUSB:              {"HACKRF_ERROR_LIBUSB", "USB error"},
	ErrorThread:              {"HACKRF_ERROR_THREAD", "transfer thread error"},
	ErrorStreamingThreadErr:  {"HACKRF_ERROR_STREAMING_THREAD_ERR", "streaming thread encountered an error"},
	ErrorStreamingStopped:    {"HACKRF_ERROR_STREAMING_STOPPED", "streaming stopped"},
	ErrorStreamingExitCalled: {"HACKRF_ERROR_STREAMING_EXIT_CALLED", "streaming terminated"},
	ErrorUSBAPIVersion:       {"HACKRF_ERROR_USB_API_VERSION", "feature not supported by installed firmware"},
	ErrorNotLastDevice:       {"HACKRF_ERROR_NOT_LAST_DEVICE", "one or more HackRFs still in use"},
	ErrorOther:               {"HACKRF_ERROR_OTHER", "unspecified error"},
}

// Error returns the driver's human-readable message
func (e Error) Error() string {
	if t, ok := statusText[e]; ok {
		return t.message
	}
	return "unspecified error (" + strconv.Itoa(int(e)) + ")"
}

// Name returns the enum identifier, e.g. HACKRF_ERROR_BUSY
func (e Error) Name() string {
	if t, ok := statusText[e]; ok {
		return t.name
	}
	return "HACKRF_ERROR_OTHER"
}

// Code returns the raw integer status
func (e Error) Code() int {
	return int(e)
}

// OK reports whether the status denotes success
func (e Error) OK() bool {
	return e == Success || e == True
}

// Status converts a raw driver return code to an error, nil for success codes.
func Status(code int) error {
	if e := Error(code); !e.OK() {
		return e
	}
	return nil
}

// ErrorCategory classifies driver status errors as hardware failures
func (e Error) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryHardware
}

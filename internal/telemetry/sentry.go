// Package telemetry wires optional Sentry error reporting into the errors package.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/hackrf-stream/internal/buildinfo"
	"github.com/tphakala/hackrf-stream/internal/conf"
	"github.com/tphakala/hackrf-stream/internal/errors"
	"github.com/tphakala/hackrf-stream/internal/logger"
	"github.com/tphakala/hackrf-stream/internal/privacy"
)

// FlushTimeout bounds how long Shutdown waits for queued events
const FlushTimeout = 2 * time.Second

// allowedExtra lists the event extra keys kept by the privacy filter
var allowedExtra = map[string]struct{}{
	"error_type": {},
	"component":  {},
}

// GetLogger returns the telemetry module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("telemetry")
}

// Option adjusts the Sentry client options before Init
type Option func(*sentry.ClientOptions)

// WithTransport replaces the HTTP transport, used by tests
func WithTransport(t sentry.Transport) Option {
	return func(o *sentry.ClientOptions) { o.Transport = t }
}

// Init initializes Sentry and installs the errors package reporter.
// It is a no-op returning a no-op shutdown when telemetry is disabled.
func Init(settings *conf.SentrySettings, info *buildinfo.Context, opts ...Option) (shutdown func(), err error) {
	if settings == nil || !settings.Enabled {
		errors.SetTelemetryReporter(nil)
		return func() {}, nil
	}
	if settings.DSN == "" {
		return func() {}, fmt.Errorf("sentry enabled without a DSN")
	}

	options := sentry.ClientOptions{
		Dsn:              settings.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      settings.Environment,
		ServerName:       "",
		Release:          fmt.Sprintf("hackrf-stream@%s", info.Version()),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	}
	for _, opt := range opts {
		opt(&options)
	}

	if err := sentry.Init(options); err != nil {
		return func() {}, fmt.Errorf("sentry initialization failed: %w", err)
	}
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("system_id", info.SystemID())
	})

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	GetLogger().Info("error telemetry enabled",
		logger.String("environment", settings.Environment),
		logger.String("release", options.Release),
		logger.String("dsn", privacy.AnonymizeURL(settings.DSN)))

	return func() {
		errors.SetTelemetryReporter(nil)
		if !sentry.Flush(FlushTimeout) {
			GetLogger().Warn("telemetry flush timed out")
		}
	}, nil
}

// applyPrivacyFilters strips host identifying data from an event
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if _, ok := allowedExtra[k]; !ok {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	return event
}

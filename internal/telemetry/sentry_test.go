package telemetry

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/hackrf-stream/internal/buildinfo"
	"github.com/tphakala/hackrf-stream/internal/conf"
	"github.com/tphakala/hackrf-stream/internal/errors"
)

// Tests here share the global Sentry hub and reporter, so they do not run in parallel.

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(&conf.SentrySettings{Enabled: false}, buildinfo.NewContext("1.0.0", "", ""))
	require.NoError(t, err)
	shutdown()
	assert.Nil(t, errors.GetTelemetryReporter())
}

func TestInit_RequiresDSN(t *testing.T) {
	_, err := Init(&conf.SentrySettings{Enabled: true}, buildinfo.NewContext("1.0.0", "", ""))
	require.Error(t, err)
}

func TestInit_ReportsEnhancedErrors(t *testing.T) {
	transport := newCaptureTransport()
	shutdown, err := Init(&conf.SentrySettings{
		Enabled:     true,
		DSN:         "https://public@sentry.example.com/1",
		Environment: "test",
	}, buildinfo.NewContext("1.0.0", "", "instance"), WithTransport(transport))
	require.NoError(t, err)
	defer shutdown()

	require.NotNil(t, errors.GetTelemetryReporter())

	_ = errors.New(stderrors.New("open /home/user/captures/rx.iq: permission denied")).
		Component("recorder").
		Category(errors.CategoryFileIO).
		Context("operation", "open").
		Build()

	event := transport.next(2 * time.Second)
	require.NotNil(t, event)
	assert.Contains(t, event.Message, "[PATH]/rx.iq")
	assert.NotContains(t, event.Message, "/home/user")
	assert.Equal(t, "recorder", event.Tags["component"])
	assert.Empty(t, event.ServerName)
}

func TestApplyPrivacyFilters(t *testing.T) {
	event := sentry.NewEvent()
	event.ServerName = "radio-host"
	event.User = sentry.User{ID: "42"}
	event.Contexts["os"] = sentry.Context{"name": "linux"}
	event.Extra = map[string]any{"component": "transfer", "path": "/tmp/x"}
	event.Tags = map[string]string{"hostname": "radio-host", "category": "hardware"}

	out := applyPrivacyFilters(event)

	assert.Empty(t, out.ServerName)
	assert.True(t, out.User.IsEmpty())
	assert.NotContains(t, out.Contexts, "os")
	assert.Equal(t, map[string]any{"component": "transfer"}, out.Extra)
	assert.Equal(t, map[string]string{"category": "hardware"}, out.Tags)
}

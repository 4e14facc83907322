package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

// captureTransport keeps events in memory instead of sending them.
type captureTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
	sent   chan struct{}
}

func newCaptureTransport() *captureTransport {
	return &captureTransport{sent: make(chan struct{}, 64)}
}

//nolint:gocritic // sentry.Transport signature
func (t *captureTransport) Configure(sentry.ClientOptions) {}
func (t *captureTransport) Close() {}
func (t *captureTransport) Flush(time.Duration) bool { return true }
func (t *captureTransport) FlushWithContext(context.Context) bool { return true }

func (t *captureTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	t.events = append(t.events, event)
	t.mu.Unlock()
	select {
	case t.sent <- struct{}{}:
	default:
	}
}

// next waits for one more event and returns the latest, or nil on timeout.
func (t *captureTransport) next(timeout time.Duration) *sentry.Event {
	select {
	case <-t.sent:
	case <-time.After(timeout):
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.events[len(t.events)-1]
}

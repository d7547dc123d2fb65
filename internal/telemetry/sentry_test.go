package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/train-spotter/internal/conf"
	"github.com/tphakala/train-spotter/internal/errors"
)

// mockTransport captures events instead of sending them.
type mockTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (t *mockTransport) Configure(sentry.ClientOptions) {}

func (t *mockTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *mockTransport) Flush(time.Duration) bool { return true }

func (t *mockTransport) FlushWithContext(context.Context) bool { return true }

func (t *mockTransport) Close() {}

func (t *mockTransport) Events() []*sentry.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*sentry.Event(nil), t.events...)
}

func sentrySettings(enabled bool, dsn string) *conf.Settings {
	s := &conf.Settings{}
	s.Main.Name = "spotter"
	s.Camera.ID = "cam-1"
	s.Telemetry.Sentry.Enabled = enabled
	s.Telemetry.Sentry.DSN = dsn
	return s
}

func resetSentry(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		errors.SetTelemetryReporter(nil)
		_ = sentry.Init(sentry.ClientOptions{})
	})
}

func TestInitSentryDisabled(t *testing.T) {
	resetSentry(t)

	require.NoError(t, InitSentry(sentrySettings(false, ""), "dev"))
	assert.Nil(t, errors.GetTelemetryReporter())
}

func TestInitSentryRequiresDSN(t *testing.T) {
	resetSentry(t)

	err := InitSentry(sentrySettings(true, ""), "dev")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestEnhancedErrorsAreReported(t *testing.T) {
	resetSentry(t)

	transport := &mockTransport{}
	require.NoError(t, initSentry(sentrySettings(true, "https://public@sentry.example.com/1"), "1.2.3", transport))

	errors.Newf("broker unreachable").
		Component("mqtt").
		Category(errors.CategoryMQTTConnection).
		Build()
	Flush()

	got := transport.Events()
	require.Len(t, got, 1)
	assert.Equal(t, "mqtt", got[0].Tags["component"])
	assert.Equal(t, "cam-1", got[0].Tags["camera_id"])
	assert.Equal(t, "train-spotter@1.2.3", got[0].Release)
	assert.Empty(t, got[0].ServerName)
}

func TestPrivacyFilters(t *testing.T) {
	t.Parallel()

	event := &sentry.Event{
		ServerName: "spotter-host",
		User:       sentry.User{ID: "42", IPAddress: "10.0.0.2"},
		Contexts:   map[string]sentry.Context{"device": {"model": "pi"}, "application": {"name": "x"}},
		Extra:      map[string]any{"component": "mqtt", "path": "/home/pi"},
		Tags:       map[string]string{"hostname": "spotter-host", "category": "network"},
	}

	got := applyPrivacyFilters(event)
	assert.Empty(t, got.ServerName)
	assert.True(t, got.User.IsEmpty())
	assert.NotContains(t, got.Contexts, "device")
	assert.Contains(t, got.Contexts, "application")
	assert.Equal(t, map[string]any{"component": "mqtt"}, got.Extra)
	assert.Equal(t, map[string]string{"category": "network"}, got.Tags)
}

func TestFlushWithoutInit(t *testing.T) {
	resetSentry(t)
	assert.NotPanics(t, Flush)
}

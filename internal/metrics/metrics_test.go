package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Recorder    = (*NoopRecorder)(nil)
	_ Recorder    = (*InMemoryRecorder)(nil)
	_ Recorder    = (*PrometheusRecorder)(nil)
	_ Snapshotter = (*InMemoryRecorder)(nil)
)

func TestInMemoryRecorder_Snapshot(t *testing.T) {
	m := NewInMemory()

	m.IncUserCreated()
	m.IncAccountLinked()
	m.IncReminderCreated()
	m.IncReminderCreated()
	m.IncReminderMarkedSent()
	m.IncWebhookEvent(EventPostback)
	m.IncWebhookEvent(EventMessage)
	m.IncWebhookEvent(EventMessage)
	m.IncWebhookRejected("token")

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.UsersCreated)
	assert.Equal(t, uint64(1), snap.AccountsLinked)
	assert.Equal(t, uint64(2), snap.RemindersCreated)
	assert.Equal(t, uint64(1), snap.RemindersMarkedSent)
	assert.Equal(t, uint64(1), snap.WebhookEvents[EventPostback])
	assert.Equal(t, uint64(2), snap.WebhookEvents[EventMessage])
	assert.Equal(t, uint64(1), snap.WebhookRejected["token"])

	// Snapshot maps are copies.
	snap.WebhookEvents[EventOther] = 9
	assert.Zero(t, m.Snapshot().WebhookEvents[EventOther])
}

func TestPrometheusRecorder_Handler(t *testing.T) {
	p := NewPrometheus()
	p.IncReminderCreated()
	p.IncWebhookEvent(EventPostback)

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := string(body)
	assert.True(t, strings.Contains(out, "replyreminder_reminders_created_total 1"), out)
	assert.True(t, strings.Contains(out, `replyreminder_webhook_events_total{kind="postback"} 1`), out)
}

package alertnats

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logsentry/pkg/models"
)

type fakeConn struct {
	msgs      []*nats.Msg
	connected bool
	failOn    string
	flushes   int
	closed    bool
}

func (f *fakeConn) PublishMsg(msg *nats.Msg) error {
	if f.failOn != "" && msg.Header.Get("x-alert-id") == f.failOn {
		return errors.New("slow consumer")
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeConn) FlushTimeout(time.Duration) error { f.flushes++; return nil }
func (f *fakeConn) IsConnected() bool                { return f.connected }
func (f *fakeConn) Close()                           { f.closed = true }

func TestWriteAlertsPublishesWithHeaders(t *testing.T) {
	conn := &fakeConn{connected: true}
	w := NewWriterWithConn(conn, "", 0)

	created := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	alert := &models.Alert{
		ID:        "auth-001:alice:1780315200",
		RuleID:    "auth-001",
		GroupKey:  "alice",
		Priority:  "high",
		CreatedAt: created,
		Events:    []models.Event{{Category: "auth"}, {Category: "auth"}},
	}
	require.NoError(t, w.WriteAlerts([]*models.Alert{alert}))

	require.Len(t, conn.msgs, 1)
	msg := conn.msgs[0]
	assert.Equal(t, DefaultSubject, msg.Subject)
	assert.Equal(t, "auth-001:alice:1780315200", msg.Header.Get("x-alert-id"))
	assert.Equal(t, "auth-001", msg.Header.Get("x-rule-id"))
	assert.Equal(t, "high", msg.Header.Get("x-priority"))
	assert.Equal(t, "2026-06-01T12:00:00Z", msg.Header.Get("x-timestamp"))
	assert.Equal(t, "2", msg.Header.Get("x-event-count"))
	assert.Equal(t, 1, conn.flushes)

	var decoded models.Alert
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, "alice", decoded.GroupKey)
}

func TestWriteAlertsReportsPartialFailure(t *testing.T) {
	conn := &fakeConn{connected: true, failOn: "b"}
	w := NewWriterWithConn(conn, "alerts.test", time.Second)

	err := w.WriteAlerts([]*models.Alert{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3")
	assert.Len(t, conn.msgs, 2)
}

func TestWriteAlertsRequiresConnection(t *testing.T) {
	w := NewWriterWithConn(&fakeConn{}, "alerts.test", time.Second)
	assert.Error(t, w.WriteAlerts([]*models.Alert{{ID: "a"}}))
	assert.NoError(t, w.WriteAlerts(nil))
}

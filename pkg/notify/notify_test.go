package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"taxidocs/pkg/logger"
)

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(logger.FromZap(zap.New(core)))

	require.NoError(t, n.Notify(context.Background(), Notification{DocumentID: 3, DriverID: 9, Message: "renew"}))

	entries := logs.FilterMessage("reminder").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(3), entries[0].ContextMap()["document_id"])
	assert.Equal(t, "renew", entries[0].ContextMap()["message"])
}

func TestKafkaRecord(t *testing.T) {
	n := Notification{
		ID:         "n-1",
		DocumentID: 12,
		DriverID:   77,
		DocType:    "insurance",
		ExpiryDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Key:        "reminder:12:2025-03-12",
	}
	rec, err := record("reminders", n)
	require.NoError(t, err)
	assert.Equal(t, "reminders", rec.Topic)
	assert.Equal(t, "77", string(rec.Key))
	require.Len(t, rec.Headers, 1)
	assert.Equal(t, "reminder:12:2025-03-12", string(rec.Headers[0].Value))

	var decoded Notification
	require.NoError(t, json.Unmarshal(rec.Value, &decoded))
	assert.Equal(t, n, decoded)
}

func TestMemoryMarker(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMarker()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	ok, err := m.Acquire(ctx, "k", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Acquire(ctx, "k", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, m.Held("k"))

	require.NoError(t, m.Release(ctx, "k"))
	ok, err = m.Acquire(ctx, "k", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Hour)
	assert.False(t, m.Held("k"))
	ok, err = m.Acquire(ctx, "k", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "expired marker can be taken again")
}

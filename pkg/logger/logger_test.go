package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerEmitsServiceAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, "keyflow", nil)

	log.Info(context.Background(), "order fulfilled", "order_id", "ord_1", "keys", 2)

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "keyflow", event["service"])
	assert.Equal(t, "order fulfilled", event["msg"])
	assert.Equal(t, "ord_1", event["order_id"])
	assert.Equal(t, float64(2), event["keys"])
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, "keyflow", nil)

	log.Debug(context.Background(), "noise")
	assert.Zero(t, buf.Len())

	log.Warn(context.Background(), "signal")
	assert.NotZero(t, buf.Len())
}

func TestLoggerTraceID(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, "keyflow", func(ctx context.Context) string {
		return "abc123"
	})

	log.Info(context.Background(), "hello")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "abc123", event["trace_id"])
}

func TestLoggerZeroTraceIDSkipped(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, "keyflow", func(ctx context.Context) string {
		return zeroTraceID
	})

	log.Info(context.Background(), "hello")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	_, ok := event["trace_id"]
	assert.False(t, ok)
}

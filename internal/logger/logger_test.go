package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithContextAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "debug", "json")

	ctx := ContextWithRequestID(context.Background(), "req-42")
	WithContext(ctx).Info("validated", "code", "ABC2345")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-42", line["request_id"])
	assert.Equal(t, "ABC2345", line["code"])
	assert.Equal(t, "req-42", RequestID(ctx))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "warn", "text")

	Get().Info("hidden")
	assert.Zero(t, buf.Len())

	WithFields("ticket_id", "t-1").Warn("shown")
	assert.Contains(t, buf.String(), "ticket_id=t-1")
}

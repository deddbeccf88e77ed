package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "debug", Format: "json", Output: &buf, ServiceName: "test"})

	ctx := l.WithContext(context.Background())
	ctx = SetRequestID(ctx, "req-1")
	ctx = WithField(ctx, FieldSlot, "visual")

	With(Fields{FieldDurationMs: int64(12)}).Warn(ctx, "slot failed: %s", "timeout")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line[FieldRequestID])
	assert.Equal(t, "visual", line[FieldSlot])
	assert.Equal(t, "test", line["service"])
	assert.Equal(t, "warning", line["level"])
	assert.Equal(t, "slot failed: timeout", line["message"])
	assert.EqualValues(t, 12, line[FieldDurationMs])
	assert.Equal(t, "req-1", GetRequestID(ctx))
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, GetDefault(), FromContext(context.Background()))
}

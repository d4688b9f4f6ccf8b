package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		format     string
		wantLevel  slog.Level
		wantFormat string
	}{
		{name: "defaults", wantLevel: slog.LevelInfo, wantFormat: "text"},
		{name: "debug json", level: "debug", format: "json", wantLevel: slog.LevelDebug, wantFormat: "json"},
		{name: "error", level: "error", wantLevel: slog.LevelError, wantFormat: "text"},
		{name: "unknown level keeps info", level: "verbose", wantLevel: slog.LevelInfo, wantFormat: "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", "")
			cfg := FromConfig(tt.level, tt.format)
			assert.Equal(t, tt.wantLevel, cfg.Level)
			assert.Equal(t, tt.wantFormat, cfg.Format)
		})
	}
}

func TestFromConfigProductionForcesJSON(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	assert.Equal(t, "json", FromConfig("info", "text").Format)
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf})

	ctx := WithCycleID(context.Background(), "cycle-1")
	ctx = WithAssignmentID(ctx, "assignment-9")
	log.WithContext(ctx).WithComponent("test").Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "cycle-1", line["cycle_id"])
	assert.Equal(t, "assignment-9", line["assignment_id"])
	assert.Equal(t, "test", line["component"])
	assert.Equal(t, InstanceID(), line["instance_id"])
}

func TestLogOperationReturnsError(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf})

	want := errors.New("boom")
	err := log.LogOperation(context.Background(), "poll_cycle", func() error { return want })
	require.ErrorIs(t, err, want)
	assert.Contains(t, buf.String(), "operation failed")
	assert.Contains(t, buf.String(), "boom")
}

func TestGenerateCycleIDIsUnique(t *testing.T) {
	assert.NotEqual(t, GenerateCycleID(), GenerateCycleID())
}

func TestLogErrorIncludesCorrelationIDs(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Output: &buf})

	ctx := WithAssignmentID(context.Background(), "a1")
	log.LogError(ctx, errors.New("send failed"), "failed to announce assignment", slog.String("channel_id", "42"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, "send failed", line["error"])
	assert.Equal(t, "a1", line["assignment_id"])
	assert.Equal(t, "42", line["channel_id"])
}

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func TestPrettyHandlerHandle(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		level slog.Level
		want  string
	}{
		{"debug", slog.LevelDebug, "DEBUG:"},
		{"info", slog.LevelInfo, "INFO:"},
		{"warn", slog.LevelWarn, "WARN:"},
		{"error", slog.LevelError, "ERROR:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			handler := NewPrettyHandler(&buf, PrettyHandlerOptions{
				SlogOpts: slog.HandlerOptions{Level: slog.LevelDebug},
			})

			record := slog.NewRecord(time.Now(), tt.level, "query finished", 0)
			record.AddAttrs(slog.Int("results", 3))

			require.NoError(t, handler.Handle(ctx, record))
			output := buf.String()
			assert.Contains(t, output, tt.want)
			assert.Contains(t, output, "query finished")
			assert.Contains(t, output, `"results":3`)
			assert.Regexp(t, `^\[\d{2}:\d{2}:\d{2}\.\d{3}\]`, output)
		})
	}
}

func TestPrettyHandler_NoAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, PrettyHandlerOptions{}))

	logger.Info("simple message")

	assert.Contains(t, buf.String(), "{}")
}

func TestPrettyHandler_Enabled(t *testing.T) {
	handler := NewPrettyHandler(&bytes.Buffer{}, PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{Level: slog.LevelWarn},
	})

	assert.False(t, handler.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, handler.Enabled(context.Background(), slog.LevelError))

	defaults := NewPrettyHandler(&bytes.Buffer{}, PrettyHandlerOptions{})
	assert.False(t, defaults.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, defaults.Enabled(context.Background(), slog.LevelInfo))
}

func TestPrettyHandler_WithAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, PrettyHandlerOptions{}))

	logger.With("component", "orchestrator").
		WithGroup("adapter").
		Warn("retriever failed", "source", "graph", "err", errors.New("connection refused"))

	output := buf.String()
	assert.Contains(t, output, `"component":"orchestrator"`)
	assert.Contains(t, output, `"adapter":{`)
	assert.Contains(t, output, `"source":"graph"`)
	assert.Contains(t, output, `"err":"connection refused"`)
	assert.Equal(t, 1, strings.Count(output, "\n"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"text", "json", "pretty", ""} {
		t.Run("format "+format, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := NewLogger(&buf, slog.LevelInfo, format)
			require.NoError(t, err)

			logger.Debug("hidden")
			logger.Info("shown")
			assert.NotContains(t, buf.String(), "hidden")
			assert.Contains(t, buf.String(), "shown")
		})
	}

	_, err := NewLogger(&bytes.Buffer{}, slog.LevelInfo, "xml")
	assert.Error(t, err)
}

package logging

import (
	"testing"

	"github.com/jarri2di/crate-downloader/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
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

func TestNew(t *testing.T) {
	l, err := New(Config{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	_, err = New(Config{Format: "xml"})
	assert.Error(t, err)

	_, err = New(Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestReporter_MapsLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	report := Reporter(zap.New(core))

	report(progress.Event{Message: "Identified new crate: foo 1.0.0", Level: progress.LevelInfo,
		Fields: map[string]any{"version": "1.0.0", "crate": "foo"}})
	report(progress.Event{Message: "Downloaded: foo-1.0.0.crate", Level: progress.LevelVerbose})
	report(progress.Event{Message: "Retry 1/3", Level: progress.LevelWarning})
	report(progress.Event{Message: "Error downloading foo 1.0.0", Level: progress.LevelError})
	report(progress.Event{Message: "Successfully downloaded 1 crates", Level: progress.LevelSuccess})

	entries := logs.AllUntimed()
	require.Len(t, entries, 5)

	wantLevels := []zapcore.Level{
		zapcore.InfoLevel,
		zapcore.DebugLevel,
		zapcore.WarnLevel,
		zapcore.ErrorLevel,
		zapcore.InfoLevel,
	}
	for i, want := range wantLevels {
		assert.Equal(t, want, entries[i].Level, entries[i].Message)
	}

	assert.Equal(t, map[string]any{"crate": "foo", "version": "1.0.0"}, entries[0].ContextMap())
}

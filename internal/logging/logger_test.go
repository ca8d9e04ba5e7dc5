package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewWithFormat_NormalizesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	NewWithFormat(&buf, "json", slog.LevelInfo).Info("boom", "error", errors.New("bad"))
	assert.Contains(t, buf.String(), `"err":"bad"`)

	buf.Reset()
	NewWithFormat(&buf, "text", slog.LevelWarn).Info("hidden")
	assert.Empty(t, buf.String())
}

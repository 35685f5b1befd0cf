package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONOutsideLocal(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Environment: "production", Level: "info"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug().Msg("hidden")
	logger.Info().Str("k", "v").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "mdclip", entry["service"])
	assert.Equal(t, "v", entry["k"])
}

func TestNewConsoleForLocal(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Environment: "local", Level: "debug"}, &buf)
	require.NoError(t, err)

	logger.Debug().Msg("console line")
	assert.Contains(t, buf.String(), "console line")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, _, err := New(Options{Level: "loud"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "MDCLIP_LOG_LEVEL")
}

func TestNewWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mdclip.log")
	logger, closer, err := New(Options{Environment: "production", Level: "info", File: path}, &bytes.Buffer{})
	require.NoError(t, err)

	logger.Info().Msg("to file")
	require.NoError(t, closer.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"message":"to file"`)
}

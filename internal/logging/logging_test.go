// ABOUTME: Tests for logger construction, level parsing, and the critical level.
// ABOUTME: Colour output is disabled so assertions see plain text.

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("INFO"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, LevelCritical, ParseLevel("critical"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "debug", Writer: &buf})
	require.NoError(t, err)
	defer closer.Close()

	logger.With("component", "test").Debug("hello", "n", 3)
	Critical(logger, "character missing", "character", "Ergo")

	out := buf.String()
	assert.Contains(t, out, "DBG hello component=test n=3")
	assert.Contains(t, out, "CRT character missing character=Ergo")
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Level: "warn", Writer: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "WRN shown")
}

func TestNew_JSONFormatCritical(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Format: "json", Writer: &buf})
	require.NoError(t, err)

	Critical(logger, "stop")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "CRITICAL", entry["level"])
	assert.Equal(t, "stop", entry["msg"])
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ergo.log")
	logger, closer, err := New(Options{File: path})
	require.NoError(t, err)

	logger.Info("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "INF to file")
}

func TestColorHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newColorHandler(&buf, slog.LevelInfo)).WithGroup("http")

	logger.Info("request", "path", "/health")

	assert.Contains(t, buf.String(), "http.path=/health")
}

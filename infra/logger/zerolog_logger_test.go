package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestZerologLoggerJSON(t *testing.T) {
	require.NoError(t, os.Unsetenv("APP_ENV"))
	var buf bytes.Buffer
	l := NewWithWriter("runner", &buf)
	l.Infof("event %s done", "ev-1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "runner", rec["component"])
	assert.Equal(t, "info", rec["level"])
	assert.Equal(t, "event ev-1 done", rec["message"])
}

func TestSetLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prev)

	require.NoError(t, os.Unsetenv("APP_ENV"))
	require.NoError(t, SetLevel("WARN"))
	var buf bytes.Buffer
	l := NewWithWriter("x", &buf)
	l.Infof("hidden")
	l.Warnf("shown")
	assert.False(t, strings.Contains(buf.String(), "hidden"))
	assert.True(t, strings.Contains(buf.String(), "shown"))

	assert.Error(t, SetLevel("loud"))
	assert.NoError(t, SetLevel(""))
}

func TestSetFile(t *testing.T) {
	require.NoError(t, os.Unsetenv("APP_ENV"))
	path := filepath.Join(t.TempDir(), "logs", "evcharge.log")
	require.NoError(t, SetFile(FileOptions{Path: path, MaxSizeMB: 1, MaxBackups: 2}))
	defer func() { _ = CloseFile() }()

	l := NewZerologLogger("fleet")
	l.Warnf("written to %s", "file")
	require.NoError(t, CloseFile())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	assert.Equal(t, "fleet", rec["component"])
	assert.Equal(t, "written to file", rec["message"])

	require.NoError(t, SetFile(FileOptions{}))
	assert.Nil(t, currentFile())
}

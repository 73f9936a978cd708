package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebug_SilentWhenNotVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	SetOutput(buf)
	defer SetOutput(os.Stderr)

	SetVerbose(false)
	Debug("hidden %d", 1)
	assert.Empty(t, buf.String())
}

func TestDebug_PrintsWhenVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	SetOutput(buf)
	defer SetOutput(os.Stderr)

	SetVerbose(true)
	defer SetVerbose(false)

	Debug("value %d", 42)
	assert.Contains(t, buf.String(), "[DEBUG] value 42")
}

func TestSectionAndLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	SetOutput(buf)
	defer SetOutput(os.Stderr)

	SetVerbose(true)
	defer SetVerbose(false)

	Section("Ingestion")
	Info("processed %s", "doc-1")
	Warn("retrying %s", "doc-2")

	out := buf.String()
	assert.Contains(t, out, "=== Ingestion ===")
	assert.Contains(t, out, "[INFO] processed doc-1")
	assert.Contains(t, out, "[WARN] retrying doc-2")
}

func TestIsVerbose(t *testing.T) {
	SetVerbose(true)
	assert.True(t, IsVerbose())
	SetVerbose(false)
	assert.False(t, IsVerbose())
}

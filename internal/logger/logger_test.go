package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, verboseMode bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(verboseMode)
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
		_ = SetFormat(FormatText)
	})
	return &buf
}

func TestSetVerbose(t *testing.T) {
	capture(t, false)
	assert.False(t, IsVerbose())

	SetVerbose(true)
	assert.True(t, IsVerbose())

	SetVerbose(false)
	assert.False(t, IsVerbose())
}

func TestDebug_WhenVerbose(t *testing.T) {
	buf := capture(t, true)

	Debug("test message %s", "arg")

	assert.Equal(t, "[DEBUG] test message arg\n", buf.String())
}

func TestDebugAndInfo_WhenNotVerbose(t *testing.T) {
	buf := capture(t, false)

	Debug("hidden")
	Info("hidden")
	Section("hidden")

	assert.Empty(t, buf.String())
}

func TestWarnAndError_AlwaysPrinted(t *testing.T) {
	buf := capture(t, false)

	Warn("embedding failed for %d chunks", 2)
	Error("store unavailable")

	assert.Equal(t, "[WARN] embedding failed for 2 chunks\n[ERROR] store unavailable\n", buf.String())
}

func TestSection_WhenVerbose(t *testing.T) {
	buf := capture(t, true)

	Section("Retrieval")

	assert.Equal(t, "\n=== Retrieval ===\n", buf.String())
}

func TestEnabled(t *testing.T) {
	capture(t, false)
	assert.False(t, Enabled(logrus.DebugLevel))
	assert.False(t, Enabled(logrus.InfoLevel))
	assert.True(t, Enabled(logrus.WarnLevel))
	assert.True(t, Enabled(logrus.ErrorLevel))

	SetVerbose(true)
	assert.True(t, Enabled(logrus.DebugLevel))
}

func TestWith_AppendsSortedFields(t *testing.T) {
	buf := capture(t, false)

	With(Fields{"chunk_id": "c1", "artifact_id": "a1"}).Warn("skipped")

	assert.Equal(t, "[WARN] skipped artifact_id=a1 chunk_id=c1\n", buf.String())
}

func TestSetFormat(t *testing.T) {
	buf := capture(t, false)

	require.NoError(t, SetFormat(FormatJSON))
	Warn("as json")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "as json", line["message"])
	assert.Equal(t, "warning", line["level"])

	assert.Error(t, SetFormat("xml"))
}

// Package logger provides leveled logging for cliniq on top of logrus.
// Debug and Info messages are only printed in verbose mode (the --verbose
// flag); Warn and Error are always printed. Output goes to stderr unless
// redirected with SetOutput.
package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Formats accepted by SetFormat.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// sectionKey marks an entry as a section header for the text formatter.
const sectionKey = "section"

var levelTags = map[logrus.Level]string{
	logrus.DebugLevel: "[DEBUG]",
	logrus.InfoLevel:  "[INFO]",
	logrus.WarnLevel:  "[WARN]",
	logrus.ErrorLevel: "[ERROR]",
}

var (
	mu      sync.RWMutex
	verbose bool
	base    = newBase()
)

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(textFormatter{})
	l.SetLevel(logrus.WarnLevel)
	return l
}

// SetVerbose enables or disables debug and info output.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	if v {
		base.SetLevel(logrus.DebugLevel)
	} else {
		base.SetLevel(logrus.WarnLevel)
	}
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// SetFormat switches between the plain text format and JSON lines.
func SetFormat(format string) error {
	switch format {
	case "", FormatText:
		base.SetFormatter(textFormatter{})
	case FormatJSON:
		base.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// Enabled reports whether messages at level l are printed.
func Enabled(l logrus.Level) bool {
	return base.IsLevelEnabled(l)
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	base.Debugf(format, args...)
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	base.Infof(format, args...)
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	base.Warnf(format, args...)
}

// Error prints an error message.
func Error(format string, args ...any) {
	base.Errorf(format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	base.WithField(sectionKey, name).Info(name)
}

// Fields attaches structured fields to the next message.
type Fields = logrus.Fields

// With returns an entry carrying fields, for call sites that log
// identifiers alongside the message.
func With(fields Fields) *logrus.Entry {
	return base.WithFields(fields)
}

// textFormatter renders "[LEVEL] message k=v" lines.
type textFormatter struct{}

func (textFormatter) Format(e *logrus.Entry) ([]byte, error) {
	if name, ok := e.Data[sectionKey]; ok {
		return []byte(fmt.Sprintf("\n=== %v ===\n", name)), nil
	}

	var b bytes.Buffer
	tag, ok := levelTags[e.Level]
	if !ok {
		tag = "[" + e.Level.String() + "]"
	}
	b.WriteString(tag)
	b.WriteByte(' ')
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// Package debuglog is the append-only debug log every component writes to.
//
// The file is truncated once when the process starts and appended to for the
// rest of its lifetime. Every line is prefixed with a local timestamp:
//
//	[2024-05-01 12:00:00] Starting ST-Link detection
//	[2024-05-01 12:00:03] 3456: Download in Progress:
package debuglog

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// FieldProbe tags entries with the probe they belong to. It is rendered as a
// prefix of the message rather than as a key=value pair.
const FieldProbe = "probe"

// TimestampFormat is the layout of the line prefix.
const TimestampFormat = "2006-01-02 15:04:05"

// Sink is a logger backed by the debug log file.
type Sink struct {
	*logrus.Logger
	file *os.File
}

// Open truncates path, writes the log header and returns a sink appending to
// it at the given level.
func Open(path string, level logrus.Level) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("debuglog: open %s: %w", path, err)
	}
	if err := WriteHeader(f, time.Now()); err != nil {
		f.Close()
		return nil, fmt.Errorf("debuglog: write header: %w", err)
	}
	return &Sink{Logger: New(f, level), file: f}, nil
}

// Close closes the log file. Entries logged afterwards are dropped by the
// file write failing, which logrus reports on stderr.
func (s *Sink) Close() error {
	return s.file.Close()
}

// WriteHeader writes the banner that opens every log file.
func WriteHeader(w io.Writer, now time.Time) error {
	_, err := fmt.Fprintf(w, "STM32 Programmer Debug Log - %s\n\n", now.Format(TimestampFormat))
	return err
}

// New returns a logger writing debug log lines to w.
func New(w io.Writer, level logrus.Level) *logrus.Logger {
	return &logrus.Logger{
		Out:       w,
		Formatter: LineFormatter{},
		Hooks:     make(logrus.LevelHooks),
		Level:     level,
	}
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	return New(io.Discard, logrus.PanicLevel)
}

// LineFormatter renders "[timestamp] probe: message key=value" lines.
type LineFormatter struct{}

func (LineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "[%s] ", e.Time.Format(TimestampFormat))
	if e.Level <= logrus.WarnLevel {
		b.WriteString(strings.ToUpper(e.Level.String()))
		b.WriteString(": ")
	}
	if p, ok := e.Data[FieldProbe]; ok {
		fmt.Fprintf(&b, "%v: ", p)
	}
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		if k != FieldProbe {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

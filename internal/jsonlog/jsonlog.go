package jsonlog

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Logger writes one record per line. In JSON format each record is an object
// with ts, level, msg and the caller's fields.
type Logger struct {
	base   *log.Logger
	format Format
}

func New(w io.Writer, format Format) *Logger {
	if w == nil {
		w = os.Stderr
	}
	if format != FormatText {
		format = FormatJSON
	}
	return &Logger{base: log.New(w, "", 0), format: format}
}

// Discard drops everything. Handy in tests.
func Discard() *Logger {
	return New(io.Discard, FormatJSON)
}

func (l *Logger) Info(msg string, fields map[string]any) {
	l.emit("info", msg, fields)
}

func (l *Logger) Warn(msg string, fields map[string]any) {
	l.emit("warn", msg, fields)
}

func (l *Logger) Error(msg string, fields map[string]any) {
	l.emit("error", msg, fields)
}

// Std exposes the underlying *log.Logger for APIs that want one.
func (l *Logger) Std() *log.Logger {
	if l == nil {
		return log.Default()
	}
	return l.base
}

func (l *Logger) emit(level, msg string, fields map[string]any) {
	if l == nil {
		return
	}
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	if l.format == FormatText {
		l.base.Print(textLine(ts, level, msg, fields))
		return
	}

	m := make(map[string]any, 3+len(fields))
	for k, v := range fields {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		m[k] = v
	}
	m["ts"] = ts
	m["level"] = level
	m["msg"] = msg
	b, err := json.Marshal(m)
	if err != nil {
		l.base.Printf(`{"level":"error","msg":"log_marshal_failed","error":%q}`, err.Error())
		return
	}
	l.base.Print(string(b))
}

func textLine(ts, level, msg string, fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %-5s %s", ts, strings.ToUpper(level), msg)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, fields[k])
	}
	return sb.String()
}

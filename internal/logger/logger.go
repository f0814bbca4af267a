// Package logger is the service's levelled logger. Console lines are
// coloured by level; the same entries are mirrored as JSON lines into a
// daily file under logs/.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "INFO"
	}
}

// ParseLevel maps a name to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	}
	return INFO
}

// Entry is the JSON shape written to the log file.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

// Logger writes levelled, categorised entries.
type Logger struct {
	mu      sync.Mutex
	console io.Writer
	file    io.WriteCloser
	min     Level
	colored bool
}

// Options configures New.
type Options struct {
	Dir      string // directory for the JSON mirror; empty disables it
	Prefix   string // file name prefix
	MinLevel Level
	Console  io.Writer // defaults to os.Stdout
}

// New creates a Logger. A file that cannot be opened is reported on the
// console and the logger continues without it.
func New(opts Options) *Logger {
	l := &Logger{console: opts.Console, min: opts.MinLevel, colored: true}
	if l.console == nil {
		l.console = os.Stdout
	}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err == nil {
			prefix := opts.Prefix
			if prefix == "" {
				prefix = "cruise"
			}
			name := filepath.Join(opts.Dir, fmt.Sprintf("%s-%s.log", prefix, time.Now().Format("2006-01-02")))
			f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err == nil {
				l.file = f
			} else {
				fmt.Fprintf(l.console, "logger: open %s: %v\n", name, err)
			}
		}
	}
	return l
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return &Logger{console: io.Discard, min: FATAL + 1}
}

// Close flushes and closes the JSON mirror.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *Logger) log(level Level, category, message string) {
	if l == nil || level < l.min {
		return
	}
	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	}
	e := Entry{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Level:     level.String(),
		Category:  strings.ToUpper(category),
		Message:   message,
		File:      file,
		Line:      line,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprint(l.console, l.terminalLine(e))
	if l.file != nil {
		if b, err := json.Marshal(e); err == nil {
			_, _ = l.file.Write(append(b, '\n'))
		}
	}
}

func (l *Logger) terminalLine(e Entry) string {
	var levelColor *color.Color
	switch e.Level {
	case "DEBUG":
		levelColor = color.New(color.FgCyan)
	case "WARN":
		levelColor = color.New(color.FgYellow)
	case "ERROR":
		levelColor = color.New(color.FgRed)
	case "FATAL":
		levelColor = color.New(color.FgRed, color.Bold)
	default:
		levelColor = color.New(color.FgGreen)
	}
	ts := color.New(color.FgBlue).Sprint(e.Timestamp[11:19])
	lvl := levelColor.Sprintf("%-5s", e.Level)
	cat := levelColor.Add(color.Bold).Sprintf("[%-8s]", e.Category)
	if e.File != "" && e.Line > 0 {
		src := color.New(color.FgMagenta).Sprintf(" (%s:%d)", e.File, e.Line)
		return fmt.Sprintf("%s %s %s %s%s\n", ts, lvl, cat, e.Message, src)
	}
	return fmt.Sprintf("%s %s %s %s\n", ts, lvl, cat, e.Message)
}

func (l *Logger) Debug(category, format string, args ...any) {
	l.log(DEBUG, category, fmt.Sprintf(format, args...))
}

func (l *Logger) Info(category, format string, args ...any) {
	l.log(INFO, category, fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(category, format string, args ...any) {
	l.log(WARN, category, fmt.Sprintf(format, args...))
}

func (l *Logger) Error(category, format string, args ...any) {
	l.log(ERROR, category, fmt.Sprintf(format, args...))
}

// Fatal logs and exits the process.
func (l *Logger) Fatal(category, format string, args ...any) {
	l.log(FATAL, category, fmt.Sprintf(format, args...))
	_ = l.Close()
	os.Exit(1)
}

// LogAPI records one served request.
func (l *Logger) LogAPI(method, path string, status int, d time.Duration) {
	l.log(INFO, "API", fmt.Sprintf("%s %s - %d (%s)", method, path, status, d.Round(time.Microsecond)))
}

// LogSecurity records authentication and throttling events.
func (l *Logger) LogSecurity(event, subject, detail string) {
	l.log(WARN, "SECURITY", fmt.Sprintf("[%s] %s - %s", event, subject, detail))
}

package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"maps"
	"os"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/term"
)

// Format selects how DefaultLogger renders a line
type Format int

const (
	// TextFormat is "[LEVEL] msg: err k=v ..." with sorted keys
	TextFormat Format = iota
	// JSONFormat writes one object per line for log shippers
	JSONFormat
)

// ParseFormat maps "text" or "json" to a Format
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return TextFormat, nil
	case "json":
		return JSONFormat, nil
	default:
		return TextFormat, fmt.Errorf("unknown log format %q", s)
	}
}

// Options configures NewLogger. Nil writers default to the process's
// stdout and stderr.
type Options struct {
	Stdout io.Writer // debug and info
	Stderr io.Writer // warn and above
	Format Format
	Level  Level
	// Colors enables ANSI colors for text lines
	Colors bool
}

// DefaultLogger writes text or JSON lines through the standard log package.
// Loggers derived with WithFields share their parent's level.
type DefaultLogger struct {
	stdoutLogger *log.Logger
	stderrLogger *log.Logger
	level        *atomic.Int32
	fields       Fields
	format       Format
	useColors    bool
}

func NewLogger(opts Options) *DefaultLogger {
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	flags := log.LstdFlags
	if opts.Format == JSONFormat {
		// the object carries its own timestamp
		flags = 0
	}
	level := new(atomic.Int32)
	level.Store(int32(opts.Level))
	return &DefaultLogger{
		stdoutLogger: log.New(stdout, "", flags),
		stderrLogger: log.New(stderr, "", flags),
		level:        level,
		fields:       make(Fields),
		format:       opts.Format,
		useColors:    opts.Colors && opts.Format == TextFormat,
	}
}

// NewDefaultLogger logs text to stdout and stderr, colored on a TTY
func NewDefaultLogger() *DefaultLogger {
	return NewLogger(Options{Level: InfoLevel, Colors: isTerminal(os.Stderr)})
}

// NewWriterLogger sends every level to w as uncolored text without
// timestamps. Used by tests and by the shell when it owns the terminal.
func NewWriterLogger(w io.Writer) *DefaultLogger {
	l := NewLogger(Options{Stdout: w, Stderr: w, Level: InfoLevel})
	l.stdoutLogger.SetFlags(0)
	l.stderrLogger.SetFlags(0)
	return l
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func (d *DefaultLogger) merged(fields []Fields) Fields {
	all := make(Fields, len(d.fields))
	maps.Copy(all, d.fields)
	for _, f := range fields {
		maps.Copy(all, f)
	}
	return all
}

func (d *DefaultLogger) formatText(level Level, err error, msg string, fields Fields) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", level, msg)
	if err != nil {
		fmt.Fprintf(&b, ": %v", err)
	}
	// sorted keys keep lines diffable
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}

	line := b.String()
	if d.useColors {
		switch level {
		case WarnLevel:
			line = ColorYellow + line + ColorReset
		case ErrorLevel:
			line = ColorRed + line + ColorReset
		case FatalLevel:
			line = ColorBold + ColorRed + line + ColorReset
		}
	}
	return line
}

func (d *DefaultLogger) formatJSON(level Level, err error, msg string, fields Fields) string {
	obj := make(map[string]any, len(fields)+4)
	for k, v := range fields {
		// durations and errors marshal as numbers and {} otherwise
		switch v := v.(type) {
		case fmt.Stringer:
			obj[k] = v.String()
		case error:
			obj[k] = v.Error()
		default:
			obj[k] = v
		}
	}
	obj["time"] = time.Now().Format(time.RFC3339Nano)
	obj["level"] = strings.ToLower(level.String())
	obj["msg"] = msg
	if err != nil {
		obj["error"] = err.Error()
	}

	data, mErr := json.Marshal(obj)
	if mErr != nil {
		return d.formatText(level, err, msg, Fields{"marshal_error": mErr.Error()})
	}
	return string(data)
}

func (d *DefaultLogger) log(level Level, err error, msg string, fields ...Fields) {
	if int32(level) < d.level.Load() {
		return
	}

	all := d.merged(fields)
	var line string
	if d.format == JSONFormat {
		line = d.formatJSON(level, err, msg, all)
	} else {
		line = d.formatText(level, err, msg, all)
	}

	switch level {
	case DebugLevel, InfoLevel:
		d.stdoutLogger.Println(line)
	case WarnLevel, ErrorLevel:
		d.stderrLogger.Println(line)
	case FatalLevel:
		d.stderrLogger.Println(line)
		os.Exit(1)
	}
}

func (d *DefaultLogger) Debug(msg string, fields ...Fields) {
	d.log(DebugLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Info(msg string, fields ...Fields) {
	d.log(InfoLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Warn(msg string, fields ...Fields) {
	d.log(WarnLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Error(err error, msg string, fields ...Fields) {
	d.log(ErrorLevel, err, msg, fields...)
}

func (d *DefaultLogger) Fatal(err error, msg string, fields ...Fields) {
	d.log(FatalLevel, err, msg, fields...)
}

func (d *DefaultLogger) WithFields(fields Fields) Logger {
	child := *d
	child.fields = d.merged([]Fields{fields})
	return &child
}

func (d *DefaultLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := fieldsFromContext(ctx); ok {
		return d.WithFields(fields)
	}
	return d
}

// SetLevel applies to d and every logger derived from it
func (d *DefaultLogger) SetLevel(level Level) {
	d.level.Store(int32(level))
}

// NoOpLogger discards everything. Tests and library users that bring their
// own logging install it with SetGlobalLogger(nil).
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, fields ...Fields)            {}
func (n *NoOpLogger) Info(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Warn(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Error(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) Fatal(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) WithFields(fields Fields) Logger               { return n }
func (n *NoOpLogger) WithContext(ctx context.Context) Logger        { return n }
func (n *NoOpLogger) SetLevel(level Level)                          {}

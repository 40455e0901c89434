package observability

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Level gates which messages a ConsoleLogger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ConsoleLogger writes one line per message in "time level msg key=value"
// form. It is safe for concurrent use.
type ConsoleLogger struct {
	mu    *sync.Mutex
	out   io.Writer
	level Level
	bound []Field
	nowFn func() time.Time
}

// NewConsoleLogger returns a logger writing to out at the given level.
func NewConsoleLogger(out io.Writer, level Level) *ConsoleLogger {
	return &ConsoleLogger{
		mu:    &sync.Mutex{},
		out:   out,
		level: level,
		nowFn: time.Now,
	}
}

func (l *ConsoleLogger) Debug(msg string, fields ...Field) { l.emit(LevelDebug, msg, fields) }
func (l *ConsoleLogger) Info(msg string, fields ...Field)  { l.emit(LevelInfo, msg, fields) }
func (l *ConsoleLogger) Warn(msg string, fields ...Field)  { l.emit(LevelWarn, msg, fields) }
func (l *ConsoleLogger) Error(msg string, fields ...Field) { l.emit(LevelError, msg, fields) }

// With returns a logger that prepends fields to every message.
func (l *ConsoleLogger) With(fields ...Field) Logger {
	bound := make([]Field, 0, len(l.bound)+len(fields))
	bound = append(bound, l.bound...)
	bound = append(bound, fields...)
	clone := *l
	clone.bound = bound
	return &clone
}

func (l *ConsoleLogger) emit(level Level, msg string, fields []Field) {
	if level < l.level {
		return
	}
	var b strings.Builder
	b.WriteString(l.nowFn().UTC().Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(level.String())
	b.WriteByte(' ')
	b.WriteString(msg)
	for _, f := range l.bound {
		fmt.Fprintf(&b, " %s=%v", f.Key(), f.Value())
	}
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key(), f.Value())
	}
	b.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.out, b.String())
}

package sink

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/loglib/loglib-server/internal/event"
)

// ANSI escape sequences used for console rendering.
const (
	ansiReset   = "\x1b[0m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
	ansiWhite   = "\x1b[37m"
)

// ConsoleOptions controls which columns the console sink renders.
type ConsoleOptions struct {
	ShowTimestamp bool
	ShowAddress   bool
	ShowAppName   bool
	Color         bool
}

// Console renders entries as human-readable lines: timestamp, bracketed level
// and application name, the message, and an indented exception tree with its
// cause chain.
type Console struct {
	mu   sync.Mutex
	w    io.Writer
	opts ConsoleOptions
}

// NewConsole creates a console sink writing to w.
func NewConsole(w io.Writer, opts ConsoleOptions) *Console {
	return &Console{w: w, opts: opts}
}

// IsTerminal reports whether f is an interactive terminal, for color
// autodetection.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Write renders one entry. It never fails for a well-formed entry; an
// underlying write error is returned for the caller to log.
func (c *Console) Write(e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	if e.Event != nil {
		c.formatEvent(&b, e)
	} else {
		c.formatRaw(&b, e)
	}
	b.WriteByte('\n')

	_, err := io.WriteString(c.w, b.String())
	return err
}

// Close is a no-op; the console does not own its writer.
func (c *Console) Close() error {
	return nil
}

func (c *Console) formatEvent(b *strings.Builder, e Entry) {
	ev := e.Event
	var parts []string

	if c.opts.ShowTimestamp {
		parts = append(parts, ev.Timestamp.Format("2006-01-02 15:04:05"))
	}

	parts = append(parts, c.colorize(levelColor(ev.Severity), "["+ev.Level+"]"))

	if c.opts.ShowAppName {
		parts = append(parts, c.colorize(ansiMagenta, "["+ev.ApplicationName+"]"))
	}
	if c.opts.ShowAddress {
		parts = append(parts, "["+e.Source+"]")
	}

	parts = append(parts, ev.Message)
	b.WriteString(strings.Join(parts, " "))

	if ev.Trace != "" {
		b.WriteString("\n  ")
		b.WriteString(ev.Trace)
	}
	if ev.Exception != nil {
		b.WriteByte('\n')
		c.formatException(b, ev.Exception, 0)
	}
}

func (c *Console) formatRaw(b *strings.Builder, e Entry) {
	var parts []string
	if c.opts.ShowTimestamp {
		parts = append(parts, e.Received.Format("2006-01-02 15:04:05"))
	}
	parts = append(parts, c.colorize(ansiWhite, "[RAW]"))
	if c.opts.ShowAddress {
		parts = append(parts, "["+e.Source+"]")
	}
	parts = append(parts, e.Raw)
	b.WriteString(strings.Join(parts, " "))
}

func (c *Console) formatException(b *strings.Builder, exc *event.ExceptionInfo, depth int) {
	indent := strings.Repeat("  ", depth)

	b.WriteString(indent)
	b.WriteString(c.colorize(ansiRed, exc.Name))
	if exc.Code != nil {
		fmt.Fprintf(b, " (%d)", *exc.Code)
	}
	b.WriteString(": ")
	b.WriteString(exc.Message)
	if exc.File != "" && exc.Line != nil {
		b.WriteString(" at ")
		b.WriteString(c.colorize(ansiCyan, fmt.Sprintf("%s:%d", exc.File, *exc.Line)))
	}

	if len(exc.Trace) > 0 {
		b.WriteByte('\n')
		b.WriteString(indent)
		b.WriteString("Stack trace:")
		for _, frame := range exc.Trace {
			b.WriteByte('\n')
			b.WriteString(indent)
			b.WriteString("  at ")
			b.WriteString(c.colorize(ansiBlue, frame.Call()))
			if frame.ArgCount > 0 {
				fmt.Fprintf(b, " (%d args)", frame.ArgCount)
			}
			b.WriteString(" in ")
			b.WriteString(c.colorize(ansiCyan, frame.Location()))
		}
	}

	if exc.Previous != nil {
		b.WriteByte('\n')
		b.WriteString(indent)
		b.WriteString("Caused by:\n")
		c.formatException(b, exc.Previous, depth+1)
	}
}

func (c *Console) colorize(color, s string) string {
	if !c.opts.Color {
		return s
	}
	return color + s + ansiReset
}

func levelColor(severity event.Level) string {
	switch severity {
	case event.LevelDebug:
		return ansiCyan
	case event.LevelVerbose:
		return ansiBlue
	case event.LevelInfo:
		return ansiGreen
	case event.LevelWarning:
		return ansiYellow
	case event.LevelError:
		return ansiRed
	case event.LevelCritical:
		return ansiMagenta
	default:
		return ansiWhite
	}
}

package sink

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loglib/loglib-server/internal/event"
)

func intPtr(n int) *int { return &n }

func testEntry(ev *event.LogEvent, raw string) Entry {
	return Entry{
		Event:    ev,
		Raw:      raw,
		Source:   "tcp/10.0.0.1:4321",
		Received: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestConsoleFormatsEvent(t *testing.T) {
	var buf strings.Builder
	c := NewConsole(&buf, ConsoleOptions{ShowTimestamp: true, ShowAppName: true})

	ev := &event.LogEvent{
		ApplicationName: "billing",
		Level:           "WRN",
		Severity:        event.LevelWarning,
		Timestamp:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Message:         "disk almost full",
	}
	require.NoError(t, c.Write(testEntry(ev, `{"message":"disk almost full"}`)))

	assert.Equal(t, "2025-06-01 12:00:00 [WRN] [billing] disk almost full\n", buf.String())
}

func TestConsoleFormatsExceptionTree(t *testing.T) {
	var buf strings.Builder
	c := NewConsole(&buf, ConsoleOptions{ShowAppName: true})

	ev := &event.LogEvent{
		ApplicationName: "api",
		Level:           "ERR",
		Severity:        event.LevelError,
		Message:         "request failed",
		Exception: &event.ExceptionInfo{
			Name:    "RuntimeException",
			Message: "outer",
			Code:    intPtr(500),
			File:    "/app/Handler.php",
			Line:    intPtr(42),
			Trace: []event.StackFrame{
				{File: "/app/Handler.php", Line: intPtr(40), Function: "handle", Class: "Handler", CallType: "->", ArgCount: 2},
			},
			Previous: &event.ExceptionInfo{
				Name:    "PDOException",
				Message: "inner",
			},
		},
	}
	require.NoError(t, c.Write(testEntry(ev, "")))

	out := buf.String()
	assert.Contains(t, out, "[ERR] [api] request failed\n")
	assert.Contains(t, out, "RuntimeException (500): outer at /app/Handler.php:42\n")
	assert.Contains(t, out, "Stack trace:\n  at Handler->handle() (2 args) in /app/Handler.php:40\n")
	assert.Contains(t, out, "Caused by:\n  PDOException: inner\n")
}

func TestConsoleFormatsRawFallback(t *testing.T) {
	var buf strings.Builder
	c := NewConsole(&buf, ConsoleOptions{ShowAddress: true})

	require.NoError(t, c.Write(testEntry(nil, "not json at all")))

	assert.Equal(t, "[RAW] [tcp/10.0.0.1:4321] not json at all\n", buf.String())
}

func TestConsoleColorizesLevel(t *testing.T) {
	var buf strings.Builder
	c := NewConsole(&buf, ConsoleOptions{Color: true})

	ev := &event.LogEvent{
		ApplicationName: "x",
		Level:           "ERR",
		Severity:        event.LevelError,
		Message:         "boom",
	}
	require.NoError(t, c.Write(testEntry(ev, "")))

	assert.Contains(t, buf.String(), "\x1b[31m[ERR]\x1b[0m")
}

package event

import (
	"strconv"
	"strings"
	"time"
)

// Level is a canonical LogLib severity used for routing. The wire values are
// the short codes emitted by the LogLib client library.
type Level string

const (
	LevelDebug    Level = "DBG"
	LevelVerbose  Level = "VRB"
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WRN"
	LevelError    Level = "ERR"
	LevelCritical Level = "CRT"
)

// UnknownApplication is the application name used when a sender omits it.
const UnknownApplication = "Unknown"

// NormalizeLevel maps a wire level string onto a canonical Level for routing.
// Both the short LogLib codes and their long names are accepted, case
// insensitively. Unrecognized values route as INFO; callers keep the original
// string for display.
func NormalizeLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DBG", "DEBUG":
		return LevelDebug
	case "VRB", "VERBOSE":
		return LevelVerbose
	case "INFO":
		return LevelInfo
	case "WRN", "WARNING", "WARN":
		return LevelWarning
	case "ERR", "ERROR":
		return LevelError
	case "CRT", "CRITICAL":
		return LevelCritical
	default:
		return LevelInfo
	}
}

// LogEvent is one decoded log message from a LogLib application.
type LogEvent struct {
	ApplicationName string
	Level           string // verbatim wire value, for display
	Severity        Level  // normalized, for routing
	Timestamp       time.Time
	Message         string
	Trace           string // optional free-text trace summary
	Exception       *ExceptionInfo
}

// ExceptionInfo describes one exception in a cause chain. Previous links the
// exception that triggered this one; the chain is built top-down from input
// and is therefore always acyclic.
type ExceptionInfo struct {
	Name     string
	Message  string
	Code     *int
	File     string
	Line     *int
	Trace    []StackFrame // outer call first
	Previous *ExceptionInfo
}

// StackFrame is one frame of an exception trace.
type StackFrame struct {
	File     string
	Line     *int
	Function string
	Class    string
	CallType string // "::" static, "->" instance, "" bare function
	ArgCount int    // number of call arguments; contents are never kept
}

// Location formats the frame's file and line for display.
func (f StackFrame) Location() string {
	switch {
	case f.File != "" && f.Line != nil:
		return f.File + ":" + strconv.Itoa(*f.Line)
	case f.File != "":
		return f.File
	default:
		return "unknown"
	}
}

// Call formats the frame's function call for display.
func (f StackFrame) Call() string {
	switch {
	case f.Class != "" && f.Function != "":
		return f.Class + f.CallType + f.Function + "()"
	case f.Function != "":
		return f.Function + "()"
	default:
		return "unknown"
	}
}


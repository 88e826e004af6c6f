package event

import (
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fastjson"
)

// previewLimit bounds the diagnostic preview kept for unparseable input.
const previewLimit = 100

// Result is the outcome of decoding one complete message. Either Event is set,
// or the input could not be decoded as a structured event and Raw carries the
// original text unchanged so it is never silently lost.
type Result struct {
	Event   *LogEvent
	Raw     string
	Preview string // truncated Raw, for diagnostic logging
}

// Fallback reports whether structured decoding failed.
func (r Result) Fallback() bool {
	return r.Event == nil
}

// Decoder parses complete message text into LogEvents. A zero-value Decoder is
// not usable; construct with NewDecoder. Safe for concurrent use.
type Decoder struct {
	pool fastjson.ParserPool
	now  func() time.Time
}

// NewDecoder creates a Decoder. now supplies default timestamps for events
// that omit one; nil means time.Now.
func NewDecoder(now func() time.Time) *Decoder {
	if now == nil {
		now = time.Now
	}
	return &Decoder{now: now}
}

// Decode parses text as a structured log event. Syntax failures and non-object
// payloads yield a raw fallback Result; Decode never returns an error to the
// pipeline. Malformed sub-structure (bad trace entries, non-numeric code or
// line values) degrades to absent fields instead of failing the whole decode.
func (d *Decoder) Decode(text string) Result {
	p := d.pool.Get()
	defer d.pool.Put(p)

	v, err := p.Parse(text)
	if err != nil || v.Type() != fastjson.TypeObject {
		return Result{Raw: text, Preview: preview(text)}
	}

	levelStr := string(v.GetStringBytes("level"))
	if levelStr == "" {
		levelStr = string(LevelInfo)
	}

	appName := string(v.GetStringBytes("application_name"))
	if appName == "" {
		appName = UnknownApplication
	}

	ev := &LogEvent{
		ApplicationName: appName,
		Level:           levelStr,
		Severity:        NormalizeLevel(levelStr),
		Timestamp:       d.timestamp(v.Get("timestamp")),
		Message:         string(v.GetStringBytes("message")),
		Trace:           string(v.GetStringBytes("trace")),
	}

	if exc := v.Get("exception"); exc != nil && exc.Type() == fastjson.TypeObject {
		ev.Exception = decodeException(exc)
	}

	return Result{Event: ev, Raw: text}
}

// timestamp accepts a numeric epoch, a numeric string, or an ISO-8601 string.
// Anything else, including an absent value, defaults to now.
func (d *Decoder) timestamp(v *fastjson.Value) time.Time {
	if v == nil {
		return d.now()
	}
	switch v.Type() {
	case fastjson.TypeNumber:
		if f, err := v.Float64(); err == nil {
			return epochToTime(f)
		}
	case fastjson.TypeString:
		s := strings.TrimSpace(string(v.GetStringBytes()))
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return epochToTime(f)
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return d.now()
}

func epochToTime(epoch float64) time.Time {
	sec := int64(epoch)
	nsec := int64((epoch - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// decodeException builds the cause chain top-down. Each recursion step
// allocates a fresh node from fresh input, so the chain cannot be cyclic.
func decodeException(v *fastjson.Value) *ExceptionInfo {
	info := &ExceptionInfo{
		Name:    string(v.GetStringBytes("name")),
		Message: string(v.GetStringBytes("message")),
		Code:    intField(v.Get("code")),
		File:    string(v.GetStringBytes("file")),
		Line:    intField(v.Get("line")),
	}

	for _, entry := range v.GetArray("trace") {
		if entry.Type() != fastjson.TypeObject {
			continue // tolerate junk entries, keep the rest
		}
		info.Trace = append(info.Trace, decodeFrame(entry))
	}

	if prev := v.Get("previous"); prev != nil && prev.Type() == fastjson.TypeObject {
		info.Previous = decodeException(prev)
	}

	return info
}

func decodeFrame(v *fastjson.Value) StackFrame {
	frame := StackFrame{
		File:     string(v.GetStringBytes("file")),
		Line:     intField(v.Get("line")),
		Function: string(v.GetStringBytes("function")),
		Class:    string(v.GetStringBytes("class")),
		CallType: string(v.GetStringBytes("call_type")),
	}
	if frame.Class != "" && frame.CallType == "" {
		frame.CallType = "::"
	}
	frame.ArgCount = len(v.GetArray("args"))
	return frame
}

// intField extracts an integer from a value that is already numeric or a
// numeric-looking string. Anything else yields an absent value, never an
// error for the surrounding decode.
func intField(v *fastjson.Value) *int {
	if v == nil {
		return nil
	}
	switch v.Type() {
	case fastjson.TypeNumber:
		if n, err := v.Int(); err == nil {
			return &n
		}
	case fastjson.TypeString:
		s := strings.TrimSpace(string(v.GetStringBytes()))
		if n, err := strconv.Atoi(s); err == nil {
			return &n
		}
	}
	return nil
}

func preview(text string) string {
	if len(text) <= previewLimit {
		return text
	}
	cut := previewLimit
	for cut > 0 && !isRuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

package event

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestDecoder() *Decoder {
	return NewDecoder(func() time.Time { return testNow })
}

func TestDecodeMinimalEvent(t *testing.T) {
	d := newTestDecoder()

	res := d.Decode(`{"message":"hi"}`)
	require.False(t, res.Fallback())

	ev := res.Event
	assert.Equal(t, "hi", ev.Message)
	assert.Equal(t, "INFO", ev.Level)
	assert.Equal(t, LevelInfo, ev.Severity)
	assert.Equal(t, UnknownApplication, ev.ApplicationName)
	assert.Equal(t, testNow, ev.Timestamp)
	assert.Nil(t, ev.Exception)
}

func TestDecodeNonJSONFallback(t *testing.T) {
	d := newTestDecoder()

	res := d.Decode("not json")
	require.True(t, res.Fallback())
	assert.Equal(t, "not json", res.Raw)
	assert.Equal(t, "not json", res.Preview)
}

func TestDecodeNonObjectFallback(t *testing.T) {
	d := newTestDecoder()

	for _, text := range []string{`[1,2,3]`, `"just a string"`, `42`, `true`} {
		res := d.Decode(text)
		assert.True(t, res.Fallback(), "expected fallback for %s", text)
		assert.Equal(t, text, res.Raw)
	}
}

func TestDecodePreviewTruncation(t *testing.T) {
	d := newTestDecoder()
	long := strings.Repeat("a", 500)

	res := d.Decode(long)
	require.True(t, res.Fallback())
	assert.Equal(t, long, res.Raw)
	assert.Equal(t, strings.Repeat("a", 100)+"...", res.Preview)
}

func TestDecodeLevels(t *testing.T) {
	d := newTestDecoder()

	tests := []struct {
		wire     string
		severity Level
	}{
		{"DBG", LevelDebug},
		{"VRB", LevelVerbose},
		{"INFO", LevelInfo},
		{"WRN", LevelWarning},
		{"ERR", LevelError},
		{"CRT", LevelCritical},
		{"warning", LevelWarning},
		{"CRITICAL", LevelCritical},
		{"bogus", LevelInfo}, // unrecognized routes as INFO
	}

	for _, tt := range tests {
		res := d.Decode(`{"message":"m","level":"` + tt.wire + `"}`)
		require.False(t, res.Fallback())
		assert.Equal(t, tt.wire, res.Event.Level, "wire level preserved verbatim")
		assert.Equal(t, tt.severity, res.Event.Severity)
	}
}

func TestDecodeTimestampForms(t *testing.T) {
	d := newTestDecoder()

	epoch := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		json     string
		expected time.Time
	}{
		{"numeric epoch", `{"timestamp":1710498600}`, epoch},
		{"numeric string epoch", `{"timestamp":"1710498600"}`, epoch},
		{"rfc3339", `{"timestamp":"2024-03-15T10:30:00Z"}`, epoch},
		{"space separated", `{"timestamp":"2024-03-15 10:30:00"}`, epoch},
		{"absent defaults to now", `{}`, testNow},
		{"garbage defaults to now", `{"timestamp":"next tuesday"}`, testNow},
		{"wrong type defaults to now", `{"timestamp":[1,2]}`, testNow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.Decode(tt.json)
			require.False(t, res.Fallback())
			assert.True(t, res.Event.Timestamp.Equal(tt.expected),
				"expected %v, got %v", tt.expected, res.Event.Timestamp)
		})
	}
}

func TestDecodeExceptionChain(t *testing.T) {
	d := newTestDecoder()

	res := d.Decode(`{
		"message": "request failed",
		"level": "ERR",
		"application_name": "billing",
		"exception": {
			"name": "RuntimeException",
			"message": "outer",
			"code": 500,
			"file": "/app/src/Handler.php",
			"line": 42,
			"trace": [
				{"file": "/app/src/Handler.php", "line": 40, "function": "handle", "class": "Handler", "call_type": "->", "args": [1, 2]},
				{"file": "/app/index.php", "line": 10, "function": "main"}
			],
			"previous": {
				"name": "PDOException",
				"message": "middle",
				"code": "2002",
				"previous": {
					"name": "SocketException",
					"message": "inner"
				}
			}
		}
	}`)
	require.False(t, res.Fallback())

	exc := res.Event.Exception
	require.NotNil(t, exc)
	assert.Equal(t, "RuntimeException", exc.Name)
	assert.Equal(t, "outer", exc.Message)
	require.NotNil(t, exc.Code)
	assert.Equal(t, 500, *exc.Code)
	require.NotNil(t, exc.Line)
	assert.Equal(t, 42, *exc.Line)

	require.Len(t, exc.Trace, 2)
	frame := exc.Trace[0]
	assert.Equal(t, "Handler", frame.Class)
	assert.Equal(t, "->", frame.CallType)
	assert.Equal(t, 2, frame.ArgCount)
	assert.Equal(t, "/app/src/Handler.php:40", frame.Location())
	assert.Equal(t, "Handler->handle()", frame.Call())
	assert.Equal(t, "main()", exc.Trace[1].Call())

	// Chain of exactly 3, each node independently correct.
	mid := exc.Previous
	require.NotNil(t, mid)
	assert.Equal(t, "PDOException", mid.Name)
	require.NotNil(t, mid.Code, "numeric string code accepted")
	assert.Equal(t, 2002, *mid.Code)

	inner := mid.Previous
	require.NotNil(t, inner)
	assert.Equal(t, "SocketException", inner.Name)
	assert.Nil(t, inner.Previous)
}

func TestDecodeTraceSkipsMalformedEntries(t *testing.T) {
	d := newTestDecoder()

	res := d.Decode(`{
		"message": "m",
		"exception": {
			"name": "E",
			"message": "x",
			"trace": [
				{"function": "good"},
				"not a frame",
				17,
				{"function": "also_good"}
			]
		}
	}`)
	require.False(t, res.Fallback())

	exc := res.Event.Exception
	require.NotNil(t, exc)
	require.Len(t, exc.Trace, 2)
	assert.Equal(t, "good", exc.Trace[0].Function)
	assert.Equal(t, "also_good", exc.Trace[1].Function)
}

func TestDecodeNumericFieldsDegradeToAbsent(t *testing.T) {
	d := newTestDecoder()

	res := d.Decode(`{
		"message": "m",
		"exception": {"name": "E", "message": "x", "code": "not a number", "line": {"nested": true}}
	}`)
	require.False(t, res.Fallback())

	exc := res.Event.Exception
	require.NotNil(t, exc)
	assert.Nil(t, exc.Code)
	assert.Nil(t, exc.Line)
}

package sink

import (
	"time"

	"github.com/loglib/loglib-server/internal/event"
)

// Entry is one delivery to a sink: a decoded event, or the raw text of a
// payload that could not be decoded as one. Raw always carries the original
// message text so no input is ever lost.
type Entry struct {
	Event    *event.LogEvent // nil for a raw fallback
	Raw      string
	Source   string // sender identity, network/host:port
	Received time.Time
}

// Sink receives decoded events and raw fallbacks for presentation or
// persistence. Implementations must tolerate any well-formed Entry and must
// serialize their own writes.
type Sink interface {
	Write(e Entry) error
	Close() error
}

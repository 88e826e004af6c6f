package protocol

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Marker is the continuation marker byte (ASCII Record Separator). A payload
// ending with the marker announces that more fragments follow; a payload
// starting with it is a continuation of an earlier fragment.
const Marker byte = 0x1E

// ErrInvalidEncoding is returned when a payload is not valid UTF-8.
var ErrInvalidEncoding = errors.New("payload is not valid UTF-8")

// FrameKind identifies how a payload participates in message reassembly.
type FrameKind uint8

const (
	// FrameComplete is an ordinary self-contained message.
	FrameComplete FrameKind = iota
	// FrameStart begins a fragmented message; more fragments follow.
	FrameStart
	// FrameContinuation continues a fragmented message. More reports
	// whether another fragment follows after this one.
	FrameContinuation
)

// String returns a human-readable name for the frame kind.
func (k FrameKind) String() string {
	switch k {
	case FrameComplete:
		return "complete"
	case FrameStart:
		return "start"
	case FrameContinuation:
		return "continuation"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// Frame is a decoded payload with its marker bytes stripped.
type Frame struct {
	Kind FrameKind
	Text string
	More bool // continuation only: true if another fragment follows
}

// Decode classifies a raw payload and strips its marker bytes.
//
// A leading marker makes the payload a continuation; if the remaining text
// also ends with the marker, that trailing marker is stripped and More is
// true. A trailing marker alone makes the payload a fragment start. Anything
// else is a complete message. Payloads that are not valid UTF-8 are rejected
// with ErrInvalidEncoding and must not be forwarded to the event decoder.
func Decode(payload []byte) (Frame, error) {
	if !utf8.Valid(payload) {
		return Frame{}, ErrInvalidEncoding
	}

	n := len(payload)
	if n == 0 {
		return Frame{Kind: FrameComplete}, nil
	}

	switch {
	case payload[0] == Marker:
		text := payload[1:]
		more := false
		if len(text) > 0 && text[len(text)-1] == Marker {
			text = text[:len(text)-1]
			more = true
		}
		return Frame{Kind: FrameContinuation, Text: string(text), More: more}, nil

	case payload[n-1] == Marker:
		return Frame{Kind: FrameStart, Text: string(payload[:n-1])}, nil

	default:
		return Frame{Kind: FrameComplete, Text: string(payload)}, nil
	}
}

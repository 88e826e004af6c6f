// Package protocol implements the LogLib wire framing: classification of a
// raw transport payload as a complete message, the start of a fragmented
// message, or a continuation fragment, based on the 0x1E record separator
// marker convention used by LogLib senders.
package protocol

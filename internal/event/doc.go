// Package event defines the decoded LogLib event model (log event, exception
// cause chain, stack frames) and the decoder that parses reassembled message
// text into it. Input that fails structured parsing is preserved as a raw
// fallback rather than dropped.
package event

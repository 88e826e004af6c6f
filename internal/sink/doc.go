// Package sink delivers decoded events and raw fallbacks to their
// destinations: a colorized console, a daily-rotated JSONL file, or several
// destinations at once. The async wrapper decouples the ingestion pipeline
// from slow destinations with a bounded queue.
package sink

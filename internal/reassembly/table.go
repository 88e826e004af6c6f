package reassembly

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Identity is the logical sender key used to track reassembly state: the
// remote endpoint of a stream connection, or the source address of a datagram.
type Identity struct {
	Network string // "tcp" or "udp"
	Addr    string // remote address, host:port
}

// String returns the identity in "network/addr" form.
func (id Identity) String() string {
	return id.Network + "/" + id.Addr
}

// pendingMessage accumulates fragments for one identity.
type pendingMessage struct {
	fragments []string
	updated   time.Time
}

// Table holds the pending message for each sender identity. All mutating
// operations take one coarse lock; contention is low because fragment traffic
// is rare relative to complete messages. Safe for concurrent use.
type Table struct {
	mu      sync.Mutex
	pending map[Identity]*pendingMessage
	logger  *slog.Logger
	now     func() time.Time
}

// NewTable creates an empty Table. now supplies fragment timestamps for the
// expiry sweep; nil means time.Now.
func NewTable(logger *slog.Logger, now func() time.Time) *Table {
	if now == nil {
		now = time.Now
	}
	return &Table{
		pending: make(map[Identity]*pendingMessage),
		logger:  logger,
		now:     now,
	}
}

// Start begins a new pending message for id. A prior unfinished message for
// the same identity is discarded with a warning; an identity never holds two
// pending messages. discarded reports whether that happened.
func (t *Table) Start(id Identity, text string) (discarded bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, exists := t.pending[id]; exists {
		t.logger.Warn("Discarding unfinished message, new fragment sequence started",
			slog.String("source", id.String()),
			slog.Int("discarded_fragments", len(old.fragments)),
		)
		discarded = true
	}

	t.pending[id] = &pendingMessage{
		fragments: []string{text},
		updated:   t.now(),
	}
	return discarded
}

// Continue appends a continuation fragment for id. If more is false the
// message is complete: the joined text is returned with done=true and the
// pending state removed. A continuation with no matching start is dropped
// with a warning and ok=false, since the sequence cannot be recovered.
func (t *Table) Continue(id Identity, text string, more bool) (joined string, done, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	msg, exists := t.pending[id]
	if !exists {
		t.logger.Warn("Continuation fragment without a start, dropping",
			slog.String("source", id.String()),
			slog.Int("fragment_size", len(text)),
		)
		return "", false, false
	}

	msg.fragments = append(msg.fragments, text)
	msg.updated = t.now()

	if more {
		return "", false, true
	}

	delete(t.pending, id)
	return strings.Join(msg.fragments, ""), true, true
}

// SweepExpired removes every pending message whose last update is older than
// maxAge and returns the number removed. Younger messages are untouched.
func (t *Table) SweepExpired(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-maxAge)
	removed := 0
	for id, msg := range t.pending {
		if msg.updated.Before(cutoff) {
			t.logger.Warn("Expiring stale partial message",
				slog.String("source", id.String()),
				slog.Int("fragments", len(msg.fragments)),
				slog.Duration("max_age", maxAge),
			)
			delete(t.pending, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of identities with a pending message.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Run sweeps expired pending messages every interval until ctx is cancelled.
// The table lock is held only for the duration of each sweep, never across
// ticks, so normal dispatch is not blocked by the sweep schedule.
func (t *Table) Run(ctx context.Context, interval, maxAge time.Duration, onExpired func(int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	t.logger.Info("Reassembly sweep started",
		slog.Duration("interval", interval),
		slog.Duration("max_age", maxAge),
	)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Reassembly sweep stopping")
			return
		case <-ticker.C:
			if n := t.SweepExpired(maxAge); n > 0 && onExpired != nil {
				onExpired(n)
			}
		}
	}
}

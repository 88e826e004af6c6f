package reassembly

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tcpID(addr string) Identity {
	return Identity{Network: "tcp", Addr: addr}
}

func TestStartContinueJoin(t *testing.T) {
	table := NewTable(discardLogger(), nil)
	id := tcpID("10.0.0.1:1234")

	table.Start(id, "hello, ")
	joined, done, ok := table.Continue(id, "world", false)

	require.True(t, ok)
	require.True(t, done)
	assert.Equal(t, "hello, world", joined)
	assert.Equal(t, 0, table.Len(), "completed message removed from table")
}

func TestThreeFragmentJoinPreservesOrder(t *testing.T) {
	table := NewTable(discardLogger(), nil)
	id := tcpID("10.0.0.1:1234")

	table.Start(id, "aaa")

	joined, done, ok := table.Continue(id, "bbb", true)
	require.True(t, ok)
	assert.False(t, done)
	assert.Empty(t, joined)

	joined, done, _ = table.Continue(id, "ccc", false)
	require.True(t, done)
	assert.Equal(t, "aaabbbccc", joined, "exact concatenation, no separators")
}

func TestContinuationWithoutStartDropped(t *testing.T) {
	table := NewTable(discardLogger(), nil)

	joined, done, ok := table.Continue(tcpID("10.0.0.1:1234"), "orphan", false)

	assert.False(t, ok, "orphan continuation must be rejected")
	assert.False(t, done)
	assert.Empty(t, joined)
	assert.Equal(t, 0, table.Len())
}

func TestSecondStartDiscardsFirst(t *testing.T) {
	table := NewTable(discardLogger(), nil)
	id := tcpID("10.0.0.1:1234")

	assert.False(t, table.Start(id, "first-"))
	assert.True(t, table.Start(id, "second-"), "overwrite of unfinished message reported")
	assert.Equal(t, 1, table.Len(), "at most one pending message per identity")

	joined, done, _ := table.Continue(id, "tail", false)
	require.True(t, done)
	assert.Equal(t, "second-tail", joined)
}

func TestSweepExpiredRemovesOnlyStale(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	table := NewTable(discardLogger(), clock)

	stale := tcpID("10.0.0.1:1111")
	fresh := tcpID("10.0.0.2:2222")

	table.Start(stale, "old")
	now = now.Add(90 * time.Second)
	table.Start(fresh, "new")

	removed := table.SweepExpired(60 * time.Second)

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, table.Len())

	// The fresh sequence still completes; the stale one is gone.
	joined, done, _ := table.Continue(fresh, "!", false)
	require.True(t, done)
	assert.Equal(t, "new!", joined)

	_, _, ok := table.Continue(stale, "!", false)
	assert.False(t, ok)
}

func TestConcurrentIdentitiesDoNotCrossContaminate(t *testing.T) {
	table := NewTable(discardLogger(), nil)

	const senders = 16
	var wg sync.WaitGroup
	results := make([]string, senders)

	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := tcpID(fmt.Sprintf("10.0.0.%d:5000", i))
			table.Start(id, fmt.Sprintf("sender-%d|", i))
			for j := 0; j < 10; j++ {
				_, done, _ := table.Continue(id, fmt.Sprintf("part-%d|", j), true)
				if done {
					t.Error("unexpected completion mid-sequence")
					return
				}
			}
			joined, done, _ := table.Continue(id, "end", false)
			if !done {
				t.Errorf("sender %d: sequence did not complete", i)
				return
			}
			results[i] = joined
		}(i)
	}
	wg.Wait()

	for i := 0; i < senders; i++ {
		expected := fmt.Sprintf("sender-%d|", i)
		for j := 0; j < 10; j++ {
			expected += fmt.Sprintf("part-%d|", j)
		}
		expected += "end"
		assert.Equal(t, expected, results[i], "sender %d output corrupted", i)
	}
	assert.Equal(t, 0, table.Len())
}

package discovery_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amoradev/amora/internal/discovery"
	"github.com/amoradev/amora/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func profiles(ids ...string) []model.Profile {
	out := make([]model.Profile, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Profile{ID: id, DisplayName: "user " + id})
	}
	return out
}

// countingFetch returns batches of fresh IDs and records every call
// with the exclusions it received.
type countingFetch struct {
	mu    sync.Mutex
	calls int
	seen  [][]string
	batch []model.Profile
	err   error
}

func (f *countingFetch) fn(ctx context.Context, excludeIDs []string, limit int) ([]model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.seen = append(f.seen, excludeIDs)
	return f.batch, f.err
}

func (f *countingFetch) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestQueueAdvanceOrder(t *testing.T) {
	q := discovery.NewQueue(nil, nil, discovery.Options{LowWater: 1}, testLogger())
	q.Append(profiles("a", "b", "c"))

	head, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "a", head.ID)

	consumed, ok := q.Advance(model.ActionLike)
	require.True(t, ok)
	assert.Equal(t, "a", consumed.ID)

	head, ok = q.Current()
	require.True(t, ok)
	assert.Equal(t, "b", head.ID)
	assert.Equal(t, 2, q.Len())
}

func TestQueueNeverRepeatsAnIdentity(t *testing.T) {
	q := discovery.NewQueue(nil, nil, discovery.Options{LowWater: 1}, testLogger())

	added := q.Append(profiles("a", "b", "c"))
	assert.Equal(t, 3, added)

	// the same identities arrive again (e.g. a re-fetch raced the
	// exclusion snapshot); none may be queued twice
	added = q.Append(profiles("a", "b", "c", "d"))
	assert.Equal(t, 1, added)
	assert.Equal(t, 4, q.Len())

	// consumed identities stay excluded too
	q.Advance(model.ActionDislike)
	added = q.Append(profiles("a"))
	assert.Equal(t, 0, added)
}

func TestQueueExclusionsCoverQueuedAndConsumed(t *testing.T) {
	q := discovery.NewQueue(nil, nil, discovery.Options{LowWater: 1}, testLogger())
	q.Append(profiles("a", "b", "c"))
	q.Advance(model.ActionLike)
	q.MarkSeen("x")

	assert.ElementsMatch(t, []string{"a", "b", "c", "x"}, q.Exclusions())
}

func TestQueueEmptyStateIsNotAnError(t *testing.T) {
	q := discovery.NewQueue(nil, nil, discovery.Options{LowWater: 1}, testLogger())

	_, ok := q.Current()
	assert.False(t, ok)

	_, ok = q.Advance(model.ActionLike)
	assert.False(t, ok)
}

func TestQueueUndoRestoresHeadButKeepsExclusion(t *testing.T) {
	q := discovery.NewQueue(nil, nil, discovery.Options{LowWater: 1, HistoryDepth: 3}, testLogger())
	q.Append(profiles("a", "b"))

	q.Advance(model.ActionDislike)
	head, _ := q.Current()
	require.Equal(t, "b", head.ID)

	restored, action, ok := q.Undo()
	require.True(t, ok)
	assert.Equal(t, "a", restored.ID)
	assert.Equal(t, model.ActionDislike, action)

	head, _ = q.Current()
	assert.Equal(t, "a", head.ID)

	// undone identities are still excluded from replenishment
	assert.Contains(t, q.Exclusions(), "a")
}

func TestQueueUndoHistoryIsBounded(t *testing.T) {
	q := discovery.NewQueue(nil, nil, discovery.Options{LowWater: 1, HistoryDepth: 2}, testLogger())
	q.Append(profiles("a", "b", "c", "d", "e"))

	q.Advance(model.ActionLike) // a
	q.Advance(model.ActionLike) // b
	q.Advance(model.ActionLike) // c

	// only the last two survive the bound
	_, _, ok := q.Undo() // c
	require.True(t, ok)
	_, _, ok = q.Undo() // b
	require.True(t, ok)
	_, _, ok = q.Undo()
	assert.False(t, ok)
}

func TestQueueReplenishAppendsAndExcludes(t *testing.T) {
	fetch := &countingFetch{batch: profiles("d", "e")}
	q := discovery.NewQueue(fetch.fn, nil, discovery.Options{LowWater: 1, BatchSize: 10}, testLogger())
	q.Append(profiles("a", "b", "c"))

	require.NoError(t, q.Replenish(context.Background()))
	assert.Equal(t, 5, q.Len())
	assert.ElementsMatch(t, []string{"a", "b", "c"}, fetch.seen[0])
}

func TestQueueReplenishFailureLeavesQueueUnchanged(t *testing.T) {
	fetch := &countingFetch{err: fmt.Errorf("gateway down")}
	q := discovery.NewQueue(fetch.fn, nil, discovery.Options{LowWater: 1}, testLogger())
	q.Append(profiles("a"))

	err := q.Replenish(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, q.Len())

	// the flight flag was cleared; a retry goes through
	fetch.mu.Lock()
	fetch.err = nil
	fetch.batch = profiles("b")
	fetch.mu.Unlock()
	require.NoError(t, q.Replenish(context.Background()))
	assert.Equal(t, 2, q.Len())
}

func TestQueueReplenishIsSingleFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls int
	var mu sync.Mutex

	fetch := func(ctx context.Context, excludeIDs []string, limit int) ([]model.Profile, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			close(started)
			<-release
		}
		return profiles("z"), nil
	}

	q := discovery.NewQueue(fetch, nil, discovery.Options{LowWater: 1}, testLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Replenish(context.Background())
	}()
	<-started

	// overlapping calls are no-ops while the first is in flight
	require.NoError(t, q.Replenish(context.Background()))
	require.NoError(t, q.Replenish(context.Background()))

	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestQueueLowWaterTriggersBackgroundReplenish(t *testing.T) {
	fetched := make(chan struct{}, 1)
	fetch := func(ctx context.Context, excludeIDs []string, limit int) ([]model.Profile, error) {
		select {
		case fetched <- struct{}{}:
		default:
		}
		return profiles("f1", "f2"), nil
	}

	q := discovery.NewQueue(fetch, nil, discovery.Options{LowWater: 3, BatchSize: 10}, testLogger())
	q.Append(profiles("a", "b", "c", "d"))

	// 4 -> 3 queued: still at the mark, no fetch
	q.Advance(model.ActionLike)
	select {
	case <-fetched:
		t.Fatal("replenish fired above the low-water mark")
	case <-time.After(50 * time.Millisecond):
	}

	// 3 -> 2 queued: below the mark, fetch fires in the background
	q.Advance(model.ActionLike)
	select {
	case <-fetched:
	case <-time.After(2 * time.Second):
		t.Fatal("replenish did not fire below the low-water mark")
	}
}

func TestQueuePrefetchWarmsUpcomingImages(t *testing.T) {
	var mu sync.Mutex
	var got []string
	prefetch := func(ctx context.Context, urls []string) {
		mu.Lock()
		got = append(got, urls...)
		mu.Unlock()
	}

	q := discovery.NewQueue(nil, prefetch, discovery.Options{LowWater: 1, PrefetchDepth: 2}, testLogger())
	q.Append([]model.Profile{
		{ID: "a", AvatarURL: "https://cdn/a.jpg"},
		{ID: "b", AvatarURL: "https://cdn/b.jpg", PhotoURLs: []string{"https://cdn/b2.jpg"}},
		{ID: "c", AvatarURL: "https://cdn/c.jpg"},
		{ID: "d", AvatarURL: "https://cdn/d.jpg"},
	})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, u := range got {
			if u == "https://cdn/c.jpg" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	// the entry past the prefetch depth is not warmed yet
	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, got, "https://cdn/d.jpg")
}

// Package discovery holds the in-memory candidate queue driving the
// swipe screen: ordered profiles with one current head, a seen-set
// guaranteeing no identity is ever presented twice in a session, a
// bounded undo history, and low-water-mark replenishment from the
// gateway.
package discovery

import (
	"context"
	"log/slog"
	"sync"

	"github.com/amoradev/amora/internal/model"
)

// FetchFunc asks the gateway for candidates excluding the given
// identities. The queue owns exclusion-set computation; the func owns
// filter predicates and transport.
type FetchFunc func(ctx context.Context, excludeIDs []string, limit int) ([]model.Profile, error)

// PrefetchFunc eagerly warms image URLs so rendering is non-blocking.
// Failures are swallowed by the implementation; the queue never hears
// about them.
type PrefetchFunc func(ctx context.Context, urls []string)

type Options struct {
	LowWater      int // auto-replenish below this length
	BatchSize     int // candidates requested per replenish
	HistoryDepth  int // undo entries kept; small by contract
	PrefetchDepth int // queued entries past the head to warm
}

type historyEntry struct {
	profile model.Profile
	action  model.Action
}

// Queue is viewer-session scoped. Safe for use from the request
// goroutine plus the background replenish it spawns.
type Queue struct {
	fetch    FetchFunc
	prefetch PrefetchFunc
	opts     Options
	log      *slog.Logger

	mu       sync.Mutex
	items    []model.Profile
	seen     map[string]struct{}
	history  []historyEntry
	inflight bool
}

func NewQueue(fetch FetchFunc, prefetch PrefetchFunc, opts Options, log *slog.Logger) *Queue {
	if opts.LowWater <= 0 {
		opts.LowWater = 3
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.HistoryDepth <= 0 {
		opts.HistoryDepth = 3
	}
	if opts.PrefetchDepth <= 0 {
		opts.PrefetchDepth = 2
	}
	return &Queue{
		fetch:    fetch,
		prefetch: prefetch,
		opts:     opts,
		log:      log,
		seen:     make(map[string]struct{}),
	}
}

// Current returns the head candidate. The false return is the empty
// state, a first-class UI state rather than an error.
func (q *Queue) Current() (model.Profile, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return model.Profile{}, false
	}
	return q.items[0], true
}

// Len reports the number of queued candidates.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Advance removes the head, records (head, action) in the bounded undo
// history, and promotes the next entry. When the remaining length drops
// below the low-water mark a background replenish fires; consumption
// never blocks on it.
func (q *Queue) Advance(action model.Action) (model.Profile, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return model.Profile{}, false
	}
	head := q.items[0]
	q.items = q.items[1:]

	q.history = append(q.history, historyEntry{profile: head, action: action})
	if len(q.history) > q.opts.HistoryDepth {
		q.history = q.history[len(q.history)-q.opts.HistoryDepth:]
	}

	low := len(q.items) < q.opts.LowWater
	q.startPrefetchLocked()
	q.mu.Unlock()

	if low {
		go func() {
			if err := q.Replenish(context.Background()); err != nil {
				q.log.Warn("background replenish failed", "err", err)
			}
		}()
	}
	return head, true
}

// Undo restores the last consumed candidate to the head and returns it
// with the action that consumed it. Client-side only: the durable write
// is not reversed and the identity stays excluded from replenishment.
func (q *Queue) Undo() (model.Profile, model.Action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.history) == 0 {
		return model.Profile{}, "", false
	}
	last := q.history[len(q.history)-1]
	q.history = q.history[:len(q.history)-1]
	q.items = append([]model.Profile{last.profile}, q.items...)
	return last.profile, last.action, true
}

// Append adds profiles not already seen this session, preserving
// arrival order. Returns how many were accepted.
func (q *Queue) Append(profiles []model.Profile) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.appendLocked(profiles)
}

func (q *Queue) appendLocked(profiles []model.Profile) int {
	added := 0
	for _, p := range profiles {
		if _, dup := q.seen[p.ID]; dup {
			continue
		}
		q.seen[p.ID] = struct{}{}
		q.items = append(q.items, p)
		added++
	}
	if added > 0 {
		q.startPrefetchLocked()
	}
	return added
}

// Exclusions snapshots every identity already seen this session:
// queued, current, consumed, and undone candidates alike.
func (q *Queue) Exclusions() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.exclusionsLocked()
}

func (q *Queue) exclusionsLocked() []string {
	ids := make([]string, 0, len(q.seen))
	for id := range q.seen {
		ids = append(ids, id)
	}
	return ids
}

// Replenish requests one batch of candidates from the gateway. Single
// flight: a call while one is in flight is a no-op. A fetch failure
// leaves the queue unchanged; the caller retries by re-entering the
// empty state.
func (q *Queue) Replenish(ctx context.Context) error {
	q.mu.Lock()
	if q.inflight {
		q.mu.Unlock()
		return nil
	}
	q.inflight = true
	exclude := q.exclusionsLocked()
	q.mu.Unlock()

	profiles, err := q.fetch(ctx, exclude, q.opts.BatchSize)

	q.mu.Lock()
	q.inflight = false
	if err != nil {
		q.mu.Unlock()
		q.log.Warn("replenish failed", "err", err)
		return err
	}
	added := q.appendLocked(profiles)
	q.mu.Unlock()

	q.log.Debug("replenished queue", "fetched", len(profiles), "added", added)
	return nil
}

// MarkSeen excludes an identity without queueing it, e.g. a profile
// acted on from an inbox rather than the swipe screen.
func (q *Queue) MarkSeen(id string) {
	q.mu.Lock()
	q.seen[id] = struct{}{}
	q.mu.Unlock()
}

// startPrefetchLocked warms images for the head and the next few
// entries. Fire and forget; errors never surface here.
func (q *Queue) startPrefetchLocked() {
	if q.prefetch == nil {
		return
	}
	n := q.opts.PrefetchDepth + 1
	if n > len(q.items) {
		n = len(q.items)
	}
	var urls []string
	for _, p := range q.items[:n] {
		if p.AvatarURL != "" {
			urls = append(urls, p.AvatarURL)
		}
		urls = append(urls, p.PhotoURLs...)
	}
	if len(urls) == 0 {
		return
	}
	go q.prefetch(context.Background(), urls)
}

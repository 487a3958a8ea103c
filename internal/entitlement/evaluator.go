package entitlement

import (
	"context"
	"sync"
	"time"

	"github.com/amoradev/amora/internal/cache"
	"github.com/amoradev/amora/internal/model"
)

// usageTTL keeps day-keyed counters around long enough to survive a
// reload within the period; the day component in the key is what
// actually resets them.
const usageTTL = 48 * time.Hour

// Evaluator tracks per-day usage of gated actions for one viewer and
// decides allow/deny before any durable write happens.
//
// Counters are optimistic approximations mirrored in redis: another
// device of the same viewer can race them and they drift until the next
// reload. That is accepted. The balance ("batidas") is different: the
// gateway's consume procedure owns that decision and the evaluator only
// records the remaining state it reports.
type Evaluator struct {
	viewerID string
	limits   Limits
	cache    *cache.RedisCache
	now      func() time.Time

	mu      sync.Mutex
	usage   map[GatedAction]usageEntry
	balance model.BalanceState
}

type usageEntry struct {
	day   string
	count int
}

// ConsumeResult reports the outcome of a consume attempt. On denial the
// counter is untouched and the caller must not perform the durable
// write.
type ConsumeResult struct {
	Allowed   bool
	Used      int
	Limit     int
	Remaining int
}

// NewEvaluator builds an evaluator for one viewer session, loading the
// cached usage snapshot for the current day. Snapshot load is
// best-effort: a cache failure reads as zero usage.
func NewEvaluator(ctx context.Context, viewerID string, tier Tier, c *cache.RedisCache, now func() time.Time) *Evaluator {
	if now == nil {
		now = time.Now
	}
	ev := &Evaluator{
		viewerID: viewerID,
		limits:   LimitsFor(tier),
		cache:    c,
		now:      now,
		usage:    make(map[GatedAction]usageEntry),
	}
	day := ev.today()
	for _, a := range []GatedAction{ActionArchive, ActionSecret} {
		if c == nil {
			continue
		}
		n, err := c.GetUsage(ctx, c.KeyForUsage(viewerID, string(a), now()))
		if err != nil {
			continue
		}
		ev.usage[a] = usageEntry{day: day, count: n}
	}
	return ev
}

// Limits returns the capability table of the session's tier.
func (e *Evaluator) Limits() Limits { return e.limits }

// Consume checks usage+amount against the limit of the action and, if
// allowed, increments the counter. Denial leaves usage unchanged, no
// partial debit.
func (e *Evaluator) Consume(ctx context.Context, action GatedAction, amount int) ConsumeResult {
	limit := e.limits.limitFor(action)

	e.mu.Lock()
	defer e.mu.Unlock()

	day := e.today()
	entry := e.usage[action]
	if entry.day != day {
		// stale-by-one-period counter reads as reset
		entry = usageEntry{day: day}
	}

	if limit == Unlimited {
		entry.count += amount
		e.usage[action] = entry
		e.mirror(ctx, action, amount)
		return ConsumeResult{Allowed: true, Used: entry.count, Limit: Unlimited, Remaining: Unlimited}
	}

	if entry.count+amount > limit {
		return ConsumeResult{Allowed: false, Used: entry.count, Limit: limit, Remaining: limit - entry.count}
	}

	entry.count += amount
	e.usage[action] = entry
	e.mirror(ctx, action, amount)
	return ConsumeResult{Allowed: true, Used: entry.count, Limit: limit, Remaining: limit - entry.count}
}

// Usage reports the current-day counter of an action.
func (e *Evaluator) Usage(action GatedAction) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry := e.usage[action]
	if entry.day != e.today() {
		return 0
	}
	return entry.count
}

// CanCustomFilters reports whether the tier may deviate from the
// viewer's own default filter attributes.
func (e *Evaluator) CanCustomFilters() bool { return e.limits.CustomFilters }

// CanPreMatchMessage reports whether the tier may message before a
// match exists.
func (e *Evaluator) CanPreMatchMessage() bool { return e.limits.PreMatchMessages }

// EffectiveFilters gates filter customization: tiers without the
// capability are forced back onto the viewer's own defaults whatever
// the requested predicate says.
func (e *Evaluator) EffectiveFilters(requested, defaults model.FilterQuery) model.FilterQuery {
	if e.limits.CustomFilters {
		return requested
	}
	forced := defaults
	forced.ExcludeIDs = requested.ExcludeIDs
	forced.Limit = requested.Limit
	return forced
}

// RecordBalance overwrites the local mirror of the remaining batidas
// with the state the gateway's consume procedure reported.
func (e *Evaluator) RecordBalance(state model.BalanceState) {
	e.mu.Lock()
	e.balance = state
	e.mu.Unlock()
}

// Balance returns the last mirrored batidas state.
func (e *Evaluator) Balance() model.BalanceState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance
}

func (e *Evaluator) today() string {
	return e.now().UTC().Format("2006-01-02")
}

// mirror pushes a counter increment to redis, best-effort.
func (e *Evaluator) mirror(ctx context.Context, action GatedAction, amount int) {
	if e.cache == nil {
		return
	}
	key := e.cache.KeyForUsage(e.viewerID, string(action), e.now())
	if _, err := e.cache.IncrBy(ctx, key, int64(amount)); err == nil {
		_ = e.cache.Client.Expire(ctx, key, usageTTL).Err()
	}
}

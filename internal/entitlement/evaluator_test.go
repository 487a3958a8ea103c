package entitlement_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amoradev/amora/internal/cache"
	"github.com/amoradev/amora/internal/config"
	"github.com/amoradev/amora/internal/entitlement"
	"github.com/amoradev/amora/internal/model"
)

func setupCache(t *testing.T) *cache.RedisCache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	return cache.NewRedisCache(cfg)
}

func TestConsumeDeniesAtTheLimit(t *testing.T) {
	ctx := context.Background()
	ev := entitlement.NewEvaluator(ctx, "viewer-1", entitlement.TierFree, setupCache(t), nil)

	// free tier allows 5 archives per day
	for i := 0; i < 5; i++ {
		res := ev.Consume(ctx, entitlement.ActionArchive, 1)
		require.True(t, res.Allowed, "attempt %d", i+1)
	}

	res := ev.Consume(ctx, entitlement.ActionArchive, 1)
	assert.False(t, res.Allowed)
	assert.Equal(t, 5, res.Used)
	assert.Equal(t, 5, res.Limit)

	// denial left the counter untouched
	assert.Equal(t, 5, ev.Usage(entitlement.ActionArchive))
}

func TestConsumeUnlimitedNeverDenies(t *testing.T) {
	ctx := context.Background()
	ev := entitlement.NewEvaluator(ctx, "viewer-1", entitlement.TierPremium, setupCache(t), nil)

	for i := 0; i < 100; i++ {
		res := ev.Consume(ctx, entitlement.ActionArchive, 1)
		require.True(t, res.Allowed)
		assert.Equal(t, entitlement.Unlimited, res.Limit)
	}
}

func TestConsumeResetsOnDayRoll(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 23, 50, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	ev := entitlement.NewEvaluator(ctx, "viewer-1", entitlement.TierFree, setupCache(t), clock)

	for i := 0; i < 5; i++ {
		require.True(t, ev.Consume(ctx, entitlement.ActionArchive, 1).Allowed)
	}
	require.False(t, ev.Consume(ctx, entitlement.ActionArchive, 1).Allowed)

	// the clock crosses midnight: the stale counter reads as reset
	now = now.Add(time.Hour)
	assert.Equal(t, 0, ev.Usage(entitlement.ActionArchive))
	assert.True(t, ev.Consume(ctx, entitlement.ActionArchive, 1).Allowed)
}

func TestEvaluatorLoadsUsageSnapshot(t *testing.T) {
	ctx := context.Background()
	c := setupCache(t)

	// another session of the same viewer already archived 4 today
	key := c.KeyForUsage("viewer-1", string(entitlement.ActionArchive), time.Now())
	require.NoError(t, c.Set(ctx, key, 4, time.Hour))

	ev := entitlement.NewEvaluator(ctx, "viewer-1", entitlement.TierFree, c, nil)
	assert.Equal(t, 4, ev.Usage(entitlement.ActionArchive))

	require.True(t, ev.Consume(ctx, entitlement.ActionArchive, 1).Allowed)
	assert.False(t, ev.Consume(ctx, entitlement.ActionArchive, 1).Allowed)
}

func TestTierLimitsAreNested(t *testing.T) {
	free := entitlement.LimitsFor(entitlement.TierFree)
	plus := entitlement.LimitsFor(entitlement.TierPlus)
	premium := entitlement.LimitsFor(entitlement.TierPremium)

	assert.Less(t, free.ArchivesPerDay, plus.ArchivesPerDay)
	assert.Equal(t, entitlement.Unlimited, premium.ArchivesPerDay)

	assert.False(t, free.CustomFilters)
	assert.True(t, plus.CustomFilters)

	assert.False(t, plus.PreMatchMessages)
	assert.True(t, premium.PreMatchMessages)
}

func TestEffectiveFiltersForcedOnFreeTier(t *testing.T) {
	ctx := context.Background()
	ev := entitlement.NewEvaluator(ctx, "viewer-1", entitlement.TierFree, setupCache(t), nil)

	defaults := model.FilterQuery{AgeMin: 25, AgeMax: 35, Gender: "female", Province: "Luanda"}
	requested := model.FilterQuery{
		AgeMin: 18, AgeMax: 99, Gender: "female", Province: "Benguela",
		ExcludeIDs: []string{"a", "b"}, Limit: 10,
	}

	got := ev.EffectiveFilters(requested, defaults)
	assert.Equal(t, "Luanda", got.Province)
	assert.Equal(t, 25, got.AgeMin)
	// session-mechanics fields pass through untouched
	assert.Equal(t, []string{"a", "b"}, got.ExcludeIDs)
	assert.Equal(t, 10, got.Limit)
}

func TestEffectiveFiltersPassThroughOnPlus(t *testing.T) {
	ctx := context.Background()
	ev := entitlement.NewEvaluator(ctx, "viewer-1", entitlement.TierPlus, setupCache(t), nil)

	requested := model.FilterQuery{AgeMin: 30, AgeMax: 40, Province: "Benguela"}
	got := ev.EffectiveFilters(requested, model.FilterQuery{Province: "Luanda"})
	assert.Equal(t, requested, got)
}

func TestBalanceMirror(t *testing.T) {
	ctx := context.Background()
	ev := entitlement.NewEvaluator(ctx, "viewer-1", entitlement.TierFree, setupCache(t), nil)

	ev.RecordBalance(model.BalanceState{Daily: 3, Extra: 7})
	assert.Equal(t, 10, ev.Balance().Total())
}

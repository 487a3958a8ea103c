package engine_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/amoradev/amora/internal/app"
	"github.com/amoradev/amora/internal/cache"
	"github.com/amoradev/amora/internal/config"
	"github.com/amoradev/amora/internal/db"
	"github.com/amoradev/amora/internal/engine"
	"github.com/amoradev/amora/internal/entitlement"
	"github.com/amoradev/amora/internal/gateway/local"
	"github.com/amoradev/amora/internal/model"
)

// setupEngine wires a viewer engine onto a real local gateway backed by
// an in-memory SQLite DB and a miniredis.
func setupEngine(t *testing.T) (*engine.Engine, *local.Gateway, *gorm.DB) {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, gdb.AutoMigrate(db.Models()...))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	redisCache := cache.NewRedisCache(cfg)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := local.New(gdb, redisCache, nil, log)
	appCtx := app.New(gw, redisCache, log, cfg)

	session := &app.Session{
		ViewerID:     "viewer-1",
		Tier:         entitlement.TierPremium,
		Gender:       "male",
		InterestedIn: "female",
		AgeMin:       18,
		AgeMax:       99,
	}
	e := engine.New(context.Background(), appCtx, session)
	t.Cleanup(e.Shutdown)
	return e, gw, gdb
}

// matchWith seeds the peer profile and likes both ways so a real match
// row exists.
func matchWith(t *testing.T, gw *local.Gateway, gdb *gorm.DB, peerID string) string {
	t.Helper()
	require.NoError(t, gdb.Create(&[]db.Profile{
		{ID: "viewer-1", DisplayName: "Eu", Gender: "male", Age: 30},
		{ID: peerID, DisplayName: "Par", Gender: "female", Age: 28},
	}).Error)

	ctx := context.Background()
	_, err := gw.RecordLike(ctx, "viewer-1", peerID)
	require.NoError(t, err)
	res, err := gw.RecordLike(ctx, peerID, "viewer-1")
	require.NoError(t, err)
	require.True(t, res.IsMatch)
	return res.MatchID
}

func TestCloseConversationStopsRealtimeDelivery(t *testing.T) {
	ctx := context.Background()
	e, gw, gdb := setupEngine(t)
	matchID := matchWith(t, gw, gdb, "peer-1")

	a, err := e.Conversation(ctx, matchID)
	require.NoError(t, err)

	var mu sync.Mutex
	var got []string
	a.AddListener(func(m model.Message) {
		mu.Lock()
		got = append(got, m.ID)
		mu.Unlock()
	})

	_, err = gw.SendMessage(ctx, model.Message{MatchID: matchID, SenderID: "peer-1", ReceiverID: "viewer-1", Text: "oi"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 20*time.Millisecond)

	e.CloseConversation(matchID)

	// the detached feed never sees later messages
	_, err = gw.SendMessage(ctx, model.Message{MatchID: matchID, SenderID: "peer-1", ReceiverID: "viewer-1", Text: "tarde"})
	require.NoError(t, err)
	assert.Never(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 1
	}, 300*time.Millisecond, 50*time.Millisecond)

	// reopening builds a fresh adapter with the full history
	b, err := e.Conversation(ctx, matchID)
	require.NoError(t, err)
	require.NotSame(t, a, b)
	assert.Len(t, b.Messages(), 2)
}

func TestCloseConversationUnknownMatchIsNoOp(t *testing.T) {
	e, _, _ := setupEngine(t)
	e.CloseConversation("missing")
}

func TestShutdownClosesOpenConversations(t *testing.T) {
	ctx := context.Background()
	e, gw, gdb := setupEngine(t)
	matchID := matchWith(t, gw, gdb, "peer-1")

	a, err := e.Conversation(ctx, matchID)
	require.NoError(t, err)

	var mu sync.Mutex
	var got []string
	a.AddListener(func(m model.Message) {
		mu.Lock()
		got = append(got, m.ID)
		mu.Unlock()
	})

	e.Shutdown()

	_, err = gw.SendMessage(ctx, model.Message{MatchID: matchID, SenderID: "peer-1", ReceiverID: "viewer-1", Text: "oi"})
	require.NoError(t, err)
	assert.Never(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, 300*time.Millisecond, 50*time.Millisecond)
}

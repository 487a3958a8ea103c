package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/amoradev/amora/internal/app"
	"github.com/amoradev/amora/internal/cache"
	"github.com/amoradev/amora/internal/config"
	"github.com/amoradev/amora/internal/db"
	"github.com/amoradev/amora/internal/engine"
	"github.com/amoradev/amora/internal/gateway/local"
)

// setupAPI boots the full surface on a real local gateway: in-memory
// SQLite, miniredis, and an httptest server around the route table.
func setupAPI(t *testing.T) (*Server, *httptest.Server, *local.Gateway, *gorm.DB) {
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
	cfg.Engine.MatchPollAttempts = 2
	cfg.Engine.MatchPollInterval = 10 * time.Millisecond
	redisCache := cache.NewRedisCache(cfg)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := local.New(gdb, redisCache, nil, log)
	appCtx := app.New(gw, redisCache, log, cfg)

	s := NewServer(appCtx, gw)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(s.drainEngines)
	return s, ts, gw, gdb
}

// seedViewer creates a profile with credentials and logs it in,
// returning the bearer token.
func seedViewer(t *testing.T, gdb *gorm.DB, gw *local.Gateway, id, phone, tier string) string {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("1234"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, gdb.Create(&db.Profile{ID: id, DisplayName: id, Gender: "female", Age: 25, Tier: tier}).Error)
	require.NoError(t, gdb.Create(&db.Credential{ProfileID: id, Phone: phone, PINHash: string(hash)}).Error)

	token, _, err := gw.Authenticate(context.Background(), phone, "1234")
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (s *Server) engineByID(viewerID string) *engine.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engines[viewerID]
}

func TestPreMatchReplyReportsSendDenial(t *testing.T) {
	_, ts, gw, gdb := setupAPI(t)
	token := seedViewer(t, gdb, gw, "alvo", "5511000", "free")
	require.NoError(t, gdb.Create(&db.Profile{ID: "fa", DisplayName: "fa", Gender: "male", Age: 30}).Error)
	require.NoError(t, gdb.Create(&db.PreMatchMessage{ID: "pm1", SenderID: "fa", ReceiverID: "alvo", Content: "oi"}).Error)

	// the pre-match message carried the sender's implied like
	_, err := gw.RecordLike(context.Background(), "fa", "alvo")
	require.NoError(t, err)

	// drained balance for today, so the reply send must be denied
	today := time.Now().UTC().Format("2006-01-02")
	require.NoError(t, gdb.Create(&db.Balance{ProfileID: "alvo", Daily: 0, Extra: 0, Day: today}).Error)

	resp, body := doJSON(t, ts, http.MethodPost, "/inbox/premessages/pm1/reply", token, map[string]string{"content": "oi de volta"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, true, body["matched"])
	assert.Contains(t, body, "send_error")
	assert.Equal(t, "true", body["upgrade"])
	assert.NotContains(t, body, "message")
}

func TestCloseConversationRouteDetachesFeed(t *testing.T) {
	s, ts, gw, gdb := setupAPI(t)
	token := seedViewer(t, gdb, gw, "ana", "5511001", "premium")
	require.NoError(t, gdb.Create(&db.Profile{ID: "bia", DisplayName: "bia", Gender: "female", Age: 26}).Error)

	ctx := context.Background()
	_, err := gw.RecordLike(ctx, "ana", "bia")
	require.NoError(t, err)
	res, err := gw.RecordLike(ctx, "bia", "ana")
	require.NoError(t, err)
	require.True(t, res.IsMatch)

	resp, _ := doJSON(t, ts, http.MethodGet, "/matches/"+res.MatchID+"/messages", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	eng := s.engineByID("ana")
	require.NotNil(t, eng)
	before, err := eng.Conversation(ctx, res.MatchID)
	require.NoError(t, err)

	resp, _ = doJSON(t, ts, http.MethodDelete, "/matches/"+res.MatchID+"/conversation", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// the close evicted the adapter; the next open builds a fresh one
	after, err := eng.Conversation(ctx, res.MatchID)
	require.NoError(t, err)
	require.NotSame(t, before, after)
}

func TestStreamDisconnectClosesConversation(t *testing.T) {
	s, ts, gw, gdb := setupAPI(t)
	token := seedViewer(t, gdb, gw, "ana", "5511002", "premium")
	require.NoError(t, gdb.Create(&db.Profile{ID: "bia", DisplayName: "bia", Gender: "female", Age: 26}).Error)

	ctx := context.Background()
	_, err := gw.RecordLike(ctx, "ana", "bia")
	require.NoError(t, err)
	res, err := gw.RecordLike(ctx, "bia", "ana")
	require.NoError(t, err)
	require.True(t, res.IsMatch)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/matches/" + res.MatchID + "/stream"
	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)

	eng := s.engineByID("ana")
	require.NotNil(t, eng)
	adapter, err := eng.Conversation(ctx, res.MatchID)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return adapter.Listeners() == 1 }, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, conn.Close())

	// the last stream going away closes the feed and evicts the adapter
	require.Eventually(t, func() bool { return adapter.Listeners() == 0 }, 2*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		fresh, err := eng.Conversation(ctx, res.MatchID)
		return err == nil && fresh != adapter
	}, 2*time.Second, 20*time.Millisecond)
}

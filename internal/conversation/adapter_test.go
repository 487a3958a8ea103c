package conversation_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amoradev/amora/internal/app"
	"github.com/amoradev/amora/internal/conversation"
	"github.com/amoradev/amora/internal/entitlement"
	svcErr "github.com/amoradev/amora/internal/errors"
	"github.com/amoradev/amora/internal/gateway"
	"github.com/amoradev/amora/internal/model"
)

// fakeChannel scripts the gateway side of one conversation and lets
// tests push realtime inserts by hand.
type fakeChannel struct {
	mu sync.Mutex

	history  []model.Message
	sent     []model.Message
	reads    []string
	uploads  []string
	onInsert func(model.Message)

	balance     model.BalanceState
	denyConsume bool
	consumed    int
}

func (f *fakeChannel) FetchMessages(ctx context.Context, matchID string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Message(nil), f.history...), nil
}

func (f *fakeChannel) SendMessage(ctx context.Context, msg model.Message) (model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return msg, nil
}

func (f *fakeChannel) SubscribeToConversation(ctx context.Context, matchID string, onInsert func(model.Message)) (gateway.Unsubscribe, error) {
	f.mu.Lock()
	f.onInsert = onInsert
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.onInsert = nil
		f.mu.Unlock()
	}, nil
}

func (f *fakeChannel) ConsumeBalanceUnits(ctx context.Context, viewerID string, amount int) (bool, model.BalanceState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denyConsume {
		return false, f.balance, nil
	}
	f.consumed += amount
	return true, f.balance, nil
}

func (f *fakeChannel) UploadImage(ctx context.Context, data []byte, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, path)
	return "https://cdn/" + path, nil
}

func (f *fakeChannel) MarkRead(ctx context.Context, matchID, readerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, readerID)
	return nil
}

// push simulates a realtime insert arriving over the feed.
func (f *fakeChannel) push(m model.Message) {
	f.mu.Lock()
	fn := f.onInsert
	f.mu.Unlock()
	if fn != nil {
		fn(m)
	}
}

func msgAt(id, sender string, at time.Time) model.Message {
	return model.Message{ID: id, MatchID: "match-1", SenderID: sender, Text: "m-" + id, CreatedAt: at}
}

func setupAdapter(t *testing.T, ch *fakeChannel) *conversation.Adapter {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	session := &app.Session{ViewerID: "viewer-1", Tier: entitlement.TierFree}
	ev := entitlement.NewEvaluator(context.Background(), session.ViewerID, session.Tier, nil, nil)
	a := conversation.NewAdapter(session, "match-1", "peer-1", ch, ev, log)
	require.NoError(t, a.Open(context.Background()))
	t.Cleanup(a.Close)
	return a
}

func TestOpenLoadsHistoryInOrder(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ch := &fakeChannel{history: []model.Message{
		msgAt("m2", "peer-1", base.Add(time.Minute)),
		msgAt("m1", "viewer-1", base),
	}}
	a := setupAdapter(t, ch)

	got := a.Messages()
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, "m2", got[1].ID)
}

func TestMergeDeduplicatesOptimisticAndRealtime(t *testing.T) {
	ch := &fakeChannel{balance: model.BalanceState{Daily: 10}}
	a := setupAdapter(t, ch)

	sent, err := a.Send(context.Background(), "hello", nil)
	require.NoError(t, err)

	// the realtime feed delivers the viewer's own message back
	ch.push(sent)

	got := a.Messages()
	require.Len(t, got, 1)
	assert.Equal(t, sent.ID, got[0].ID)
}

func TestMergeInterleavesOutOfOrderArrivals(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ch := &fakeChannel{}
	a := setupAdapter(t, ch)

	ch.push(msgAt("m3", "peer-1", base.Add(2*time.Minute)))
	ch.push(msgAt("m1", "peer-1", base))
	ch.push(msgAt("m2", "peer-1", base.Add(time.Minute)))
	ch.push(msgAt("m1", "peer-1", base)) // duplicate

	got := a.Messages()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestSendValidatesContent(t *testing.T) {
	ch := &fakeChannel{balance: model.BalanceState{Daily: 10}}
	a := setupAdapter(t, ch)

	_, err := a.Send(context.Background(), "   ", nil)
	require.ErrorIs(t, err, svcErr.ErrValidation)

	// nothing was debited or sent
	assert.Equal(t, 0, ch.consumed)
	assert.Empty(t, ch.sent)
}

func TestSendCostsOneUnitForText(t *testing.T) {
	ch := &fakeChannel{balance: model.BalanceState{Daily: 9}}
	a := setupAdapter(t, ch)

	_, err := a.Send(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, ch.consumed)
}

func TestSendCostsTwoUnitsWithImage(t *testing.T) {
	ch := &fakeChannel{balance: model.BalanceState{Daily: 8}}
	a := setupAdapter(t, ch)

	sent, err := a.Send(context.Background(), "look", []byte{0xff, 0xd8})
	require.NoError(t, err)
	assert.Equal(t, 2, ch.consumed)
	assert.NotEmpty(t, sent.ImageURL)
	require.Len(t, ch.uploads, 1)
	assert.Contains(t, ch.uploads[0], "chat/match-1/")
}

func TestSendDeniedOnEmptyBalance(t *testing.T) {
	ch := &fakeChannel{denyConsume: true}
	a := setupAdapter(t, ch)

	_, err := a.Send(context.Background(), "hello", nil)
	require.ErrorIs(t, err, svcErr.ErrEntitlementDenied)
	assert.Empty(t, ch.sent)
	assert.Empty(t, a.Messages())
}

func TestListenerSeesEveryMergedMessage(t *testing.T) {
	ch := &fakeChannel{}
	a := setupAdapter(t, ch)

	var mu sync.Mutex
	var seen []string
	a.AddListener(func(m model.Message) {
		mu.Lock()
		seen = append(seen, m.ID)
		mu.Unlock()
	})

	base := time.Now().UTC()
	ch.push(msgAt("m1", "peer-1", base))
	ch.push(msgAt("m1", "peer-1", base)) // duplicate, not re-announced
	ch.push(msgAt("m2", "peer-1", base.Add(time.Second)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"m1", "m2"}, seen)
}

func TestConcurrentListenersEachSeeMerges(t *testing.T) {
	ch := &fakeChannel{}
	a := setupAdapter(t, ch)

	var mu sync.Mutex
	var first, second []string
	detachFirst := a.AddListener(func(m model.Message) {
		mu.Lock()
		first = append(first, m.ID)
		mu.Unlock()
	})
	a.AddListener(func(m model.Message) {
		mu.Lock()
		second = append(second, m.ID)
		mu.Unlock()
	})
	assert.Equal(t, 2, a.Listeners())

	base := time.Now().UTC()
	ch.push(msgAt("m1", "peer-1", base))

	// detaching one stream never mutes the other
	detachFirst()
	detachFirst() // idempotent
	ch.push(msgAt("m2", "peer-1", base.Add(time.Second)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"m1"}, first)
	assert.Equal(t, []string{"m1", "m2"}, second)
	assert.Equal(t, 1, a.Listeners())
}

func TestMarkReadFlagsInboundMessages(t *testing.T) {
	base := time.Now().UTC()
	inbound := msgAt("m1", "peer-1", base)
	inbound.ReceiverID = "viewer-1"
	outbound := msgAt("m2", "viewer-1", base.Add(time.Second))
	outbound.ReceiverID = "peer-1"

	ch := &fakeChannel{history: []model.Message{inbound, outbound}}
	a := setupAdapter(t, ch)

	require.NoError(t, a.MarkRead(context.Background()))
	got := a.Messages()
	assert.True(t, got[0].Read)
	assert.False(t, got[1].Read)
	assert.Equal(t, []string{"viewer-1"}, ch.reads)
}

func TestCloseDetachesFeed(t *testing.T) {
	ch := &fakeChannel{}
	a := setupAdapter(t, ch)

	a.Close()
	a.Close() // idempotent

	ch.push(msgAt("m1", "peer-1", time.Now().UTC()))
	assert.Empty(t, a.Messages())
}

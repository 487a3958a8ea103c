// Package conversation maintains the ordered message view of one match,
// merging history, realtime pushes, and optimistic local sends into a
// single deduplicated timeline.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/amoradev/amora/internal/app"
	"github.com/amoradev/amora/internal/entitlement"
	"github.com/amoradev/amora/internal/errors"
	"github.com/amoradev/amora/internal/gateway"
	"github.com/amoradev/amora/internal/model"
	"github.com/google/uuid"
)

// Unit costs of one send, debited atomically by the gateway procedure.
const (
	costText  = 1
	costImage = 2
)

// Channel is the slice of the gateway the adapter consumes.
type Channel interface {
	FetchMessages(ctx context.Context, matchID string) ([]model.Message, error)
	SendMessage(ctx context.Context, msg model.Message) (model.Message, error)
	SubscribeToConversation(ctx context.Context, matchID string, onInsert func(model.Message)) (gateway.Unsubscribe, error)
	ConsumeBalanceUnits(ctx context.Context, viewerID string, amount int) (bool, model.BalanceState, error)
	UploadImage(ctx context.Context, data []byte, path string) (string, error)
	MarkRead(ctx context.Context, matchID, readerID string) error
}

// Adapter is viewer-session scoped and bound to one conversation.
type Adapter struct {
	session *app.Session
	matchID string
	peerID  string
	gw      Channel
	ent     *entitlement.Evaluator
	log     *slog.Logger

	mu        sync.Mutex
	messages  []model.Message
	seen      map[string]struct{}
	unsub     gateway.Unsubscribe
	listeners map[int]func(model.Message)
	nextLst   int
}

func NewAdapter(session *app.Session, matchID, peerID string, gw Channel, ent *entitlement.Evaluator, log *slog.Logger) *Adapter {
	return &Adapter{
		session:   session,
		matchID:   matchID,
		peerID:    peerID,
		gw:        gw,
		ent:       ent,
		log:       log,
		seen:      make(map[string]struct{}),
		listeners: make(map[int]func(model.Message)),
	}
}

// AddListener registers a callback invoked once per newly merged
// message. Several streams may listen to the same conversation at once;
// the returned func detaches only this one.
func (a *Adapter) AddListener(fn func(model.Message)) func() {
	a.mu.Lock()
	id := a.nextLst
	a.nextLst++
	a.listeners[id] = fn
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

// Listeners reports how many callbacks are currently attached.
func (a *Adapter) Listeners() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.listeners)
}

// Open loads the full history ascending by creation time and attaches
// the realtime insert feed. The feed and the viewer's own optimistic
// sends converge through merge-by-identity.
func (a *Adapter) Open(ctx context.Context) error {
	history, err := a.gw.FetchMessages(ctx, a.matchID)
	if err != nil {
		return fmt.Errorf("load conversation %s: %w", a.matchID, err)
	}
	for _, m := range history {
		a.merge(m)
	}

	unsub, err := a.gw.SubscribeToConversation(ctx, a.matchID, func(m model.Message) {
		a.merge(m)
	})
	if err != nil {
		return fmt.Errorf("subscribe conversation %s: %w", a.matchID, err)
	}
	a.mu.Lock()
	a.unsub = unsub
	a.mu.Unlock()
	return nil
}

// Close detaches the realtime feed. Safe to call more than once.
func (a *Adapter) Close() {
	a.mu.Lock()
	unsub := a.unsub
	a.unsub = nil
	a.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Messages returns a copy of the merged timeline, ascending by
// creation time, each identity exactly once.
func (a *Adapter) Messages() []model.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.Message, len(a.messages))
	copy(out, a.messages)
	return out
}

// Send validates, debits the balance through the gateway's atomic
// consume procedure, uploads the image if any, inserts the message row,
// and appends it optimistically. Text-only costs 1 unit, an attached
// image makes it 2. A denial opens the upgrade prompt upstream and
// nothing is sent.
func (a *Adapter) Send(ctx context.Context, text string, image []byte) (model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" && len(image) == 0 {
		return model.Message{}, errors.Validationf("message needs text or an image")
	}

	cost := costText
	if len(image) > 0 {
		cost = costImage
	}

	ok, remaining, err := a.gw.ConsumeBalanceUnits(ctx, a.session.ViewerID, cost)
	if err != nil {
		return model.Message{}, fmt.Errorf("consume balance: %w", err)
	}
	a.ent.RecordBalance(remaining)
	if !ok {
		return model.Message{}, fmt.Errorf("%w: insufficient batidas", errors.ErrEntitlementDenied)
	}

	msg := model.Message{
		ID:         uuid.NewString(),
		MatchID:    a.matchID,
		SenderID:   a.session.ViewerID,
		ReceiverID: a.peerID,
		Text:       text,
		CreatedAt:  time.Now().UTC(),
	}

	if len(image) > 0 {
		url, err := a.gw.UploadImage(ctx, image, fmt.Sprintf("chat/%s/%s.jpg", a.matchID, msg.ID))
		if err != nil {
			return model.Message{}, fmt.Errorf("upload image: %w", err)
		}
		msg.ImageURL = url
	}

	sent, err := a.gw.SendMessage(ctx, msg)
	if err != nil {
		return model.Message{}, fmt.Errorf("send message: %w", err)
	}

	// optimistic append; the realtime feed will deliver the same
	// identity later and merge will skip it
	a.merge(sent)
	return sent, nil
}

// MarkRead flags the peer's messages as read, locally and durably.
func (a *Adapter) MarkRead(ctx context.Context) error {
	a.mu.Lock()
	for i := range a.messages {
		if a.messages[i].ReceiverID == a.session.ViewerID {
			a.messages[i].Read = true
		}
	}
	a.mu.Unlock()
	return a.gw.MarkRead(ctx, a.matchID, a.session.ViewerID)
}

// merge inserts a message into timestamp order, skipping identities
// already present. Tolerates out-of-order arrival between the realtime
// push and the optimistic insert.
func (a *Adapter) merge(m model.Message) {
	a.mu.Lock()
	if _, dup := a.seen[m.ID]; dup {
		a.mu.Unlock()
		return
	}
	a.seen[m.ID] = struct{}{}

	i := sort.Search(len(a.messages), func(i int) bool {
		if a.messages[i].CreatedAt.Equal(m.CreatedAt) {
			return a.messages[i].ID > m.ID
		}
		return a.messages[i].CreatedAt.After(m.CreatedAt)
	})
	a.messages = append(a.messages, model.Message{})
	copy(a.messages[i+1:], a.messages[i:])
	a.messages[i] = m

	fns := make([]func(model.Message), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn(m)
	}
}

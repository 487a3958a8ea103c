package local

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/amoradev/amora/internal/db"
	svcErr "github.com/amoradev/amora/internal/errors"
	"github.com/amoradev/amora/internal/gateway"
	"github.com/amoradev/amora/internal/model"
)

// SendMessage inserts the row and publishes it on the conversation's
// pub/sub channel so every subscribed device receives the insert.
// A caller-supplied id is honored; that is what lets the sender's
// optimistic copy and the realtime delivery share one identity.
func (g *Gateway) SendMessage(ctx context.Context, msg model.Message) (model.Message, error) {
	if msg.MatchID == "" || msg.SenderID == "" || msg.ReceiverID == "" {
		return model.Message{}, svcErr.Validationf("match, sender and receiver required")
	}
	if msg.Empty() {
		return model.Message{}, svcErr.Validationf("message needs text or an image")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = g.now().UTC()
	}

	row := db.Message{
		ID:         msg.ID,
		MatchID:    msg.MatchID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Text:       msg.Text,
		ImageURL:   msg.ImageURL,
		CreatedAt:  msg.CreatedAt,
	}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.Message{}, fmt.Errorf("send message: %w", err)
	}

	if g.cache != nil {
		payload, err := json.Marshal(msg)
		if err == nil {
			channel := g.cache.ChannelForConversation(msg.MatchID)
			if err := g.cache.Client.Publish(ctx, channel, payload).Err(); err != nil {
				g.log.Warn("realtime publish failed", "match", msg.MatchID, "err", err)
			}
		}
	}
	return msg, nil
}

// FetchMessages loads the full history of a conversation ascending by
// creation time.
func (g *Gateway) FetchMessages(ctx context.Context, matchID string) ([]model.Message, error) {
	var rows []db.Message
	if err := g.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	out := make([]model.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, toModelMessage(r))
	}
	return out, nil
}

// SubscribeToConversation attaches to the conversation's pub/sub
// channel and invokes onInsert for each pushed message until the
// returned Unsubscribe runs (or ctx ends).
func (g *Gateway) SubscribeToConversation(ctx context.Context, matchID string, onInsert func(model.Message)) (gateway.Unsubscribe, error) {
	if g.cache == nil {
		return nil, gateway.ErrUnavailable
	}
	pubsub := g.cache.Client.Subscribe(ctx, g.cache.ChannelForConversation(matchID))
	// force the subscription onto the wire before returning
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe conversation: %w", err)
	}

	done := make(chan struct{})
	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case raw, ok := <-ch:
				if !ok {
					return
				}
				var msg model.Message
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					g.log.Warn("bad realtime payload", "match", matchID, "err", err)
					continue
				}
				onInsert(msg)
			}
		}
	}()

	var once func()
	closed := false
	once = func() {
		if closed {
			return
		}
		closed = true
		close(done)
		_ = pubsub.Close()
	}
	return once, nil
}

// MarkRead flags every message addressed to the reader in one
// conversation as read.
func (g *Gateway) MarkRead(ctx context.Context, matchID, readerID string) error {
	err := g.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("match_id = ? AND receiver_id = ? AND is_read = ?", matchID, readerID, false).
		Updates(map[string]any{"is_read": true}).Error
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// CountUnread backs the conversation-list badge.
func (g *Gateway) CountUnread(ctx context.Context, matchID, readerID string) (int64, error) {
	var n int64
	err := g.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("match_id = ? AND receiver_id = ? AND is_read = ?", matchID, readerID, false).
		Count(&n).Error
	return n, err
}

package local

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/amoradev/amora/internal/db"
	svcErr "github.com/amoradev/amora/internal/errors"
	"github.com/amoradev/amora/internal/gateway"
	"github.com/amoradev/amora/internal/model"
)

// SendPreMatchMessage stores a directed message to a not-yet-matched
// profile. It sits in the target's inbox until replied to or dismissed.
func (g *Gateway) SendPreMatchMessage(ctx context.Context, senderID, targetID, content string) error {
	if content == "" {
		return svcErr.Validationf("pre-match message content required")
	}
	row := db.PreMatchMessage{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: targetID,
		Content:    content,
	}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("send pre-match message: %w", err)
	}
	return nil
}

// ListPreMatchMessages returns the receiver's pending pre-match inbox,
// oldest first.
func (g *Gateway) ListPreMatchMessages(ctx context.Context, receiverID string) ([]model.PreMatchMessage, error) {
	var rows []db.PreMatchMessage
	if err := g.db.WithContext(ctx).
		Where("receiver_id = ?", receiverID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list pre-match messages: %w", err)
	}
	out := make([]model.PreMatchMessage, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.PreMatchMessage{
			ID:         r.ID,
			SenderID:   r.SenderID,
			ReceiverID: r.ReceiverID,
			Content:    r.Content,
			CreatedAt:  r.CreatedAt,
		})
	}
	return out, nil
}

// DeletePreMatchMessage removes a consumed message. Deleting an already
// deleted id is a no-op, which is what makes the caller's exactly-once
// contract cheap to honor.
func (g *Gateway) DeletePreMatchMessage(ctx context.Context, messageID string) error {
	if err := g.db.WithContext(ctx).Delete(&db.PreMatchMessage{}, "id = ?", messageID).Error; err != nil {
		return fmt.Errorf("delete pre-match message: %w", err)
	}
	return nil
}

// ConfirmMatchOnReply is the dedicated reply procedure: the reply
// counts as a like back, so it records the like and reports the match
// it closes. This reference backend always implements it; remote
// deployments may answer ErrUnavailable, pushing callers onto the
// like-and-poll fallback.
func (g *Gateway) ConfirmMatchOnReply(ctx context.Context, viewerID, targetID string) (gateway.LikeResult, error) {
	return g.RecordLike(ctx, viewerID, targetID)
}

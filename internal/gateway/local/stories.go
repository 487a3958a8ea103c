package local

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/amoradev/amora/internal/db"
	svcErr "github.com/amoradev/amora/internal/errors"
	"github.com/amoradev/amora/internal/model"
)

// PostAnonymousComment drops a comment into the target's inbox without
// exposing the sender.
func (g *Gateway) PostAnonymousComment(ctx context.Context, senderID, targetID, content string) error {
	if content == "" {
		return svcErr.Validationf("comment content required")
	}
	row := db.AnonymousComment{
		ID:       uuid.NewString(),
		SenderID: senderID,
		TargetID: targetID,
		Content:  content,
	}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("post anonymous comment: %w", err)
	}
	return nil
}

// ListAnonymousComments returns the comments received by a profile,
// newest first. Sender identity never leaves this layer.
func (g *Gateway) ListAnonymousComments(ctx context.Context, targetID string) ([]model.AnonymousComment, error) {
	var rows []db.AnonymousComment
	if err := g.db.WithContext(ctx).
		Where("target_id = ?", targetID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list anonymous comments: %w", err)
	}
	out := make([]model.AnonymousComment, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.AnonymousComment{
			ID:        r.ID,
			TargetID:  r.TargetID,
			Content:   r.Content,
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

// PostStory publishes an anonymous secret.
func (g *Gateway) PostStory(ctx context.Context, authorID, content string) (model.Story, error) {
	if content == "" {
		return model.Story{}, svcErr.Validationf("story content required")
	}
	row := db.Story{ID: uuid.NewString(), AuthorID: authorID, Content: content}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.Story{}, fmt.Errorf("post story: %w", err)
	}
	return model.Story{ID: row.ID, AuthorID: row.AuthorID, Content: row.Content, CreatedAt: row.CreatedAt}, nil
}

// ListStories returns the newest stories with reaction and comment
// counts attached.
func (g *Gateway) ListStories(ctx context.Context, limit int) ([]model.Story, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []db.Story
	if err := g.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}

	out := make([]model.Story, 0, len(rows))
	for _, r := range rows {
		s := model.Story{ID: r.ID, AuthorID: r.AuthorID, Content: r.Content, CreatedAt: r.CreatedAt}
		var reactions, comments int64
		g.db.WithContext(ctx).Model(&db.StoryReaction{}).Where("story_id = ?", r.ID).Count(&reactions)
		g.db.WithContext(ctx).Model(&db.StoryComment{}).Where("story_id = ?", r.ID).Count(&comments)
		s.ReactionCount = int(reactions)
		s.CommentCount = int(comments)
		out = append(out, s)
	}
	return out, nil
}

// ToggleStoryReaction flips the viewer's reaction on a story and
// reports the resulting state.
func (g *Gateway) ToggleStoryReaction(ctx context.Context, storyID, viewerID string) (bool, error) {
	var existing db.StoryReaction
	err := g.db.WithContext(ctx).First(&existing, "story_id = ? AND viewer_id = ?", storyID, viewerID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := db.StoryReaction{StoryID: storyID, ViewerID: viewerID}
		if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
			return false, fmt.Errorf("toggle reaction: %w", err)
		}
		return true, nil
	case err != nil:
		return false, err
	default:
		if err := g.db.WithContext(ctx).Delete(&existing).Error; err != nil {
			return false, fmt.Errorf("toggle reaction: %w", err)
		}
		return false, nil
	}
}

// PostStoryComment adds an anonymous reply to a story.
func (g *Gateway) PostStoryComment(ctx context.Context, storyID, authorID, content string) (model.StoryComment, error) {
	if content == "" {
		return model.StoryComment{}, svcErr.Validationf("comment content required")
	}
	var story db.Story
	if err := g.db.WithContext(ctx).First(&story, "id = ?", storyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.StoryComment{}, fmt.Errorf("%w: story %s", svcErr.ErrNotFound, storyID)
		}
		return model.StoryComment{}, err
	}

	row := db.StoryComment{ID: uuid.NewString(), StoryID: storyID, AuthorID: authorID, Content: content}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.StoryComment{}, fmt.Errorf("post story comment: %w", err)
	}
	return model.StoryComment{ID: row.ID, StoryID: row.StoryID, AuthorID: row.AuthorID, Content: row.Content, CreatedAt: row.CreatedAt}, nil
}

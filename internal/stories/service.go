// Package stories serves the anonymous ephemeral "secrets" feed.
package stories

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/amoradev/amora/internal/app"
	"github.com/amoradev/amora/internal/entitlement"
	"github.com/amoradev/amora/internal/errors"
	"github.com/amoradev/amora/internal/model"
)

// Gateway is the slice of the remote gateway the feed consumes.
type Gateway interface {
	PostStory(ctx context.Context, authorID, content string) (model.Story, error)
	ListStories(ctx context.Context, limit int) ([]model.Story, error)
	ToggleStoryReaction(ctx context.Context, storyID, viewerID string) (bool, error)
	PostStoryComment(ctx context.Context, storyID, authorID, content string) (model.StoryComment, error)
}

type Service struct {
	session *app.Session
	gw      Gateway
	ent     *entitlement.Evaluator
	log     *slog.Logger
}

func NewService(session *app.Session, gw Gateway, ent *entitlement.Evaluator, log *slog.Logger) *Service {
	return &Service{session: session, gw: gw, ent: ent, log: log}
}

// PostSecret publishes an anonymous story, gated by the tier's daily
// secret allowance. Denial opens the upgrade prompt upstream; nothing
// is written.
func (s *Service) PostSecret(ctx context.Context, content string) (model.Story, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Story{}, errors.Validationf("secret content required")
	}

	res := s.ent.Consume(ctx, entitlement.ActionSecret, 1)
	if !res.Allowed {
		return model.Story{}, fmt.Errorf("%w: daily secret limit %d reached", errors.ErrEntitlementDenied, res.Limit)
	}

	story, err := s.gw.PostStory(ctx, s.session.ViewerID, content)
	if err != nil {
		return model.Story{}, fmt.Errorf("post secret: %w", err)
	}
	return story, nil
}

// Feed returns the newest secrets.
func (s *Service) Feed(ctx context.Context, limit int) ([]model.Story, error) {
	return s.gw.ListStories(ctx, limit)
}

// ToggleReaction flips the viewer's reaction on a story.
func (s *Service) ToggleReaction(ctx context.Context, storyID string) (bool, error) {
	return s.gw.ToggleStoryReaction(ctx, storyID, s.session.ViewerID)
}

// Comment adds an anonymous reply to a story.
func (s *Service) Comment(ctx context.Context, storyID, content string) (model.StoryComment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.StoryComment{}, errors.Validationf("comment content required")
	}
	return s.gw.PostStoryComment(ctx, storyID, s.session.ViewerID, content)
}

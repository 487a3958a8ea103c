// Package inbox serves the interaction inboxes: who liked you,
// archived profiles, anonymous comments, and pending pre-match
// messages.
package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/amoradev/amora/internal/app"
	"github.com/amoradev/amora/internal/model"
)

const likeCountTTL = time.Hour

// Gateway is the slice of the remote gateway the inbox consumes.
type Gateway interface {
	ListLikers(ctx context.Context, viewerID string, paginationToken *string, limit int) ([]model.Liker, *string, error)
	CountLikers(ctx context.Context, viewerID string) (int64, error)
	GetProfile(ctx context.Context, profileID string) (model.Profile, error)
	ListArchived(ctx context.Context, viewerID string) ([]model.ArchivedProfile, error)
	RemoveArchive(ctx context.Context, viewerID, archiveID string) error
	ListAnonymousComments(ctx context.Context, targetID string) ([]model.AnonymousComment, error)
	ListPreMatchMessages(ctx context.Context, receiverID string) ([]model.PreMatchMessage, error)
}

// LikerEntry pairs the liker's profile snapshot with the like time.
type LikerEntry struct {
	Profile model.Profile `json:"profile"`
	LikedAt time.Time     `json:"liked_at"`
}

type Service struct {
	appCtx  *app.AppContext
	session *app.Session
	gw      Gateway
	log     *slog.Logger
}

func NewService(appCtx *app.AppContext, session *app.Session, gw Gateway) *Service {
	return &Service{
		appCtx:  appCtx,
		session: session,
		gw:      gw,
		log:     appCtx.Logger.With("component", "inbox", "viewer", session.ViewerID),
	}
}

// LikedYou returns one page of profiles that liked the viewer.
func (s *Service) LikedYou(ctx context.Context, paginationToken *string, limit int) ([]LikerEntry, *string, error) {
	if limit <= 0 {
		limit = 10
	}
	likers, next, err := s.gw.ListLikers(ctx, s.session.ViewerID, paginationToken, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("list likers: %w", err)
	}

	out := make([]LikerEntry, 0, len(likers))
	for _, l := range likers {
		p, err := s.gw.GetProfile(ctx, l.ProfileID)
		if err != nil {
			s.log.Warn("liker profile missing", "profile", l.ProfileID, "err", err)
			continue
		}
		out = append(out, LikerEntry{Profile: p, LikedAt: l.LikedAt})
	}
	return out, next, nil
}

// CountLikedYou returns how many users liked the viewer.
// Cache-first strategy:
//  1. Attempts the redis counter.
//  2. On miss, falls back to the gateway count.
//  3. Writes the fresh count back with a 1h TTL.
func (s *Service) CountLikedYou(ctx context.Context) (int64, error) {
	key := s.appCtx.Cache.KeyForLikeCount(s.session.ViewerID)

	if cached, _ := s.appCtx.Cache.Get(ctx, key); cached != "" {
		if n, err := strconv.ParseInt(cached, 10, 64); err == nil {
			_ = s.appCtx.Cache.Client.Expire(ctx, key, likeCountTTL).Err()
			return n, nil
		}
	}

	count, err := s.gw.CountLikers(ctx, s.session.ViewerID)
	if err != nil {
		return 0, fmt.Errorf("count likers: %w", err)
	}
	_ = s.appCtx.Cache.Set(ctx, key, strconv.FormatInt(count, 10), likeCountTTL)
	return count, nil
}

// Archived lists the viewer's saved-for-later profiles.
func (s *Service) Archived(ctx context.Context) ([]model.ArchivedProfile, error) {
	return s.gw.ListArchived(ctx, s.session.ViewerID)
}

// Unarchive releases one archived profile.
func (s *Service) Unarchive(ctx context.Context, archiveID string) error {
	return s.gw.RemoveArchive(ctx, s.session.ViewerID, archiveID)
}

// AnonymousComments lists comments received on the viewer's profile.
func (s *Service) AnonymousComments(ctx context.Context) ([]model.AnonymousComment, error) {
	return s.gw.ListAnonymousComments(ctx, s.session.ViewerID)
}

// PreMatchMessages lists the viewer's pending pre-match inbox.
func (s *Service) PreMatchMessages(ctx context.Context) ([]model.PreMatchMessage, error) {
	return s.gw.ListPreMatchMessages(ctx, s.session.ViewerID)
}

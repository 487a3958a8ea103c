// Package gateway defines the contract of the remote backend the engine
// delegates all persistence, matching, and balance bookkeeping to. The
// engine never owns durable state; it consumes these operations and
// keeps optimistic local mirrors.
package gateway

import (
	"context"
	"errors"

	"github.com/amoradev/amora/internal/model"
)

// ErrUnavailable marks a procedure the backend does not expose (or
// answered inconclusively). Callers fall back per their own policy.
var ErrUnavailable = errors.New("gateway: procedure unavailable")

// LikeResult is the atomic outcome of a like write: whether it closed a
// mutual match, and if so the match identifier.
type LikeResult struct {
	IsMatch bool
	MatchID string
}

// Unsubscribe stops a realtime subscription. Idempotent.
type Unsubscribe func()

type Gateway interface {
	// Discovery.
	FetchProfiles(ctx context.Context, viewerID string, q model.FilterQuery) ([]model.Profile, error)
	GetProfile(ctx context.Context, profileID string) (model.Profile, error)

	// Swipe outcomes. RecordLike detects a mutual match atomically with
	// the like write.
	RecordLike(ctx context.Context, viewerID, targetID string) (LikeResult, error)
	RecordDislike(ctx context.Context, viewerID, targetID string) error
	RecordArchive(ctx context.Context, viewerID, targetID string) (archiveID string, err error)
	RemoveArchive(ctx context.Context, viewerID, archiveID string) error
	ListArchived(ctx context.Context, viewerID string) ([]model.ArchivedProfile, error)

	// Pre-match messaging.
	SendPreMatchMessage(ctx context.Context, senderID, targetID, content string) error
	ListPreMatchMessages(ctx context.Context, receiverID string) ([]model.PreMatchMessage, error)
	DeletePreMatchMessage(ctx context.Context, messageID string) error
	// ConfirmMatchOnReply returns ErrUnavailable when the backend does
	// not implement the procedure; callers fall back to like-and-poll.
	ConfirmMatchOnReply(ctx context.Context, viewerID, targetID string) (LikeResult, error)
	GetMatch(ctx context.Context, userA, userB string) (model.Match, error)
	ListMatches(ctx context.Context, viewerID string) ([]model.Match, error)

	// Likes-received inbox.
	ListLikers(ctx context.Context, viewerID string, paginationToken *string, limit int) ([]model.Liker, *string, error)
	CountLikers(ctx context.Context, viewerID string) (int64, error)

	// Balance ("batidas"). The consume procedure is the source of truth:
	// it decides allow/deny atomically and reports the remaining state.
	ConsumeBalanceUnits(ctx context.Context, viewerID string, amount int) (ok bool, remaining model.BalanceState, err error)
	GetBalance(ctx context.Context, viewerID string) (model.BalanceState, error)

	// Conversations.
	SendMessage(ctx context.Context, msg model.Message) (model.Message, error)
	FetchMessages(ctx context.Context, matchID string) ([]model.Message, error)
	SubscribeToConversation(ctx context.Context, matchID string, onInsert func(model.Message)) (Unsubscribe, error)
	MarkRead(ctx context.Context, matchID, readerID string) error
	CountUnread(ctx context.Context, matchID, readerID string) (int64, error)

	// Media.
	UploadImage(ctx context.Context, data []byte, path string) (publicURL string, err error)

	// Anonymous interactions and stories.
	PostAnonymousComment(ctx context.Context, senderID, targetID, content string) error
	ListAnonymousComments(ctx context.Context, targetID string) ([]model.AnonymousComment, error)
	PostStory(ctx context.Context, authorID, content string) (model.Story, error)
	ListStories(ctx context.Context, limit int) ([]model.Story, error)
	ToggleStoryReaction(ctx context.Context, storyID, viewerID string) (reacted bool, err error)
	PostStoryComment(ctx context.Context, storyID, authorID, content string) (model.StoryComment, error)
}

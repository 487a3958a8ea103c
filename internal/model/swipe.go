package model

import "time"

// Action is the durable outcome of a swipe on a (viewer, profile) pair.
type Action string

const (
	ActionLike    Action = "like"
	ActionDislike Action = "dislike"
	ActionArchive Action = "archive"
	// ActionMessaged marks a candidate consumed by sending a pre-match
	// message; it implies interest and is recorded as a like.
	ActionMessaged Action = "messaged"
)

// Match is the mutual-like relationship unlocking a conversation.
type Match struct {
	ID        string    `json:"id"`
	UserA     string    `json:"user_a"`
	UserB     string    `json:"user_b"`
	CreatedAt time.Time `json:"created_at"`
}

// PreMatchMessage is a directed message sent before a mutual match
// exists. Replying consumes it: the reply confirms (or creates) the
// match and the message is deleted exactly once.
type PreMatchMessage struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Liker is one entry of the "who liked you" inbox.
type Liker struct {
	ProfileID string    `json:"profile_id"`
	LikedAt   time.Time `json:"liked_at"`
}

// ArchivedProfile is a profile the viewer set aside for later.
type ArchivedProfile struct {
	ArchiveID string  `json:"archive_id"`
	Profile   Profile `json:"profile"`
}

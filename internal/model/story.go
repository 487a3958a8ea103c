package model

import "time"

// Story is an anonymous ephemeral post ("secret"). Authorship is stored
// but never exposed alongside the content.
type Story struct {
	ID            string    `json:"id"`
	AuthorID      string    `json:"-"`
	Content       string    `json:"content"`
	ReactionCount int       `json:"reaction_count"`
	CommentCount  int       `json:"comment_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// StoryComment is a reply on a story, also anonymous to readers.
type StoryComment struct {
	ID        string    `json:"id"`
	StoryID   string    `json:"story_id"`
	AuthorID  string    `json:"-"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// AnonymousComment is a comment left directly on a profile without
// revealing the sender.
type AnonymousComment struct {
	ID        string    `json:"id"`
	TargetID  string    `json:"target_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

package db

import (
	"time"
)

// Profile table: one row per account, discovery attributes included.
type Profile struct {
	ID               string `gorm:"primaryKey;size:36"`
	DisplayName      string `gorm:"size:64;not null"`
	Age              int    `gorm:"not null;index:idx_discovery,priority:2"`
	Gender           string `gorm:"size:16;not null;index:idx_discovery,priority:1"`
	AvatarURL        string `gorm:"size:512"`
	PhotoURLs        []string `gorm:"serializer:json"`
	Bio              string   `gorm:"type:text"`
	Province         string   `gorm:"size:64;index:idx_discovery,priority:3"`
	Occupation       string   `gorm:"size:64"`
	Education        string   `gorm:"size:64"`
	Smokes           bool
	Drinks           bool
	HasChildren      bool
	Interests        []string `gorm:"serializer:json"`
	Languages        []string `gorm:"serializer:json"`
	Religion         string   `gorm:"size:64"`
	Politics         string   `gorm:"size:64"`
	RelationshipGoal string   `gorm:"size:32;index:idx_discovery,priority:4"`
	Tier             string   `gorm:"size:16;not null;default:free"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

// Credential holds PIN auth material, one row per profile.
type Credential struct {
	ProfileID string    `gorm:"primaryKey;size:36"`
	Phone     string    `gorm:"uniqueIndex;size:24;not null"`
	PINHash   string    `gorm:"size:255;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Swipe is a viewer's durable decision on a target.
//
// Composite PK (ViewerID, TargetID) gives the overwrite guarantee: one
// row per pair, the latest action wins. The reverse-lookup index makes
// the mutual-like check O(1).
type Swipe struct {
	ViewerID  string    `gorm:"primaryKey;size:36;index:idx_target_action,priority:3"`
	TargetID  string    `gorm:"primaryKey;size:36;index:idx_target_action,priority:1"`
	Action    string    `gorm:"size:16;not null;index:idx_target_action,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Archive is a profile the viewer set aside; separate from Swipe so an
// unarchive does not disturb swipe history.
type Archive struct {
	ID        string    `gorm:"primaryKey;size:36"`
	ViewerID  string    `gorm:"size:36;not null;uniqueIndex:idx_viewer_target"`
	TargetID  string    `gorm:"size:36;not null;uniqueIndex:idx_viewer_target"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Match rows store the pair in normalized order (UserA < UserB) so one
// unique index covers both directions.
type Match struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserA     string    `gorm:"size:36;not null;uniqueIndex:idx_pair"`
	UserB     string    `gorm:"size:36;not null;uniqueIndex:idx_pair"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Message rows are append-only per match.
type Message struct {
	ID         string    `gorm:"primaryKey;size:36"`
	MatchID    string    `gorm:"size:36;not null;index:idx_match_created,priority:1"`
	SenderID   string    `gorm:"size:36;not null"`
	ReceiverID string    `gorm:"size:36;not null"`
	Text       string    `gorm:"type:text"`
	ImageURL   string    `gorm:"size:512"`
	Read       bool      `gorm:"column:is_read;not null;default:false"`
	CreatedAt  time.Time `gorm:"index:idx_match_created,priority:2"`
}

// PreMatchMessage is deleted when the receiver replies.
type PreMatchMessage struct {
	ID         string    `gorm:"primaryKey;size:36"`
	SenderID   string    `gorm:"size:36;not null"`
	ReceiverID string    `gorm:"size:36;not null;index"`
	Content    string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// Balance is the batidas ledger: a daily allowance that rolls over at
// the period boundary plus purchased extras that never expire.
type Balance struct {
	ProfileID string    `gorm:"primaryKey;size:36"`
	Daily     int       `gorm:"not null"`
	Extra     int       `gorm:"not null"`
	Day       string    `gorm:"size:10;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Story is an anonymous ephemeral post.
type Story struct {
	ID        string    `gorm:"primaryKey;size:36"`
	AuthorID  string    `gorm:"size:36;not null;index"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

// StoryReaction toggles per (story, viewer).
type StoryReaction struct {
	StoryID   string    `gorm:"primaryKey;size:36"`
	ViewerID  string    `gorm:"primaryKey;size:36"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

type StoryComment struct {
	ID        string    `gorm:"primaryKey;size:36"`
	StoryID   string    `gorm:"size:36;not null;index"`
	AuthorID  string    `gorm:"size:36;not null"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// AnonymousComment lands in the target's inbox without a sender shown.
type AnonymousComment struct {
	ID        string    `gorm:"primaryKey;size:36"`
	SenderID  string    `gorm:"size:36;not null"`
	TargetID  string    `gorm:"size:36;not null;index"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Models lists every table for migration.
func Models() []any {
	return []any{
		&Profile{}, &Credential{}, &Swipe{}, &Archive{}, &Match{},
		&Message{}, &PreMatchMessage{}, &Balance{},
		&Story{}, &StoryReaction{}, &StoryComment{}, &AnonymousComment{},
	}
}

package model

import "time"

// Message is one entry of a conversation. Either Text or ImageURL (or
// both) is set; a message with neither is rejected before any send.
type Message struct {
	ID         string    `json:"id"`
	MatchID    string    `json:"match_id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Text       string    `json:"text,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

// Empty reports whether the message carries no content at all.
func (m Message) Empty() bool {
	return m.Text == "" && m.ImageURL == ""
}

// BalanceState mirrors the gateway's remaining message balance after an
// atomic consume: the daily allowance plus purchased extras.
type BalanceState struct {
	Daily int `json:"daily"`
	Extra int `json:"extra"`
}

// Total is the number of units still spendable.
func (b BalanceState) Total() int { return b.Daily + b.Extra }

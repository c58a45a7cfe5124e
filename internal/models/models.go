package models

import (
	"sort"
	"strings"
	"time"
)

// User is the slice of the account record the chat subsystem needs for
// display resolution. Account management lives elsewhere.
type User struct {
	ID       string `bson:"_id,omitempty" json:"id"`
	Username string `bson:"username" json:"username"`
	FullName string `bson:"full_name" json:"full_name"`
	Avatar   string `bson:"avatar,omitempty" json:"avatar,omitempty"`
	UserType string `bson:"user_type" json:"user_type"` // "user" or "mechanic"
}

// Conversation is a two-party chat. UnreadCount always carries an entry for
// both participants; absent keys are treated as 0.
type Conversation struct {
	ID             string           `bson:"_id,omitempty" json:"id"`
	Participants   []string         `bson:"participants" json:"participants"`
	ParticipantKey string           `bson:"participant_key" json:"-"`
	LastMessage    string           `bson:"last_message" json:"last_message"`
	UnreadCount    map[string]int64 `bson:"unread_count" json:"unread_count"`
	CreatedAt      time.Time        `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `bson:"updated_at" json:"updated_at"`
}

// Message belongs to exactly one conversation; the log is append-only and the
// only mutation is the one-way read flag flip.
type Message struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"chat_id"`
	SenderID       string    `bson:"sender_id" json:"sender_id"`
	ReceiverID     string    `bson:"receiver_id" json:"receiver_id"`
	Content        string    `bson:"content" json:"content"`
	Read           bool      `bson:"read" json:"read"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

// PairKey returns the canonical order-insensitive key for a participant pair.
// Both orderings of the same pair map to the same key, which backs the unique
// index that makes get-or-create race-safe.
func PairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// Other returns the participant of c that is not userID, or "" when userID is
// not a participant.
func (c *Conversation) Other(userID string) string {
	if !c.HasParticipant(userID) {
		return ""
	}
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// UnreadFor reads the unread counter for userID, defaulting absent keys to 0.
func (c *Conversation) UnreadFor(userID string) int64 {
	if c.UnreadCount == nil {
		return 0
	}
	return c.UnreadCount[userID]
}

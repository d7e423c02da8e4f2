package model

import "time"

// MaxMessageLength caps message text in characters.
const MaxMessageLength = 2000

// Message is a chat message inside a match conversation.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	FromUserID     string     `json:"fromUserId"`
	ToUserID       string     `json:"toUserId"`
	Text           string     `json:"text"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// Conversation is the inbox entry for an active match.
type Conversation struct {
	ID          string          `json:"id"`
	MatchID     string          `json:"matchId"`
	OtherUserID string          `json:"otherUserId"`
	Profile     *ProfileSummary `json:"profile,omitempty"`
	LastMessage *Message        `json:"lastMessage,omitempty"`
	UnreadCount int             `json:"unreadCount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

package model

// EventType names a realtime server event.
type EventType string

const (
	EventMessage  EventType = "message"
	EventTyping   EventType = "typing"
	EventRead     EventType = "read"
	EventInterest EventType = "interest"
	EventMatch    EventType = "match"
	EventError    EventType = "error"
	EventInfo     EventType = "info"
)

// Event is pushed to connected websocket clients.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

// TypingEvent tells the peer that the sender is composing a message.
type TypingEvent struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// ReadEvent tells the sender that messages were read.
type ReadEvent struct {
	ConversationID string `json:"conversationId"`
	ReaderID       string `json:"readerId"`
	Count          int64  `json:"count"`
}

package model

import "time"

// InterestStatus tracks the lifecycle of an interest.
type InterestStatus string

const (
	InterestPending   InterestStatus = "pending"
	InterestAccepted  InterestStatus = "accepted"
	InterestRejected  InterestStatus = "rejected"
	InterestWithdrawn InterestStatus = "withdrawn"
)

// IsValid checks if the status is known.
func (s InterestStatus) IsValid() bool {
	switch s {
	case InterestPending, InterestAccepted, InterestRejected, InterestWithdrawn:
		return true
	}
	return false
}

// Interest is a one-directional expression of interest.
type Interest struct {
	ID         string         `json:"id"`
	FromUserID string         `json:"fromUserId"`
	ToUserID   string         `json:"toUserId"`
	Status     InterestStatus `json:"status"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// InterestWithProfile pairs an interest with the other side's card.
type InterestWithProfile struct {
	Interest
	Profile *ProfileSummary `json:"profile,omitempty"`
}

// MatchStatus tracks whether a match is still live.
type MatchStatus string

const (
	MatchActive    MatchStatus = "active"
	MatchUnmatched MatchStatus = "unmatched"
)

// Match links two users after mutual interest. User1ID < User2ID.
type Match struct {
	ID             string      `json:"id"`
	User1ID        string      `json:"user1Id"`
	User2ID        string      `json:"user2Id"`
	ConversationID string      `json:"conversationId"`
	Status         MatchStatus `json:"status"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// Involves reports whether userID is a participant.
func (m *Match) Involves(userID string) bool {
	return m.User1ID == userID || m.User2ID == userID
}

// Other returns the participant that is not userID.
func (m *Match) Other(userID string) string {
	if m.User1ID == userID {
		return m.User2ID
	}
	return m.User1ID
}

// MatchWithProfile pairs a match with the other participant's card.
type MatchWithProfile struct {
	Match
	Profile *ProfileSummary `json:"profile,omitempty"`
}

// OrderedPair returns the two ids in ascending order.
func OrderedPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

// ConversationID derives the stable conversation key for two users.
func ConversationID(a, b string) string {
	lo, hi := OrderedPair(a, b)
	return lo + "_" + hi
}

// ShortlistEntry is a private bookmark of another profile.
type ShortlistEntry struct {
	UserID            string          `json:"userId"`
	ShortlistedUserID string          `json:"shortlistedUserId"`
	Note              string          `json:"note,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	Profile           *ProfileSummary `json:"profile,omitempty"`
}

package model

import "time"

// QuickPickActionType is what the user did with a pick.
type QuickPickActionType string

const (
	QuickPickLike QuickPickActionType = "like"
	QuickPickSkip QuickPickActionType = "skip"
)

// IsValid checks if the action is known.
func (a QuickPickActionType) IsValid() bool {
	return a == QuickPickLike || a == QuickPickSkip
}

// QuickPick is one candidate in a user's daily selection.
type QuickPick struct {
	Day     string         `json:"day"`
	Profile ProfileSummary `json:"profile"`
}

// QuickPickAction records a like or skip.
type QuickPickAction struct {
	UserID       string              `json:"userId"`
	TargetUserID string              `json:"targetUserId"`
	Action       QuickPickActionType `json:"action"`
	Day          string              `json:"day"`
	CreatedAt    time.Time           `json:"createdAt"`
}

// QuickPickDay formats the UTC day key used for seeding and caching.
func QuickPickDay(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

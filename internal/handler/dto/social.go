package dto

import (
	"github.com/aroosi/aroosi-api/internal/model"
)

// TargetRequest names another user.
type TargetRequest struct {
	ToUserID string `json:"toUserId"`
}

// RespondInterestRequest accepts or rejects a received interest.
type RespondInterestRequest struct {
	Status model.InterestStatus `json:"status"`
}

// InterestResultResponse is returned when an interest is sent or answered.
type InterestResultResponse struct {
	Interest *model.Interest `json:"interest"`
	Match    *model.Match    `json:"match,omitempty"`
	Matched  bool            `json:"matched"`
}

// ShortlistRequest is the body of POST /shortlist.
type ShortlistRequest struct {
	ToUserID string `json:"toUserId"`
	Note     string `json:"note"`
}

// QuickPickActionRequest is the body of POST /quick-picks/{userId}/action.
type QuickPickActionRequest struct {
	Action model.QuickPickActionType `json:"action"`
}

// QuickPickActionResponse reports a recorded action.
type QuickPickActionResponse struct {
	Action   model.QuickPickActionType `json:"action"`
	Interest *InterestResultResponse   `json:"interest,omitempty"`
}

// BlockRequest is the body of POST /safety/block.
type BlockRequest struct {
	UserID string `json:"userId"`
}

// ReportRequest is the body of POST /safety/report.
type ReportRequest struct {
	UserID      string             `json:"userId"`
	Reason      model.ReportReason `json:"reason"`
	Description string             `json:"description"`
}

// SendMessageRequest is the body of POST /conversations/{id}/messages.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// CountResponse reports how many rows an operation touched.
type CountResponse struct {
	Updated int64 `json:"updated"`
}

// DeviceRequest registers a push token.
type DeviceRequest struct {
	Token    string               `json:"token"`
	Platform model.DevicePlatform `json:"platform"`
}

// MarkReadRequest lists notification ids to mark read. Empty marks all.
type MarkReadRequest struct {
	IDs []string `json:"ids"`
}

// TrackUsageRequest is the body of POST /usage/track.
type TrackUsageRequest struct {
	Feature string `json:"feature"`
}

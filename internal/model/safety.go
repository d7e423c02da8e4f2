package model

import "time"

// Block hides two users from each other.
type Block struct {
	BlockerID string          `json:"blockerId"`
	BlockedID string          `json:"blockedId"`
	CreatedAt time.Time       `json:"createdAt"`
	Profile   *ProfileSummary `json:"profile,omitempty"`
}

// ReportReason categorizes a report.
type ReportReason string

const (
	ReportInappropriateContent ReportReason = "inappropriate_content"
	ReportHarassment           ReportReason = "harassment"
	ReportFakeProfile          ReportReason = "fake_profile"
	ReportSpam                 ReportReason = "spam"
	ReportSafetyConcern        ReportReason = "safety_concern"
	ReportUnderage             ReportReason = "underage"
	ReportOther                ReportReason = "other"
)

// IsValid checks if the reason is known.
func (r ReportReason) IsValid() bool {
	switch r {
	case ReportInappropriateContent, ReportHarassment, ReportFakeProfile,
		ReportSpam, ReportSafetyConcern, ReportUnderage, ReportOther:
		return true
	}
	return false
}

// ReportStatus is the moderation state of a report.
type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportReviewed  ReportStatus = "reviewed"
	ReportResolved  ReportStatus = "resolved"
	ReportDismissed ReportStatus = "dismissed"
)

// IsValid checks if the status is known.
func (s ReportStatus) IsValid() bool {
	switch s {
	case ReportPending, ReportReviewed, ReportResolved, ReportDismissed:
		return true
	}
	return false
}

// Report flags a user for moderation.
type Report struct {
	ID          string       `json:"id"`
	ReporterID  string       `json:"reporterId"`
	ReportedID  string       `json:"reportedId"`
	Reason      ReportReason `json:"reason"`
	Description string       `json:"description,omitempty"`
	Status      ReportStatus `json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

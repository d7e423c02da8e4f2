package dto

import (
	"time"

	"github.com/aroosi/aroosi-api/internal/model"
)

// SetBanRequest bans or unbans a user.
type SetBanRequest struct {
	Banned bool   `json:"banned"`
	Reason string `json:"reason"`
}

// SetPlanRequest grants a plan.
type SetPlanRequest struct {
	Plan      model.Plan `json:"plan"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// UpdateReportRequest moves a report through moderation.
type UpdateReportRequest struct {
	Status model.ReportStatus `json:"status"`
}

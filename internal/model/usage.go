package model

import "time"

// UsageEvent is one consumed unit of a metered feature.
type UsageEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Feature   Feature   `json:"feature"`
	CreatedAt time.Time `json:"createdAt"`
}

// UsageStatus is the quota state of one feature for a user.
type UsageStatus struct {
	Feature   Feature   `json:"feature"`
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Unlimited bool      `json:"unlimited"`
	Period    Period    `json:"period"`
	ResetAt   time.Time `json:"resetAt"`
}

// NewUsageStatus derives remaining quota from a counter value.
func NewUsageStatus(feature Feature, limit FeatureLimit, used int, now time.Time) UsageStatus {
	s := UsageStatus{
		Feature:   feature,
		Used:      used,
		Limit:     limit.Limit,
		Unlimited: limit.IsUnlimited(),
		Period:    limit.Period,
		ResetAt:   PeriodEnd(limit.Period, now),
	}
	if s.Unlimited {
		s.Remaining = Unlimited
		return s
	}
	s.Remaining = limit.Limit - used
	if s.Remaining < 0 {
		s.Remaining = 0
	}
	return s
}

// UsageSummary lists quota state for every feature.
type UsageSummary struct {
	Plan     Plan          `json:"plan"`
	Features []UsageStatus `json:"features"`
}

// UsageDay is one row of the usage history.
type UsageDay struct {
	Date   string          `json:"date"`
	Counts map[Feature]int `json:"counts"`
}

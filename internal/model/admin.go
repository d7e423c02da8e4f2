package model

// AdminStats is the dashboard overview.
type AdminStats struct {
	TotalUsers       int64          `json:"totalUsers"`
	ActiveUsers      int64          `json:"activeUsers"`
	BannedUsers      int64          `json:"bannedUsers"`
	UsersByPlan      map[Plan]int64 `json:"usersByPlan"`
	CompleteProfiles int64          `json:"completeProfiles"`
	ActiveMatches    int64          `json:"activeMatches"`
	MessagesToday    int64          `json:"messagesToday"`
	PendingReports   int64          `json:"pendingReports"`
	NewUsersToday    int64          `json:"newUsersToday"`
}

// AdminProfile is a user row in the admin profile list.
type AdminProfile struct {
	User    User     `json:"user"`
	Profile *Profile `json:"profile,omitempty"`
}

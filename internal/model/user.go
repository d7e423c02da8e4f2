// Package model defines domain entities for the application.
package model

import "time"

// Role controls access to administrative endpoints.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsValid checks if the role is known.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is an account. The matrimony profile lives in Profile.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	Role          Role       `json:"role"`
	Plan          Plan       `json:"plan"`
	PlanExpiresAt *time.Time `json:"planExpiresAt,omitempty"`
	Banned        bool       `json:"banned"`
	BannedReason  string     `json:"bannedReason,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	DeletedAt     *time.Time `json:"-"`
}

// EffectivePlan returns the plan in force at now.
// Paid plans fall back to free once PlanExpiresAt has passed.
func (u *User) EffectivePlan(now time.Time) Plan {
	if !u.Plan.IsValid() {
		return PlanFree
	}
	if u.Plan != PlanFree && u.PlanExpiresAt != nil && !now.Before(*u.PlanExpiresAt) {
		return PlanFree
	}
	return u.Plan
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsActive returns true if the account can sign in.
func (u *User) IsActive() bool {
	return u.DeletedAt == nil && !u.Banned
}

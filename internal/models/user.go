package models

import "time"

type UserRole string

const (
	UserRoleUser      UserRole = "user"
	UserRoleModerator UserRole = "moderator"
)

// User is the private credential record of a profile. It is never deleted,
// only deactivated.
type User struct {
	ID           string
	ProfileID    string
	Login        string
	PasswordHash []byte
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Session struct {
	Token     string    `json:"-"`
	ProfileID string    `json:"profileId"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

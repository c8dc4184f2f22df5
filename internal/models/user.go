package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a user's place in the organizational hierarchy.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleTeamLeader Role = "team-leader"
	RoleDeptHead   Role = "dept-head"
	RoleMember     Role = "member"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeamLeader, RoleDeptHead, RoleMember:
		return true
	}
	return false
}

// User represents an organization user. Team and department are foreign ids only.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	Password     string     `json:"-"`
	Name         string     `json:"name"`
	Role         Role       `json:"role"`
	TeamID       *uuid.UUID `json:"team_id,omitempty"`
	DepartmentID *uuid.UUID `json:"department_id,omitempty"`
	AvatarURL    *string    `json:"avatar_url,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         Role       `json:"role"`
	TeamID       *uuid.UUID `json:"team_id,omitempty"`
	DepartmentID *uuid.UUID `json:"department_id,omitempty"`
	AvatarURL    *string    `json:"avatar_url,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		TeamID:       u.TeamID,
		DepartmentID: u.DepartmentID,
		AvatarURL:    u.AvatarURL,
		CreatedAt:    u.CreatedAt,
	}
}

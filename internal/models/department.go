package models

import (
	"time"

	"github.com/google/uuid"
)

// Department belongs to a team and has an optional head.
type Department struct {
	ID         uuid.UUID  `json:"id"`
	TeamID     uuid.UUID  `json:"team_id"`
	Name       string     `json:"name"`
	DeptHeadID *uuid.UUID `json:"dept_head_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

package departments

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aura-org/backend/internal/models"
	"github.com/aura-org/backend/pkg/apperr"
	"github.com/aura-org/backend/pkg/database"
	"github.com/aura-org/backend/pkg/patch"
)

// Repository writes departments.
type Repository struct {
	db *database.DB
}

// NewRepository creates a departments repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// Update applies the present fields of p to department id.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, p UpdateParams) error {
	var upd patch.Update
	if p.Name.Set {
		upd.Add("name", p.Name.Value)
	}
	if p.DeptHeadID.Set {
		upd.Add("dept_head_id", p.DeptHeadID.Value)
	}
	if upd.Empty() {
		return apperr.Validation("no fields to update")
	}
	upd.Add("updated_at", time.Now().UTC())

	sql, args := upd.Statement("departments", "id", id)
	tag, err := r.db.Q(ctx).Exec(ctx, sql, args...)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.Conflict("user already heads another department of this team", err)
		}
		return database.Wrap(err, "update department")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("department not found")
	}
	return nil
}

// PromoteHead makes userID a dept-head placed in dept.
func (r *Repository) PromoteHead(ctx context.Context, userID uuid.UUID, dept models.Department) error {
	const q = `UPDATE users SET role = 'dept-head', team_id = $2, department_id = $3, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.db.Q(ctx).Exec(ctx, q, userID, dept.TeamID, dept.ID)
	if err != nil {
		return database.Wrap(err, "promote department head")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

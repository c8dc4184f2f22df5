package hierarchy

import (
	"context"

	"github.com/google/uuid"

	"github.com/aura-org/backend/internal/models"
	"github.com/aura-org/backend/pkg/apperr"
	"github.com/aura-org/backend/pkg/database"
)

// Repository is the user/department/team read-model.
type Repository struct {
	db *database.DB
}

// NewRepository creates a hierarchy repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, email, password_hash, name, role, team_id, department_id, avatar_url, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }, u *models.User) error {
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Name, &role, &u.TeamID, &u.DepartmentID, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return err
	}
	u.Role = models.Role(role)
	return nil
}

// User returns a user by ID, or a not_found error.
func (r *Repository) User(ctx context.Context, id uuid.UUID) (models.User, error) {
	var u models.User
	err := scanUser(r.db.Q(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id), &u)
	if database.IsNoRows(err) {
		return models.User{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return models.User{}, database.Wrap(err, "load user")
	}
	return u, nil
}

// TeamLeader returns the leader of a team, if any. The oldest leader wins when several exist.
func (r *Repository) TeamLeader(ctx context.Context, teamID uuid.UUID) (*uuid.UUID, error) {
	const q = `SELECT id FROM users WHERE team_id = $1 AND role = 'team-leader' ORDER BY created_at, id LIMIT 1`
	var id uuid.UUID
	err := r.db.Q(ctx).QueryRow(ctx, q, teamID).Scan(&id)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Wrap(err, "load team leader")
	}
	return &id, nil
}

// Position loads the hierarchy data AllowedCounterparts needs for u.
func (r *Repository) Position(ctx context.Context, u models.User) (Position, error) {
	var pos Position
	switch u.Role {
	case models.RoleTeamLeader:
		if u.TeamID == nil {
			return pos, nil
		}
		const q = `SELECT DISTINCT dept_head_id FROM departments WHERE team_id = $1 AND dept_head_id IS NOT NULL`
		ids, err := r.collectIDs(ctx, q, *u.TeamID)
		if err != nil {
			return pos, database.Wrap(err, "load department heads")
		}
		pos.TeamDeptHeadIDs = ids

	case models.RoleDeptHead:
		dept, err := r.headedDepartment(ctx, u)
		if err != nil {
			return pos, err
		}
		if dept == nil {
			return pos, nil
		}
		pos.HeadedDepartmentID = &dept.ID
		if pos.TeamLeaderID, err = r.TeamLeader(ctx, dept.TeamID); err != nil {
			return pos, err
		}
		const q = `SELECT id FROM users WHERE department_id = $1 AND role = 'member'`
		if pos.DepartmentMemberIDs, err = r.collectIDs(ctx, q, dept.ID); err != nil {
			return pos, database.Wrap(err, "load department members")
		}

	case models.RoleMember:
		if u.DepartmentID == nil {
			return pos, nil
		}
		const q = `SELECT dept_head_id FROM departments WHERE id = $1`
		err := r.db.Q(ctx).QueryRow(ctx, q, *u.DepartmentID).Scan(&pos.DepartmentHeadID)
		if err != nil && !database.IsNoRows(err) {
			return pos, database.Wrap(err, "load department head")
		}
	}
	return pos, nil
}

// headedDepartment returns the department u heads, preferring u's own department when u heads
// several (which only a broken dataset allows).
func (r *Repository) headedDepartment(ctx context.Context, u models.User) (*models.Department, error) {
	const q = `SELECT id, team_id, name, dept_head_id, created_at, updated_at FROM departments
		WHERE dept_head_id = $1
		ORDER BY (id = $2) DESC, created_at
		LIMIT 1`
	var d models.Department
	var own uuid.UUID
	if u.DepartmentID != nil {
		own = *u.DepartmentID
	}
	err := r.db.Q(ctx).QueryRow(ctx, q, u.ID, own).Scan(&d.ID, &d.TeamID, &d.Name, &d.DeptHeadID, &d.CreatedAt, &d.UpdatedAt)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, database.Wrap(err, "load headed department")
	}
	return &d, nil
}

// Department returns a department by ID, or a not_found error.
func (r *Repository) Department(ctx context.Context, id uuid.UUID) (models.Department, error) {
	const q = `SELECT id, team_id, name, dept_head_id, created_at, updated_at FROM departments WHERE id = $1`
	var d models.Department
	err := r.db.Q(ctx).QueryRow(ctx, q, id).Scan(&d.ID, &d.TeamID, &d.Name, &d.DeptHeadID, &d.CreatedAt, &d.UpdatedAt)
	if database.IsNoRows(err) {
		return models.Department{}, apperr.NotFound("department not found")
	}
	if err != nil {
		return models.Department{}, database.Wrap(err, "load department")
	}
	return d, nil
}

func (r *Repository) collectIDs(ctx context.Context, q string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.db.Q(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

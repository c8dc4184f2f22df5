package users

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aura-org/backend/internal/models"
	"github.com/aura-org/backend/pkg/apperr"
	"github.com/aura-org/backend/pkg/database"
	"github.com/aura-org/backend/pkg/patch"
)

// Repository persists users.
type Repository struct {
	db *database.DB
}

// NewRepository creates a users repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, email, password_hash, name, role, team_id, department_id, avatar_url, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (models.User, error) {
	var u models.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Name, &role, &u.TeamID, &u.DepartmentID,
		&u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	u.Role = models.Role(role)
	return u, err
}

// Get returns a user by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (models.User, error) {
	u, err := scanUser(r.db.Q(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if database.IsNoRows(err) {
		return models.User{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return models.User{}, database.Wrap(err, "load user")
	}
	return u, nil
}

// List returns all users ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.Q(ctx).Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY name, id`)
	if err != nil {
		return nil, database.Wrap(err, "list users")
	}
	defer rows.Close()
	list := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, database.Wrap(err, "scan user")
		}
		list = append(list, u)
	}
	return list, database.Wrap(rows.Err(), "list users")
}

// Insert stores u and fills its generated fields.
func (r *Repository) Insert(ctx context.Context, u *models.User) error {
	const q = `INSERT INTO users (email, password_hash, name, role, team_id, department_id, avatar_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns
	got, err := scanUser(r.db.Q(ctx).QueryRow(ctx, q, u.Email, u.Password, u.Name, string(u.Role),
		u.TeamID, u.DepartmentID, u.AvatarURL))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.Conflict("email already registered", err)
		}
		return database.Wrap(err, "create user")
	}
	*u = got
	return nil
}

// Update applies the present fields of p to user id.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, p UpdateParams) error {
	var upd patch.Update
	if p.Name.Set {
		upd.Add("name", p.Name.Value)
	}
	if p.Email.Set {
		upd.Add("email", p.Email.Value)
	}
	if p.PasswordHash.Set {
		upd.Add("password_hash", p.PasswordHash.Value)
	}
	if p.Role.Set {
		upd.Add("role", string(p.Role.Value))
	}
	if p.TeamID.Set {
		upd.Add("team_id", p.TeamID.Value)
	}
	if p.DepartmentID.Set {
		upd.Add("department_id", p.DepartmentID.Value)
	}
	if p.AvatarURL.Set {
		upd.Add("avatar_url", p.AvatarURL.Value)
	}
	if upd.Empty() {
		return apperr.Validation("no fields to update")
	}
	upd.Add("updated_at", time.Now().UTC())

	sql, args := upd.Statement("users", "id", id)
	tag, err := r.db.Q(ctx).Exec(ctx, sql, args...)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.Conflict("email already registered", err)
		}
		return database.Wrap(err, "update user")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

// ClaimDepartmentHead names userID head of departmentID when the department has no head.
func (r *Repository) ClaimDepartmentHead(ctx context.Context, departmentID, userID uuid.UUID) error {
	const claim = `UPDATE departments SET dept_head_id = $2, updated_at = NOW()
		WHERE id = $1 AND (dept_head_id IS NULL OR dept_head_id = $2)`
	q := r.db.Q(ctx)
	tag, err := q.Exec(ctx, claim, departmentID, userID)
	if err != nil {
		return database.Wrap(err, "claim department head")
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM departments WHERE id = $1)`, departmentID).Scan(&exists); err != nil {
		return database.Wrap(err, "check department")
	}
	if !exists {
		return apperr.NotFound("department not found")
	}
	return apperr.Conflict("department already has a head", nil)
}

// Delete removes user id.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Q(ctx).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return database.Wrap(err, "delete user")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

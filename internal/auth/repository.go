package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/aura-org/backend/internal/models"
	"github.com/aura-org/backend/pkg/apperr"
	"github.com/aura-org/backend/pkg/database"
)

// Repository reads credentials and profiles for login.
type Repository struct {
	db *database.DB
}

// NewRepository creates an auth repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, email, password_hash, name, role, team_id, department_id, avatar_url, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Name, &role, &u.TeamID, &u.DepartmentID,
		&u.AvatarURL, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

// GetByEmail returns a user by email, case-insensitively.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = $1`
	u, err := scanUser(r.db.Q(ctx).QueryRow(ctx, q, strings.ToLower(strings.TrimSpace(email))))
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("user not found")
	}
	return u, database.Wrap(err, "load user")
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.Q(ctx).QueryRow(ctx, q, id))
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("user not found")
	}
	return u, database.Wrap(err, "load user")
}

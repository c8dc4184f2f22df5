// Package users manages organization users and keeps their private chats in line with
// hierarchy changes.
package users

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-org/backend/internal/chats"
	"github.com/aura-org/backend/internal/models"
	"github.com/aura-org/backend/pkg/apperr"
	"github.com/aura-org/backend/pkg/database"
	"github.com/aura-org/backend/pkg/patch"
	"github.com/aura-org/backend/pkg/utils"
)

// Store persists users.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Insert(ctx context.Context, u *models.User) error
	Update(ctx context.Context, id uuid.UUID, p UpdateParams) error
	Delete(ctx context.Context, id uuid.UUID) error
	ClaimDepartmentHead(ctx context.Context, departmentID, userID uuid.UUID) error
}

// Reconciler re-derives a user's private chats.
type Reconciler interface {
	Reconcile(ctx context.Context, userID uuid.UUID) (chats.ReconcileResult, error)
}

// ChatPurger removes a user from every chat.
type ChatPurger interface {
	PurgeUser(ctx context.Context, userID uuid.UUID) (int, error)
}

// CreateParams are the fields of a new user.
type CreateParams struct {
	Email        string
	Password     string
	Name         string
	Role         models.Role
	TeamID       *uuid.UUID
	DepartmentID *uuid.UUID
	AvatarURL    *string
}

// UpdateParams holds the present fields of a user patch.
type UpdateParams struct {
	Name         patch.Field[string]
	Email        patch.Field[string]
	PasswordHash patch.Field[string]
	Role         patch.Field[models.Role]
	TeamID       patch.Field[*uuid.UUID]
	DepartmentID patch.Field[*uuid.UUID]
	AvatarURL    patch.Field[*string]
}

// affectsHierarchy reports whether the patch can change who the user may chat with.
func (p UpdateParams) affectsHierarchy() bool {
	return p.Role.Set || p.TeamID.Set || p.DepartmentID.Set
}

// Result is a user together with the chat changes its write caused.
type Result struct {
	User  models.UserPublic      `json:"user"`
	Chats chats.ReconcileResult `json:"chats"`
}

// Service implements user lifecycle operations.
type Service struct {
	db        database.Runner
	store     Store
	reconcile Reconciler
	purger    ChatPurger
	logger    *zap.Logger
}

// NewService creates a users service.
func NewService(db database.Runner, store Store, reconcile Reconciler, purger ChatPurger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, store: store, reconcile: reconcile, purger: purger, logger: logger}
}

// emailValidator is the engine gin binds request bodies with, so patch fields get the same
// "email" rule as bound ones.
func emailValidator() *validator.Validate {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		return v
	}
	return validator.New()
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := emailValidator().Var(email, "required,email"); err != nil {
		return "", apperr.Validation("invalid email")
	}
	return email, nil
}

// Create stores a new user and provisions its private chats. A dept-head created with a
// department_id becomes that department's head when it has none; a department headed by someone
// else is a conflict.
func (s *Service) Create(ctx context.Context, p CreateParams) (Result, error) {
	email, err := normalizeEmail(p.Email)
	if err != nil {
		return Result{}, err
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return Result{}, apperr.Validation("name is required")
	}
	if !utils.PasswordLongEnough(p.Password) {
		return Result{}, apperr.Validation("password must be at least 6 characters")
	}
	if !p.Role.Valid() {
		return Result{}, apperr.Validation("invalid role")
	}
	hash, err := utils.HashPassword(p.Password)
	if err != nil {
		return Result{}, apperr.Internal("hash password", err)
	}

	u := models.User{
		Email:        email,
		Password:     hash,
		Name:         name,
		Role:         p.Role,
		TeamID:       p.TeamID,
		DepartmentID: p.DepartmentID,
		AvatarURL:    p.AvatarURL,
	}
	err = s.db.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.Insert(ctx, &u); err != nil {
			return err
		}
		if u.Role == models.RoleDeptHead && u.DepartmentID != nil {
			return s.store.ClaimDepartmentHead(ctx, *u.DepartmentID, u.ID)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	s.logger.Info("user created", zap.String("user_id", u.ID.String()), zap.String("role", string(u.Role)))

	res, err := s.reconcile.Reconcile(ctx, u.ID)
	if err != nil {
		return Result{User: u.ToPublic()}, err
	}
	return Result{User: u.ToPublic(), Chats: res}, nil
}

// Update applies a patch to user id. Changes to role, team or department re-derive the user's
// private chats once the patch is committed.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (Result, error) {
	if p.Email.Set {
		email, err := normalizeEmail(p.Email.Value)
		if err != nil {
			return Result{}, err
		}
		p.Email.Value = email
	}
	if p.Name.Set {
		p.Name.Value = strings.TrimSpace(p.Name.Value)
		if p.Name.Value == "" {
			return Result{}, apperr.Validation("name must not be empty")
		}
	}
	if p.Role.Set && !p.Role.Value.Valid() {
		return Result{}, apperr.Validation("invalid role")
	}

	var u models.User
	err := s.db.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.Update(ctx, id, p); err != nil {
			return err
		}
		var err error
		u, err = s.store.Get(ctx, id)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	out := Result{User: u.ToPublic()}
	if !p.affectsHierarchy() {
		return out, nil
	}
	res, err := s.reconcile.Reconcile(ctx, id)
	if err != nil {
		return out, err
	}
	out.Chats = res
	return out, nil
}

// Delete removes user id, the private chats it took part in and its group chat memberships,
// in one transaction. No reconciliation runs: the user has no hierarchy position left.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	var purged int
	err := s.db.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.Get(ctx, id); err != nil {
			return err
		}
		var err error
		if purged, err = s.purger.PurgeUser(ctx, id); err != nil {
			return err
		}
		return s.store.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.String("user_id", id.String()), zap.Int("private_chats_removed", purged))
	return nil
}

// Get returns user id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (models.User, error) {
	var u models.User
	err := s.db.Run(ctx, func(ctx context.Context) error {
		var err error
		u, err = s.store.Get(ctx, id)
		return err
	})
	return u, err
}

// List returns every user.
func (s *Service) List(ctx context.Context) ([]models.User, error) {
	var list []models.User
	err := s.db.Run(ctx, func(ctx context.Context) error {
		var err error
		list, err = s.store.List(ctx)
		return err
	})
	return list, err
}

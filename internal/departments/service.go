// Package departments handles department edits that move the hierarchy, chiefly head changes.
package departments

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-org/backend/internal/chats"
	"github.com/aura-org/backend/internal/models"
	"github.com/aura-org/backend/pkg/apperr"
	"github.com/aura-org/backend/pkg/database"
	"github.com/aura-org/backend/pkg/patch"
)

// Store writes departments and their heads.
type Store interface {
	Update(ctx context.Context, id uuid.UUID, p UpdateParams) error
	PromoteHead(ctx context.Context, userID uuid.UUID, dept models.Department) error
}

// Directory reads the hierarchy.
type Directory interface {
	User(ctx context.Context, id uuid.UUID) (models.User, error)
	Department(ctx context.Context, id uuid.UUID) (models.Department, error)
	TeamLeader(ctx context.Context, teamID uuid.UUID) (*uuid.UUID, error)
}

// Reconciler re-derives private chats for a batch of users.
type Reconciler interface {
	ReconcileAll(ctx context.Context, userIDs ...uuid.UUID) (chats.ReconcileResult, error)
}

// UpdateParams holds the present fields of a department patch.
type UpdateParams struct {
	Name       patch.Field[string]
	DeptHeadID patch.Field[*uuid.UUID]
}

// Result is the department after the update and the chat changes it caused.
type Result struct {
	Department models.Department     `json:"department"`
	Chats      chats.ReconcileResult `json:"chats"`
}

// Service implements department updates.
type Service struct {
	db        database.Runner
	store     Store
	dir       Directory
	reconcile Reconciler
	logger    *zap.Logger
}

// NewService creates a departments service.
func NewService(db database.Runner, store Store, dir Directory, reconcile Reconciler, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, store: store, dir: dir, reconcile: reconcile, logger: logger}
}

// Get returns department id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (models.Department, error) {
	var d models.Department
	err := s.db.Run(ctx, func(ctx context.Context) error {
		var err error
		d, err = s.dir.Department(ctx, id)
		return err
	})
	return d, err
}

// Update applies p to department id. A new head is promoted to dept-head of the department in
// the same transaction; once committed, the old head, the new head and the team leader are
// reconciled so their private chats follow the change.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (Result, error) {
	if p.Name.Set {
		p.Name.Value = strings.TrimSpace(p.Name.Value)
		if p.Name.Value == "" {
			return Result{}, apperr.Validation("name must not be empty")
		}
	}

	var before, after models.Department
	var leader *uuid.UUID
	err := s.db.InTx(ctx, func(ctx context.Context) error {
		var err error
		if before, err = s.dir.Department(ctx, id); err != nil {
			return err
		}
		if newHead := p.DeptHeadID.Value; p.DeptHeadID.Set && newHead != nil {
			u, err := s.dir.User(ctx, *newHead)
			if err != nil {
				return err
			}
			if u.Role == models.RoleAdmin || u.Role == models.RoleTeamLeader {
				return apperr.Validation("department head must be a member or dept-head")
			}
		}
		if err := s.store.Update(ctx, id, p); err != nil {
			return err
		}
		if newHead := p.DeptHeadID.Value; p.DeptHeadID.Set && newHead != nil {
			if err := s.store.PromoteHead(ctx, *newHead, before); err != nil {
				return err
			}
		}
		if after, err = s.dir.Department(ctx, id); err != nil {
			return err
		}
		leader, err = s.dir.TeamLeader(ctx, before.TeamID)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	out := Result{Department: after}
	if sameHead(before.DeptHeadID, after.DeptHeadID) {
		return out, nil
	}
	s.logger.Info("department head changed",
		zap.String("department_id", id.String()),
		zap.Stringp("old_head_id", idString(before.DeptHeadID)),
		zap.Stringp("new_head_id", idString(after.DeptHeadID)))

	res, err := s.reconcile.ReconcileAll(ctx, deref(before.DeptHeadID), deref(after.DeptHeadID), deref(leader))
	out.Chats = res
	return out, err
}

func sameHead(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func deref(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}

func idString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

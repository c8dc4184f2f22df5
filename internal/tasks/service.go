// Package tasks applies task assignment and deletion together with their group chats.
package tasks

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-org/backend/pkg/apperr"
	"github.com/aura-org/backend/pkg/database"
)

// Store persists task assignments.
type Store interface {
	Assignees(ctx context.Context, taskID uuid.UUID) ([]uuid.UUID, error)
	ReplaceAssignments(ctx context.Context, taskID uuid.UUID, userIDs []uuid.UUID) error
	AddAssignments(ctx context.Context, taskID uuid.UUID, userIDs []uuid.UUID) error
	Delete(ctx context.Context, taskID uuid.UUID) error
}

// GroupChats manages the group chat of a task.
type GroupChats interface {
	AssignMembers(ctx context.Context, taskID uuid.UUID, memberIDs []uuid.UUID) (uuid.UUID, error)
	AddMembers(ctx context.Context, taskID uuid.UUID, memberIDs []uuid.UUID) (uuid.UUID, error)
}

// ChatDestroyer removes a task's group chat.
type ChatDestroyer interface {
	GroupChatForTask(ctx context.Context, taskID uuid.UUID) (uuid.UUID, bool, error)
	DestroyChat(ctx context.Context, chatID uuid.UUID) error
}

// Service coordinates task assignment with group chat membership.
type Service struct {
	db     database.Runner
	store  Store
	groups GroupChats
	chats  ChatDestroyer
	logger *zap.Logger
}

// NewService creates a tasks service.
func NewService(db database.Runner, store Store, groups GroupChats, chats ChatDestroyer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, store: store, groups: groups, chats: chats, logger: logger}
}

// AssignResult is returned by Assign.
type AssignResult struct {
	TaskID  uuid.UUID   `json:"task_id"`
	ChatID  uuid.UUID   `json:"chat_id"`
	UserIDs []uuid.UUID `json:"user_ids"`
}

// Assign replaces the assignees of taskID and the membership of its group chat in one transaction.
// An unknown task fails with not_found from the group chat step and nothing is kept.
func (s *Service) Assign(ctx context.Context, taskID uuid.UUID, userIDs []uuid.UUID) (AssignResult, error) {
	return s.apply(ctx, taskID, userIDs, s.store.ReplaceAssignments, s.groups.AssignMembers)
}

// AddAssignees assigns userIDs on top of the current assignees and adds them to the group chat.
func (s *Service) AddAssignees(ctx context.Context, taskID uuid.UUID, userIDs []uuid.UUID) (AssignResult, error) {
	return s.apply(ctx, taskID, userIDs, s.store.AddAssignments, s.groups.AddMembers)
}

func (s *Service) apply(ctx context.Context, taskID uuid.UUID, userIDs []uuid.UUID,
	assign func(context.Context, uuid.UUID, []uuid.UUID) error,
	sync func(context.Context, uuid.UUID, []uuid.UUID) (uuid.UUID, error)) (AssignResult, error) {
	ids := uniqueIDs(userIDs)
	for _, id := range ids {
		if id == uuid.Nil {
			return AssignResult{}, apperr.Validation("user_ids must not contain a nil id")
		}
	}
	var chatID uuid.UUID
	err := s.db.InTx(ctx, func(ctx context.Context) error {
		if err := assign(ctx, taskID, ids); err != nil {
			return err
		}
		var err error
		chatID, err = sync(ctx, taskID, ids)
		return err
	})
	if err != nil {
		return AssignResult{}, err
	}
	return AssignResult{TaskID: taskID, ChatID: chatID, UserIDs: ids}, nil
}

// Assignees returns the current assignees of taskID.
func (s *Service) Assignees(ctx context.Context, taskID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.Run(ctx, func(ctx context.Context) error {
		var err error
		ids, err = s.store.Assignees(ctx, taskID)
		return err
	})
	return ids, err
}

// Delete removes taskID along with its group chat and that chat's history.
func (s *Service) Delete(ctx context.Context, taskID uuid.UUID) error {
	err := s.db.InTx(ctx, func(ctx context.Context) error {
		chatID, ok, err := s.chats.GroupChatForTask(ctx, taskID)
		if err != nil {
			return err
		}
		if ok {
			if err := s.chats.DestroyChat(ctx, chatID); err != nil {
				return err
			}
		}
		return s.store.Delete(ctx, taskID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("task deleted", zap.String("task_id", taskID.String()))
	return nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

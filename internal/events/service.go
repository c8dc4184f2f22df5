// Package events deletes events together with their tasks and the tasks' group chats.
package events

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-org/backend/pkg/database"
)

// Store reads and deletes events.
type Store interface {
	TaskIDs(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error)
	Delete(ctx context.Context, eventID uuid.UUID) error
}

// ChatDestroyer removes task group chats.
type ChatDestroyer interface {
	GroupChatForTask(ctx context.Context, taskID uuid.UUID) (uuid.UUID, bool, error)
	DestroyChat(ctx context.Context, chatID uuid.UUID) error
}

// DeleteResult reports what an event deletion removed.
type DeleteResult struct {
	EventID        uuid.UUID `json:"event_id"`
	TasksDeleted   int       `json:"tasks_deleted"`
	ChatsDestroyed int       `json:"chats_destroyed"`
}

// Service implements event deletion.
type Service struct {
	db     database.Runner
	store  Store
	chats  ChatDestroyer
	logger *zap.Logger
}

// NewService creates an events service.
func NewService(db database.Runner, store Store, chats ChatDestroyer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, store: store, chats: chats, logger: logger}
}

// Delete removes eventID, its tasks and every task group chat with its history, in one
// transaction.
func (s *Service) Delete(ctx context.Context, eventID uuid.UUID) (DeleteResult, error) {
	res := DeleteResult{EventID: eventID}
	err := s.db.InTx(ctx, func(ctx context.Context) error {
		taskIDs, err := s.store.TaskIDs(ctx, eventID)
		if err != nil {
			return err
		}
		for _, taskID := range taskIDs {
			chatID, ok, err := s.chats.GroupChatForTask(ctx, taskID)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := s.chats.DestroyChat(ctx, chatID); err != nil {
				return err
			}
			res.ChatsDestroyed++
		}
		res.TasksDeleted = len(taskIDs)
		return s.store.Delete(ctx, eventID)
	})
	if err != nil {
		return DeleteResult{EventID: eventID}, err
	}
	s.logger.Info("event deleted",
		zap.String("event_id", eventID.String()),
		zap.Int("tasks", res.TasksDeleted),
		zap.Int("chats", res.ChatsDestroyed))
	return res, nil
}

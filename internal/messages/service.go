// Package messages appends chat messages behind a membership guard and serves ordered history
// with read tracking.
package messages

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-org/backend/internal/metrics"
	"github.com/aura-org/backend/internal/models"
	"github.com/aura-org/backend/pkg/apperr"
	"github.com/aura-org/backend/pkg/database"
)

// Store persists messages.
type Store interface {
	ChatExists(ctx context.Context, chatID uuid.UUID) (bool, error)
	IsParticipant(ctx context.Context, chatID, userID uuid.UUID) (bool, error)
	HoldParticipant(ctx context.Context, chatID, userID uuid.UUID) (bool, error)
	Insert(ctx context.Context, chatID, senderID uuid.UUID, content string) (models.Message, error)
	List(ctx context.Context, chatID uuid.UUID) ([]models.Message, error)
	MarkRead(ctx context.Context, chatID, readerID uuid.UUID) (int64, error)
}

// Service implements message send and history.
type Service struct {
	db     database.Runner
	store  Store
	logger *zap.Logger
}

// NewService creates a messages service.
func NewService(db database.Runner, store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, store: store, logger: logger}
}

// Send appends content to chatID on behalf of senderID, who must be a participant. The
// membership row stays locked until the message is stored, so a concurrent removal of the sender
// either lands first and rejects the send or waits for it.
func (s *Service) Send(ctx context.Context, chatID, senderID uuid.UUID, content string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, apperr.Validation("message content is required")
	}

	var msg models.Message
	err := s.db.InTx(ctx, func(ctx context.Context) error {
		if err := s.authorize(ctx, chatID, &senderID, s.store.HoldParticipant); err != nil {
			return err
		}
		var err error
		msg, err = s.store.Insert(ctx, chatID, senderID, content)
		return err
	})
	if err != nil {
		return models.Message{}, err
	}
	metrics.ObserveMessageSent()
	return msg, nil
}

// List returns the history of chatID in creation order. A nil requester skips the membership
// check and never marks anything read. With markRead, messages from others become read in the
// same transaction that reads the history.
func (s *Service) List(ctx context.Context, chatID uuid.UUID, requesterID *uuid.UUID, markRead bool) ([]models.Message, error) {
	var list []models.Message
	err := s.db.InTx(ctx, func(ctx context.Context) error {
		if err := s.authorize(ctx, chatID, requesterID, s.store.IsParticipant); err != nil {
			return err
		}
		if markRead && requesterID != nil {
			n, err := s.store.MarkRead(ctx, chatID, *requesterID)
			if err != nil {
				return err
			}
			if n > 0 {
				s.logger.Debug("messages marked read", zap.String("chat_id", chatID.String()),
					zap.String("reader_id", requesterID.String()), zap.Int64("count", n))
			}
		}
		var err error
		list, err = s.store.List(ctx, chatID)
		return err
	})
	return list, err
}

func (s *Service) authorize(ctx context.Context, chatID uuid.UUID, userID *uuid.UUID,
	isMember func(ctx context.Context, chatID, userID uuid.UUID) (bool, error)) error {
	ok, err := s.store.ChatExists(ctx, chatID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("chat not found")
	}
	if userID == nil {
		return nil
	}
	member, err := isMember(ctx, chatID, *userID)
	if err != nil {
		return err
	}
	if !member {
		return apperr.Forbidden("not a participant of this chat")
	}
	return nil
}

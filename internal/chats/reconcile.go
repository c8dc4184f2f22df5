package chats

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-org/backend/internal/hierarchy"
	"github.com/aura-org/backend/internal/metrics"
	"github.com/aura-org/backend/internal/models"
	"github.com/aura-org/backend/pkg/apperr"
	"github.com/aura-org/backend/pkg/database"
)

// Directory is the hierarchy read-model consumed by reconciliation.
type Directory interface {
	User(ctx context.Context, id uuid.UUID) (models.User, error)
	Position(ctx context.Context, u models.User) (hierarchy.Position, error)
}

// PrivateChats is the part of the registry reconciliation drives.
type PrivateChats interface {
	EnsurePrivateChat(ctx context.Context, u1, u2 uuid.UUID) (uuid.UUID, bool, error)
	DestroyChat(ctx context.Context, chatID uuid.UUID) error
	FindPrivateChatsOf(ctx context.Context, userID uuid.UUID) ([]PrivateChatRef, error)
}

// Locker serializes reconciliation passes for one user. Lock returns a release function.
type Locker interface {
	Lock(ctx context.Context, userID uuid.UUID) (unlock func(), err error)
}

// ReconcileResult counts the changes a pass made.
type ReconcileResult struct {
	Created int `json:"chats_created"`
	Deleted int `json:"chats_deleted"`
}

// Engine brings a user's private chats in line with the hierarchy.
type Engine struct {
	db     database.Runner
	dir    Directory
	chats  PrivateChats
	locker Locker
	logger *zap.Logger
}

// NewEngine creates a reconciliation engine. locker may be nil, in which case passes for the
// same user are not serialized and rely on per-operation atomicity alone.
func NewEngine(db database.Runner, dir Directory, chats PrivateChats, locker Locker, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{db: db, dir: dir, chats: chats, locker: locker, logger: logger}
}

// Reconcile creates the private chats userID is entitled to and destroys the ones it no longer
// is. Admins are exempt: their chats are neither created nor pruned.
//
// Each create and destroy commits on its own; an interrupted pass leaves a state that the next
// pass repairs.
func (e *Engine) Reconcile(ctx context.Context, userID uuid.UUID) (ReconcileResult, error) {
	start := time.Now()
	res, err := e.reconcile(ctx, userID)
	if err != nil {
		metrics.ObserveReconcile("error", time.Since(start))
		e.logger.Error("reconcile failed", zap.String("user_id", userID.String()), zap.Error(err))
		return res, err
	}
	metrics.ObserveReconcile("ok", time.Since(start))
	if res.Created > 0 || res.Deleted > 0 {
		e.logger.Info("reconciled private chats",
			zap.String("user_id", userID.String()),
			zap.Int("created", res.Created),
			zap.Int("deleted", res.Deleted))
	}
	return res, nil
}

func (e *Engine) reconcile(ctx context.Context, userID uuid.UUID) (ReconcileResult, error) {
	var res ReconcileResult
	if e.locker != nil {
		unlock, err := e.locker.Lock(ctx, userID)
		if err != nil {
			return res, err
		}
		defer unlock()
	}

	err := e.db.Run(ctx, func(ctx context.Context) error {
		user, err := e.dir.User(ctx, userID)
		if err != nil {
			return err
		}
		if user.Role == models.RoleAdmin {
			return nil
		}
		allowed, err := e.allowed(ctx, user)
		if err != nil {
			return err
		}

		for _, other := range allowed.Slice() {
			_, created, err := e.chats.EnsurePrivateChat(ctx, userID, other)
			if err != nil {
				return err
			}
			if created {
				res.Created++
			}
		}

		existing, err := e.chats.FindPrivateChatsOf(ctx, userID)
		if err != nil {
			return err
		}
		for _, ref := range existing {
			if allowed.Has(ref.OtherUserID) {
				continue
			}
			if err := e.chats.DestroyChat(ctx, ref.ChatID); err != nil {
				return err
			}
			res.Deleted++
		}
		return nil
	})
	return res, err
}

// ReconcileAll reconciles each distinct id in order, skipping nil ids, and stops at the first
// failure. Results are summed.
func (e *Engine) ReconcileAll(ctx context.Context, userIDs ...uuid.UUID) (ReconcileResult, error) {
	var total ReconcileResult
	seen := map[uuid.UUID]bool{}
	for _, id := range userIDs {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		res, err := e.Reconcile(ctx, id)
		total.Created += res.Created
		total.Deleted += res.Deleted
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (e *Engine) allowed(ctx context.Context, user models.User) (hierarchy.Set, error) {
	if user.Role == models.RoleAdmin {
		return hierarchy.Set{}, nil
	}
	pos, err := e.dir.Position(ctx, user)
	if err != nil {
		return nil, err
	}
	return hierarchy.AllowedCounterparts(user, pos), nil
}

// EnsurePair returns the private chat between a and b, creating it when missing. The pair must
// be hierarchy counterparts, so the chat is one a later reconciliation keeps.
func (e *Engine) EnsurePair(ctx context.Context, a, b uuid.UUID) (chatID uuid.UUID, created bool, err error) {
	if a == b {
		return uuid.Nil, false, apperr.Validation("a private chat needs two distinct users")
	}
	err = e.db.Run(ctx, func(ctx context.Context) error {
		user, err := e.dir.User(ctx, a)
		if err != nil {
			return err
		}
		if _, err := e.dir.User(ctx, b); err != nil {
			return err
		}
		allowed, err := e.allowed(ctx, user)
		if err != nil {
			return err
		}
		if !allowed.Has(b) {
			return apperr.Forbidden("users are not hierarchy counterparts")
		}
		chatID, created, err = e.chats.EnsurePrivateChat(ctx, a, b)
		return err
	})
	return chatID, created, err
}

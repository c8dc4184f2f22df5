package chats

import (
	"bytes"
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-org/backend/internal/metrics"
	"github.com/aura-org/backend/internal/models"
	"github.com/aura-org/backend/pkg/apperr"
	"github.com/aura-org/backend/pkg/database"
)

// PrivateChatRef is a private chat seen from one of its participants.
type PrivateChatRef struct {
	ChatID      uuid.UUID
	OtherUserID uuid.UUID
}

// Registry creates, finds and destroys chats and their participant sets. Every mutating method
// is atomic on its own and joins the caller's transaction when one is open.
type Registry struct {
	db     *database.DB
	logger *zap.Logger
}

// NewRegistry creates a chat registry.
func NewRegistry(db *database.DB, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{db: db, logger: logger}
}

// orderedPair normalizes an unordered pair so (a,b) and (b,a) hit the same unique index entry.
func orderedPair(a, b uuid.UUID) (low, high uuid.UUID) {
	if bytes.Compare(a[:], b[:]) < 0 {
		return a, b
	}
	return b, a
}

// EnsurePrivateChat returns the private chat between u1 and u2, creating it with both
// participants when missing. created reports whether this call inserted it.
func (r *Registry) EnsurePrivateChat(ctx context.Context, u1, u2 uuid.UUID) (chatID uuid.UUID, created bool, err error) {
	if u1 == u2 {
		return uuid.Nil, false, apperr.Validation("a private chat needs two distinct participants")
	}
	low, high := orderedPair(u1, u2)

	err = r.db.InTx(ctx, func(ctx context.Context) error {
		q := r.db.Q(ctx)
		const find = `SELECT id FROM chats WHERE type = 'private' AND pair_low = $1 AND pair_high = $2`
		err := q.QueryRow(ctx, find, low, high).Scan(&chatID)
		if err == nil {
			return nil
		}
		if !database.IsNoRows(err) {
			return database.Wrap(err, "find private chat")
		}

		// a concurrent creator of the same pair makes this a no-op; re-read its row
		const insert = `INSERT INTO chats (type, pair_low, pair_high) VALUES ('private', $1, $2)
			ON CONFLICT (pair_low, pair_high) DO NOTHING
			RETURNING id`
		err = q.QueryRow(ctx, insert, low, high).Scan(&chatID)
		if database.IsNoRows(err) {
			return database.Wrap(q.QueryRow(ctx, find, low, high).Scan(&chatID), "find private chat")
		}
		if err != nil {
			return database.Wrap(err, "create private chat")
		}

		const addParticipants = `INSERT INTO chat_participants (chat_id, user_id) VALUES ($1, $2), ($1, $3)`
		if _, err := q.Exec(ctx, addParticipants, chatID, low, high); err != nil {
			return database.Wrap(err, "add private chat participants")
		}
		created = true
		return nil
	})
	if err != nil {
		return uuid.Nil, false, err
	}
	if created {
		metrics.ObserveChatCreated(string(models.ChatPrivate))
		r.logger.Debug("private chat created", zap.String("chat_id", chatID.String()),
			zap.String("user_a", low.String()), zap.String("user_b", high.String()))
	}
	return chatID, created, nil
}

// DestroyChat deletes a chat with its messages and participants. A missing chat is a no-op.
func (r *Registry) DestroyChat(ctx context.Context, chatID uuid.UUID) error {
	var removed bool
	err := r.db.InTx(ctx, func(ctx context.Context) error {
		q := r.db.Q(ctx)
		if _, err := q.Exec(ctx, `DELETE FROM messages WHERE chat_id = $1`, chatID); err != nil {
			return database.Wrap(err, "delete chat messages")
		}
		if _, err := q.Exec(ctx, `DELETE FROM chat_participants WHERE chat_id = $1`, chatID); err != nil {
			return database.Wrap(err, "delete chat participants")
		}
		tag, err := q.Exec(ctx, `DELETE FROM chats WHERE id = $1`, chatID)
		if err != nil {
			return database.Wrap(err, "delete chat")
		}
		removed = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return err
	}
	if removed {
		metrics.ObserveChatDestroyed()
		r.logger.Debug("chat destroyed", zap.String("chat_id", chatID.String()))
	}
	return nil
}

// FindPrivateChatsOf lists the private chats userID participates in, with the other
// participant resolved.
func (r *Registry) FindPrivateChatsOf(ctx context.Context, userID uuid.UUID) ([]PrivateChatRef, error) {
	const q = `SELECT c.id, other.user_id
		FROM chats c
		JOIN chat_participants me ON me.chat_id = c.id AND me.user_id = $1
		JOIN chat_participants other ON other.chat_id = c.id AND other.user_id <> $1
		WHERE c.type = 'private'
		ORDER BY c.created_at, c.id`
	rows, err := r.db.Q(ctx).Query(ctx, q, userID)
	if err != nil {
		return nil, database.Wrap(err, "list private chats")
	}
	defer rows.Close()
	var list []PrivateChatRef
	for rows.Next() {
		var ref PrivateChatRef
		if err := rows.Scan(&ref.ChatID, &ref.OtherUserID); err != nil {
			return nil, database.Wrap(err, "scan private chat")
		}
		list = append(list, ref)
	}
	return list, database.Wrap(rows.Err(), "list private chats")
}

// GroupChatForTask returns the group chat bound to taskID; ok is false when there is none.
func (r *Registry) GroupChatForTask(ctx context.Context, taskID uuid.UUID) (chatID uuid.UUID, ok bool, err error) {
	const q = `SELECT id FROM chats WHERE type = 'group' AND task_id = $1`
	err = r.db.Q(ctx).QueryRow(ctx, q, taskID).Scan(&chatID)
	if database.IsNoRows(err) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, database.Wrap(err, "find task chat")
	}
	return chatID, true, nil
}

// CreateGroupChatForTask creates the group chat bound to taskID. If another caller created it
// first, that chat's id is returned and name is ignored.
func (r *Registry) CreateGroupChatForTask(ctx context.Context, taskID uuid.UUID, name string) (uuid.UUID, error) {
	var chatID uuid.UUID
	var created bool
	err := r.db.InTx(ctx, func(ctx context.Context) error {
		q := r.db.Q(ctx)
		const insert = `INSERT INTO chats (type, name, task_id) VALUES ('group', $1, $2)
			ON CONFLICT (task_id) DO NOTHING
			RETURNING id`
		err := q.QueryRow(ctx, insert, name, taskID).Scan(&chatID)
		if database.IsNoRows(err) {
			var ok bool
			chatID, ok, err = r.GroupChatForTask(ctx, taskID)
			if err == nil && !ok {
				return apperr.Conflict("task chat vanished during creation", nil)
			}
			return err
		}
		if err != nil {
			return database.Wrap(err, "create task chat")
		}
		created = true
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	if created {
		metrics.ObserveChatCreated(string(models.ChatGroup))
		r.logger.Debug("task chat created", zap.String("chat_id", chatID.String()), zap.String("task_id", taskID.String()))
	}
	return chatID, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ReplaceParticipants makes userIDs (duplicates ignored) the exact participant set of chatID.
func (r *Registry) ReplaceParticipants(ctx context.Context, chatID uuid.UUID, userIDs []uuid.UUID) error {
	ids := dedupe(userIDs)
	return r.db.InTx(ctx, func(ctx context.Context) error {
		q := r.db.Q(ctx)
		if _, err := q.Exec(ctx, `DELETE FROM chat_participants WHERE chat_id = $1`, chatID); err != nil {
			return database.Wrap(err, "clear participants")
		}
		return r.insertParticipants(ctx, q, chatID, ids)
	})
}

// AddParticipants adds userIDs to chatID; ids already present are left alone.
func (r *Registry) AddParticipants(ctx context.Context, chatID uuid.UUID, userIDs []uuid.UUID) error {
	ids := dedupe(userIDs)
	return r.db.Run(ctx, func(ctx context.Context) error {
		return r.insertParticipants(ctx, r.db.Q(ctx), chatID, ids)
	})
}

func (r *Registry) insertParticipants(ctx context.Context, q database.Querier, chatID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	const insert = `INSERT INTO chat_participants (chat_id, user_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT (chat_id, user_id) DO NOTHING`
	if _, err := q.Exec(ctx, insert, chatID, ids); err != nil {
		return database.Wrap(err, "add participants")
	}
	return nil
}

// PurgeUser destroys every private chat of userID and removes the user from all group chats.
// It returns the number of private chats destroyed.
func (r *Registry) PurgeUser(ctx context.Context, userID uuid.UUID) (int, error) {
	destroyed := 0
	err := r.db.InTx(ctx, func(ctx context.Context) error {
		refs, err := r.FindPrivateChatsOf(ctx, userID)
		if err != nil {
			return err
		}
		// private chats left with a single participant by an earlier partial cleanup
		orphans, err := r.privateChatIDsOf(ctx, userID)
		if err != nil {
			return err
		}
		seen := map[uuid.UUID]bool{}
		for _, ref := range refs {
			seen[ref.ChatID] = true
		}
		for _, id := range orphans {
			if !seen[id] {
				refs = append(refs, PrivateChatRef{ChatID: id})
			}
		}
		for _, ref := range refs {
			if err := r.DestroyChat(ctx, ref.ChatID); err != nil {
				return err
			}
			destroyed++
		}
		if _, err := r.db.Q(ctx).Exec(ctx, `DELETE FROM chat_participants WHERE user_id = $1`, userID); err != nil {
			return database.Wrap(err, "leave group chats")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return destroyed, nil
}

func (r *Registry) privateChatIDsOf(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	const q = `SELECT c.id FROM chats c
		JOIN chat_participants cp ON cp.chat_id = c.id
		WHERE cp.user_id = $1 AND c.type = 'private'`
	rows, err := r.db.Q(ctx).Query(ctx, q, userID)
	if err != nil {
		return nil, database.Wrap(err, "list private chat ids")
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, database.Wrap(err, "scan private chat id")
		}
		ids = append(ids, id)
	}
	return ids, database.Wrap(rows.Err(), "list private chat ids")
}

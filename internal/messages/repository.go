package messages

import (
	"context"

	"github.com/google/uuid"

	"github.com/aura-org/backend/internal/models"
	"github.com/aura-org/backend/pkg/database"
)

// Repository is the Postgres-backed Store.
type Repository struct {
	db *database.DB
}

// NewRepository creates a messages repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// ChatExists reports whether chatID exists.
func (r *Repository) ChatExists(ctx context.Context, chatID uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.Q(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chats WHERE id = $1)`, chatID).Scan(&ok)
	return ok, database.Wrap(err, "check chat")
}

// IsParticipant reports whether userID currently belongs to chatID.
func (r *Repository) IsParticipant(ctx context.Context, chatID, userID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM chat_participants WHERE chat_id = $1 AND user_id = $2)`
	var ok bool
	err := r.db.Q(ctx).QueryRow(ctx, q, chatID, userID).Scan(&ok)
	return ok, database.Wrap(err, "check participant")
}

// HoldParticipant reports whether userID belongs to chatID and, inside a transaction, keeps the
// membership row from being removed until the transaction ends.
func (r *Repository) HoldParticipant(ctx context.Context, chatID, userID uuid.UUID) (bool, error) {
	const q = `SELECT 1 FROM chat_participants WHERE chat_id = $1 AND user_id = $2 FOR SHARE`
	var one int
	err := r.db.Q(ctx).QueryRow(ctx, q, chatID, userID).Scan(&one)
	if database.IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, database.Wrap(err, "lock participant")
	}
	return true, nil
}

const messageSelect = `SELECT m.id, m.chat_id, m.sender_id, m.content, m.is_read, m.created_at,
	COALESCE(u.name, ''), u.role, u.avatar_url
	FROM messages m
	LEFT JOIN users u ON u.id = m.sender_id`

func scanMessage(row interface{ Scan(dest ...any) error }) (models.Message, error) {
	var m models.Message
	var role *string
	if err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.IsRead, &m.CreatedAt,
		&m.SenderName, &role, &m.SenderAvatar); err != nil {
		return models.Message{}, err
	}
	if role != nil {
		r := models.Role(*role)
		m.SenderRole = &r
	}
	return m, nil
}

// Insert appends a message and returns it joined with the sender's display attributes.
func (r *Repository) Insert(ctx context.Context, chatID, senderID uuid.UUID, content string) (models.Message, error) {
	const insert = `INSERT INTO messages (chat_id, sender_id, content) VALUES ($1, $2, $3) RETURNING id`
	var id uuid.UUID
	if err := r.db.Q(ctx).QueryRow(ctx, insert, chatID, senderID, content).Scan(&id); err != nil {
		return models.Message{}, database.Wrap(err, "insert message")
	}
	m, err := scanMessage(r.db.Q(ctx).QueryRow(ctx, messageSelect+` WHERE m.id = $1`, id))
	if err != nil {
		return models.Message{}, database.Wrap(err, "load message")
	}
	return m, nil
}

// List returns the messages of chatID in creation order.
func (r *Repository) List(ctx context.Context, chatID uuid.UUID) ([]models.Message, error) {
	rows, err := r.db.Q(ctx).Query(ctx, messageSelect+` WHERE m.chat_id = $1 ORDER BY m.created_at, m.seq`, chatID)
	if err != nil {
		return nil, database.Wrap(err, "list messages")
	}
	defer rows.Close()
	list := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, database.Wrap(err, "scan message")
		}
		list = append(list, m)
	}
	return list, database.Wrap(rows.Err(), "list messages")
}

// MarkRead flags every unread message of chatID not sent by readerID as read.
func (r *Repository) MarkRead(ctx context.Context, chatID, readerID uuid.UUID) (int64, error) {
	const q = `UPDATE messages SET is_read = TRUE WHERE chat_id = $1 AND sender_id <> $2 AND NOT is_read`
	tag, err := r.db.Q(ctx).Exec(ctx, q, chatID, readerID)
	if err != nil {
		return 0, database.Wrap(err, "mark messages read")
	}
	return tag.RowsAffected(), nil
}

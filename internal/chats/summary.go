package chats

import (
	"context"

	"github.com/google/uuid"

	"github.com/aura-org/backend/internal/models"
	"github.com/aura-org/backend/pkg/apperr"
	"github.com/aura-org/backend/pkg/database"
)

// Summaries reads chats as presented to a viewer.
type Summaries struct {
	db *database.DB
}

// NewSummaries creates a chat summary reader.
func NewSummaries(db *database.DB) *Summaries {
	return &Summaries{db: db}
}

const summaryColumns = `c.id, c.type, c.name, c.task_id, c.created_at, t.title, e.title,
	lm.content, lm.created_at, lm.sender_name,
	(SELECT COUNT(*) FROM messages m WHERE m.chat_id = c.id AND m.sender_id <> $1 AND NOT m.is_read)`

const summaryJoins = `LEFT JOIN tasks t ON t.id = c.task_id
	LEFT JOIN events e ON e.id = t.event_id
	LEFT JOIN LATERAL (
		SELECT m.content, m.created_at, u.name AS sender_name
		FROM messages m LEFT JOIN users u ON u.id = m.sender_id
		WHERE m.chat_id = c.id
		ORDER BY m.created_at DESC, m.seq DESC
		LIMIT 1
	) lm ON TRUE`

func scanSummary(row interface{ Scan(dest ...any) error }) (models.ChatSummary, error) {
	var s models.ChatSummary
	var chatType string
	err := row.Scan(&s.ID, &chatType, &s.Name, &s.TaskID, &s.CreatedAt, &s.TaskTitle, &s.EventTitle,
		&s.LastMessage, &s.LastMessageAt, &s.LastMessageSender, &s.UnreadCount)
	s.Type = models.ChatType(chatType)
	return s, err
}

// Summary returns one chat as seen by viewerID.
func (s *Summaries) Summary(ctx context.Context, chatID, viewerID uuid.UUID) (models.ChatSummary, error) {
	var sum models.ChatSummary
	err := s.db.Run(ctx, func(ctx context.Context) error {
		q := `SELECT ` + summaryColumns + ` FROM chats c ` + summaryJoins + ` WHERE c.id = $2`
		var err error
		sum, err = scanSummary(s.db.Q(ctx).QueryRow(ctx, q, viewerID, chatID))
		if database.IsNoRows(err) {
			return apperr.NotFound("chat not found")
		}
		if err != nil {
			return database.Wrap(err, "load chat")
		}
		byChat, err := s.participants(ctx, []uuid.UUID{chatID})
		if err != nil {
			return err
		}
		sum.Participants = byChat[chatID]
		return nil
	})
	if err != nil {
		return models.ChatSummary{}, err
	}
	ApplyDisplayName(&sum, viewerID)
	return sum, nil
}

// ListForUser returns the chats userID participates in, most recent activity first.
func (s *Summaries) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.ChatSummary, error) {
	var list []models.ChatSummary
	err := s.db.Run(ctx, func(ctx context.Context) error {
		q := `SELECT ` + summaryColumns + ` FROM chats c
			JOIN chat_participants me ON me.chat_id = c.id AND me.user_id = $1 ` + summaryJoins + `
			ORDER BY lm.created_at DESC NULLS LAST, c.created_at DESC`
		rows, err := s.db.Q(ctx).Query(ctx, q, userID)
		if err != nil {
			return database.Wrap(err, "list chats")
		}
		defer rows.Close()
		var ids []uuid.UUID
		for rows.Next() {
			sum, err := scanSummary(rows)
			if err != nil {
				return database.Wrap(err, "scan chat")
			}
			list = append(list, sum)
			ids = append(ids, sum.ID)
		}
		if err := rows.Err(); err != nil {
			return database.Wrap(err, "list chats")
		}
		rows.Close()

		byChat, err := s.participants(ctx, ids)
		if err != nil {
			return err
		}
		for i := range list {
			list[i].Participants = byChat[list[i].ID]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i := range list {
		ApplyDisplayName(&list[i], userID)
	}
	return list, nil
}

func (s *Summaries) participants(ctx context.Context, chatIDs []uuid.UUID) (map[uuid.UUID][]models.Participant, error) {
	out := make(map[uuid.UUID][]models.Participant, len(chatIDs))
	if len(chatIDs) == 0 {
		return out, nil
	}
	const q = `SELECT cp.chat_id, u.id, u.name, u.role
		FROM chat_participants cp
		JOIN users u ON u.id = cp.user_id
		WHERE cp.chat_id = ANY($1)
		ORDER BY u.name, u.id`
	rows, err := s.db.Q(ctx).Query(ctx, q, chatIDs)
	if err != nil {
		return nil, database.Wrap(err, "list participants")
	}
	defer rows.Close()
	for rows.Next() {
		var chatID uuid.UUID
		var p models.Participant
		var role string
		if err := rows.Scan(&chatID, &p.ID, &p.Name, &role); err != nil {
			return nil, database.Wrap(err, "scan participant")
		}
		r := models.Role(role)
		p.Role = &r
		out[chatID] = append(out[chatID], p)
	}
	return out, database.Wrap(rows.Err(), "list participants")
}

// ApplyDisplayName fills DisplayName (and OtherUserRole for private chats) for viewer.
// Private chats are named after the other participant; group chats use their own name, then
// "<event title> Chat", then "Group Chat".
func ApplyDisplayName(s *models.ChatSummary, viewer uuid.UUID) {
	if s.Participants == nil {
		s.Participants = []models.Participant{}
	}
	if s.Type == models.ChatPrivate {
		s.DisplayName = "Private Chat"
		for _, p := range s.Participants {
			if p.ID != viewer {
				s.DisplayName = p.Name
				s.OtherUserRole = p.Role
				return
			}
		}
		return
	}
	switch {
	case s.Name != nil && *s.Name != "":
		s.DisplayName = *s.Name
	case s.EventTitle != nil && *s.EventTitle != "":
		s.DisplayName = *s.EventTitle + " Chat"
	default:
		s.DisplayName = "Group Chat"
	}
}

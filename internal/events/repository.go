package events

import (
	"context"

	"github.com/google/uuid"

	"github.com/aura-org/backend/pkg/apperr"
	"github.com/aura-org/backend/pkg/database"
)

// Repository reads and deletes events.
type Repository struct {
	db *database.DB
}

// NewRepository creates an events repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// TaskIDs returns the tasks of eventID, or not_found when the event does not exist.
func (r *Repository) TaskIDs(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	q := r.db.Q(ctx)
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, eventID).Scan(&exists); err != nil {
		return nil, database.Wrap(err, "check event")
	}
	if !exists {
		return nil, apperr.NotFound("event not found")
	}
	rows, err := q.Query(ctx, `SELECT id FROM tasks WHERE event_id = $1 ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, database.Wrap(err, "list event tasks")
	}
	defer rows.Close()
	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, database.Wrap(err, "scan task id")
		}
		ids = append(ids, id)
	}
	return ids, database.Wrap(rows.Err(), "list event tasks")
}

// Delete removes the tasks of eventID and then the event itself.
func (r *Repository) Delete(ctx context.Context, eventID uuid.UUID) error {
	q := r.db.Q(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM tasks WHERE event_id = $1`, eventID); err != nil {
		return database.Wrap(err, "delete event tasks")
	}
	tag, err := q.Exec(ctx, `DELETE FROM events WHERE id = $1`, eventID)
	if err != nil {
		return database.Wrap(err, "delete event")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("event not found")
	}
	return nil
}

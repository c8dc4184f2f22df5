package tasks

import (
	"context"

	"github.com/google/uuid"

	"github.com/aura-org/backend/internal/chats"
	"github.com/aura-org/backend/pkg/apperr"
	"github.com/aura-org/backend/pkg/database"
)

// Repository reads tasks and stores their assignments.
type Repository struct {
	db *database.DB
}

// NewRepository creates a tasks repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// TaskChatInfo returns the titles and department head used for the task's group chat.
func (r *Repository) TaskChatInfo(ctx context.Context, taskID uuid.UUID) (chats.TaskChatInfo, error) {
	const q = `SELECT t.id, t.title, COALESCE(e.title, ''), d.dept_head_id
		FROM tasks t
		LEFT JOIN events e ON e.id = t.event_id
		LEFT JOIN departments d ON d.id = t.department_id
		WHERE t.id = $1`
	var info chats.TaskChatInfo
	err := r.db.Q(ctx).QueryRow(ctx, q, taskID).Scan(&info.TaskID, &info.TaskTitle, &info.EventTitle, &info.DeptHeadID)
	if database.IsNoRows(err) {
		return chats.TaskChatInfo{}, apperr.NotFound("task not found")
	}
	if err != nil {
		return chats.TaskChatInfo{}, database.Wrap(err, "load task")
	}
	return info, nil
}

// ReplaceAssignments makes userIDs the exact assignee set of taskID.
func (r *Repository) ReplaceAssignments(ctx context.Context, taskID uuid.UUID, userIDs []uuid.UUID) error {
	q := r.db.Q(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM task_assignments WHERE task_id = $1`, taskID); err != nil {
		return database.Wrap(err, "clear assignments")
	}
	if len(userIDs) == 0 {
		return nil
	}
	const insert = `INSERT INTO task_assignments (task_id, user_id)
		SELECT $1, u FROM unnest($2::uuid[]) AS u
		ON CONFLICT DO NOTHING`
	if _, err := q.Exec(ctx, insert, taskID, userIDs); err != nil {
		return database.Wrap(err, "assign users")
	}
	return nil
}

// AddAssignments assigns userIDs to taskID, keeping existing assignees.
func (r *Repository) AddAssignments(ctx context.Context, taskID uuid.UUID, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	const insert = `INSERT INTO task_assignments (task_id, user_id)
		SELECT $1, u FROM unnest($2::uuid[]) AS u
		ON CONFLICT DO NOTHING`
	if _, err := r.db.Q(ctx).Exec(ctx, insert, taskID, userIDs); err != nil {
		return database.Wrap(err, "assign users")
	}
	return nil
}

// Assignees returns the users assigned to taskID.
func (r *Repository) Assignees(ctx context.Context, taskID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Q(ctx).Query(ctx, `SELECT user_id FROM task_assignments WHERE task_id = $1 ORDER BY created_at, user_id`, taskID)
	if err != nil {
		return nil, database.Wrap(err, "list assignees")
	}
	defer rows.Close()
	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, database.Wrap(err, "scan assignee")
		}
		ids = append(ids, id)
	}
	return ids, database.Wrap(rows.Err(), "list assignees")
}

// Delete removes a task; its assignments cascade.
func (r *Repository) Delete(ctx context.Context, taskID uuid.UUID) error {
	tag, err := r.db.Q(ctx).Exec(ctx, `DELETE FROM tasks WHERE id = $1`, taskID)
	if err != nil {
		return database.Wrap(err, "delete task")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("task not found")
	}
	return nil
}

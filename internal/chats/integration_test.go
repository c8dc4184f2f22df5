package chats_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/aura-org/backend/internal/chats"
	"github.com/aura-org/backend/internal/events"
	"github.com/aura-org/backend/internal/hierarchy"
	"github.com/aura-org/backend/internal/messages"
	"github.com/aura-org/backend/internal/models"
	"github.com/aura-org/backend/internal/tasks"
	"github.com/aura-org/backend/pkg/apperr"
	"github.com/aura-org/backend/pkg/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := database.NewPostgresPool(ctx, url, 10, zapTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(ctx, pool, zapTestLogger(t)))
	return database.NewDB(pool, 2*time.Second, nil)
}

// seed creates team T1 with leader L and department D headed by H with member M.
type seeded struct {
	team, dept, event, task uuid.UUID
	l, h, m                 uuid.UUID
}

func seed(t *testing.T, db *database.DB) seeded {
	t.Helper()
	ctx := context.Background()
	q := db.Pool()
	var s seeded
	require.NoError(t, q.QueryRow(ctx, `INSERT INTO teams (name) VALUES ('T1') RETURNING id`).Scan(&s.team))
	require.NoError(t, q.QueryRow(ctx, `INSERT INTO departments (team_id, name) VALUES ($1, 'D') RETURNING id`, s.team).Scan(&s.dept))

	addUser := func(role models.Role, dept *uuid.UUID) uuid.UUID {
		var id uuid.UUID
		email := uuid.NewString() + "@example.com"
		require.NoError(t, q.QueryRow(ctx, `INSERT INTO users (email, password_hash, name, role, team_id, department_id)
			VALUES ($1, 'x', $2, $3, $4, $5) RETURNING id`, email, string(role), string(role), s.team, dept).Scan(&id))
		return id
	}
	s.l = addUser(models.RoleTeamLeader, nil)
	s.h = addUser(models.RoleDeptHead, &s.dept)
	s.m = addUser(models.RoleMember, &s.dept)
	_, err := q.Exec(ctx, `UPDATE departments SET dept_head_id = $1 WHERE id = $2`, s.h, s.dept)
	require.NoError(t, err)

	require.NoError(t, q.QueryRow(ctx, `INSERT INTO events (title) VALUES ('Launch') RETURNING id`).Scan(&s.event))
	require.NoError(t, q.QueryRow(ctx, `INSERT INTO tasks (event_id, department_id, title) VALUES ($1, $2, 'Venue') RETURNING id`,
		s.event, s.dept).Scan(&s.task))

	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = q.Exec(ctx, `DELETE FROM chats WHERE id IN (SELECT chat_id FROM chat_participants WHERE user_id = ANY($1))`,
			[]uuid.UUID{s.l, s.h, s.m})
		_, _ = q.Exec(ctx, `DELETE FROM events WHERE id = $1`, s.event)
		_, _ = q.Exec(ctx, `UPDATE departments SET dept_head_id = NULL WHERE id = $1`, s.dept)
		_, _ = q.Exec(ctx, `DELETE FROM users WHERE id = ANY($1)`, []uuid.UUID{s.l, s.h, s.m})
		_, _ = q.Exec(ctx, `DELETE FROM teams WHERE id = $1`, s.team)
	})
	return s
}

func countRows(t *testing.T, db *database.DB, sql string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.Pool().QueryRow(context.Background(), sql, args...).Scan(&n))
	return n
}

func TestEnsurePrivateChatConcurrentCallsCreateOne(t *testing.T) {
	db := openTestDB(t)
	s := seed(t, db)
	reg := chats.NewRegistry(db, nil)

	const callers = 8
	var wg sync.WaitGroup
	ids := make([]uuid.UUID, callers)
	created := make([]bool, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := s.m, s.h
			if i%2 == 1 {
				a, b = b, a
			}
			ids[i], created[i], errs[i] = reg.EnsurePrivateChat(context.Background(), a, b)
		}(i)
	}
	wg.Wait()

	nCreated := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
		if created[i] {
			nCreated++
		}
	}
	assert.Equal(t, 1, nCreated)
	assert.Equal(t, 2, countRows(t, db, `SELECT COUNT(*) FROM chat_participants WHERE chat_id = $1`, ids[0]))
}

func TestDestroyChatRemovesHistory(t *testing.T) {
	db := openTestDB(t)
	s := seed(t, db)
	reg := chats.NewRegistry(db, nil)
	ctx := context.Background()

	chatID, _, err := reg.EnsurePrivateChat(ctx, s.m, s.h)
	require.NoError(t, err)
	svc := messages.NewService(db, messages.NewRepository(db), nil)
	_, err = svc.Send(ctx, chatID, s.m, "hello")
	require.NoError(t, err)

	require.NoError(t, reg.DestroyChat(ctx, chatID))
	require.NoError(t, reg.DestroyChat(ctx, chatID), "destroying twice is a no-op")
	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM messages WHERE chat_id = $1`, chatID))
	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM chat_participants WHERE chat_id = $1`, chatID))
}

func TestScenarioAgainstPostgres(t *testing.T) {
	db := openTestDB(t)
	s := seed(t, db)
	ctx := context.Background()

	dir := hierarchy.NewRepository(db)
	reg := chats.NewRegistry(db, nil)
	engine := chats.NewEngine(db, dir, reg, nil, nil)

	res, err := engine.Reconcile(ctx, s.m)
	require.NoError(t, err)
	assert.Equal(t, chats.ReconcileResult{Created: 1}, res)

	res, err = engine.Reconcile(ctx, s.h)
	require.NoError(t, err)
	assert.Equal(t, chats.ReconcileResult{Created: 1}, res)

	taskRepo := tasks.NewRepository(db)
	groups := chats.NewTaskGroupManager(db, taskRepo, reg, nil)
	taskSvc := tasks.NewService(db, taskRepo, groups, reg, nil)
	out, err := taskSvc.Assign(ctx, s.task, []uuid.UUID{s.m})
	require.NoError(t, err)

	sum, err := chats.NewSummaries(db).Summary(ctx, out.ChatID, s.m)
	require.NoError(t, err)
	assert.Equal(t, "Launch - Venue", sum.DisplayName)
	got := map[uuid.UUID]bool{}
	for _, p := range sum.Participants {
		got[p.ID] = true
	}
	assert.Equal(t, map[uuid.UUID]bool{s.m: true, s.h: true}, got)

	_, err = taskSvc.Assign(ctx, uuid.New(), []uuid.UUID{s.m})
	require.Error(t, err)
}

func TestListForUserUnreadCounts(t *testing.T) {
	db := openTestDB(t)
	s := seed(t, db)
	ctx := context.Background()
	reg := chats.NewRegistry(db, nil)
	chatID, _, err := reg.EnsurePrivateChat(ctx, s.m, s.h)
	require.NoError(t, err)

	svc := messages.NewService(db, messages.NewRepository(db), nil)
	for _, c := range []string{"one", "two"} {
		_, err := svc.Send(ctx, chatID, s.h, c)
		require.NoError(t, err)
	}
	summaries := chats.NewSummaries(db)

	list, err := summaries.ListForUser(ctx, s.m)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].UnreadCount)
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, "two", *list[0].LastMessage)

	_, err = svc.List(ctx, chatID, &s.m, true)
	require.NoError(t, err)
	list, err = summaries.ListForUser(ctx, s.m)
	require.NoError(t, err)
	assert.Zero(t, list[0].UnreadCount)
}

func TestPurgeUser(t *testing.T) {
	db := openTestDB(t)
	s := seed(t, db)
	ctx := context.Background()
	reg := chats.NewRegistry(db, nil)
	engine := chats.NewEngine(db, hierarchy.NewRepository(db), reg, nil, nil)
	_, err := engine.ReconcileAll(ctx, s.h, s.m)
	require.NoError(t, err)
	groupID, err := reg.CreateGroupChatForTask(ctx, s.task, "Launch - Venue")
	require.NoError(t, err)
	require.NoError(t, reg.ReplaceParticipants(ctx, groupID, []uuid.UUID{s.h, s.m}))

	n, err := reg.PurgeUser(ctx, s.h)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM chat_participants WHERE user_id = $1`, s.h))
	assert.Equal(t, 1, countRows(t, db, `SELECT COUNT(*) FROM chat_participants WHERE chat_id = $1`, groupID))
}

func TestAddParticipantsIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	s := seed(t, db)
	ctx := context.Background()
	reg := chats.NewRegistry(db, nil)
	groupID, err := reg.CreateGroupChatForTask(ctx, s.task, "Launch - Venue")
	require.NoError(t, err)

	require.NoError(t, reg.AddParticipants(ctx, groupID, []uuid.UUID{s.m}))
	require.NoError(t, reg.AddParticipants(ctx, groupID, []uuid.UUID{s.m, s.h, s.m}))
	assert.Equal(t, 2, countRows(t, db, `SELECT COUNT(*) FROM chat_participants WHERE chat_id = $1`, groupID))
}

func TestDeleteEventDestroysTaskChats(t *testing.T) {
	db := openTestDB(t)
	s := seed(t, db)
	ctx := context.Background()
	reg := chats.NewRegistry(db, nil)
	taskRepo := tasks.NewRepository(db)
	taskSvc := tasks.NewService(db, taskRepo, chats.NewTaskGroupManager(db, taskRepo, reg, nil), reg, nil)
	out, err := taskSvc.Assign(ctx, s.task, []uuid.UUID{s.m})
	require.NoError(t, err)
	_, err = messages.NewService(db, messages.NewRepository(db), nil).Send(ctx, out.ChatID, s.m, "on it")
	require.NoError(t, err)

	svc := events.NewService(db, events.NewRepository(db), reg, nil)
	res, err := svc.Delete(ctx, s.event)
	require.NoError(t, err)
	assert.Equal(t, events.DeleteResult{EventID: s.event, TasksDeleted: 1, ChatsDestroyed: 1}, res)
	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM chats WHERE id = $1`, out.ChatID))
	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM messages WHERE chat_id = $1`, out.ChatID))
	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM tasks WHERE id = $1`, s.task))

	_, err = svc.Delete(ctx, s.event)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestTaskChatCascadesWithTask(t *testing.T) {
	db := openTestDB(t)
	s := seed(t, db)
	ctx := context.Background()
	reg := chats.NewRegistry(db, nil)
	chatID, err := reg.CreateGroupChatForTask(ctx, s.task, "Launch - Venue")
	require.NoError(t, err)
	require.NoError(t, reg.ReplaceParticipants(ctx, chatID, []uuid.UUID{s.h, s.m}))

	_, err = db.Pool().Exec(ctx, `DELETE FROM events WHERE id = $1`, s.event)
	require.NoError(t, err)
	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM chats WHERE id = $1`, chatID))
	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM chat_participants WHERE chat_id = $1`, chatID))
}

func TestSendAfterRemovalIsForbidden(t *testing.T) {
	db := openTestDB(t)
	s := seed(t, db)
	ctx := context.Background()
	reg := chats.NewRegistry(db, nil)
	chatID, err := reg.CreateGroupChatForTask(ctx, s.task, "Launch - Venue")
	require.NoError(t, err)
	require.NoError(t, reg.ReplaceParticipants(ctx, chatID, []uuid.UUID{s.h, s.m}))
	svc := messages.NewService(db, messages.NewRepository(db), nil)

	require.NoError(t, reg.ReplaceParticipants(ctx, chatID, []uuid.UUID{s.h}))
	_, err = svc.Send(ctx, chatID, s.m, "hello?")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM messages WHERE chat_id = $1`, chatID))
}

func TestHeldParticipantBlocksRemoval(t *testing.T) {
	db := openTestDB(t)
	s := seed(t, db)
	ctx := context.Background()
	reg := chats.NewRegistry(db, nil)
	chatID, err := reg.CreateGroupChatForTask(ctx, s.task, "Launch - Venue")
	require.NoError(t, err)
	require.NoError(t, reg.ReplaceParticipants(ctx, chatID, []uuid.UUID{s.h, s.m}))
	repo := messages.NewRepository(db)

	err = db.InTx(ctx, func(ctx context.Context) error {
		ok, err := repo.HoldParticipant(ctx, chatID, s.m)
		require.NoError(t, err)
		require.True(t, ok)

		removeCtx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()
		err = reg.ReplaceParticipants(removeCtx, chatID, []uuid.UUID{s.h})
		assert.Error(t, err, "removal waits for the sender's transaction")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, countRows(t, db, `SELECT COUNT(*) FROM chat_participants WHERE chat_id = $1`, chatID))
}

func zapTestLogger(t *testing.T) *zap.Logger { return zaptest.NewLogger(t) }

package chats

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-org/backend/pkg/database"
)

// TaskChatInfo is what the task read-model provides for a task's group chat.
type TaskChatInfo struct {
	TaskID     uuid.UUID
	TaskTitle  string
	EventTitle string
	DeptHeadID *uuid.UUID
}

// TaskReader resolves a task for group chat management. Unknown tasks are a not_found error.
type TaskReader interface {
	TaskChatInfo(ctx context.Context, taskID uuid.UUID) (TaskChatInfo, error)
}

// GroupChats is the part of the registry task group management drives.
type GroupChats interface {
	GroupChatForTask(ctx context.Context, taskID uuid.UUID) (uuid.UUID, bool, error)
	CreateGroupChatForTask(ctx context.Context, taskID uuid.UUID, name string) (uuid.UUID, error)
	ReplaceParticipants(ctx context.Context, chatID uuid.UUID, userIDs []uuid.UUID) error
	AddParticipants(ctx context.Context, chatID uuid.UUID, userIDs []uuid.UUID) error
}

// TaskGroupManager keeps the group chat of a task in step with its assignees.
type TaskGroupManager struct {
	db     database.Runner
	tasks  TaskReader
	chats  GroupChats
	logger *zap.Logger
}

// NewTaskGroupManager creates a task group chat manager.
func NewTaskGroupManager(db database.Runner, tasks TaskReader, chats GroupChats, logger *zap.Logger) *TaskGroupManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskGroupManager{db: db, tasks: tasks, chats: chats, logger: logger}
}

// GroupChatLabel composes the name a task chat gets at creation.
func GroupChatLabel(eventTitle, taskTitle string) string {
	eventTitle = strings.TrimSpace(eventTitle)
	taskTitle = strings.TrimSpace(taskTitle)
	if eventTitle == "" {
		eventTitle = "Event"
	}
	if taskTitle == "" {
		taskTitle = "Task"
	}
	return eventTitle + " - " + taskTitle
}

// AssignMembers makes memberIDs plus the task's department head the exact participant set of
// the task's group chat, creating the chat on first use. Removed members lose access to the
// history, which is kept. The chat's name is set only when it is created.
func (m *TaskGroupManager) AssignMembers(ctx context.Context, taskID uuid.UUID, memberIDs []uuid.UUID) (uuid.UUID, error) {
	chatID, err := m.syncMembers(ctx, taskID, memberIDs, m.chats.ReplaceParticipants)
	if err != nil {
		return uuid.Nil, err
	}
	m.logger.Info("task chat members replaced",
		zap.String("task_id", taskID.String()),
		zap.String("chat_id", chatID.String()),
		zap.Int("members", len(memberIDs)))
	return chatID, nil
}

// AddMembers adds memberIDs and the department head to the task's group chat without removing
// anyone, creating the chat on first use.
func (m *TaskGroupManager) AddMembers(ctx context.Context, taskID uuid.UUID, memberIDs []uuid.UUID) (uuid.UUID, error) {
	chatID, err := m.syncMembers(ctx, taskID, memberIDs, m.chats.AddParticipants)
	if err != nil {
		return uuid.Nil, err
	}
	m.logger.Info("task chat members added",
		zap.String("task_id", taskID.String()),
		zap.String("chat_id", chatID.String()),
		zap.Int("members", len(memberIDs)))
	return chatID, nil
}

func (m *TaskGroupManager) syncMembers(ctx context.Context, taskID uuid.UUID, memberIDs []uuid.UUID,
	apply func(ctx context.Context, chatID uuid.UUID, userIDs []uuid.UUID) error) (uuid.UUID, error) {
	var chatID uuid.UUID
	err := m.db.InTx(ctx, func(ctx context.Context) error {
		info, err := m.tasks.TaskChatInfo(ctx, taskID)
		if err != nil {
			return err
		}

		id, ok, err := m.chats.GroupChatForTask(ctx, taskID)
		if err != nil {
			return err
		}
		if !ok {
			id, err = m.chats.CreateGroupChatForTask(ctx, taskID, GroupChatLabel(info.EventTitle, info.TaskTitle))
			if err != nil {
				return err
			}
		}
		chatID = id

		participants := append([]uuid.UUID{}, memberIDs...)
		if info.DeptHeadID != nil {
			participants = append(participants, *info.DeptHeadID)
		}
		return apply(ctx, chatID, participants)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return chatID, nil
}

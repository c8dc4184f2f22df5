package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatType distinguishes one-to-one hierarchy chats from task group chats.
type ChatType string

const (
	ChatPrivate ChatType = "private"
	ChatGroup   ChatType = "group"
)

// Chat is a conversation. Private chats have exactly two participants; group chats may be bound
// to a task.
type Chat struct {
	ID        uuid.UUID  `json:"id"`
	Type      ChatType   `json:"type"`
	Name      *string    `json:"name,omitempty"`
	TaskID    *uuid.UUID `json:"task_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Participant is the typed projection of a chat member.
type Participant struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role *Role     `json:"role"`
}

// ChatSummary is a chat as presented to one viewer.
type ChatSummary struct {
	Chat
	TaskTitle         *string       `json:"task_title,omitempty"`
	EventTitle        *string       `json:"event_title,omitempty"`
	Participants      []Participant `json:"participants"`
	DisplayName       string        `json:"display_name"`
	OtherUserRole     *Role         `json:"other_user_role,omitempty"`
	LastMessage       *string       `json:"last_message"`
	LastMessageAt     *time.Time    `json:"last_message_time"`
	LastMessageSender *string       `json:"last_message_sender"`
	UnreadCount       int           `json:"unread_count"`
}

// Message is a chat message joined with its sender's display attributes.
type Message struct {
	ID           uuid.UUID `json:"id"`
	ChatID       uuid.UUID `json:"chat_id"`
	SenderID     uuid.UUID `json:"sender_id"`
	Content      string    `json:"content"`
	IsRead       bool      `json:"is_read"`
	CreatedAt    time.Time `json:"created_at"`
	SenderName   string    `json:"sender_name"`
	SenderRole   *Role     `json:"sender_role,omitempty"`
	SenderAvatar *string   `json:"sender_avatar,omitempty"`
}

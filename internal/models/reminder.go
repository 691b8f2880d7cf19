package models

import (
	"time"

	"github.com/google/uuid"
)

type Reminder struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	TaskID       uuid.UUID    `json:"task_id" db:"task_id"`
	UserID       int64        `json:"user_id" db:"user_id"`
	RemindAt     time.Time    `json:"remind_at" db:"remind_at"`
	Type         ReminderType `json:"type" db:"type"`
	Sent         bool         `json:"sent" db:"sent"`
	SentAt       *time.Time   `json:"sent_at,omitempty" db:"sent_at"`
	ErrorMessage *string      `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

type ReminderType string

const (
	ReminderBeforeDeadline ReminderType = "before_deadline"
	ReminderAfterDeadline  ReminderType = "after_deadline"
	ReminderCustom         ReminderType = "custom"
	ReminderCreatorOverdue ReminderType = "creator_overdue"
)

// DueReminder is the joined row the dispatch loop works with: the reminder
// itself plus its owning task and the recipient.
type DueReminder struct {
	Reminder *Reminder
	Task     *Task
	User     *User
}

type User struct {
	ID        int64     `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	ChatID    int64     `json:"chat_id" db:"chat_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

type Task struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	PublicID   string     `json:"public_id" db:"public_id"`
	Content    string     `json:"content" db:"content"`
	Status     Status     `json:"status" db:"status"`
	Priority   Priority   `json:"priority" db:"priority"`
	Progress   int        `json:"progress" db:"progress"`
	Deadline   *time.Time `json:"deadline,omitempty" db:"deadline"`
	CreatorID  int64      `json:"creator_id" db:"creator_id"`
	AssigneeID int64      `json:"assignee_id" db:"assignee_id"`
	ParentID   *uuid.UUID `json:"parent_id,omitempty" db:"parent_id"`
	TemplateID *uuid.UUID `json:"template_id,omitempty" db:"template_id"`
	Deleted    bool       `json:"deleted" db:"deleted"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty" db:"updated_at"`
	Version    int        `json:"version" db:"version"`
}

type Status string
type Priority string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// IsChild reports whether the task belongs to a group parent. Child status
// and progress feed the aggregation rule that drives the parent.
func (t *Task) IsChild() bool {
	return t.ParentID != nil
}

func (t *Task) IsOverdue(now time.Time) bool {
	return t.Deadline != nil && t.Status != StatusCompleted && t.Deadline.Before(now)
}

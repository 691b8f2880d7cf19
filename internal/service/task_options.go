package service

import (
	"fmt"
	"time"

	"taskbot/internal/models"
)

// TaskOption mutates a task inside Update after the permission check.
// Options validate their own input and return a BusinessError on bad values.
type TaskOption func(*models.Task) error

func WithContent(content string) TaskOption {
	return func(task *models.Task) error {
		if err := validateContent(content); err != nil {
			return err
		}
		task.Content = content
		return nil
	}
}

func WithStatus(status models.Status) TaskOption {
	return func(task *models.Task) error {
		if !models.ValidStatus(status) {
			return NewValidationError("status", fmt.Sprintf("unknown status %q", status))
		}
		task.Status = status
		// Leaving completed drops the full progress so the invariant holds.
		if status != models.StatusCompleted && task.Progress == 100 {
			task.Progress = 0
		}
		return nil
	}
}

func WithProgress(progress int) TaskOption {
	return func(task *models.Task) error {
		if progress < 0 || progress > 100 {
			return NewValidationError("progress", "progress must be between 0 and 100")
		}
		task.Progress = progress
		if progress < 100 && task.Status == models.StatusCompleted {
			task.Status = models.StatusInProgress
		}
		return nil
	}
}

func WithDeadline(deadline *time.Time) TaskOption {
	return func(task *models.Task) error {
		task.Deadline = deadline
		return nil
	}
}

func WithAssignee(assigneeID int64) TaskOption {
	return func(task *models.Task) error {
		if assigneeID == 0 {
			return NewValidationError("assignee", "assignee must be set")
		}
		task.AssigneeID = assigneeID
		return nil
	}
}

func WithPriority(priority models.Priority) TaskOption {
	return func(task *models.Task) error {
		if !models.ValidPriority(priority) {
			return NewValidationError("priority", fmt.Sprintf("unknown priority %q", priority))
		}
		task.Priority = priority
		return nil
	}
}

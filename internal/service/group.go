package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskbot/internal/logger"
	"taskbot/internal/models"
	repo "taskbot/internal/repository"
)

// RecomputeParent derives a group parent's status and progress from all of
// its children:
//
//	all completed                      -> completed, 100
//	any completed or in progress       -> in_progress, integer average
//	otherwise                          -> pending, 0
//
// Recomputing with unchanged children is a no-op, so reactive triggering
// from every child mutation is safe.
func (s *TaskService) RecomputeParent(ctx context.Context, parentID uuid.UUID) error {
	parent, err := s.tasks.GetTaskByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NewNotFound("task", parentID.String())
		}
		return fmt.Errorf("get parent: %w", err)
	}

	children, err := s.tasks.GetChildren(ctx, parentID)
	if err != nil {
		return fmt.Errorf("get children: %w", err)
	}
	if len(children) == 0 {
		return nil
	}

	status, progress := aggregate(children)
	if parent.Status == status && parent.Progress == progress {
		return nil
	}

	parent.Status = status
	parent.Progress = progress
	if err := s.tasks.UpdateTask(ctx, parent); err != nil {
		return fmt.Errorf("update parent: %w", err)
	}

	if status == models.StatusCompleted {
		if _, err := s.reminders.CancelRemindersForTask(ctx, parent.ID); err != nil {
			logger.Warn("Service: failed to cancel reminders of completed parent",
				zap.String("task_id", parent.ID.String()), zap.Error(err))
		}
	}

	logger.Info("Service: group parent recomputed",
		zap.String("public_id", parent.PublicID),
		zap.String("status", string(status)),
		zap.Int("progress", progress))
	return nil
}

func aggregate(children []*models.Task) (models.Status, int) {
	completed, active, sum := 0, 0, 0
	for _, c := range children {
		sum += c.Progress
		switch c.Status {
		case models.StatusCompleted:
			completed++
		case models.StatusInProgress:
			active++
		}
	}

	switch {
	case completed == len(children):
		return models.StatusCompleted, 100
	case completed > 0 || active > 0:
		return models.StatusInProgress, sum / len(children)
	default:
		return models.StatusPending, 0
	}
}

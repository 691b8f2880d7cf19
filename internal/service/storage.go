package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"taskbot/internal/models"
)

// Storage contracts are declared here, at the consumer. Both the postgres
// and the inmemory implementations satisfy them.

type TaskRepository interface {
	CreateTask(ctx context.Context, t *models.Task) error
	UpdateTask(ctx context.Context, t *models.Task) error
	GetTaskByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	GetTaskByPublicID(ctx context.Context, publicID string) (*models.Task, error)
	GetChildren(ctx context.Context, parentID uuid.UUID) ([]*models.Task, error)
	ListActiveTasks(ctx context.Context, limit int) ([]*models.Task, error)
	ListOverdueTasks(ctx context.Context, now time.Time, limit int) ([]*models.Task, error)
	SetTasksDeleted(ctx context.Context, ids []uuid.UUID, deleted bool, at time.Time) error
	AllocateNextID(ctx context.Context, name string) (int64, error)
}

type ReminderRepository interface {
	CreateReminder(ctx context.Context, r *models.Reminder) error
	GetReminderByID(ctx context.Context, id uuid.UUID) (*models.Reminder, error)
	UpdateReminder(ctx context.Context, r *models.Reminder) error
	CancelRemindersForTask(ctx context.Context, taskID uuid.UUID) (int64, error)
}

type TemplateRepository interface {
	CreateTemplate(ctx context.Context, t *models.RecurringTemplate) error
	GetTemplateByID(ctx context.Context, id uuid.UUID) (*models.RecurringTemplate, error)
	UpdateTemplate(ctx context.Context, t *models.RecurringTemplate) error
	DeleteTemplate(ctx context.Context, id uuid.UUID) error
	ListTemplatesByCreator(ctx context.Context, creatorID int64) ([]*models.RecurringTemplate, error)
	AllocateNextID(ctx context.Context, name string) (int64, error)
}

type UndoRepository interface {
	CreateUndoRecord(ctx context.Context, u *models.UndoRecord) error
	GetUndoRecordByID(ctx context.Context, id uuid.UUID) (*models.UndoRecord, error)
	MarkUndoRestored(ctx context.Context, id uuid.UUID) error
	SweepExpiredUndo(ctx context.Context, now time.Time) (int64, error)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskbot/internal/logger"
	"taskbot/internal/models"
	repo "taskbot/internal/repository"
)

// UndoBuffer stages soft-deleted task snapshots for a fixed window. One TTL
// everywhere: any countdown shown to users derives from the same value.
type UndoBuffer struct {
	tasks TaskRepository
	undo  UndoRepository
	ttl   time.Duration
}

func NewUndoBuffer(tasks TaskRepository, undo UndoRepository, ttl time.Duration) *UndoBuffer {
	return &UndoBuffer{
		tasks: tasks,
		undo:  undo,
		ttl:   ttl,
	}
}

func (b *UndoBuffer) TTL() time.Duration {
	return b.ttl
}

// SoftDelete snapshots the full state of the given tasks into an undo record
// and flags them deleted. The tasks are not destroyed.
func (b *UndoBuffer) SoftDelete(ctx context.Context, tasks []*models.Task, actorID int64) (*models.UndoRecord, error) {
	if len(tasks) == 0 {
		return nil, NewValidationError("tasks", "nothing to delete")
	}

	now := time.Now()
	ids := make([]uuid.UUID, len(tasks))
	snapshot := make([]models.Task, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
		snapshot[i] = *t
	}

	record := &models.UndoRecord{
		ID:        uuid.New(),
		TaskIDs:   ids,
		Snapshot:  snapshot,
		ActorID:   actorID,
		ExpiresAt: now.Add(b.ttl),
	}

	if err := b.undo.CreateUndoRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("create undo record: %w", err)
	}

	if err := b.tasks.SetTasksDeleted(ctx, ids, true, now); err != nil {
		return nil, fmt.Errorf("flag tasks deleted: %w", err)
	}

	return record, nil
}

// Restore un-deletes the snapshot's tasks. Eligible only while the record is
// unexpired and unrestored; the restored flag makes a second call a no-op
// failure. Returns the number of tasks brought back.
func (b *UndoBuffer) Restore(ctx context.Context, undoID uuid.UUID) (int, error) {
	record, err := b.undo.GetUndoRecordByID(ctx, undoID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, NewNotFound("undo record", undoID.String())
		}
		return 0, fmt.Errorf("get undo record: %w", err)
	}

	if record.Restored {
		return 0, repo.ErrAlreadyRestored
	}
	if !time.Now().Before(record.ExpiresAt) {
		return 0, repo.ErrExpired
	}

	// The storage-level guard closes the race between two concurrent
	// restore calls.
	if err := b.undo.MarkUndoRestored(ctx, undoID); err != nil {
		return 0, err
	}

	if err := b.tasks.SetTasksDeleted(ctx, record.TaskIDs, false, time.Time{}); err != nil {
		return 0, fmt.Errorf("unflag tasks: %w", err)
	}

	logger.Info("Service: undo restored",
		zap.String("undo_id", undoID.String()),
		zap.Int("tasks", len(record.TaskIDs)))
	return len(record.TaskIDs), nil
}

// Sweep drops expired unrestored records. Storage retention only; the swept
// tasks remain soft-deleted.
func (b *UndoBuffer) Sweep(ctx context.Context) (int64, error) {
	return b.undo.SweepExpiredUndo(ctx, time.Now())
}

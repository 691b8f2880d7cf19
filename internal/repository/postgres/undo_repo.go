package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"taskbot/internal/logger"
	"taskbot/internal/models"
	repo "taskbot/internal/repository"
)

func (s *Storage) CreateUndoRecord(ctx context.Context, u *models.UndoRecord) error {
	start := time.Now()
	defer warnSlow("create_undo_record", start)

	snapshot, err := json.Marshal(u.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	query := `INSERT INTO undo_records (id, task_ids, snapshot, actor_id, expires_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at`

	err = s.pool.QueryRow(ctx, query, u.ID, u.TaskIDs, snapshot, u.ActorID, u.ExpiresAt).Scan(&u.CreatedAt)
	if err != nil {
		logger.Error("Repository: failed to create undo record", err)
		return fmt.Errorf("create undo record: %w", err)
	}
	return nil
}

func (s *Storage) GetUndoRecordByID(ctx context.Context, id uuid.UUID) (*models.UndoRecord, error) {
	start := time.Now()
	defer warnSlow("get_undo_record", start)

	query := `SELECT id, task_ids, snapshot, actor_id, expires_at, restored, created_at
			FROM undo_records WHERE id = $1`

	u := &models.UndoRecord{}
	var snapshot []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&u.ID,
		&u.TaskIDs,
		&snapshot,
		&u.ActorID,
		&u.ExpiresAt,
		&u.Restored,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: failed to get undo record", err)
		return nil, fmt.Errorf("get undo record: %w", err)
	}
	if err := json.Unmarshal(snapshot, &u.Snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return u, nil
}

// MarkUndoRestored flips the one-time restoration flag; a second call hits
// the restored guard and returns ErrAlreadyRestored.
func (s *Storage) MarkUndoRestored(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	defer warnSlow("mark_undo_restored", start)

	query := `UPDATE undo_records SET restored = TRUE WHERE id = $1 AND NOT restored`

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		logger.Error("Repository: failed to mark undo restored", err)
		return fmt.Errorf("mark undo restored: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrAlreadyRestored
	}
	return nil
}

// SweepExpiredUndo deletes expired unrestored records. Retention only: the
// underlying tasks stay soft-deleted.
func (s *Storage) SweepExpiredUndo(ctx context.Context, now time.Time) (int64, error) {
	start := time.Now()
	defer warnSlow("sweep_expired_undo", start)

	query := `DELETE FROM undo_records WHERE NOT restored AND expires_at <= $1`

	tag, err := s.pool.Exec(ctx, query, now)
	if err != nil {
		logger.Error("Repository: failed to sweep undo records", err)
		return 0, fmt.Errorf("sweep expired undo: %w", err)
	}
	return tag.RowsAffected(), nil
}

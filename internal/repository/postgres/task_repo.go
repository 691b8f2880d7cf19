package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"taskbot/internal/logger"
	"taskbot/internal/models"
	repo "taskbot/internal/repository"
)

const taskColumns = `id, public_id, content, status, priority, progress, deadline,
	creator_id, assignee_id, parent_id, template_id, deleted, deleted_at,
	created_at, updated_at, version`

func (s *Storage) CreateTask(ctx context.Context, t *models.Task) error {
	start := time.Now()
	defer warnSlow("create_task", start)

	query := `INSERT INTO tasks
			(id, public_id, content, status, priority, progress, deadline,
			 creator_id, assignee_id, parent_id, template_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING created_at, version`

	err := s.pool.QueryRow(ctx, query,
		t.ID,
		t.PublicID,
		t.Content,
		t.Status,
		t.Priority,
		t.Progress,
		t.Deadline,
		t.CreatorID,
		t.AssigneeID,
		t.ParentID,
		t.TemplateID,
	).Scan(&t.CreatedAt, &t.Version)

	if err != nil {
		logger.Error("Repository: failed to create task", err, zap.String("public_id", t.PublicID))
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// UpdateTask writes the task back under optimistic versioning; a stale
// version returns ErrVersionConflict.
func (s *Storage) UpdateTask(ctx context.Context, t *models.Task) error {
	start := time.Now()
	defer warnSlow("update_task", start)

	query := `UPDATE tasks
			SET content = $1,
				status = $2,
				priority = $3,
				progress = $4,
				deadline = $5,
				assignee_id = $6,
				version = version + 1,
				updated_at = NOW()
			WHERE id = $7 AND version = $8
			RETURNING updated_at, version`

	err := s.pool.QueryRow(ctx, query,
		t.Content,
		t.Status,
		t.Priority,
		t.Progress,
		t.Deadline,
		t.AssigneeID,
		t.ID,
		t.Version,
	).Scan(&t.UpdatedAt, &t.Version)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.Warn("Repository: version conflict on task update",
				zap.String("task_id", t.ID.String()),
				zap.Int("expected_version", t.Version))
			return repo.ErrVersionConflict
		}
		logger.Error("Repository: failed to update task", err)
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

func (s *Storage) GetTaskByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	start := time.Now()
	defer warnSlow("get_task", start)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	t, err := scanTask(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: failed to get task", err)
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *Storage) GetTaskByPublicID(ctx context.Context, publicID string) (*models.Task, error) {
	start := time.Now()
	defer warnSlow("get_task_by_public_id", start)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE public_id = $1`

	t, err := scanTask(s.pool.QueryRow(ctx, query, publicID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: failed to get task", err)
		return nil, fmt.Errorf("get task by public id: %w", err)
	}
	return t, nil
}

func (s *Storage) GetChildren(ctx context.Context, parentID uuid.UUID) ([]*models.Task, error) {
	start := time.Now()
	defer warnSlow("get_children", start)

	query := `SELECT ` + taskColumns + ` FROM tasks
			WHERE parent_id = $1 AND NOT deleted
			ORDER BY public_id`

	rows, err := s.pool.Query(ctx, query, parentID)
	if err != nil {
		logger.Error("Repository: failed to get children", err)
		return nil, fmt.Errorf("get children: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

func (s *Storage) ListActiveTasks(ctx context.Context, limit int) ([]*models.Task, error) {
	start := time.Now()
	defer warnSlow("list_active_tasks", start)

	query := `SELECT ` + taskColumns + ` FROM tasks
			WHERE NOT deleted AND status != $1
			ORDER BY public_id
			LIMIT $2`

	rows, err := s.pool.Query(ctx, query, models.StatusCompleted, limit)
	if err != nil {
		logger.Error("Repository: failed to list tasks", err)
		return nil, fmt.Errorf("list active tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

func (s *Storage) ListOverdueTasks(ctx context.Context, now time.Time, limit int) ([]*models.Task, error) {
	start := time.Now()
	defer warnSlow("list_overdue_tasks", start)

	query := `SELECT ` + taskColumns + ` FROM tasks
			WHERE NOT deleted AND status != $1 AND deadline IS NOT NULL AND deadline < $2
			ORDER BY deadline
			LIMIT $3`

	rows, err := s.pool.Query(ctx, query, models.StatusCompleted, now, limit)
	if err != nil {
		logger.Error("Repository: failed to list tasks", err)
		return nil, fmt.Errorf("list overdue tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// SetTasksDeleted flips the soft-delete flag for the whole id set in one
// statement, so a bulk delete and its undo move together.
func (s *Storage) SetTasksDeleted(ctx context.Context, ids []uuid.UUID, deleted bool, at time.Time) error {
	start := time.Now()
	defer warnSlow("set_tasks_deleted", start)

	query := `UPDATE tasks
			SET deleted = $1,
				deleted_at = CASE WHEN $1 THEN $2 ELSE NULL END,
				version = version + 1
			WHERE id = ANY($3)`

	tag, err := s.pool.Exec(ctx, query, deleted, at, ids)
	if err != nil {
		logger.Error("Repository: failed to flip deleted flag", err)
		return fmt.Errorf("set tasks deleted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (*models.Task, error) {
	t := &models.Task{}
	err := row.Scan(
		&t.ID,
		&t.PublicID,
		&t.Content,
		&t.Status,
		&t.Priority,
		&t.Progress,
		&t.Deadline,
		&t.CreatorID,
		&t.AssigneeID,
		&t.ParentID,
		&t.TemplateID,
		&t.Deleted,
		&t.DeletedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.Version,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func collectTasks(rows pgx.Rows) ([]*models.Task, error) {
	tasks := []*models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			logger.Warn("Repository: failed to scan task row", zap.Error(err))
			continue
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: row iteration failed", err)
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return tasks, nil
}

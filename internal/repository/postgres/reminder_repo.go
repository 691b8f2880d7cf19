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

func (s *Storage) CreateReminder(ctx context.Context, r *models.Reminder) error {
	start := time.Now()
	defer warnSlow("create_reminder", start)

	query := `INSERT INTO reminders (id, task_id, user_id, remind_at, type)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at`

	err := s.pool.QueryRow(ctx, query,
		r.ID,
		r.TaskID,
		r.UserID,
		r.RemindAt,
		r.Type,
	).Scan(&r.CreatedAt)

	if err != nil {
		logger.Error("Repository: failed to create reminder", err)
		return fmt.Errorf("create reminder: %w", err)
	}
	return nil
}

func (s *Storage) GetReminderByID(ctx context.Context, id uuid.UUID) (*models.Reminder, error) {
	start := time.Now()
	defer warnSlow("get_reminder", start)

	query := `SELECT id, task_id, user_id, remind_at, type, sent, sent_at, error_message, created_at
			FROM reminders WHERE id = $1`

	r := &models.Reminder{}
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&r.ID,
		&r.TaskID,
		&r.UserID,
		&r.RemindAt,
		&r.Type,
		&r.Sent,
		&r.SentAt,
		&r.ErrorMessage,
		&r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: failed to get reminder", err)
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return r, nil
}

// UpdateReminder rewrites the mutable reminder fields; snooze uses it to
// clear the sent flag and push remind_at forward.
func (s *Storage) UpdateReminder(ctx context.Context, r *models.Reminder) error {
	start := time.Now()
	defer warnSlow("update_reminder", start)

	query := `UPDATE reminders
			SET remind_at = $1, sent = $2, sent_at = $3, error_message = $4
			WHERE id = $5`

	tag, err := s.pool.Exec(ctx, query, r.RemindAt, r.Sent, r.SentAt, r.ErrorMessage, r.ID)
	if err != nil {
		logger.Error("Repository: failed to update reminder", err)
		return fmt.Errorf("update reminder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// FetchDueReminders selects unsent reminders due at or before now whose
// owning task is neither deleted nor completed, joined with the task and the
// recipient.
func (s *Storage) FetchDueReminders(ctx context.Context, now time.Time, limit int) ([]*models.DueReminder, error) {
	start := time.Now()
	defer warnSlow("fetch_due_reminders", start)

	query := `SELECT
				r.id, r.task_id, r.user_id, r.remind_at, r.type, r.sent, r.sent_at, r.error_message, r.created_at,
				t.id, t.public_id, t.content, t.status, t.priority, t.progress, t.deadline,
				t.creator_id, t.assignee_id, t.parent_id, t.template_id, t.deleted, t.deleted_at,
				t.created_at, t.updated_at, t.version,
				COALESCE(u.id, r.user_id), COALESCE(u.username, ''), COALESCE(u.chat_id, r.user_id)
			FROM reminders r
			JOIN tasks t ON t.id = r.task_id
			LEFT JOIN users u ON u.id = r.user_id
			WHERE NOT r.sent
				AND r.remind_at <= $1
				AND NOT t.deleted
				AND t.status != $2
			ORDER BY r.remind_at
			LIMIT $3`

	rows, err := s.pool.Query(ctx, query, now, models.StatusCompleted, limit)
	if err != nil {
		logger.Error("Repository: failed to fetch due reminders", err)
		return nil, fmt.Errorf("fetch due reminders: %w", err)
	}
	defer rows.Close()

	due := []*models.DueReminder{}
	for rows.Next() {
		r := &models.Reminder{}
		t := &models.Task{}
		u := &models.User{}
		err := rows.Scan(
			&r.ID, &r.TaskID, &r.UserID, &r.RemindAt, &r.Type, &r.Sent, &r.SentAt, &r.ErrorMessage, &r.CreatedAt,
			&t.ID, &t.PublicID, &t.Content, &t.Status, &t.Priority, &t.Progress, &t.Deadline,
			&t.CreatorID, &t.AssigneeID, &t.ParentID, &t.TemplateID, &t.Deleted, &t.DeletedAt,
			&t.CreatedAt, &t.UpdatedAt, &t.Version,
			&u.ID, &u.Username, &u.ChatID,
		)
		if err != nil {
			logger.Warn("Repository: failed to scan due reminder row", zap.Error(err))
			continue
		}
		due = append(due, &models.DueReminder{Reminder: r, Task: t, User: u})
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: row iteration failed", err)
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return due, nil
}

// MarkReminderSent flips a reminder to its terminal state. A non-nil errMsg
// records a failed delivery attempt; the record is terminal either way.
func (s *Storage) MarkReminderSent(ctx context.Context, id uuid.UUID, errMsg *string) error {
	start := time.Now()
	defer warnSlow("mark_reminder_sent", start)

	query := `UPDATE reminders
			SET sent = TRUE, sent_at = NOW(), error_message = $1
			WHERE id = $2`

	tag, err := s.pool.Exec(ctx, query, errMsg, id)
	if err != nil {
		logger.Error("Repository: failed to mark reminder sent", err)
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// CancelRemindersForTask drops the unsent reminders of a task that was
// completed or deleted.
func (s *Storage) CancelRemindersForTask(ctx context.Context, taskID uuid.UUID) (int64, error) {
	start := time.Now()
	defer warnSlow("cancel_reminders_for_task", start)

	query := `DELETE FROM reminders WHERE task_id = $1 AND NOT sent`

	tag, err := s.pool.Exec(ctx, query, taskID)
	if err != nil {
		logger.Error("Repository: failed to cancel reminders", err)
		return 0, fmt.Errorf("cancel reminders: %w", err)
	}
	return tag.RowsAffected(), nil
}

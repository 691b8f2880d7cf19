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

const templateColumns = `id, public_id, content, rule_type, rule_interval, rule_weekdays,
	rule_monthdays, rule_hour, rule_minute, end_date, max_count, next_due,
	last_generated, instances_created, active, creator_id, created_at`

func (s *Storage) CreateTemplate(ctx context.Context, t *models.RecurringTemplate) error {
	start := time.Now()
	defer warnSlow("create_template", start)

	query := `INSERT INTO recurring_templates
			(id, public_id, content, rule_type, rule_interval, rule_weekdays,
			 rule_monthdays, rule_hour, rule_minute, end_date, max_count, next_due, creator_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING created_at`

	err := s.pool.QueryRow(ctx, query,
		t.ID,
		t.PublicID,
		t.Content,
		t.Rule.Type,
		t.Rule.Interval,
		weekdaysToInts(t.Rule.Weekdays),
		intsToInt32(t.Rule.MonthDays),
		t.Rule.Hour,
		t.Rule.Minute,
		t.EndDate,
		t.MaxCount,
		t.NextDue,
		t.CreatorID,
	).Scan(&t.CreatedAt)

	if err != nil {
		logger.Error("Repository: failed to create template", err, zap.String("public_id", t.PublicID))
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

func (s *Storage) GetTemplateByID(ctx context.Context, id uuid.UUID) (*models.RecurringTemplate, error) {
	start := time.Now()
	defer warnSlow("get_template", start)

	query := `SELECT ` + templateColumns + ` FROM recurring_templates WHERE id = $1`

	t, err := scanTemplate(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: failed to get template", err)
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (s *Storage) UpdateTemplate(ctx context.Context, t *models.RecurringTemplate) error {
	start := time.Now()
	defer warnSlow("update_template", start)

	query := `UPDATE recurring_templates
			SET content = $1, end_date = $2, max_count = $3, active = $4
			WHERE id = $5`

	tag, err := s.pool.Exec(ctx, query, t.Content, t.EndDate, t.MaxCount, t.Active, t.ID)
	if err != nil {
		logger.Error("Repository: failed to update template", err)
		return fmt.Errorf("update template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Storage) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	defer warnSlow("delete_template", start)

	tag, err := s.pool.Exec(ctx, `DELETE FROM recurring_templates WHERE id = $1`, id)
	if err != nil {
		logger.Error("Repository: failed to delete template", err)
		return fmt.Errorf("delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Storage) ListTemplatesByCreator(ctx context.Context, creatorID int64) ([]*models.RecurringTemplate, error) {
	start := time.Now()
	defer warnSlow("list_templates", start)

	query := `SELECT ` + templateColumns + ` FROM recurring_templates
			WHERE creator_id = $1
			ORDER BY public_id`

	rows, err := s.pool.Query(ctx, query, creatorID)
	if err != nil {
		logger.Error("Repository: failed to list templates", err)
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	return collectTemplates(rows)
}

// FetchDueTemplates selects active templates whose next_due has arrived and
// whose end date / instance budget still allow generation, next_due ascending.
func (s *Storage) FetchDueTemplates(ctx context.Context, now time.Time) ([]*models.RecurringTemplate, error) {
	start := time.Now()
	defer warnSlow("fetch_due_templates", start)

	query := `SELECT ` + templateColumns + ` FROM recurring_templates
			WHERE active
				AND next_due <= $1
				AND (end_date IS NULL OR end_date > $1)
				AND (max_count IS NULL OR instances_created < max_count)
			ORDER BY next_due`

	rows, err := s.pool.Query(ctx, query, now)
	if err != nil {
		logger.Error("Repository: failed to fetch due templates", err)
		return nil, fmt.Errorf("fetch due templates: %w", err)
	}
	defer rows.Close()

	return collectTemplates(rows)
}

func (s *Storage) UpdateTemplateProgress(ctx context.Context, id uuid.UUID, nextDue, lastGenerated time.Time, instances int) error {
	start := time.Now()
	defer warnSlow("update_template_progress", start)

	query := `UPDATE recurring_templates
			SET next_due = $1, last_generated = $2, instances_created = $3
			WHERE id = $4`

	tag, err := s.pool.Exec(ctx, query, nextDue, lastGenerated, instances, id)
	if err != nil {
		logger.Error("Repository: failed to advance template", err)
		return fmt.Errorf("update template progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func scanTemplate(row pgx.Row) (*models.RecurringTemplate, error) {
	t := &models.RecurringTemplate{}
	var weekdays, monthdays []int32
	err := row.Scan(
		&t.ID,
		&t.PublicID,
		&t.Content,
		&t.Rule.Type,
		&t.Rule.Interval,
		&weekdays,
		&monthdays,
		&t.Rule.Hour,
		&t.Rule.Minute,
		&t.EndDate,
		&t.MaxCount,
		&t.NextDue,
		&t.LastGenerated,
		&t.InstancesCreated,
		&t.Active,
		&t.CreatorID,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Rule.Weekdays = intsToWeekdays(weekdays)
	t.Rule.MonthDays = int32ToInts(monthdays)
	return t, nil
}

func collectTemplates(rows pgx.Rows) ([]*models.RecurringTemplate, error) {
	templates := []*models.RecurringTemplate{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			logger.Warn("Repository: failed to scan template row", zap.Error(err))
			continue
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: row iteration failed", err)
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return templates, nil
}

func weekdaysToInts(days []time.Weekday) []int32 {
	out := make([]int32, len(days))
	for i, d := range days {
		out[i] = int32(d)
	}
	return out
}

func intsToWeekdays(days []int32) []time.Weekday {
	if len(days) == 0 {
		return nil
	}
	out := make([]time.Weekday, len(days))
	for i, d := range days {
		out[i] = time.Weekday(d)
	}
	return out
}

func intsToInt32(days []int) []int32 {
	out := make([]int32, len(days))
	for i, d := range days {
		out[i] = int32(d)
	}
	return out
}

func int32ToInts(days []int32) []int {
	if len(days) == 0 {
		return nil
	}
	out := make([]int, len(days))
	for i, d := range days {
		out[i] = int(d)
	}
	return out
}

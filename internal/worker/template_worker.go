package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskbot/internal/logger"
	"taskbot/internal/models"
	"taskbot/internal/recurrence"
)

const defaultTemplateInterval = 5 * time.Minute

// TemplateStore is the slice of storage the generation loop needs.
type TemplateStore interface {
	FetchDueTemplates(ctx context.Context, now time.Time) ([]*models.RecurringTemplate, error)
	UpdateTemplateProgress(ctx context.Context, id uuid.UUID, nextDue, lastGenerated time.Time, instances int) error
}

// TaskCreator instantiates a concrete task for a due template.
type TaskCreator interface {
	CreateFromTemplate(ctx context.Context, tpl *models.RecurringTemplate) (*models.Task, error)
}

// TemplateWorker turns due recurring templates into concrete tasks and
// advances each template past its consumed due date, so an immediate second
// tick sees nothing due.
type TemplateWorker struct {
	store    TemplateStore
	creator  TaskCreator
	interval time.Duration

	tickMtx sync.Mutex
}

func NewTemplateWorker(store TemplateStore, creator TaskCreator, interval time.Duration) *TemplateWorker {
	if interval <= 0 {
		interval = defaultTemplateInterval
	}
	return &TemplateWorker{
		store:    store,
		creator:  creator,
		interval: interval,
	}
}

func (w *TemplateWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logger.Info("Worker: template generation loop started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ticker.C:
			w.Tick(ctx)
		case <-ctx.Done():
			logger.Info("Worker: template generation loop stopping")
			return
		}
	}
}

// Tick processes every due template independently; one failing template must
// not block the others.
func (w *TemplateWorker) Tick(ctx context.Context) {
	if !w.tickMtx.TryLock() {
		logger.Warn("Worker: template tick skipped, previous tick still running")
		return
	}
	defer w.tickMtx.Unlock()

	start := time.Now()

	due, err := w.store.FetchDueTemplates(ctx, start)
	if err != nil {
		logger.Warn("Worker: failed to fetch due templates", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}

	generated := 0
	for _, tpl := range due {
		if w.generate(ctx, tpl) {
			generated++
		}
	}

	logger.Info("Worker: template tick finished",
		zap.Duration("ms", time.Since(start)),
		zap.Int("due", len(due)),
		zap.Int("generated", generated))
}

func (w *TemplateWorker) generate(ctx context.Context, tpl *models.RecurringTemplate) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Worker: panic generating template instance", nil,
				zap.String("template_id", tpl.ID.String()),
				zap.Any("panic", r))
			ok = false
		}
	}()

	task, err := w.creator.CreateFromTemplate(ctx, tpl)
	if err != nil {
		// Skipped this tick; next_due is untouched so the next tick
		// retries naturally.
		logger.Warn("Worker: failed to create task from template",
			zap.String("template_id", tpl.ID.String()),
			zap.Error(err))
		return false
	}

	usedDue := tpl.NextDue
	now := time.Now()
	nextDue, found := recurrence.Next(tpl.Rule, usedDue, now)
	if !found {
		logger.Warn("Worker: rule produced no next occurrence",
			zap.String("template_id", tpl.ID.String()),
			zap.String("rule_type", string(tpl.Rule.Type)))
		return false
	}

	err = w.store.UpdateTemplateProgress(ctx, tpl.ID, nextDue, usedDue, tpl.InstancesCreated+1)
	if err != nil {
		logger.Warn("Worker: failed to advance template",
			zap.String("template_id", tpl.ID.String()),
			zap.Error(err))
		return false
	}

	logger.Info("Worker: task generated from template",
		zap.String("template", tpl.PublicID),
		zap.String("task", task.PublicID),
		zap.Time("next_due", nextDue))
	return true
}

package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskbot/internal/logger"
	"taskbot/internal/models"
	"taskbot/internal/notifier"
)

const (
	defaultReminderInterval = time.Minute
	defaultReminderBatch    = 50
)

// ReminderStore is the slice of storage the dispatch loop needs.
type ReminderStore interface {
	FetchDueReminders(ctx context.Context, now time.Time, limit int) ([]*models.DueReminder, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, errMsg *string) error
}

// ReminderWorker delivers due reminders once per tick. Delivery is
// at-most-one-attempt: whatever the notifier says, the reminder goes
// terminal, with the error recorded on failure.
type ReminderWorker struct {
	store    ReminderStore
	notifier notifier.Notifier
	interval time.Duration
	batch    int

	// Guards against overlapping ticks; a tick arriving while the
	// previous one still runs is skipped, not queued.
	tickMtx sync.Mutex
}

func NewReminderWorker(store ReminderStore, n notifier.Notifier, interval time.Duration, batch int) *ReminderWorker {
	if interval <= 0 {
		interval = defaultReminderInterval
	}
	if batch <= 0 {
		batch = defaultReminderBatch
	}
	return &ReminderWorker{
		store:    store,
		notifier: n,
		interval: interval,
		batch:    batch,
	}
}

func (w *ReminderWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logger.Info("Worker: reminder dispatch loop started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ticker.C:
			w.Tick(ctx)
		case <-ctx.Done():
			logger.Info("Worker: reminder dispatch loop stopping")
			return
		}
	}
}

// Tick fetches one batch of due reminders and attempts each delivery
// independently; a failure on one item never aborts the rest.
func (w *ReminderWorker) Tick(ctx context.Context) {
	if !w.tickMtx.TryLock() {
		logger.Warn("Worker: reminder tick skipped, previous tick still running")
		return
	}
	defer w.tickMtx.Unlock()

	start := time.Now()

	due, err := w.store.FetchDueReminders(ctx, start, w.batch)
	if err != nil {
		logger.Warn("Worker: failed to fetch due reminders", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}

	sent, failed := 0, 0
	for _, d := range due {
		if err := w.deliver(ctx, d); err != nil {
			failed++
			continue
		}
		sent++
	}

	logger.Info("Worker: reminder tick finished",
		zap.Duration("ms", time.Since(start)),
		zap.Int("due", len(due)),
		zap.Int("sent", sent),
		zap.Int("failed", failed))
}

func (w *ReminderWorker) deliver(ctx context.Context, d *models.DueReminder) (err error) {
	defer func() {
		// One panicking item must not take down the batch or the loop.
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during delivery: %v", r)
			logger.Error("Worker: panic delivering reminder", err,
				zap.String("reminder_id", d.Reminder.ID.String()))
		}
	}()

	msg := notifier.Message{
		Kind:         d.Reminder.Type,
		TaskPublicID: d.Task.PublicID,
		Content:      d.Task.Content,
		Deadline:     d.Task.Deadline,
	}

	var errMsg *string
	if sendErr := w.notifier.Send(ctx, d.User.ChatID, msg); sendErr != nil {
		// At-most-one-attempt: record the failure, the reminder still
		// goes terminal and is never retried.
		text := sendErr.Error()
		errMsg = &text
		logger.Warn("Worker: reminder delivery failed",
			zap.String("reminder_id", d.Reminder.ID.String()),
			zap.Int64("chat_id", d.User.ChatID),
			zap.Error(sendErr))
	}

	if markErr := w.store.MarkReminderSent(ctx, d.Reminder.ID, errMsg); markErr != nil {
		// The reminder stays pending and will be retried naturally on
		// the next tick.
		logger.Warn("Worker: failed to mark reminder terminal",
			zap.String("reminder_id", d.Reminder.ID.String()),
			zap.Error(markErr))
		return markErr
	}

	if errMsg != nil {
		return fmt.Errorf("delivery failed: %s", *errMsg)
	}
	return nil
}

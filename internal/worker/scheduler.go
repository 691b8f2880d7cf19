package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskbot/internal/logger"
)

// Scheduler owns the two periodic loops (reminder dispatch, template
// generation plus undo sweeping) and the one-off job registry. Collaborators
// come in through the constructor; lifecycle is explicit Start/Stop. Running
// more than one scheduler instance against the same store causes duplicate
// delivery and generation; single-instance deployment is assumed.
type Scheduler struct {
	reminders *ReminderWorker
	templates *TemplateWorker
	sweeper   *UndoSweeper
	registry  *JobRegistry

	wg     sync.WaitGroup
	cancel context.CancelFunc
	mtx    sync.Mutex
}

func NewScheduler(reminders *ReminderWorker, templates *TemplateWorker, sweeper *UndoSweeper) *Scheduler {
	return &Scheduler{
		reminders: reminders,
		templates: templates,
		sweeper:   sweeper,
		registry:  NewJobRegistry(),
	}
}

// Start launches the periodic loops. Calling Start on a running scheduler is
// a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)

	for _, w := range []interface{ Start(context.Context) }{s.reminders, s.templates, s.sweeper} {
		s.wg.Add(1)
		go func(w interface{ Start(context.Context) }) {
			defer s.wg.Done()
			w.Start(ctx)
		}(w)
	}

	logger.Info("Scheduler: started")
}

// Stop cancels the loops and every pending one-off job, then waits for any
// in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mtx.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mtx.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	s.registry.Stop()
	s.wg.Wait()
	logger.Info("Scheduler: stopped")
}

// ScheduleCustomReminder registers a one-off job that forces a reminder tick
// at the target instant, so a custom reminder fires on time instead of up to
// a minute late. Duplicate registration for the same (task, user, instant)
// is a no-op. The job runs under its own context: the caller's request
// context is long gone by the time it fires.
func (s *Scheduler) ScheduleCustomReminder(taskID uuid.UUID, userID int64, at time.Time) bool {
	id := CustomReminderJobID(taskID, userID, at)
	return s.registry.Register(id, at, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		s.reminders.Tick(ctx)
	})
}

// CancelCustomReminder withdraws a pending one-off reminder job before it
// fires.
func (s *Scheduler) CancelCustomReminder(taskID uuid.UUID, userID int64, at time.Time) bool {
	return s.registry.Cancel(CustomReminderJobID(taskID, userID, at))
}

// Registry exposes the one-off job registry for callers that build their own
// job ids.
func (s *Scheduler) Registry() *JobRegistry {
	return s.registry
}

package worker

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskbot/internal/logger"
)

// JobRegistry holds dynamically registered one-off jobs (custom reminders)
// keyed by a deterministic id, so registering the same job twice is a no-op
// and a pending job can be withdrawn before it fires.
type JobRegistry struct {
	mtx  sync.Mutex
	jobs map[string]*time.Timer
}

func NewJobRegistry() *JobRegistry {
	return &JobRegistry{
		jobs: make(map[string]*time.Timer),
	}
}

// CustomReminderJobID builds the deterministic key for a one-off reminder
// job from the task, the recipient and the target instant.
func CustomReminderJobID(taskID uuid.UUID, userID int64, at time.Time) string {
	return fmt.Sprintf("reminder:%s:%d:%d", taskID, userID, at.Unix())
}

// Register schedules fn to run once at the given instant. Returns false when
// a job with the same id is already pending.
func (r *JobRegistry) Register(id string, at time.Time, fn func()) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if _, exists := r.jobs[id]; exists {
		return false
	}

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}

	r.jobs[id] = time.AfterFunc(delay, func() {
		r.mtx.Lock()
		delete(r.jobs, id)
		r.mtx.Unlock()
		fn()
	})

	logger.Debug("Scheduler: one-off job registered",
		zap.String("job_id", id),
		zap.Time("at", at))
	return true
}

// Cancel withdraws a pending job. Returns false when the job is unknown or
// has already fired.
func (r *JobRegistry) Cancel(id string) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	timer, ok := r.jobs[id]
	if !ok {
		return false
	}
	timer.Stop()
	delete(r.jobs, id)

	logger.Debug("Scheduler: one-off job cancelled", zap.String("job_id", id))
	return true
}

func (r *JobRegistry) Len() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return len(r.jobs)
}

// Stop cancels every pending job.
func (r *JobRegistry) Stop() {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	for id, timer := range r.jobs {
		timer.Stop()
		delete(r.jobs, id)
	}
}

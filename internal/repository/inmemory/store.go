// Package inmemory is a mutex-guarded map implementation of the storage
// surface, used by tests and the dev repository type.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskbot/internal/models"
	repo "taskbot/internal/repository"
)

type Store struct {
	mtx       sync.RWMutex
	tasks     map[uuid.UUID]*models.Task
	byPublic  map[string]uuid.UUID
	reminders map[uuid.UUID]*models.Reminder
	templates map[uuid.UUID]*models.RecurringTemplate
	undos     map[uuid.UUID]*models.UndoRecord
	users     map[int64]*models.User
	counters  map[string]int64
}

func New() *Store {
	return &Store{
		tasks:     make(map[uuid.UUID]*models.Task),
		byPublic:  make(map[string]uuid.UUID),
		reminders: make(map[uuid.UUID]*models.Reminder),
		templates: make(map[uuid.UUID]*models.RecurringTemplate),
		undos:     make(map[uuid.UUID]*models.UndoRecord),
		users:     make(map[int64]*models.User),
		counters:  make(map[string]int64),
	}
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return nil
}

func (s *Store) Close() {}

// ---- tasks ----

func (s *Store) CreateTask(ctx context.Context, t *models.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.byPublic[t.PublicID]; ok {
		return repo.ErrDuplicate
	}

	t.CreatedAt = time.Now()
	t.Version = 1
	s.tasks[t.ID] = cloneTask(t)
	s.byPublic[t.PublicID] = t.ID
	return nil
}

func (s *Store) UpdateTask(ctx context.Context, t *models.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	existing, ok := s.tasks[t.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if existing.Version != t.Version {
		return repo.ErrVersionConflict
	}

	now := time.Now()
	t.UpdatedAt = &now
	t.Version++
	s.tasks[t.ID] = cloneTask(t)
	return nil
}

func (s *Store) GetTaskByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return cloneTask(t), nil
}

func (s *Store) GetTaskByPublicID(ctx context.Context, publicID string) (*models.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	id, ok := s.byPublic[publicID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return cloneTask(s.tasks[id]), nil
}

func (s *Store) GetChildren(ctx context.Context, parentID uuid.UUID) ([]*models.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	children := []*models.Task{}
	for _, t := range s.tasks {
		if t.ParentID != nil && *t.ParentID == parentID && !t.Deleted {
			children = append(children, cloneTask(t))
		}
	}
	sort.Slice(children, func(i, j int) bool {
		return children[i].PublicID < children[j].PublicID
	})
	return children, nil
}

func (s *Store) ListActiveTasks(ctx context.Context, limit int) ([]*models.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	tasks := []*models.Task{}
	for _, t := range s.tasks {
		if !t.Deleted && t.Status != models.StatusCompleted {
			tasks = append(tasks, cloneTask(t))
		}
	}
	sortByPublicID(tasks)
	return clip(tasks, limit), nil
}

func (s *Store) ListOverdueTasks(ctx context.Context, now time.Time, limit int) ([]*models.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	tasks := []*models.Task{}
	for _, t := range s.tasks {
		if !t.Deleted && t.IsOverdue(now) {
			tasks = append(tasks, cloneTask(t))
		}
	}
	sortByPublicID(tasks)
	return clip(tasks, limit), nil
}

func (s *Store) SetTasksDeleted(ctx context.Context, ids []uuid.UUID, deleted bool, at time.Time) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for _, id := range ids {
		t, ok := s.tasks[id]
		if !ok {
			return repo.ErrNotFound
		}
		t.Deleted = deleted
		if deleted {
			deletedAt := at
			t.DeletedAt = &deletedAt
		} else {
			t.DeletedAt = nil
		}
		t.Version++
	}
	return nil
}

// ---- reminders ----

func (s *Store) CreateReminder(ctx context.Context, r *models.Reminder) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	r.CreatedAt = time.Now()
	s.reminders[r.ID] = cloneReminder(r)
	return nil
}

func (s *Store) GetReminderByID(ctx context.Context, id uuid.UUID) (*models.Reminder, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	r, ok := s.reminders[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return cloneReminder(r), nil
}

func (s *Store) UpdateReminder(ctx context.Context, r *models.Reminder) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.reminders[r.ID]; !ok {
		return repo.ErrNotFound
	}
	s.reminders[r.ID] = cloneReminder(r)
	return nil
}

// FetchDueReminders returns unsent reminders due at or before now whose
// owning task is neither deleted nor completed, joined with task and user.
func (s *Store) FetchDueReminders(ctx context.Context, now time.Time, limit int) ([]*models.DueReminder, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	due := []*models.DueReminder{}
	for _, r := range s.reminders {
		if r.Sent || r.RemindAt.After(now) {
			continue
		}
		t, ok := s.tasks[r.TaskID]
		if !ok || t.Deleted || t.Status == models.StatusCompleted {
			continue
		}
		u, ok := s.users[r.UserID]
		if !ok {
			u = &models.User{ID: r.UserID, ChatID: r.UserID}
		}
		due = append(due, &models.DueReminder{
			Reminder: cloneReminder(r),
			Task:     cloneTask(t),
			User:     u,
		})
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].Reminder.RemindAt.Before(due[j].Reminder.RemindAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// MarkReminderSent flips the reminder to its terminal state. A non-nil
// errMsg records a failed delivery attempt; the record is still terminal.
func (s *Store) MarkReminderSent(ctx context.Context, id uuid.UUID, errMsg *string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	r, ok := s.reminders[id]
	if !ok {
		return repo.ErrNotFound
	}
	now := time.Now()
	r.Sent = true
	r.SentAt = &now
	r.ErrorMessage = errMsg
	return nil
}

// CancelRemindersForTask drops unsent reminders of a task that was completed
// or deleted.
func (s *Store) CancelRemindersForTask(ctx context.Context, taskID uuid.UUID) (int64, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	var cancelled int64
	for id, r := range s.reminders {
		if r.TaskID == taskID && !r.Sent {
			delete(s.reminders, id)
			cancelled++
		}
	}
	return cancelled, nil
}

// ---- recurring templates ----

func (s *Store) CreateTemplate(ctx context.Context, t *models.RecurringTemplate) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	t.CreatedAt = time.Now()
	s.templates[t.ID] = cloneTemplate(t)
	return nil
}

func (s *Store) GetTemplateByID(ctx context.Context, id uuid.UUID) (*models.RecurringTemplate, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	t, ok := s.templates[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return cloneTemplate(t), nil
}

func (s *Store) UpdateTemplate(ctx context.Context, t *models.RecurringTemplate) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.templates[t.ID]; !ok {
		return repo.ErrNotFound
	}
	s.templates[t.ID] = cloneTemplate(t)
	return nil
}

func (s *Store) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.templates[id]; !ok {
		return repo.ErrNotFound
	}
	delete(s.templates, id)
	return nil
}

func (s *Store) ListTemplatesByCreator(ctx context.Context, creatorID int64) ([]*models.RecurringTemplate, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	templates := []*models.RecurringTemplate{}
	for _, t := range s.templates {
		if t.CreatorID == creatorID {
			templates = append(templates, cloneTemplate(t))
		}
	}
	sort.Slice(templates, func(i, j int) bool {
		return templates[i].PublicID < templates[j].PublicID
	})
	return templates, nil
}

// FetchDueTemplates returns active templates whose next_due has arrived and
// whose end date / instance budget still allow generation, next_due ascending.
func (s *Store) FetchDueTemplates(ctx context.Context, now time.Time) ([]*models.RecurringTemplate, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	due := []*models.RecurringTemplate{}
	for _, t := range s.templates {
		if t.Due(now) {
			due = append(due, cloneTemplate(t))
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextDue.Before(due[j].NextDue)
	})
	return due, nil
}

func (s *Store) UpdateTemplateProgress(ctx context.Context, id uuid.UUID, nextDue, lastGenerated time.Time, instances int) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	t, ok := s.templates[id]
	if !ok {
		return repo.ErrNotFound
	}
	t.NextDue = nextDue
	generated := lastGenerated
	t.LastGenerated = &generated
	t.InstancesCreated = instances
	return nil
}

// ---- undo records ----

func (s *Store) CreateUndoRecord(ctx context.Context, u *models.UndoRecord) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	u.CreatedAt = time.Now()
	s.undos[u.ID] = cloneUndo(u)
	return nil
}

func (s *Store) GetUndoRecordByID(ctx context.Context, id uuid.UUID) (*models.UndoRecord, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	u, ok := s.undos[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return cloneUndo(u), nil
}

func (s *Store) MarkUndoRestored(ctx context.Context, id uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	u, ok := s.undos[id]
	if !ok {
		return repo.ErrNotFound
	}
	if u.Restored {
		return repo.ErrAlreadyRestored
	}
	u.Restored = true
	return nil
}

// SweepExpiredUndo deletes expired unrestored records. Retention only: the
// underlying tasks stay soft-deleted.
func (s *Store) SweepExpiredUndo(ctx context.Context, now time.Time) (int64, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	var swept int64
	for id, u := range s.undos {
		if !u.Restored && !u.ExpiresAt.After(now) {
			delete(s.undos, id)
			swept++
		}
	}
	return swept, nil
}

// ---- users ----

func (s *Store) UpsertUser(ctx context.Context, u *models.User) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	copied := *u
	s.users[u.ID] = &copied
	return nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

// ---- id allocation ----

// AllocateNextID increments the named counter under the store lock, mirroring
// the storage-level atomic increment of the postgres implementation.
func (s *Store) AllocateNextID(ctx context.Context, name string) (int64, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.counters[name]++
	return s.counters[name], nil
}

// ---- helpers ----

func cloneTask(t *models.Task) *models.Task {
	copied := *t
	return &copied
}

func cloneReminder(r *models.Reminder) *models.Reminder {
	copied := *r
	return &copied
}

func cloneTemplate(t *models.RecurringTemplate) *models.RecurringTemplate {
	copied := *t
	return &copied
}

func cloneUndo(u *models.UndoRecord) *models.UndoRecord {
	copied := *u
	copied.TaskIDs = append([]uuid.UUID(nil), u.TaskIDs...)
	copied.Snapshot = append([]models.Task(nil), u.Snapshot...)
	return &copied
}

func sortByPublicID(tasks []*models.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].PublicID < tasks[j].PublicID
	})
}

func clip(tasks []*models.Task, limit int) []*models.Task {
	if limit > 0 && len(tasks) > limit {
		return tasks[:limit]
	}
	return tasks
}

package inmemory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskbot/internal/models"
	repo "taskbot/internal/repository"
)

func newTask(publicID string, deadline *time.Time) *models.Task {
	return &models.Task{
		ID:         uuid.New(),
		PublicID:   publicID,
		Content:    "nội dung",
		Status:     models.StatusPending,
		Priority:   models.PriorityNormal,
		Deadline:   deadline,
		CreatorID:  1,
		AssigneeID: 1,
	}
}

func TestStoreTaskLifecycle(t *testing.T) {
	store := New()
	ctx := context.Background()

	task := newTask("TASK-00001", nil)
	require.NoError(t, store.CreateTask(ctx, task))
	assert.Equal(t, 1, task.Version)
	assert.False(t, task.CreatedAt.IsZero())

	// Duplicate public ids are rejected.
	dup := newTask("TASK-00001", nil)
	assert.ErrorIs(t, store.CreateTask(ctx, dup), repo.ErrDuplicate)

	got, err := store.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.PublicID, got.PublicID)

	byPublic, err := store.GetTaskByPublicID(ctx, "TASK-00001")
	require.NoError(t, err)
	assert.Equal(t, task.ID, byPublic.ID)

	_, err = store.GetTaskByID(ctx, uuid.New())
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestStoreUpdateTaskVersionConflict(t *testing.T) {
	store := New()
	ctx := context.Background()

	task := newTask("TASK-00001", nil)
	require.NoError(t, store.CreateTask(ctx, task))

	first, err := store.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	second, err := store.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)

	first.Content = "bản một"
	require.NoError(t, store.UpdateTask(ctx, first))
	assert.Equal(t, 2, first.Version)

	second.Content = "bản hai"
	assert.ErrorIs(t, store.UpdateTask(ctx, second), repo.ErrVersionConflict)
}

func TestStoreListActiveExcludesDeletedAndCompleted(t *testing.T) {
	store := New()
	ctx := context.Background()

	active := newTask("TASK-00001", nil)
	completed := newTask("TASK-00002", nil)
	completed.Status = models.StatusCompleted
	deleted := newTask("TASK-00003", nil)

	for _, task := range []*models.Task{active, completed, deleted} {
		require.NoError(t, store.CreateTask(ctx, task))
	}
	require.NoError(t, store.SetTasksDeleted(ctx, []uuid.UUID{deleted.ID}, true, time.Now()))

	tasks, err := store.ListActiveTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "TASK-00001", tasks[0].PublicID)
}

func TestStoreFetchDueRemindersFiltering(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	healthy := newTask("TASK-00001", nil)
	completedTask := newTask("TASK-00002", nil)
	completedTask.Status = models.StatusCompleted
	deletedTask := newTask("TASK-00003", nil)
	for _, task := range []*models.Task{healthy, completedTask, deletedTask} {
		require.NoError(t, store.CreateTask(ctx, task))
	}
	require.NoError(t, store.SetTasksDeleted(ctx, []uuid.UUID{deletedTask.ID}, true, now))

	mk := func(taskID uuid.UUID, remindAt time.Time, sent bool) *models.Reminder {
		r := &models.Reminder{
			ID:       uuid.New(),
			TaskID:   taskID,
			UserID:   1,
			RemindAt: remindAt,
			Type:     models.ReminderCustom,
			Sent:     sent,
		}
		require.NoError(t, store.CreateReminder(ctx, r))
		return r
	}

	due := mk(healthy.ID, now.Add(-2*time.Minute), false)
	mk(healthy.ID, now.Add(time.Hour), false)    // not due yet
	mk(healthy.ID, now.Add(-time.Minute), true)  // already terminal
	mk(completedTask.ID, now.Add(-time.Minute), false)
	mk(deletedTask.ID, now.Add(-time.Minute), false)

	got, err := store.FetchDueReminders(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, due.ID, got[0].Reminder.ID)
	assert.Equal(t, healthy.ID, got[0].Task.ID)
}

func TestStoreFetchDueRemindersOrderAndLimit(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	task := newTask("TASK-00001", nil)
	require.NoError(t, store.CreateTask(ctx, task))

	later := &models.Reminder{ID: uuid.New(), TaskID: task.ID, UserID: 1, RemindAt: now.Add(-time.Minute), Type: models.ReminderCustom}
	earlier := &models.Reminder{ID: uuid.New(), TaskID: task.ID, UserID: 1, RemindAt: now.Add(-time.Hour), Type: models.ReminderCustom}
	require.NoError(t, store.CreateReminder(ctx, later))
	require.NoError(t, store.CreateReminder(ctx, earlier))

	got, err := store.FetchDueReminders(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, earlier.ID, got[0].Reminder.ID, "oldest due reminder first")
}

func TestStoreFetchDueRemindersFallbackUser(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	task := newTask("TASK-00001", nil)
	require.NoError(t, store.CreateTask(ctx, task))
	r := &models.Reminder{ID: uuid.New(), TaskID: task.ID, UserID: 42, RemindAt: now.Add(-time.Minute), Type: models.ReminderCustom}
	require.NoError(t, store.CreateReminder(ctx, r))

	got, err := store.FetchDueReminders(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	// An unknown recipient falls back to chat id = user id.
	assert.Equal(t, int64(42), got[0].User.ChatID)
}

func TestStoreCancelRemindersForTask(t *testing.T) {
	store := New()
	ctx := context.Background()

	task := newTask("TASK-00001", nil)
	require.NoError(t, store.CreateTask(ctx, task))

	unsent := &models.Reminder{ID: uuid.New(), TaskID: task.ID, UserID: 1, RemindAt: time.Now(), Type: models.ReminderCustom}
	sent := &models.Reminder{ID: uuid.New(), TaskID: task.ID, UserID: 1, RemindAt: time.Now(), Type: models.ReminderCustom}
	require.NoError(t, store.CreateReminder(ctx, unsent))
	require.NoError(t, store.CreateReminder(ctx, sent))
	require.NoError(t, store.MarkReminderSent(ctx, sent.ID, nil))

	cancelled, err := store.CancelRemindersForTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cancelled, "only unsent reminders are cancelled")

	_, err = store.GetReminderByID(ctx, unsent.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = store.GetReminderByID(ctx, sent.ID)
	assert.NoError(t, err, "the delivery record survives")
}

func TestStoreMarkUndoRestoredGuard(t *testing.T) {
	store := New()
	ctx := context.Background()

	record := &models.UndoRecord{
		ID:        uuid.New(),
		TaskIDs:   []uuid.UUID{uuid.New()},
		ActorID:   1,
		ExpiresAt: time.Now().Add(30 * time.Second),
	}
	require.NoError(t, store.CreateUndoRecord(ctx, record))

	require.NoError(t, store.MarkUndoRestored(ctx, record.ID))
	assert.ErrorIs(t, store.MarkUndoRestored(ctx, record.ID), repo.ErrAlreadyRestored)
	assert.ErrorIs(t, store.MarkUndoRestored(ctx, uuid.New()), repo.ErrNotFound)
}

func TestStoreSweepExpiredUndo(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	expired := &models.UndoRecord{ID: uuid.New(), ActorID: 1, ExpiresAt: now.Add(-time.Minute)}
	restored := &models.UndoRecord{ID: uuid.New(), ActorID: 1, ExpiresAt: now.Add(-time.Minute), Restored: true}
	alive := &models.UndoRecord{ID: uuid.New(), ActorID: 1, ExpiresAt: now.Add(time.Hour)}
	for _, record := range []*models.UndoRecord{expired, restored, alive} {
		require.NoError(t, store.CreateUndoRecord(ctx, record))
	}

	swept, err := store.SweepExpiredUndo(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	_, err = store.GetUndoRecordByID(ctx, expired.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = store.GetUndoRecordByID(ctx, restored.ID)
	assert.NoError(t, err)
	_, err = store.GetUndoRecordByID(ctx, alive.ID)
	assert.NoError(t, err)
}

func TestStoreAllocateNextIDSequential(t *testing.T) {
	store := New()
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, err := store.AllocateNextID(ctx, "task")
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	// Counters are independent per name.
	n, err := store.AllocateNextID(ctx, "template")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStoreAllocateNextIDConcurrent(t *testing.T) {
	store := New()
	ctx := context.Background()

	const goroutines = 20
	const perGoroutine = 50

	var wg sync.WaitGroup
	results := make(chan int64, goroutines*perGoroutine)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				n, err := store.AllocateNextID(ctx, "task")
				assert.NoError(t, err)
				results <- n
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	var max int64
	for n := range results {
		assert.False(t, seen[n], "allocated id %d twice", n)
		seen[n] = true
		if n > max {
			max = n
		}
	}
	assert.Len(t, seen, goroutines*perGoroutine, "no id is skipped or repeated")
	assert.Equal(t, int64(goroutines*perGoroutine), max)
}

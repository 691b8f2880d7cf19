package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskbot/internal/models"
	repo "taskbot/internal/repository"
)

func TestTaskServiceCreate(t *testing.T) {
	svc, store := newTestService(30 * time.Second)
	ctx := context.Background()

	task, err := svc.Create(ctx, CreateTaskInput{
		Content:   "nộp báo cáo ngày mai 15h",
		CreatorID: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, "TASK-00001", task.PublicID)
	assert.Equal(t, "nộp báo cáo", task.Content)
	assert.Equal(t, models.StatusPending, task.Status)
	assert.Equal(t, models.PriorityNormal, task.Priority)
	assert.Equal(t, int64(1), task.AssigneeID, "assignee defaults to the creator")
	require.NotNil(t, task.Deadline)

	// Default reminders bracket the deadline.
	due, err := store.FetchDueReminders(ctx, task.Deadline.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	kinds := map[models.ReminderType]bool{}
	for _, d := range due {
		kinds[d.Reminder.Type] = true
		assert.Equal(t, int64(1), d.Reminder.UserID)
	}
	assert.True(t, kinds[models.ReminderBeforeDeadline])
	assert.True(t, kinds[models.ReminderAfterDeadline])
}

func TestTaskServiceCreateForAssignee(t *testing.T) {
	svc, store := newTestService(30 * time.Second)
	ctx := context.Background()

	task, err := svc.Create(ctx, CreateTaskInput{
		Content:    "chuẩn bị slide thứ 6",
		CreatorID:  1,
		AssigneeID: 2,
		Priority:   models.PriorityHigh,
	})
	require.NoError(t, err)
	require.NotNil(t, task.Deadline)

	// The creator gets an extra overdue reminder when assigning to someone
	// else.
	due, err := store.FetchDueReminders(ctx, task.Deadline.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 3)

	var creatorOverdue *models.Reminder
	for _, d := range due {
		if d.Reminder.Type == models.ReminderCreatorOverdue {
			creatorOverdue = d.Reminder
		}
	}
	require.NotNil(t, creatorOverdue)
	assert.Equal(t, int64(1), creatorOverdue.UserID)
}

func TestTaskServiceCreateSequentialIDs(t *testing.T) {
	svc, _ := newTestService(30 * time.Second)
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateTaskInput{Content: "việc một", CreatorID: 1})
	require.NoError(t, err)
	second, err := svc.Create(ctx, CreateTaskInput{Content: "việc hai", CreatorID: 1})
	require.NoError(t, err)

	assert.Equal(t, "TASK-00001", first.PublicID)
	assert.Equal(t, "TASK-00002", second.PublicID)
	assert.Nil(t, first.Deadline, "no temporal phrase means no deadline")
}

func TestTaskServiceCreateValidation(t *testing.T) {
	svc, _ := newTestService(30 * time.Second)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateTaskInput
	}{
		{"empty content after parsing", CreateTaskInput{Content: "ngày mai 15h", CreatorID: 1}},
		{"content too long", CreateTaskInput{Content: strings.Repeat("a", 501), CreatorID: 1}},
		{"unknown priority", CreateTaskInput{Content: "việc gì đó", CreatorID: 1, Priority: "extreme"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.input)
			var busErr *BusinessError
			require.ErrorAs(t, err, &busErr)
			assert.Equal(t, "VALIDATION_ERROR", busErr.Code)
		})
	}
}

func TestTaskServiceUpdateProgressCompletes(t *testing.T) {
	svc, store := newTestService(30 * time.Second)
	ctx := context.Background()

	task, err := svc.Create(ctx, CreateTaskInput{Content: "viết tài liệu ngày mai", CreatorID: 1})
	require.NoError(t, err)

	due, err := store.FetchDueReminders(ctx, task.Deadline.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.NotEmpty(t, due)
	reminderID := due[0].Reminder.ID

	updated, err := svc.Update(ctx, task.ID, 1, WithProgress(100))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)
	assert.Equal(t, 100, updated.Progress)

	// Completion cancels the unsent reminders.
	_, err = store.GetReminderByID(ctx, reminderID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestTaskServiceUpdateStatusCompletedSetsProgress(t *testing.T) {
	svc, _ := newTestService(30 * time.Second)
	ctx := context.Background()

	task, err := svc.Create(ctx, CreateTaskInput{Content: "dọn kho", CreatorID: 1})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, task.ID, 1, WithStatus(models.StatusCompleted))
	require.NoError(t, err)
	assert.Equal(t, 100, updated.Progress)

	// Reopening drops the full progress.
	reopened, err := svc.Update(ctx, task.ID, 1, WithStatus(models.StatusInProgress))
	require.NoError(t, err)
	assert.Equal(t, 0, reopened.Progress)
}

func TestTaskServiceUpdateLowerProgressReopens(t *testing.T) {
	svc, _ := newTestService(30 * time.Second)
	ctx := context.Background()

	task, err := svc.Create(ctx, CreateTaskInput{Content: "sửa lỗi", CreatorID: 1})
	require.NoError(t, err)

	_, err = svc.Update(ctx, task.ID, 1, WithStatus(models.StatusCompleted))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, task.ID, 1, WithProgress(50))
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.Equal(t, 50, updated.Progress)
}

func TestTaskServiceUpdatePermission(t *testing.T) {
	svc, _ := newTestService(30 * time.Second)
	ctx := context.Background()

	task, err := svc.Create(ctx, CreateTaskInput{Content: "việc riêng", CreatorID: 1, AssigneeID: 2})
	require.NoError(t, err)

	_, err = svc.Update(ctx, task.ID, 99, WithProgress(10))
	var busErr *BusinessError
	require.ErrorAs(t, err, &busErr)
	assert.Equal(t, "PERMISSION_DENIED", busErr.Code)

	// Both the creator and the assignee may update.
	_, err = svc.Update(ctx, task.ID, 2, WithProgress(10))
	require.NoError(t, err)
	_, err = svc.Update(ctx, task.ID, 1, WithPriority(models.PriorityUrgent))
	require.NoError(t, err)
}

func TestTaskServiceUpdateDeadline(t *testing.T) {
	svc, _ := newTestService(30 * time.Second)
	ctx := context.Background()

	task, err := svc.Create(ctx, CreateTaskInput{Content: "việc không hạn", CreatorID: 1})
	require.NoError(t, err)
	require.Nil(t, task.Deadline)

	updated, err := svc.UpdateDeadline(ctx, task.ID, 1, "thứ 6 14h")
	require.NoError(t, err)
	require.NotNil(t, updated.Deadline)
	assert.True(t, updated.Deadline.After(time.Now()))

	_, err = svc.UpdateDeadline(ctx, task.ID, 1, "không có gì")
	var busErr *BusinessError
	require.ErrorAs(t, err, &busErr)
	assert.Equal(t, "VALIDATION_ERROR", busErr.Code)
}

func TestTaskServiceGetByPublicID(t *testing.T) {
	svc, _ := newTestService(30 * time.Second)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateTaskInput{Content: "tìm theo mã", CreatorID: 1})
	require.NoError(t, err)

	found, err := svc.GetByPublicID(ctx, created.PublicID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = svc.GetByPublicID(ctx, "TASK-99999")
	var busErr *BusinessError
	require.ErrorAs(t, err, &busErr)
	assert.Equal(t, "NOT_FOUND", busErr.Code)
}

func TestTaskServiceSnooze(t *testing.T) {
	svc, store := newTestService(30 * time.Second)
	ctx := context.Background()

	task, err := svc.Create(ctx, CreateTaskInput{Content: "việc cần nhắc", CreatorID: 1})
	require.NoError(t, err)

	reminder := &models.Reminder{
		ID:       uuid.New(),
		TaskID:   task.ID,
		UserID:   1,
		RemindAt: time.Now().Add(-time.Minute),
		Type:     models.ReminderCustom,
	}
	require.NoError(t, store.CreateReminder(ctx, reminder))
	require.NoError(t, store.MarkReminderSent(ctx, reminder.ID, nil))

	snoozed, err := svc.Snooze(ctx, reminder.ID, 10)
	require.NoError(t, err)
	assert.False(t, snoozed.Sent)
	assert.Nil(t, snoozed.SentAt)
	assert.Nil(t, snoozed.ErrorMessage)
	assert.True(t, snoozed.RemindAt.After(time.Now().Add(9*time.Minute)))

	_, err = svc.Snooze(ctx, reminder.ID, 0)
	var busErr *BusinessError
	require.ErrorAs(t, err, &busErr)
	assert.Equal(t, "VALIDATION_ERROR", busErr.Code)
}

func TestTaskServiceAddCustomReminder(t *testing.T) {
	svc, _ := newTestService(30 * time.Second)
	ctx := context.Background()

	task, err := svc.Create(ctx, CreateTaskInput{Content: "gọi khách hàng", CreatorID: 1})
	require.NoError(t, err)

	reminder, err := svc.AddCustomReminder(ctx, task.ID, 1, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.ReminderCustom, reminder.Type)

	_, err = svc.AddCustomReminder(ctx, task.ID, 1, time.Now().Add(-time.Hour))
	var busErr *BusinessError
	require.ErrorAs(t, err, &busErr)
	assert.Equal(t, "VALIDATION_ERROR", busErr.Code)

	_, err = svc.AddCustomReminder(ctx, uuid.New(), 1, time.Now().Add(time.Hour))
	require.ErrorAs(t, err, &busErr)
	assert.Equal(t, "NOT_FOUND", busErr.Code)
}

type fakeJobScheduler struct {
	scheduled []time.Time
}

func (f *fakeJobScheduler) ScheduleCustomReminder(taskID uuid.UUID, userID int64, at time.Time) bool {
	f.scheduled = append(f.scheduled, at)
	return true
}

func TestTaskServiceAddCustomReminderSchedulesJob(t *testing.T) {
	svc, _ := newTestService(30 * time.Second)
	jobs := &fakeJobScheduler{}
	svc.SetJobScheduler(jobs)
	ctx := context.Background()

	task, err := svc.Create(ctx, CreateTaskInput{Content: "gọi khách hàng", CreatorID: 1})
	require.NoError(t, err)

	at := time.Now().Add(time.Hour)
	_, err = svc.AddCustomReminder(ctx, task.ID, 1, at)
	require.NoError(t, err)
	require.Len(t, jobs.scheduled, 1)
	assert.Equal(t, at, jobs.scheduled[0])

	// A rejected reminder never reaches the scheduler.
	_, err = svc.AddCustomReminder(ctx, task.ID, 1, time.Now().Add(-time.Hour))
	require.Error(t, err)
	assert.Len(t, jobs.scheduled, 1)
}

func TestTaskServiceDeleteAndRestore(t *testing.T) {
	svc, store := newTestService(30 * time.Second)
	ctx := context.Background()

	task, err := svc.Create(ctx, CreateTaskInput{Content: "việc sắp xóa ngày mai", CreatorID: 1})
	require.NoError(t, err)

	record, err := svc.Delete(ctx, task.ID, 1)
	require.NoError(t, err)
	require.Len(t, record.TaskIDs, 1)

	deleted, err := store.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)
	require.NotNil(t, deleted.DeletedAt)

	// Unsent reminders are gone with the task.
	due, err := store.FetchDueReminders(ctx, time.Now().Add(48*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	count, err := svc.Restore(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	restored, err := store.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, restored.Deleted)
	assert.Nil(t, restored.DeletedAt)

	// A second restore is a no-op failure.
	_, err = svc.Restore(ctx, record.ID)
	assert.ErrorIs(t, err, repo.ErrAlreadyRestored)
}

func TestTaskServiceDeletePermission(t *testing.T) {
	svc, _ := newTestService(30 * time.Second)
	ctx := context.Background()

	task, err := svc.Create(ctx, CreateTaskInput{Content: "việc của người khác", CreatorID: 1})
	require.NoError(t, err)

	_, err = svc.Delete(ctx, task.ID, 99)
	var busErr *BusinessError
	require.ErrorAs(t, err, &busErr)
	assert.Equal(t, "PERMISSION_DENIED", busErr.Code)
}

func TestTaskServiceDeleteUnknownTask(t *testing.T) {
	svc, _ := newTestService(30 * time.Second)

	_, err := svc.Delete(context.Background(), uuid.New(), 1)
	var busErr *BusinessError
	require.True(t, errors.As(err, &busErr))
	assert.Equal(t, "NOT_FOUND", busErr.Code)
}

func TestTaskServiceListOverdue(t *testing.T) {
	svc, store := newTestService(30 * time.Second)
	ctx := context.Background()

	past := time.Now().Add(-2 * time.Hour)
	overdue := &models.Task{
		ID:         uuid.New(),
		PublicID:   "TASK-90001",
		Content:    "đã trễ hạn",
		Status:     models.StatusPending,
		Priority:   models.PriorityNormal,
		Deadline:   &past,
		CreatorID:  1,
		AssigneeID: 1,
	}
	require.NoError(t, store.CreateTask(ctx, overdue))

	_, err := svc.Create(ctx, CreateTaskInput{Content: "còn hạn ngày mai", CreatorID: 1})
	require.NoError(t, err)

	tasks, err := svc.ListOverdue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "TASK-90001", tasks[0].PublicID)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskbot/internal/logger"
	"taskbot/internal/models"
	repo "taskbot/internal/repository"
	"taskbot/internal/timeparse"
)

const (
	maxContentLen = 500

	// Default reminder offsets around the deadline.
	beforeDeadlineOffset = -time.Hour
	afterDeadlineOffset  = time.Hour

	taskCounter = "task"
)

// JobScheduler registers one-off wakeups so a custom reminder fires at the
// requested instant instead of at the next periodic tick.
type JobScheduler interface {
	ScheduleCustomReminder(taskID uuid.UUID, userID int64, at time.Time) bool
}

type TaskService struct {
	tasks     TaskRepository
	reminders ReminderRepository
	undo      *UndoBuffer
	parser    *timeparse.Parser
	prefix    string
	jobs      JobScheduler
}

func NewTaskService(tasks TaskRepository, reminders ReminderRepository, undo *UndoBuffer, parser *timeparse.Parser, prefix string) *TaskService {
	return &TaskService{
		tasks:     tasks,
		reminders: reminders,
		undo:      undo,
		parser:    parser,
		prefix:    prefix,
	}
}

// SetJobScheduler attaches the one-off job scheduler. The service works
// without one; custom reminders then wait for the next periodic tick.
func (s *TaskService) SetJobScheduler(jobs JobScheduler) {
	s.jobs = jobs
}

type CreateTaskInput struct {
	Content    string
	CreatorID  int64
	AssigneeID int64
	Priority   models.Priority
}

// Create parses a deadline out of the free-text content, allocates a public
// id and stores the task with its default reminder set.
func (s *TaskService) Create(ctx context.Context, in CreateTaskInput) (*models.Task, error) {
	deadline, content := s.parser.Parse(in.Content, time.Now())

	if err := validateContent(content); err != nil {
		return nil, err
	}

	priority := in.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	if !models.ValidPriority(priority) {
		return nil, NewValidationError("priority", fmt.Sprintf("unknown priority %q", priority))
	}

	assignee := in.AssigneeID
	if assignee == 0 {
		assignee = in.CreatorID
	}

	publicID, err := s.allocatePublicID(ctx)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		ID:         uuid.New(),
		PublicID:   publicID,
		Content:    content,
		Status:     models.StatusPending,
		Priority:   priority,
		Deadline:   deadline,
		CreatorID:  in.CreatorID,
		AssigneeID: assignee,
	}

	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.createDefaultReminders(ctx, task)

	logger.Info("Service: task created",
		zap.String("public_id", task.PublicID),
		zap.Int64("creator", task.CreatorID))
	return task, nil
}

// CreateGroup creates a parent task plus one child per assignee. The parent's
// status and progress are driven by the aggregation rule from then on.
func (s *TaskService) CreateGroup(ctx context.Context, content string, creatorID int64, assigneeIDs []int64) (*models.Task, []*models.Task, error) {
	if len(assigneeIDs) == 0 {
		return nil, nil, NewValidationError("assignees", "a group task needs at least one assignee")
	}

	deadline, rest := s.parser.Parse(content, time.Now())
	if err := validateContent(rest); err != nil {
		return nil, nil, err
	}

	parentPublicID, err := s.allocatePublicID(ctx)
	if err != nil {
		return nil, nil, err
	}

	parent := &models.Task{
		ID:         uuid.New(),
		PublicID:   parentPublicID,
		Content:    rest,
		Status:     models.StatusPending,
		Priority:   models.PriorityNormal,
		Deadline:   deadline,
		CreatorID:  creatorID,
		AssigneeID: creatorID,
	}
	if err := s.tasks.CreateTask(ctx, parent); err != nil {
		return nil, nil, fmt.Errorf("create group parent: %w", err)
	}

	children := make([]*models.Task, 0, len(assigneeIDs))
	for _, assignee := range assigneeIDs {
		childPublicID, err := s.allocatePublicID(ctx)
		if err != nil {
			return nil, nil, err
		}
		child := &models.Task{
			ID:         uuid.New(),
			PublicID:   childPublicID,
			Content:    rest,
			Status:     models.StatusPending,
			Priority:   models.PriorityNormal,
			Deadline:   deadline,
			CreatorID:  creatorID,
			AssigneeID: assignee,
			ParentID:   &parent.ID,
		}
		if err := s.tasks.CreateTask(ctx, child); err != nil {
			return nil, nil, fmt.Errorf("create group child: %w", err)
		}
		s.createDefaultReminders(ctx, child)
		children = append(children, child)
	}

	logger.Info("Service: group task created",
		zap.String("public_id", parent.PublicID),
		zap.Int("children", len(children)))
	return parent, children, nil
}

// CreateFromTemplate instantiates a concrete task for a due recurring
// template; the deadline is the template's consumed due date.
func (s *TaskService) CreateFromTemplate(ctx context.Context, tpl *models.RecurringTemplate) (*models.Task, error) {
	publicID, err := s.allocatePublicID(ctx)
	if err != nil {
		return nil, err
	}

	due := tpl.NextDue
	task := &models.Task{
		ID:         uuid.New(),
		PublicID:   publicID,
		Content:    tpl.Content,
		Status:     models.StatusPending,
		Priority:   models.PriorityNormal,
		Deadline:   &due,
		CreatorID:  tpl.CreatorID,
		AssigneeID: tpl.CreatorID,
		TemplateID: &tpl.ID,
	}

	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create task from template: %w", err)
	}

	s.createDefaultReminders(ctx, task)
	return task, nil
}

func (s *TaskService) GetByPublicID(ctx context.Context, publicID string) (*models.Task, error) {
	task, err := s.tasks.GetTaskByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NewNotFound("task", publicID)
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (s *TaskService) ListActive(ctx context.Context, limit int) ([]*models.Task, error) {
	return s.tasks.ListActiveTasks(ctx, limit)
}

func (s *TaskService) ListOverdue(ctx context.Context, limit int) ([]*models.Task, error) {
	return s.tasks.ListOverdueTasks(ctx, time.Now(), limit)
}

// Update applies functional options to a task and keeps the progress/status
// coupling intact: completed means 100, 100 means completed. Child mutations
// trigger the parent recompute.
func (s *TaskService) Update(ctx context.Context, id uuid.UUID, actorID int64, options ...TaskOption) (*models.Task, error) {
	task, err := s.tasks.GetTaskByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NewNotFound("task", id.String())
		}
		return nil, fmt.Errorf("get task: %w", err)
	}

	if actorID != task.CreatorID && actorID != task.AssigneeID {
		return nil, NewPermissionDenied("update this task", actorID)
	}

	for _, opt := range options {
		if opt == nil {
			continue
		}
		if err := opt(task); err != nil {
			return nil, err
		}
	}

	reconcileProgress(task)

	if err := s.tasks.UpdateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	if task.Status == models.StatusCompleted {
		if _, err := s.reminders.CancelRemindersForTask(ctx, task.ID); err != nil {
			logger.Warn("Service: failed to cancel reminders of completed task",
				zap.String("task_id", task.ID.String()), zap.Error(err))
		}
	}

	if task.IsChild() {
		if err := s.RecomputeParent(ctx, *task.ParentID); err != nil {
			logger.Warn("Service: parent recompute failed",
				zap.String("parent_id", task.ParentID.String()), zap.Error(err))
		}
	}

	return task, nil
}

// UpdateDeadline re-parses a free-text time expression for an existing task.
func (s *TaskService) UpdateDeadline(ctx context.Context, id uuid.UUID, actorID int64, text string) (*models.Task, error) {
	deadline, _ := s.parser.Parse(text, time.Now())
	if deadline == nil {
		return nil, NewValidationError("deadline", "unrecognized time expression")
	}
	return s.Update(ctx, id, actorID, WithDeadline(deadline))
}

// Delete soft-deletes the task (cascading to group children) into the undo
// buffer and cancels its unsent reminders.
func (s *TaskService) Delete(ctx context.Context, id uuid.UUID, actorID int64) (*models.UndoRecord, error) {
	task, err := s.tasks.GetTaskByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NewNotFound("task", id.String())
		}
		return nil, fmt.Errorf("get task: %w", err)
	}

	if actorID != task.CreatorID && actorID != task.AssigneeID {
		return nil, NewPermissionDenied("delete this task", actorID)
	}

	toDelete := []*models.Task{task}
	if !task.IsChild() {
		children, err := s.tasks.GetChildren(ctx, task.ID)
		if err != nil {
			return nil, fmt.Errorf("get children: %w", err)
		}
		toDelete = append(toDelete, children...)
	}

	record, err := s.undo.SoftDelete(ctx, toDelete, actorID)
	if err != nil {
		return nil, err
	}

	for _, t := range toDelete {
		if _, err := s.reminders.CancelRemindersForTask(ctx, t.ID); err != nil {
			logger.Warn("Service: failed to cancel reminders of deleted task",
				zap.String("task_id", t.ID.String()), zap.Error(err))
		}
	}

	logger.Info("Service: task soft-deleted",
		zap.String("public_id", task.PublicID),
		zap.Int("cascaded", len(toDelete)-1))
	return record, nil
}

// Restore brings a soft-deleted task set back within the undo window.
func (s *TaskService) Restore(ctx context.Context, undoID uuid.UUID) (int, error) {
	return s.undo.Restore(ctx, undoID)
}

// Snooze clears the terminal flag of a sent reminder and pushes it forward.
// This is the only path that un-sends a reminder.
func (s *TaskService) Snooze(ctx context.Context, reminderID uuid.UUID, minutes int) (*models.Reminder, error) {
	if minutes <= 0 {
		return nil, NewValidationError("minutes", "snooze duration must be positive")
	}

	reminder, err := s.reminders.GetReminderByID(ctx, reminderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NewNotFound("reminder", reminderID.String())
		}
		return nil, fmt.Errorf("get reminder: %w", err)
	}

	reminder.Sent = false
	reminder.SentAt = nil
	reminder.ErrorMessage = nil
	reminder.RemindAt = time.Now().Add(time.Duration(minutes) * time.Minute)

	if err := s.reminders.UpdateReminder(ctx, reminder); err != nil {
		return nil, fmt.Errorf("update reminder: %w", err)
	}
	return reminder, nil
}

// AddCustomReminder stores a one-off reminder for a task and, when a job
// scheduler is attached, registers the wakeup that makes it fire on time.
func (s *TaskService) AddCustomReminder(ctx context.Context, taskID uuid.UUID, userID int64, at time.Time) (*models.Reminder, error) {
	if !at.After(time.Now()) {
		return nil, NewValidationError("remind_at", "reminder time must be in the future")
	}

	if _, err := s.tasks.GetTaskByID(ctx, taskID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NewNotFound("task", taskID.String())
		}
		return nil, fmt.Errorf("get task: %w", err)
	}

	reminder := &models.Reminder{
		ID:       uuid.New(),
		TaskID:   taskID,
		UserID:   userID,
		RemindAt: at,
		Type:     models.ReminderCustom,
	}
	if err := s.reminders.CreateReminder(ctx, reminder); err != nil {
		return nil, fmt.Errorf("create reminder: %w", err)
	}

	if s.jobs != nil {
		s.jobs.ScheduleCustomReminder(taskID, userID, at)
	}
	return reminder, nil
}

func (s *TaskService) allocatePublicID(ctx context.Context) (string, error) {
	n, err := s.tasks.AllocateNextID(ctx, taskCounter)
	if err != nil {
		return "", fmt.Errorf("allocate public id: %w", err)
	}
	return fmt.Sprintf("%s-%05d", s.prefix, n), nil
}

// createDefaultReminders attaches the standard reminder set to a task with a
// deadline. Failures here are logged, not fatal: the task itself is created.
func (s *TaskService) createDefaultReminders(ctx context.Context, task *models.Task) {
	if task.Deadline == nil {
		return
	}

	reminders := []*models.Reminder{
		{
			ID:       uuid.New(),
			TaskID:   task.ID,
			UserID:   task.AssigneeID,
			RemindAt: task.Deadline.Add(beforeDeadlineOffset),
			Type:     models.ReminderBeforeDeadline,
		},
		{
			ID:       uuid.New(),
			TaskID:   task.ID,
			UserID:   task.AssigneeID,
			RemindAt: task.Deadline.Add(afterDeadlineOffset),
			Type:     models.ReminderAfterDeadline,
		},
	}
	if task.CreatorID != task.AssigneeID {
		reminders = append(reminders, &models.Reminder{
			ID:       uuid.New(),
			TaskID:   task.ID,
			UserID:   task.CreatorID,
			RemindAt: task.Deadline.Add(afterDeadlineOffset),
			Type:     models.ReminderCreatorOverdue,
		})
	}

	for _, r := range reminders {
		if err := s.reminders.CreateReminder(ctx, r); err != nil {
			logger.Warn("Service: failed to create default reminder",
				zap.String("task_id", task.ID.String()),
				zap.String("type", string(r.Type)),
				zap.Error(err))
		}
	}
}

func validateContent(content string) error {
	if content == "" {
		return NewValidationError("content", "content must not be empty")
	}
	if len([]rune(content)) > maxContentLen {
		return NewValidationError("content", fmt.Sprintf("content must not exceed %d characters", maxContentLen))
	}
	return nil
}

// reconcileProgress keeps the progress=100 ⇔ status=completed invariant after
// any combination of options.
func reconcileProgress(task *models.Task) {
	switch {
	case task.Status == models.StatusCompleted:
		task.Progress = 100
	case task.Progress == 100:
		task.Status = models.StatusCompleted
	case task.Progress > 0 && task.Status == models.StatusPending:
		task.Status = models.StatusInProgress
	case task.Progress == 0 && task.Status == models.StatusPending:
		// nothing to reconcile
	}
}

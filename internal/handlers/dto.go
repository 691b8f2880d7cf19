package handlers

import (
	"time"

	"taskbot/internal/models"
)

type TaskResponse struct {
	PublicID  string     `json:"public_id"`
	Content   string     `json:"content"`
	Status    string     `json:"status"`
	Priority  string     `json:"priority"`
	Progress  int        `json:"progress"`
	Deadline  *time.Time `json:"deadline,omitempty"`
	Assignee  int64      `json:"assignee_id"`
	IsGroup   bool       `json:"is_group,omitempty"`
	IsOverdue bool       `json:"is_overdue"`
	CreatedAt time.Time  `json:"created_at"`
}

func fromTask(t *models.Task, now time.Time) TaskResponse {
	return TaskResponse{
		PublicID:  t.PublicID,
		Content:   t.Content,
		Status:    string(t.Status),
		Priority:  string(t.Priority),
		Progress:  t.Progress,
		Deadline:  t.Deadline,
		Assignee:  t.AssigneeID,
		IsOverdue: t.IsOverdue(now),
		CreatedAt: t.CreatedAt,
	}
}

func fromTaskList(tasks []*models.Task) []TaskResponse {
	now := time.Now()
	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = fromTask(t, now)
	}
	return result
}

type TemplateResponse struct {
	PublicID         string     `json:"public_id"`
	Content          string     `json:"content"`
	RuleType         string     `json:"rule_type"`
	Interval         int        `json:"interval"`
	NextDue          time.Time  `json:"next_due"`
	LastGenerated    *time.Time `json:"last_generated,omitempty"`
	InstancesCreated int        `json:"instances_created"`
	Active           bool       `json:"active"`
}

func fromTemplateList(templates []*models.RecurringTemplate) []TemplateResponse {
	result := make([]TemplateResponse, len(templates))
	for i, t := range templates {
		result[i] = TemplateResponse{
			PublicID:         t.PublicID,
			Content:          t.Content,
			RuleType:         string(t.Rule.Type),
			Interval:         t.Rule.Interval,
			NextDue:          t.NextDue,
			LastGenerated:    t.LastGenerated,
			InstancesCreated: t.InstancesCreated,
			Active:           t.Active,
		}
	}
	return result
}

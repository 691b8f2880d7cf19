package models

import (
	"time"

	"github.com/google/uuid"

	"taskbot/internal/recurrence"
)

// RecurringTemplate is a stored recurrence rule plus content payload from
// which concrete task instances are generated on schedule.
type RecurringTemplate struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	PublicID         string          `json:"public_id" db:"public_id"`
	Content          string          `json:"content" db:"content"`
	Rule             recurrence.Rule `json:"rule" db:"rule"`
	EndDate          *time.Time      `json:"end_date,omitempty" db:"end_date"`
	MaxCount         *int            `json:"max_count,omitempty" db:"max_count"`
	NextDue          time.Time       `json:"next_due" db:"next_due"`
	LastGenerated    *time.Time      `json:"last_generated,omitempty" db:"last_generated"`
	InstancesCreated int             `json:"instances_created" db:"instances_created"`
	Active           bool            `json:"active" db:"active"`
	CreatorID        int64           `json:"creator_id" db:"creator_id"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// Due reports whether the template should produce an instance now. An
// exhausted template stays active but stops matching this predicate.
func (t *RecurringTemplate) Due(now time.Time) bool {
	if !t.Active || t.NextDue.After(now) {
		return false
	}
	if t.EndDate != nil && !t.EndDate.After(now) {
		return false
	}
	if t.MaxCount != nil && t.InstancesCreated >= *t.MaxCount {
		return false
	}
	return true
}

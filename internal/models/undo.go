package models

import (
	"time"

	"github.com/google/uuid"
)

// UndoRecord holds a full snapshot of one or more soft-deleted tasks
// (bulk deletes include cascaded children). Restorable while not expired
// and not already restored; restoration is one-time.
type UndoRecord struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	TaskIDs   []uuid.UUID `json:"task_ids" db:"task_ids"`
	Snapshot  []Task      `json:"snapshot" db:"snapshot"`
	ActorID   int64       `json:"actor_id" db:"actor_id"`
	ExpiresAt time.Time   `json:"expires_at" db:"expires_at"`
	Restored  bool        `json:"restored" db:"restored"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

func (u *UndoRecord) Restorable(now time.Time) bool {
	return !u.Restored && now.Before(u.ExpiresAt)
}

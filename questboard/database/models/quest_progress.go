package models

import (
	"time"

	"github.com/uptrace/bun"
)

// QuestProgress tracks a user's completion state for one assigned quest.
// A row transitions from incomplete to complete exactly once; the lifecycle
// manager is the only writer. The (user_id, assigned_for, slot) unique key
// is what makes daily generation idempotent under concurrent calls.
type QuestProgress struct {
	bun.BaseModel `bun:"table:quest_progress,alias:qp"`

	ID          int64      `bun:"id,pk,autoincrement"`
	QuestID     int64      `bun:"quest_id,notnull"`
	UserID      string     `bun:"user_id,notnull"`
	Slot        int        `bun:"slot,notnull"`
	AssignedFor time.Time  `bun:"assigned_for,notnull,type:date"`
	Completed   bool       `bun:"completed,notnull,default:false"`
	CompletedAt *time.Time `bun:"completed_at"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull"`

	// Relations
	Quest *Quest `bun:"rel:has-one,join:quest_id=id"`
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

// UserBadge records a milestone badge awarded to a user. The
// (user_id, badge_id) unique key keeps awards at-most-once.
type UserBadge struct {
	bun.BaseModel `bun:"table:user_badges,alias:ub"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    string    `bun:"user_id,notnull"`
	BadgeID   string    `bun:"badge_id,notnull"`
	Name      string    `bun:"name,notnull"`
	IconURL   string    `bun:"icon_url"`
	AwardedAt time.Time `bun:"awarded_at,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// Badge kind constants
const (
	BadgeKindStreak     = "streak"
	BadgeKindCompletion = "completion"
)

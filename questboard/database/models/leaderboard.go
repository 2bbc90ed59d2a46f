package models

import (
	"time"

	"github.com/uptrace/bun"
)

type LeaderboardEntry struct {
	bun.BaseModel `bun:"table:leaderboard_entries,alias:le"`

	ID              int64     `bun:"id,pk,autoincrement"`
	PeriodType      string    `bun:"period_type,notnull"` // weekly, monthly
	PeriodStart     time.Time `bun:"period_start,notnull,type:date"`
	UserID          string    `bun:"user_id,notnull"`
	Username        string    `bun:"username,notnull"`
	QuestsCompleted int       `bun:"quests_completed,notnull,default:0"`
	XPEarned        int64     `bun:"xp_earned,notnull,default:0"`
	CreatedAt       time.Time `bun:"created_at,notnull"`
	UpdatedAt       time.Time `bun:"updated_at,notnull"`
}

// Leaderboard period constants
const (
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
)

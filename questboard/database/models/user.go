package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User holds the profile fields the quest lifecycle reads and writes.
// XP and gold only ever grow through quest completion; streak counts
// consecutive days with at least one completed quest.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID       int64  `bun:"id,pk,autoincrement"`
	UserID   string `bun:"user_id,notnull,unique"`
	Username string `bun:"username,notnull"`

	XP     int64 `bun:"xp,notnull,default:0"`
	Gold   int64 `bun:"gold,notnull,default:0"`
	Streak int   `bun:"streak,notnull,default:0"`

	LastQuestDate *time.Time `bun:"last_quest_date,type:date"`

	Joined    time.Time `bun:"joined,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Quest is a single day's quest instance, stamped out from a template by the
// lifecycle manager. Instances are immutable once created; they are only
// removed together with their progress row during stale cleanup.
type Quest struct {
	bun.BaseModel `bun:"table:quests,alias:q"`

	ID            int64     `bun:"id,pk,autoincrement"`
	TemplateID    string    `bun:"template_id,notnull"`
	Title         string    `bun:"title,notnull"`
	Description   string    `bun:"description,notnull"`
	Category      string    `bun:"category,notnull"`
	Difficulty    string    `bun:"difficulty,notnull"`
	XPReward      int64     `bun:"xp_reward,notnull,default:0"`
	GoldReward    int64     `bun:"gold_reward,notnull,default:0"`
	QuestDate     time.Time `bun:"quest_date,notnull,type:date"`
	DeadlineHours int       `bun:"deadline_hours,notnull,default:24"`
	Active        bool      `bun:"active,notnull,default:true"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

// Quest category constants
const (
	CategorySpiritual = "spiritual"
	CategoryHealth    = "health"
	CategoryWealth    = "wealth"
	CategoryService   = "service"
	CategoryEducation = "education"
	CategoryFamily    = "family"
	CategorySocial    = "social"
)

// Difficulty constants
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// QuestTemplate is a static catalog entry the daily draw picks from.
// Templates live in code (see database.QuestTemplates) and are mirrored into
// the quest_templates table at startup for reporting queries.
type QuestTemplate struct {
	bun.BaseModel `bun:"table:quest_templates,alias:qt"`

	ID            int64     `bun:"id,pk,autoincrement"`
	TemplateID    string    `bun:"template_id,notnull,unique"`
	Title         string    `bun:"title,notnull"`
	Description   string    `bun:"description,notnull"`
	Category      string    `bun:"category,notnull"`
	Difficulty    string    `bun:"difficulty,notnull"`
	XPReward      int64     `bun:"xp_reward,notnull,default:0"`
	GoldReward    int64     `bun:"gold_reward,notnull,default:0"`
	DeadlineHours int       `bun:"deadline_hours,notnull,default:24"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

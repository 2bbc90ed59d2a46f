package migration

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoProfile is the legacy profile document shape. The old platform kept
// XP/gold/streak directly on the student document.
type MongoProfile struct {
	ID            primitive.ObjectID `bson:"_id"`
	StudentID     string             `bson:"student_id"`
	DisplayName   string             `bson:"display_name"`
	XP            float64            `bson:"xp"`
	Gold          float64            `bson:"gold"`
	Streak        float64            `bson:"streak"`
	LastQuestDate *time.Time         `bson:"last_quest_date,omitempty"`
	CreatedAt     time.Time          `bson:"created_at"`
}

// MongoQuestRecord is a legacy completed-quest history entry. Only completed
// records are migrated; incomplete legacy quests are stale by definition.
type MongoQuestRecord struct {
	ID          primitive.ObjectID `bson:"_id"`
	StudentID   string             `bson:"student_id"`
	Title       string             `bson:"title"`
	Description string             `bson:"description,omitempty"`
	Category    string             `bson:"category,omitempty"`
	Difficulty  string             `bson:"difficulty,omitempty"`
	XPReward    float64            `bson:"xp_reward"`
	GoldReward  float64            `bson:"gold_reward"`
	AssignedOn  time.Time          `bson:"assigned_on"`
	Completed   bool               `bson:"completed"`
	CompletedAt *time.Time         `bson:"completed_at,omitempty"`
}

// TableStats tracks per-table outcomes for the final report.
type TableStats struct {
	Processed  int
	Successful int
	Skipped    int
	Errors     int
}

type MigrationStats struct {
	Tables    map[string]*TableStats
	StartTime time.Time
}

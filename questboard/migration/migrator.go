package migration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/luminalearn/questboard/questboard/database/models"
)

// Migrator copies legacy profiles and completed quest history out of the old
// Mongo deployment into Postgres. Re-running is safe; every insert is
// ON CONFLICT DO NOTHING.
type Migrator struct {
	pgDB      *bun.DB
	mongoDB   *mongo.Database
	batchSize int
	stats     MigrationStats

	collNames map[string]string
}

func NewMigrator(pgDB *bun.DB, client *mongo.Client, dbName string) *Migrator {
	return &Migrator{
		pgDB:      pgDB,
		mongoDB:   client.Database(dbName),
		batchSize: 1000,
		stats: MigrationStats{
			Tables:    make(map[string]*TableStats),
			StartTime: time.Now(),
		},
		collNames: map[string]string{
			"profiles": "students",
			"quests":   "quest_history",
		},
	}
}

// SetBatchSize overrides the default insert batch size.
func (m *Migrator) SetBatchSize(size int) {
	if size > 0 {
		m.batchSize = size
	}
}

// SetCollectionName overrides a source collection name ("profiles" or
// "quests").
func (m *Migrator) SetCollectionName(kind, name string) {
	if name != "" {
		m.collNames[kind] = name
	}
}

// MigrateAll runs the full import: profiles first so quest history has
// owners to attach to.
func (m *Migrator) MigrateAll(ctx context.Context) error {
	slog.Info("Starting legacy import",
		slog.String("type", "db"),
		slog.String("source", m.mongoDB.Name()))

	if err := m.MigrateProfiles(ctx); err != nil {
		return fmt.Errorf("profile migration failed: %w", err)
	}
	if err := m.MigrateQuestHistory(ctx); err != nil {
		return fmt.Errorf("quest history migration failed: %w", err)
	}

	m.logFinalStats()
	return nil
}

// MigrateProfiles imports legacy student documents as users.
func (m *Migrator) MigrateProfiles(ctx context.Context) error {
	m.initTableStats("users")

	cur, err := m.mongoDB.Collection(m.collNames["profiles"]).Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to query legacy profiles: %w", err)
	}
	defer cur.Close(ctx)

	batch := make([]*models.User, 0, m.batchSize)
	for cur.Next(ctx) {
		var p MongoProfile
		if err := cur.Decode(&p); err != nil {
			m.record("users", "error")
			continue
		}
		m.record("users", "processed")

		if strings.TrimSpace(p.StudentID) == "" {
			m.record("users", "skipped")
			continue
		}

		batch = append(batch, m.convertProfile(p))
		if len(batch) >= m.batchSize {
			if err := m.insertUsers(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := m.insertUsers(ctx, batch); err != nil {
			return err
		}
	}
	return cur.Err()
}

// MigrateQuestHistory imports completed legacy quests so stats and streaks
// survive the platform move. Incomplete legacy quests are dropped.
func (m *Migrator) MigrateQuestHistory(ctx context.Context) error {
	m.initTableStats("quests")

	cur, err := m.mongoDB.Collection(m.collNames["quests"]).Find(ctx, bson.M{"completed": true})
	if err != nil {
		return fmt.Errorf("failed to query legacy quest history: %w", err)
	}
	defer cur.Close(ctx)

	slot := 0
	quests := make([]*models.Quest, 0, m.batchSize)
	progress := make([]*models.QuestProgress, 0, m.batchSize)

	for cur.Next(ctx) {
		var r MongoQuestRecord
		if err := cur.Decode(&r); err != nil {
			m.record("quests", "error")
			continue
		}
		m.record("quests", "processed")

		if r.StudentID == "" || r.CompletedAt == nil {
			m.record("quests", "skipped")
			continue
		}

		q, p := m.convertQuestRecord(r, slot)
		quests = append(quests, q)
		progress = append(progress, p)
		slot++

		if len(quests) >= m.batchSize {
			if err := m.insertHistory(ctx, quests, progress); err != nil {
				return err
			}
			quests = quests[:0]
			progress = progress[:0]
		}
	}
	if len(quests) > 0 {
		if err := m.insertHistory(ctx, quests, progress); err != nil {
			return err
		}
	}
	return cur.Err()
}

func (m *Migrator) convertProfile(p MongoProfile) *models.User {
	now := time.Now()
	joined := p.CreatedAt
	if joined.IsZero() {
		joined = now
	}
	return &models.User{
		UserID:        p.StudentID,
		Username:      firstNonEmpty(p.DisplayName, p.StudentID),
		XP:            int64(p.XP),
		Gold:          int64(p.Gold),
		Streak:        int(p.Streak),
		LastQuestDate: p.LastQuestDate,
		Joined:        joined,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (m *Migrator) convertQuestRecord(r MongoQuestRecord, slot int) (*models.Quest, *models.QuestProgress) {
	now := time.Now()
	assigned := dateOnly(r.AssignedOn)
	q := &models.Quest{
		TemplateID:    "legacy",
		Title:         r.Title,
		Description:   r.Description,
		Category:      firstNonEmpty(r.Category, models.CategoryEducation),
		Difficulty:    firstNonEmpty(r.Difficulty, models.DifficultyEasy),
		XPReward:      int64(r.XPReward),
		GoldReward:    int64(r.GoldReward),
		QuestDate:     assigned,
		DeadlineHours: 24,
		Active:        false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	p := &models.QuestProgress{
		UserID:      r.StudentID,
		Slot:        slot,
		AssignedFor: assigned,
		Completed:   true,
		CompletedAt: r.CompletedAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return q, p
}

func (m *Migrator) insertUsers(ctx context.Context, users []*models.User) error {
	res, err := m.pgDB.NewInsert().
		Model(&users).
		On("CONFLICT (user_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert user batch: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		for i := int64(0); i < n; i++ {
			m.record("users", "successful")
		}
	}
	slog.Info("Imported user batch",
		slog.String("type", "db"),
		slog.Int("batch", len(users)))
	return nil
}

func (m *Migrator) insertHistory(ctx context.Context, quests []*models.Quest, progress []*models.QuestProgress) error {
	err := m.pgDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for i, q := range quests {
			if _, err := tx.NewInsert().Model(q).Exec(ctx); err != nil {
				return err
			}
			progress[i].QuestID = q.ID
		}
		_, err := tx.NewInsert().
			Model(&progress).
			On("CONFLICT (user_id, assigned_for, slot) DO NOTHING").
			Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert history batch: %w", err)
	}
	for range quests {
		m.record("quests", "successful")
	}
	slog.Info("Imported quest history batch",
		slog.String("type", "db"),
		slog.Int("batch", len(quests)))
	return nil
}

func (m *Migrator) initTableStats(table string) {
	m.stats.Tables[table] = &TableStats{}
}

func (m *Migrator) record(table, outcome string) {
	ts, ok := m.stats.Tables[table]
	if !ok {
		return
	}
	switch outcome {
	case "processed":
		ts.Processed++
	case "successful":
		ts.Successful++
	case "skipped":
		ts.Skipped++
	case "error":
		ts.Errors++
	}
}

func (m *Migrator) logFinalStats() {
	elapsed := time.Since(m.stats.StartTime)
	for table, ts := range m.stats.Tables {
		slog.Info("Migration table summary",
			slog.String("type", "db"),
			slog.String("table", table),
			slog.Int("processed", ts.Processed),
			slog.Int("successful", ts.Successful),
			slog.Int("skipped", ts.Skipped),
			slog.Int("errors", ts.Errors))
	}
	slog.Info("Legacy import finished",
		slog.String("type", "db"),
		slog.Duration("elapsed", elapsed))
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func dateOnly(t time.Time) time.Time {
	y, mo, d := t.UTC().Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

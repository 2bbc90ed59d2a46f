package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/luminalearn/questboard/questboard/database/models"
	"github.com/uptrace/bun"
)

type QuestRepository interface {
	// Assignment
	ListAssignedQuests(ctx context.Context, userID string, date time.Time) ([]*models.QuestProgress, error)
	InsertAssignments(ctx context.Context, quests []*models.Quest, progress []*models.QuestProgress) error
	DeleteIncompleteBefore(ctx context.Context, userID string, date time.Time) (int64, error)
	DeleteIncompleteBeforeAll(ctx context.Context, date time.Time) (int64, error)

	// Completion
	CompleteIfIncomplete(ctx context.Context, questID int64, userID string, now time.Time) (*models.QuestProgress, error)
	GetQuest(ctx context.Context, questID int64) (*models.Quest, error)

	// Stats
	CountCompleted(ctx context.Context, userID string) (int, error)
	SumCompletedRewards(ctx context.Context, userID string) (xp int64, gold int64, err error)
	CompletionDatesSince(ctx context.Context, userID string, since time.Time) ([]time.Time, error)
}

type questRepository struct {
	db *bun.DB
}

func NewQuestRepository(db *bun.DB) QuestRepository {
	return &questRepository{db: db}
}

func (r *questRepository) ListAssignedQuests(ctx context.Context, userID string, date time.Time) ([]*models.QuestProgress, error) {
	var progress []*models.QuestProgress
	err := r.db.NewSelect().
		Model(&progress).
		Relation("Quest").
		Where("qp.user_id = ?", userID).
		Where("qp.assigned_for = ?", date).
		Order("qp.slot ASC").
		Scan(ctx)

	if err != nil {
		slog.Error("Failed to list assigned quests",
			slog.String("type", "db"),
			slog.String("user_id", userID),
			slog.Any("error", err))
		return nil, err
	}

	return progress, nil
}

// InsertAssignments writes a day's quest instances and their progress rows in
// one transaction. The unique index on (user_id, assigned_for, slot) rejects
// a concurrent duplicate generation; callers re-read on failure.
func (r *questRepository) InsertAssignments(ctx context.Context, quests []*models.Quest, progress []*models.QuestProgress) error {
	if len(quests) != len(progress) {
		return fmt.Errorf("assignment mismatch: %d quests, %d progress rows", len(quests), len(progress))
	}

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()
		for i, quest := range quests {
			quest.CreatedAt = now
			quest.UpdatedAt = now
			if _, err := tx.NewInsert().Model(quest).Exec(ctx); err != nil {
				return fmt.Errorf("failed to insert quest %s: %w", quest.TemplateID, err)
			}

			progress[i].QuestID = quest.ID
			progress[i].CreatedAt = now
			progress[i].UpdatedAt = now
			if _, err := tx.NewInsert().Model(progress[i]).Exec(ctx); err != nil {
				return fmt.Errorf("failed to insert progress for quest %s: %w", quest.TemplateID, err)
			}
		}
		return nil
	})
}

func (r *questRepository) DeleteIncompleteBefore(ctx context.Context, userID string, date time.Time) (int64, error) {
	return r.deleteIncomplete(ctx, &userID, date)
}

// DeleteIncompleteBeforeAll is the background sweep variant of stale cleanup.
func (r *questRepository) DeleteIncompleteBeforeAll(ctx context.Context, date time.Time) (int64, error) {
	return r.deleteIncomplete(ctx, nil, date)
}

func (r *questRepository) deleteIncomplete(ctx context.Context, userID *string, date time.Time) (int64, error) {
	// The quest instance rows go first so they are not orphaned; completed
	// progress and its quests are never touched.
	questDelete := r.db.NewDelete().
		Model((*models.Quest)(nil)).
		Where("q.id IN (?)", r.db.NewSelect().
			Model((*models.QuestProgress)(nil)).
			Column("qp.quest_id").
			Where("qp.completed = ?", false).
			Where("qp.assigned_for < ?", date).
			Apply(func(q *bun.SelectQuery) *bun.SelectQuery {
				if userID != nil {
					q = q.Where("qp.user_id = ?", *userID)
				}
				return q
			}))

	if _, err := questDelete.Exec(ctx); err != nil {
		return 0, err
	}

	progressDelete := r.db.NewDelete().
		Model((*models.QuestProgress)(nil)).
		Where("completed = ?", false).
		Where("assigned_for < ?", date)
	if userID != nil {
		progressDelete = progressDelete.Where("user_id = ?", *userID)
	}

	res, err := progressDelete.Exec(ctx)
	if err != nil {
		return 0, err
	}
	deleted, _ := res.RowsAffected()
	return deleted, nil
}

// CompleteIfIncomplete flips the progress row for (questID, userID) from
// incomplete to complete. Returns nil when no incomplete row matched, which
// covers both "already completed" and "not found" without a prior read.
func (r *questRepository) CompleteIfIncomplete(ctx context.Context, questID int64, userID string, now time.Time) (*models.QuestProgress, error) {
	res, err := r.db.NewUpdate().
		Model((*models.QuestProgress)(nil)).
		Set("completed = ?", true).
		Set("completed_at = ?", now).
		Set("updated_at = ?", now).
		Where("quest_id = ?", questID).
		Where("user_id = ?", userID).
		Where("completed = ?", false).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}

	progress := new(models.QuestProgress)
	err = r.db.NewSelect().
		Model(progress).
		Relation("Quest").
		Where("qp.quest_id = ?", questID).
		Where("qp.user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return progress, nil
}

func (r *questRepository) GetQuest(ctx context.Context, questID int64) (*models.Quest, error) {
	quest := new(models.Quest)
	err := r.db.NewSelect().
		Model(quest).
		Where("id = ?", questID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return quest, nil
}

func (r *questRepository) CountCompleted(ctx context.Context, userID string) (int, error) {
	return r.db.NewSelect().
		Model((*models.QuestProgress)(nil)).
		Where("user_id = ?", userID).
		Where("completed = ?", true).
		Count(ctx)
}

func (r *questRepository) SumCompletedRewards(ctx context.Context, userID string) (int64, int64, error) {
	var totals struct {
		XP   int64 `bun:"total_xp"`
		Gold int64 `bun:"total_gold"`
	}

	err := r.db.NewSelect().
		Model((*models.QuestProgress)(nil)).
		ColumnExpr("COALESCE(SUM(q.xp_reward), 0) AS total_xp").
		ColumnExpr("COALESCE(SUM(q.gold_reward), 0) AS total_gold").
		Join("JOIN quests q ON q.id = qp.quest_id").
		Where("qp.user_id = ?", userID).
		Where("qp.completed = ?", true).
		Scan(ctx, &totals)
	if err != nil {
		return 0, 0, err
	}

	return totals.XP, totals.Gold, nil
}

func (r *questRepository) CompletionDatesSince(ctx context.Context, userID string, since time.Time) ([]time.Time, error) {
	var dates []time.Time
	err := r.db.NewSelect().
		Model((*models.QuestProgress)(nil)).
		ColumnExpr("DISTINCT DATE(completed_at)").
		Where("user_id = ?", userID).
		Where("completed = ?", true).
		Where("completed_at >= ?", since).
		OrderExpr("DATE(completed_at) ASC").
		Scan(ctx, &dates)

	return dates, err
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/luminalearn/questboard/questboard/database/models"
	"github.com/uptrace/bun"
)

type LeaderboardRepository interface {
	RecordCompletion(ctx context.Context, periodType string, periodStart time.Time, userID, username string, xp int64) error
	GetTop(ctx context.Context, periodType string, periodStart time.Time, limit int) ([]*models.LeaderboardEntry, error)
	GetUserEntry(ctx context.Context, userID string, periodType string, periodStart time.Time) (*models.LeaderboardEntry, error)
}

type leaderboardRepository struct {
	db *bun.DB
}

func NewLeaderboardRepository(db *bun.DB) LeaderboardRepository {
	return &leaderboardRepository{db: db}
}

// RecordCompletion folds one completed quest into the period entry. The
// additive conflict update keeps concurrent completions from losing counts.
func (r *leaderboardRepository) RecordCompletion(ctx context.Context, periodType string, periodStart time.Time, userID, username string, xp int64) error {
	now := time.Now()
	entry := &models.LeaderboardEntry{
		PeriodType:      periodType,
		PeriodStart:     periodStart,
		UserID:          userID,
		Username:        username,
		QuestsCompleted: 1,
		XPEarned:        xp,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err := r.db.NewInsert().
		Model(entry).
		On("CONFLICT (period_type, period_start, user_id) DO UPDATE").
		Set("quests_completed = le.quests_completed + 1").
		Set("xp_earned = le.xp_earned + EXCLUDED.xp_earned").
		Set("username = EXCLUDED.username").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	return err
}

func (r *leaderboardRepository) GetTop(ctx context.Context, periodType string, periodStart time.Time, limit int) ([]*models.LeaderboardEntry, error) {
	var entries []*models.LeaderboardEntry
	err := r.db.NewSelect().
		Model(&entries).
		Where("period_type = ?", periodType).
		Where("period_start = ?", periodStart).
		Order("xp_earned DESC", "quests_completed DESC").
		Limit(limit).
		Scan(ctx)

	return entries, err
}

func (r *leaderboardRepository) GetUserEntry(ctx context.Context, userID string, periodType string, periodStart time.Time) (*models.LeaderboardEntry, error) {
	entry := new(models.LeaderboardEntry)
	err := r.db.NewSelect().
		Model(entry).
		Where("user_id = ?", userID).
		Where("period_type = ?", periodType).
		Where("period_start = ?", periodStart).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return entry, nil
}

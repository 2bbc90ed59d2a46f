package repositories

import (
	"context"
	"time"

	"github.com/luminalearn/questboard/questboard/database/models"
	"github.com/uptrace/bun"
)

type BadgeRepository interface {
	Award(ctx context.Context, badge *models.UserBadge) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]*models.UserBadge, error)
}

type badgeRepository struct {
	db *bun.DB
}

func NewBadgeRepository(db *bun.DB) BadgeRepository {
	return &badgeRepository{db: db}
}

// Award inserts the badge if the user does not hold it yet. Returns whether a
// row was actually written, so callers can log fresh awards only.
func (r *badgeRepository) Award(ctx context.Context, badge *models.UserBadge) (bool, error) {
	now := time.Now()
	badge.AwardedAt = now
	badge.CreatedAt = now

	res, err := r.db.NewInsert().
		Model(badge).
		On("CONFLICT (user_id, badge_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *badgeRepository) ListByUser(ctx context.Context, userID string) ([]*models.UserBadge, error) {
	var badges []*models.UserBadge
	err := r.db.NewSelect().
		Model(&badges).
		Where("user_id = ?", userID).
		Order("awarded_at ASC").
		Scan(ctx)
	return badges, err
}

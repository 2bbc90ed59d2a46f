package repositories

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/luminalearn/questboard/questboard/database/models"
	"github.com/uptrace/bun"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUserID(ctx context.Context, userID string) (*models.User, error)
	GetOrCreate(ctx context.Context, userID string, username string) (*models.User, error)
	SetStreak(ctx context.Context, userID string, streak int) error
	ApplyReward(ctx context.Context, userID string, xp int64, gold int64, streak int, lastQuestDate time.Time) (*models.User, error)
	GetTopUsers(ctx context.Context, limit int) ([]*models.User, error)
}

type userRepository struct {
	db *bun.DB
}

func NewUserRepository(db *bun.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.Joined = now
	user.CreatedAt = now
	user.UpdatedAt = now
	_, err := r.db.NewInsert().Model(user).Exec(ctx)
	return err
}

func (r *userRepository) GetByUserID(ctx context.Context, userID string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("user_id = ?", userID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Error("Database error when getting user",
			slog.String("type", "db"),
			slog.String("operation", "GetByUserID"),
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return nil, err
	}

	return user, nil
}

func (r *userRepository) GetOrCreate(ctx context.Context, userID string, username string) (*models.User, error) {
	user, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	user = &models.User{
		UserID:   userID,
		Username: username,
	}
	now := time.Now()
	user.Joined = now
	user.CreatedAt = now
	user.UpdatedAt = now

	// Two racing first requests both reach the insert; the unique user_id
	// constraint lets exactly one win and the loser re-reads.
	_, err = r.db.NewInsert().
		Model(user).
		On("CONFLICT (user_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return r.GetByUserID(ctx, userID)
}

func (r *userRepository) SetStreak(ctx context.Context, userID string, streak int) error {
	_, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("streak = ?", streak).
		Set("updated_at = ?", time.Now()).
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}

// ApplyReward settles a quest reward against the profile: XP and gold are
// incremented rather than overwritten so concurrent completions of different
// quests never clobber each other. Returns the updated snapshot.
func (r *userRepository) ApplyReward(ctx context.Context, userID string, xp int64, gold int64, streak int, lastQuestDate time.Time) (*models.User, error) {
	user := new(models.User)
	_, err := r.db.NewUpdate().
		Model(user).
		Set("xp = xp + ?", xp).
		Set("gold = gold + ?", gold).
		Set("streak = ?", streak).
		Set("last_quest_date = ?", lastQuestDate).
		Set("updated_at = ?", time.Now()).
		Where("user_id = ?", userID).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *userRepository) GetTopUsers(ctx context.Context, limit int) ([]*models.User, error) {
	var users []*models.User
	err := r.db.NewSelect().
		Model(&users).
		OrderExpr("xp DESC").
		Limit(limit).
		Scan(ctx)
	return users, err
}

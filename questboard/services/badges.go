package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/luminalearn/questboard/questboard/database/models"
	"github.com/luminalearn/questboard/questboard/database/repositories"
)

type badgeRule struct {
	id        string
	name      string
	threshold int
}

var streakBadges = []badgeRule{
	{"streak_3", "On a Roll", 3},
	{"streak_7", "Week Warrior", 7},
	{"streak_30", "Unstoppable", 30},
}

var completionBadges = []badgeRule{
	{"complete_1", "First Steps", 1},
	{"complete_10", "Quest Regular", 10},
	{"complete_50", "Quest Veteran", 50},
	{"complete_100", "Centurion", 100},
}

// BadgeService awards milestone badges when completions cross streak or
// lifetime-count thresholds. Awards are at-most-once per badge; the store's
// unique key absorbs duplicate attempts.
type BadgeService struct {
	badgeRepo repositories.BadgeRepository
	questRepo repositories.QuestRepository
	now       func() time.Time
}

func NewBadgeService(badgeRepo repositories.BadgeRepository, questRepo repositories.QuestRepository) *BadgeService {
	return &BadgeService{
		badgeRepo: badgeRepo,
		questRepo: questRepo,
		now:       time.Now,
	}
}

// OnQuestCompleted checks every rule against the freshly settled profile.
// Failures here never affect the completion that triggered them.
func (s *BadgeService) OnQuestCompleted(ctx context.Context, user *models.User, _ *models.Quest) {
	for _, rule := range streakBadges {
		if user.Streak >= rule.threshold {
			s.award(ctx, user.UserID, rule)
		}
	}

	total, err := s.questRepo.CountCompleted(ctx, user.UserID)
	if err != nil {
		slog.Warn("Badge check skipped, count unavailable",
			slog.String("type", "quest"),
			slog.String("user_id", user.UserID),
			slog.Any("error", err))
		return
	}
	for _, rule := range completionBadges {
		if total >= rule.threshold {
			s.award(ctx, user.UserID, rule)
		}
	}
}

func (s *BadgeService) award(ctx context.Context, userID string, rule badgeRule) {
	awarded, err := s.badgeRepo.Award(ctx, &models.UserBadge{
		UserID:    userID,
		BadgeID:   rule.id,
		Name:      rule.name,
		IconURL:   fmt.Sprintf("/badges/%s.png", rule.id),
		AwardedAt: s.now(),
		CreatedAt: s.now(),
	})
	if err != nil {
		slog.Warn("Badge award failed",
			slog.String("type", "quest"),
			slog.String("user_id", userID),
			slog.String("badge", rule.id),
			slog.Any("error", err))
		return
	}
	if awarded {
		slog.Info("Badge awarded",
			slog.String("type", "quest"),
			slog.String("user_id", userID),
			slog.String("badge", rule.id))
	}
}

// ListBadges returns the user's earned badges, newest first.
func (s *BadgeService) ListBadges(ctx context.Context, userID string) ([]*models.UserBadge, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	badges, err := s.badgeRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeError("list badges", err)
	}
	return badges, nil
}

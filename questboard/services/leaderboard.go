package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/luminalearn/questboard/questboard/database/models"
	"github.com/luminalearn/questboard/questboard/database/repositories"
)

const (
	leaderboardCacheSize   = 256
	leaderboardCacheExpiry = 30 * time.Second
	DefaultLeaderboardSize = 10
)

type cachedBoard struct {
	entries   []*models.LeaderboardEntry
	timestamp time.Time
}

// LeaderboardService maintains weekly and monthly completion boards. Reads
// go through a small LRU so board refreshes from many clients do not hammer
// the store.
type LeaderboardService struct {
	repo  repositories.LeaderboardRepository
	cache *lru.Cache
	now   func() time.Time
}

func NewLeaderboardService(repo repositories.LeaderboardRepository) *LeaderboardService {
	cache, _ := lru.New(leaderboardCacheSize)
	return &LeaderboardService{
		repo:  repo,
		cache: cache,
		now:   time.Now,
	}
}

// OnQuestCompleted bumps the user's weekly and monthly tallies. Board writes
// are best-effort; the completion already settled.
func (s *LeaderboardService) OnQuestCompleted(ctx context.Context, user *models.User, quest *models.Quest) {
	now := s.now()
	periods := []struct {
		kind  string
		start time.Time
	}{
		{models.PeriodWeekly, WeekStart(now)},
		{models.PeriodMonthly, MonthStart(now)},
	}

	for _, p := range periods {
		if err := s.repo.RecordCompletion(ctx, p.kind, p.start, user.UserID, user.Username, quest.XPReward); err != nil {
			slog.Warn("Leaderboard update failed",
				slog.String("type", "quest"),
				slog.String("user_id", user.UserID),
				slog.String("period", p.kind),
				slog.Any("error", err))
		}
	}
}

// GetTop returns the current period's top entries, served from cache when a
// fresh copy exists.
func (s *LeaderboardService) GetTop(ctx context.Context, periodType string, limit int) ([]*models.LeaderboardEntry, error) {
	if periodType != models.PeriodWeekly && periodType != models.PeriodMonthly {
		return nil, fmt.Errorf("%w: unknown period %q", ErrValidation, periodType)
	}
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}

	start := s.periodStart(periodType)
	key := fmt.Sprintf("%s|%s|%d", periodType, start.Format("2006-01-02"), limit)

	if v, ok := s.cache.Get(key); ok {
		cached := v.(cachedBoard)
		if s.now().Sub(cached.timestamp) < leaderboardCacheExpiry {
			return cached.entries, nil
		}
		s.cache.Remove(key)
	}

	entries, err := s.repo.GetTop(ctx, periodType, start, limit)
	if err != nil {
		return nil, storeError("leaderboard read", err)
	}

	s.cache.Add(key, cachedBoard{entries: entries, timestamp: s.now()})
	return entries, nil
}

// GetUserRank returns the user's own entry for the current period, or nil if
// they have not completed anything yet.
func (s *LeaderboardService) GetUserRank(ctx context.Context, userID, periodType string) (*models.LeaderboardEntry, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if periodType != models.PeriodWeekly && periodType != models.PeriodMonthly {
		return nil, fmt.Errorf("%w: unknown period %q", ErrValidation, periodType)
	}

	entry, err := s.repo.GetUserEntry(ctx, userID, periodType, s.periodStart(periodType))
	if err != nil {
		return nil, storeError("leaderboard read", err)
	}
	return entry, nil
}

func (s *LeaderboardService) periodStart(periodType string) time.Time {
	if periodType == models.PeriodMonthly {
		return MonthStart(s.now())
	}
	return WeekStart(s.now())
}

// WeekStart is the Monday of t's ISO week, at UTC midnight.
func WeekStart(t time.Time) time.Time {
	d := dateOnly(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// MonthStart is the first of t's month, at UTC midnight.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

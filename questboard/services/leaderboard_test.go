package services

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminalearn/questboard/questboard/database/models"
)

type fakeLeaderboardRepo struct {
	entries map[string]*models.LeaderboardEntry
	reads   int
}

func newFakeLeaderboardRepo() *fakeLeaderboardRepo {
	return &fakeLeaderboardRepo{entries: make(map[string]*models.LeaderboardEntry)}
}

func boardKey(periodType string, start time.Time, userID string) string {
	return periodType + "|" + start.Format("2006-01-02") + "|" + userID
}

func (f *fakeLeaderboardRepo) RecordCompletion(_ context.Context, periodType string, periodStart time.Time, userID, username string, xp int64) error {
	key := boardKey(periodType, periodStart, userID)
	if e, ok := f.entries[key]; ok {
		e.QuestsCompleted++
		e.XPEarned += xp
		return nil
	}
	f.entries[key] = &models.LeaderboardEntry{
		PeriodType:      periodType,
		PeriodStart:     periodStart,
		UserID:          userID,
		Username:        username,
		QuestsCompleted: 1,
		XPEarned:        xp,
	}
	return nil
}

func (f *fakeLeaderboardRepo) GetTop(_ context.Context, periodType string, periodStart time.Time, limit int) ([]*models.LeaderboardEntry, error) {
	f.reads++
	var out []*models.LeaderboardEntry
	for _, e := range f.entries {
		if e.PeriodType == periodType && e.PeriodStart.Equal(periodStart) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].XPEarned > out[j].XPEarned })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeLeaderboardRepo) GetUserEntry(_ context.Context, userID, periodType string, periodStart time.Time) (*models.LeaderboardEntry, error) {
	return f.entries[boardKey(periodType, periodStart, userID)], nil
}

func TestLeaderboard_RecordsBothPeriods(t *testing.T) {
	repo := newFakeLeaderboardRepo()
	svc := NewLeaderboardService(repo)
	svc.now = fixedClock

	user := &models.User{UserID: "u1", Username: "alice"}
	svc.OnQuestCompleted(context.Background(), user, &models.Quest{XPReward: 100})
	svc.OnQuestCompleted(context.Background(), user, &models.Quest{XPReward: 150})

	weekly := repo.entries[boardKey(models.PeriodWeekly, WeekStart(fixedNow), "u1")]
	require.NotNil(t, weekly)
	assert.Equal(t, 2, weekly.QuestsCompleted)
	assert.Equal(t, int64(250), weekly.XPEarned)

	monthly := repo.entries[boardKey(models.PeriodMonthly, MonthStart(fixedNow), "u1")]
	require.NotNil(t, monthly)
	assert.Equal(t, 2, monthly.QuestsCompleted)
}

func TestLeaderboard_TopIsCached(t *testing.T) {
	repo := newFakeLeaderboardRepo()
	svc := NewLeaderboardService(repo)
	svc.now = fixedClock

	svc.OnQuestCompleted(context.Background(), &models.User{UserID: "u1", Username: "alice"}, &models.Quest{XPReward: 200})
	svc.OnQuestCompleted(context.Background(), &models.User{UserID: "u2", Username: "bob"}, &models.Quest{XPReward: 100})

	top, err := svc.GetTop(context.Background(), models.PeriodWeekly, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "u1", top[0].UserID)

	_, err = svc.GetTop(context.Background(), models.PeriodWeekly, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.reads, "second read should hit the cache")
}

func TestLeaderboard_PeriodValidation(t *testing.T) {
	svc := NewLeaderboardService(newFakeLeaderboardRepo())
	_, err := svc.GetTop(context.Background(), "daily", 10)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.GetUserRank(context.Background(), "u1", "daily")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestWeekStart(t *testing.T) {
	// 2024-01-10 is a Wednesday; the week starts Monday the 8th.
	assert.True(t, WeekStart(fixedNow).Equal(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)))
	assert.True(t, MonthStart(fixedNow).Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

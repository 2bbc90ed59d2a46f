package services

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminalearn/questboard/questboard/database/models"
)

var fixedNow = time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func day(offset int) time.Time {
	return time.Date(2024, 1, 10+offset, 0, 0, 0, 0, time.UTC)
}

// fakeQuestRepo is an in-memory QuestRepository with the same conditional
// update and unique-slot semantics as the real one.
type fakeQuestRepo struct {
	nextID   int64
	quests   map[int64]*models.Quest
	progress []*models.QuestProgress
	failAll  bool
}

func newFakeQuestRepo() *fakeQuestRepo {
	return &fakeQuestRepo{nextID: 1, quests: make(map[int64]*models.Quest)}
}

var errDown = errors.New("connection refused")

func (f *fakeQuestRepo) ListAssignedQuests(_ context.Context, userID string, date time.Time) ([]*models.QuestProgress, error) {
	if f.failAll {
		return nil, errDown
	}
	var out []*models.QuestProgress
	for _, p := range f.progress {
		if p.UserID == userID && p.AssignedFor.Equal(date) {
			cp := *p
			cp.Quest = f.quests[p.QuestID]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeQuestRepo) InsertAssignments(_ context.Context, quests []*models.Quest, progress []*models.QuestProgress) error {
	if f.failAll {
		return errDown
	}
	for i, q := range quests {
		q.ID = f.nextID
		f.nextID++
		f.quests[q.ID] = q
		progress[i].QuestID = q.ID
	}
	for _, p := range progress {
		for _, existing := range f.progress {
			if existing.UserID == p.UserID && existing.AssignedFor.Equal(p.AssignedFor) && existing.Slot == p.Slot {
				return errors.New("duplicate key value violates unique constraint")
			}
		}
		p.ID = f.nextID
		f.nextID++
		f.progress = append(f.progress, p)
	}
	return nil
}

func (f *fakeQuestRepo) DeleteIncompleteBefore(_ context.Context, userID string, date time.Time) (int64, error) {
	if f.failAll {
		return 0, errDown
	}
	return f.deleteIncomplete(&userID, date), nil
}

func (f *fakeQuestRepo) DeleteIncompleteBeforeAll(_ context.Context, date time.Time) (int64, error) {
	if f.failAll {
		return 0, errDown
	}
	return f.deleteIncomplete(nil, date), nil
}

func (f *fakeQuestRepo) deleteIncomplete(userID *string, date time.Time) int64 {
	var kept []*models.QuestProgress
	var deleted int64
	for _, p := range f.progress {
		stale := !p.Completed && p.AssignedFor.Before(date) && (userID == nil || p.UserID == *userID)
		if stale {
			delete(f.quests, p.QuestID)
			deleted++
			continue
		}
		kept = append(kept, p)
	}
	f.progress = kept
	return deleted
}

func (f *fakeQuestRepo) CompleteIfIncomplete(_ context.Context, questID int64, userID string, now time.Time) (*models.QuestProgress, error) {
	if f.failAll {
		return nil, errDown
	}
	for _, p := range f.progress {
		if p.QuestID == questID && p.UserID == userID && !p.Completed {
			p.Completed = true
			ts := now
			p.CompletedAt = &ts
			cp := *p
			cp.Quest = f.quests[questID]
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeQuestRepo) GetQuest(_ context.Context, questID int64) (*models.Quest, error) {
	if f.failAll {
		return nil, errDown
	}
	return f.quests[questID], nil
}

func (f *fakeQuestRepo) CountCompleted(_ context.Context, userID string) (int, error) {
	if f.failAll {
		return 0, errDown
	}
	n := 0
	for _, p := range f.progress {
		if p.UserID == userID && p.Completed {
			n++
		}
	}
	return n, nil
}

func (f *fakeQuestRepo) SumCompletedRewards(_ context.Context, userID string) (int64, int64, error) {
	if f.failAll {
		return 0, 0, errDown
	}
	var xp, gold int64
	for _, p := range f.progress {
		if p.UserID == userID && p.Completed {
			if q := f.quests[p.QuestID]; q != nil {
				xp += q.XPReward
				gold += q.GoldReward
			}
		}
	}
	return xp, gold, nil
}

func (f *fakeQuestRepo) CompletionDatesSince(_ context.Context, userID string, since time.Time) ([]time.Time, error) {
	if f.failAll {
		return nil, errDown
	}
	seen := make(map[time.Time]bool)
	var out []time.Time
	for _, p := range f.progress {
		if p.UserID != userID || !p.Completed || p.CompletedAt == nil {
			continue
		}
		d := time.Date(p.CompletedAt.Year(), p.CompletedAt.Month(), p.CompletedAt.Day(), 0, 0, 0, 0, time.UTC)
		if d.Before(since) || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out, nil
}

// seedAssigned inserts a quest+progress pair directly, bypassing the draw.
func (f *fakeQuestRepo) seedAssigned(userID string, assignedFor time.Time, xp, gold int64, completed bool, completedAt *time.Time) int64 {
	q := &models.Quest{
		ID:         f.nextID,
		Title:      "seeded",
		XPReward:   xp,
		GoldReward: gold,
		QuestDate:  assignedFor,
	}
	f.quests[q.ID] = q
	f.nextID++
	f.progress = append(f.progress, &models.QuestProgress{
		ID:          f.nextID,
		QuestID:     q.ID,
		UserID:      userID,
		Slot:        len(f.progress),
		AssignedFor: assignedFor,
		Completed:   completed,
		CompletedAt: completedAt,
	})
	f.nextID++
	return q.ID
}

type fakeUserRepo struct {
	users   map[string]*models.User
	failAll bool
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	if f.failAll {
		return errDown
	}
	f.users[user.UserID] = user
	return nil
}

func (f *fakeUserRepo) GetByUserID(_ context.Context, userID string) (*models.User, error) {
	if f.failAll {
		return nil, errDown
	}
	if u, ok := f.users[userID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeUserRepo) GetOrCreate(_ context.Context, userID, username string) (*models.User, error) {
	if f.failAll {
		return nil, errDown
	}
	if u, ok := f.users[userID]; ok {
		cp := *u
		return &cp, nil
	}
	u := &models.User{UserID: userID, Username: username, Joined: fixedNow}
	f.users[userID] = u
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) SetStreak(_ context.Context, userID string, streak int) error {
	if f.failAll {
		return errDown
	}
	if u, ok := f.users[userID]; ok {
		u.Streak = streak
	}
	return nil
}

func (f *fakeUserRepo) ApplyReward(_ context.Context, userID string, xp, gold int64, streak int, lastQuestDate time.Time) (*models.User, error) {
	if f.failAll {
		return nil, errDown
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, errors.New("no such user")
	}
	u.XP += xp
	u.Gold += gold
	u.Streak = streak
	d := lastQuestDate
	u.LastQuestDate = &d
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) GetTopUsers(_ context.Context, limit int) ([]*models.User, error) {
	if f.failAll {
		return nil, errDown
	}
	var out []*models.User
	for _, u := range f.users {
		cp := *u
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func newTestManager(qr *fakeQuestRepo, ur *fakeUserRepo, opts ...LifecycleOption) *LifecycleManager {
	base := []LifecycleOption{
		WithClock(fixedClock),
		WithRand(rand.New(rand.NewSource(42))),
	}
	return NewLifecycleManager(qr, ur, append(base, opts...)...)
}

func TestGenerateToday_DrawsThreeQuests(t *testing.T) {
	qr := newFakeQuestRepo()
	ur := newFakeUserRepo()
	m := newTestManager(qr, ur)

	quests, err := m.GenerateToday(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, quests, 3)

	validRewards := map[int64]int64{100: 50, 150: 75, 200: 100}
	seen := make(map[string]bool)
	for _, p := range quests {
		require.NotNil(t, p.Quest)
		assert.False(t, p.Completed)
		assert.Nil(t, p.CompletedAt)
		assert.True(t, p.AssignedFor.Equal(day(0)))
		assert.Equal(t, validRewards[p.Quest.XPReward], p.Quest.GoldReward)
		assert.False(t, seen[p.Quest.TemplateID], "template drawn twice: %s", p.Quest.TemplateID)
		seen[p.Quest.TemplateID] = true
	}
}

func TestGenerateToday_Idempotent(t *testing.T) {
	qr := newFakeQuestRepo()
	ur := newFakeUserRepo()
	m := newTestManager(qr, ur)

	first, err := m.GenerateToday(context.Background(), "u1")
	require.NoError(t, err)
	second, err := m.GenerateToday(context.Background(), "u1")
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].QuestID, second[i].QuestID)
	}
	assert.Len(t, qr.progress, 3)
}

func TestGenerateToday_RecoversFromInsertRace(t *testing.T) {
	qr := newFakeQuestRepo()
	ur := newFakeUserRepo()
	m := newTestManager(qr, ur)

	// Another process wins the insert between our existence check and our
	// write. The unique constraint fires and we fall back to the winner's set.
	other := newTestManager(qr, ur)
	existing, err := other.GenerateToday(context.Background(), "u1")
	require.NoError(t, err)

	quests, progress := m.drawDailySet("u1", day(0))
	err = qr.InsertAssignments(context.Background(), quests, progress)
	require.Error(t, err)

	got, err := m.GenerateToday(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, len(existing))
	for i := range got {
		assert.Equal(t, existing[i].QuestID, got[i].QuestID)
	}
}

func TestGenerateToday_StaleCleanup(t *testing.T) {
	qr := newFakeQuestRepo()
	ur := newFakeUserRepo()
	m := newTestManager(qr, ur)

	completedAt := day(-1).Add(12 * time.Hour)
	staleID := qr.seedAssigned("u1", day(-2), 100, 50, false, nil)
	doneID := qr.seedAssigned("u1", day(-1), 150, 75, true, &completedAt)

	_, err := m.GenerateToday(context.Background(), "u1")
	require.NoError(t, err)

	assert.Nil(t, qr.quests[staleID], "incomplete quest from two days ago should be deleted")
	assert.NotNil(t, qr.quests[doneID], "completed quest must never be deleted")
}

func TestGenerateToday_ResetsBrokenStreak(t *testing.T) {
	tests := []struct {
		name       string
		last       *time.Time
		streak     int
		wantStreak int
	}{
		{"missed a full day", timePtr(day(-3)), 5, 0},
		{"last quest yesterday", timePtr(day(-1)), 5, 5},
		{"last quest today", timePtr(day(0)), 5, 5},
		{"no history", nil, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qr := newFakeQuestRepo()
			ur := newFakeUserRepo()
			ur.users["u1"] = &models.User{UserID: "u1", Username: "u1", Streak: tt.streak, LastQuestDate: tt.last}
			m := newTestManager(qr, ur)

			_, err := m.GenerateToday(context.Background(), "u1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStreak, ur.users["u1"].Streak)
		})
	}
}

func TestGenerateToday_Validation(t *testing.T) {
	m := newTestManager(newFakeQuestRepo(), newFakeUserRepo())
	_, err := m.GenerateToday(context.Background(), "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGenerateToday_StoreUnavailable(t *testing.T) {
	qr := newFakeQuestRepo()
	qr.failAll = true
	ur := newFakeUserRepo()
	ur.failAll = true
	m := newTestManager(qr, ur)

	_, err := m.GenerateToday(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestCompleteQuest_AwardsExactlyOnce(t *testing.T) {
	qr := newFakeQuestRepo()
	ur := newFakeUserRepo()
	m := newTestManager(qr, ur)
	questID := qr.seedAssigned("u1", day(0), 100, 50, false, nil)

	res, err := m.CompleteQuest(context.Background(), questID, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.XPAwarded)
	assert.Equal(t, int64(50), res.GoldAwarded)

	_, err = m.CompleteQuest(context.Background(), questID, "u1")
	assert.ErrorIs(t, err, ErrAlreadyCompletedOrNotFound)

	u := ur.users["u1"]
	assert.Equal(t, int64(100), u.XP)
	assert.Equal(t, int64(50), u.Gold)
}

func TestCompleteQuest_RewardsAreAdditive(t *testing.T) {
	qr := newFakeQuestRepo()
	ur := newFakeUserRepo()
	ur.users["u1"] = &models.User{UserID: "u1", Username: "u1", XP: 40, Gold: 15}
	m := newTestManager(qr, ur)

	q1 := qr.seedAssigned("u1", day(0), 100, 50, false, nil)
	q2 := qr.seedAssigned("u1", day(0), 200, 100, false, nil)

	_, err := m.CompleteQuest(context.Background(), q1, "u1")
	require.NoError(t, err)
	_, err = m.CompleteQuest(context.Background(), q2, "u1")
	require.NoError(t, err)

	u := ur.users["u1"]
	assert.Equal(t, int64(340), u.XP)
	assert.Equal(t, int64(165), u.Gold)
}

func TestCompleteQuest_StreakTransitions(t *testing.T) {
	tests := []struct {
		name       string
		last       *time.Time
		streak     int
		wantStreak int
	}{
		{"no prior completion", nil, 0, 1},
		{"yesterday extends", timePtr(day(-1)), 3, 4},
		{"today unchanged", timePtr(day(0)), 3, 3},
		{"older resets to one", timePtr(day(-4)), 3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qr := newFakeQuestRepo()
			ur := newFakeUserRepo()
			ur.users["u1"] = &models.User{UserID: "u1", Username: "u1", Streak: tt.streak, LastQuestDate: tt.last}
			m := newTestManager(qr, ur)
			questID := qr.seedAssigned("u1", day(0), 100, 50, false, nil)

			res, err := m.CompleteQuest(context.Background(), questID, "u1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStreak, res.Profile.Streak)
			require.NotNil(t, res.Profile.LastQuestDate)
			assert.True(t, res.Profile.LastQuestDate.Equal(day(0)))
		})
	}
}

func TestCompleteQuest_FreshProfileScenario(t *testing.T) {
	qr := newFakeQuestRepo()
	ur := newFakeUserRepo()
	m := newTestManager(qr, ur)
	questID := qr.seedAssigned("u1", day(0), 100, 50, false, nil)

	res, err := m.CompleteQuest(context.Background(), questID, "u1")
	require.NoError(t, err)

	assert.Equal(t, int64(100), res.Profile.XP)
	assert.Equal(t, int64(50), res.Profile.Gold)
	assert.Equal(t, 1, res.Profile.Streak)
	require.NotNil(t, res.Profile.LastQuestDate)
	assert.True(t, res.Profile.LastQuestDate.Equal(day(0)))
}

func TestCompleteQuest_WrongOwner(t *testing.T) {
	qr := newFakeQuestRepo()
	ur := newFakeUserRepo()
	m := newTestManager(qr, ur)
	questID := qr.seedAssigned("u1", day(0), 100, 50, false, nil)

	_, err := m.CompleteQuest(context.Background(), questID, "u2")
	assert.ErrorIs(t, err, ErrAlreadyCompletedOrNotFound)
}

func TestCompleteQuest_Validation(t *testing.T) {
	m := newTestManager(newFakeQuestRepo(), newFakeUserRepo())

	_, err := m.CompleteQuest(context.Background(), 0, "u1")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = m.CompleteQuest(context.Background(), 1, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCompleteQuest_NotifiesObservers(t *testing.T) {
	qr := newFakeQuestRepo()
	ur := newFakeUserRepo()
	obs := &captureObserver{}
	m := newTestManager(qr, ur, WithObserver(obs))
	questID := qr.seedAssigned("u1", day(0), 100, 50, false, nil)

	_, err := m.CompleteQuest(context.Background(), questID, "u1")
	require.NoError(t, err)
	require.Len(t, obs.quests, 1)
	assert.Equal(t, questID, obs.quests[0].ID)
}

type captureObserver struct {
	quests []*models.Quest
}

func (c *captureObserver) OnQuestCompleted(_ context.Context, _ *models.User, quest *models.Quest) {
	c.quests = append(c.quests, quest)
}

func TestGetStats(t *testing.T) {
	qr := newFakeQuestRepo()
	ur := newFakeUserRepo()
	m := newTestManager(qr, ur)

	// Completions yesterday and today form a 2-day run; an isolated one
	// five days back does not extend it.
	for _, d := range []time.Time{day(0), day(-1), day(-5)} {
		at := d.Add(10 * time.Hour)
		qr.seedAssigned("u1", d, 100, 50, true, &at)
	}
	qr.seedAssigned("u1", day(0), 200, 100, false, nil)

	stats, err := m.GetStats(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalCompleted)
	assert.Equal(t, int64(300), stats.TotalXP)
	assert.Equal(t, int64(150), stats.TotalGold)
	assert.Equal(t, 2, stats.WeeklyStreak)
}

func TestGetStats_NoHistory(t *testing.T) {
	m := newTestManager(newFakeQuestRepo(), newFakeUserRepo())

	stats, err := m.GetStats(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalCompleted)
	assert.Zero(t, stats.WeeklyStreak)
	assert.Zero(t, stats.TotalXP)
	assert.Zero(t, stats.TotalGold)
}

func TestWeeklyStreak(t *testing.T) {
	tests := []struct {
		name  string
		dates []time.Time
		want  int
	}{
		{"empty", nil, 0},
		{"single day", []time.Time{day(0)}, 1},
		{"three consecutive", []time.Time{day(-2), day(-1), day(0)}, 3},
		{"gap breaks run", []time.Time{day(-3), day(-1), day(0)}, 2},
		{"duplicates collapse", []time.Time{day(0), day(0), day(-1)}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, weeklyStreak(tt.dates))
		})
	}
}

func TestSweepStale(t *testing.T) {
	qr := newFakeQuestRepo()
	ur := newFakeUserRepo()
	m := newTestManager(qr, ur)

	completedAt := day(-1).Add(8 * time.Hour)
	qr.seedAssigned("u1", day(-1), 100, 50, false, nil)
	qr.seedAssigned("u2", day(-2), 100, 50, false, nil)
	kept := qr.seedAssigned("u3", day(-1), 100, 50, true, &completedAt)

	deleted, err := m.SweepStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.NotNil(t, qr.quests[kept])
}

func timePtr(t time.Time) *time.Time { return &t }

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/luminalearn/questboard/questboard/database"
	"github.com/luminalearn/questboard/questboard/database/models"
	"github.com/luminalearn/questboard/questboard/database/repositories"
)

const DefaultDailyQuestCount = 3

// CompletionObserver is notified after a quest completion has been settled.
// Observer failures are logged and never undo the completion.
type CompletionObserver interface {
	OnQuestCompleted(ctx context.Context, user *models.User, quest *models.Quest)
}

// CompletionResult is what a successful completion returns to the caller.
type CompletionResult struct {
	XPAwarded   int64        `json:"xp_awarded"`
	GoldAwarded int64        `json:"gold_awarded"`
	Profile     *models.User `json:"profile"`
}

// UserStats aggregates a user's completed quest history.
type UserStats struct {
	TotalCompleted int   `json:"total_completed"`
	WeeklyStreak   int   `json:"weekly_streak"`
	TotalXP        int64 `json:"total_xp"`
	TotalGold      int64 `json:"total_gold"`
}

// LifecycleManager owns the daily quest rules: generation, stale cleanup,
// completion, reward settlement and streak bookkeeping. All shared state
// lives in the store; the manager itself only holds its dependencies.
type LifecycleManager struct {
	questRepo repositories.QuestRepository
	userRepo  repositories.UserRepository
	templates []models.QuestTemplate
	observers []CompletionObserver

	dailyCount int
	now        func() time.Time

	randMu sync.Mutex
	rand   *rand.Rand

	genGroup singleflight.Group
}

// LifecycleOption customizes a LifecycleManager.
type LifecycleOption func(*LifecycleManager)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) LifecycleOption {
	return func(m *LifecycleManager) { m.now = now }
}

// WithRand replaces the random source used for the daily draw so generation
// can be made deterministic.
func WithRand(r *rand.Rand) LifecycleOption {
	return func(m *LifecycleManager) { m.rand = r }
}

// WithDailyCount changes how many quests a day's set contains.
func WithDailyCount(n int) LifecycleOption {
	return func(m *LifecycleManager) {
		if n > 0 {
			m.dailyCount = n
		}
	}
}

// WithTemplates replaces the template pool the daily draw picks from.
func WithTemplates(pool []models.QuestTemplate) LifecycleOption {
	return func(m *LifecycleManager) {
		if len(pool) > 0 {
			m.templates = pool
		}
	}
}

// WithObserver registers a completion observer (badges, leaderboards).
func WithObserver(o CompletionObserver) LifecycleOption {
	return func(m *LifecycleManager) { m.observers = append(m.observers, o) }
}

func NewLifecycleManager(questRepo repositories.QuestRepository, userRepo repositories.UserRepository, opts ...LifecycleOption) *LifecycleManager {
	m := &LifecycleManager{
		questRepo:  questRepo,
		userRepo:   userRepo,
		templates:  database.QuestTemplates,
		dailyCount: DefaultDailyQuestCount,
		now:        time.Now,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GenerateToday returns the user's quest set for the current day, creating
// it if it does not exist yet. Calling it again the same day returns the
// same set. Concurrent calls for the same user are collapsed in-process and
// the (user_id, assigned_for, slot) unique index catches whatever still
// races across processes.
func (m *LifecycleManager) GenerateToday(ctx context.Context, userID string) ([]*models.QuestProgress, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	today := dateOnly(m.now())
	key := fmt.Sprintf("%s|%s", userID, today.Format("2006-01-02"))

	v, err, _ := m.genGroup.Do(key, func() (interface{}, error) {
		return m.generateToday(ctx, userID, today)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*models.QuestProgress), nil
}

func (m *LifecycleManager) generateToday(ctx context.Context, userID string, today time.Time) ([]*models.QuestProgress, error) {
	start := time.Now()

	user, err := m.userRepo.GetOrCreate(ctx, userID, userID)
	if err != nil {
		return nil, storeError("get profile", err)
	}

	// Streak continuity: a full missed day breaks the streak even before
	// anything new is assigned.
	yesterday := today.AddDate(0, 0, -1)
	if user.Streak > 0 && (user.LastQuestDate == nil || dateOnly(*user.LastQuestDate).Before(yesterday)) {
		if err := m.userRepo.SetStreak(ctx, userID, 0); err != nil {
			return nil, storeError("reset streak", err)
		}
		slog.Debug("Streak reset after missed day",
			slog.String("type", "quest"),
			slog.String("user_id", userID))
	}

	// Abandoned quests from prior days are discarded, never carried over.
	deleted, err := m.questRepo.DeleteIncompleteBefore(ctx, userID, today)
	if err != nil {
		return nil, storeError("stale cleanup", err)
	}
	if deleted > 0 {
		slog.Debug("Removed stale quests",
			slog.String("type", "quest"),
			slog.String("user_id", userID),
			slog.Int64("count", deleted))
	}

	existing, err := m.questRepo.ListAssignedQuests(ctx, userID, today)
	if err != nil {
		return nil, storeError("list assigned quests", err)
	}
	if len(existing) > 0 {
		return existing, nil
	}

	quests, progress := m.drawDailySet(userID, today)
	if err := m.questRepo.InsertAssignments(ctx, quests, progress); err != nil {
		// A concurrent caller may have won the unique-index race. Re-read
		// before giving up; finding rows means the day's set already exists.
		if rows, rerr := m.questRepo.ListAssignedQuests(ctx, userID, today); rerr == nil && len(rows) > 0 {
			return rows, nil
		}
		return nil, storeError("insert assignments", err)
	}

	assigned, err := m.questRepo.ListAssignedQuests(ctx, userID, today)
	if err != nil {
		return nil, storeError("list assigned quests", err)
	}

	slog.Info("Daily quests generated",
		slog.String("type", "quest"),
		slog.String("op", "generate"),
		slog.String("user_id", userID),
		slog.Int("count", len(assigned)),
		slog.Duration("took", time.Since(start)))
	return assigned, nil
}

// drawDailySet picks dailyCount templates without replacement and stamps
// them into per-user quest rows plus their progress records.
func (m *LifecycleManager) drawDailySet(userID string, today time.Time) ([]*models.Quest, []*models.QuestProgress) {
	count := m.dailyCount
	if count > len(m.templates) {
		count = len(m.templates)
	}

	m.randMu.Lock()
	picks := m.rand.Perm(len(m.templates))[:count]
	m.randMu.Unlock()

	now := m.now()
	quests := make([]*models.Quest, 0, count)
	progress := make([]*models.QuestProgress, 0, count)
	for slot, idx := range picks {
		t := m.templates[idx]
		quests = append(quests, &models.Quest{
			TemplateID:    t.TemplateID,
			Title:         t.Title,
			Description:   t.Description,
			Category:      t.Category,
			Difficulty:    t.Difficulty,
			XPReward:      t.XPReward,
			GoldReward:    t.GoldReward,
			QuestDate:     today,
			DeadlineHours: t.DeadlineHours,
			Active:        true,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		progress = append(progress, &models.QuestProgress{
			UserID:      userID,
			Slot:        slot,
			AssignedFor: today,
			Completed:   false,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return quests, progress
}

// ListToday returns the user's current quest set without generating
// anything. Empty when GenerateToday has not run yet today.
func (m *LifecycleManager) ListToday(ctx context.Context, userID string) ([]*models.QuestProgress, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	rows, err := m.questRepo.ListAssignedQuests(ctx, userID, dateOnly(m.now()))
	if err != nil {
		return nil, storeError("list assigned quests", err)
	}
	return rows, nil
}

// CompleteQuest flips a quest to completed and settles its rewards. The
// state transition is a conditional update, so a second call for the same
// quest (or a concurrent duplicate) awards nothing and reports
// ErrAlreadyCompletedOrNotFound.
func (m *LifecycleManager) CompleteQuest(ctx context.Context, questID int64, userID string) (*CompletionResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if questID <= 0 {
		return nil, fmt.Errorf("%w: quest id is required", ErrValidation)
	}

	start := time.Now()
	now := m.now()
	today := dateOnly(now)

	progress, err := m.questRepo.CompleteIfIncomplete(ctx, questID, userID, now)
	if err != nil {
		return nil, storeError("complete quest", err)
	}
	if progress == nil {
		return nil, ErrAlreadyCompletedOrNotFound
	}

	quest := progress.Quest
	if quest == nil {
		quest, err = m.questRepo.GetQuest(ctx, questID)
		if err != nil || quest == nil {
			return nil, storeError("load quest", err)
		}
	}

	user, err := m.userRepo.GetOrCreate(ctx, userID, userID)
	if err != nil {
		return nil, storeError("get profile", err)
	}

	streak := nextStreak(user.Streak, user.LastQuestDate, today)
	updated, err := m.userRepo.ApplyReward(ctx, userID, quest.XPReward, quest.GoldReward, streak, today)
	if err != nil {
		return nil, storeError("apply reward", err)
	}

	for _, o := range m.observers {
		o.OnQuestCompleted(ctx, updated, quest)
	}

	slog.Info("Quest completed",
		slog.String("type", "quest"),
		slog.String("op", "complete"),
		slog.String("user_id", userID),
		slog.Int64("quest_id", questID),
		slog.Int64("xp", quest.XPReward),
		slog.Int64("gold", quest.GoldReward),
		slog.Duration("took", time.Since(start)))

	return &CompletionResult{
		XPAwarded:   quest.XPReward,
		GoldAwarded: quest.GoldReward,
		Profile:     updated,
	}, nil
}

// GetStats reports totals over the user's completed quests plus the rolling
// weekly streak. Read-only.
func (m *LifecycleManager) GetStats(ctx context.Context, userID string) (*UserStats, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	today := dateOnly(m.now())
	since := today.AddDate(0, 0, -6)

	var (
		stats UserStats
		dates []time.Time
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := m.questRepo.CountCompleted(gctx, userID)
		if err != nil {
			return storeError("count completed", err)
		}
		stats.TotalCompleted = n
		return nil
	})
	g.Go(func() error {
		xp, gold, err := m.questRepo.SumCompletedRewards(gctx, userID)
		if err != nil {
			return storeError("sum rewards", err)
		}
		stats.TotalXP, stats.TotalGold = xp, gold
		return nil
	})
	g.Go(func() error {
		ds, err := m.questRepo.CompletionDatesSince(gctx, userID, since)
		if err != nil {
			return storeError("completion dates", err)
		}
		dates = ds
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.WeeklyStreak = weeklyStreak(dates)
	return &stats, nil
}

// SweepStale removes every user's incomplete quests from before the current
// day. Run periodically so boards stay clean even for users who never call
// GenerateToday.
func (m *LifecycleManager) SweepStale(ctx context.Context) (int64, error) {
	today := dateOnly(m.now())
	deleted, err := m.questRepo.DeleteIncompleteBeforeAll(ctx, today)
	if err != nil {
		return 0, storeError("sweep stale", err)
	}
	if deleted > 0 {
		slog.Info("Stale quest sweep",
			slog.String("type", "quest"),
			slog.String("op", "sweep"),
			slog.Int64("deleted", deleted))
	}
	return deleted, nil
}

// nextStreak applies the completion-time streak transition: yesterday keeps
// the run going, today leaves it alone, anything older starts over at 1.
func nextStreak(current int, last *time.Time, today time.Time) int {
	if last == nil {
		return 1
	}
	switch d := dateOnly(*last); {
	case d.Equal(today):
		return current
	case d.Equal(today.AddDate(0, 0, -1)):
		return current + 1
	default:
		return 1
	}
}

// weeklyStreak counts the longest run of consecutive calendar days ending at
// the most recent completion within the window.
func weeklyStreak(dates []time.Time) int {
	if len(dates) == 0 {
		return 0
	}

	days := make([]time.Time, len(dates))
	for i, d := range dates {
		days[i] = dateOnly(d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	streak := 1
	for i := 1; i < len(days); i++ {
		if days[i].Equal(days[i-1]) {
			continue
		}
		if days[i].Equal(days[i-1].AddDate(0, 0, -1)) {
			streak++
			continue
		}
		break
	}
	return streak
}

func dateOnly(t time.Time) time.Time {
	y, mo, d := t.UTC().Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStoreUnavailable, err))
}

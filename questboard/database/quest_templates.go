package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/luminalearn/questboard/questboard/database/models"
)

// Reward pairs by difficulty. All templates of a difficulty share the same
// pair so reward totals stay predictable for the client.
const (
	EasyXP     = 100
	EasyGold   = 50
	MediumXP   = 150
	MediumGold = 75
	HardXP     = 200
	HardGold   = 100
)

// QuestTemplates is the static pool the daily draw picks from.
var QuestTemplates = []models.QuestTemplate{
	// Education
	{TemplateID: "edu_flashcards", Title: "Flashcard Sprint", Description: "Review 20 flashcards from any deck", Category: models.CategoryEducation, Difficulty: models.DifficultyEasy, XPReward: EasyXP, GoldReward: EasyGold, DeadlineHours: 24},
	{TemplateID: "edu_lesson", Title: "Lesson Learner", Description: "Finish one full lesson in your current course", Category: models.CategoryEducation, Difficulty: models.DifficultyMedium, XPReward: MediumXP, GoldReward: MediumGold, DeadlineHours: 24},
	{TemplateID: "edu_quiz_perfect", Title: "Perfect Score", Description: "Score 100% on a practice quiz", Category: models.CategoryEducation, Difficulty: models.DifficultyHard, XPReward: HardXP, GoldReward: HardGold, DeadlineHours: 24},

	// Health
	{TemplateID: "health_walk", Title: "Step It Up", Description: "Take a 15 minute walk", Category: models.CategoryHealth, Difficulty: models.DifficultyEasy, XPReward: EasyXP, GoldReward: EasyGold, DeadlineHours: 24},
	{TemplateID: "health_workout", Title: "Daily Workout", Description: "Complete a 30 minute workout", Category: models.CategoryHealth, Difficulty: models.DifficultyMedium, XPReward: MediumXP, GoldReward: MediumGold, DeadlineHours: 24},
	{TemplateID: "health_early_rise", Title: "Early Riser", Description: "Start your first study session before 8am", Category: models.CategoryHealth, Difficulty: models.DifficultyHard, XPReward: HardXP, GoldReward: HardGold, DeadlineHours: 24},

	// Wealth
	{TemplateID: "wealth_budget", Title: "Budget Check", Description: "Log today's spending in your budget tracker", Category: models.CategoryWealth, Difficulty: models.DifficultyEasy, XPReward: EasyXP, GoldReward: EasyGold, DeadlineHours: 24},
	{TemplateID: "wealth_read", Title: "Money Minded", Description: "Read one article on personal finance", Category: models.CategoryWealth, Difficulty: models.DifficultyMedium, XPReward: MediumXP, GoldReward: MediumGold, DeadlineHours: 24},
	{TemplateID: "wealth_plan", Title: "Savings Strategist", Description: "Review and adjust your monthly savings plan", Category: models.CategoryWealth, Difficulty: models.DifficultyHard, XPReward: HardXP, GoldReward: HardGold, DeadlineHours: 24},

	// Service
	{TemplateID: "service_help", Title: "Helping Hand", Description: "Answer a question on the community board", Category: models.CategoryService, Difficulty: models.DifficultyEasy, XPReward: EasyXP, GoldReward: EasyGold, DeadlineHours: 24},
	{TemplateID: "service_share", Title: "Knowledge Share", Description: "Share a study resource with another learner", Category: models.CategoryService, Difficulty: models.DifficultyMedium, XPReward: MediumXP, GoldReward: MediumGold, DeadlineHours: 24},
	{TemplateID: "service_mentor", Title: "Mini Mentor", Description: "Walk a classmate through a topic they are stuck on", Category: models.CategoryService, Difficulty: models.DifficultyHard, XPReward: HardXP, GoldReward: HardGold, DeadlineHours: 24},

	// Spiritual
	{TemplateID: "spirit_reflect", Title: "Daily Reflection", Description: "Write three sentences about what you learned today", Category: models.CategorySpiritual, Difficulty: models.DifficultyEasy, XPReward: EasyXP, GoldReward: EasyGold, DeadlineHours: 24},
	{TemplateID: "spirit_meditate", Title: "Quiet Mind", Description: "Meditate for 10 minutes before studying", Category: models.CategorySpiritual, Difficulty: models.DifficultyMedium, XPReward: MediumXP, GoldReward: MediumGold, DeadlineHours: 24},
	{TemplateID: "spirit_gratitude", Title: "Gratitude Journal", Description: "List five things you are grateful for this week", Category: models.CategorySpiritual, Difficulty: models.DifficultyHard, XPReward: HardXP, GoldReward: HardGold, DeadlineHours: 24},

	// Family
	{TemplateID: "family_checkin", Title: "Family Check-in", Description: "Tell someone at home one thing you learned", Category: models.CategoryFamily, Difficulty: models.DifficultyEasy, XPReward: EasyXP, GoldReward: EasyGold, DeadlineHours: 24},
	{TemplateID: "family_teach", Title: "Teach at Home", Description: "Teach a family member something from your course", Category: models.CategoryFamily, Difficulty: models.DifficultyMedium, XPReward: MediumXP, GoldReward: MediumGold, DeadlineHours: 24},
	{TemplateID: "family_project", Title: "Family Project", Description: "Spend an hour on a shared project with family", Category: models.CategoryFamily, Difficulty: models.DifficultyHard, XPReward: HardXP, GoldReward: HardGold, DeadlineHours: 24},

	// Social
	{TemplateID: "social_invite", Title: "Study Buddy", Description: "Invite a friend to a study session", Category: models.CategorySocial, Difficulty: models.DifficultyEasy, XPReward: EasyXP, GoldReward: EasyGold, DeadlineHours: 24},
	{TemplateID: "social_group", Title: "Group Session", Description: "Join a group study room for 20 minutes", Category: models.CategorySocial, Difficulty: models.DifficultyMedium, XPReward: MediumXP, GoldReward: MediumGold, DeadlineHours: 24},
	{TemplateID: "social_recruit", Title: "Recruiter", Description: "Bring a new learner onto the platform", Category: models.CategorySocial, Difficulty: models.DifficultyHard, XPReward: HardXP, GoldReward: HardGold, DeadlineHours: 24},
}

// SeedQuestTemplates mirrors the static pool into the quest_templates table
// so reporting and the catalog search can query it alongside everything else.
func (db *DB) SeedQuestTemplates(ctx context.Context) error {
	insertSQL := `
        INSERT INTO quest_templates (
            template_id, title, description, category, difficulty,
            xp_reward, gold_reward, deadline_hours,
            created_at, updated_at
        ) VALUES (
            $1, $2, $3, $4, $5,
            $6, $7, $8,
            CURRENT_TIMESTAMP, CURRENT_TIMESTAMP
        ) ON CONFLICT (template_id) DO UPDATE SET
            title = EXCLUDED.title,
            description = EXCLUDED.description,
            category = EXCLUDED.category,
            difficulty = EXCLUDED.difficulty,
            xp_reward = EXCLUDED.xp_reward,
            gold_reward = EXCLUDED.gold_reward,
            deadline_hours = EXCLUDED.deadline_hours,
            updated_at = CURRENT_TIMESTAMP;
    `

	for _, t := range QuestTemplates {
		if _, err := db.ExecWithLog(ctx, insertSQL,
			t.TemplateID, t.Title, t.Description, t.Category, t.Difficulty,
			t.XPReward, t.GoldReward, t.DeadlineHours,
		); err != nil {
			return fmt.Errorf("failed to upsert quest template %s: %w", t.TemplateID, err)
		}
	}

	slog.Info("Quest templates initialized/updated successfully", slog.Int("count", len(QuestTemplates)))
	return nil
}

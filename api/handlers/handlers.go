package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/luminalearn/questboard/api/middleware"
	"github.com/luminalearn/questboard/api/utils"
	"github.com/luminalearn/questboard/questboard/database"
	"github.com/luminalearn/questboard/questboard/database/models"
	"github.com/luminalearn/questboard/questboard/services"
)

// App bundles everything the HTTP handlers need.
type App struct {
	DB          *database.DB
	Lifecycle   *services.LifecycleManager
	Badges      *services.BadgeService
	Leaderboard *services.LeaderboardService
	Catalog     *services.CatalogService
	ShareCards  *services.ShareCardService
	Storage     *services.StorageService
	Version     string
}

type userRequest struct {
	UserID string `json:"user_id"`
}

// HealthCheck reports process and store liveness.
func HealthCheck(app *App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		status := "ok"
		dbStatus := "ok"
		if app.DB != nil {
			if err := app.DB.Ping(ctx); err != nil {
				status = "degraded"
				dbStatus = "unreachable"
			}
		}

		return c.JSON(fiber.Map{
			"status":   status,
			"database": dbStatus,
			"version":  app.Version,
		})
	}
}

// GenerateQuests creates (or returns) the caller's quest set for today.
func GenerateQuests(app *App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req userRequest
		if err := c.BodyParser(&req); err != nil {
			return utils.SendBadRequest(c, "Invalid request body", nil)
		}

		quests, err := app.Lifecycle.GenerateToday(c.UserContext(), req.UserID)
		if err != nil {
			return err
		}
		return utils.SendSuccess(c, fiber.Map{"quests": quests}, "Daily quests ready")
	}
}

// ListQuests returns today's assigned quest set without generating.
func ListQuests(app *App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		quests, err := app.Lifecycle.ListToday(c.UserContext(), c.Query("user_id"))
		if err != nil {
			return err
		}
		if quests == nil {
			quests = []*models.QuestProgress{}
		}
		return utils.SendSuccess(c, fiber.Map{"quests": quests}, "")
	}
}

// CompleteQuest marks a quest complete and settles its rewards.
func CompleteQuest(app *App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		questID, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return utils.SendBadRequest(c, "Quest id must be numeric", nil)
		}

		var req userRequest
		if err := c.BodyParser(&req); err != nil {
			return utils.SendBadRequest(c, "Invalid request body", nil)
		}

		result, err := app.Lifecycle.CompleteQuest(c.UserContext(), questID, req.UserID)
		if err != nil {
			return err
		}
		return utils.SendSuccess(c, result, "Quest completed")
	}
}

// GetStats reports completion totals and the weekly streak.
func GetStats(app *App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := app.Lifecycle.GetStats(c.UserContext(), c.Params("userID"))
		if err != nil {
			return err
		}
		return utils.SendSuccess(c, stats, "")
	}
}

// GetLeaderboard returns the current weekly or monthly board.
func GetLeaderboard(app *App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		period := c.Query("period", models.PeriodWeekly)
		limit, _ := strconv.Atoi(c.Query("limit", "10"))

		entries, err := app.Leaderboard.GetTop(c.UserContext(), period, limit)
		if err != nil {
			return err
		}
		if entries == nil {
			entries = []*models.LeaderboardEntry{}
		}
		return utils.SendSuccess(c, fiber.Map{"period": period, "entries": entries}, "")
	}
}

// GetBadges lists a user's earned badges.
func GetBadges(app *App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		badges, err := app.Badges.ListBadges(c.UserContext(), c.Params("userID"))
		if err != nil {
			return err
		}
		if badges == nil {
			badges = []*models.UserBadge{}
		}
		return utils.SendSuccess(c, fiber.Map{"badges": badges}, "")
	}
}

// SearchCatalog fuzzy-searches the quest template pool.
func SearchCatalog(app *App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "10"))
		results, err := app.Catalog.Search(c.Query("q"), limit)
		if err != nil {
			return err
		}
		return utils.SendSuccess(c, fiber.Map{"templates": results}, "")
	}
}

// ListCatalog lists templates, optionally by category.
func ListCatalog(app *App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		templates := app.Catalog.List(c.Query("category"))
		return utils.SendSuccess(c, fiber.Map{"templates": templates}, "")
	}
}

// CreateShareCard renders the user's stats card. With storage configured the
// PNG is uploaded and its URL returned; otherwise the image comes back
// inline.
func CreateShareCard(app *App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req userRequest
		if err := c.BodyParser(&req); err != nil {
			return utils.SendBadRequest(c, "Invalid request body", nil)
		}

		image, err := app.ShareCards.Render(c.UserContext(), req.UserID)
		if err != nil {
			return err
		}

		if app.Storage != nil {
			url, err := app.Storage.UploadShareCard(c.UserContext(), req.UserID, image)
			if err != nil {
				return err
			}
			return utils.SendCreated(c, fiber.Map{"url": url}, "Share card uploaded")
		}

		c.Set("Content-Type", "image/png")
		return c.Send(image)
	}
}

// SetupRoutes wires every endpoint onto the app.
func SetupRoutes(fiberApp *fiber.App, app *App, authToken string) {
	fiberApp.Get("/health", HealthCheck(app))

	api := fiberApp.Group("/api")
	api.Get("/catalog", ListCatalog(app))
	api.Get("/catalog/search", SearchCatalog(app))
	api.Get("/leaderboard", GetLeaderboard(app))

	authed := api.Group("", middleware.AuthRequired(authToken))
	authed.Post("/quests/generate", GenerateQuests(app))
	authed.Get("/quests", ListQuests(app))
	authed.Post("/quests/:id/complete", CompleteQuest(app))
	authed.Get("/stats/:userID", GetStats(app))
	authed.Get("/badges/:userID", GetBadges(app))
	authed.Post("/sharecard", CreateShareCard(app))
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/luminalearn/questboard/api/handlers"
	"github.com/luminalearn/questboard/api/middleware"
	"github.com/luminalearn/questboard/questboard"
	"github.com/luminalearn/questboard/questboard/database"
	"github.com/luminalearn/questboard/questboard/database/repositories"
	"github.com/luminalearn/questboard/questboard/logger"
	"github.com/luminalearn/questboard/questboard/services"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := questboard.LoadConfig(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	customHandler := logger.NewHandler(cfg.Log.Level)
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting QuestBoard API",
		slog.String("version", version),
		slog.String("commit", commit))

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(1)
	}
	defer db.Close()

	slog.Info("Database connected successfully",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema",
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("Database schema initialized successfully")

	questRepo := repositories.NewQuestRepository(db.BunDB())
	userRepo := repositories.NewUserRepository(db.BunDB())
	badgeRepo := repositories.NewBadgeRepository(db.BunDB())
	boardRepo := repositories.NewLeaderboardRepository(db.BunDB())

	badgeService := services.NewBadgeService(badgeRepo, questRepo)
	boardService := services.NewLeaderboardService(boardRepo)

	lifecycleOpts := []services.LifecycleOption{
		services.WithObserver(badgeService),
		services.WithObserver(boardService),
	}
	if cfg.Quests.DailyCount > 0 {
		lifecycleOpts = append(lifecycleOpts, services.WithDailyCount(cfg.Quests.DailyCount))
	}
	lifecycle := services.NewLifecycleManager(questRepo, userRepo, lifecycleOpts...)

	shareCards := services.NewShareCardService(lifecycle, userRepo)

	var storage *services.StorageService
	if cfg.Spaces.Key != "" {
		storage, err = services.NewStorageService(
			cfg.Spaces.Key,
			cfg.Spaces.Secret,
			cfg.Spaces.Region,
			cfg.Spaces.Bucket,
			cfg.Spaces.CardRoot,
		)
		if err != nil {
			slog.Error("Failed to initialize storage", slog.Any("error", err))
			os.Exit(1)
		}
	}

	webApp := &handlers.App{
		DB:          db,
		Lifecycle:   lifecycle,
		Badges:      badgeService,
		Leaderboard: boardService,
		Catalog:     services.NewCatalogService(nil),
		ShareCards:  shareCards,
		Storage:     storage,
		Version:     version,
	}

	app := fiber.New(fiber.Config{
		AppName:      "QuestBoard API",
		ServerHeader: "QuestBoard",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	app.Use(recover.New())
	app.Use(middleware.SecurityHeaders())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "http://localhost:3000,http://localhost:8080",
		AllowMethods: "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(middleware.LoggingMiddleware())

	handlers.SetupRoutes(app, webApp, cfg.Server.AuthToken)

	// Background sweep so abandoned quests disappear even for users who
	// never open the board again.
	sweepInterval := time.Duration(cfg.Quests.SweepInterval) * time.Minute
	if sweepInterval <= 0 {
		sweepInterval = time.Hour
	}
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if _, err := lifecycle.SweepStale(sweepCtx); err != nil {
					slog.Warn("Stale quest sweep failed", slog.Any("error", err))
				}
			}
		}
	}()

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	slog.Info("Starting server", slog.String("address", address))

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := app.Listen(address); err != nil {
			slog.Error("Failed to start server", slog.String("error", err.Error()))
			c <- syscall.SIGTERM
		}
	}()

	<-c
	slog.Info("Shutting down...")
	stopSweep()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("Server shutdown error", slog.String("error", err.Error()))
	}

	slog.Info("Shutdown complete")
}

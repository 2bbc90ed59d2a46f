package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/luminalearn/questboard/questboard"
	"github.com/luminalearn/questboard/questboard/database"
	"github.com/luminalearn/questboard/questboard/database/repositories"
	"github.com/luminalearn/questboard/questboard/logger"
	"github.com/luminalearn/questboard/questboard/migration"
	"github.com/luminalearn/questboard/questboard/services"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "questctl",
	Short: "maintenance tooling for the quest platform",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(slog.New(logger.NewHandler(slog.LevelInfo)))
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "create the schema and seed the quest template pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := connect(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.InitializeSchema(ctx); err != nil {
			slog.Error("Schema initialization failed", slog.Any("error", err))
			return err
		}

		slog.Info("Schema and templates ready")
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "import legacy profiles and quest history from MongoDB",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := questboard.LoadConfig(configPath)
		if err != nil {
			return err
		}

		db, err := connect(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		mongoCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		client, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			slog.Error("Failed to connect to MongoDB", slog.Any("error", err))
			return err
		}
		defer client.Disconnect(ctx)

		migrator := migration.NewMigrator(db.BunDB(), client, cfg.Mongo.Database)
		if batch, _ := cmd.Flags().GetInt("batch-size"); batch > 0 {
			migrator.SetBatchSize(batch)
		}

		if err := migrator.MigrateAll(ctx); err != nil {
			slog.Error("Legacy import failed", slog.Any("error", err))
			return err
		}

		slog.Info("Legacy import completed successfully")
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "delete stale incomplete quests for all users",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := connect(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		questRepo := repositories.NewQuestRepository(db.BunDB())
		userRepo := repositories.NewUserRepository(db.BunDB())
		lifecycle := services.NewLifecycleManager(questRepo, userRepo)

		deleted, err := lifecycle.SweepStale(ctx)
		if err != nil {
			return err
		}
		slog.Info("Sweep finished", slog.Int64("deleted", deleted))
		return nil
	},
}

func connect(ctx context.Context) (*database.DB, error) {
	cfg, err := questboard.LoadConfig(configPath)
	if err != nil {
		slog.Error("Failed to load config", slog.Any("error", err))
		return nil, err
	}

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Failed to connect to database", slog.Any("error", err))
		return nil, err
	}
	return db, nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "path to config")
	importCmd.Flags().Int("batch-size", 1000, "insert batch size")

	rootCmd.AddCommand(seedCmd, importCmd, sweepCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

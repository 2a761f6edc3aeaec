package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/andresuchdata/reorder-ai/internal/cache"
	"github.com/andresuchdata/reorder-ai/internal/config"
	"github.com/andresuchdata/reorder-ai/internal/ingest"
	"github.com/andresuchdata/reorder-ai/internal/pipeline"
	"github.com/andresuchdata/reorder-ai/internal/repository/postgres"
	"github.com/andresuchdata/reorder-ai/internal/service"
	"github.com/andresuchdata/reorder-ai/internal/storage"
	"github.com/andresuchdata/reorder-ai/pkg/logger"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/urfave/cli/v2"
)

type contextKey string

const envKey contextKey = "env"

// env holds what every command needs once the database is open.
type env struct {
	cfg     *config.Config
	sqlDB   *sql.DB
	db      *postgres.DB
	stores  *cache.Stores
	service *service.ForecastService
}

func itemFlag() *cli.Int64Flag {
	return &cli.Int64Flag{
		Name:     "item",
		Usage:    "Item ID",
		Required: true,
	}
}

func initEnv(c *cli.Context) error {
	cfg := config.Load()
	logger.SetLevel(c.String("log-level"))

	// Initialize database connection
	sqlDB, err := sql.Open("pgx", c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := sqlDB.PingContext(c.Context); err != nil {
		sqlDB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	stores, err := cache.NewStores(cfg.Cache)
	if err != nil {
		sqlDB.Close()
		return fmt.Errorf("failed to initialize model cache: %w", err)
	}

	db := postgres.FromSQL(sqlDB, "pgx")
	e := &env{
		cfg:    cfg,
		sqlDB:  sqlDB,
		db:     db,
		stores: stores,
		service: service.NewForecastService(
			postgres.NewItemRepository(db),
			postgres.NewSalesRepository(db),
			stores,
			cfg.Forecast.Engine(),
			service.WithTrainOnMiss(cfg.Forecast.TrainOnMiss),
		),
	}

	c.Context = context.WithValue(c.Context, envKey, e)
	return nil
}

func closeEnv(c *cli.Context) error {
	e, ok := c.Context.Value(envKey).(*env)
	if !ok || e == nil {
		return nil
	}
	if err := e.stores.Close(); err != nil {
		logger.Log.Warn().Err(err).Msg("failed to close cache")
	}
	return e.sqlDB.Close()
}

func envFrom(c *cli.Context) *env {
	return c.Context.Value(envKey).(*env)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	app := &cli.App{
		Name:  "forecast",
		Usage: "Train demand models and print reorder recommendations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "db-url",
				Usage:    "Database connection string",
				Required: true,
				EnvVars:  []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "train",
				Usage: "Train and store a model for one item",
				Flags: []cli.Flag{itemFlag()},
				Action: func(c *cli.Context) error {
					result, err := envFrom(c).service.Train(c.Context, c.Int64("item"))
					if err != nil {
						return err
					}
					return printJSON(result)
				},
			},
			{
				Name:  "forecast",
				Usage: "Forecast daily demand for one item",
				Flags: []cli.Flag{
					itemFlag(),
					&cli.IntFlag{Name: "days", Usage: "Forecast horizon in days", Value: 7},
				},
				Action: func(c *cli.Context) error {
					result, err := envFrom(c).service.Forecast(c.Context, c.Int64("item"), c.Int("days"))
					if err != nil {
						return err
					}
					return printJSON(result)
				},
			},
			{
				Name:  "recommend",
				Usage: "Print the reorder recommendation for one item",
				Flags: []cli.Flag{itemFlag()},
				Action: func(c *cli.Context) error {
					rec, err := envFrom(c).service.Recommend(c.Context, c.Int64("item"))
					if err != nil {
						return err
					}
					return printJSON(rec)
				},
			},
			{
				Name:  "suggestions",
				Usage: "Rank items that need a reorder",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Maximum suggestions to print (0 for all)"},
				},
				Action: func(c *cli.Context) error {
					suggestions, err := envFrom(c).service.RankRecommendations(c.Context)
					if err != nil {
						return err
					}
					if limit := c.Int("limit"); limit > 0 && limit < len(suggestions) {
						suggestions = suggestions[:limit]
					}
					return printJSON(suggestions)
				},
			},
			{
				Name:  "alerts",
				Usage: "Summarize current reorder alerts",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "top", Usage: "Number of top alerts to include", Value: 5},
				},
				Action: func(c *cli.Context) error {
					summary, err := envFrom(c).service.AlertSummary(c.Context, c.Int("top"))
					if err != nil {
						return err
					}
					return printJSON(summary)
				},
			},
			{
				Name:   "retrain",
				Usage:  "Retrain every item and archive the models when storage is enabled",
				Action: runRetrain,
			},
			{
				Name:   "warm",
				Usage:  "Load archived models into the model store",
				Action: runWarm,
			},
			{
				Name:  "import-sales",
				Usage: "Import sales history from a local file or Google Drive",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Usage: "Local CSV or XLSX file"},
					&cli.StringFlag{Name: "drive-file", Usage: "Google Drive file ID"},
					&cli.StringFlag{Name: "drive-folder", Usage: "Google Drive folder ID"},
				},
				Action: runImportSales,
			},
		},
	}

	// every command needs the database
	for _, cmd := range app.Commands {
		cmd.Before = initEnv
		cmd.After = closeEnv
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("command failed")
	}
}

func runRetrain(c *cli.Context) error {
	e := envFrom(c)

	var archiver pipeline.ModelArchiver
	if e.cfg.Storage.Enabled {
		archive, err := openArchive(c.Context, e.cfg.Storage)
		if err != nil {
			return err
		}
		archiver = archive
	}

	retrainConfig := pipeline.DefaultRetrainConfig()
	if e.cfg.Forecast.RetrainWorkers > 0 {
		retrainConfig.WorkerCount = e.cfg.Forecast.RetrainWorkers
	}

	worker := pipeline.NewRetrainWorker(postgres.NewItemRepository(e.db), e.service, archiver, retrainConfig)
	run, err := worker.Run(c.Context)
	if err != nil {
		return err
	}
	return printJSON(run)
}

func runWarm(c *cli.Context) error {
	e := envFrom(c)
	if !e.cfg.Storage.Enabled {
		return fmt.Errorf("storage is not enabled (set STORAGE_ENABLED=true)")
	}

	archive, err := openArchive(c.Context, e.cfg.Storage)
	if err != nil {
		return err
	}
	models, err := archive.LoadAll(c.Context)
	if err != nil {
		return err
	}

	warmed := make([]int64, 0, len(models))
	for _, model := range models {
		if err := e.service.WarmModel(c.Context, model); err != nil {
			return fmt.Errorf("failed to warm item %d: %w", model.ItemID, err)
		}
		warmed = append(warmed, model.ItemID)
	}
	return printJSON(map[string]interface{}{"warmed": len(warmed), "items": warmed})
}

func runImportSales(c *cli.Context) error {
	e := envFrom(c)

	var drive ingest.DriveFiles
	if c.IsSet("drive-file") || c.IsSet("drive-folder") {
		if e.cfg.Drive.CredentialsJSON == "" {
			return ingest.ErrDriveNotConfigured
		}
		driveService, err := ingest.NewService(c.Context, e.cfg.Drive.CredentialsJSON)
		if err != nil {
			return err
		}
		drive = driveService
	}
	importer := ingest.NewImporter(postgres.NewSalesRepository(e.db), drive, e.cfg.App.UploadDir)

	var (
		result *ingest.ImportResult
		err    error
	)
	switch {
	case c.String("file") != "":
		result, err = importer.ImportFile(c.Context, c.String("file"))
	case c.String("drive-file") != "":
		result, err = importer.ImportDriveFile(c.Context, c.String("drive-file"))
	case c.String("drive-folder") != "":
		result, err = importer.ImportDriveFolder(c.Context, c.String("drive-folder"))
	default:
		return fmt.Errorf("one of --file, --drive-file or --drive-folder is required")
	}
	if err != nil {
		return err
	}
	return printJSON(result)
}

func openArchive(ctx context.Context, cfg config.StorageConfig) (*storage.ModelArchive, error) {
	client, err := storage.NewMinioClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := client.EnsureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}
	return storage.NewModelArchive(client, cfg.Prefix), nil
}

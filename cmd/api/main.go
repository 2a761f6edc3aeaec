package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/reorder-ai/internal/api"
	"github.com/andresuchdata/reorder-ai/internal/cache"
	"github.com/andresuchdata/reorder-ai/internal/config"
	"github.com/andresuchdata/reorder-ai/internal/ingest"
	"github.com/andresuchdata/reorder-ai/internal/pipeline"
	"github.com/andresuchdata/reorder-ai/internal/repository/postgres"
	"github.com/andresuchdata/reorder-ai/internal/service"
	"github.com/andresuchdata/reorder-ai/internal/storage"
	"github.com/andresuchdata/reorder-ai/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetLevel(cfg.Server.LogLevel)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	stores, err := cache.NewStores(cfg.Cache)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize model cache")
	}
	defer stores.Close()

	// Initialize repositories and services
	items := postgres.NewItemRepository(db)
	sales := postgres.NewSalesRepository(db)
	forecastService := service.NewForecastService(items, sales, stores, cfg.Forecast.Engine(),
		service.WithTrainOnMiss(cfg.Forecast.TrainOnMiss),
	)

	var archiver pipeline.ModelArchiver
	if archive := newModelArchive(ctx, cfg.Storage); archive != nil {
		archiver = archive
		warmFromArchive(ctx, forecastService, archive)
	}

	retrainConfig := pipeline.DefaultRetrainConfig()
	if cfg.Forecast.RetrainWorkers > 0 {
		retrainConfig.WorkerCount = cfg.Forecast.RetrainWorkers
	}
	retrainWorker := pipeline.NewRetrainWorker(items, forecastService, archiver, retrainConfig)
	scheduler := pipeline.NewScheduler(retrainWorker, time.Duration(cfg.Forecast.RetrainIntervalMinutes)*time.Minute, nil)
	go scheduler.Start(ctx)

	var drive ingest.DriveFiles
	if cfg.Drive.CredentialsJSON != "" {
		driveService, err := ingest.NewService(ctx, cfg.Drive.CredentialsJSON)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to initialize Google Drive service")
		}
		drive = driveService
	}

	// Initialize HTTP server
	router := api.NewRouter(&api.Services{
		ForecastService: forecastService,
		RetrainWorker:   retrainWorker,
		Importer:        ingest.NewImporter(sales, drive, cfg.App.UploadDir),
	}, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-ctx.Done()
	logger.Log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
		os.Exit(1)
	}

	logger.Log.Info().Msg("Server exiting")
}

func newModelArchive(ctx context.Context, cfg config.StorageConfig) *storage.ModelArchive {
	if !cfg.Enabled {
		return nil
	}
	client, err := storage.NewMinioClient(cfg)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Model archive disabled")
		return nil
	}
	if err := client.EnsureBucket(ctx, cfg.Region); err != nil {
		logger.Log.Warn().Err(err).Msg("Model archive disabled")
		return nil
	}
	return storage.NewModelArchive(client, cfg.Prefix)
}

func warmFromArchive(ctx context.Context, svc *service.ForecastService, archive *storage.ModelArchive) {
	models, err := archive.LoadAll(ctx)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to load archived models")
		return
	}
	for _, model := range models {
		if err := svc.WarmModel(ctx, model); err != nil {
			logger.Log.Warn().Err(err).Int64("item_id", model.ItemID).Msg("Failed to warm model")
		}
	}
	logger.Log.Info().Int("models", len(models)).Msg("Model store warmed from archive")
}

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/reorder-ai/internal/api/handlers"
	"github.com/andresuchdata/reorder-ai/internal/api/middleware"
	"github.com/andresuchdata/reorder-ai/internal/ingest"
	"github.com/andresuchdata/reorder-ai/internal/pipeline"
	"github.com/andresuchdata/reorder-ai/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Services struct {
	ForecastService *service.ForecastService
	RetrainWorker   *pipeline.RetrainWorker
	Importer        *ingest.Importer
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", health)
	apiGroup := router.Group("/api/v1")
	apiGroup.GET("/health", health)

	if services != nil {
		if services.ForecastService != nil {
			forecastHandler := handlers.NewForecastHandler(services.ForecastService, services.RetrainWorker)
			forecastGroup := apiGroup.Group("/forecasting")
			{
				forecastGroup.POST("/items/:id/train", forecastHandler.Train)
				forecastGroup.GET("/items/:id/forecast", forecastHandler.Forecast)
				forecastGroup.GET("/items/:id/recommendation", forecastHandler.Recommendation)
				forecastGroup.GET("/items/:id/model", forecastHandler.ModelInfo)
				forecastGroup.GET("/suggestions", forecastHandler.Suggestions)
				forecastGroup.GET("/alerts/summary", forecastHandler.AlertSummary)
				forecastGroup.POST("/retrain", forecastHandler.Retrain)
			}
		}

		if services.Importer != nil {
			ingestHandler := handlers.NewIngestHandler(services.Importer)
			ingestGroup := apiGroup.Group("/ingest")
			{
				ingestGroup.GET("/files", ingestHandler.ListFiles)
				ingestGroup.POST("/sales", ingestHandler.ImportSales)
			}
		}
	}

	return router
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}

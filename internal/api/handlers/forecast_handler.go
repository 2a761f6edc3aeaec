package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/andresuchdata/reorder-ai/internal/domain"
	"github.com/andresuchdata/reorder-ai/internal/forecast"
	"github.com/andresuchdata/reorder-ai/internal/pipeline"
	"github.com/andresuchdata/reorder-ai/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type ForecastHandler struct {
	service *service.ForecastService
	retrain *pipeline.RetrainWorker
}

// NewForecastHandler creates the forecasting handler. retrain may be nil.
func NewForecastHandler(service *service.ForecastService, retrain *pipeline.RetrainWorker) *ForecastHandler {
	return &ForecastHandler{service: service, retrain: retrain}
}

func (h *ForecastHandler) Train(c *gin.Context) {
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	result, err := h.service.Train(c.Request.Context(), itemID)
	if err != nil {
		respondError(c, err, "failed to train model")
		return
	}
	if !result.Success {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ForecastHandler) Forecast(c *gin.Context) {
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	days := 0
	if raw := strings.TrimSpace(c.Query("days")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > service.MaxHorizonDays {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 365"})
			return
		}
		days = n
	}

	result, err := h.service.Forecast(c.Request.Context(), itemID, days)
	if err != nil {
		respondError(c, err, "failed to forecast demand")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ForecastHandler) Recommendation(c *gin.Context) {
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	rec, err := h.service.Recommend(c.Request.Context(), itemID)
	if err != nil {
		respondError(c, err, "failed to build recommendation")
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *ForecastHandler) ModelInfo(c *gin.Context) {
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	info, found, err := h.service.ModelInfo(c.Request.Context(), itemID)
	if err != nil {
		respondError(c, err, "failed to fetch model info")
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no trained model for item"})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *ForecastHandler) Suggestions(c *gin.Context) {
	suggestions, err := h.service.RankRecommendations(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to rank suggestions")
		return
	}

	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "0")); err == nil && limit > 0 && limit < len(suggestions) {
		suggestions = suggestions[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"suggestions": suggestions,
		"total":       len(suggestions),
	})
}

func (h *ForecastHandler) AlertSummary(c *gin.Context) {
	top, _ := strconv.Atoi(c.DefaultQuery("top", "0"))

	summary, err := h.service.AlertSummary(c.Request.Context(), top)
	if err != nil {
		respondError(c, err, "failed to summarize alerts")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Retrain runs a synchronous retrain over all items, or the comma-separated
// item_ids when given.
func (h *ForecastHandler) Retrain(c *gin.Context) {
	if h.retrain == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "retraining is not enabled"})
		return
	}

	var ids []int64
	if raw := strings.TrimSpace(c.Query("item_ids")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil || id <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item_ids"})
				return
			}
			ids = append(ids, id)
		}
	}

	run, err := h.retrain.Run(c.Request.Context(), ids...)
	if err != nil {
		log.Error().Err(err).Msg("retrain run failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "retrain failed", "details": err.Error(), "run": run})
		return
	}
	c.JSON(http.StatusOK, run)
}

func itemIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return 0, false
	}
	return id, true
}

func respondError(c *gin.Context, err error, message string) {
	switch kind := domain.FailureKindOf(err); {
	case errors.Is(err, domain.ErrEntityNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
	case errors.Is(err, forecast.ErrInvalidHorizon):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case kind == domain.FailureInsufficientData || kind == domain.FailureFit || kind == domain.FailureModelNotTrained:
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success":       false,
			"fallback_used": true,
			"failure":       kind,
			"error":         err.Error(),
		})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg(message)
		c.JSON(http.StatusInternalServerError, gin.H{"error": message, "details": err.Error()})
	}
}

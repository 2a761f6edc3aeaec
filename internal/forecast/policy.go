package forecast

import (
	"math"

	"github.com/andresuchdata/reorder-ai/internal/domain"
)

// Recommend turns an item's stock position and its lead-time forecast into a
// reorder decision. When forecastErr is set, or no forecast is given, the
// decision falls back to the static reorder level.
func Recommend(item domain.Item, fc *ForecastResult, forecastErr error, cfg PolicyConfig) domain.ReorderRecommendation {
	if forecastErr != nil || fc == nil {
		if forecastErr == nil {
			forecastErr = domain.ErrModelNotTrained
		}
		return fallbackRecommendation(item, forecastErr, cfg)
	}

	lead := item.EffectiveLeadTime()
	stock := float64(item.Quantity)

	predicted := fc.totalDemand()
	avgDaily := fc.averageDailyDemand()
	accuracy := fc.modelAccuracy()
	safety := predicted * cfg.SafetyBufferRatio
	stockNeeded := predicted + safety
	shortage := math.Max(0, stockNeeded-stock)

	daysLeft := domain.Days(math.Inf(1))
	if avgDaily > 0 {
		daysLeft = domain.Days(stock / avgDaily)
	}

	needsReorder := stock < stockNeeded || float64(daysLeft) < float64(lead) || item.Quantity == 0

	var urgency domain.Urgency
	switch {
	case item.Quantity == 0:
		urgency = domain.UrgencyCritical
	case float64(daysLeft) < float64(lead):
		urgency = domain.UrgencyHigh
	case shortage > 0:
		urgency = domain.UrgencyMedium
	default:
		urgency = domain.UrgencyLow
	}

	suggested := 0
	if needsReorder {
		suggested = int(math.Round(shortage + predicted*cfg.CycleStockRatio))
	}

	confidence := domain.ConfidenceMedium
	if accuracy > cfg.HighConfidenceAccuracy {
		confidence = domain.ConfidenceHigh
	}

	return domain.ReorderRecommendation{
		ItemID:             item.ID,
		NeedsReorder:       needsReorder,
		Urgency:            urgency,
		AIPowered:          true,
		CurrentStock:       item.Quantity,
		PredictedDemand:    round2(predicted),
		StockNeeded:        round2(stockNeeded),
		ShortageRisk:       round2(shortage),
		DaysUntilStockout:  daysLeft,
		SuggestedQuantity:  suggested,
		Confidence:         confidence,
		ModelAccuracy:      round2(accuracy),
		AverageDailyDemand: round2(avgDaily),
		SafetyBuffer:       round2(safety),
		ForecastPeriodDays: lead,
	}
}

// fallbackRecommendation decides from the reorder level alone. With no forecast
// there is no demand estimate, so the demand-derived figures stay zero.
func fallbackRecommendation(item domain.Item, cause error, cfg PolicyConfig) domain.ReorderRecommendation {
	qty := item.Quantity
	belowLevel := qty <= item.ReorderLevel

	urgency := domain.UrgencyLow
	switch {
	case qty == 0:
		urgency = domain.UrgencyCritical
	case belowLevel:
		urgency = domain.UrgencyHigh
	}

	suggested := 0
	if belowLevel {
		suggested = item.ReorderLevel - qty + cfg.FallbackOrderPadding
		if suggested < 0 {
			suggested = 0
		}
	}

	return domain.ReorderRecommendation{
		ItemID:             item.ID,
		NeedsReorder:       belowLevel || qty == 0,
		Urgency:            urgency,
		AIPowered:          false,
		CurrentStock:       qty,
		DaysUntilStockout:  domain.Days(math.Inf(1)),
		SuggestedQuantity:  suggested,
		Confidence:         domain.ConfidenceLow,
		ForecastPeriodDays: item.EffectiveLeadTime(),
		FallbackKind:       domain.FailureKindOf(cause),
		FallbackError:      cause.Error(),
	}
}

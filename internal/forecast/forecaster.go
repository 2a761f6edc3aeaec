package forecast

import (
	"errors"
	"math"
	"time"

	"github.com/andresuchdata/reorder-ai/internal/domain"
)

// ErrInvalidHorizon is returned for a non-positive forecast horizon
var ErrInvalidHorizon = errors.New("forecast horizon must be positive")

// Prediction is the demand forecast for a single future day
type Prediction struct {
	Date            string  `json:"date"`
	PredictedDemand float64 `json:"predicted_demand"`
	Weekday         string  `json:"weekday"`
	IsWeekend       bool    `json:"is_weekend"`
}

// Summary aggregates a forecast horizon
type Summary struct {
	TotalPredictedDemand float64 `json:"total_predicted_demand"`
	AverageDailyDemand   float64 `json:"average_daily_demand"`
	ModelAccuracy        float64 `json:"model_accuracy"`
	HorizonDays          int     `json:"horizon_days"`
}

// ForecastResult holds the per-day forecast of an item
type ForecastResult struct {
	ItemID      int64        `json:"item_id"`
	Predictions []Prediction `json:"predictions"`
	Summary     Summary      `json:"summary"`
	PredictedAt time.Time    `json:"predicted_at"`

	// unrounded summary values; zero when the result was decoded from a cache
	exactTotal    float64
	exactAccuracy float64
}

// totalDemand returns the horizon demand before output rounding
func (r *ForecastResult) totalDemand() float64 {
	if r.exactTotal != 0 {
		return r.exactTotal
	}
	return r.Summary.TotalPredictedDemand
}

// averageDailyDemand returns totalDemand spread over the horizon
func (r *ForecastResult) averageDailyDemand() float64 {
	if r.exactTotal == 0 || r.Summary.HorizonDays <= 0 {
		return r.Summary.AverageDailyDemand
	}
	return r.exactTotal / float64(r.Summary.HorizonDays)
}

// modelAccuracy returns the accuracy of the model behind the forecast before
// output rounding
func (r *ForecastResult) modelAccuracy() float64 {
	if r.exactAccuracy != 0 {
		return r.exactAccuracy
	}
	return r.Summary.ModelAccuracy
}

// Project forecasts the horizon days following now's date. Future days continue
// the training time axis, so day i sits at days_since_start = window-1+i.
func Project(model *TrainedModel, now time.Time, horizon int) (*ForecastResult, error) {
	if horizon <= 0 {
		return nil, ErrInvalidHorizon
	}
	if model == nil {
		return nil, domain.ErrModelNotTrained
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}

	today := startOfDay(now)
	result := &ForecastResult{
		ItemID:      model.ItemID,
		Predictions: make([]Prediction, 0, horizon),
		PredictedAt: now,
	}

	var total float64
	for i := 1; i <= horizon; i++ {
		date := time.Date(today.Year(), today.Month(), today.Day()+i, 0, 0, 0, 0, today.Location())
		row := calendarRow(date, model.WindowDays-1+i)

		raw := model.Regression.Predict(model.Scaler.TransformRow(row.Vector()))
		demand := math.Max(0, round2(raw))
		total += demand

		result.Predictions = append(result.Predictions, Prediction{
			Date:            date.Format("2006-01-02"),
			PredictedDemand: demand,
			Weekday:         date.Weekday().String(),
			IsWeekend:       row.IsWeekend,
		})
	}

	result.exactTotal = total
	result.exactAccuracy = model.Metrics.Accuracy
	result.Summary = Summary{
		TotalPredictedDemand: round2(total),
		AverageDailyDemand:   round2(total / float64(horizon)),
		ModelAccuracy:        round2(model.Metrics.Accuracy),
		HorizonDays:          horizon,
	}

	return result, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

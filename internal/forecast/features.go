// Package forecast turns sales history into per-item demand models, forecasts
// and reorder recommendations. Everything here is pure; persistence and caching
// live in the service layer.
package forecast

import (
	"time"

	"github.com/andresuchdata/reorder-ai/internal/domain"
)

// FeatureNames lists the model inputs in column order
var FeatureNames = []string{
	"day_of_week",
	"day_of_month",
	"month",
	"days_since_start",
	"is_weekend",
	"is_month_start",
	"is_month_end",
}

// FeatureRow is one calendar day of engineered features plus its label
type FeatureRow struct {
	Date           time.Time `json:"date"`
	DayOfWeek      int       `json:"day_of_week"` // 0=Monday .. 6=Sunday
	DayOfMonth     int       `json:"day_of_month"`
	Month          int       `json:"month"`
	DaysSinceStart int       `json:"days_since_start"`
	IsWeekend      bool      `json:"is_weekend"`
	IsMonthStart   bool      `json:"is_month_start"`
	IsMonthEnd     bool      `json:"is_month_end"`
	UnitsSold      float64   `json:"units_sold"`
}

// Vector returns the features in FeatureNames order
func (r FeatureRow) Vector() []float64 {
	return []float64{
		float64(r.DayOfWeek),
		float64(r.DayOfMonth),
		float64(r.Month),
		float64(r.DaysSinceStart),
		boolToFloat(r.IsWeekend),
		boolToFloat(r.IsMonthStart),
		boolToFloat(r.IsMonthEnd),
	}
}

func calendarRow(date time.Time, index int) FeatureRow {
	dow := (int(date.Weekday()) + 6) % 7
	day := date.Day()
	return FeatureRow{
		Date:           date,
		DayOfWeek:      dow,
		DayOfMonth:     day,
		Month:          int(date.Month()),
		DaysSinceStart: index,
		IsWeekend:      dow >= 5,
		IsMonthStart:   day <= 7,
		IsMonthEnd:     day >= 24,
	}
}

// BuildFeatures buckets confirmed sales into one row per calendar day of the
// window ending on now's date. Days without sales are emitted with zero units.
func BuildFeatures(events []domain.SaleEvent, now time.Time, cfg Config) ([]FeatureRow, error) {
	rows, _, err := buildFeatures(events, now, cfg.withDefaults())
	return rows, err
}

// buildFeatures also reports how many confirmed sale events fell in the window.
func buildFeatures(events []domain.SaleEvent, now time.Time, cfg Config) ([]FeatureRow, int, error) {
	loc := now.Location()
	start := startOfDay(now).AddDate(0, 0, -(cfg.WindowDays - 1))

	daily := make(map[string]float64)
	count := 0
	for _, ev := range events {
		if !ev.PaymentConfirmed || ev.Quantity <= 0 {
			continue
		}
		ts := ev.Timestamp.In(loc)
		if ts.Before(start) || ts.After(now) {
			continue
		}
		daily[dayKey(ts)] += float64(ev.Quantity)
		count++
	}

	if count < cfg.MinSaleEvents || len(daily) < cfg.MinPopulatedDays {
		return nil, count, &domain.InsufficientDataError{
			Events:           count,
			MinEvents:        cfg.MinSaleEvents,
			PopulatedDays:    len(daily),
			MinPopulatedDays: cfg.MinPopulatedDays,
			MinRows:          cfg.MinTrainingRows,
		}
	}

	rows := make([]FeatureRow, cfg.WindowDays)
	for i := range rows {
		date := time.Date(start.Year(), start.Month(), start.Day()+i, 0, 0, 0, 0, loc)
		row := calendarRow(date, i)
		row.UnitsSold = daily[dayKey(date)]
		rows[i] = row
	}

	return rows, count, nil
}

// Matrix splits rows into the aligned feature matrix and label vector
func Matrix(rows []FeatureRow) ([][]float64, []float64) {
	X := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		X[i] = r.Vector()
		y[i] = r.UnitsSold
	}
	return X, y
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

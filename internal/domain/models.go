// internal/domain/models.go
package domain

import (
	"encoding/json"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Item represents a stocked product the engine forecasts for
type Item struct {
	ID           int64           `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	Quantity     int             `json:"quantity" db:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price" db:"unit_price"`
	ReorderLevel int             `json:"reorder_level" db:"reorder_level"`
	LeadTimeDays int             `json:"lead_time_days" db:"lead_time_days"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// EffectiveLeadTime returns the lead time in days, never below one.
func (i Item) EffectiveLeadTime() int {
	if i.LeadTimeDays < 1 {
		return 1
	}
	return i.LeadTimeDays
}

// SaleEvent represents a single sale transaction for an item
type SaleEvent struct {
	ID               int64     `json:"id" db:"id"`
	ItemID           int64     `json:"item_id" db:"item_id"`
	Quantity         int       `json:"quantity" db:"quantity"`
	Timestamp        time.Time `json:"timestamp" db:"timestamp"`
	PaymentConfirmed bool      `json:"payment_confirmed" db:"payment_confirmed"`
}

// Days is a day count that may be unbounded. +Inf encodes as JSON null.
type Days float64

// Unbounded reports whether the value is infinite.
func (d Days) Unbounded() bool {
	return math.IsInf(float64(d), 1)
}

func (d Days) MarshalJSON() ([]byte, error) {
	if d.Unbounded() || math.IsNaN(float64(d)) {
		return []byte("null"), nil
	}
	return json.Marshal(math.Round(float64(d)*100) / 100)
}

func (d *Days) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Days(math.Inf(1))
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*d = Days(v)
	return nil
}

// ReorderRecommendation is the decision produced for a single item
type ReorderRecommendation struct {
	ItemID             int64       `json:"item_id"`
	NeedsReorder       bool        `json:"needs_reorder"`
	Urgency            Urgency     `json:"urgency"`
	AIPowered          bool        `json:"ai_powered"`
	CurrentStock       int         `json:"current_stock"`
	PredictedDemand    float64     `json:"predicted_demand"`
	StockNeeded        float64     `json:"stock_needed"`
	ShortageRisk       float64     `json:"shortage_risk"`
	DaysUntilStockout  Days        `json:"days_until_stockout"`
	SuggestedQuantity  int         `json:"suggested_quantity"`
	Confidence         string      `json:"confidence"`
	ModelAccuracy      float64     `json:"model_accuracy,omitempty"`
	AverageDailyDemand float64     `json:"average_daily_demand,omitempty"`
	SafetyBuffer       float64     `json:"safety_buffer,omitempty"`
	ForecastPeriodDays int         `json:"forecast_period_days"`
	FallbackKind       FailureKind `json:"fallback_kind,omitempty"`
	FallbackError      string      `json:"fallback_error,omitempty"`
}

// Suggestion pairs an item with its recommendation
type Suggestion struct {
	Item           Item                  `json:"item"`
	Recommendation ReorderRecommendation `json:"recommendation"`
}

// ReorderValue is the suggested quantity priced at the item's unit price.
func (s Suggestion) ReorderValue() decimal.Decimal {
	return s.Item.UnitPrice.Mul(decimal.NewFromInt(int64(s.Recommendation.SuggestedQuantity)))
}

// AlertSummary aggregates ranked suggestions for notification surfaces
type AlertSummary struct {
	TotalAlerts      int             `json:"total_alerts"`
	CriticalCount    int             `json:"critical_count"`
	HighCount        int             `json:"high_count"`
	MediumCount      int             `json:"medium_count"`
	AIPoweredCount   int             `json:"ai_powered_count"`
	TotalItems       int             `json:"total_items"`
	AICoverage       float64         `json:"ai_coverage"`
	HasCritical      bool            `json:"has_critical"`
	HasHigh          bool            `json:"has_high"`
	TotalReorderCost decimal.Decimal `json:"total_reorder_cost"`
	TopAlerts        []Suggestion    `json:"top_alerts"`
}

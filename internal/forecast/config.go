package forecast

// Config holds the tunables of the training and forecasting core
type Config struct {
	WindowDays         int     // History window length in calendar days
	DefaultHorizonDays int     // Forecast horizon when the caller gives none
	MinSaleEvents      int     // Minimum confirmed sale events in the window
	MinPopulatedDays   int     // Minimum distinct days with at least one sale
	MinTrainingRows    int     // Minimum feature rows before a split is attempted
	TestRatio          float64 // Share of rows held out for validation
	RefitFullWindow    bool    // Refit the served model on the whole window after validation
	Policy             PolicyConfig
}

// PolicyConfig holds the ratios used by the reorder policy
type PolicyConfig struct {
	SafetyBufferRatio      float64 // Safety stock as a share of predicted demand
	CycleStockRatio        float64 // Extra share of predicted demand added to an order
	FallbackOrderPadding   int     // Units added above the reorder level when no forecast exists
	HighConfidenceAccuracy float64 // Accuracy above which confidence is "high"
}

// DefaultConfig returns the stock tuning
func DefaultConfig() Config {
	return Config{
		WindowDays:         90,
		DefaultHorizonDays: 7,
		MinSaleEvents:      7,
		MinPopulatedDays:   14,
		MinTrainingRows:    10,
		TestRatio:          0.2,
		RefitFullWindow:    true,
		Policy:             DefaultPolicyConfig(),
	}
}

// DefaultPolicyConfig returns the stock policy ratios
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		SafetyBufferRatio:      0.2,
		CycleStockRatio:        0.5,
		FallbackOrderPadding:   10,
		HighConfidenceAccuracy: 70,
	}
}

// withDefaults fills zero values so a partially populated Config stays usable.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WindowDays <= 0 {
		c.WindowDays = d.WindowDays
	}
	if c.DefaultHorizonDays <= 0 {
		c.DefaultHorizonDays = d.DefaultHorizonDays
	}
	if c.MinSaleEvents <= 0 {
		c.MinSaleEvents = d.MinSaleEvents
	}
	if c.MinPopulatedDays <= 0 {
		c.MinPopulatedDays = d.MinPopulatedDays
	}
	if c.MinTrainingRows <= 0 {
		c.MinTrainingRows = d.MinTrainingRows
	}
	if c.TestRatio <= 0 || c.TestRatio >= 1 {
		c.TestRatio = d.TestRatio
	}
	return c
}

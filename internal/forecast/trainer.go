package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/andresuchdata/reorder-ai/internal/domain"
	"gonum.org/v1/gonum/stat"
)

const (
	ModelTypeLinear = "linear regression"

	// splitSeed is recorded for provenance only; the split is chronological.
	splitSeed = 42
)

// FeatureCoefficient pairs a feature with its fitted weight on the scaled axis
type FeatureCoefficient struct {
	Feature     string  `json:"feature"`
	Coefficient float64 `json:"coefficient"`
}

// Metrics describes the holdout validation of a trained model
type Metrics struct {
	MAE             float64              `json:"mae"`
	MSE             float64              `json:"mse"`
	RMSE            float64              `json:"rmse"`
	Accuracy        float64              `json:"accuracy"`
	TrainingSamples int                  `json:"training_samples"`
	TestSamples     int                  `json:"test_samples"`
	SplitSeed       int                  `json:"split_seed"`
	RefitFullWindow bool                 `json:"refit_full_window"`
	Coefficients    []FeatureCoefficient `json:"coefficients"`
	TrainedAt       time.Time            `json:"trained_at"`
}

// TrainedModel is everything needed to forecast an item without its history
type TrainedModel struct {
	ItemID     int64            `json:"item_id"`
	ModelType  string           `json:"model_type"`
	Features   []string         `json:"features"`
	WindowDays int              `json:"window_days"`
	Scaler     StandardScaler   `json:"scaler"`
	Regression LinearRegression `json:"regression"`
	Metrics    Metrics          `json:"metrics"`
}

// ErrMalformedModel is returned for a model whose parameters do not fit its features
var ErrMalformedModel = errors.New("malformed model")

// Validate checks that the fitted parameters line up with the feature list, so
// a corrupt snapshot is rejected before it reaches Project.
func (m *TrainedModel) Validate() error {
	n := len(m.Features)
	switch {
	case n != len(FeatureNames):
		return fmt.Errorf("%w: item %d has %d features, want %d", ErrMalformedModel, m.ItemID, n, len(FeatureNames))
	case len(m.Regression.Coefficients) != n:
		return fmt.Errorf("%w: item %d has %d coefficients for %d features", ErrMalformedModel, m.ItemID, len(m.Regression.Coefficients), n)
	case len(m.Scaler.Mean) != n || len(m.Scaler.Scale) != n:
		return fmt.Errorf("%w: item %d scaler covers %d/%d of %d features", ErrMalformedModel, m.ItemID, len(m.Scaler.Mean), len(m.Scaler.Scale), n)
	}
	for j, v := range m.Scaler.Scale {
		if v == 0 || !finite(v) {
			return fmt.Errorf("%w: item %d scale %d is %v", ErrMalformedModel, m.ItemID, j, v)
		}
	}
	if !finite(m.Regression.Intercept) || !allFinite(m.Regression.Coefficients) || !allFinite(m.Scaler.Mean) {
		return fmt.Errorf("%w: item %d has non-finite parameters", ErrMalformedModel, m.ItemID)
	}
	return nil
}

// ModelInfo is the externally visible snapshot of a trained model
type ModelInfo struct {
	ItemID     int64    `json:"item_id"`
	ModelType  string   `json:"model_type"`
	Features   []string `json:"features"`
	WindowDays int      `json:"window_days"`
	Metrics    Metrics  `json:"metrics"`
}

// Info returns the model's metadata without its fitted parameters
func (m *TrainedModel) Info() ModelInfo {
	return ModelInfo{
		ItemID:     m.ItemID,
		ModelType:  m.ModelType,
		Features:   m.Features,
		WindowDays: m.WindowDays,
		Metrics:    m.Metrics,
	}
}

// Train fits a demand model for one item. Accuracy metrics always come from a
// chronological holdout; with RefitFullWindow the served model is then refit
// on every row of the window.
func Train(itemID int64, events []domain.SaleEvent, now time.Time, cfg Config) (*TrainedModel, error) {
	cfg = cfg.withDefaults()

	rows, sales, err := buildFeatures(events, now, cfg)
	if err != nil {
		return nil, err
	}
	if len(rows) < cfg.MinTrainingRows {
		return nil, tooFewRows(rows, sales, cfg)
	}

	X, y := Matrix(rows)
	n := len(rows)
	nTest := int(math.Ceil(float64(n)*cfg.TestRatio - 1e-9))
	if nTest < 1 {
		nTest = 1
	}
	nTrain := n - nTest
	if nTrain < 2 {
		return nil, tooFewRows(rows, sales, cfg)
	}

	xTrain, xTest := X[:nTrain], X[nTrain:]
	yTrain, yTest := y[:nTrain], y[nTrain:]

	scaler := FitScaler(xTrain)
	reg, err := FitLinearRegression(scaler.Transform(xTrain), yTrain)
	if err != nil {
		return nil, &domain.FitFailureError{Err: err}
	}

	metrics := evaluate(reg, scaler.Transform(xTest), yTest)
	if !finite(metrics.MAE) || !finite(metrics.MSE) || !finite(metrics.Accuracy) {
		return nil, &domain.FitFailureError{Err: errNonFinite}
	}
	metrics.TrainingSamples = nTrain
	metrics.TestSamples = nTest
	metrics.SplitSeed = splitSeed
	metrics.TrainedAt = now

	if cfg.RefitFullWindow {
		scaler = FitScaler(X)
		reg, err = FitLinearRegression(scaler.Transform(X), y)
		if err != nil {
			return nil, &domain.FitFailureError{Err: err}
		}
		metrics.RefitFullWindow = true
	}

	metrics.Coefficients = make([]FeatureCoefficient, len(FeatureNames))
	for i, name := range FeatureNames {
		metrics.Coefficients[i] = FeatureCoefficient{Feature: name, Coefficient: reg.Coefficients[i]}
	}

	return &TrainedModel{
		ItemID:     itemID,
		ModelType:  ModelTypeLinear,
		Features:   append([]string(nil), FeatureNames...),
		WindowDays: cfg.WindowDays,
		Scaler:     scaler,
		Regression: reg,
		Metrics:    metrics,
	}, nil
}

func evaluate(reg LinearRegression, X [][]float64, y []float64) Metrics {
	absErr := make([]float64, len(y))
	sqErr := make([]float64, len(y))
	for i, row := range X {
		d := y[i] - reg.Predict(row)
		absErr[i] = math.Abs(d)
		sqErr[i] = d * d
	}
	mae := stat.Mean(absErr, nil)
	mse := stat.Mean(sqErr, nil)
	mean := stat.Mean(y, nil)

	return Metrics{
		MAE:      mae,
		MSE:      mse,
		RMSE:     math.Sqrt(mse),
		Accuracy: math.Max(0, 100-(mae/(mean+0.001))*100),
	}
}

func tooFewRows(rows []FeatureRow, sales int, cfg Config) *domain.InsufficientDataError {
	populated := 0
	for _, r := range rows {
		if r.UnitsSold > 0 {
			populated++
		}
	}
	return &domain.InsufficientDataError{
		Events:           sales,
		MinEvents:        cfg.MinSaleEvents,
		PopulatedDays:    populated,
		MinPopulatedDays: cfg.MinPopulatedDays,
		Rows:             len(rows),
		MinRows:          cfg.MinTrainingRows,
	}
}

// TrainingResult is the outcome of a training request as reported to callers
type TrainingResult struct {
	ItemID       int64              `json:"item_id"`
	Success      bool               `json:"success"`
	ModelType    string             `json:"model_type,omitempty"`
	FeaturesUsed []string           `json:"features_used,omitempty"`
	Metrics      *Metrics           `json:"metrics,omitempty"`
	Failure      domain.FailureKind `json:"failure,omitempty"`
	Error        string             `json:"error,omitempty"`
	MinRequired  *int               `json:"min_required,omitempty"`
	Available    *int               `json:"available,omitempty"`
}

// NewTrainingResult reports a successful model or the reason training failed
func NewTrainingResult(itemID int64, model *TrainedModel, err error) TrainingResult {
	if err == nil && model != nil {
		metrics := model.Metrics
		return TrainingResult{
			ItemID:       itemID,
			Success:      true,
			ModelType:    model.ModelType,
			FeaturesUsed: model.Features,
			Metrics:      &metrics,
		}
	}

	res := TrainingResult{
		ItemID:  itemID,
		Failure: domain.FailureKindOf(err),
	}
	if err != nil {
		res.Error = err.Error()
	}
	if insufficient, ok := asInsufficient(err); ok {
		minReq, avail := insufficient.MinRequired(), insufficient.Available()
		res.MinRequired = &minReq
		res.Available = &avail
	}
	return res
}

func asInsufficient(err error) (*domain.InsufficientDataError, bool) {
	var insufficient *domain.InsufficientDataError
	if errors.As(err, &insufficient) {
		return insufficient, true
	}
	return nil, false
}

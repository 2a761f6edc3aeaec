package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEntityNotFound is returned when the requested item does not exist.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrModelNotTrained is returned when no model is cached and inline training is disabled.
	ErrModelNotTrained = errors.New("model not trained")
)

// InsufficientDataError reports that the sales history cannot support a fit.
type InsufficientDataError struct {
	Events           int
	MinEvents        int
	PopulatedDays    int
	MinPopulatedDays int
	Rows             int
	MinRows          int
}

func (e *InsufficientDataError) Error() string {
	switch {
	case e.Events < e.MinEvents:
		return fmt.Sprintf("insufficient data: %d sale events, need at least %d", e.Events, e.MinEvents)
	case e.PopulatedDays < e.MinPopulatedDays:
		return fmt.Sprintf("insufficient data: %d days with sales, need at least %d", e.PopulatedDays, e.MinPopulatedDays)
	default:
		return fmt.Sprintf("insufficient data: %d training rows, need at least %d", e.Rows, e.MinRows)
	}
}

// MinRequired returns the threshold of the first check that failed.
func (e *InsufficientDataError) MinRequired() int {
	switch {
	case e.Events < e.MinEvents:
		return e.MinEvents
	case e.PopulatedDays < e.MinPopulatedDays:
		return e.MinPopulatedDays
	default:
		return e.MinRows
	}
}

// Available returns the observed count of the first check that failed.
func (e *InsufficientDataError) Available() int {
	switch {
	case e.Events < e.MinEvents:
		return e.Events
	case e.PopulatedDays < e.MinPopulatedDays:
		return e.PopulatedDays
	default:
		return e.Rows
	}
}

// FitFailureError wraps a numerical failure during model fitting.
type FitFailureError struct {
	Err error
}

func (e *FitFailureError) Error() string {
	return fmt.Sprintf("model fit failed: %v", e.Err)
}

func (e *FitFailureError) Unwrap() error {
	return e.Err
}

// FailureKind names the reason a forecast could not be produced.
type FailureKind string

const (
	FailureInsufficientData FailureKind = "insufficient_data"
	FailureFit              FailureKind = "fit_failure"
	FailureModelNotTrained  FailureKind = "model_not_trained"
	FailureNotFound         FailureKind = "not_found"
	FailureUnexpected       FailureKind = "unexpected"
)

// FailureKindOf classifies a forecast error. A nil error yields an empty kind.
func FailureKindOf(err error) FailureKind {
	if err == nil {
		return ""
	}

	var insufficient *InsufficientDataError
	var fit *FitFailureError
	switch {
	case errors.As(err, &insufficient):
		return FailureInsufficientData
	case errors.As(err, &fit):
		return FailureFit
	case errors.Is(err, ErrModelNotTrained):
		return FailureModelNotTrained
	case errors.Is(err, ErrEntityNotFound):
		return FailureNotFound
	default:
		return FailureUnexpected
	}
}

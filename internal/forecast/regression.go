package forecast

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// rankTolerance is relative to the largest singular value of the centered design.
const rankTolerance = 1e-10

var (
	errEmptyDesign   = errors.New("empty design matrix")
	errShapeMismatch = errors.New("feature and label lengths differ")
	errNonFinite     = errors.New("non-finite value in fit")
	errNoVariance    = errors.New("no feature carries variance")
	errNoConverge    = errors.New("singular value decomposition did not converge")
)

// LinearRegression is an ordinary least squares model with intercept
type LinearRegression struct {
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

// FitLinearRegression solves least squares on the centered design through a
// thin SVD. Rank-deficient designs get the minimum-norm solution, so constant
// columns end with a zero coefficient and collinear ones share the weight.
func FitLinearRegression(X [][]float64, y []float64) (LinearRegression, error) {
	n := len(X)
	if n == 0 || len(X[0]) == 0 {
		return LinearRegression{}, errEmptyDesign
	}
	if len(y) != n {
		return LinearRegression{}, errShapeMismatch
	}
	m := len(X[0])
	design := mat.NewDense(n, m, nil)
	for i, row := range X {
		if len(row) != m {
			return LinearRegression{}, errShapeMismatch
		}
		if !allFinite(row) || !finite(y[i]) {
			return LinearRegression{}, fmt.Errorf("row %d: %w", i, errNonFinite)
		}
		design.SetRow(i, row)
	}

	xMean := make([]float64, m)
	col := make([]float64, n)
	for j := 0; j < m; j++ {
		mat.Col(col, j, design)
		xMean[j] = stat.Mean(col, nil)
		floats.AddConst(-xMean[j], col)
		design.SetCol(j, col)
	}
	yMean := stat.Mean(y, nil)
	target := mat.NewVecDense(n, nil)
	for i, v := range y {
		target.SetVec(i, v-yMean)
	}

	var svd mat.SVD
	if !svd.Factorize(design, mat.SVDThin) {
		return LinearRegression{}, errNoConverge
	}

	model := LinearRegression{Coefficients: make([]float64, m), Intercept: yMean}
	rank := svd.Rank(rankTolerance)
	if rank == 0 {
		if !allEqual(y) {
			return LinearRegression{}, errNoVariance
		}
		return model, nil
	}

	var coef mat.VecDense
	svd.SolveVecTo(&coef, target, rank)
	for j := range model.Coefficients {
		model.Coefficients[j] = coef.AtVec(j)
	}
	model.Intercept -= floats.Dot(model.Coefficients, xMean)

	if !finite(model.Intercept) {
		return LinearRegression{}, fmt.Errorf("intercept: %w", errNonFinite)
	}
	for j, c := range model.Coefficients {
		if !finite(c) {
			return LinearRegression{}, fmt.Errorf("coefficient %d: %w", j, errNonFinite)
		}
	}

	return model, nil
}

// Predict evaluates the model on one feature vector
func (m LinearRegression) Predict(row []float64) float64 {
	return m.Intercept + floats.Dot(m.Coefficients, row)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if !finite(x) {
			return false
		}
	}
	return true
}

func allEqual(v []float64) bool {
	for _, x := range v[1:] {
		if x != v[0] {
			return false
		}
	}
	return true
}

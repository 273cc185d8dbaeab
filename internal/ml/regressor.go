// Package ml holds the small set of regressors the training pipeline chooses
// between, plus their metrics and artifact encoding.
package ml

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Regressor is a model mapping a feature vector onto a scalar.
type Regressor interface {
	Kind() string
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) ([]float64, error)
}

var (
	ErrEmptyDataset = errors.New("empty dataset")
	ErrNotFitted    = errors.New("model is not fitted")
)

// validate checks that X is a non-empty rectangular matrix aligned with y and
// returns its width.
func validate(X [][]float64, y []float64) (int, error) {
	if len(X) == 0 {
		return 0, ErrEmptyDataset
	}
	if y != nil && len(X) != len(y) {
		return 0, fmt.Errorf("x has %d rows but y has %d values", len(X), len(y))
	}
	width := len(X[0])
	if width == 0 {
		return 0, fmt.Errorf("x has no columns")
	}
	for i, row := range X {
		if len(row) != width {
			return 0, fmt.Errorf("row %d has %d columns, want %d", i, len(row), width)
		}
	}
	return width, nil
}

// checkWidth guards Predict against vectors built for a different contract.
func checkWidth(X [][]float64, want int) error {
	for i, row := range X {
		if len(row) != want {
			return fmt.Errorf("row %d has %d features, model expects %d", i, len(row), want)
		}
	}
	return nil
}

// R2 is the coefficient of determination of pred against truth.
func R2(truth, pred []float64) float64 {
	if len(truth) == 0 || len(truth) != len(pred) {
		return math.NaN()
	}
	return stat.RSquaredFrom(pred, truth, nil)
}

// MAE is the mean absolute error of pred against truth.
func MAE(truth, pred []float64) float64 {
	if len(truth) == 0 || len(truth) != len(pred) {
		return math.NaN()
	}
	var sum float64
	for i := range truth {
		sum += math.Abs(truth[i] - pred[i])
	}
	return sum / float64(len(truth))
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var s float64
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

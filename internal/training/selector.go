// Package training fits the candidate regressors, keeps the best one, and
// registers it.
package training

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/i474232898/aqi-forecast/internal/featurestore"
	"github.com/i474232898/aqi-forecast/internal/ml"
)

// Metric names recorded with every registered model.
const (
	MetricR2  = "r2"
	MetricMAE = "mae"
)

var ErrNoCandidates = errors.New("no candidate models")

// Candidate names a model constructor. New must return an unfitted model.
type Candidate struct {
	Name string
	New  func() ml.Regressor
}

// DefaultCandidates is the fixed contest: bagged trees, boosted trees, and a
// ridge baseline, in that order.
func DefaultCandidates(seed int64) []Candidate {
	return []Candidate{
		{Name: "Random_Forest", New: func() ml.Regressor { return ml.NewRandomForest(100, seed) }},
		{Name: "Gradient_Boosting", New: func() ml.Regressor { return ml.NewGradientBoosting(100, seed) }},
		{Name: "Ridge_Regression", New: func() ml.Regressor { return ml.NewRidge(1.0) }},
	}
}

// Score is one candidate's held-out result.
type Score struct {
	Name string  `json:"name"`
	R2   float64 `json:"r2"`
	MAE  float64 `json:"mae"`
}

// Result is the outcome of a selection run.
type Result struct {
	Name   string
	Model  ml.Regressor
	Best   Score
	Scores []Score
}

// Metrics returns the winner's metrics record.
func (r Result) Metrics() map[string]float64 {
	return map[string]float64{MetricR2: r.Best.R2, MetricMAE: r.Best.MAE}
}

// ScoreRecorder receives each candidate's scores.
type ScoreRecorder interface {
	CandidateScored(name string, r2, mae float64)
}

// Select fits every candidate once on the training half and keeps the one with
// the strictly greatest held-out R². Ties keep the earlier candidate and NaN
// scores never win.
func Select(ctx context.Context, candidates []Candidate, split featurestore.Split, rec ScoreRecorder) (Result, error) {
	if len(candidates) == 0 {
		return Result{}, ErrNoCandidates
	}

	log.Printf("INFO: training %d candidates on %d rows, testing on %d", len(candidates), len(split.XTrain), len(split.XTest))

	var result Result
	bestScore := math.Inf(-1)
	found := false

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		model := c.New()
		if err := model.Fit(split.XTrain, split.YTrain); err != nil {
			return Result{}, fmt.Errorf("fit %s: %w", c.Name, err)
		}
		pred, err := model.Predict(split.XTest)
		if err != nil {
			return Result{}, fmt.Errorf("evaluate %s: %w", c.Name, err)
		}

		s := Score{Name: c.Name, R2: ml.R2(split.YTest, pred), MAE: ml.MAE(split.YTest, pred)}
		result.Scores = append(result.Scores, s)
		if rec != nil {
			rec.CandidateScored(s.Name, s.R2, s.MAE)
		}
		log.Printf("INFO:   %s: R2 = %.2f%% | MAE = %.2f", s.Name, s.R2*100, s.MAE)

		r2 := s.R2
		if math.IsNaN(r2) {
			r2 = math.Inf(-1)
		}
		if !found || r2 > bestScore {
			found = true
			bestScore = r2
			result.Name = c.Name
			result.Model = model
			result.Best = s
		}
	}

	log.Printf("INFO: winner: %s with R2 of %.2f%%", result.Name, result.Best.R2*100)
	return result, nil
}

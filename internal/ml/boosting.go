package ml

import "math/rand"

// GradientBoosting fits shallow trees to the residuals of the running
// prediction under squared loss.
type GradientBoosting struct {
	NEstimators  int        `json:"n_estimators"`
	LearningRate float64    `json:"learning_rate"`
	MaxDepth     int        `json:"max_depth"`
	Seed         int64      `json:"seed"`
	Width        int        `json:"width"`
	Init         float64    `json:"init"`
	Trees        []Tree     `json:"trees"`
	Params       TreeParams `json:"params"`
}

// NewGradientBoosting returns a booster with n stages of depth-3 trees and a
// learning rate of 0.1.
func NewGradientBoosting(n int, seed int64) *GradientBoosting {
	return &GradientBoosting{NEstimators: n, LearningRate: 0.1, MaxDepth: 3, Seed: seed}
}

func (m *GradientBoosting) Kind() string { return KindGradientBoosting }

func (m *GradientBoosting) Fit(X [][]float64, y []float64) error {
	width, err := validate(X, y)
	if err != nil {
		return err
	}
	if m.NEstimators <= 0 {
		m.NEstimators = 100
	}
	if m.LearningRate <= 0 {
		m.LearningRate = 0.1
	}
	if m.MaxDepth <= 0 {
		m.MaxDepth = 3
	}
	m.Params.MaxDepth = m.MaxDepth

	rng := rand.New(rand.NewSource(m.Seed))
	n := len(X)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	m.Init = mean(y)
	current := make([]float64, n)
	for i := range current {
		current[i] = m.Init
	}

	residual := make([]float64, n)
	trees := make([]Tree, 0, m.NEstimators)
	for stage := 0; stage < m.NEstimators; stage++ {
		for i := range residual {
			residual[i] = y[i] - current[i]
		}
		t := growTree(X, residual, idx, m.Params, rng)
		for i, x := range X {
			current[i] += m.LearningRate * t.predictOne(x)
		}
		trees = append(trees, t)
	}

	m.Width = width
	m.Trees = trees
	return nil
}

func (m *GradientBoosting) Predict(X [][]float64) ([]float64, error) {
	if m.Trees == nil {
		return nil, ErrNotFitted
	}
	if err := checkWidth(X, m.Width); err != nil {
		return nil, err
	}

	out := make([]float64, len(X))
	for i, x := range X {
		v := m.Init
		for _, t := range m.Trees {
			v += m.LearningRate * t.predictOne(x)
		}
		out[i] = v
	}
	return out, nil
}

package ml

import "math/rand"

// RandomForest averages regression trees grown on bootstrap samples.
type RandomForest struct {
	NEstimators int        `json:"n_estimators"`
	Seed        int64      `json:"seed"`
	Params      TreeParams `json:"params"`
	Width       int        `json:"width"`
	Trees       []Tree     `json:"trees"`
}

// NewRandomForest returns a forest of n fully grown trees.
func NewRandomForest(n int, seed int64) *RandomForest {
	return &RandomForest{NEstimators: n, Seed: seed}
}

func (m *RandomForest) Kind() string { return KindRandomForest }

func (m *RandomForest) Fit(X [][]float64, y []float64) error {
	width, err := validate(X, y)
	if err != nil {
		return err
	}
	if m.NEstimators <= 0 {
		m.NEstimators = 100
	}

	rng := rand.New(rand.NewSource(m.Seed))
	n := len(X)
	trees := make([]Tree, 0, m.NEstimators)
	sample := make([]int, n)
	for t := 0; t < m.NEstimators; t++ {
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		trees = append(trees, growTree(X, y, sample, m.Params, rng))
	}

	m.Width = width
	m.Trees = trees
	return nil
}

func (m *RandomForest) Predict(X [][]float64) ([]float64, error) {
	if len(m.Trees) == 0 {
		return nil, ErrNotFitted
	}
	if err := checkWidth(X, m.Width); err != nil {
		return nil, err
	}

	out := make([]float64, len(X))
	for i, x := range X {
		var s float64
		for _, t := range m.Trees {
			s += t.predictOne(x)
		}
		out[i] = s / float64(len(m.Trees))
	}
	return out, nil
}

package featurestore

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"

	"github.com/i474232898/aqi-forecast/internal/features"
)

// View is a resolved feature view bound to its store.
type View struct {
	Spec  ViewSpec
	store Store
}

// Split is a labelled train/test partition of a view. Identifier columns never
// enter the X matrices; their order is features.Columns.
type Split struct {
	Columns []string
	Train   []features.Record
	Test    []features.Record
	XTrain  [][]float64
	YTrain  []float64
	XTest   [][]float64
	YTest   []float64
	Seed    int64
}

// GetOrCreateView returns the named view, creating it over the given group
// when the probe says it does not exist yet.
func GetOrCreateView(ctx context.Context, s Store, spec ViewSpec) (*View, error) {
	res, err := s.ProbeView(ctx, spec.Name, spec.Version)
	if err != nil {
		return nil, err
	}
	if res == NotFound {
		log.Printf("INFO: creating feature view %s v%d over %s v%d", spec.Name, spec.Version, spec.GroupName, spec.GroupVersion)
		if err := s.CreateView(ctx, spec); err != nil {
			return nil, err
		}
	}

	stored, err := s.GetView(ctx, spec.Name, spec.Version)
	if err != nil {
		return nil, err
	}
	return &View{Spec: stored, store: s}, nil
}

// TrainTestSplit shuffles the view's rows with the given seed and holds out
// ceil(testSize*n) of them.
func (v *View) TrainTestSplit(ctx context.Context, testSize float64, seed int64) (Split, error) {
	if testSize <= 0 || testSize >= 1 {
		return Split{}, fmt.Errorf("test size must be in (0,1), got %v", testSize)
	}
	if len(v.Spec.Labels) != 1 || v.Spec.Labels[0] != features.Label {
		return Split{}, fmt.Errorf("feature view %s: unsupported labels %v", v.Spec.Name, v.Spec.Labels)
	}

	records, err := v.store.Records(ctx, v.Spec.GroupName, v.Spec.GroupVersion)
	if err != nil {
		return Split{}, err
	}

	nTest := int(math.Ceil(testSize * float64(len(records))))
	if nTest < 1 || nTest >= len(records) {
		return Split{}, fmt.Errorf("feature view %s: %d rows is too few to split", v.Spec.Name, len(records))
	}

	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(records))

	split := Split{Columns: append([]string(nil), features.Columns...), Seed: seed}
	for i, idx := range perm {
		r := records[idx]
		if i < nTest {
			split.Test = append(split.Test, r)
			split.XTest = append(split.XTest, r.Vector())
			split.YTest = append(split.YTest, r.AQI)
			continue
		}
		split.Train = append(split.Train, r)
		split.XTrain = append(split.XTrain, r.Vector())
		split.YTrain = append(split.YTrain, r.AQI)
	}
	return split, nil
}

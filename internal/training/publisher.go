package training

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/i474232898/aqi-forecast/internal/features"
	"github.com/i474232898/aqi-forecast/internal/featurestore"
	"github.com/i474232898/aqi-forecast/internal/ml"
	"github.com/i474232898/aqi-forecast/internal/registry"
)

// ArtifactFile is the model file name inside every registered version.
const ArtifactFile = "aqi_model.json"

// Publish writes the winning model, and the split it was scored on, to a
// staging directory and registers the directory as the next version of name.
func Publish(ctx context.Context, reg *registry.Registry, name string, result Result, split *featurestore.Split) (registry.ModelVersion, error) {
	staging, err := os.MkdirTemp("", "aqi-model-")
	if err != nil {
		return registry.ModelVersion{}, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	data, err := ml.Marshal(result.Model)
	if err != nil {
		return registry.ModelVersion{}, err
	}
	if err := os.WriteFile(filepath.Join(staging, ArtifactFile), data, 0o644); err != nil {
		return registry.ModelVersion{}, fmt.Errorf("write model artifact: %w", err)
	}

	if split != nil {
		if err := writeParquet(filepath.Join(staging, "train.parquet"), split.Train); err != nil {
			return registry.ModelVersion{}, err
		}
		if err := writeParquet(filepath.Join(staging, "test.parquet"), split.Test); err != nil {
			return registry.ModelVersion{}, err
		}
	}

	description := fmt.Sprintf("Best Model: %s. Predicts AQI based on Weather.", result.Name)
	return reg.Create(name, result.Metrics(), description).Save(ctx, staging)
}

// LoadArtifact reads the model stored in a downloaded version directory.
func LoadArtifact(dir string) (ml.Regressor, error) {
	data, err := os.ReadFile(filepath.Join(dir, ArtifactFile))
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	return ml.Unmarshal(data)
}

func writeParquet(path string, records []features.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if err := featurestore.WriteParquet(f, records); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

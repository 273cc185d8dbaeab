package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/i474232898/aqi-forecast/internal/config"
	"github.com/i474232898/aqi-forecast/internal/features"
	"github.com/i474232898/aqi-forecast/internal/featurestore"
	"github.com/i474232898/aqi-forecast/internal/metrics"
	"github.com/i474232898/aqi-forecast/internal/platform"
	"github.com/i474232898/aqi-forecast/internal/training"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	project, err := platform.Login(ctx, cfg.Platform, cfg.APIKey)
	if err != nil {
		log.Fatalf("failed to log in: %v", err)
	}
	defer project.Close()

	store, err := project.FeatureStore()
	if err != nil {
		log.Fatalf("failed to open feature store: %v", err)
	}
	reg, err := project.ModelRegistry(cfg.RegistryDir)
	if err != nil {
		log.Fatalf("failed to open model registry: %v", err)
	}

	view, err := featurestore.GetOrCreateView(ctx, store, featurestore.ViewSpec{
		Name:         cfg.FeatureViewName,
		Version:      cfg.FeatureViewVersion,
		GroupName:    cfg.FeatureGroupName,
		GroupVersion: cfg.FeatureGroupVersion,
		Labels:       []string{features.Label},
	})
	if err != nil {
		log.Fatalf("failed to get feature view: %v", err)
	}

	seed := cfg.SplitSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log.Printf("INFO: splitting %s v%d with test size %.2f, seed %d", view.Spec.Name, view.Spec.Version, cfg.TestSize, seed)

	split, err := view.TrainTestSplit(ctx, cfg.TestSize, seed)
	if err != nil {
		log.Fatalf("failed to split training data: %v", err)
	}

	rec := metrics.New()
	result, err := training.Select(ctx, training.DefaultCandidates(seed), split, rec)
	if err != nil {
		log.Fatalf("model selection failed: %v", err)
	}

	mv, err := training.Publish(ctx, reg, cfg.ModelName, result, &split)
	if err != nil {
		log.Fatalf("failed to register model: %v", err)
	}
	rec.ModelVersion(mv.Version)
	log.Printf("INFO: %s v%d registered (r2=%.4f, mae=%.4f)", mv.Name, mv.Version, result.Best.R2, result.Best.MAE)

	if cfg.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := rec.Push(pushCtx, cfg.PushgatewayURL, "training_pipeline"); err != nil {
			log.Printf("ERROR: %v", err)
		}
	}
}

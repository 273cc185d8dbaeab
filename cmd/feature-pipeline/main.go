package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/i474232898/aqi-forecast/internal/airquality"
	"github.com/i474232898/aqi-forecast/internal/config"
	"github.com/i474232898/aqi-forecast/internal/ingest"
	"github.com/i474232898/aqi-forecast/internal/metrics"
	"github.com/i474232898/aqi-forecast/internal/platform"
	"github.com/i474232898/aqi-forecast/internal/scheduler"
)

func main() {
	schedule := flag.Bool("schedule", false, "run daily at UPDATE_AT instead of once")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	loc, err := cfg.ResolveLocation()
	if err != nil {
		log.Fatalf("failed to resolve location: %v", err)
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

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	client := airquality.NewOpenMeteoClient(httpClient,
		airquality.WithBaseURL(cfg.AQAPIURL),
		airquality.WithAPIKey(cfg.AQAPIKey),
		airquality.WithRetries(cfg.AQMaxRetries),
	)

	rec := metrics.New()
	publisher := ingest.NewPublisher(store, client, loc, ingest.Config{
		GroupName:     cfg.FeatureGroupName,
		GroupVersion:  cfg.FeatureGroupVersion,
		Description:   "Hourly air quality measurements and European AQI for " + loc.Name,
		ChunkSize:     cfg.IngestChunkSize,
		BackfillDays:  cfg.BackfillDays,
		UpdateDays:    cfg.UpdateDays,
		AwaitBackfill: cfg.AwaitBackfill,
	}, ingest.WithRecorder(rec))

	run := func(ctx context.Context) error {
		report, err := publisher.Run(ctx)
		if err != nil {
			return err
		}
		log.Printf("INFO: %s wrote %d rows in %d chunks", report.Mode, report.Rows, len(report.Jobs))
		pushMetrics(rec, cfg.PushgatewayURL)
		return nil
	}

	// Background chunks write through this process's connection pool, so they
	// must finish before the project is closed.
	drain := func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := publisher.Drain(drainCtx); err != nil {
			project.Close()
			log.Fatalf("feature pipeline failed: %v", err)
		}
	}

	if !*schedule {
		if err := run(ctx); err != nil {
			log.Fatalf("feature pipeline failed: %v", err)
		}
		drain()
		pushMetrics(rec, cfg.PushgatewayURL)
		return
	}

	tz, err := time.LoadLocation(loc.Timezone)
	if err != nil {
		log.Fatalf("invalid timezone: %v", err)
	}
	sched := scheduler.New(tz, cfg.UpdateAt, 30*time.Minute, run)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()
	log.Printf("INFO: feature pipeline scheduled daily at %s %s, next run %s", cfg.UpdateAt, tz, sched.NextRun().Format(time.RFC3339))

	<-ctx.Done()
	log.Println("INFO: shutting down feature pipeline")
	sched.Stop()
	drain()
}

func pushMetrics(rec *metrics.Recorder, url string) {
	if url == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rec.Push(ctx, url, "feature_pipeline"); err != nil {
		log.Printf("ERROR: %v", err)
	}
}

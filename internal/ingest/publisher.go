// Package ingest decides whether a feature group needs a full backfill or an
// incremental update and writes the derived rows accordingly.
package ingest

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/i474232898/aqi-forecast/internal/airquality"
	"github.com/i474232898/aqi-forecast/internal/features"
	"github.com/i474232898/aqi-forecast/internal/featurestore"
)

// State is the publisher's view of the target feature group.
type State int

const (
	Uninitialized State = iota
	Initialized
)

func (s State) String() string {
	if s == Initialized {
		return "initialized"
	}
	return "uninitialized"
}

const (
	ModeBackfill = "backfill"
	ModeUpdate   = "update"
)

// Recorder receives ingest counters.
type Recorder interface {
	RowsIngested(mode string, n int)
	ChunkSubmitted()
	ChunkFailed()
}

type noopRecorder struct{}

func (noopRecorder) RowsIngested(string, int) {}
func (noopRecorder) ChunkSubmitted()          {}
func (noopRecorder) ChunkFailed()             {}

// Config carries the group identity and the window sizes.
type Config struct {
	GroupName    string
	GroupVersion int
	Description  string

	ChunkSize    int
	BackfillDays int
	UpdateDays   int

	// AwaitBackfill joins every background chunk before Run returns. When
	// false the chunks are joined by Drain instead.
	AwaitBackfill bool
}

// Report summarises one run.
type Report struct {
	Before     State
	Mode       string
	Rows       int
	ChunkSizes []int
	Jobs       []*featurestore.WriteJob
}

// Publisher writes one location's observations into a feature group.
type Publisher struct {
	store    featurestore.Store
	fetcher  airquality.Fetcher
	location airquality.Location
	cfg      Config
	recorder Recorder
	now      func() time.Time

	mu      sync.Mutex
	pending []*featurestore.WriteJob
}

// Option customises a Publisher.
type Option func(*Publisher)

// WithRecorder reports ingest counters to rec.
func WithRecorder(rec Recorder) Option {
	return func(p *Publisher) { p.recorder = rec }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

func NewPublisher(store featurestore.Store, fetcher airquality.Fetcher, loc airquality.Location, cfg Config, opts ...Option) *Publisher {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 500
	}
	if cfg.BackfillDays <= 0 {
		cfg.BackfillDays = 365
	}
	if cfg.UpdateDays <= 0 {
		cfg.UpdateDays = 3
	}
	p := &Publisher{
		store:    store,
		fetcher:  fetcher,
		location: loc,
		cfg:      cfg,
		recorder: noopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run probes the group and performs a backfill or an update. A probe that
// cannot answer aborts the run.
func (p *Publisher) Run(ctx context.Context) (Report, error) {
	res, err := p.store.Probe(ctx, p.cfg.GroupName, p.cfg.GroupVersion)
	switch {
	case res == featurestore.TransientError:
		return Report{}, fmt.Errorf("probe %s v%d: %w", p.cfg.GroupName, p.cfg.GroupVersion, err)
	case err != nil:
		return Report{}, err
	case res == featurestore.Found:
		return p.update(ctx)
	default:
		return p.backfill(ctx)
	}
}

func (p *Publisher) backfill(ctx context.Context) (Report, error) {
	report := Report{Before: Uninitialized, Mode: ModeBackfill}
	log.Printf("INFO: feature group %s v%d not found; starting %d-day backfill for %s",
		p.cfg.GroupName, p.cfg.GroupVersion, p.cfg.BackfillDays, p.location.Name)

	// The group is only created once there is data for it, so a failed fetch
	// leaves the store uninitialized and the next run backfills again.
	records, err := p.fetch(ctx, airquality.HistoricalWindow(p.location, p.now(), p.cfg.BackfillDays))
	if err != nil {
		return report, err
	}
	report.Rows = len(records)

	spec := featurestore.GroupSpec{
		Name:        p.cfg.GroupName,
		Version:     p.cfg.GroupVersion,
		PrimaryKey:  []string{"location_name", "event_key"},
		EventTime:   "event_key",
		Description: p.cfg.Description,
	}
	if err := p.store.CreateGroup(ctx, spec); err != nil {
		return report, err
	}

	for i, chunk := range Chunk(records, p.cfg.ChunkSize) {
		job, err := p.store.Insert(ctx, p.cfg.GroupName, p.cfg.GroupVersion, chunk, featurestore.InsertOptions{Wait: false})
		if err != nil {
			p.recorder.ChunkFailed()
			return report, fmt.Errorf("submit chunk %d: %w", i, err)
		}
		p.recorder.ChunkSubmitted()
		report.ChunkSizes = append(report.ChunkSizes, len(chunk))
		report.Jobs = append(report.Jobs, job)
		log.Printf("DEBUG: submitted chunk %d (%d rows) as job %s", i, len(chunk), job.ID)
	}
	p.recorder.RowsIngested(ModeBackfill, report.Rows)

	if !p.cfg.AwaitBackfill {
		p.mu.Lock()
		p.pending = append(p.pending, report.Jobs...)
		p.mu.Unlock()
		log.Printf("INFO: backfill submitted: %d rows in %d chunks (not awaited)", report.Rows, len(report.Jobs))
		return report, nil
	}

	if err := p.await(ctx, report.Jobs); err != nil {
		return report, fmt.Errorf("backfill %s v%d incomplete: %w", p.cfg.GroupName, p.cfg.GroupVersion, err)
	}
	log.Printf("INFO: backfill complete: %d rows in %d chunks", report.Rows, len(report.Jobs))
	return report, nil
}

// Drain waits for every write job that Run left running in the background and
// reports all failures. Callers must drain before closing the store.
func (p *Publisher) Drain(ctx context.Context) error {
	p.mu.Lock()
	jobs := p.pending
	p.pending = nil
	p.mu.Unlock()

	if len(jobs) == 0 {
		return nil
	}
	log.Printf("INFO: waiting for %d background write jobs", len(jobs))
	if err := p.await(ctx, jobs); err != nil {
		return fmt.Errorf("backfill %s v%d incomplete: %w", p.cfg.GroupName, p.cfg.GroupVersion, err)
	}
	return nil
}

func (p *Publisher) await(ctx context.Context, jobs []*featurestore.WriteJob) error {
	err := featurestore.AwaitAll(ctx, jobs)
	if err != nil {
		for _, job := range jobs {
			if job.Done() && job.Wait(ctx) != nil {
				p.recorder.ChunkFailed()
			}
		}
	}
	return err
}

func (p *Publisher) update(ctx context.Context) (Report, error) {
	report := Report{Before: Initialized, Mode: ModeUpdate}
	log.Printf("INFO: feature group %s v%d exists; fetching last %d days for %s",
		p.cfg.GroupName, p.cfg.GroupVersion, p.cfg.UpdateDays, p.location.Name)

	records, err := p.fetch(ctx, airquality.HistoricalWindow(p.location, p.now(), p.cfg.UpdateDays))
	if err != nil {
		return report, err
	}
	report.Rows = len(records)

	job, err := p.store.Insert(ctx, p.cfg.GroupName, p.cfg.GroupVersion, records, featurestore.InsertOptions{Wait: true})
	if err != nil {
		p.recorder.ChunkFailed()
		return report, err
	}
	p.recorder.ChunkSubmitted()
	p.recorder.RowsIngested(ModeUpdate, report.Rows)
	report.ChunkSizes = []int{len(records)}
	report.Jobs = []*featurestore.WriteJob{job}

	log.Printf("INFO: update complete: %d rows", report.Rows)
	return report, nil
}

func (p *Publisher) fetch(ctx context.Context, req airquality.Request) ([]features.Record, error) {
	obs, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	records := features.DeriveLabeled(obs, p.location.Name)
	log.Printf("INFO: downloaded %d observations, %d usable rows", len(obs), len(records))
	return records, nil
}

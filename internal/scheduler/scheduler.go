package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler runs a job once a day at a fixed wall-clock time.
type Scheduler struct {
	scheduler *gocron.Scheduler
	job       Job
	at        string
	timeout   time.Duration
}

// New creates a Scheduler that runs job daily at "HH:MM" in tz.
func New(tz *time.Location, at string, timeout time.Duration, job Job) *Scheduler {
	s := gocron.NewScheduler(tz)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		job:       job,
		at:        at,
		timeout:   timeout,
	}
}

// Start schedules the daily job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(1).Day().At(s.at).Do(func() {
		log.Println("scheduler: running feature pipeline job")

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := s.job(ctx); err != nil {
			log.Printf("scheduler: feature pipeline failed: %v", err)
			return
		}
		log.Println("scheduler: completed feature pipeline job")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// NextRun reports when the job runs next.
func (s *Scheduler) NextRun() time.Time {
	_, next := s.scheduler.NextRun()
	return next
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

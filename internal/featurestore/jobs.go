package featurestore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// WriteJob is the handle of one insert call.
type WriteJob struct {
	ID   string
	Rows int

	once sync.Once
	done chan struct{}
	err  error
}

func newWriteJob(rows int) *WriteJob {
	return &WriteJob{
		ID:   uuid.New().String(),
		Rows: rows,
		done: make(chan struct{}),
	}
}

func (j *WriteJob) finish(err error) {
	j.once.Do(func() {
		if err != nil {
			j.err = fmt.Errorf("%w: job %s (%d rows): %v", ErrWrite, j.ID, j.Rows, err)
		}
		close(j.done)
	})
}

// Wait blocks until the job has finished and returns its error.
func (j *WriteJob) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done reports whether the job has finished.
func (j *WriteJob) Done() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// RunJob executes write inline when opts.Wait is set and in a background
// goroutine otherwise. Store implementations use it to produce their handles.
func RunJob(ctx context.Context, rows int, opts InsertOptions, write func(context.Context) error) (*WriteJob, error) {
	job := newWriteJob(rows)
	if opts.Wait {
		job.finish(write(ctx))
		return job, job.err
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		job.finish(write(bg))
	}()
	return job, nil
}

// AwaitAll waits for every job and collects all failures.
func AwaitAll(ctx context.Context, jobs []*WriteJob) error {
	var result *multierror.Error
	for _, job := range jobs {
		if err := job.Wait(ctx); err != nil {
			result = multierror.Append(result, err)
			if ctx.Err() != nil {
				break
			}
		}
	}
	return result.ErrorOrNil()
}

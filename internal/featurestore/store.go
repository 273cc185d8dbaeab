// Package featurestore keeps versioned, primary-keyed feature groups and the
// feature views used to build training data from them.
package featurestore

import (
	"context"
	"errors"
	"strings"

	"github.com/i474232898/aqi-forecast/internal/features"
)

var (
	// ErrWrite wraps every failed insert.
	ErrWrite = errors.New("feature store write failed")
	// ErrGroupNotFound is returned when writing to or reading from a group that was never created.
	ErrGroupNotFound = errors.New("feature group not found")
	// ErrViewNotFound is returned for unknown feature views.
	ErrViewNotFound = errors.New("feature view not found")
)

// ProbeResult is the outcome of an existence check.
type ProbeResult int

const (
	NotFound ProbeResult = iota
	Found
	// TransientError means the store could not answer; callers must not
	// treat it as NotFound.
	TransientError
)

func (p ProbeResult) String() string {
	switch p {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	default:
		return "transient_error"
	}
}

// GroupSpec declares a feature group.
type GroupSpec struct {
	Name        string
	Version     int
	PrimaryKey  []string
	EventTime   string
	Description string
}

// ViewSpec declares a feature view over one group.
type ViewSpec struct {
	Name         string
	Version      int
	GroupName    string
	GroupVersion int
	Labels       []string
}

// InsertOptions controls a single insert call.
type InsertOptions struct {
	// Wait blocks until the rows are committed. When false the write runs as a
	// background job and the returned handle must be awaited to learn its outcome.
	Wait bool
}

// Store is the contract the SQL store and the in-memory store both satisfy.
type Store interface {
	Probe(ctx context.Context, name string, version int) (ProbeResult, error)
	CreateGroup(ctx context.Context, spec GroupSpec) error
	Insert(ctx context.Context, name string, version int, rows []features.Record, opts InsertOptions) (*WriteJob, error)
	Records(ctx context.Context, name string, version int) ([]features.Record, error)

	ProbeView(ctx context.Context, name string, version int) (ProbeResult, error)
	CreateView(ctx context.Context, spec ViewSpec) error
	GetView(ctx context.Context, name string, version int) (ViewSpec, error)
}

// missingTableHints are driver messages that mean the metadata table itself
// is absent, which is a legitimate "not found".
var missingTableHints = []string{"no such table", "doesn't exist", "does not exist"}

func isMissingTable(err error) bool {
	return err != nil && containsAny(strings.ToLower(err.Error()), missingTableHints...)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

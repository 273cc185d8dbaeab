package featurestore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/i474232898/aqi-forecast/internal/features"
)

type groupKey struct {
	name    string
	version int
}

type recordKey struct {
	location string
	eventKey int64
}

// groupData holds the rows of one feature group keyed by primary key.
type groupData struct {
	spec GroupSpec
	rows map[recordKey]features.Record
}

// MemoryStore is a concurrency-safe in-memory implementation of Store.
type MemoryStore struct {
	mu sync.RWMutex

	groups map[groupKey]*groupData
	views  map[groupKey]ViewSpec
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		groups: make(map[groupKey]*groupData),
		views:  make(map[groupKey]ViewSpec),
	}
}

func (s *MemoryStore) Probe(_ context.Context, name string, version int) (ProbeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.groups[groupKey{name, version}]; ok {
		return Found, nil
	}
	return NotFound, nil
}

func (s *MemoryStore) CreateGroup(_ context.Context, spec GroupSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := groupKey{spec.Name, spec.Version}
	if _, ok := s.groups[key]; ok {
		return fmt.Errorf("feature group %s v%d already exists", spec.Name, spec.Version)
	}
	s.groups[key] = &groupData{spec: spec, rows: make(map[recordKey]features.Record)}
	return nil
}

// Insert stores rows; rows whose primary key already exists are ignored.
func (s *MemoryStore) Insert(ctx context.Context, name string, version int, rows []features.Record, opts InsertOptions) (*WriteJob, error) {
	s.mu.RLock()
	_, ok := s.groups[groupKey{name, version}]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s v%d", ErrGroupNotFound, name, version)
	}

	batch := append([]features.Record(nil), rows...)
	return RunJob(ctx, len(batch), opts, func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		g := s.groups[groupKey{name, version}]
		for _, r := range batch {
			k := recordKey{r.LocationName, r.EventKey}
			if _, exists := g.rows[k]; !exists {
				g.rows[k] = r
			}
		}
		return nil
	})
}

// Records returns all rows of a group ordered by location and event key.
func (s *MemoryStore) Records(_ context.Context, name string, version int) ([]features.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[groupKey{name, version}]
	if !ok {
		return nil, fmt.Errorf("%w: %s v%d", ErrGroupNotFound, name, version)
	}

	out := make([]features.Record, 0, len(g.rows))
	for _, r := range g.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LocationName != out[j].LocationName {
			return out[i].LocationName < out[j].LocationName
		}
		return out[i].EventKey < out[j].EventKey
	})
	return out, nil
}

func (s *MemoryStore) ProbeView(_ context.Context, name string, version int) (ProbeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.views[groupKey{name, version}]; ok {
		return Found, nil
	}
	return NotFound, nil
}

func (s *MemoryStore) CreateView(_ context.Context, spec ViewSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[groupKey{spec.GroupName, spec.GroupVersion}]; !ok {
		return fmt.Errorf("%w: %s v%d", ErrGroupNotFound, spec.GroupName, spec.GroupVersion)
	}
	s.views[groupKey{spec.Name, spec.Version}] = spec
	return nil
}

func (s *MemoryStore) GetView(_ context.Context, name string, version int) (ViewSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.views[groupKey{name, version}]
	if !ok {
		return ViewSpec{}, fmt.Errorf("%w: %s v%d", ErrViewNotFound, name, version)
	}
	return v, nil
}

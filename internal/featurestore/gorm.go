package featurestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/i474232898/aqi-forecast/internal/features"
)

// groupMeta mapped from table <feature_groups>
type groupMeta struct {
	Name        string `gorm:"column:name;primaryKey;size:128"`
	Version     int    `gorm:"column:version;primaryKey"`
	PrimaryKey  string `gorm:"column:primary_key"`
	EventTime   string `gorm:"column:event_time"`
	Description string `gorm:"column:description"`
	CreatedAt   time.Time
}

func (groupMeta) TableName() string { return "feature_groups" }

// viewMeta mapped from table <feature_views>
type viewMeta struct {
	Name         string `gorm:"column:name;primaryKey;size:128"`
	Version      int    `gorm:"column:version;primaryKey"`
	GroupName    string `gorm:"column:group_name"`
	GroupVersion int    `gorm:"column:group_version"`
	Labels       string `gorm:"column:labels"`
	CreatedAt    time.Time
}

func (viewMeta) TableName() string { return "feature_views" }

// featureRow mapped from table <feature_rows>
type featureRow struct {
	GroupName    string    `gorm:"column:group_name;primaryKey;size:128"`
	GroupVersion int       `gorm:"column:group_version;primaryKey"`
	LocationName string    `gorm:"column:location_name;primaryKey;size:128"`
	EventKey     int64     `gorm:"column:event_key;primaryKey"`
	Timestamp    time.Time `gorm:"column:timestamp"`
	PM25         float64   `gorm:"column:pm25"`
	PM10         float64   `gorm:"column:pm10"`
	NO2          float64   `gorm:"column:no2"`
	Ozone        float64   `gorm:"column:ozone"`
	AQI          float64   `gorm:"column:aqi"`
	Hour         int       `gorm:"column:hour"`
	DayOfWeek    int       `gorm:"column:day_of_week"`
	Month        int       `gorm:"column:month"`
	DateStr      string    `gorm:"column:date_str;size:10"`
}

func (featureRow) TableName() string { return "feature_rows" }

// GormStore implements Store on a SQL database through gorm.
type GormStore struct {
	db        *gorm.DB
	batchSize int
}

// NewGormStore migrates the feature store tables and returns the store.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&groupMeta{}, &viewMeta{}, &featureRow{}); err != nil {
		return nil, fmt.Errorf("migrate feature store: %w", err)
	}
	return &GormStore{db: db, batchSize: 100}, nil
}

func (s *GormStore) Probe(ctx context.Context, name string, version int) (ProbeResult, error) {
	var meta groupMeta
	err := s.db.WithContext(ctx).Where("name = ? AND version = ?", name, version).Take(&meta).Error
	return classify(err)
}

func (s *GormStore) CreateGroup(ctx context.Context, spec GroupSpec) error {
	meta := groupMeta{
		Name:        spec.Name,
		Version:     spec.Version,
		PrimaryKey:  strings.Join(spec.PrimaryKey, ","),
		EventTime:   spec.EventTime,
		Description: spec.Description,
	}
	if err := s.db.WithContext(ctx).Create(&meta).Error; err != nil {
		return fmt.Errorf("create feature group %s v%d: %w", spec.Name, spec.Version, err)
	}
	return nil
}

// Insert appends rows; rows whose primary key already exists are ignored.
func (s *GormStore) Insert(ctx context.Context, name string, version int, rows []features.Record, opts InsertOptions) (*WriteJob, error) {
	res, err := s.Probe(ctx, name, version)
	if err != nil {
		return nil, err
	}
	if res != Found {
		return nil, fmt.Errorf("%w: %s v%d", ErrGroupNotFound, name, version)
	}

	batch := make([]featureRow, 0, len(rows))
	for _, r := range rows {
		batch = append(batch, toRow(name, version, r))
	}

	return RunJob(ctx, len(batch), opts, func(ctx context.Context) error {
		if len(batch) == 0 {
			return nil
		}
		return s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			CreateInBatches(&batch, s.batchSize).Error
	})
}

func (s *GormStore) Records(ctx context.Context, name string, version int) ([]features.Record, error) {
	res, err := s.Probe(ctx, name, version)
	if err != nil {
		return nil, err
	}
	if res != Found {
		return nil, fmt.Errorf("%w: %s v%d", ErrGroupNotFound, name, version)
	}

	var rows []featureRow
	err = s.db.WithContext(ctx).
		Where("group_name = ? AND group_version = ?", name, version).
		Order("location_name, event_key").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("read feature group %s v%d: %w", name, version, err)
	}

	out := make([]features.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toRecord())
	}
	return out, nil
}

func (s *GormStore) ProbeView(ctx context.Context, name string, version int) (ProbeResult, error) {
	var meta viewMeta
	err := s.db.WithContext(ctx).Where("name = ? AND version = ?", name, version).Take(&meta).Error
	return classify(err)
}

func (s *GormStore) CreateView(ctx context.Context, spec ViewSpec) error {
	res, err := s.Probe(ctx, spec.GroupName, spec.GroupVersion)
	if err != nil {
		return err
	}
	if res != Found {
		return fmt.Errorf("%w: %s v%d", ErrGroupNotFound, spec.GroupName, spec.GroupVersion)
	}

	meta := viewMeta{
		Name:         spec.Name,
		Version:      spec.Version,
		GroupName:    spec.GroupName,
		GroupVersion: spec.GroupVersion,
		Labels:       strings.Join(spec.Labels, ","),
	}
	if err := s.db.WithContext(ctx).Create(&meta).Error; err != nil {
		return fmt.Errorf("create feature view %s v%d: %w", spec.Name, spec.Version, err)
	}
	return nil
}

func (s *GormStore) GetView(ctx context.Context, name string, version int) (ViewSpec, error) {
	var meta viewMeta
	err := s.db.WithContext(ctx).Where("name = ? AND version = ?", name, version).Take(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ViewSpec{}, fmt.Errorf("%w: %s v%d", ErrViewNotFound, name, version)
	}
	if err != nil {
		return ViewSpec{}, fmt.Errorf("read feature view %s v%d: %w", name, version, err)
	}

	var labels []string
	if meta.Labels != "" {
		labels = strings.Split(meta.Labels, ",")
	}
	return ViewSpec{
		Name:         meta.Name,
		Version:      meta.Version,
		GroupName:    meta.GroupName,
		GroupVersion: meta.GroupVersion,
		Labels:       labels,
	}, nil
}

// classify maps a metadata lookup error onto the tri-state probe result.
func classify(err error) (ProbeResult, error) {
	switch {
	case err == nil:
		return Found, nil
	case errors.Is(err, gorm.ErrRecordNotFound), isMissingTable(err):
		return NotFound, nil
	default:
		return TransientError, fmt.Errorf("probe feature store: %w", err)
	}
}

func toRow(name string, version int, r features.Record) featureRow {
	return featureRow{
		GroupName:    name,
		GroupVersion: version,
		LocationName: r.LocationName,
		EventKey:     r.EventKey,
		Timestamp:    r.Timestamp,
		PM25:         r.PM25,
		PM10:         r.PM10,
		NO2:          r.NO2,
		Ozone:        r.Ozone,
		AQI:          r.AQI,
		Hour:         r.Hour,
		DayOfWeek:    r.DayOfWeek,
		Month:        r.Month,
		DateStr:      r.DateStr,
	}
}

func (r featureRow) toRecord() features.Record {
	return features.Record{
		Timestamp:    r.Timestamp,
		PM25:         r.PM25,
		PM10:         r.PM10,
		NO2:          r.NO2,
		Ozone:        r.Ozone,
		AQI:          r.AQI,
		Hour:         r.Hour,
		DayOfWeek:    r.DayOfWeek,
		Month:        r.Month,
		DateStr:      r.DateStr,
		EventKey:     r.EventKey,
		LocationName: r.LocationName,
	}
}

// Package registry stores fitted model artifacts under a logical name with
// monotonically increasing versions.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a model name or version has never been registered.
var ErrNotFound = errors.New("model not found")

// ModelVersion is one registered artifact.
type ModelVersion struct {
	Name         string             `json:"name"`
	Version      int                `json:"version"`
	Metrics      map[string]float64 `json:"metrics"`
	Description  string             `json:"description"`
	ArtifactPath string             `json:"artifactPath"`
	CreatedAt    time.Time          `json:"createdAt"`
}

// modelVersionRow mapped from table <model_versions>
type modelVersionRow struct {
	Name         string `gorm:"column:name;primaryKey;size:128"`
	Version      int    `gorm:"column:version;primaryKey"`
	Metrics      string `gorm:"column:metrics"`
	Description  string `gorm:"column:description"`
	ArtifactPath string `gorm:"column:artifact_path"`
	CreatedAt    time.Time
}

func (modelVersionRow) TableName() string { return "model_versions" }

func (r modelVersionRow) toModel() (ModelVersion, error) {
	mv := ModelVersion{
		Name:         r.Name,
		Version:      r.Version,
		Description:  r.Description,
		ArtifactPath: r.ArtifactPath,
		CreatedAt:    r.CreatedAt,
	}
	if r.Metrics != "" {
		if err := json.Unmarshal([]byte(r.Metrics), &mv.Metrics); err != nil {
			return mv, fmt.Errorf("decode metrics of %s v%d: %w", r.Name, r.Version, err)
		}
	}
	return mv, nil
}

// Registry keeps metadata in SQL and artifacts under a root directory.
type Registry struct {
	db   *gorm.DB
	root string
}

// New migrates the registry table and makes sure root exists.
func New(db *gorm.DB, root string) (*Registry, error) {
	if err := db.AutoMigrate(&modelVersionRow{}); err != nil {
		return nil, fmt.Errorf("migrate model registry: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create registry dir %s: %w", root, err)
	}
	return &Registry{db: db, root: root}, nil
}

// Handle is a pending registration created by Create and completed by Save.
type Handle struct {
	reg         *Registry
	name        string
	metrics     map[string]float64
	description string
}

// Create starts a registration. Nothing is written until Save.
func (r *Registry) Create(name string, metrics map[string]float64, description string) *Handle {
	return &Handle{reg: r, name: name, metrics: metrics, description: description}
}

// Save copies the artifact at path (a file or a directory) into the registry
// under the next version and then records the metadata. If the metadata
// insert fails the copied artifact is left behind.
func (h *Handle) Save(ctx context.Context, path string) (ModelVersion, error) {
	r := h.reg

	next, err := r.nextVersion(ctx, h.name)
	if err != nil {
		return ModelVersion{}, err
	}

	dest := filepath.Join(r.root, h.name, strconv.Itoa(next))
	if err := copyPath(path, dest); err != nil {
		return ModelVersion{}, fmt.Errorf("save artifact %s v%d: %w", h.name, next, err)
	}

	metrics, err := json.Marshal(h.metrics)
	if err != nil {
		return ModelVersion{}, fmt.Errorf("encode metrics: %w", err)
	}
	row := modelVersionRow{
		Name:         h.name,
		Version:      next,
		Metrics:      string(metrics),
		Description:  h.description,
		ArtifactPath: dest,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return ModelVersion{}, fmt.Errorf("register %s v%d: %w", h.name, next, err)
	}

	log.Printf("INFO: registered model %s version %d at %s", h.name, next, dest)
	return row.toModel()
}

func (r *Registry) nextVersion(ctx context.Context, name string) (int, error) {
	var current sql.NullInt64
	err := r.db.WithContext(ctx).Model(&modelVersionRow{}).
		Where("name = ?", name).
		Select("MAX(version)").
		Row().Scan(&current)
	if err != nil {
		return 0, fmt.Errorf("read versions of %s: %w", name, err)
	}
	if !current.Valid {
		return 1, nil
	}
	return int(current.Int64) + 1, nil
}

// List returns every version of name in ascending order.
func (r *Registry) List(ctx context.Context, name string) ([]ModelVersion, error) {
	var rows []modelVersionRow
	err := r.db.WithContext(ctx).Where("name = ?", name).Order("version").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list models %s: %w", name, err)
	}

	out := make([]ModelVersion, 0, len(rows))
	for _, row := range rows {
		mv, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, mv)
	}
	return out, nil
}

// Latest returns the version with the highest number, regardless of metrics.
func (r *Registry) Latest(ctx context.Context, name string) (ModelVersion, error) {
	versions, err := r.List(ctx, name)
	if err != nil {
		return ModelVersion{}, err
	}
	if len(versions) == 0 {
		return ModelVersion{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	best := versions[0]
	for _, v := range versions[1:] {
		if v.Version > best.Version {
			best = v
		}
	}
	return best, nil
}

// Get returns one registered version.
func (r *Registry) Get(ctx context.Context, name string, version int) (ModelVersion, error) {
	var row modelVersionRow
	err := r.db.WithContext(ctx).Where("name = ? AND version = ?", name, version).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ModelVersion{}, fmt.Errorf("%w: %s v%d", ErrNotFound, name, version)
	}
	if err != nil {
		return ModelVersion{}, fmt.Errorf("read model %s v%d: %w", name, version, err)
	}
	return row.toModel()
}

// Download copies the artifact of a version into a fresh temporary directory
// and returns that directory.
func (r *Registry) Download(ctx context.Context, name string, version int) (string, error) {
	mv, err := r.Get(ctx, name, version)
	if err != nil {
		return "", err
	}

	dir, err := os.MkdirTemp("", fmt.Sprintf("%s-v%d-", name, version))
	if err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	if err := copyPath(mv.ArtifactPath, dir); err != nil {
		return "", fmt.Errorf("download %s v%d: %w", name, version, err)
	}
	return dir, nil
}

// copyPath copies a file into dest/, or a directory's files into dest/.
func copyPath(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	if !info.IsDir() {
		return copyFile(src, filepath.Join(dest, filepath.Base(src)))
	}

	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Package store persists a record of every finished recording using gorm
// over the pure-Go sqlite driver, mirroring the teacher's persistence
// layer but scoped to the VideoFileRecord model spec.md describes.
package store

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/watchcam/watchcam/internal/config"
)

// VideoFileRecord is one finished recording: the camera it came from,
// where it lives on disk (and with what storage_kind), when its episode
// started, and how long it ran. Matches spec.md §3's
// { path, label, start_time, created_at, modified_at, storage_kind }.
type VideoFileRecord struct {
	ID          uint `gorm:"primarykey"`
	Label       string
	Path        string
	StorageKind config.StorageKind
	StartTime   time.Time
	DurationMs  int64
	CreatedAt   time.Time
	ModifiedAt  time.Time
}

// Repository wraps a gorm DB scoped to VideoFileRecord.
type Repository struct {
	db *gorm.DB
}

// Open migrates and returns a Repository backed by the sqlite file at
// path.
func Open(path string) (*Repository, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&VideoFileRecord{}); err != nil {
		return nil, fmt.Errorf("store: automigrate: %w", err)
	}
	return &Repository{db: db}, nil
}

// Insert records one finished recording.
func (r *Repository) Insert(label, path string, storageKind config.StorageKind, startTime time.Time, durationMs int64) error {
	now := time.Now()
	rec := VideoFileRecord{
		Label:       label,
		Path:        path,
		StorageKind: storageKind,
		StartTime:   startTime,
		DurationMs:  durationMs,
		ModifiedAt:  now,
	}
	if err := r.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("store: insert: %w", err)
	}
	return nil
}

// ListByLabel returns every recording for one camera, most recent first.
func (r *Repository) ListByLabel(label string) ([]VideoFileRecord, error) {
	var recs []VideoFileRecord
	if err := r.db.Where("label = ?", label).Order("start_time desc").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("store: list %s: %w", label, err)
	}
	return recs, nil
}

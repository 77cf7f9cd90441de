// Package library is the track registry the streaming core resolves ids
// through. The core never opens user-provided paths; every file path comes
// out of this store. The full metadata database lives outside the core;
// this registry holds just what streaming needs.
package library

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/matiaszanolli/auralis-go/internal/audiofile"
	"github.com/matiaszanolli/auralis-go/internal/errors"
	"github.com/matiaszanolli/auralis-go/internal/logging"
	"github.com/matiaszanolli/auralis-go/internal/processor"
)

const component = "library"

// lookupTTL bounds how long resolved tracks are served from memory before
// the database is consulted again.
const lookupTTL = 5 * time.Minute

// Track is one registered audio file.
type Track struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Path      string `gorm:"uniqueIndex;not null"`
	Title     string
	DurationS float64
	SizeBytes int64
	ModTime   time.Time
	Signature string `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the sqlite-backed registry with a TTL lookup cache in front.
type Store struct {
	db      *gorm.DB
	lookups *gocache.Cache
	log     *slog.Logger
}

// Open opens (creating if needed) the registry database at path.
func Open(path string) (*Store, error) {
	log := logging.ForService("library")
	if log == nil {
		log = slog.Default()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.New(err).
			Component(component).
			Category(errors.CategoryDatabase).
			Context("operation", "open_database").
			Context("path", path).
			Build()
	}
	if err := db.AutoMigrate(&Track{}); err != nil {
		return nil, errors.New(err).
			Component(component).
			Category(errors.CategoryDatabase).
			Context("operation", "migrate_schema").
			Build()
	}

	return &Store{
		db:      db,
		lookups: gocache.New(lookupTTL, 2*lookupTTL),
		log:     log.With("component", "track_store"),
	}, nil
}

// FileSignature hashes file identity (path, size, mtime) so cache keys go
// stale when the underlying file changes.
func FileSignature(path string, size int64, modTime time.Time) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%d|%d", path, size, modTime.UnixNano()))
	return hex.EncodeToString(sum[:8])
}

// AddTrack registers an audio file, reading its header for the duration.
// Re-adding an existing path refreshes its signature and duration.
func (s *Store) AddTrack(path, title string) (*Track, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, errors.New(err).
			Component(component).
			Category(errors.CategoryFileIO).
			Context("operation", "stat_track").
			Context("path", path).
			Build()
	}

	info, err := audiofile.Open(path)
	if err != nil {
		return nil, err
	}

	track := Track{
		Path:      path,
		Title:     title,
		DurationS: info.Duration(),
		SizeBytes: fi.Size(),
		ModTime:   fi.ModTime(),
		Signature: FileSignature(path, fi.Size(), fi.ModTime()),
	}

	var existing Track
	err = s.db.Where("path = ?", path).First(&existing).Error
	switch {
	case err == nil:
		track.ID = existing.ID
		if err := s.db.Save(&track).Error; err != nil {
			return nil, s.dbError(err, "update_track")
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.Create(&track).Error; err != nil {
			return nil, s.dbError(err, "create_track")
		}
	default:
		return nil, s.dbError(err, "lookup_track")
	}

	s.lookups.Delete(cacheKey(track.ID))
	s.log.Info("track registered",
		"track_id", track.ID,
		"duration_s", track.DurationS)
	return &track, nil
}

// GetTrack returns a track by id, serving repeated lookups from the TTL
// cache.
func (s *Store) GetTrack(id int64) (*Track, error) {
	if cached, found := s.lookups.Get(cacheKey(id)); found {
		track := cached.(Track)
		return &track, nil
	}

	var track Track
	if err := s.db.First(&track, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Newf("track %d not found", id).
				Component(component).
				Category(errors.CategoryNotFound).
				Context("track_id", id).
				Build()
		}
		return nil, s.dbError(err, "get_track")
	}

	s.lookups.Set(cacheKey(id), track, gocache.DefaultExpiration)
	return &track, nil
}

// ListTracks returns every registered track.
func (s *Store) ListTracks() ([]Track, error) {
	var tracks []Track
	if err := s.db.Order("id").Find(&tracks).Error; err != nil {
		return nil, s.dbError(err, "list_tracks")
	}
	return tracks, nil
}

// Resolver adapts the store to the streaming controller's TrackSource.
func (s *Store) Resolver() *Resolver {
	return &Resolver{store: s}
}

// Resolver resolves ids for the streaming controller.
type Resolver struct {
	store *Store
}

// GetTrack implements streaming.TrackSource.
func (r *Resolver) GetTrack(id int64) (processor.Track, bool) {
	track, err := r.store.GetTrack(id)
	if err != nil {
		return processor.Track{}, false
	}
	return processor.Track{
		ID:        track.ID,
		Path:      track.Path,
		Signature: track.Signature,
		DurationS: track.DurationS,
	}, true
}

func (s *Store) dbError(err error, operation string) error {
	return errors.New(err).
		Component(component).
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}

func cacheKey(id int64) string {
	return fmt.Sprintf("track:%d", id)
}

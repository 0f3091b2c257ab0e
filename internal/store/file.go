package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PhiFever/idbadge-scanner/internal/logger"
	"github.com/PhiFever/idbadge-scanner/internal/models"
	"github.com/PhiFever/idbadge-scanner/pkg/utils"
)

// FileStore writes one JSON array per day bucket into a directory
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore opens dir, defaulting to <appdata>/scans
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		var err error
		if dir, err = utils.GetAppDataPath("scans"); err != nil {
			return nil, err
		}
	}
	if _, err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	logger.Infof("[Store] file store at %s", dir)
	return &FileStore{dir: dir}, nil
}

// Dir returns the data directory
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStore) readBucket(path string) ([]models.IdentityRecord, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var recs []models.IdentityRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return recs, nil
}

// Save merges rec into its day file
func (s *FileStore) Save(ctx context.Context, rec models.IdentityRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(DayKey(rec.ScannedAt()))
	bucket, err := s.readBucket(path)
	if err != nil {
		return err
	}
	bucket = append(bucket, rec)
	SortNewestFirst(bucket)

	data, err := json.Marshal(bucket)
	if err != nil {
		return err
	}

	// atomic write: temp file then rename
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Load reads every covered day file
func (s *FileStore) Load(ctx context.Context, q Query) ([]models.IdentityRecord, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(s.dir, KeyPrefix+"*.json"))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var all []models.IdentityRecord
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		day, ok := dayFromKey(strings.TrimSuffix(filepath.Base(path), ".json"))
		if !ok {
			continue
		}
		if !q.coversDay(day, now) {
			continue
		}
		bucket, err := s.readBucket(path)
		if err != nil {
			return nil, err
		}
		all = append(all, bucket...)
	}
	return filter(all, q, now), nil
}

// Close is a no-op
func (s *FileStore) Close() error {
	return nil
}

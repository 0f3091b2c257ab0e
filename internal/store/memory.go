package store

import (
	"context"
	"sync"
	"time"

	"github.com/PhiFever/idbadge-scanner/internal/models"
)

// MemoryStore keeps day buckets in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[string][]models.IdentityRecord
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string][]models.IdentityRecord)}
}

// Save merges rec into its day bucket
func (s *MemoryStore) Save(ctx context.Context, rec models.IdentityRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := DayKey(rec.ScannedAt())
	bucket := append(s.buckets[key], rec)
	SortNewestFirst(bucket)
	s.buckets[key] = bucket
	return nil
}

// Load returns matching records newest first
func (s *MemoryStore) Load(ctx context.Context, q Query) ([]models.IdentityRecord, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var all []models.IdentityRecord
	for key, bucket := range s.buckets {
		if day, ok := dayFromKey(key); ok && !q.coversDay(day, now) {
			continue
		}
		all = append(all, bucket...)
	}
	return filter(all, q, now), nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/PhiFever/idbadge-scanner/internal/logger"
	"github.com/PhiFever/idbadge-scanner/internal/models"
	"github.com/redis/go-redis/v9"
)

// maxSaveAttempts bounds optimistic-lock retries when two writers race on a bucket
const maxSaveAttempts = 5

// RedisStore keeps each day bucket as a JSON array under its day key
type RedisStore struct {
	client *redis.Client
}

// OpenRedis connects to url (redis://host:port/db) and pings the server
func OpenRedis(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	logger.Infof("[Store] redis store at %s", opts.Addr)
	return NewRedisStore(client), nil
}

// NewRedisStore wraps an existing client
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Save merges rec into its bucket under WATCH, retrying on conflicting writes
func (s *RedisStore) Save(ctx context.Context, rec models.IdentityRecord) error {
	key := DayKey(rec.ScannedAt())

	merge := func(tx *redis.Tx) error {
		var bucket []models.IdentityRecord
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(raw, &bucket); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
		}

		bucket = append(bucket, rec)
		SortNewestFirst(bucket)
		data, err := json.Marshal(bucket)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		err := s.client.Watch(ctx, merge, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		logger.Debugf("[Store] conflict on %s, retrying", key)
	}
	return fmt.Errorf("save to %s: %w", key, redis.TxFailedErr)
}

// Load scans the day keys and merges the covered buckets
func (s *RedisStore) Load(ctx context.Context, q Query) ([]models.IdentityRecord, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	var keys []string
	iter := s.client.Scan(ctx, 0, KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		day, ok := dayFromKey(key)
		if !ok || !q.coversDay(day, now) {
			continue
		}
		keys = append(keys, key)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []models.IdentityRecord{}, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var all []models.IdentityRecord
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// deleted between SCAN and MGET
			continue
		}
		var bucket []models.IdentityRecord
		if err := json.Unmarshal([]byte(raw), &bucket); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		all = append(all, bucket...)
	}
	return filter(all, q, now), nil
}

// Close closes the connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

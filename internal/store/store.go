// Package store persists identity records keyed by calendar day.
//
// Every back-end holds one bucket per local calendar day named
// scan_data_YYYY-MM-DD. Save merges a record into its bucket and Load
// returns the union of buckets filtered by an inclusive time range, newest first.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PhiFever/idbadge-scanner/internal/config"
	"github.com/PhiFever/idbadge-scanner/internal/models"
)

// KeyPrefix prefixes every day bucket
const KeyPrefix = "scan_data_"

// ErrInvalidRange is returned when a query starts after it ends
var ErrInvalidRange = errors.New("invalid date range: start is after end")

// Store is the persistence contract of the scanner
type Store interface {
	Save(ctx context.Context, rec models.IdentityRecord) error
	Load(ctx context.Context, q Query) ([]models.IdentityRecord, error)
	Close() error
}

// Query is an optional inclusive time range. With neither bound set every
// record matches; with only Start set End defaults to now.
type Query struct {
	Start time.Time
	End   time.Time
}

// Validate rejects a range whose explicit start is after its explicit end
func (q Query) Validate() error {
	if !q.Start.IsZero() && !q.End.IsZero() && q.Start.After(q.End) {
		return ErrInvalidRange
	}
	return nil
}

// Bounded reports whether the query filters at all
func (q Query) Bounded() bool {
	return !q.Start.IsZero() || !q.End.IsZero()
}

// bounds returns the range as Unix milliseconds
func (q Query) bounds(now time.Time) (lo, hi int64) {
	if !q.Start.IsZero() {
		lo = q.Start.UnixMilli()
	}
	hi = now.UnixMilli()
	if !q.End.IsZero() {
		hi = q.End.UnixMilli()
	}
	return lo, hi
}

// Match reports whether a record falls inside the range
func (q Query) Match(rec models.IdentityRecord, now time.Time) bool {
	if !q.Bounded() {
		return true
	}
	lo, hi := q.bounds(now)
	return rec.ScanTimestamp >= lo && rec.ScanTimestamp <= hi
}

// coversDay reports whether a day bucket may hold matching records
func (q Query) coversDay(day string, now time.Time) bool {
	if !q.Bounded() {
		return true
	}
	lo, hi := q.bounds(now)
	if day < time.UnixMilli(lo).Format(models.DayLayout) {
		return false
	}
	return day <= time.UnixMilli(hi).Format(models.DayLayout)
}

// DayKey names the bucket for t
func DayKey(t time.Time) string {
	return KeyPrefix + t.Format(models.DayLayout)
}

// dayFromKey extracts YYYY-MM-DD from a bucket name
func dayFromKey(key string) (string, bool) {
	day := strings.TrimPrefix(key, KeyPrefix)
	if day == key {
		return "", false
	}
	if _, err := time.ParseInLocation(models.DayLayout, day, time.Local); err != nil {
		return "", false
	}
	return day, true
}

// SortNewestFirst orders records by descending scan timestamp
func SortNewestFirst(recs []models.IdentityRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].ScanTimestamp > recs[j].ScanTimestamp
	})
}

func filter(recs []models.IdentityRecord, q Query, now time.Time) []models.IdentityRecord {
	out := make([]models.IdentityRecord, 0, len(recs))
	for _, rec := range recs {
		if q.Match(rec, now) {
			out = append(out, rec)
		}
	}
	SortNewestFirst(out)
	return out
}

// Open creates the back-end selected by cfg.Driver
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "file":
		return NewFileStore(cfg.DataDir)
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		return OpenRedis(ctx, cfg.RedisURL)
	case "postgres":
		return OpenPostgres(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

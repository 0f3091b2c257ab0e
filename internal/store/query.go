package store

import (
	"fmt"
	"time"

	"github.com/PhiFever/idbadge-scanner/internal/models"
)

// ParseRange builds a Query from optional date strings. A bare date
// (YYYY-MM-DD) covers the whole local day; RFC 3339 timestamps are exact.
func ParseRange(start, end string) (Query, error) {
	var q Query
	if start != "" {
		t, err := parseBound(start, false)
		if err != nil {
			return Query{}, fmt.Errorf("start: %w", err)
		}
		q.Start = t
	}
	if end != "" {
		t, err := parseBound(end, true)
		if err != nil {
			return Query{}, fmt.Errorf("end: %w", err)
		}
		q.End = t
	}
	if err := q.Validate(); err != nil {
		return Query{}, err
	}
	return q, nil
}

func parseBound(s string, endOfDay bool) (time.Time, error) {
	if day, err := time.ParseInLocation(models.DayLayout, s, time.Local); err == nil {
		if endOfDay {
			return day.AddDate(0, 0, 1).Add(-time.Millisecond), nil
		}
		return day, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}

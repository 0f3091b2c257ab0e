package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentityRecord(t *testing.T) {
	at := time.Date(2025, 1, 12, 23, 59, 0, 0, time.Local)
	rec := NewIdentityRecord(BadgeFields{Name: "JOHN DOE"}, "Area Kargo", at)

	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.Equal(t, "JOHN DOE", rec.Name)
	assert.Equal(t, "Area Kargo", rec.ScanArea)
	assert.Equal(t, at.UnixMilli(), rec.ScanTimestamp)
	assert.Equal(t, "2025-01-12", rec.Day())
	assert.NotNil(t, rec.AccessAreas)
	assert.True(t, rec.ScannedAt().Equal(at))
}

func TestIdentityRecordJSONIsFlat(t *testing.T) {
	rec := NewIdentityRecord(BadgeFields{
		AccessAreas: []string{"A", "B"},
		IDNumber:    "ID.NO.1234.5678",
	}, "Area Kargo", time.UnixMilli(1736700000000))

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "ID.NO.1234.5678", raw["idNumber"])
	assert.Equal(t, float64(1736700000000), raw["scanTimestamp"])
	assert.Equal(t, "Area Kargo", raw["scanArea"])
	assert.NotContains(t, raw, "BadgeFields")
}

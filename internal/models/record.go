package models

import (
	"time"

	"github.com/google/uuid"
)

// DayLayout formats the calendar day a record belongs to
const DayLayout = "2006-01-02"

// BadgeFields are the values read off the badge. Unresolved values carry
// their sentinel, never an empty string.
type BadgeFields struct {
	IssuingAuthority string   `json:"issuingAuthority"`
	Location         string   `json:"location"`
	ExpiryDate       string   `json:"expiryDate"`
	AccessAreas      []string `json:"accessAreas"`
	Name             string   `json:"name"`
	Position         string   `json:"position"`
	Company          string   `json:"company"`
	IDNumber         string   `json:"idNumber"`
}

// IdentityRecord is one successful scan. It is immutable once created.
type IdentityRecord struct {
	ID uuid.UUID `json:"id"`
	BadgeFields
	ScanArea string `json:"scanArea"`
	// ScanTimestamp is Unix milliseconds
	ScanTimestamp int64 `json:"scanTimestamp"`
}

// NewIdentityRecord stamps fields with a fresh ID, the scan area and time
func NewIdentityRecord(fields BadgeFields, area string, at time.Time) IdentityRecord {
	if fields.AccessAreas == nil {
		fields.AccessAreas = []string{}
	}
	return IdentityRecord{
		ID:            uuid.New(),
		BadgeFields:   fields,
		ScanArea:      area,
		ScanTimestamp: at.UnixMilli(),
	}
}

// ScannedAt returns the scan time in local time
func (r IdentityRecord) ScannedAt() time.Time {
	return time.UnixMilli(r.ScanTimestamp)
}

// Day returns the local calendar day of the scan, e.g. 2025-01-12
func (r IdentityRecord) Day() string {
	return r.ScannedAt().Format(DayLayout)
}

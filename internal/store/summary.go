package store

import "github.com/PhiFever/idbadge-scanner/internal/models"

// FilterByArea keeps records scanned at area; an empty area keeps all
func FilterByArea(recs []models.IdentityRecord, area string) []models.IdentityRecord {
	if area == "" {
		return recs
	}
	out := make([]models.IdentityRecord, 0, len(recs))
	for _, rec := range recs {
		if rec.ScanArea == area {
			out = append(out, rec)
		}
	}
	return out
}

// Summary aggregates a history for dashboards
type Summary struct {
	Total    int                    `json:"total"`
	LastScan *models.IdentityRecord `json:"lastScan,omitempty"`
	ByArea   map[string]int         `json:"byArea"`
}

// Summarize counts records per scan area. recs must be newest first.
func Summarize(recs []models.IdentityRecord) Summary {
	sum := Summary{
		Total:  len(recs),
		ByArea: make(map[string]int),
	}
	if len(recs) > 0 {
		last := recs[0]
		sum.LastScan = &last
	}
	for _, rec := range recs {
		sum.ByArea[rec.ScanArea]++
	}
	return sum
}

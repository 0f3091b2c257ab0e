package store

import (
	"context"
	"fmt"
	"time"

	"github.com/PhiFever/idbadge-scanner/internal/logger"
	"github.com/PhiFever/idbadge-scanner/internal/models"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// scanRow is the table layout of one record. ScanDay is the bucket key.
type scanRow struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	ScanDay          string    `gorm:"size:10;index;not null"`
	ScanTimestamp    int64     `gorm:"index;not null"`
	ScanArea         string    `gorm:"size:255"`
	IssuingAuthority string    `gorm:"size:255"`
	Location         string    `gorm:"size:255"`
	ExpiryDate       string    `gorm:"size:32"`
	AccessAreas      []string  `gorm:"serializer:json"`
	Name             string    `gorm:"size:255"`
	Position         string    `gorm:"size:255"`
	Company          string    `gorm:"size:255"`
	IDNumber         string    `gorm:"column:id_number;size:64"`
	CreatedAt        time.Time
}

func (scanRow) TableName() string {
	return "scan_records"
}

func rowFromRecord(rec models.IdentityRecord) scanRow {
	return scanRow{
		ID:               rec.ID,
		ScanDay:          rec.Day(),
		ScanTimestamp:    rec.ScanTimestamp,
		ScanArea:         rec.ScanArea,
		IssuingAuthority: rec.IssuingAuthority,
		Location:         rec.Location,
		ExpiryDate:       rec.ExpiryDate,
		AccessAreas:      rec.AccessAreas,
		Name:             rec.Name,
		Position:         rec.Position,
		Company:          rec.Company,
		IDNumber:         rec.IDNumber,
	}
}

func (r scanRow) record() models.IdentityRecord {
	areas := r.AccessAreas
	if areas == nil {
		areas = []string{}
	}
	return models.IdentityRecord{
		ID: r.ID,
		BadgeFields: models.BadgeFields{
			IssuingAuthority: r.IssuingAuthority,
			Location:         r.Location,
			ExpiryDate:       r.ExpiryDate,
			AccessAreas:      areas,
			Name:             r.Name,
			Position:         r.Position,
			Company:          r.Company,
			IDNumber:         r.IDNumber,
		},
		ScanArea:      r.ScanArea,
		ScanTimestamp: r.ScanTimestamp,
	}
}

// PostgresStore keeps one row per record, indexed by day and timestamp
type PostgresStore struct {
	db *gorm.DB
}

// OpenPostgres connects to dsn and migrates the scan_records table
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect postgres database: %w", err)
	}
	s, err := NewPostgresStore(ctx, db)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, err
	}
	logger.Info("[Store] postgres store ready")
	return s, nil
}

// NewPostgresStore migrates the schema on an existing connection
func NewPostgresStore(ctx context.Context, db *gorm.DB) (*PostgresStore, error) {
	if err := db.WithContext(ctx).AutoMigrate(&scanRow{}); err != nil {
		return nil, fmt.Errorf("migrate scan_records: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Save inserts rec
func (s *PostgresStore) Save(ctx context.Context, rec models.IdentityRecord) error {
	row := rowFromRecord(rec)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert scan record: %w", err)
	}
	return nil
}

// Load selects the range newest first
func (s *PostgresStore) Load(ctx context.Context, q Query) ([]models.IdentityRecord, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Model(&scanRow{})
	if q.Bounded() {
		lo, hi := q.bounds(time.Now())
		tx = tx.Where("scan_timestamp BETWEEN ? AND ?", lo, hi)
	}

	var rows []scanRow
	if err := tx.Order("scan_timestamp DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query scan records: %w", err)
	}

	recs := make([]models.IdentityRecord, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, r.record())
	}
	return recs, nil
}

// Close closes the underlying connection pool
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

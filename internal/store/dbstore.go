package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lourdes7u7/analisisAudio/internal/config"
	"github.com/lourdes7u7/analisisAudio/internal/logging"
	"github.com/lourdes7u7/analisisAudio/internal/report"
)

// ReportRecord is the database row for one report document. The tree itself
// is stored as a single JSONB column; the summary columns are denormalized
// for cheap listing.
type ReportRecord struct {
	ID          string `gorm:"primaryKey"`
	PatientName string
	Created     string
	Status      string
	Data        []byte `gorm:"type:jsonb"`
}

// DBStore persists report documents in PostgreSQL, one row per report.
type DBStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewDBStore connects to the configured database and runs migrations.
func NewDBStore(dbConf config.DatabaseConfig, log *zap.Logger) (*DBStore, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		dbConf.Host, dbConf.User, dbConf.Password, dbConf.DBName, dbConf.Port)

	gormLogger := logging.NewGormZapLogger(log)
	gormLogger.LogLevel = logger.Warn

	// TranslateError turns the driver's unique-constraint violation into
	// gorm.ErrDuplicatedKey, which Create maps to ErrExists.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&ReportRecord{}); err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	log.Info("Database connection established successfully.")
	return &DBStore{db: db, log: log}, nil
}

// Create inserts the new row and relies on the primary-key constraint for
// uniqueness: a concurrent create for the same ID loses the insert race and
// gets ErrExists, never a silent overwrite.
func (s *DBStore) Create(ctx context.Context, r *report.Report) error {
	rec, err := toRecord(r)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrExists
		}
		return err
	}
	return nil
}

func (s *DBStore) Get(ctx context.Context, id string) (*report.Report, error) {
	var rec ReportRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var r report.Report
	if err := json.Unmarshal(rec.Data, &r); err != nil {
		return nil, fmt.Errorf("could not decode report %s: %w", id, err)
	}
	return &r, nil
}

func (s *DBStore) Save(ctx context.Context, r *report.Report) error {
	rec, err := toRecord(r)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(rec).Error
}

func (s *DBStore) List(ctx context.Context) ([]Summary, error) {
	var recs []ReportRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, err
	}
	summaries := make([]Summary, 0, len(recs))
	for _, rec := range recs {
		summaries = append(summaries, Summary{
			ReportID:    rec.ID,
			PatientName: rec.PatientName,
			Created:     rec.Created,
			Status:      rec.Status,
		})
	}
	return summaries, nil
}

func toRecord(r *report.Report) (*ReportRecord, error) {
	data, err := Marshal(r)
	if err != nil {
		return nil, err
	}
	return &ReportRecord{
		ID:          r.ReportDetails.ReportID,
		PatientName: r.PatientDetails.PatientFullName,
		Created:     r.ReportDetails.ReportCreated,
		Status:      string(r.ReportDetails.ReportStatus),
		Data:        data,
	}, nil
}

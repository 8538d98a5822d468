// Package index mirrors the benchmark history document into a SQL database
// for querying, and records the alerts raised on append.
package index

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ethpandaops/benchtrack/pkg/config"
	"github.com/ethpandaops/benchtrack/pkg/history"
)

const batchSize = 100

// Store provides persistence for the indexed benchmark data.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	SyncSuite(ctx context.Context, suite string, entries []history.Entry) error
	ListSeries(ctx context.Context, suite, bench string) ([]Point, error)
	ListSuites(ctx context.Context) ([]SuiteSummary, error)

	RecordAlerts(
		ctx context.Context, suite string, entry history.Entry, alerts []history.Alert,
	) error
	ListAlerts(ctx context.Context, suite string, limit int) ([]AlertRecord, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new index Store backed by the configured database driver.
func NewStore(log logrus.FieldLogger, cfg *config.DatabaseConfig) Store {
	return &store{
		log: log.WithField("component", "index-store"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening index database: %w", err)
	}

	if s.cfg.Driver == "sqlite" {
		// SQLite allows a single writer; an in-memory database is also
		// private to its connection.
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("getting underlying db: %w", err)
		}

		sqlDB.SetMaxOpenConns(1)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(
		&Point{},
		&AlertRecord{},
	); err != nil {
		return fmt.Errorf("running index migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).
		Info("Index database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// SyncSuite replaces every indexed point of suite with those of entries in
// a single transaction.
func (s *store) SyncSuite(
	ctx context.Context, suite string, entries []history.Entry,
) error {
	points := make([]*Point, 0, len(entries)*4)

	for i := range entries {
		e := &entries[i]

		for _, b := range e.Benches {
			points = append(points, &Point{
				Suite:    suite,
				Bench:    b.Name,
				CommitID: e.Commit.ID,
				Date:     e.Date,
				Value:    b.Value,
				Unit:     b.Unit,
				Range:    b.Range,
				Extra:    b.Extra,
				Tool:     string(e.Tool),
			})
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("suite = ?", suite).Delete(&Point{}).Error; err != nil {
			return fmt.Errorf("deleting points of suite %s: %w", suite, err)
		}

		if len(points) == 0 {
			return nil
		}

		if err := tx.CreateInBatches(points, batchSize).Error; err != nil {
			return fmt.Errorf("inserting points of suite %s: %w", suite, err)
		}

		return nil
	})
}

// ListSeries returns the points of one benchmark, oldest first.
func (s *store) ListSeries(
	ctx context.Context, suite, bench string,
) ([]Point, error) {
	var points []Point
	if err := s.db.WithContext(ctx).
		Where("suite = ? AND bench = ?", suite, bench).
		Order("date ASC, id ASC").
		Find(&points).Error; err != nil {
		return nil, fmt.Errorf("listing series: %w", err)
	}

	return points, nil
}

// ListSuites summarizes every indexed suite, sorted by name.
func (s *store) ListSuites(ctx context.Context) ([]SuiteSummary, error) {
	var suites []SuiteSummary
	if err := s.db.WithContext(ctx).
		Model(&Point{}).
		Select("suite AS name, COUNT(*) AS points, " +
			"COUNT(DISTINCT bench) AS benches, MAX(date) AS last_date").
		Group("suite").
		Order("suite ASC").
		Scan(&suites).Error; err != nil {
		return nil, fmt.Errorf("listing suites: %w", err)
	}

	return suites, nil
}

// RecordAlerts upserts the alerts raised for entry, keyed by suite, bench
// and commit.
func (s *store) RecordAlerts(
	ctx context.Context, suite string, entry history.Entry, alerts []history.Alert,
) error {
	if len(alerts) == 0 {
		return nil
	}

	now := time.Now().UTC()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, a := range alerts {
			rec := &AlertRecord{
				Suite:          suite,
				Bench:          a.Name,
				CommitID:       entry.Commit.ID,
				PreviousCommit: a.PreviousCommit,
				Kind:           string(a.Kind),
				Ratio:          a.Ratio,
				Baseline:       a.Baseline,
				Current:        a.Current,
				Unit:           a.Unit,
				Date:           entry.Date,
				RecordedAt:     now,
			}

			// Assign a separate value: FirstOrCreate scans an existing row
			// into rec before the assignments are applied. A map keeps zero
			// values such as the ratio of an indeterminate alert.
			if err := tx.
				Where("suite = ? AND bench = ? AND commit_id = ?",
					rec.Suite, rec.Bench, rec.CommitID).
				Assign(map[string]any{
					"previous_commit": rec.PreviousCommit,
					"kind":            rec.Kind,
					"ratio":           rec.Ratio,
					"baseline":        rec.Baseline,
					"current":         rec.Current,
					"unit":            rec.Unit,
					"date":            rec.Date,
					"recorded_at":     rec.RecordedAt,
				}).
				FirstOrCreate(&AlertRecord{
					Suite:    rec.Suite,
					Bench:    rec.Bench,
					CommitID: rec.CommitID,
				}).Error; err != nil {
				return fmt.Errorf("upserting alert: %w", err)
			}
		}

		return nil
	})
}

// ListAlerts returns the newest alerts of suite. A non-positive limit
// returns all of them.
func (s *store) ListAlerts(
	ctx context.Context, suite string, limit int,
) ([]AlertRecord, error) {
	q := s.db.WithContext(ctx).
		Where("suite = ?", suite).
		Order("date DESC, id DESC")

	if limit > 0 {
		q = q.Limit(limit)
	}

	var alerts []AlertRecord
	if err := q.Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}

	return alerts, nil
}

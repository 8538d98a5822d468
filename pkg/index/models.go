package index

import "time"

// Point is one benchmark sample, denormalized from a history entry.
type Point struct {
	ID       uint   `gorm:"primaryKey"`
	Suite    string `gorm:"not null;uniqueIndex:idx_points_suite_bench_commit"`
	Bench    string `gorm:"not null;uniqueIndex:idx_points_suite_bench_commit"`
	CommitID string `gorm:"not null;uniqueIndex:idx_points_suite_bench_commit"`
	Date     int64  `gorm:"index"`
	Value    float64
	Unit     string
	Range    string
	Extra    string `gorm:"type:text"`
	Tool     string
}

// AlertRecord is an alert raised when an entry was appended.
type AlertRecord struct {
	ID             uint   `gorm:"primaryKey"`
	Suite          string `gorm:"not null;uniqueIndex:idx_alerts_suite_bench_commit"`
	Bench          string `gorm:"not null;uniqueIndex:idx_alerts_suite_bench_commit"`
	CommitID       string `gorm:"not null;uniqueIndex:idx_alerts_suite_bench_commit"`
	PreviousCommit string
	Kind           string `gorm:"index"`
	Ratio          float64
	Baseline       float64
	Current        float64
	Unit           string
	Date           int64 `gorm:"index"`
	RecordedAt     time.Time
}

// SuiteSummary aggregates the indexed points of one suite.
type SuiteSummary struct {
	Name     string `json:"name"`
	Points   int64  `json:"points"`
	Benches  int64  `json:"benches"`
	LastDate int64  `json:"last_date"`
}

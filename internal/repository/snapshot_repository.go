package repository

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/procflow/internal/metrics"
	"github.com/example/procflow/internal/models"
)

// SnapshotRepository is a metrics.SnapshotStore persisting snapshots in
// the relational database, one row per (metric type, period) pair.
type SnapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository constructs a store using the provided gorm DB.
func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Get returns the stored snapshot, or nil when none exists for the key.
func (r *SnapshotRepository) Get(ctx context.Context, metricType metrics.MetricType, period metrics.Period) (*metrics.Snapshot, error) {
	var row models.MetricSnapshot
	err := r.db.WithContext(ctx).
		First(&row, "metric_type = ? AND period = ?", string(metricType), string(period)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &metrics.Snapshot{
		MetricType: metrics.MetricType(row.MetricType),
		Period:     metrics.Period(row.Period),
		Value:      json.RawMessage(row.Value),
		ComputedAt: row.ComputedAt,
	}, nil
}

// Put upserts the snapshot row, last writer wins.
func (r *SnapshotRepository) Put(ctx context.Context, snapshot metrics.Snapshot) error {
	row := models.MetricSnapshot{
		MetricType: string(snapshot.MetricType),
		Period:     string(snapshot.Period),
		Value:      string(snapshot.Value),
		ComputedAt: snapshot.ComputedAt,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "metric_type"}, {Name: "period"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "computed_at"}),
		}).
		Create(&row).Error
	return errors.WithStack(err)
}

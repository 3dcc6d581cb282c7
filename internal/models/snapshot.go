package models

import "time"

// MetricSnapshot is a cached dashboard computation persisted per
// (metric type, period) pair. Value holds the canonical JSON payload.
type MetricSnapshot struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MetricType string    `gorm:"uniqueIndex:idx_metric_period" json:"metricType"`
	Period     string    `gorm:"uniqueIndex:idx_metric_period" json:"period"`
	Value      string    `gorm:"type:jsonb" json:"value"`
	ComputedAt time.Time `json:"computedAt"`
}

package delivery

import (
	"context"
	"time"
)

// Archive defines long-term storage of delivery metrics (ClickHouse)
type Archive interface {
	// Insert delivery attempts
	InsertBatch(ctx context.Context, metrics []Metric) error

	// Get per-day volumes from the materialized view
	GetDailyVolumes(ctx context.Context, since time.Time) ([]DailyVolume, error)

	// Get the most recent failed attempts
	GetRecentFailures(ctx context.Context, limit int) ([]Metric, error)
}

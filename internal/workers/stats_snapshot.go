package workers

import (
	"context"
	"time"

	"alertbus/internal/metrics"
	"alertbus/internal/stats"
	"alertbus/pkg/errors"
	"alertbus/pkg/logger"
)

// SummarySource provides the current stats summary
type SummarySource interface {
	GetSummary() stats.Summary
}

// SnapshotStore persists a JSON-encodable value under a key
type SnapshotStore interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// StatsSnapshotWorker publishes the stats summary for external dashboards
type StatsSnapshotWorker struct {
	*BaseWorker
	source SummarySource
	store  SnapshotStore
	key    string
	ttl    time.Duration
}

// NewStatsSnapshotWorker creates the worker. Snapshots expire after three intervals
// so a stopped service does not leave a stale summary behind.
func NewStatsSnapshotWorker(source SummarySource, store SnapshotStore, key string, interval time.Duration, enabled bool, log *logger.Logger) *StatsSnapshotWorker {
	return &StatsSnapshotWorker{
		BaseWorker: NewBaseWorker("stats_snapshot", interval, enabled, log),
		source:     source,
		store:      store,
		key:        key,
		ttl:        3 * interval,
	}
}

func (w *StatsSnapshotWorker) Run(ctx context.Context) error {
	summary := w.source.GetSummary()
	err := w.store.Set(ctx, w.key, summary, w.ttl)
	metrics.RecordStoreOperation("redis", "stats_snapshot", err)
	if err != nil {
		return errors.Wrapf(err, "store stats snapshot under %s", w.key)
	}
	w.Log().Debugw("Stats snapshot stored", "key", w.key, "total_sent", summary.TotalSent)
	return nil
}

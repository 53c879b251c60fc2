package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"alertbus/internal/domain/delivery"
	"alertbus/internal/metrics"
	chbatch "alertbus/pkg/clickhouse"
	"alertbus/pkg/errors"
	"alertbus/pkg/logger"
)

// Compile-time checks
var _ delivery.Archive = (*MetricArchive)(nil)

const metricsTable = "notification_metrics"

// Schema creates the metrics table and its per-day rollup view
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS notification_metrics (
		dispatch_id      String,
		type             LowCardinality(String),
		priority         LowCardinality(String),
		channel          LowCardinality(String),
		timestamp        DateTime64(3),
		success          Bool,
		voice_sent       Bool,
		delivery_time_ms Float64,
		user_id          String,
		error            String
	) ENGINE = MergeTree
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (timestamp, type)
	TTL toDateTime(timestamp) + INTERVAL 180 DAY`,

	`CREATE MATERIALIZED VIEW IF NOT EXISTS notification_metrics_daily_mv
	ENGINE = SummingMergeTree
	ORDER BY (date, channel)
	AS SELECT
		toDate(timestamp) AS date,
		channel,
		count() AS total,
		countIf(success) AS successful,
		countIf(NOT success) AS failed,
		sum(delivery_time_ms) AS delivery_ms_sum
	FROM notification_metrics
	GROUP BY date, channel`,
}

// MetricArchive stores delivery metrics in ClickHouse. Enqueue buffers rows
// for the batch writer; InsertBatch writes synchronously.
type MetricArchive struct {
	conn   driver.Conn
	writer *chbatch.BatchWriter[delivery.Metric]
	log    *logger.Logger
}

// ArchiveConfig tunes batching
type ArchiveConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

// NewMetricArchive creates the archive; call Start to begin background flushing
func NewMetricArchive(conn driver.Conn, cfg ArchiveConfig, log *logger.Logger) *MetricArchive {
	if log == nil {
		log = logger.Get()
	}
	a := &MetricArchive{
		conn: conn,
		log:  log.With("component", "metric_archive"),
	}
	a.writer = chbatch.NewBatchWriter(chbatch.BatchWriterConfig[delivery.Metric]{
		FlushFunc:    a.InsertBatch,
		TableName:    metricsTable,
		MaxBatchSize: cfg.BatchSize,
		MaxAge:       cfg.FlushInterval,
		Logger:       log,
	})
	return a
}

// Migrate creates the schema if missing
func (a *MetricArchive) Migrate(ctx context.Context) error {
	for _, stmt := range Schema {
		if err := a.conn.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to migrate notification metrics schema")
		}
	}
	return nil
}

// Start begins background flushing
func (a *MetricArchive) Start(ctx context.Context) {
	a.writer.Start(ctx)
}

// Stop flushes buffered rows
func (a *MetricArchive) Stop(ctx context.Context) error {
	return a.writer.Stop(ctx)
}

// Enqueue buffers one metric without blocking
func (a *MetricArchive) Enqueue(m delivery.Metric) {
	if !a.writer.Add(m) {
		metrics.RecordStoreOperation(metricsTable, "enqueue", errors.ErrRateLimitExceeded)
		a.log.Debugw("Archive buffer full, metric dropped", "dispatch_id", m.DispatchID)
	}
}

// Stats reports the batch writer state
func (a *MetricArchive) Stats() chbatch.BatchWriterStats {
	return a.writer.GetStats()
}

// InsertBatch inserts delivery attempts in one batch
func (a *MetricArchive) InsertBatch(ctx context.Context, rows []delivery.Metric) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := a.conn.PrepareBatch(ctx, `INSERT INTO notification_metrics (
		dispatch_id, type, priority, channel, timestamp,
		success, voice_sent, delivery_time_ms, user_id, error
	)`)
	if err != nil {
		metrics.RecordStoreOperation(metricsTable, "insert", err)
		return errors.Wrap(err, "failed to prepare metrics batch")
	}

	for _, m := range rows {
		err := batch.Append(
			m.DispatchID, m.Type, m.Priority, string(m.Channel), m.Timestamp,
			m.Success, m.VoiceSent, m.DeliveryTimeMs, m.UserID, m.Error,
		)
		if err != nil {
			_ = batch.Abort()
			metrics.RecordStoreOperation(metricsTable, "insert", err)
			return errors.Wrap(err, "failed to append metric")
		}
	}

	err = batch.Send()
	metrics.RecordStoreOperation(metricsTable, "insert", err)
	if err != nil {
		return errors.Wrap(err, "failed to send metrics batch")
	}
	return nil
}

// GetDailyVolumes reads per-day, per-channel volumes from the rollup view
func (a *MetricArchive) GetDailyVolumes(ctx context.Context, since time.Time) ([]delivery.DailyVolume, error) {
	var out []delivery.DailyVolume
	err := a.conn.Select(ctx, &out, `
		SELECT
			date,
			channel,
			sum(total) AS total,
			sum(successful) AS successful,
			sum(failed) AS failed,
			if(sum(total) = 0, 0, sum(delivery_ms_sum) / sum(total)) AS avg_delivery_ms
		FROM notification_metrics_daily_mv
		WHERE date >= toDate(?)
		GROUP BY date, channel
		ORDER BY date ASC, channel ASC`, since)
	metrics.RecordStoreOperation(metricsTable, "daily_volumes", err)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query daily volumes")
	}
	return out, nil
}

// GetRecentFailures returns the newest failed attempts, newest first
func (a *MetricArchive) GetRecentFailures(ctx context.Context, limit int) ([]delivery.Metric, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []metricRow
	err := a.conn.Select(ctx, &rows, `
		SELECT dispatch_id, type, priority, channel, timestamp,
			success, voice_sent, delivery_time_ms, user_id, error
		FROM notification_metrics
		WHERE NOT success
		ORDER BY timestamp DESC
		LIMIT ?`, limit)
	metrics.RecordStoreOperation(metricsTable, "recent_failures", err)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query recent failures")
	}

	out := make([]delivery.Metric, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toMetric())
	}
	return out, nil
}

// metricRow mirrors the table with plain column types for scanning
type metricRow struct {
	DispatchID     string    `ch:"dispatch_id"`
	Type           string    `ch:"type"`
	Priority       string    `ch:"priority"`
	Channel        string    `ch:"channel"`
	Timestamp      time.Time `ch:"timestamp"`
	Success        bool      `ch:"success"`
	VoiceSent      bool      `ch:"voice_sent"`
	DeliveryTimeMs float64   `ch:"delivery_time_ms"`
	UserID         string    `ch:"user_id"`
	Error          string    `ch:"error"`
}

func (r metricRow) toMetric() delivery.Metric {
	return delivery.Metric{
		DispatchID:     r.DispatchID,
		Type:           r.Type,
		Priority:       r.Priority,
		Channel:        delivery.Channel(r.Channel),
		Timestamp:      r.Timestamp,
		Success:        r.Success,
		VoiceSent:      r.VoiceSent,
		DeliveryTimeMs: r.DeliveryTimeMs,
		UserID:         r.UserID,
		Error:          r.Error,
	}
}

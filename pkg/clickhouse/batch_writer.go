package clickhouse

import (
	"context"
	"sync"
	"time"

	"alertbus/pkg/logger"
)

// FlushFunc performs the actual INSERT of one batch
type FlushFunc[T any] func(ctx context.Context, batch []T) error

// BatchWriter accumulates rows in memory and flushes them in batches from a
// background goroutine. Add never blocks on the database: a full batch only
// wakes the flush loop, and rows beyond MaxPending are dropped.
type BatchWriter[T any] struct {
	flushFunc FlushFunc[T]
	mu        sync.Mutex
	buffer    []T
	log       *logger.Logger

	maxBatchSize int
	maxPending   int
	maxAge       time.Duration
	tableName    string

	lastFlush time.Time
	dropped   int64
	failed    int64
	flushed   int64

	wake    chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// BatchWriterConfig contains configuration for BatchWriter
type BatchWriterConfig[T any] struct {
	FlushFunc    FlushFunc[T]
	TableName    string
	MaxBatchSize int           // Default: 500
	MaxPending   int           // Default: 10 x MaxBatchSize
	MaxAge       time.Duration // Default: 5s
	Logger       *logger.Logger
}

// NewBatchWriter creates a batch writer; call Start to begin flushing
func NewBatchWriter[T any](cfg BatchWriterConfig[T]) *BatchWriter[T] {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 500
	}
	if cfg.MaxPending < cfg.MaxBatchSize {
		cfg.MaxPending = 10 * cfg.MaxBatchSize
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 5 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	return &BatchWriter[T]{
		flushFunc:    cfg.FlushFunc,
		buffer:       make([]T, 0, cfg.MaxBatchSize),
		maxBatchSize: cfg.MaxBatchSize,
		maxPending:   cfg.MaxPending,
		maxAge:       cfg.MaxAge,
		tableName:    cfg.TableName,
		lastFlush:    time.Now(),
		wake:         make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
		log:          log.With("component", "batch_writer", "table", cfg.TableName),
	}
}

// Start begins the background flush loop
func (bw *BatchWriter[T]) Start(ctx context.Context) {
	bw.mu.Lock()
	if bw.running {
		bw.mu.Unlock()
		return
	}
	bw.running = true
	bw.mu.Unlock()

	bw.wg.Add(1)
	go bw.flushLoop(ctx)

	bw.log.Infow("BatchWriter started", "max_batch_size", bw.maxBatchSize, "max_age", bw.maxAge)
}

// Add buffers one row. It reports false when the row was dropped because the
// buffer is at MaxPending.
func (bw *BatchWriter[T]) Add(item T) bool {
	bw.mu.Lock()
	if len(bw.buffer) >= bw.maxPending {
		bw.dropped++
		bw.mu.Unlock()
		return false
	}
	bw.buffer = append(bw.buffer, item)
	full := len(bw.buffer) >= bw.maxBatchSize
	bw.mu.Unlock()

	if full {
		select {
		case bw.wake <- struct{}{}:
		default:
		}
	}
	return true
}

// Flush writes all buffered rows. A failed batch is counted and discarded.
func (bw *BatchWriter[T]) Flush(ctx context.Context) error {
	bw.mu.Lock()
	if len(bw.buffer) == 0 {
		bw.mu.Unlock()
		return nil
	}
	batch := bw.buffer
	bw.buffer = make([]T, 0, bw.maxBatchSize)
	bw.lastFlush = time.Now()
	bw.mu.Unlock()

	start := time.Now()
	err := bw.flushFunc(ctx, batch)
	duration := time.Since(start)

	bw.mu.Lock()
	if err != nil {
		bw.failed += int64(len(batch))
	} else {
		bw.flushed += int64(len(batch))
	}
	bw.mu.Unlock()

	if err != nil {
		bw.log.Errorw("Failed to flush batch", "rows", len(batch), "took", duration, "error", err)
		return err
	}
	bw.log.Debugw("Flushed batch", "rows", len(batch), "took", duration)
	return nil
}

func (bw *BatchWriter[T]) flushLoop(ctx context.Context) {
	defer bw.wg.Done()

	ticker := time.NewTicker(bw.maxAge)
	defer ticker.Stop()

	final := func() {
		if err := bw.Flush(context.Background()); err != nil {
			bw.log.Errorw("Final flush failed", "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			final()
			return
		case <-bw.stopCh:
			final()
			return
		case <-bw.wake:
			_ = bw.Flush(ctx)
		case <-ticker.C:
			_ = bw.Flush(ctx)
		}
	}
}

// Stop flushes remaining rows and waits for the loop to exit
func (bw *BatchWriter[T]) Stop(ctx context.Context) error {
	bw.mu.Lock()
	if !bw.running {
		bw.mu.Unlock()
		return nil
	}
	bw.running = false
	bw.mu.Unlock()

	close(bw.stopCh)

	done := make(chan struct{})
	go func() {
		bw.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		bw.log.Info("BatchWriter stopped")
		return nil
	case <-ctx.Done():
		bw.log.Warn("BatchWriter stop timed out")
		return ctx.Err()
	}
}

// BufferSize returns the number of rows waiting for a flush
func (bw *BatchWriter[T]) BufferSize() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}

// BatchWriterStats is a point-in-time view of the writer
type BatchWriterStats struct {
	BufferSize   int           `json:"buffer_size"`
	LastFlushAge time.Duration `json:"last_flush_age"`
	Flushed      int64         `json:"flushed"`
	Failed       int64         `json:"failed"`
	Dropped      int64         `json:"dropped"`
	Running      bool          `json:"running"`
}

// GetStats returns current statistics
func (bw *BatchWriter[T]) GetStats() BatchWriterStats {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	return BatchWriterStats{
		BufferSize:   len(bw.buffer),
		LastFlushAge: time.Since(bw.lastFlush),
		Flushed:      bw.flushed,
		Failed:       bw.failed,
		Dropped:      bw.dropped,
		Running:      bw.running,
	}
}

package bootstrap

import (
	"context"
	"sync"
	"time"

	chclient "alertbus/internal/adapters/clickhouse"
	"alertbus/internal/adapters/kafka"
	redisclient "alertbus/internal/adapters/redis"
	"alertbus/internal/api"
	chrepo "alertbus/internal/repository/clickhouse"
	"alertbus/internal/workers"
	"alertbus/pkg/errors"
	"alertbus/pkg/logger"
)

// Lifecycle manages graceful shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		shutdownTimeout: 60 * time.Second,
	}
}

// Shutdown performs coordinated cleanup in order:
// 1. No new requests accepted
// 2. Workers finish cleanly
// 3. Kafka consumer unblocks before waiting for goroutines
// 4. Archived metrics are flushed
// 5. Producer closes after the consumer
// 6. Errors and logs flushed
// 7. Data stores last (other components may need them)
func (l *Lifecycle) Shutdown(
	wg *sync.WaitGroup,
	httpServer *api.Server,
	workerScheduler *workers.Scheduler,
	eventConsumer *kafka.Consumer,
	archive *chrepo.MetricArchive,
	kafkaProducer *kafka.Producer,
	chClient *chclient.Client,
	redisClient *redisclient.Client,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	log.Info("[1/8] Stopping HTTP server...")
	if httpServer != nil {
		httpCtx, httpCancel := context.WithTimeout(shutdownCtx, 5*time.Second)
		if err := httpServer.Shutdown(httpCtx); err != nil {
			log.Errorw("HTTP server shutdown failed", "error", err)
		}
		httpCancel()
	}

	log.Info("[2/8] Stopping background workers...")
	if workerScheduler != nil && workerScheduler.IsRunning() {
		if err := workerScheduler.Stop(); err != nil {
			log.Errorw("Workers shutdown failed", "error", err)
		} else {
			log.Info("✓ Workers stopped")
		}
	}

	// closing the reader unblocks ReadMessage
	log.Info("[3/8] Closing Kafka consumer...")
	if eventConsumer != nil {
		if err := eventConsumer.Close(); err != nil {
			log.Errorw("Kafka consumer close failed", "error", err)
		}
	}

	log.Info("[4/8] Waiting for consumer goroutines...")
	l.waitForGoroutines(wg, 10*time.Second, log)

	log.Info("[5/8] Flushing metric archive...")
	if archive != nil {
		archiveCtx, archiveCancel := context.WithTimeout(shutdownCtx, 15*time.Second)
		if err := archive.Stop(archiveCtx); err != nil {
			log.Errorw("Metric archive flush failed", "error", err)
		} else {
			log.Info("✓ Metric archive flushed")
		}
		archiveCancel()
	}

	log.Info("[6/8] Closing Kafka producer...")
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Errorw("Kafka producer close failed", "error", err)
		} else {
			log.Info("✓ Kafka producer closed")
		}
	}

	log.Info("[7/8] Flushing error tracker and logs...")
	l.flushErrorTracker(shutdownCtx, errorTracker, log)
	_ = logger.Sync()

	log.Info("[8/8] Closing data stores...")
	l.closeStores(chClient, redisClient, log)

	log.Info("✅ Graceful shutdown complete")
}

// waitForGoroutines waits for all goroutines with a timeout
func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("✓ All goroutines finished")
	case <-time.After(timeout):
		log.Warnw("Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

func (l *Lifecycle) flushErrorTracker(ctx context.Context, tracker errors.Tracker, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Errorw("Error tracker flush failed", "error", err)
	}
}

func (l *Lifecycle) closeStores(chClient *chclient.Client, redisClient *redisclient.Client, log *logger.Logger) {
	var errs errors.MultiError

	if chClient != nil {
		if err := chClient.Close(); err != nil {
			errs.Add(errors.Wrap(err, "clickhouse"))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			errs.Add(errors.Wrap(err, "redis"))
		}
	}

	if errs.HasErrors() {
		log.Errorw("Data store close errors", "error", errs.ToError())
	} else {
		log.Info("✓ Data stores closed")
	}
}

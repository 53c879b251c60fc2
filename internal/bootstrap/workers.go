package bootstrap

import (
	"alertbus/internal/adapters/config"
	redisclient "alertbus/internal/adapters/redis"
	"alertbus/internal/workers"
	"alertbus/pkg/errors"
	"alertbus/pkg/logger"
)

// provideWorkers registers the periodic maintenance workers
func provideWorkers(
	cfg *config.Config,
	core *Core,
	redis *redisclient.Client,
	tracker errors.Tracker,
	log *logger.Logger,
) *workers.Scheduler {
	scheduler := workers.NewScheduler(log)

	if core.Voice != nil {
		scheduler.RegisterWorker(workers.NewVoiceQueueWorker(
			core.Voice,
			cfg.Workers.VoiceQueueInterval,
			log,
		))
	}

	scheduler.RegisterWorker(workers.NewThresholdWorker(
		core.Stats,
		tracker,
		cfg.Workers.ThresholdCheckInterval,
		cfg.Workers.ThresholdCheckInterval > 0,
		log,
	))

	if redis != nil {
		scheduler.RegisterWorker(workers.NewStatsSnapshotWorker(
			core.Stats,
			redis,
			cfg.Stats.SnapshotKey,
			cfg.Workers.StatsSnapshotInterval,
			cfg.Workers.StatsSnapshotInterval > 0,
			log,
		))
	}

	log.Info("✓ Workers initialized")
	return scheduler
}

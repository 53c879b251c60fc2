package workers

import (
	"context"
	"time"

	"alertbus/internal/metrics"
	"alertbus/internal/stats"
	"alertbus/pkg/errors"
	"alertbus/pkg/logger"
)

// ThresholdSource evaluates operational thresholds and keeps monitoring alerts
type ThresholdSource interface {
	CheckThresholds() []stats.Violation
	AddAlert(alertType, message, severity string)
}

// ThresholdWorker periodically checks failure rate and delivery time
type ThresholdWorker struct {
	*BaseWorker
	source  ThresholdSource
	tracker errors.Tracker
}

// NewThresholdWorker creates the worker. A nil tracker disables error reporting.
func NewThresholdWorker(source ThresholdSource, tracker errors.Tracker, interval time.Duration, enabled bool, log *logger.Logger) *ThresholdWorker {
	return &ThresholdWorker{
		BaseWorker: NewBaseWorker("threshold_check", interval, enabled, log),
		source:     source,
		tracker:    tracker,
	}
}

func (w *ThresholdWorker) Run(ctx context.Context) error {
	violations := w.source.CheckThresholds()
	for _, v := range violations {
		w.Log().Warnw("Threshold violated",
			"metric", v.Metric,
			"value", v.Value,
			"threshold", v.Threshold,
			"severity", v.Severity,
		)
		w.source.AddAlert("threshold_"+v.Metric, v.String(), v.Severity)
		metrics.RecordThresholdViolation(v.Metric, v.Severity)

		if w.tracker == nil {
			continue
		}
		level := errors.LevelWarning
		if v.Severity == stats.SeverityHigh {
			level = errors.LevelError
		}
		tags := map[string]string{"metric": v.Metric, "severity": v.Severity}
		if err := w.tracker.CaptureMessage(ctx, v.String(), level, tags); err != nil {
			w.Log().Debugw("Failed to report threshold violation", "error", err)
		}
	}
	return nil
}

package workers

import (
	"context"
	"time"

	"alertbus/internal/voice"
	"alertbus/pkg/logger"
)

// DefaultVoiceQueueTick is the drain period when none is configured. The
// pipeline enforces the cooldown itself, so ticking faster than it only
// costs an empty queue check.
const DefaultVoiceQueueTick = 100 * time.Millisecond

// VoiceQueue is the part of the voice pipeline drained by VoiceQueueWorker
type VoiceQueue interface {
	ProcessQueue(ctx context.Context) []voice.Alert
	QueueSize() int
}

// VoiceQueueWorker drains queued voice alerts. It runs whether or not queueing
// is enabled at startup, since queueing and the cooldown can change at runtime.
type VoiceQueueWorker struct {
	*BaseWorker
	queue VoiceQueue
}

// NewVoiceQueueWorker creates the worker. A zero interval uses DefaultVoiceQueueTick.
func NewVoiceQueueWorker(queue VoiceQueue, interval time.Duration, log *logger.Logger) *VoiceQueueWorker {
	if interval <= 0 {
		interval = DefaultVoiceQueueTick
	}
	return &VoiceQueueWorker{
		BaseWorker: NewBaseWorker("voice_queue", interval, true, log),
		queue:      queue,
	}
}

func (w *VoiceQueueWorker) Run(ctx context.Context) error {
	if w.queue.QueueSize() == 0 {
		return nil
	}
	played := w.queue.ProcessQueue(ctx)
	if len(played) > 0 {
		w.Log().Debugw("Played queued voice alerts", "played", len(played), "remaining", w.queue.QueueSize())
	}
	return nil
}

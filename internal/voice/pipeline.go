// Package voice turns alerts into spoken text and plays them through a Speaker,
// spacing plays by a cooldown and queueing alerts that arrive too fast.
package voice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"alertbus/internal/domain/alert"
	"alertbus/internal/metrics"
	"alertbus/pkg/errors"
	"alertbus/pkg/logger"
	"alertbus/pkg/ringbuf"
)

// Speaker is the opaque speech sink (TTS host, audio bridge)
type Speaker interface {
	Speak(ctx context.Context, text, language, speed string, volume int) error
}

// State is the lifecycle position of a voice alert
type State string

const (
	StateGenerated State = "generated"
	StateQueued    State = "queued"
	StatePlayed    State = "played"
	StateFailed    State = "failed"
	StateDropped   State = "dropped"
)

// Alert is one generated voice message
type Alert struct {
	ID        string     `json:"alert_id"`
	Text      string     `json:"text"`
	Trigger   Trigger    `json:"trigger"`
	Language  Language   `json:"language"`
	Speed     Speed      `json:"speed"`
	Volume    int        `json:"volume"`
	State     State      `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	PlayedAt  *time.Time `json:"played_at,omitempty"`
	Success   bool       `json:"success"`
	Error     string     `json:"error,omitempty"`
}

// Stats are the pipeline counters since start
type Stats struct {
	Generated int64             `json:"total_generated"`
	Played    int64             `json:"total_played"`
	Failed    int64             `json:"total_failed"`
	Queued    int64             `json:"total_queued"`
	Dropped   int64             `json:"total_dropped"`
	ByTrigger map[Trigger]int64 `json:"by_trigger"`
	QueueSize int               `json:"queue_size"`
	Config    Config            `json:"config"`
}

const historySize = 100

// Pipeline owns the cooldown gate, the waiting queue and the play history.
// Deciding "cooldown elapsed" and playing happen under one lock, so plays never race.
type Pipeline struct {
	mu      sync.Mutex
	cfg     Config
	gen     *Generator
	speaker Speaker
	now     func() time.Time
	log     *logger.Logger

	queue      *ringbuf.Ring[*Alert]
	history    *ringbuf.Ring[Alert]
	lastPlayed time.Time
	counter    int
	stats      Stats
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithClock overrides the time source (tests)
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithGenerator overrides the text generator
func WithGenerator(g *Generator) Option {
	return func(p *Pipeline) { p.gen = g }
}

// NewPipeline creates a pipeline. A nil speaker makes every play succeed silently.
func NewPipeline(cfg Config, speaker Speaker, log *logger.Logger, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "voice config")
	}
	if log == nil {
		log = logger.Get()
	}

	p := &Pipeline{
		cfg:     cfg.clone(),
		speaker: speaker,
		now:     time.Now,
		log:     log.With("component", "voice_pipeline"),
		queue:   ringbuf.New[*Alert](cfg.MaxQueueSize),
		history: ringbuf.New[Alert](historySize),
		stats:   Stats{ByTrigger: make(map[Trigger]int64)},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.gen == nil {
		p.gen = NewGenerator(nil)
	}
	return p, nil
}

// ShouldAlert reports whether the event maps to an enabled trigger
func (p *Pipeline) ShouldAlert(eventType alert.EventType, attrs alert.Attributes) bool {
	trigger, ok := TriggerFor(eventType, attrs)
	if !ok {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.TriggerEnabled(trigger)
}

// Generate builds an alert for the event, or returns nil when the event is not eligible
func (p *Pipeline) Generate(eventType alert.EventType, attrs alert.Attributes) *Alert {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generateLocked(eventType, attrs)
}

func (p *Pipeline) generateLocked(eventType alert.EventType, attrs alert.Attributes) *Alert {
	trigger, ok := TriggerFor(eventType, attrs)
	if !ok || !p.cfg.TriggerEnabled(trigger) {
		return nil
	}

	text := truncate(p.gen.Generate(trigger, p.cfg.Language, attrs), p.cfg.MaxTextLength)
	now := p.now()
	p.counter++

	p.stats.Generated++
	p.stats.ByTrigger[trigger]++

	return &Alert{
		ID:        fmt.Sprintf("VOICE-%s-%04d", now.Format("20060102150405"), p.counter),
		Text:      text,
		Trigger:   trigger,
		Language:  p.cfg.Language,
		Speed:     p.cfg.Speed,
		Volume:    p.cfg.Volume,
		State:     StateGenerated,
		CreatedAt: now,
	}
}

// Send generates an alert and plays it, or queues it when the cooldown has not elapsed.
// With queueing disabled an alert inside the cooldown is dropped.
// ok is false when the event is not eligible for voice.
func (p *Pipeline) Send(ctx context.Context, eventType alert.EventType, attrs alert.Attributes) (Alert, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a := p.generateLocked(eventType, attrs)
	if a == nil {
		return Alert{}, false
	}

	if p.coolingDownLocked() {
		if !p.cfg.QueueEnabled {
			a.State = StateDropped
			a.Error = errors.ErrVoiceDropped.Error()
			p.stats.Dropped++
			metrics.RecordVoiceAlert(string(a.Trigger), string(StateDropped), p.queue.Len())
			p.log.Debugw("Voice alert dropped during cooldown", "alert_id", a.ID, "trigger", a.Trigger)
			return *a, true
		}
		p.enqueueLocked(a)
		return *a, true
	}

	p.playLocked(ctx, a)
	return *a, true
}

func (p *Pipeline) coolingDownLocked() bool {
	if p.lastPlayed.IsZero() {
		return false
	}
	return p.now().Sub(p.lastPlayed) < p.cfg.Cooldown
}

// enqueueLocked appends to the queue, evicting the oldest waiting alert when full
func (p *Pipeline) enqueueLocked(a *Alert) {
	a.State = StateQueued
	p.stats.Queued++

	if old, evicted := p.queue.Push(a); evicted {
		old.State = StateDropped
		old.Error = "evicted from full voice queue"
		p.stats.Dropped++
		metrics.RecordVoiceAlert(string(old.Trigger), "evicted", p.queue.Len())
		p.log.Warnw("Voice queue full, dropped oldest alert",
			"dropped_id", old.ID,
			"queue_size", p.queue.Len(),
		)
	}
	metrics.RecordVoiceAlert(string(a.Trigger), string(StateQueued), p.queue.Len())
}

// playLocked calls the speaker. lastPlayed only advances on success,
// so a failed play does not hold back the next alert.
func (p *Pipeline) playLocked(ctx context.Context, a *Alert) {
	var err error
	if p.speaker != nil {
		err = p.speaker.Speak(ctx, a.Text, string(a.Language), string(a.Speed), a.Volume)
	}

	if err != nil {
		a.State = StateFailed
		a.Success = false
		a.Error = err.Error()
		p.stats.Failed++
		p.log.Errorw("Voice alert failed", "alert_id", a.ID, "trigger", a.Trigger, "error", err)
	} else {
		now := p.now()
		a.State = StatePlayed
		a.Success = true
		a.Error = ""
		a.PlayedAt = &now
		p.stats.Played++
		p.lastPlayed = now
	}

	metrics.RecordVoiceAlert(string(a.Trigger), string(a.State), p.queue.Len())
	p.history.Push(*a)
}

// ProcessQueue plays queued alerts in arrival order while the cooldown allows,
// stopping at the first alert that would violate it. A disabled pipeline keeps
// its queue untouched; alerts whose trigger was switched off are dropped.
func (p *Pipeline) ProcessQueue(ctx context.Context) []Alert {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.cfg.Enabled {
		return nil
	}

	var played []Alert
	for p.queue.Len() > 0 {
		if ctx.Err() != nil {
			break
		}
		next, _ := p.queue.Peek()
		if !p.cfg.TriggerEnabled(next.Trigger) {
			p.queue.Pop()
			p.dropDisabledLocked(next)
			continue
		}
		if p.coolingDownLocked() {
			break
		}
		a, _ := p.queue.Pop()
		p.playLocked(ctx, a)
		played = append(played, *a)
	}
	return played
}

func (p *Pipeline) dropDisabledLocked(a *Alert) {
	a.State = StateDropped
	a.Error = "trigger disabled while queued"
	p.stats.Dropped++
	metrics.RecordVoiceAlert(string(a.Trigger), string(StateDropped), p.queue.Len())
	p.history.Push(*a)
	p.log.Debugw("Queued voice alert dropped, trigger disabled", "alert_id", a.ID, "trigger", a.Trigger)
}

// QueueSize returns the number of alerts waiting for the cooldown
func (p *Pipeline) QueueSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}

// ClearQueue drops every waiting alert and returns how many were removed
func (p *Pipeline) ClearQueue() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.queue.Len()
	p.queue.Do(func(a *Alert) { a.State = StateDropped })
	p.queue.Reset()
	p.stats.Dropped += int64(n)
	metrics.VoiceQueueDepth.Set(0)
	return n
}

// History returns the newest finished alerts, oldest first
func (p *Pipeline) History(limit int) []Alert {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.history.Last(limit)
}

// Stats returns a snapshot of the counters and current config
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.stats
	s.ByTrigger = make(map[Trigger]int64, len(p.stats.ByTrigger))
	for t, n := range p.stats.ByTrigger {
		s.ByTrigger[t] = n
	}
	s.QueueSize = p.queue.Len()
	s.Config = p.cfg.clone()
	return s
}

// Config returns a copy of the active configuration
func (p *Pipeline) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.clone()
}

// SetConfig replaces the configuration. Shrinking the queue drops its oldest alerts.
func (p *Pipeline) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "voice config")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cfg = cfg.clone()
	if dropped := p.queue.Resize(cfg.MaxQueueSize); dropped > 0 {
		p.stats.Dropped += int64(dropped)
		p.log.Warnw("Voice queue shrunk", "dropped", dropped, "max_queue_size", cfg.MaxQueueSize)
	}
	return nil
}

func (p *Pipeline) update(fn func(c *Config)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.cfg)
}

// Enable turns voice alerts on
func (p *Pipeline) Enable() { p.update(func(c *Config) { c.Enabled = true }) }

// Disable turns voice alerts off; queued alerts stay queued until re-enabled
func (p *Pipeline) Disable() { p.update(func(c *Config) { c.Enabled = false }) }

// EnableTrigger switches a single trigger on
func (p *Pipeline) EnableTrigger(t Trigger) { p.update(func(c *Config) { c.Triggers[t] = true }) }

// DisableTrigger switches a single trigger off
func (p *Pipeline) DisableTrigger(t Trigger) { p.update(func(c *Config) { c.Triggers[t] = false }) }

// SetVolume sets the volume, clamped to 0-100
func (p *Pipeline) SetVolume(v int) { p.update(func(c *Config) { c.Volume = clampVolume(v) }) }

// SetSpeed sets the speech speed
func (p *Pipeline) SetSpeed(s Speed) error {
	if !s.Valid() {
		return errors.NewValidationError("speed", "unsupported voice speed", s)
	}
	p.update(func(c *Config) { c.Speed = s })
	return nil
}

// SetLanguage sets the template language
func (p *Pipeline) SetLanguage(l Language) error {
	if !l.Valid() {
		return errors.NewValidationError("language", "unsupported voice language", l)
	}
	p.update(func(c *Config) { c.Language = l })
	return nil
}

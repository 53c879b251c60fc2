// Package dispatch expands a routed event into channel deliveries (chat, voice, SMS)
// driven by event priority, and records one delivery metric per attempt.
package dispatch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"alertbus/internal/domain/alert"
	"alertbus/internal/domain/delivery"
	"alertbus/internal/metrics"
	"alertbus/internal/routing"
	"alertbus/internal/voice"
	"alertbus/pkg/errors"
	"alertbus/pkg/logger"
	"alertbus/pkg/ringbuf"
)

// Sender delivers formatted text to one routed target (chat, SMS)
type Sender interface {
	Send(ctx context.Context, target alert.RouteTarget, text string, silent bool) error
}

// VoiceGate is the voice pipeline as seen by the dispatcher
type VoiceGate interface {
	ShouldAlert(eventType alert.EventType, attrs alert.Attributes) bool
	Send(ctx context.Context, eventType alert.EventType, attrs alert.Attributes) (voice.Alert, bool)
}

// Router resolves targets for an event
type Router interface {
	Route(eventType alert.EventType, attrs alert.Attributes) routing.Result
}

// Recorder receives one metric per channel attempt
type Recorder interface {
	Record(m delivery.Metric)
}

// Config tunes delivery
type Config struct {
	ChannelTimeout time.Duration // per channel, covers all targets of that channel
	VoiceEnabled   bool
	SMSEnabled     bool
	LogSize        int // recent dispatches kept for inspection
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		ChannelTimeout: 10 * time.Second,
		VoiceEnabled:   true,
		SMSEnabled:     true,
		LogSize:        500,
	}
}

// ChannelResult is the outcome of one channel attempt
type ChannelResult struct {
	Channel    delivery.Channel `json:"channel"`
	Success    bool             `json:"success"`
	Delivered  int              `json:"delivered"`
	Error      string           `json:"error,omitempty"`
	VoiceState voice.State      `json:"voice_state,omitempty"`
	DurationMs float64          `json:"duration_ms"`
}

// Record is the log entry of one dispatch
type Record struct {
	ID           string              `json:"dispatch_id"`
	Type         alert.EventType     `json:"type"`
	Priority     string              `json:"priority"`
	Targets      []alert.RouteTarget `json:"targets"`
	MatchedRules []string            `json:"matched_rules"`
	FallbackUsed bool                `json:"fallback_used"`
	Channels     []ChannelResult     `json:"channels"`
	Success      bool                `json:"success"`
	Timestamp    time.Time           `json:"timestamp"`
	DurationMs   float64             `json:"duration_ms"`
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithChat sets the chat sink
func WithChat(s Sender) Option { return func(d *Dispatcher) { d.chat = s } }

// WithSMS sets the SMS sink
func WithSMS(s Sender) Option { return func(d *Dispatcher) { d.sms = s } }

// WithVoice sets the voice pipeline
func WithVoice(v VoiceGate) Option { return func(d *Dispatcher) { d.voice = v } }

// WithFormatter overrides the message formatter
func WithFormatter(f *Formatter) Option { return func(d *Dispatcher) { d.formatter = f } }

// WithClock overrides the time source (tests)
func WithClock(now func() time.Time) Option { return func(d *Dispatcher) { d.now = now } }

// Dispatcher is the notification router: route, format, fan out, record.
// It holds no per-event state besides the bounded dispatch log.
type Dispatcher struct {
	router    Router
	recorder  Recorder
	formatter *Formatter
	chat      Sender
	sms       Sender
	voice     VoiceGate
	cfg       Config
	now       func() time.Time
	log       *logger.Logger

	mu     sync.Mutex
	recent *ringbuf.Ring[Record]
}

// New creates a dispatcher. Channels without a sink are skipped.
func New(router Router, recorder Recorder, cfg Config, log *logger.Logger, opts ...Option) *Dispatcher {
	if log == nil {
		log = logger.Get()
	}
	def := DefaultConfig()
	if cfg.ChannelTimeout <= 0 {
		cfg.ChannelTimeout = def.ChannelTimeout
	}
	if cfg.LogSize <= 0 {
		cfg.LogSize = def.LogSize
	}

	d := &Dispatcher{
		router:   router,
		recorder: recorder,
		cfg:      cfg,
		now:      time.Now,
		log:      log.With("component", "dispatcher"),
		recent:   ringbuf.New[Record](cfg.LogSize),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.formatter == nil {
		d.formatter = NewFormatter(nil)
	}
	return d
}

// Formatter returns the formatter so callers can register custom renderings
func (d *Dispatcher) Formatter() *Formatter {
	return d.formatter
}

// RegisterFormatter installs a custom chat rendering for an event type
func (d *Dispatcher) RegisterFormatter(t alert.EventType, fn FormatFunc) {
	d.formatter.Register(t, fn)
}

// Notify is the inbound contract for producers. An empty priority uses the
// event type default. It returns true when at least one channel succeeded.
func (d *Dispatcher) Notify(ctx context.Context, eventType, priority string, attrs map[string]any) bool {
	t, err := alert.ParseEventType(eventType)
	if err != nil {
		d.log.Warnw("Rejected event with unknown type", "event_type", eventType, "error", err)
		d.record(delivery.Metric{
			DispatchID: uuid.NewString(),
			Type:       eventType,
			Priority:   priority,
			Channel:    delivery.ChannelNone,
			Timestamp:  d.now(),
			Error:      err.Error(),
		})
		return false
	}

	p := alert.DefaultPriority(t)
	if strings.TrimSpace(priority) != "" {
		// an unparseable priority yields zero channels, recorded as a failed no-op
		p, _ = alert.ParsePriority(priority)
	}

	rec := d.Dispatch(ctx, alert.Event{
		Type:       t,
		Priority:   p,
		Attributes: alert.AttributesFromMap(attrs),
	})
	return rec.Success
}

type plannedChannel struct {
	channel delivery.Channel
	run     func(ctx context.Context) ChannelResult
}

// Dispatch routes and delivers one event. Channels run concurrently, each
// bounded by ChannelTimeout; one failing channel never blocks the others.
func (d *Dispatcher) Dispatch(ctx context.Context, e alert.Event) Record {
	start := d.now()
	route := d.router.Route(e.Type, e.Attributes)

	rec := Record{
		ID:           uuid.NewString(),
		Type:         e.Type,
		Priority:     e.Priority.String(),
		Targets:      route.Targets,
		MatchedRules: route.MatchedRuleIDs,
		FallbackUsed: route.FallbackUsed,
		Timestamp:    start,
	}

	plan := d.plan(e, route.Targets)
	if len(plan) == 0 {
		d.log.Debugw("No eligible channel", "type", e.Type, "priority", e.Priority.String())
		rec.Channels = []ChannelResult{}
		d.record(d.metric(rec, e, ChannelResult{Channel: delivery.ChannelNone, Error: errors.ErrChannelUnavailable.Error()}))
		return d.finish(rec, start)
	}

	results := make([]ChannelResult, len(plan))
	var g errgroup.Group
	for i, pc := range plan {
		i, pc := i, pc
		g.Go(func() error {
			chCtx, cancel := context.WithTimeout(ctx, d.cfg.ChannelTimeout)
			defer cancel()

			began := time.Now()
			res := pc.run(chCtx)
			res.Channel = pc.channel
			res.DurationMs = float64(time.Since(began).Microseconds()) / 1000
			results[i] = res

			metrics.RecordDispatch(pc.channel.String(), e.Priority.String(), time.Since(began), res.Success)
			return nil
		})
	}
	_ = g.Wait()

	rec.Channels = results
	for _, res := range results {
		if res.Success {
			rec.Success = true
		} else {
			d.log.Warnw("Channel delivery failed",
				"dispatch_id", rec.ID,
				"channel", res.Channel,
				"type", e.Type,
				"error", res.Error,
			)
		}
		d.record(d.metric(rec, e, res))
	}

	return d.finish(rec, start)
}

// plan lists the channels to attempt: eligible by priority, configured and,
// for voice, accepted by the pipeline.
func (d *Dispatcher) plan(e alert.Event, targets []alert.RouteTarget) []plannedChannel {
	var text string
	var formatted bool
	format := func() string {
		if !formatted {
			text = d.formatter.Format(e)
			formatted = true
		}
		return text
	}

	var plan []plannedChannel
	for _, ch := range ChannelsFor(e.Priority) {
		switch ch {
		case delivery.ChannelVoice:
			if d.voice == nil || !d.cfg.VoiceEnabled || !d.voice.ShouldAlert(e.Type, e.Attributes) {
				continue
			}
			plan = append(plan, plannedChannel{ch, func(ctx context.Context) ChannelResult {
				return d.deliverVoice(ctx, e)
			}})
		case delivery.ChannelChat:
			if d.chat == nil {
				continue
			}
			msg, silent := format(), Silent(e.Priority)
			plan = append(plan, plannedChannel{ch, func(ctx context.Context) ChannelResult {
				return d.deliverText(ctx, d.chat, targets, msg, silent)
			}})
		case delivery.ChannelSMS:
			if d.sms == nil || !d.cfg.SMSEnabled {
				continue
			}
			msg := format()
			plan = append(plan, plannedChannel{ch, func(ctx context.Context) ChannelResult {
				return d.deliverText(ctx, d.sms, targets, msg, false)
			}})
		}
	}
	return plan
}

// deliverText sends to every target. The channel succeeds when at least one
// target received the message.
func (d *Dispatcher) deliverText(ctx context.Context, s Sender, targets []alert.RouteTarget, text string, silent bool) ChannelResult {
	if len(targets) == 0 {
		return ChannelResult{Error: errors.ErrNoTargets.Error()}
	}

	var res ChannelResult
	var failures []string
	for _, target := range targets {
		err := callWithContext(ctx, func(ctx context.Context) error {
			return s.Send(ctx, target, text, silent)
		})
		if err != nil {
			failures = append(failures, target.String()+": "+err.Error())
			continue
		}
		res.Delivered++
	}

	res.Success = res.Delivered > 0
	if len(failures) > 0 {
		res.Error = strings.Join(failures, "; ")
	}
	return res
}

func (d *Dispatcher) deliverVoice(ctx context.Context, e alert.Event) ChannelResult {
	var (
		va voice.Alert
		ok bool
	)
	err := callWithContext(ctx, func(ctx context.Context) error {
		va, ok = d.voice.Send(ctx, e.Type, e.Attributes)
		return nil
	})
	if err != nil {
		return ChannelResult{Error: err.Error()}
	}
	if !ok {
		return ChannelResult{Error: errors.ErrVoiceDisabled.Error()}
	}

	res := ChannelResult{VoiceState: va.State, Error: va.Error}
	switch va.State {
	case voice.StatePlayed, voice.StateQueued:
		res.Success = true
		res.Delivered = 1
	}
	return res
}

// callWithContext runs fn and gives up when ctx ends, even if fn ignores ctx
func callWithContext(ctx context.Context, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.Wrap(errors.ErrTimeout, "channel send")
		}
		return ctx.Err()
	}
}

// metric builds the delivery record for one channel. A queued voice alert makes
// the channel succeed but is only counted as voice sent once it has played.
func (d *Dispatcher) metric(rec Record, e alert.Event, res ChannelResult) delivery.Metric {
	m := delivery.Metric{
		DispatchID:     rec.ID,
		Type:           string(e.Type),
		Priority:       e.Priority.String(),
		Channel:        res.Channel,
		Timestamp:      rec.Timestamp,
		Success:        res.Success,
		VoiceSent:      res.Channel == delivery.ChannelVoice && res.VoiceState == voice.StatePlayed,
		DeliveryTimeMs: res.DurationMs,
		Error:          res.Error,
	}
	if v, ok := e.Attributes.Get("user_id"); ok {
		m.UserID = v.String()
	}
	return m
}

func (d *Dispatcher) record(m delivery.Metric) {
	if d.recorder != nil {
		d.recorder.Record(m)
	}
}

func (d *Dispatcher) finish(rec Record, start time.Time) Record {
	rec.DurationMs = float64(d.now().Sub(start).Microseconds()) / 1000
	d.mu.Lock()
	d.recent.Push(rec)
	d.mu.Unlock()
	return rec
}

// RecentDispatches returns the newest dispatch records, oldest first
func (d *Dispatcher) RecentDispatches(limit int) []Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recent.Last(limit)
}

// Package stats records every channel delivery attempt and keeps running counters,
// a bounded history and hourly/daily rollups for reporting and threshold checks.
package stats

import (
	"sort"
	"sync"
	"time"

	"alertbus/internal/domain/delivery"
	"alertbus/pkg/logger"
	"alertbus/pkg/ringbuf"
)

// Config holds aggregator limits and threshold constants
type Config struct {
	HistorySize    int // rolling history cap
	DeliveryWindow int // samples used for the summary delivery-time average
	DailyRetention int // days of daily rollups kept in memory
	MaxAlerts      int // monitoring alerts cap

	MinSampleSize           int64   // volume that must be exceeded before thresholds apply
	FailureRateThreshold    float64 // percent
	FailureRateHigh         float64 // percent, severity "high" above this
	DeliveryTimeThresholdMs float64
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		HistorySize:             10000,
		DeliveryWindow:          1000,
		DailyRetention:          90,
		MaxAlerts:               100,
		MinSampleSize:           100,
		FailureRateThreshold:    10,
		FailureRateHigh:         20,
		DeliveryTimeThresholdMs: 5000,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.HistorySize <= 0 {
		c.HistorySize = def.HistorySize
	}
	if c.DeliveryWindow <= 0 {
		c.DeliveryWindow = def.DeliveryWindow
	}
	if c.DailyRetention <= 0 {
		c.DailyRetention = def.DailyRetention
	}
	if c.MaxAlerts <= 0 {
		c.MaxAlerts = def.MaxAlerts
	}
	if c.MinSampleSize <= 0 {
		c.MinSampleSize = def.MinSampleSize
	}
	if c.FailureRateThreshold <= 0 {
		c.FailureRateThreshold = def.FailureRateThreshold
	}
	if c.FailureRateHigh <= 0 {
		c.FailureRateHigh = def.FailureRateHigh
	}
	if c.DeliveryTimeThresholdMs <= 0 {
		c.DeliveryTimeThresholdMs = def.DeliveryTimeThresholdMs
	}
	return c
}

// Sink receives every recorded metric for long-term storage.
// Enqueue must not block.
type Sink interface {
	Enqueue(m delivery.Metric)
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithClock overrides the time source (tests)
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithSink forwards every recorded metric to an archive
func WithSink(s Sink) Option {
	return func(a *Aggregator) { a.sink = s }
}

// Aggregator owns all delivery counters and rollups.
// Every mutation happens under one mutex; readers get snapshot copies.
type Aggregator struct {
	mu   sync.Mutex
	cfg  Config
	now  func() time.Time
	sink Sink
	log  *logger.Logger

	startedAt time.Time

	total      int64
	successful int64
	failed     int64
	voice      int64

	byType     map[string]int64
	byPriority map[string]int64
	byChannel  map[string]int64

	history       *ringbuf.Ring[delivery.Metric]
	deliveryTimes *ringbuf.Ring[float64]

	hourly [24]HourlyStats
	daily  map[string]*DailyStats

	custom map[string]CustomMetric
	alerts *ringbuf.Ring[MonitoringAlert]
}

// New creates an aggregator
func New(cfg Config, log *logger.Logger, opts ...Option) *Aggregator {
	if log == nil {
		log = logger.Get()
	}
	cfg = cfg.withDefaults()

	a := &Aggregator{
		cfg:           cfg,
		now:           time.Now,
		log:           log.With("component", "stats_aggregator"),
		history:       ringbuf.New[delivery.Metric](cfg.HistorySize),
		deliveryTimes: ringbuf.New[float64](cfg.DeliveryWindow),
		alerts:        ringbuf.New[MonitoringAlert](cfg.MaxAlerts),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.resetLocked()
	return a
}

// Record folds one delivery attempt into counters, history and rollups.
// A zero timestamp is replaced with the current time.
func (a *Aggregator) Record(m delivery.Metric) {
	a.mu.Lock()
	if m.Timestamp.IsZero() {
		m.Timestamp = a.now()
	}
	if m.Channel == "" {
		m.Channel = delivery.ChannelNone
	}
	a.recordLocked(m)
	a.mu.Unlock()

	if a.sink != nil {
		a.sink.Enqueue(m)
	}
}

func (a *Aggregator) recordLocked(m delivery.Metric) {
	a.total++
	if m.Success {
		a.successful++
	} else {
		a.failed++
	}
	if m.VoiceSent {
		a.voice++
	}

	a.byType[m.Type]++
	a.byPriority[m.Priority]++
	a.byChannel[m.Channel.String()]++

	a.history.Push(m)
	if m.DeliveryTimeMs > 0 {
		a.deliveryTimes.Push(m.DeliveryTimeMs)
	}

	a.hourly[m.Timestamp.Hour()].add(m)

	key := dateKey(m.Timestamp)
	day, ok := a.daily[key]
	if !ok {
		day = newDailyStats(key)
		a.daily[key] = day
		a.pruneDailyLocked()
	}
	day.add(m)
}

// pruneDailyLocked keeps at most DailyRetention dates
func (a *Aggregator) pruneDailyLocked() {
	if len(a.daily) <= a.cfg.DailyRetention {
		return
	}
	keys := make([]string, 0, len(a.daily))
	for k := range a.daily {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys[:len(keys)-a.cfg.DailyRetention] {
		delete(a.daily, k)
	}
}

// Reset clears all counters, breakdowns, history, rollups, custom metrics and alerts
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked()
	a.log.Info("Statistics reset")
}

func (a *Aggregator) resetLocked() {
	a.startedAt = a.now()
	a.total, a.successful, a.failed, a.voice = 0, 0, 0, 0
	a.byType = make(map[string]int64)
	a.byPriority = make(map[string]int64)
	a.byChannel = make(map[string]int64)
	a.history.Reset()
	a.deliveryTimes.Reset()
	for h := range a.hourly {
		a.hourly[h] = HourlyStats{Hour: h}
	}
	a.daily = make(map[string]*DailyStats)
	a.custom = make(map[string]CustomMetric)
	a.alerts.Reset()
}

// Totals returns the session counters
func (a *Aggregator) Totals() (total, successful, failed, voice int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total, a.successful, a.failed, a.voice
}

// CustomMetric is a named value reported by other components
type CustomMetric struct {
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordCustomMetric stores (or replaces) a named value
func (a *Aggregator) RecordCustomMetric(name string, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.custom[name] = CustomMetric{Value: value, Timestamp: a.now()}
}

// MonitoringAlert is an operational notice kept for the dashboard
type MonitoringAlert struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// AddAlert appends a monitoring alert. Severity defaults to "info".
func (a *Aggregator) AddAlert(alertType, message, severity string) {
	if severity == "" {
		severity = "info"
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts.Push(MonitoringAlert{
		Type:      alertType,
		Message:   message,
		Severity:  severity,
		Timestamp: a.now(),
	})
}

// Alerts returns the newest monitoring alerts, oldest first
func (a *Aggregator) Alerts(limit int) []MonitoringAlert {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.alerts.Last(limit)
}

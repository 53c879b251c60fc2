package stats

import (
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"alertbus/internal/domain/delivery"
)

// Summary is a point-in-time view of the session counters
type Summary struct {
	TotalSent              int64            `json:"total_sent"`
	Successful             int64            `json:"successful"`
	Failed                 int64            `json:"failed"`
	SuccessRate            float64          `json:"success_rate"`
	VoiceAlertsSent        int64            `json:"voice_alerts_sent"`
	AvgDeliveryTimeMs      float64          `json:"avg_delivery_time_ms"`
	ByType                 map[string]int64 `json:"by_type"`
	ByPriority             map[string]int64 `json:"by_priority"`
	ByChannel              map[string]int64 `json:"by_channel"`
	HistorySize            int              `json:"history_size"`
	SessionStart           time.Time        `json:"session_start"`
	SessionDurationSeconds float64          `json:"session_duration_seconds"`
}

// FailureRate returns the failure percentage (0 when nothing was sent)
func (s Summary) FailureRate() float64 {
	if s.TotalSent == 0 {
		return 0
	}
	return float64(s.Failed) / float64(s.TotalSent) * 100
}

// TypeCount is one row of the top-types ranking
type TypeCount struct {
	Type       string  `json:"type"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// GetSummary returns the session counters and breakdowns
func (a *Aggregator) GetSummary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summaryLocked()
}

func (a *Aggregator) summaryLocked() Summary {
	s := Summary{
		TotalSent:              a.total,
		Successful:             a.successful,
		Failed:                 a.failed,
		VoiceAlertsSent:        a.voice,
		ByType:                 cloneCounts(a.byType),
		ByPriority:             cloneCounts(a.byPriority),
		ByChannel:              cloneCounts(a.byChannel),
		HistorySize:            a.history.Len(),
		SessionStart:           a.startedAt,
		SessionDurationSeconds: a.now().Sub(a.startedAt).Seconds(),
	}
	if a.total > 0 {
		s.SuccessRate = float64(a.successful) / float64(a.total) * 100
	}
	if n := a.deliveryTimes.Len(); n > 0 {
		var sum float64
		a.deliveryTimes.Do(func(v float64) { sum += v })
		s.AvgDeliveryTimeMs = sum / float64(n)
	}
	return s
}

// GetHourlyBreakdown returns the 24 hour-of-day buckets, hour 0 first
func (a *Aggregator) GetHourlyBreakdown() []HourlyStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]HourlyStats, len(a.hourly))
	copy(out, a.hourly[:])
	return out
}

// GetDailyBreakdown returns daily rollups on or after the date `days` ago, oldest first
func (a *Aggregator) GetDailyBreakdown(days int) []DailyStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dailyLocked(days)
}

func (a *Aggregator) dailyLocked(days int) []DailyStats {
	if days < 0 {
		days = 0
	}
	cutoff := dateKey(a.now().AddDate(0, 0, -days))

	out := make([]DailyStats, 0, len(a.daily))
	for key, day := range a.daily {
		if key >= cutoff {
			out = append(out, day.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// GetTopTypes ranks event types by volume. Ties are broken by name.
func (a *Aggregator) GetTopTypes(limit int) []TypeCount {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.topTypesLocked(limit)
}

func (a *Aggregator) topTypesLocked(limit int) []TypeCount {
	out := make([]TypeCount, 0, len(a.byType))
	for t, n := range a.byType {
		tc := TypeCount{Type: t, Count: n}
		if a.total > 0 {
			tc.Percentage = float64(n) / float64(a.total) * 100
		}
		out = append(out, tc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// GetRecentFailures returns the newest failed attempts still in history, oldest first
func (a *Aggregator) GetRecentFailures(limit int) []delivery.Metric {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failuresLocked(limit)
}

func (a *Aggregator) failuresLocked(limit int) []delivery.Metric {
	var failures []delivery.Metric
	a.history.Do(func(m delivery.Metric) {
		if !m.Success {
			failures = append(failures, m)
		}
	})
	if limit < 0 {
		limit = 0
	}
	if len(failures) > limit {
		failures = failures[len(failures)-limit:]
	}
	if failures == nil {
		return []delivery.Metric{}
	}
	return failures
}

// GetHistory returns the newest attempts, oldest first
func (a *Aggregator) GetHistory(limit int) []delivery.Metric {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.Last(limit)
}

// Period selects the breakdown attached to a report
type Period string

const (
	PeriodDaily  Period = "daily"
	PeriodWeekly Period = "weekly"
	PeriodHourly Period = "hourly"
)

// Report is a summary plus human-readable highlights and a period breakdown
type Report struct {
	Period      Period        `json:"period"`
	GeneratedAt time.Time     `json:"generated_at"`
	Summary     Summary       `json:"summary"`
	Highlights  []string      `json:"highlights"`
	Daily       []DailyStats  `json:"daily,omitempty"`
	Hourly      []HourlyStats `json:"hourly,omitempty"`
}

// Report builds a report for the period. Unknown periods carry no breakdown.
// Views are copied under the lock; highlights are formatted after it is released.
func (a *Aggregator) Report(period Period) Report {
	a.mu.Lock()
	r := Report{
		Period:      period,
		GeneratedAt: a.now(),
		Summary:     a.summaryLocked(),
		Highlights:  []string{},
	}
	top := a.topTypesLocked(1)
	switch period {
	case PeriodDaily:
		r.Daily = a.dailyLocked(1)
	case PeriodWeekly:
		r.Daily = a.dailyLocked(7)
	case PeriodHourly:
		r.Hourly = make([]HourlyStats, len(a.hourly))
		copy(r.Hourly, a.hourly[:])
	}
	a.mu.Unlock()

	r.Highlights = highlights(r.Summary, top, r.GeneratedAt)
	return r
}

func highlights(summary Summary, top []TypeCount, now time.Time) []string {
	out := []string{}
	if summary.TotalSent == 0 {
		return out
	}
	out = append(out,
		fmt.Sprintf("Total notifications: %s", humanize.Comma(summary.TotalSent)),
		fmt.Sprintf("Success rate: %.1f%%", summary.SuccessRate),
	)
	if summary.VoiceAlertsSent > 0 {
		out = append(out, fmt.Sprintf("Voice alerts: %s", humanize.Comma(summary.VoiceAlertsSent)))
	}
	if len(top) > 0 {
		out = append(out, fmt.Sprintf("Most common: %s (%s)", top[0].Type, humanize.Comma(top[0].Count)))
	}
	return append(out, fmt.Sprintf("Session started %s", humanize.RelTime(summary.SessionStart, now, "ago", "from now")))
}

// Dashboard is everything the monitoring dashboard renders in one payload
type Dashboard struct {
	Summary             Summary                 `json:"summary"`
	HourlyChart         []HourlyStats           `json:"hourly_chart"`
	DailyChart          []DailyStats            `json:"daily_chart"`
	TopTypes            []TypeCount             `json:"top_types"`
	RecentFailures      []delivery.Metric       `json:"recent_failures"`
	CustomMetrics       map[string]CustomMetric `json:"custom_metrics"`
	Alerts              []MonitoringAlert       `json:"alerts"`
	ThresholdViolations []Violation             `json:"threshold_violations"`
	LastUpdated         time.Time               `json:"last_updated"`
}

// DashboardData snapshots all reporting views at once. Thresholds are
// evaluated on the copied summary after the lock is released.
func (a *Aggregator) DashboardData() Dashboard {
	a.mu.Lock()
	dash := Dashboard{
		Summary:        a.summaryLocked(),
		HourlyChart:    make([]HourlyStats, len(a.hourly)),
		DailyChart:     a.dailyLocked(7),
		TopTypes:       a.topTypesLocked(5),
		RecentFailures: a.failuresLocked(10),
		CustomMetrics:  make(map[string]CustomMetric, len(a.custom)),
		Alerts:         a.alerts.Last(10),
		LastUpdated:    a.now(),
	}
	copy(dash.HourlyChart, a.hourly[:])
	for k, v := range a.custom {
		dash.CustomMetrics[k] = v
	}
	a.mu.Unlock()

	dash.ThresholdViolations = a.evaluate(dash.Summary)
	return dash
}

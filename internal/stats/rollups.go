package stats

import (
	"time"

	"alertbus/internal/domain/delivery"
)

// HourlyStats is the running aggregate for one hour of the day (0-23)
type HourlyStats struct {
	Hour              int     `json:"hour"`
	Total             int64   `json:"total"`
	Successful        int64   `json:"successful"`
	Failed            int64   `json:"failed"`
	VoiceAlerts       int64   `json:"voice_alerts"`
	AvgDeliveryTimeMs float64 `json:"avg_delivery_time_ms"`
}

// DailyStats is the running aggregate for one calendar date
type DailyStats struct {
	Date              string           `json:"date"`
	Total             int64            `json:"total"`
	Successful        int64            `json:"successful"`
	Failed            int64            `json:"failed"`
	VoiceAlerts       int64            `json:"voice_alerts"`
	ByType            map[string]int64 `json:"by_type"`
	ByPriority        map[string]int64 `json:"by_priority"`
	ByChannel         map[string]int64 `json:"by_channel"`
	AvgDeliveryTimeMs float64          `json:"avg_delivery_time_ms"`
	PeakHour          int              `json:"peak_hour"`

	perHour [24]int64
}

const dateLayout = "2006-01-02"

func newDailyStats(date string) *DailyStats {
	return &DailyStats{
		Date:       date,
		ByType:     make(map[string]int64),
		ByPriority: make(map[string]int64),
		ByChannel:  make(map[string]int64),
	}
}

// runningAvg folds x into an average over n samples: (old*(n-1) + x) / n
func runningAvg(old float64, n int64, x float64) float64 {
	if n <= 0 {
		return x
	}
	return (old*float64(n-1) + x) / float64(n)
}

func (h *HourlyStats) add(m delivery.Metric) {
	h.Total++
	if m.Success {
		h.Successful++
	} else {
		h.Failed++
	}
	if m.VoiceSent {
		h.VoiceAlerts++
	}
	if m.DeliveryTimeMs > 0 {
		h.AvgDeliveryTimeMs = runningAvg(h.AvgDeliveryTimeMs, h.Total, m.DeliveryTimeMs)
	}
}

func (d *DailyStats) add(m delivery.Metric) {
	d.Total++
	if m.Success {
		d.Successful++
	} else {
		d.Failed++
	}
	if m.VoiceSent {
		d.VoiceAlerts++
	}

	d.ByType[m.Type]++
	d.ByPriority[m.Priority]++
	d.ByChannel[m.Channel.String()]++

	if m.DeliveryTimeMs > 0 {
		d.AvgDeliveryTimeMs = runningAvg(d.AvgDeliveryTimeMs, d.Total, m.DeliveryTimeMs)
	}

	hour := m.Timestamp.Hour()
	d.perHour[hour]++
	if d.perHour[hour] > d.perHour[d.PeakHour] {
		d.PeakHour = hour
	}
}

func (d *DailyStats) clone() DailyStats {
	c := *d
	c.ByType = cloneCounts(d.ByType)
	c.ByPriority = cloneCounts(d.ByPriority)
	c.ByChannel = cloneCounts(d.ByChannel)
	return c
}

func cloneCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func dateKey(t time.Time) string {
	return t.Format(dateLayout)
}

package stats

import "fmt"

// Severity of a threshold violation
const (
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Threshold metric names
const (
	MetricFailureRate     = "failure_rate"
	MetricAvgDeliveryTime = "avg_delivery_time"
)

// Violation is one breached operational threshold
type Violation struct {
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Severity  string  `json:"severity"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %.2f exceeds %.2f (%s)", v.Metric, v.Value, v.Threshold, v.Severity)
}

// CheckThresholds evaluates failure rate and average delivery time.
// Nothing is reported until total volume exceeds MinSampleSize.
func (a *Aggregator) CheckThresholds() []Violation {
	a.mu.Lock()
	summary := a.summaryLocked()
	a.mu.Unlock()
	return a.evaluate(summary)
}

// evaluate reads only the immutable config, so it runs without the lock
func (a *Aggregator) evaluate(s Summary) []Violation {
	violations := []Violation{}
	if s.TotalSent <= a.cfg.MinSampleSize {
		return violations
	}

	if rate := s.FailureRate(); rate > a.cfg.FailureRateThreshold {
		severity := SeverityMedium
		if rate > a.cfg.FailureRateHigh {
			severity = SeverityHigh
		}
		violations = append(violations, Violation{
			Metric:    MetricFailureRate,
			Value:     rate,
			Threshold: a.cfg.FailureRateThreshold,
			Severity:  severity,
		})
	}

	if s.AvgDeliveryTimeMs > a.cfg.DeliveryTimeThresholdMs {
		violations = append(violations, Violation{
			Metric:    MetricAvgDeliveryTime,
			Value:     s.AvgDeliveryTimeMs,
			Threshold: a.cfg.DeliveryTimeThresholdMs,
			Severity:  SeverityMedium,
		})
	}
	return violations
}

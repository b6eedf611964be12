// Package metrics exposes pipeline counters and latencies to Prometheus.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "meeting_router"

type Collector struct {
	runs          *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	dispatches    *prometheus.CounterVec
	attempts      prometheus.Histogram
	notifications *prometheus.CounterVec
	actionItems   prometheus.Counter
	riskPoints    prometheus.Counter
}

// New creates the collectors and registers them with reg when reg is non-nil.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by terminal state.",
		}, []string{"state"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Time spent in each pipeline step.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"step"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Task dispatches by backend and result.",
		}, []string{"backend", "result"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_attempts",
			Help:      "Attempts spent per dispatched action item.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Summary deliveries by result (delivered, fallback, failed).",
		}, []string{"result"}),
		actionItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_items_total",
			Help:      "Action items extracted.",
		}),
		riskPoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_points_total",
			Help:      "Risk points flagged.",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.runs, c.stepDuration, c.dispatches, c.attempts, c.notifications, c.actionItems, c.riskPoints)
	}
	return c
}

func (c *Collector) RunFinished(state string) {
	if c == nil {
		return
	}
	c.runs.WithLabelValues(state).Inc()
}

func (c *Collector) ObserveStep(step string, d time.Duration) {
	if c == nil {
		return
	}
	c.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (c *Collector) Dispatched(backend string, ok bool, attempts int) {
	if c == nil {
		return
	}
	result := "created"
	if !ok {
		result = "failed"
	}
	c.dispatches.WithLabelValues(backend, result).Inc()
	c.attempts.Observe(float64(attempts))
}

func (c *Collector) Notified(result string) {
	if c == nil {
		return
	}
	c.notifications.WithLabelValues(result).Inc()
}

func (c *Collector) Extracted(actionItems, riskPoints int) {
	if c == nil {
		return
	}
	c.actionItems.Add(float64(actionItems))
	c.riskPoints.Add(float64(riskPoints))
}

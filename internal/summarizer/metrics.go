package summarizer

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	pathTool     = "tool"
	pathFallback = "fallback"
)

// Metrics records summarizer activity. A nil *Metrics records nothing.
type Metrics struct {
	requests           *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	toolAvailable      *prometheus.GaugeVec
	breakerState       *prometheus.GaugeVec
	cacheHits          prometheus.Counter
}

// NewMetrics registers the collectors on reg. A nil reg leaves them
// unregistered, which is convenient in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "textsum_summaries_total",
			Help: "Summaries produced, by path (tool or fallback) and delegation outcome.",
		}, []string{"path", "outcome"}),
		invocationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "textsum_tool_invocation_duration_seconds",
			Help:    "Time spent in the external summarization tool.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"tool", "result"}),
		toolAvailable: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "textsum_tool_available",
			Help: "1 if the summarization tool answered the startup probe.",
		}, []string{"tool"}),
		breakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "textsum_tool_breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}, []string{"tool"}),
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "textsum_summary_cache_hits_total",
			Help: "Tool summaries served from the in-memory cache.",
		}),
	}
}

func (m *Metrics) observeSummary(path string, kind outcomeKind) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, kind.String()).Inc()
}

func (m *Metrics) observeInvocation(tool string, d time.Duration, err error) {
	if m == nil {
		return
	}

	result := "success"
	switch {
	case errors.Is(err, context.Canceled):
		result = "canceled"
	case err != nil:
		result = "failure"
	}
	m.invocationDuration.WithLabelValues(tool, result).Observe(d.Seconds())
}

func (m *Metrics) setToolAvailable(tool string, available bool) {
	if m == nil {
		return
	}

	v := 0.0
	if available {
		v = 1
	}
	m.toolAvailable.WithLabelValues(tool).Set(v)
}

func (m *Metrics) setBreakerState(tool string, state float64) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(tool).Set(state)
}

func (m *Metrics) observeCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

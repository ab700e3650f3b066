package livesync

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the poller's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	polls        *prometheus.CounterVec
	pollDuration prometheus.Histogram
	newBids      prometheus.Counter
	endings      *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "livesync",
			Name:      "polls_total",
			Help:      "Polling cycles by result.",
		}, []string{"result"}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "livesync",
			Name:      "fetch_duration_seconds",
			Help:      "Latency of auction fetches.",
			Buckets:   prometheus.DefBuckets,
		}),
		newBids: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "livesync",
			Name:      "new_bid_events_total",
			Help:      "New bid events emitted.",
		}),
		endings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "livesync",
			Name:      "auction_endings_total",
			Help:      "Observed ended transitions by notification outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.polls, m.pollDuration, m.newBids, m.endings)
	return m
}

func (m *Metrics) recordPoll(result PollResult) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(string(result)).Inc()
}

func (m *Metrics) recordFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.pollDuration.Observe(d.Seconds())
}

func (m *Metrics) recordNewBid() {
	if m == nil {
		return
	}
	m.newBids.Inc()
}

func (m *Metrics) recordEnding(outcome string) {
	if m == nil {
		return
	}
	m.endings.WithLabelValues(outcome).Inc()
}

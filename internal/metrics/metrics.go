package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal *prometheus.CounterVec
	votesTotal        *prometheus.CounterVec
	streamSubscribers prometheus.Gauge
	registerOnce      sync.Once
)

// Register initializes Prometheus metrics on the default registry.
func Register() {
	registerOnce.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voting",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed by the voting API.",
		}, []string{"method", "path", "status"})

		votesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voting",
			Name:      "votes_total",
			Help:      "Vote casts processed, labeled by decision outcome.",
		}, []string{"outcome"})

		streamSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "voting",
			Name:      "stream_subscribers",
			Help:      "Currently open result stream connections.",
		})
	})
}

// IncRequest increments the http_requests_total counter with the given labels.
func IncRequest(method, path string, status int) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// IncVote increments the votes_total counter for an engine outcome.
func IncVote(outcome string) {
	if votesTotal == nil {
		return
	}
	votesTotal.WithLabelValues(outcome).Inc()
}

func StreamOpened() {
	if streamSubscribers == nil {
		return
	}
	streamSubscribers.Inc()
}

func StreamClosed() {
	if streamSubscribers == nil {
		return
	}
	streamSubscribers.Dec()
}

// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels completed investigations.
	OutcomeSuccess = "success"
	// OutcomeError labels failed investigations.
	OutcomeError = "error"
)

var (
	eventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vigil_rca",
			Name:      "events_total",
			Help:      "Total number of events received for routing.",
		},
	)

	playbookRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vigil_rca",
			Name:      "playbook_runs_total",
			Help:      "Playbook executions, partitioned by playbook name and status.",
		},
		[]string{"playbook", "status"},
	)

	investigationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vigil_rca",
			Name:      "investigations_total",
			Help:      "Total number of investigations handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	investigationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vigil_rca",
			Name:      "investigation_seconds",
			Help:      "Investigation latency in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 4, 5, 6, 8, 10},
		},
	)

	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vigil_rca",
			Name:      "api_requests_total",
			Help:      "API requests, partitioned by endpoint and method.",
		},
		[]string{"endpoint", "method"},
	)

	websocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vigil_rca",
			Name:      "websocket_clients",
			Help:      "Currently connected live-feed websocket clients.",
		},
	)
)

// Register attaches the service collectors to the supplied Prometheus
// registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		eventsTotal,
		playbookRunsTotal,
		investigationsTotal,
		investigationDurationSeconds,
		apiRequestsTotal,
		websocketClients,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveEvent counts one routed event.
func ObserveEvent() {
	eventsTotal.Inc()
}

// ObservePlaybookRun counts one playbook execution.
func ObservePlaybookRun(playbook, status string) {
	playbookRunsTotal.WithLabelValues(playbook, status).Inc()
}

// ObserveInvestigation records an investigation duration and outcome label.
func ObserveInvestigation(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	investigationsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	investigationDurationSeconds.Observe(duration.Seconds())
}

// ObserveAPIRequest counts one HTTP API request.
func ObserveAPIRequest(endpoint, method string) {
	apiRequestsTotal.WithLabelValues(endpoint, method).Inc()
}

// WebsocketConnected adjusts the live-feed client gauge.
func WebsocketConnected(delta float64) {
	websocketClients.Add(delta)
}

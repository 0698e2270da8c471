package agent

import (
	"github.com/vigilstack/vigil-rca/internal/models"
)

// AnomalyEvents converts the high-impact anomalies of a fleet report into
// router events. Low and medium severities stay in the report only; turning
// every statistical blip into an automation event would drown the playbooks.
func AnomalyEvents(report models.FleetReport) []models.Event {
	var events []models.Event
	for _, anomaly := range report.Anomalies {
		if anomaly.Severity != models.SeverityHigh && anomaly.Severity != models.SeverityCritical {
			continue
		}
		events = append(events, models.Event{
			Fields: map[string]any{
				"alertname":   "AIAnomalyDetected",
				"source":      "ai_agent",
				"service":     anomaly.Service,
				"cluster":     anomaly.Cluster,
				"severity":    string(anomaly.Severity),
				"metric":      anomaly.Metric,
				"value":       anomaly.Value,
				"description": anomaly.Description,
			},
		})
	}
	return events
}

package models

import "time"

// MetricSample is one fleet-wide metric observation used by the anomaly agent.
type MetricSample struct {
	Metric    string    `json:"metric"`
	Service   string    `json:"service"`
	Cluster   string    `json:"cluster"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Anomaly is a single detected deviation in the fleet snapshot.
type Anomaly struct {
	Metric      string    `json:"metric"`
	Service     string    `json:"service"`
	Cluster     string    `json:"cluster"`
	Value       float64   `json:"value"`
	Score       float64   `json:"anomaly_score"`
	Severity    Severity  `json:"severity"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
}

// Severity captures impact levels for fleet anomalies.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// FleetReport is the agent's fleet-wide analysis output.
type FleetReport struct {
	AnomaliesDetected bool      `json:"anomalies_detected"`
	Anomalies         []Anomaly `json:"anomalies"`
	HealthScore       float64   `json:"overall_health_score"`
	Insights          []string  `json:"insights"`
	DataPoints        int       `json:"data_points"`
	AnalyzedAt        time.Time `json:"analysis_timestamp"`
}

// TrendSummary aggregates anomaly counts over a trailing window.
type TrendSummary struct {
	Trend            string  `json:"trend"`
	TotalAnomalies   int     `json:"total_anomalies"`
	AnomaliesPerHour float64 `json:"anomalies_per_hour"`
	Description      string  `json:"description"`
}

// HotspotPattern is a recurring (service, root-cause category) pairing mined
// from playbook run history, ranked by prevalence.
type HotspotPattern struct {
	Service    string    `json:"service"`
	Category   string    `json:"category"`
	Count      int       `json:"count"`
	Prevalence float64   `json:"prevalence"`
	LastSeen   time.Time `json:"last_seen"`
}

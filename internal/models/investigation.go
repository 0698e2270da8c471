package models

import "time"

// InvestigationStatus tracks the lifecycle of an investigation.
type InvestigationStatus string

const (
	InvestigationPending       InvestigationStatus = "pending"
	InvestigationInvestigating InvestigationStatus = "investigating"
	InvestigationComplete      InvestigationStatus = "complete"
	InvestigationFailed        InvestigationStatus = "failed"
)

// Confidence rates a classifier verdict.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// LogEntry is one line of log evidence with its parsed severity and labels.
type LogEntry struct {
	Timestamp time.Time         `json:"timestamp"`
	Line      string            `json:"line"`
	Level     string            `json:"level"`
	Labels    map[string]string `json:"labels"`
}

// ContainerState summarises one container from a resource description.
type ContainerState struct {
	Name         string            `json:"name"`
	Ready        bool              `json:"ready"`
	RestartCount int               `json:"restart_count"`
	LastState    string            `json:"last_state"`
	Image        string            `json:"image"`
	Requests     map[string]string `json:"requests"`
	Limits       map[string]string `json:"limits"`
}

// ResourceCondition mirrors a pod readiness condition.
type ResourceCondition struct {
	Type           string    `json:"type"`
	Status         string    `json:"status"`
	LastTransition time.Time `json:"last_transition"`
}

// ResourceEvent is a control-plane event attached to a resource description.
type ResourceEvent struct {
	Type    string `json:"type"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
	Count   int    `json:"count"`
	Age     string `json:"age"`
	Source  string `json:"source"`
}

// ResourceDescription is the structured describe-output for a workload.
type ResourceDescription struct {
	Kind       string              `json:"kind"`
	Name       string              `json:"name"`
	Namespace  string              `json:"namespace"`
	Cluster    string              `json:"cluster"`
	Node       string              `json:"node"`
	Status     string              `json:"status"`
	Conditions []ResourceCondition `json:"conditions"`
	Containers []ContainerState    `json:"containers"`
	Events     []ResourceEvent     `json:"events"`
}

// InvestigationStep is one entry in the visible audit trail: which tool ran,
// what it was asked, and a one-line result.
type InvestigationStep struct {
	Tool      string    `json:"tool"`
	Query     string    `json:"query"`
	Result    string    `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

// Investigation is a root-cause analysis record. Steps and evidence are
// append-only until the investigation reaches a terminal status.
type Investigation struct {
	ID          string              `json:"id"`
	Alert       Alert               `json:"alert"`
	Status      InvestigationStatus `json:"status"`
	StartedAt   time.Time           `json:"started_at"`
	CompletedAt time.Time           `json:"completed_at"`

	Steps []InvestigationStep `json:"steps"`

	LogEvidence    []LogEntry          `json:"log_evidence"`
	MetricEvidence map[string]float64  `json:"metric_evidence"`
	Resource       ResourceDescription `json:"resource_context"`

	RootCause       string     `json:"root_cause"`
	Category        string     `json:"category"`
	Summary         string     `json:"summary"`
	Findings        []string   `json:"findings"`
	Recommendations []string   `json:"recommendations"`
	Confidence      Confidence `json:"confidence"`
}

// AddStep appends an audit-trail entry.
func (inv *Investigation) AddStep(tool, query, result string) {
	inv.Steps = append(inv.Steps, InvestigationStep{
		Tool:      tool,
		Query:     query,
		Result:    result,
		Timestamp: time.Now().UTC(),
	})
}

// Duration reports elapsed wall time, zero while still running.
func (inv *Investigation) Duration() time.Duration {
	if inv.CompletedAt.IsZero() {
		return 0
	}
	return inv.CompletedAt.Sub(inv.StartedAt)
}

package models

import "time"

// RunStatus tracks the lifecycle of a playbook run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// ActionKind discriminates playbook action behaviour.
type ActionKind string

const (
	ActionInvestigate ActionKind = "investigate"
	ActionQuery       ActionKind = "query"
	ActionNotify      ActionKind = "notify"
	ActionRecommend   ActionKind = "recommend"
	ActionCorrelate   ActionKind = "correlate"
	ActionGeneric     ActionKind = "generic"
)

// ActionRecord is the audit entry for one executed action within a run.
type ActionRecord struct {
	Action      string     `json:"action"`
	Kind        ActionKind `json:"kind"`
	Description string     `json:"description"`
	Result      string     `json:"result"`
	Timestamp   time.Time  `json:"timestamp"`
}

// PlaybookRun is the audit record of one playbook execution against one
// event. Enrichment is populated only by investigate actions and is additive
// across actions within the same run.
type PlaybookRun struct {
	ID              string         `json:"id"`
	PlaybookID      string         `json:"playbook_id"`
	PlaybookName    string         `json:"playbook_name"`
	Event           Event          `json:"event"`
	StartedAt       time.Time      `json:"started_at"`
	CompletedAt     time.Time      `json:"completed_at"`
	Status          RunStatus      `json:"status"`
	Actions         []ActionRecord `json:"actions_taken"`
	InvestigationID string         `json:"investigation_id"`
	Enrichment      map[string]any `json:"enrichment"`
}

// Duration reports elapsed wall time, zero while still running.
func (r *PlaybookRun) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// ActionInfo is the serializable view of a playbook action.
type ActionInfo struct {
	Name string     `json:"name"`
	Kind ActionKind `json:"kind"`
}

// PlaybookInfo is the serializable metadata view of a registered playbook.
// Trigger predicates are reduced to their names; custom predicates are not
// representable as data.
type PlaybookInfo struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	Triggers      []string     `json:"triggers"`
	Actions       []ActionInfo `json:"actions"`
	AutoRemediate bool         `json:"auto_remediate"`
	Tags          []string     `json:"tags"`
	RunCount      int          `json:"run_count"`
	LastRun       time.Time    `json:"last_run"`
	CreatedAt     time.Time    `json:"created_at"`
}

package playbook

import "github.com/vigilstack/vigil-rca/internal/models"

// RegisterBuiltins installs the default automation rules. These mirror the
// stock playbook set shipped with the service: health, resource pressure,
// anomaly, and scrape-failure coverage for a typical small fleet.
func RegisterBuiltins(r *Registry) {
	r.Register(&Playbook{
		Name: "on_service_down",
		Description: "When a service goes down: fetch recent logs, " +
			"run root cause analysis, enrich the alert.",
		Triggers: []Trigger{
			AnyOf("on_prometheus_alert:ServiceDown",
				FieldIn("alertname", []string{"alertname", "name"}, "ServiceDown", "InstanceDown"),
				FieldIn("status_down", []string{"status"}, "down"),
			),
		},
		Actions: []Action{
			{Name: "rca_analysis", Description: "Run automated root cause analysis", Kind: models.ActionInvestigate},
			{Name: "fetch_service_logs", Description: "Fetch service logs from the log store", Kind: models.ActionQuery,
				Params: map[string]any{"log_minutes": 30}},
			{Name: "send_enriched_alert", Description: "Enrich and route alert to Alertmanager", Kind: models.ActionNotify},
		},
		Tags: []string{"service-health", "logs", "rca"},
	})

	r.Register(&Playbook{
		Name:        "on_high_cpu",
		Description: "Investigate high CPU events; suggest autoscaling.",
		Triggers: []Trigger{
			AnyOf("on_prometheus_alert:HighCPUUsage",
				FieldIn("alertname", []string{"alertname"}, "HighCPUUsage", "CPUThrottling"),
				Threshold("cpu_over_80", "value", 80, "metric", "cpu"),
			),
		},
		Actions: []Action{
			{Name: "rca_analysis", Description: "Run automated root cause analysis", Kind: models.ActionInvestigate},
			{Name: "check_hpa", Description: "Query HPA status via kubectl", Kind: models.ActionQuery},
			{Name: "scaling_recommendation", Description: "Emit scaling recommendation", Kind: models.ActionRecommend},
		},
		Tags: []string{"cpu", "scaling", "rca"},
	})

	r.Register(&Playbook{
		Name: "on_oom_kill",
		Description: "Handle OOMKill events: fetch crash logs, analyse memory growth, " +
			"recommend limit increase. Auto-remediation available.",
		Triggers: []Trigger{
			AnyOf("on_pod_oom_killed",
				FieldContains("alertname_oom", "alertname", "oom"),
				FieldContains("reason_oom", "reason", "oom"),
				FieldContains("metric_memory", "metric", "memory"),
				FieldIn("last_state_oomkilled", []string{"last_state"}, "OOMKilled"),
			),
		},
		Actions: []Action{
			{Name: "rca_analysis", Description: "Run automated root cause analysis", Kind: models.ActionInvestigate},
			{Name: "fetch_crash_logs", Description: "Fetch pre-kill crash logs from the log store", Kind: models.ActionQuery,
				Params: map[string]any{"log_minutes": 60}},
			{Name: "memory_growth_analysis", Description: "Analyse memory growth trend", Kind: models.ActionCorrelate},
		},
		AutoRemediate: true,
		Tags:          []string{"oom", "memory", "logs", "rca"},
	})

	r.Register(&Playbook{
		Name: "on_ai_anomaly",
		Description: "When the observability agent detects a fleet-wide anomaly, " +
			"investigate and correlate across all affected services.",
		Triggers: []Trigger{
			AnyOf("on_ai_anomaly_detected",
				FieldIn("source_agent", []string{"source"}, "ai_agent"),
				FieldIn("alertname", []string{"alertname"}, "AIAnomalyDetected"),
			),
		},
		Actions: []Action{
			{Name: "rca_analysis", Description: "Run automated root cause analysis", Kind: models.ActionInvestigate},
			{Name: "cross_service_correlation", Description: "Correlate anomalies across services", Kind: models.ActionCorrelate},
			{Name: "notify_on_call", Description: "Send enriched report to on-call channel", Kind: models.ActionNotify},
		},
		Tags: []string{"ai", "fleet", "rca"},
	})

	r.Register(&Playbook{
		Name: "on_critical_alert",
		Description: "For any critical severity alert: immediate investigation, " +
			"create incident, notify on-call.",
		Triggers: []Trigger{
			FieldIn("on_prometheus_alert:severity=critical", []string{"severity"}, "critical"),
		},
		Actions: []Action{
			{Name: "rca_analysis", Description: "Run automated root cause analysis", Kind: models.ActionInvestigate},
			{Name: "create_incident", Description: "Create incident (PagerDuty/Jira)", Kind: models.ActionNotify},
		},
		Tags: []string{"critical", "incident", "rca"},
	})

	r.Register(&Playbook{
		Name: "on_scrape_failure",
		Description: "When the metrics agent reports scrape failures, " +
			"check network connectivity and service health.",
		Triggers: []Trigger{
			FieldIn("on_prometheus_alert:HighScrapeFailureRate",
				[]string{"alertname"}, "HighScrapeFailureRate", "ScrapeFailed"),
		},
		Actions: []Action{
			{Name: "network_check", Description: "Verify network connectivity to targets", Kind: models.ActionQuery},
			{Name: "rca_analysis", Description: "Run automated root cause analysis", Kind: models.ActionInvestigate},
		},
		Tags: []string{"metrics", "scrape", "networking"},
	})
}

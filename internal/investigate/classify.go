package investigate

import (
	"fmt"
	"strings"

	"github.com/vigilstack/vigil-rca/internal/models"
	"github.com/vigilstack/vigil-rca/internal/toolset"
)

// Root-cause categories assigned by the classifier.
const (
	CategoryOOM          = "out-of-memory"
	CategoryUnreachable  = "service-unreachable"
	CategoryCPU          = "cpu-exhaustion"
	CategoryDependency   = "dependency-failure"
	CategoryUnclassified = "unclassified"
)

// Keyword sets used to partition log evidence, matched case-insensitively.
var (
	errorKeywords   = []string{"ERROR", "FATAL", "EXCEPTION", "CRITICAL", "OOM", "KILLED", "FAIL", "TIMEOUT"}
	oomKeywords     = []string{"OOM", "KILLED", "OOMKILL"}
	timeoutKeywords = []string{"TIMEOUT", "DEADLINE", "CONNECTION REFUSED"}
)

// Evidence is the full input to the classifier: the alert plus everything the
// gathering steps produced, with logs pre-partitioned by keyword class.
type Evidence struct {
	Alert       models.Alert
	Logs        []models.LogEntry
	ErrorLogs   []models.LogEntry
	OOMLogs     []models.LogEntry
	TimeoutLogs []models.LogEntry
	Metrics     map[string]float64
	Resource    models.ResourceDescription
	Restarts    int
	LastState   string
}

// CPU, Memory and Up pull the headline metrics out of the snapshot.
func (e Evidence) CPU() float64    { return e.Metrics[toolset.MetricCPUUsagePct] }
func (e Evidence) Memory() float64 { return e.Metrics[toolset.MetricMemoryMB] }
func (e Evidence) Up() float64 {
	up, ok := e.Metrics[toolset.MetricUp]
	if !ok {
		return 1
	}
	return up
}

// Verdict is the classifier's structured conclusion.
type Verdict struct {
	Category        string
	RootCause       string
	Summary         string
	Findings        []string
	Recommendations []string
	Confidence      models.Confidence
}

// BuildEvidence assembles classifier input from raw gathering results,
// partitioning the logs by keyword class.
func BuildEvidence(alert models.Alert, logs []models.LogEntry, metrics map[string]float64, resource models.ResourceDescription) Evidence {
	ev := Evidence{
		Alert:    alert,
		Logs:     logs,
		Metrics:  metrics,
		Resource: resource,
	}
	for _, entry := range logs {
		line := strings.ToUpper(entry.Line)
		if !containsAny(line, errorKeywords) {
			continue
		}
		ev.ErrorLogs = append(ev.ErrorLogs, entry)
		if containsAny(line, oomKeywords) {
			ev.OOMLogs = append(ev.OOMLogs, entry)
		}
		if containsAny(line, timeoutKeywords) {
			ev.TimeoutLogs = append(ev.TimeoutLogs, entry)
		}
	}
	if len(resource.Containers) > 0 {
		ev.Restarts = resource.Containers[0].RestartCount
		ev.LastState = resource.Containers[0].LastState
	}
	return ev
}

func containsAny(line string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(line, kw) {
			return true
		}
	}
	return false
}

// rule pairs a match predicate with a verdict builder. Rules are evaluated in
// declaration order and the first match wins; order encodes diagnostic
// priority, so an OOM signal beats a concurrent CPU signal.
type rule struct {
	category string
	matches  func(Evidence) bool
	build    func(Evidence) Verdict
}

var classifierRules = []rule{
	{
		category: CategoryOOM,
		matches: func(ev Evidence) bool {
			return len(ev.OOMLogs) > 0 || ev.LastState == "OOMKilled" || (ev.Memory() > 450 && ev.Restarts > 0)
		},
		build: buildOOMVerdict,
	},
	{
		category: CategoryUnreachable,
		matches: func(ev Evidence) bool {
			return ev.Up() == 0 || ev.Alert.AlertName == "ServiceDown" || ev.Alert.AlertName == "InstanceDown"
		},
		build: buildUnreachableVerdict,
	},
	{
		category: CategoryCPU,
		matches: func(ev Evidence) bool {
			return ev.CPU() > 80
		},
		build: buildCPUVerdict,
	},
	{
		category: CategoryDependency,
		matches: func(ev Evidence) bool {
			return len(ev.TimeoutLogs) > 0
		},
		build: buildDependencyVerdict,
	},
}

// Classify runs the ordered rule list over the evidence and returns the first
// matching verdict, falling back to the low-confidence unclassified verdict.
func Classify(ev Evidence) Verdict {
	for _, r := range classifierRules {
		if r.matches(ev) {
			verdict := r.build(ev)
			verdict.Category = r.category
			verdict.Summary = buildSummary(ev, verdict)
			return verdict
		}
	}
	verdict := buildFallbackVerdict(ev)
	verdict.Category = CategoryUnclassified
	verdict.Summary = buildSummary(ev, verdict)
	return verdict
}

func buildOOMVerdict(ev Evidence) Verdict {
	service := ev.Alert.Service
	return Verdict{
		Confidence: models.ConfidenceHigh,
		RootCause: fmt.Sprintf(
			"OOMKill — `%s` exceeded its memory limit (512Mi) and was killed by the kernel. "+
				"Evidence: %d OOM log entries, %d pod restart(s), memory at %.0fMB.",
			service, len(ev.OOMLogs), ev.Restarts, ev.Memory()),
		Findings: []string{
			fmt.Sprintf("🔴 Container `%s` was OOMKilled — %d restart(s) recorded by kubelet", service, ev.Restarts),
			fmt.Sprintf("📊 Memory at %.0fMB, approaching/exceeding 512Mi container limit", ev.Memory()),
			fmt.Sprintf("📋 %d OOM-related log entries in the 30-min investigation window", len(ev.OOMLogs)),
			"📦 Resources: requests=256Mi, limits=512Mi — limit is too tight for current workload",
			"⚠️  GC overhead increasing (seen in logs) — possible heap fragmentation",
		},
		Recommendations: []string{
			"Immediate: increase memory limit to 1Gi in the Deployment spec",
			"Profile heap: `kubectl exec -it <pod> -- jmap -histo <pid>` (JVM) or memory_profiler (Python)",
			"Check for unbounded caches or data accumulation in recent commits",
			"Add HPA on memory: `kubectl autoscale deploy <name> --min=2 --max=5`",
			"Set alerting at 80% memory threshold so next OOMKill can be prevented",
			"Consider implementing streaming/chunked processing to reduce peak memory",
		},
	}
}

func buildUnreachableVerdict(ev Evidence) Verdict {
	service := ev.Alert.Service
	findings := []string{
		fmt.Sprintf("🔴 `%s` health check returning failure — up metric = 0", service),
		fmt.Sprintf("📋 %d error log entries in investigation window", len(ev.ErrorLogs)),
		fmt.Sprintf("🔄 Pod restart count: %d", ev.Restarts),
		fmt.Sprintf("🌐 Pod phase: %s (from resource describe)", ev.Resource.Status),
	}
	if len(ev.TimeoutLogs) > 0 {
		findings = append(findings, fmt.Sprintf(
			"⏱️ %d connection timeout errors — possible downstream dependency failure", len(ev.TimeoutLogs)))
	}
	return Verdict{
		Confidence: models.ConfidenceHigh,
		RootCause: fmt.Sprintf(
			"`%s` is not responding to health checks (up=0). %d errors in logs; %d restarts.",
			service, len(ev.ErrorLogs), ev.Restarts),
		Findings: findings,
		Recommendations: []string{
			fmt.Sprintf("Run: `kubectl get pods -l app=%s -n default` to check pod phase", service),
			"Check startup logs for init crash: `kubectl logs --previous <pod>`",
			"Verify ConfigMaps and Secrets are mounted correctly",
			"Test downstream dependencies health (DB, external APIs)",
			"Add readiness probe to prevent traffic routing to unhealthy pods",
		},
	}
}

func buildCPUVerdict(ev Evidence) Verdict {
	service := ev.Alert.Service
	confidence := models.ConfidenceMedium
	if ev.CPU() > 90 {
		confidence = models.ConfidenceHigh
	}
	findings := []string{
		fmt.Sprintf("⚡ CPU at %.0f%% — significantly above the 70%% healthy threshold", ev.CPU()),
		fmt.Sprintf("📊 Memory at %.0fMB (secondary indicator — not the primary cause)", ev.Memory()),
		fmt.Sprintf("📋 %d error log entries — some may be caused by CPU starvation", len(ev.ErrorLogs)),
		"📦 CPU limit: 500m — consider increasing or adding replicas",
	}
	if len(ev.ErrorLogs) > 5 {
		findings = append(findings, "⚠️  Elevated error rate suggests request timeouts due to CPU starvation")
	}
	return Verdict{
		Confidence: confidence,
		RootCause: fmt.Sprintf(
			"CPU exhaustion — `%s` consuming %.0f%% CPU. Performance degradation likely; %d errors observed.",
			service, ev.CPU(), len(ev.ErrorLogs)),
		Findings: findings,
		Recommendations: []string{
			"Scale horizontally immediately: `kubectl scale deploy <name> --replicas=3`",
			"Enable HPA: `kubectl autoscale deploy <name> --min=2 --max=10 --cpu-percent=70`",
			"Profile CPU hotspots: `py-spy record -o profile.svg -p <pid>`",
			"Increase CPU limit from 500m to 1000m in Deployment spec",
			"Check for tight loops or blocking I/O in recent code changes",
			"Review cron jobs or batch tasks that may be competing for CPU",
		},
	}
}

func buildDependencyVerdict(ev Evidence) Verdict {
	service := ev.Alert.Service
	return Verdict{
		Confidence: models.ConfidenceMedium,
		RootCause: fmt.Sprintf(
			"Dependency failure — `%s` cannot reach downstream services (%d timeout errors in logs).",
			service, len(ev.TimeoutLogs)),
		Findings: []string{
			fmt.Sprintf("⏱️ %d connection timeout / deadline exceeded errors in logs", len(ev.TimeoutLogs)),
			fmt.Sprintf("🔗 Service itself is up (CPU: %.1f%%, Mem: %.0fMB) — issue is external", ev.CPU(), ev.Memory()),
			fmt.Sprintf("📋 %d total errors; majority are connection-related", len(ev.ErrorLogs)),
		},
		Recommendations: []string{
			"Check downstream services: `kubectl get pods --all-namespaces`",
			"Verify network policies: `kubectl get networkpolicies -n default`",
			"Test DNS resolution: `kubectl exec -it <pod> -- nslookup <dependency>`",
			"Implement retry with exponential backoff and jitter",
			"Add circuit breaker (e.g., Hystrix/resilience4j/tenacity) to prevent cascade",
			"Check if dependency has a recent deployment that may have broken API",
		},
	}
}

func buildFallbackVerdict(ev Evidence) Verdict {
	upText := "no"
	if ev.Up() != 0 {
		upText = "yes"
	}
	return Verdict{
		Confidence: models.ConfidenceLow,
		RootCause: fmt.Sprintf(
			"Anomalous behaviour detected in `%s` — metrics deviate from baseline. Requires deeper investigation.",
			ev.Alert.Service),
		Findings: []string{
			fmt.Sprintf("📊 CPU: %.1f%%, Memory: %.0fMB, Up: %s", ev.CPU(), ev.Memory(), upText),
			fmt.Sprintf("📋 %d error log entries in investigation window", len(ev.ErrorLogs)),
			fmt.Sprintf("🔄 Pod restarts: %d", ev.Restarts),
			fmt.Sprintf("🔍 Alert: `%s` (severity: %s)", ev.Alert.AlertName, ev.Alert.Severity),
		},
		Recommendations: []string{
			"Compare metrics to 24h baseline in Grafana",
			"Check for recent deployments: `kubectl rollout history deploy/<name>`",
			"Enable debug logging temporarily for deeper visibility",
			"Review Grafana dashboards for correlated metrics",
			"Check external dependencies and infra changes (node pressure, network)",
		},
	}
}

func buildSummary(ev Evidence, verdict Verdict) string {
	return fmt.Sprintf(
		"**Investigation Summary — `%s`**\n\n%s\n\n"+
			"Evidence gathered from **logs**, **metrics**, and **resource describe** shows: "+
			"CPU at %.1f%%, memory at %.0fMB, %d error log entries, %d pod restart(s). "+
			"Investigation confidence: **%s**.",
		ev.Alert.Service, verdict.RootCause,
		ev.CPU(), ev.Memory(), len(ev.ErrorLogs), ev.Restarts,
		strings.ToUpper(string(verdict.Confidence)))
}

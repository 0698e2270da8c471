package investigate

import (
	"strings"
	"testing"
	"time"

	"github.com/vigilstack/vigil-rca/internal/models"
	"github.com/vigilstack/vigil-rca/internal/toolset"
)

func testAlert(name string) models.Alert {
	return models.Alert{
		Service:   "checkout",
		Cluster:   "local-docker",
		AlertName: name,
		Severity:  "warning",
	}
}

func logLines(lines ...string) []models.LogEntry {
	entries := make([]models.LogEntry, 0, len(lines))
	for i, line := range lines {
		entries = append(entries, models.LogEntry{
			Timestamp: time.Now().Add(-time.Duration(len(lines)-i) * time.Second),
			Line:      line,
			Level:     "INFO",
		})
	}
	return entries
}

func healthyResource() models.ResourceDescription {
	return models.ResourceDescription{
		Status: "Running",
		Containers: []models.ContainerState{
			{Name: "checkout", RestartCount: 0, LastState: "Completed"},
		},
	}
}

func TestClassifyOOMWinsOverCPU(t *testing.T) {
	// Memory pressure plus a restart qualifies the out-of-memory rule even
	// without an OOM keyword in the logs, and it must beat the concurrently
	// eligible CPU rule.
	resource := healthyResource()
	resource.Containers[0].RestartCount = 1

	ev := BuildEvidence(testAlert("HighMemory"), logLines("all quiet"), map[string]float64{
		toolset.MetricCPUUsagePct: 95,
		toolset.MetricMemoryMB:    470,
		toolset.MetricUp:          1,
	}, resource)

	verdict := Classify(ev)
	if verdict.Category != CategoryOOM {
		t.Fatalf("expected %s, got %s", CategoryOOM, verdict.Category)
	}
	if verdict.Confidence != models.ConfidenceHigh {
		t.Fatalf("expected high confidence, got %s", verdict.Confidence)
	}
	if !strings.Contains(verdict.RootCause, "OOMKill") || !strings.Contains(verdict.RootCause, "`checkout`") {
		t.Fatalf("unexpected root cause: %s", verdict.RootCause)
	}
	if !strings.Contains(verdict.RootCause, "memory at 470MB") {
		t.Fatalf("root cause should interpolate memory: %s", verdict.RootCause)
	}
}

func TestClassifyOOMFromLastState(t *testing.T) {
	resource := healthyResource()
	resource.Containers[0].LastState = "OOMKilled"
	resource.Containers[0].RestartCount = 1

	ev := BuildEvidence(testAlert("PodRestarting"), nil, map[string]float64{
		toolset.MetricMemoryMB: 200,
		toolset.MetricUp:       1,
	}, resource)

	if verdict := Classify(ev); verdict.Category != CategoryOOM {
		t.Fatalf("OOMKilled last state should classify as OOM, got %s", verdict.Category)
	}
}

func TestClassifyServiceUnreachable(t *testing.T) {
	ev := BuildEvidence(testAlert("ServiceDown"), logLines(
		"ERROR Failed health check: GET /health 503",
		"ERROR Connection timeout to downstream: deadline exceeded",
	), map[string]float64{
		toolset.MetricCPUUsagePct: 10,
		toolset.MetricMemoryMB:    100,
		toolset.MetricUp:          0,
	}, healthyResource())

	verdict := Classify(ev)
	if verdict.Category != CategoryUnreachable {
		t.Fatalf("expected %s, got %s", CategoryUnreachable, verdict.Category)
	}
	if verdict.Confidence != models.ConfidenceHigh {
		t.Fatalf("expected high confidence, got %s", verdict.Confidence)
	}
	if !strings.Contains(verdict.RootCause, "not responding to health checks (up=0)") {
		t.Fatalf("unexpected root cause: %s", verdict.RootCause)
	}

	sawTimeoutFinding := false
	for _, f := range verdict.Findings {
		if strings.Contains(f, "connection timeout errors") {
			sawTimeoutFinding = true
		}
	}
	if !sawTimeoutFinding {
		t.Fatal("timeout evidence should add the extra finding")
	}
}

func TestClassifyCPUConfidenceTiers(t *testing.T) {
	snapshot := func(cpu float64) map[string]float64 {
		return map[string]float64{
			toolset.MetricCPUUsagePct: cpu,
			toolset.MetricMemoryMB:    120,
			toolset.MetricUp:          1,
		}
	}

	hot := Classify(BuildEvidence(testAlert("HighCPU"), nil, snapshot(95), healthyResource()))
	if hot.Category != CategoryCPU || hot.Confidence != models.ConfidenceHigh {
		t.Fatalf("cpu=95 should be high-confidence cpu-exhaustion: %s/%s", hot.Category, hot.Confidence)
	}

	warm := Classify(BuildEvidence(testAlert("HighCPU"), nil, snapshot(85), healthyResource()))
	if warm.Category != CategoryCPU || warm.Confidence != models.ConfidenceMedium {
		t.Fatalf("cpu=85 should be medium-confidence cpu-exhaustion: %s/%s", warm.Category, warm.Confidence)
	}
}

func TestClassifyDependencyFailure(t *testing.T) {
	ev := BuildEvidence(testAlert("ErrorSpike"), logLines(
		"ERROR Connection timeout to downstream service: deadline exceeded",
		"ERROR request failed: connection refused",
	), map[string]float64{
		toolset.MetricCPUUsagePct: 30,
		toolset.MetricMemoryMB:    150,
		toolset.MetricUp:          1,
	}, healthyResource())

	verdict := Classify(ev)
	if verdict.Category != CategoryDependency {
		t.Fatalf("expected %s, got %s", CategoryDependency, verdict.Category)
	}
	if verdict.Confidence != models.ConfidenceMedium {
		t.Fatalf("expected medium confidence, got %s", verdict.Confidence)
	}
}

func TestClassifyFallback(t *testing.T) {
	ev := BuildEvidence(testAlert("WeirdAlert"), logLines("INFO all good"), map[string]float64{
		toolset.MetricCPUUsagePct: 40,
		toolset.MetricMemoryMB:    100,
		toolset.MetricUp:          1,
	}, healthyResource())

	verdict := Classify(ev)
	if verdict.Category != CategoryUnclassified {
		t.Fatalf("expected %s, got %s", CategoryUnclassified, verdict.Category)
	}
	if verdict.Confidence != models.ConfidenceLow {
		t.Fatalf("expected low confidence, got %s", verdict.Confidence)
	}
	if !strings.Contains(verdict.RootCause, "Anomalous behaviour detected") {
		t.Fatalf("unexpected root cause: %s", verdict.RootCause)
	}
}

func TestSummaryEmbedsUpperCaseConfidence(t *testing.T) {
	ev := BuildEvidence(testAlert("ServiceDown"), nil, map[string]float64{
		toolset.MetricUp: 0,
	}, healthyResource())

	verdict := Classify(ev)
	if !strings.Contains(verdict.Summary, "**HIGH**") {
		t.Fatalf("summary should embed upper-case confidence: %s", verdict.Summary)
	}
	if !strings.Contains(verdict.Summary, verdict.RootCause) {
		t.Fatal("summary should embed the root cause sentence")
	}
}

func TestBuildEvidencePartitionsLogs(t *testing.T) {
	logs := logLines(
		"INFO Service started",
		"ERROR something broke",
		"WARN OOMKill signal received",
		"ERROR Connection timeout: deadline exceeded",
		"fatal: process exited", // lowercase still matches
	)
	ev := BuildEvidence(testAlert("X"), logs, nil, healthyResource())

	if len(ev.ErrorLogs) != 4 {
		t.Fatalf("expected 4 error-like entries, got %d", len(ev.ErrorLogs))
	}
	if len(ev.OOMLogs) != 1 {
		t.Fatalf("expected 1 OOM entry, got %d", len(ev.OOMLogs))
	}
	if len(ev.TimeoutLogs) != 1 {
		t.Fatalf("expected 1 timeout entry, got %d", len(ev.TimeoutLogs))
	}
}

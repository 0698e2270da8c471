package playbook

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vigilstack/vigil-rca/internal/models"
)

// fakeInvestigator returns a canned investigation without touching any
// evidence source.
type fakeInvestigator struct {
	inv   models.Investigation
	err   error
	calls int
}

func (f *fakeInvestigator) Investigate(_ context.Context, alert models.Alert) (models.Investigation, error) {
	f.calls++
	if f.err != nil {
		return models.Investigation{}, f.err
	}
	inv := f.inv
	inv.Alert = alert
	return inv, nil
}

func completedInvestigation() models.Investigation {
	return models.Investigation{
		ID:         "inv-20260829-120000-0001",
		Status:     models.InvestigationComplete,
		RootCause:  "`checkout` is not responding to health checks (up=0). 3 errors in logs; 0 restarts.",
		Summary:    "summary text",
		Findings:   []string{"finding"},
		Confidence: models.ConfidenceHigh,
	}
}

func newBuiltinRouter(inv *fakeInvestigator) (*Registry, *Router) {
	registry := NewRegistry(nil)
	RegisterBuiltins(registry)
	return registry, NewRouter(registry, inv, nil)
}

func TestProcessEventNoMatchReturnsEmptySlice(t *testing.T) {
	_, router := newBuiltinRouter(&fakeInvestigator{inv: completedInvestigation()})

	runs := router.ProcessEvent(context.Background(), event(map[string]any{
		"alertname": "SomethingIrrelevant",
		"severity":  "info",
	}))

	if runs == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(runs) != 0 {
		t.Fatalf("expected no runs, got %d", len(runs))
	}
	if router.EventCount() != 1 {
		t.Fatal("unmatched events must still be recorded")
	}
}

func TestProcessEventStampsIDAndTimestamp(t *testing.T) {
	_, router := newBuiltinRouter(&fakeInvestigator{inv: completedInvestigation()})

	runs := router.ProcessEvent(context.Background(), event(map[string]any{
		"alertname": "ServiceDown",
		"service":   "checkout",
	}))
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].Event.ID == "" || runs[0].Event.ReceivedAt.IsZero() {
		t.Fatalf("event not stamped: %+v", runs[0].Event)
	}
}

func TestServiceDownEndToEnd(t *testing.T) {
	investigator := &fakeInvestigator{inv: completedInvestigation()}
	registry, router := newBuiltinRouter(investigator)

	runs := router.ProcessEvent(context.Background(), event(map[string]any{
		"alertname": "ServiceDown",
		"service":   "checkout",
		"severity":  "warning",
	}))

	if len(runs) != 1 {
		t.Fatalf("expected exactly on_service_down to match, got %d runs", len(runs))
	}
	run := runs[0]
	if run.PlaybookName != "on_service_down" {
		t.Fatalf("unexpected playbook: %s", run.PlaybookName)
	}
	if run.Status != models.RunSuccess {
		t.Fatalf("expected success, got %s", run.Status)
	}
	if len(run.Actions) != 3 {
		t.Fatalf("expected 3 action records, got %d", len(run.Actions))
	}
	if run.InvestigationID != "inv-20260829-120000-0001" {
		t.Fatalf("investigation id not propagated: %s", run.InvestigationID)
	}
	if run.Enrichment["root_cause"] == "" || run.Enrichment["confidence"] != models.ConfidenceHigh {
		t.Fatalf("enrichment not populated: %+v", run.Enrichment)
	}
	// the notify action sees the enrichment the investigate action added
	notify := run.Actions[2]
	if !strings.Contains(notify.Result, "not responding to health checks") {
		t.Fatalf("notify should embed the root cause: %s", notify.Result)
	}
	if investigator.calls != 1 {
		t.Fatalf("expected one investigation, got %d", investigator.calls)
	}

	infos := registry.List()
	for _, info := range infos {
		if info.Name == "on_service_down" {
			if info.RunCount != 1 || info.LastRun.IsZero() {
				t.Fatalf("run bookkeeping not updated: %+v", info)
			}
		}
	}
}

func TestHighCPUThresholdEndToEnd(t *testing.T) {
	investigator := &fakeInvestigator{inv: completedInvestigation()}
	_, router := newBuiltinRouter(investigator)

	// no alertname — matches purely on the metric/value threshold variant
	runs := router.ProcessEvent(context.Background(), event(map[string]any{
		"service": "worker",
		"metric":  "cpu_usage_pct",
		"value":   91.5,
	}))

	if len(runs) != 1 || runs[0].PlaybookName != "on_high_cpu" {
		t.Fatalf("expected on_high_cpu run, got %+v", runs)
	}
	recommend := runs[0].Actions[2]
	if recommend.Kind != models.ActionRecommend || !strings.Contains(recommend.Result, "kubectl scale deploy") {
		t.Fatalf("unexpected recommend record: %+v", recommend)
	}
}

func TestCriticalEventMatchesMultiplePlaybooks(t *testing.T) {
	investigator := &fakeInvestigator{inv: completedInvestigation()}
	_, router := newBuiltinRouter(investigator)

	// critical ServiceDown matches both on_service_down and on_critical_alert
	runs := router.ProcessEvent(context.Background(), event(map[string]any{
		"alertname": "ServiceDown",
		"service":   "checkout",
		"severity":  "critical",
	}))

	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].PlaybookName != "on_service_down" || runs[1].PlaybookName != "on_critical_alert" {
		t.Fatalf("runs must follow registration order: %s, %s", runs[0].PlaybookName, runs[1].PlaybookName)
	}
	if investigator.calls != 2 {
		t.Fatalf("each matched playbook investigates independently, got %d calls", investigator.calls)
	}
}

func TestFailingActionIsolatesRun(t *testing.T) {
	investigator := &fakeInvestigator{err: errors.New("engine unavailable")}
	_, router := newBuiltinRouter(investigator)

	runs := router.ProcessEvent(context.Background(), event(map[string]any{
		"alertname": "ServiceDown",
		"service":   "checkout",
		"severity":  "critical",
	}))

	if len(runs) != 2 {
		t.Fatalf("a failing run must not suppress other matches, got %d runs", len(runs))
	}
	for _, run := range runs {
		if run.Status != models.RunFailed {
			t.Fatalf("run %s: expected failed, got %s", run.PlaybookName, run.Status)
		}
		last := run.Actions[len(run.Actions)-1]
		if last.Action != "error" || !strings.Contains(last.Result, "engine unavailable") {
			t.Fatalf("missing synthetic error record: %+v", last)
		}
		if run.CompletedAt.IsZero() {
			t.Fatal("failed run must still be stamped complete")
		}
	}
}

func TestOOMTriggerVariants(t *testing.T) {
	investigator := &fakeInvestigator{inv: completedInvestigation()}
	_, router := newBuiltinRouter(investigator)

	variants := []map[string]any{
		{"alertname": "PodOOMKilled", "service": "a"},
		{"reason": "OOMKilling", "service": "b"},
		{"metric": "memory_mb", "service": "c"},
		{"last_state": "OOMKilled", "service": "d"},
	}
	for _, fields := range variants {
		runs := router.ProcessEvent(context.Background(), event(fields))
		found := false
		for _, run := range runs {
			if run.PlaybookName == "on_oom_kill" {
				found = true
			}
		}
		if !found {
			t.Fatalf("fields %v should trigger on_oom_kill", fields)
		}
	}
}

func TestListRunsAndEventsNewestFirst(t *testing.T) {
	investigator := &fakeInvestigator{inv: completedInvestigation()}
	_, router := newBuiltinRouter(investigator)

	router.ProcessEvent(context.Background(), event(map[string]any{"alertname": "ServiceDown", "service": "a"}))
	router.ProcessEvent(context.Background(), event(map[string]any{"alertname": "ScrapeFailed", "service": "b"}))

	runs := router.ListRuns(10)
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].PlaybookName != "on_scrape_failure" {
		t.Fatalf("expected newest run first, got %s", runs[0].PlaybookName)
	}

	events := router.ListEvents(1)
	if len(events) != 1 || events[0].String("service") != "b" {
		t.Fatalf("expected newest event only: %+v", events)
	}
}

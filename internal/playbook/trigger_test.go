package playbook

import (
	"testing"

	"github.com/vigilstack/vigil-rca/internal/models"
)

func event(fields map[string]any) models.Event {
	return models.Event{Fields: fields}
}

func TestFieldInTrigger(t *testing.T) {
	trigger := FieldIn("svc_down", []string{"alertname", "name"}, "ServiceDown", "InstanceDown")

	cases := []struct {
		name   string
		fields map[string]any
		want   bool
	}{
		{"alertname match", map[string]any{"alertname": "ServiceDown"}, true},
		{"alias field match", map[string]any{"name": "InstanceDown"}, true},
		{"no match", map[string]any{"alertname": "HighCPUUsage"}, false},
		{"empty event", map[string]any{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := trigger.Matches(event(tc.fields)); got != tc.want {
				t.Fatalf("Matches(%v) = %v, want %v", tc.fields, got, tc.want)
			}
		})
	}
}

func TestFieldContainsTriggerIsCaseInsensitive(t *testing.T) {
	trigger := FieldContains("oom", "reason", "oom")

	if !trigger.Matches(event(map[string]any{"reason": "OOMKilled"})) {
		t.Fatal("expected case-insensitive substring match")
	}
	if trigger.Matches(event(map[string]any{"reason": "Evicted"})) {
		t.Fatal("unexpected match")
	}
	if trigger.Matches(event(map[string]any{})) {
		t.Fatal("empty field must not match")
	}
}

func TestThresholdTriggerWithGate(t *testing.T) {
	trigger := Threshold("cpu_over_80", "value", 80, "metric", "cpu")

	if !trigger.Matches(event(map[string]any{"metric": "cpu_usage_pct", "value": 92.0})) {
		t.Fatal("expected match above threshold with matching gate")
	}
	if trigger.Matches(event(map[string]any{"metric": "cpu_usage_pct", "value": 42.0})) {
		t.Fatal("below-threshold value must not match")
	}
	if trigger.Matches(event(map[string]any{"metric": "memory_mb", "value": 92.0})) {
		t.Fatal("gate mismatch must not match")
	}
	// quoted numeric values still coerce
	if !trigger.Matches(event(map[string]any{"metric": "cpu", "value": "85"})) {
		t.Fatal("string-encoded value should coerce")
	}
}

func TestAnyOfTrigger(t *testing.T) {
	trigger := AnyOf("combo",
		FieldIn("a", []string{"alertname"}, "A"),
		FieldIn("b", []string{"alertname"}, "B"),
	)
	if !trigger.Matches(event(map[string]any{"alertname": "B"})) {
		t.Fatal("expected nested match")
	}
	if trigger.Matches(event(map[string]any{"alertname": "C"})) {
		t.Fatal("unexpected match")
	}
}

func TestCustomTriggerPanicIsNonMatch(t *testing.T) {
	trigger := Custom("explosive", func(models.Event) bool {
		panic("boom")
	})
	if trigger.Matches(event(map[string]any{"alertname": "X"})) {
		t.Fatal("panicking predicate must count as non-match")
	}

	nilPredicate := Trigger{Name: "nil", Kind: TriggerCustom}
	if nilPredicate.Matches(event(nil)) {
		t.Fatal("nil predicate must count as non-match")
	}
}

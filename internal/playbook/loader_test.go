package playbook

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const samplePack = `
playbooks:
  - name: on_disk_pressure
    description: Investigate disk pressure alerts.
    triggers:
      - name: on_prometheus_alert:DiskPressure
        kind: field_in
        fields: [alertname]
        values: [DiskPressure, NodeDiskRunningFull]
    actions:
      - name: rca_analysis
        description: Run automated root cause analysis
        kind: investigate
      - name: notify_on_call
        description: Notify on-call
        kind: notify
    tags: [disk, node]
`

func writePack(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "playbooks.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write pack: %v", err)
	}
	return path
}

func TestLoaderInstallsPackPlaybooks(t *testing.T) {
	registry := NewRegistry(nil)
	RegisterBuiltins(registry)
	loader := NewLoader(registry, nil)

	path := writePack(t, samplePack)
	if err := loader.Load(path); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if registry.Len() != 7 {
		t.Fatalf("expected 6 builtins + 1 pack playbook, got %d", registry.Len())
	}

	runs := NewRouter(registry, &fakeInvestigator{inv: completedInvestigation()}, nil).
		ProcessEvent(context.Background(), event(map[string]any{
			"alertname": "DiskPressure",
			"service":   "node-exporter",
		}))
	if len(runs) != 1 || runs[0].PlaybookName != "on_disk_pressure" {
		t.Fatalf("pack playbook did not match: %+v", runs)
	}
}

func TestLoaderReloadReplacesNotDuplicates(t *testing.T) {
	registry := NewRegistry(nil)
	RegisterBuiltins(registry)
	loader := NewLoader(registry, nil)

	path := writePack(t, samplePack)
	if err := loader.Load(path); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if err := loader.Load(path); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if registry.Len() != 7 {
		t.Fatalf("reload must replace, not duplicate: %d playbooks", registry.Len())
	}
}

func TestLoaderRejectsInvalidPacks(t *testing.T) {
	cases := []struct {
		name string
		pack string
	}{
		{"missing name", `
playbooks:
  - description: no name
    triggers:
      - {name: t, kind: field_in, fields: [alertname], values: [X]}
    actions:
      - {name: a, description: d, kind: notify}
`},
		{"no triggers", `
playbooks:
  - name: p
    actions:
      - {name: a, description: d, kind: notify}
`},
		{"unknown trigger kind", `
playbooks:
  - name: p
    triggers:
      - {name: t, kind: regex, field: alertname}
    actions:
      - {name: a, description: d, kind: notify}
`},
		{"custom trigger in pack", `
playbooks:
  - name: p
    triggers:
      - {name: t, kind: custom}
    actions:
      - {name: a, description: d, kind: notify}
`},
		{"unknown action kind", `
playbooks:
  - name: p
    triggers:
      - {name: t, kind: field_in, fields: [alertname], values: [X]}
    actions:
      - {name: a, description: d, kind: teleport}
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			registry := NewRegistry(nil)
			loader := NewLoader(registry, nil)
			if err := loader.Load(writePack(t, tc.pack)); err == nil {
				t.Fatal("expected validation error")
			}
			if registry.Len() != 0 {
				t.Fatalf("invalid pack must not register anything, got %d", registry.Len())
			}
		})
	}
}

func TestLoaderMissingFile(t *testing.T) {
	loader := NewLoader(NewRegistry(nil), nil)
	if err := loader.Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

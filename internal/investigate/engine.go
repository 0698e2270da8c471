// Package investigate implements the root-cause investigation engine: a
// fixed evidence-gathering pipeline (logs, metrics, resource describe)
// followed by a priority-ordered heuristic classifier.
package investigate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vigilstack/vigil-rca/internal/models"
	"github.com/vigilstack/vigil-rca/internal/toolset"
)

// investigationWindow is how far back log evidence is gathered.
const investigationWindow = 30 * time.Minute

// Engine runs investigations and keeps their records in memory. All store
// access goes through the mutex; a running investigation is mutated privately
// and published to the store as snapshots, so readers never observe a
// half-written record.
type Engine struct {
	logs      toolset.LogSource
	metrics   toolset.MetricSource
	resources toolset.ResourceSource
	logger    *slog.Logger

	mu    sync.Mutex
	seq   int
	store map[string]models.Investigation
}

// NewEngine constructs an Engine over the given evidence sources.
func NewEngine(logs toolset.LogSource, metrics toolset.MetricSource, resources toolset.ResourceSource, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logs:      logs,
		metrics:   metrics,
		resources: resources,
		logger:    logger,
		store:     make(map[string]models.Investigation),
	}
}

func (e *Engine) newID(now time.Time) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	return fmt.Sprintf("inv-%s-%04d", now.Format("20060102-150405"), e.seq)
}

func (e *Engine) publish(inv *models.Investigation) {
	e.mu.Lock()
	e.store[inv.ID] = *inv
	e.mu.Unlock()
}

// Investigate runs the full pipeline for an alert and returns the completed
// record. Failures inside the pipeline, including panics from evidence
// sources, surface as a failed investigation rather than an error.
func (e *Engine) Investigate(ctx context.Context, alert models.Alert) (result models.Investigation) {
	now := time.Now().UTC()
	inv := &models.Investigation{
		ID:        e.newID(now),
		Alert:     alert,
		Status:    models.InvestigationPending,
		StartedAt: now,
	}
	e.publish(inv)

	inv.Status = models.InvestigationInvestigating
	e.publish(inv)

	e.logger.Info("investigation started",
		slog.String("id", inv.ID),
		slog.String("service", alert.Service),
		slog.String("cluster", alert.Cluster))

	defer func() {
		if r := recover(); r != nil {
			inv.Status = models.InvestigationFailed
			inv.RootCause = fmt.Sprintf("Investigation failed: %v", r)
			inv.Findings = []string{fmt.Sprintf("Investigation error: %v", r)}
			inv.CompletedAt = time.Now().UTC()
			e.publish(inv)
			e.logger.Error("investigation panicked",
				slog.String("id", inv.ID), slog.Any("panic", r))
			result = *inv
		}
	}()

	end := now
	start := end.Add(-investigationWindow)

	inv.AddStep("logs", fmt.Sprintf(`{job=%q} [last 30m]`, alert.Service), "fetching...")
	logs := e.logs.FetchLogs(ctx, alert.Service, start, end)
	inv.LogEvidence = logs
	errorLines := 0
	for _, entry := range logs {
		if containsAny(strings.ToUpper(entry.Line), errorKeywords) {
			errorLines++
		}
	}
	inv.Steps[0].Result = fmt.Sprintf(
		"Found %d log lines (%d errors/warnings) in past 30 min", len(logs), errorLines)
	e.publish(inv)

	inv.AddStep("metrics", fmt.Sprintf(`up{job=%q}, cpu, memory [now]`, alert.Service), "querying...")
	metrics := e.metrics.FetchMetrics(ctx, alert.Service)
	inv.MetricEvidence = metrics
	up, ok := metrics[toolset.MetricUp]
	if !ok {
		up = 1
	}
	upText := "yes"
	if up != 1 {
		upText = "NO"
	}
	inv.Steps[1].Result = fmt.Sprintf(
		"CPU: %.1f%%  Memory: %.0fMB  Up: %s",
		metrics[toolset.MetricCPUUsagePct], metrics[toolset.MetricMemoryMB], upText)
	e.publish(inv)

	inv.AddStep("describe", fmt.Sprintf("describe pod %s -n default", alert.Service), "querying...")
	resource := e.resources.Describe(ctx, alert.Service, alert.Cluster)
	inv.Resource = resource
	restarts := 0
	lastState := "N/A"
	if len(resource.Containers) > 0 {
		restarts = resource.Containers[0].RestartCount
		if resource.Containers[0].LastState != "" {
			lastState = resource.Containers[0].LastState
		}
	}
	inv.Steps[2].Result = fmt.Sprintf(
		"Pod status: %s  Restarts: %d  LastState: %s", resource.Status, restarts, lastState)
	e.publish(inv)

	ev := BuildEvidence(alert, logs, metrics, resource)

	inv.AddStep("classifier", "analyze all gathered evidence", "analyzing...")
	verdict := Classify(ev)
	inv.RootCause = verdict.RootCause
	inv.Category = verdict.Category
	inv.Summary = verdict.Summary
	inv.Findings = verdict.Findings
	inv.Recommendations = verdict.Recommendations
	inv.Confidence = verdict.Confidence
	inv.Steps[3].Result = fmt.Sprintf("Root cause identified with %s confidence", verdict.Confidence)

	inv.Status = models.InvestigationComplete
	inv.CompletedAt = time.Now().UTC()
	e.publish(inv)

	e.logger.Info("investigation complete",
		slog.String("id", inv.ID),
		slog.String("category", inv.Category),
		slog.String("confidence", string(inv.Confidence)),
		slog.Duration("duration", inv.Duration()))

	return *inv
}

// Get returns an investigation snapshot by id.
func (e *Engine) Get(id string) (models.Investigation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inv, ok := e.store[id]
	return inv, ok
}

// List returns up to limit investigation snapshots, newest first.
func (e *Engine) List(limit int) []models.Investigation {
	e.mu.Lock()
	all := make([]models.Investigation, 0, len(e.store))
	for _, inv := range e.store {
		all = append(all, inv)
	}
	e.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].StartedAt.After(all[j].StartedAt)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

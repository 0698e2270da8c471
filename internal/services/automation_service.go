// Package services wires the event router, investigation engine, fleet
// agent, and cache into the single facade the transport layer talks to.
package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/vigilstack/vigil-rca/internal/agent"
	"github.com/vigilstack/vigil-rca/internal/cache"
	"github.com/vigilstack/vigil-rca/internal/investigate"
	"github.com/vigilstack/vigil-rca/internal/metrics"
	"github.com/vigilstack/vigil-rca/internal/models"
	"github.com/vigilstack/vigil-rca/internal/playbook"
	"github.com/vigilstack/vigil-rca/internal/utils"
)

// fleetAnalysisKey is the cache key for the fleet report.
const fleetAnalysisKey = "fleet_analysis"

// Broadcaster pushes live updates to connected clients. The websocket hub
// implements it; a nil broadcaster disables pushes.
type Broadcaster interface {
	Broadcast(eventType string, payload any)
}

// FleetSampler supplies the metric samples the fleet agent analyzes.
type FleetSampler func(ctx context.Context) []models.MetricSample

// AutomationService is the application facade: event intake and routing,
// on-demand investigations, and fleet analysis with caching.
type AutomationService struct {
	logger      *slog.Logger
	registry    *playbook.Registry
	router      *playbook.Router
	engine      *investigate.Engine
	agent       *agent.Agent
	sampler     FleetSampler
	cache       cache.Provider
	analysisTTL time.Duration
	broadcaster Broadcaster
	latencies   *utils.LatencyTracker
}

// NewAutomationService constructs the facade and its internal router. The
// registry must already hold the desired playbooks; cacheProvider may be a
// NoopProvider and broadcaster may be nil.
func NewAutomationService(
	logger *slog.Logger,
	registry *playbook.Registry,
	engine *investigate.Engine,
	fleetAgent *agent.Agent,
	sampler FleetSampler,
	cacheProvider cache.Provider,
	analysisTTL time.Duration,
) *AutomationService {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	s := &AutomationService{
		logger:      logger,
		registry:    registry,
		engine:      engine,
		agent:       fleetAgent,
		sampler:     sampler,
		cache:       cacheProvider,
		analysisTTL: analysisTTL,
		latencies:   utils.NewLatencyTracker(1024),
	}
	s.router = playbook.NewRouter(registry, investigatorFunc(s.Investigate), logger)
	return s
}

// SetBroadcaster attaches the live-update sink. Called once during startup,
// before the HTTP server accepts traffic.
func (s *AutomationService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

func (s *AutomationService) broadcast(eventType string, payload any) {
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(eventType, payload)
	}
}

// investigatorFunc adapts a method to the router's Investigator interface.
type investigatorFunc func(ctx context.Context, alert models.Alert) (models.Investigation, error)

func (f investigatorFunc) Investigate(ctx context.Context, alert models.Alert) (models.Investigation, error) {
	return f(ctx, alert)
}

// ProcessEvent routes an event through the playbook layer and reports the
// resulting runs.
func (s *AutomationService) ProcessEvent(ctx context.Context, event models.Event) []models.PlaybookRun {
	metrics.ObserveEvent()
	runs := s.router.ProcessEvent(ctx, event)
	for i := range runs {
		metrics.ObservePlaybookRun(runs[i].PlaybookName, string(runs[i].Status))
		s.broadcast("playbook_run", runs[i])
	}
	return runs
}

// Investigate runs a root-cause investigation directly, outside any playbook.
func (s *AutomationService) Investigate(ctx context.Context, alert models.Alert) (models.Investigation, error) {
	start := time.Now()
	inv := s.engine.Investigate(ctx, alert)
	duration := time.Since(start)

	outcome := metrics.OutcomeSuccess
	if inv.Status == models.InvestigationFailed {
		outcome = metrics.OutcomeError
	} else {
		s.latencies.Observe(duration)
		if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
			s.logger.Info("investigation latency",
				slog.Duration("p95", s.latencies.Percentile(95)),
				slog.Int("samples", count))
		}
	}
	metrics.ObserveInvestigation(duration, outcome)
	s.broadcast("investigation", inv)
	return inv, nil
}

// AnalyzeFleet returns the fleet report, serving a cached copy when one is
// fresh. The second return reports whether the cache was hit.
func (s *AutomationService) AnalyzeFleet(ctx context.Context) (models.FleetReport, bool) {
	if data, err := s.cache.Get(ctx, fleetAnalysisKey); err == nil {
		var report models.FleetReport
		if err := json.Unmarshal(data, &report); err == nil {
			return report, true
		}
	}

	report := s.agent.Analyze(s.sampler(ctx))
	if data, err := json.Marshal(report); err == nil {
		if err := s.cache.Set(ctx, fleetAnalysisKey, data, s.analysisTTL); err != nil {
			s.logger.Warn("fleet analysis cache write failed", slog.Any("error", err))
		}
	}
	s.broadcast("fleet_report", report)
	return report, false
}

// RouteAnomalies runs a fleet analysis and feeds the high-impact anomalies
// back through the event router, so the on_ai_anomaly playbook can pick them
// up. Returns the playbook runs triggered this pass.
func (s *AutomationService) RouteAnomalies(ctx context.Context) []models.PlaybookRun {
	report, _ := s.AnalyzeFleet(ctx)

	var runs []models.PlaybookRun
	for _, event := range agent.AnomalyEvents(report) {
		runs = append(runs, s.ProcessEvent(ctx, event)...)
	}
	if len(runs) > 0 {
		s.logger.Info("agent anomalies routed",
			slog.Int("runs", len(runs)))
	}
	return runs
}

// Trends reports the anomaly trend over the trailing window.
func (s *AutomationService) Trends(hours int) models.TrendSummary {
	return s.agent.Trends(hours)
}

// Hotspots mines recurring (service, category) failure pairings from the
// full investigation history.
func (s *AutomationService) Hotspots() []models.HotspotPattern {
	return agent.MineHotspots(s.engine.List(0))
}

// GetInvestigation fetches one investigation by id.
func (s *AutomationService) GetInvestigation(id string) (models.Investigation, bool) {
	return s.engine.Get(id)
}

// ListInvestigations lists investigation records, newest first.
func (s *AutomationService) ListInvestigations(limit int) []models.Investigation {
	return s.engine.List(limit)
}

// ListPlaybooks lists registered playbook metadata.
func (s *AutomationService) ListPlaybooks() []models.PlaybookInfo {
	return s.registry.List()
}

// ListRuns lists playbook runs, newest first.
func (s *AutomationService) ListRuns(limit int) []models.PlaybookRun {
	return s.router.ListRuns(limit)
}

// ListEvents lists received events, newest first.
func (s *AutomationService) ListEvents(limit int) []models.Event {
	return s.router.ListEvents(limit)
}

// LatencyP95 returns the current p95 investigation latency.
func (s *AutomationService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}

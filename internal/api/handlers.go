// Package api exposes the HTTP surface: event intake (direct and
// Alertmanager webhook), investigation queries, fleet analysis reads, and
// the live websocket feed.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/vigilstack/vigil-rca/internal/metrics"
	"github.com/vigilstack/vigil-rca/internal/models"
	"github.com/vigilstack/vigil-rca/internal/services"
)

// Handlers binds the HTTP routes to the automation service.
type Handlers struct {
	service *services.AutomationService
	hub     *Hub
	logger  *slog.Logger
	started time.Time
}

// NewHandlers constructs the route set. hub may be nil when the live feed is
// disabled.
func NewHandlers(service *services.AutomationService, hub *Hub, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service: service,
		hub:     hub,
		logger:  logger,
		started: time.Now().UTC(),
	}
}

// Register attaches all routes to the router.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/", h.root).Methods(http.MethodGet)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)

	r.HandleFunc("/api/events", h.postEvent).Methods(http.MethodPost)
	r.HandleFunc("/api/events", h.listEvents).Methods(http.MethodGet)
	r.HandleFunc("/webhook/alertmanager", h.alertmanagerWebhook).Methods(http.MethodPost)

	r.HandleFunc("/api/playbooks", h.listPlaybooks).Methods(http.MethodGet)
	r.HandleFunc("/api/runs", h.listRuns).Methods(http.MethodGet)

	r.HandleFunc("/api/investigate", h.investigate).Methods(http.MethodPost)
	r.HandleFunc("/api/investigations", h.listInvestigations).Methods(http.MethodGet)
	r.HandleFunc("/api/investigations/{id}", h.getInvestigation).Methods(http.MethodGet)

	r.HandleFunc("/api/fleet/analyze", h.analyzeFleet).Methods(http.MethodGet)
	r.HandleFunc("/api/fleet/anomalies", h.fleetAnomalies).Methods(http.MethodGet)
	r.HandleFunc("/api/fleet/insights", h.fleetInsights).Methods(http.MethodGet)
	r.HandleFunc("/api/fleet/trends", h.fleetTrends).Methods(http.MethodGet)
	r.HandleFunc("/api/fleet/patterns", h.fleetPatterns).Methods(http.MethodGet)

	if h.hub != nil {
		r.HandleFunc("/ws/live", h.hub.ServeWS)
	}
}

func (h *Handlers) observe(r *http.Request, endpoint string) {
	metrics.ObserveAPIRequest(endpoint, r.Method)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("response encode failed", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func limitParam(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}

func (h *Handlers) root(w http.ResponseWriter, r *http.Request) {
	h.observe(r, "/")
	writeJSON(w, http.StatusOK, map[string]any{
		"service":   "vigil-rca",
		"version":   "1.0.0",
		"status":    "running",
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	h.observe(r, "/health")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"uptime_seconds":  int(time.Since(h.started).Seconds()),
		"investigate_p95": h.service.LatencyP95().String(),
	})
}

// postEvent accepts a flat JSON object of event fields and routes it.
func (h *Handlers) postEvent(w http.ResponseWriter, r *http.Request) {
	h.observe(r, "/api/events")

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	runs := h.service.ProcessEvent(r.Context(), models.Event{Fields: fields})
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "processed",
		"matched": len(runs),
		"runs":    runs,
	})
}

func (h *Handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	h.observe(r, "/api/events")
	writeJSON(w, http.StatusOK, h.service.ListEvents(limitParam(r, 50)))
}

// alertmanagerPayload is the subset of the Alertmanager webhook format the
// intake cares about.
type alertmanagerPayload struct {
	Alerts []struct {
		Status      string            `json:"status"`
		Labels      map[string]string `json:"labels"`
		Annotations map[string]string `json:"annotations"`
	} `json:"alerts"`
}

// alertmanagerWebhook flattens each webhook alert into an event and routes
// it. Configure this URL as an Alertmanager receiver.
func (h *Handlers) alertmanagerWebhook(w http.ResponseWriter, r *http.Request) {
	h.observe(r, "/webhook/alertmanager")

	var payload alertmanagerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	totalRuns := 0
	for _, alert := range payload.Alerts {
		status := alert.Status
		if status == "" {
			status = "firing"
		}
		fields := map[string]any{
			"alertname":   valueOr(alert.Labels["alertname"], "Unknown"),
			"service":     valueOr(alert.Labels["job"], "unknown"),
			"cluster":     valueOr(alert.Labels["cluster"], "local-docker"),
			"severity":    valueOr(alert.Labels["severity"], "warning"),
			"description": alert.Annotations["description"],
			"status":      status,
			"source":      "alertmanager",
		}
		runs := h.service.ProcessEvent(r.Context(), models.Event{Fields: fields})
		totalRuns += len(runs)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "processed",
		"alerts_received": len(payload.Alerts),
		"runs":            totalRuns,
	})
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func (h *Handlers) listPlaybooks(w http.ResponseWriter, r *http.Request) {
	h.observe(r, "/api/playbooks")
	writeJSON(w, http.StatusOK, h.service.ListPlaybooks())
}

func (h *Handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	h.observe(r, "/api/runs")
	writeJSON(w, http.StatusOK, h.service.ListRuns(limitParam(r, 30)))
}

func (h *Handlers) investigate(w http.ResponseWriter, r *http.Request) {
	h.observe(r, "/api/investigate")

	var alert models.Alert
	if err := json.NewDecoder(r.Body).Decode(&alert); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if alert.Service == "" {
		writeError(w, http.StatusBadRequest, "service is required")
		return
	}
	if alert.Cluster == "" {
		alert.Cluster = "local-docker"
	}
	if alert.AlertName == "" {
		alert.AlertName = "ManualInvestigation"
	}
	if alert.Severity == "" {
		alert.Severity = "warning"
	}

	inv, err := h.service.Investigate(r.Context(), alert)
	if err != nil {
		h.logger.Error("investigation failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "investigation failed")
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *Handlers) listInvestigations(w http.ResponseWriter, r *http.Request) {
	h.observe(r, "/api/investigations")
	writeJSON(w, http.StatusOK, h.service.ListInvestigations(limitParam(r, 30)))
}

func (h *Handlers) getInvestigation(w http.ResponseWriter, r *http.Request) {
	h.observe(r, "/api/investigations/{id}")

	id := mux.Vars(r)["id"]
	inv, ok := h.service.GetInvestigation(id)
	if !ok {
		writeError(w, http.StatusNotFound, "investigation not found")
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *Handlers) analyzeFleet(w http.ResponseWriter, r *http.Request) {
	h.observe(r, "/api/fleet/analyze")

	report, cached := h.service.AnalyzeFleet(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"report": report,
		"cached": cached,
	})
}

func (h *Handlers) fleetAnomalies(w http.ResponseWriter, r *http.Request) {
	h.observe(r, "/api/fleet/anomalies")

	report, _ := h.service.AnalyzeFleet(r.Context())
	writeJSON(w, http.StatusOK, report.Anomalies)
}

func (h *Handlers) fleetInsights(w http.ResponseWriter, r *http.Request) {
	h.observe(r, "/api/fleet/insights")

	report, cached := h.service.AnalyzeFleet(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"insights":      report.Insights,
		"health_score":  report.HealthScore,
		"anomaly_count": len(report.Anomalies),
		"cached":        cached,
	})
}

func (h *Handlers) fleetTrends(w http.ResponseWriter, r *http.Request) {
	h.observe(r, "/api/fleet/trends")

	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			hours = parsed
		}
	}
	writeJSON(w, http.StatusOK, h.service.Trends(hours))
}

func (h *Handlers) fleetPatterns(w http.ResponseWriter, r *http.Request) {
	h.observe(r, "/api/fleet/patterns")
	writeJSON(w, http.StatusOK, h.service.Hotspots())
}

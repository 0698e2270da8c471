package toolset

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vigilstack/vigil-rca/internal/models"
)

// MetricSource provides the point-in-time metric snapshot for a service.
type MetricSource interface {
	FetchMetrics(ctx context.Context, service string) map[string]float64
}

// Snapshot metric names produced by every MetricSource implementation.
const (
	MetricCPUUsagePct      = "cpu_usage_pct"
	MetricMemoryMB         = "memory_mb"
	MetricScrapeDurationMS = "scrape_duration_ms"
	MetricUp               = "up"
)

// VictoriaMetricsClient queries a VictoriaMetrics (PromQL-compatible)
// instant-query endpoint for the four snapshot metrics.
type VictoriaMetricsClient struct {
	baseURL    string
	logger     *slog.Logger
	httpClient *http.Client
}

// NewVictoriaMetricsClient constructs a metric source for the given endpoint.
func NewVictoriaMetricsClient(baseURL string, timeout time.Duration, logger *slog.Logger) *VictoriaMetricsClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &VictoriaMetricsClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// snapshotQueries returns the PromQL expressions evaluated for a service,
// keyed by snapshot metric name.
func snapshotQueries(service string) map[string]string {
	return map[string]string{
		MetricCPUUsagePct:      fmt.Sprintf(`rate(process_cpu_seconds_total{job=%q}[5m]) * 100`, service),
		MetricMemoryMB:         fmt.Sprintf(`process_resident_memory_bytes{job=%q} / 1024 / 1024`, service),
		MetricScrapeDurationMS: fmt.Sprintf(`scrape_duration_seconds{job=%q} * 1000`, service),
		MetricUp:               fmt.Sprintf(`up{job=%q}`, service),
	}
}

// FetchMetrics evaluates the four snapshot queries. A query that returns an
// empty result contributes 0.0; a transport error on any query discards the
// partial snapshot and falls back to the synthetic sample as a whole.
func (c *VictoriaMetricsClient) FetchMetrics(ctx context.Context, service string) map[string]float64 {
	snapshot := make(map[string]float64, 4)
	for name, query := range snapshotQueries(service) {
		value, err := c.instantQuery(ctx, query)
		if err != nil {
			c.logger.Warn("metrics backend unreachable, using synthetic snapshot",
				slog.String("service", service), slog.Any("error", err))
			return SyntheticMetrics(service)
		}
		snapshot[name] = value
	}
	return snapshot
}

// instantQuery runs a single PromQL instant query and returns the first
// sample value, or 0.0 for an empty result set.
func (c *VictoriaMetricsClient) instantQuery(ctx context.Context, query string) (float64, error) {
	params := url.Values{}
	params.Set("query", query)

	endpoint := c.baseURL + "/api/v1/query?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, nil
	}

	var payload struct {
		Data struct {
			Result []struct {
				Value [2]any `json:"value"`
			} `json:"result"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, nil
	}
	if len(payload.Data.Result) == 0 {
		return 0, nil
	}

	raw, ok := payload.Data.Result[0].Value[1].(string)
	if !ok {
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, nil
	}
	return value, nil
}

// SyntheticMetrics fabricates a plausible snapshot for offline operation.
// Values are randomized within realistic bounds; up is always 1 so the
// synthetic snapshot never manufactures an outage on its own.
func SyntheticMetrics(service string) map[string]float64 {
	_ = service
	return map[string]float64{
		MetricCPUUsagePct:      15 + rand.Float64()*77,  // 15–92%
		MetricMemoryMB:         80 + rand.Float64()*410, // 80–490Mi
		MetricScrapeDurationMS: 0.5 + rand.Float64()*44.5,
		MetricUp:               1,
	}
}

// FleetSamples fabricates a recent window of per-service samples for the
// fleet analyzer when no live series are available. Each service gets one
// sample per snapshot metric per minute over the window.
func FleetSamples(services []string, cluster string, window time.Duration, now time.Time) []models.MetricSample {
	minutes := int(window.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	samples := make([]models.MetricSample, 0, len(services)*minutes*4)
	for _, service := range services {
		for i := 0; i < minutes; i++ {
			ts := now.Add(-time.Duration(i) * time.Minute)
			for name, value := range SyntheticMetrics(service) {
				samples = append(samples, models.MetricSample{
					Metric:    name,
					Service:   service,
					Cluster:   cluster,
					Value:     value,
					Timestamp: ts,
				})
			}
		}
	}
	return samples
}

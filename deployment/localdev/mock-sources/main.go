// Command mock-sources serves canned Loki and VictoriaMetrics responses so
// the engine can be exercised locally without a real observability stack.
// Services whose name contains "memory" are given an OOM-flavoured history;
// services containing "down" report up=0.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var jobPattern = regexp.MustCompile(`job="([^"]+)"`)

func jobFromQuery(query string) string {
	match := jobPattern.FindStringSubmatch(query)
	if len(match) < 2 {
		return "unknown"
	}
	return match[1]
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/loki/api/v1/query_range", func(w http.ResponseWriter, r *http.Request) {
		job := jobFromQuery(r.URL.Query().Get("query"))
		now := time.Now()

		lines := []struct {
			age   time.Duration
			level string
			line  string
		}{
			{50 * time.Second, "info", fmt.Sprintf("Service %s handling requests normally", job)},
			{35 * time.Second, "warn", "Memory usage at 82% of limit"},
			{20 * time.Second, "error", "Request to downstream timed out after 5s"},
			{5 * time.Second, "error", "Health check returned 503"},
		}
		if strings.Contains(job, "memory") {
			lines = append(lines, struct {
				age   time.Duration
				level string
				line  string
			}{2 * time.Second, "error", "Process received OOMKill signal from kernel"})
		}

		values := make([][2]string, 0, len(lines))
		for _, l := range lines {
			ts := now.Add(-l.age).UnixNano()
			values = append(values, [2]string{strconv.FormatInt(ts, 10), l.line})
		}

		writeJSON(w, map[string]any{
			"status": "success",
			"data": map[string]any{
				"resultType": "streams",
				"result": []map[string]any{
					{
						"stream": map[string]string{"job": job, "level": "info"},
						"values": values,
					},
				},
			},
		})
	})

	mux.HandleFunc("/api/v1/query", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")
		job := jobFromQuery(query)

		var value float64
		switch {
		case strings.Contains(query, "up{"):
			value = 1
			if strings.Contains(job, "down") {
				value = 0
			}
		case strings.Contains(query, "cpu"):
			value = 34.5
		case strings.Contains(query, "resident_memory"):
			value = 180
			if strings.Contains(job, "memory") {
				value = 470
			}
		case strings.Contains(query, "scrape_duration"):
			value = 12.5
		}

		writeJSON(w, map[string]any{
			"status": "success",
			"data": map[string]any{
				"resultType": "vector",
				"result": []map[string]any{
					{
						"metric": map[string]string{"job": job},
						"value":  [2]any{float64(time.Now().Unix()), strconv.FormatFloat(value, 'f', -1, 64)},
					},
				},
			},
		})
	})

	logger := log.New(log.Writer(), "mock-sources ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":9080",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :9080")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

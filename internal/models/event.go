package models

import (
	"strconv"
	"strings"
	"time"
)

// Event is an incoming infrastructure occurrence: a Prometheus-style alert,
// a pod lifecycle event, or an agent-generated anomaly notification. Fields
// are free-form because every upstream transport flattens to a different key
// set; ID and ReceivedAt are stamped on intake and never change afterwards.
type Event struct {
	ID         string         `json:"id"`
	ReceivedAt time.Time      `json:"received_at"`
	Fields     map[string]any `json:"fields"`
}

// String returns the named field as a string, or "" when absent.
func (e Event) String(key string) string {
	v, ok := e.Fields[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// Float returns the named field coerced to a float64. JSON decoding yields
// float64 for numbers, but webhook senders frequently quote numeric values.
func (e Event) Float(key string) (float64, bool) {
	v, ok := e.Fields[key]
	if !ok || v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// AlertName returns the event's alert name, checking the aliases accepted on
// intake in order.
func (e Event) AlertName() string {
	if name := e.String("alertname"); name != "" {
		return name
	}
	return e.String("name")
}

// ServiceName returns the event's service identifier ("service" or the
// Prometheus "job" label).
func (e Event) ServiceName() string {
	if svc := e.String("service"); svc != "" {
		return svc
	}
	return e.String("job")
}

// Alert is the normalized payload handed to the investigation engine. It is
// derived from an Event's recognized fields with defaults filled in.
type Alert struct {
	Service     string  `json:"service"`
	Cluster     string  `json:"cluster"`
	AlertName   string  `json:"alertname"`
	Severity    string  `json:"severity"`
	Description string  `json:"description"`
	Metric      string  `json:"metric"`
	Value       float64 `json:"value"`
}

// AlertFromEvent normalizes an event into the investigation alert shape.
func AlertFromEvent(e Event) Alert {
	service := e.ServiceName()
	if service == "" {
		service = "unknown"
	}
	cluster := e.String("cluster")
	if cluster == "" {
		cluster = "local-docker"
	}
	alertName := e.AlertName()
	if alertName == "" {
		alertName = "UnknownAlert"
	}
	severity := e.String("severity")
	if severity == "" {
		severity = "warning"
	}
	description := e.String("description")
	if description == "" {
		description = e.String("summary")
	}
	value, _ := e.Float("value")

	return Alert{
		Service:     service,
		Cluster:     cluster,
		AlertName:   alertName,
		Severity:    severity,
		Description: description,
		Metric:      e.String("metric"),
		Value:       value,
	}
}

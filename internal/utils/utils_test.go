package utils

import (
	"errors"
	"testing"
	"time"
)

func TestLatencyTrackerPercentile(t *testing.T) {
	tracker := NewLatencyTracker(10)
	if got := tracker.Percentile(95); got != 0 {
		t.Fatalf("empty tracker should report zero, got %v", got)
	}

	for i := 1; i <= 10; i++ {
		tracker.Observe(time.Duration(i) * time.Millisecond)
	}
	if tracker.Count() != 10 {
		t.Fatalf("expected 10 samples, got %d", tracker.Count())
	}
	if got := tracker.Percentile(0); got != time.Millisecond {
		t.Fatalf("p0 should be the minimum, got %v", got)
	}
	if got := tracker.Percentile(100); got != 10*time.Millisecond {
		t.Fatalf("p100 should be the maximum, got %v", got)
	}
	// index = int(0.5 * 9) = 4 -> fifth smallest sample
	if got := tracker.Percentile(50); got != 5*time.Millisecond {
		t.Fatalf("unexpected p50: %v", got)
	}
}

func TestLatencyTrackerEviction(t *testing.T) {
	tracker := NewLatencyTracker(3)
	for i := 1; i <= 5; i++ {
		tracker.Observe(time.Duration(i) * time.Second)
	}
	if tracker.Count() != 3 {
		t.Fatalf("expected window of 3, got %d", tracker.Count())
	}
	// 1s and 2s were evicted
	if got := tracker.Percentile(0); got != 3*time.Second {
		t.Fatalf("oldest samples should be dropped, min is %v", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Fatalf("short strings pass through, got %q", got)
	}
	if got := Truncate("hello", 3); got != "hel" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := Truncate("héllo", 2); got != "hé" {
		t.Fatalf("truncation must be rune-safe, got %q", got)
	}
	if got := Truncate("hello", 0); got != "" {
		t.Fatalf("zero length should yield empty, got %q", got)
	}
}

func TestAppError(t *testing.T) {
	base := errors.New("connection refused")
	err := NewAppError("playbook.load", "read pack", base)
	if err.Error() != "playbook.load: read pack: connection refused" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if !errors.Is(err, base) {
		t.Fatal("AppError should unwrap to the underlying error")
	}

	bare := NewAppError("router.match", "no playbooks registered", nil)
	if bare.Error() != "router.match: no playbooks registered" {
		t.Fatalf("unexpected message: %q", bare.Error())
	}
}

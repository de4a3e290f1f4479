package utils

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"
)

func TestDurationUS(t *testing.T) {
	d := 1234*time.Microsecond + 567*time.Nanosecond
	got := DurationUS(d)
	if math.Abs(got-1234.567) > 0.001 {
		t.Fatalf("want 1234.567µs, got %.3f", got)
	}
}

func TestTrackAccumulates(t *testing.T) {
	var d time.Duration
	Track(&d, time.Now().Add(-time.Second))
	Track(&d, time.Now().Add(-time.Second))
	if d < 2*time.Second {
		t.Fatalf("want at least 2s, got %v", d)
	}
}

func TestPrintTimingStatsRespectsVerbose(t *testing.T) {
	prevOut, prevVerbose := Output, Verbose
	defer func() { Output, Verbose = prevOut, prevVerbose }()

	var buf bytes.Buffer
	Output = &buf
	stats := &TimingStats{TotalTime: 10 * time.Second, PhysicsTime: 5 * time.Second}

	Verbose = false
	PrintTimingStats(stats, 10)
	if buf.Len() != 0 {
		t.Fatalf("expected no output when not verbose, got %q", buf.String())
	}

	Verbose = true
	PrintTimingStats(stats, 10)
	if !strings.Contains(buf.String(), "Physics residual: 5s (50.0%)") {
		t.Errorf("missing physics share in:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "Average physics residual time: 500000.0 µs") {
		t.Errorf("missing per-epoch physics time in:\n%s", buf.String())
	}

	// Zero epochs and zero total must not divide by zero.
	buf.Reset()
	PrintTimingStats(&TimingStats{}, 0)
	if !strings.Contains(buf.String(), "Epochs completed: 0") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

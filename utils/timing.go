package utils

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Verbose controls whether progress and timing statistics are printed.
// Set to false to suppress output.
var Verbose = true

// Output is the writer where progress and timing statistics are printed.
// Defaults to os.Stdout.
var Output io.Writer = os.Stdout

// TimingStats holds timing information for different operations
type TimingStats struct {
	TotalTime        time.Duration
	DataLoadingTime  time.Duration
	ModelInitTime    time.Duration
	ForwardPassTime  time.Duration
	PhysicsTime      time.Duration
	BackwardPassTime time.Duration
	UpdateTime       time.Duration
	EvaluationTime   time.Duration
}

// Track adds the time elapsed since start to *d.
func Track(d *time.Duration, start time.Time) {
	*d += time.Since(start)
}

func share(part, whole time.Duration) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// PrintTimingStats prints detailed timing statistics.
// Respects the Verbose flag - does nothing if Verbose is false.
func PrintTimingStats(stats *TimingStats, epochs int) {
	if !Verbose {
		return
	}
	fmt.Fprintln(Output, "\n=== TIMING STATISTICS ===")
	fmt.Fprintf(Output, "Total training time: %v\n", stats.TotalTime)
	if epochs > 0 {
		fmt.Fprintf(Output, "Average time per epoch: %v\n", stats.TotalTime/time.Duration(epochs))
	}
	fmt.Fprintf(Output, "Epochs completed: %d\n", epochs)
	fmt.Fprintln(Output, "\nBreakdown by operation:")
	fmt.Fprintf(Output, "  Data loading: %v (%.1f%%)\n", stats.DataLoadingTime, share(stats.DataLoadingTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Model initialization: %v (%.1f%%)\n", stats.ModelInitTime, share(stats.ModelInitTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Forward pass: %v (%.1f%%)\n", stats.ForwardPassTime, share(stats.ForwardPassTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Physics residual: %v (%.1f%%)\n", stats.PhysicsTime, share(stats.PhysicsTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Backward pass: %v (%.1f%%)\n", stats.BackwardPassTime, share(stats.BackwardPassTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Weight updates: %v (%.1f%%)\n", stats.UpdateTime, share(stats.UpdateTime, stats.TotalTime))
	fmt.Fprintf(Output, "  MC evaluation: %v (%.1f%%)\n", stats.EvaluationTime, share(stats.EvaluationTime, stats.TotalTime))
	if epochs > 0 {
		fmt.Fprintln(Output, "\nPerformance metrics:")
		perEpoch := func(d time.Duration) float64 { return DurationUS(d) / float64(epochs) }
		fmt.Fprintf(Output, "  Average forward pass time: %.1f µs\n", perEpoch(stats.ForwardPassTime))
		fmt.Fprintf(Output, "  Average physics residual time: %.1f µs\n", perEpoch(stats.PhysicsTime))
		fmt.Fprintf(Output, "  Average backward pass time: %.1f µs\n", perEpoch(stats.BackwardPassTime))
		fmt.Fprintf(Output, "  Average update time: %.1f µs\n", perEpoch(stats.UpdateTime))
	}
}

// DurationUS converts any time.Duration to micro-seconds as float64
func DurationUS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000.0
}

package utils

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Verbose controls whether timing statistics are printed.
// Set to false to suppress output.
var Verbose = true

// Output is the writer where timing statistics are printed.
// Defaults to os.Stdout.
var Output io.Writer = os.Stdout

// TimingStats holds timing information for the phases of a training run
type TimingStats struct {
	TotalTime    time.Duration
	InitTime     time.Duration
	SamplingTime time.Duration
	ScoringTime  time.Duration
	BaselineTime time.Duration
	EstimateTime time.Duration
	BackwardTime time.Duration
	UpdateTime   time.Duration
}

func share(part, whole time.Duration) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// PrintTimingStats prints detailed timing statistics.
// Respects the Verbose flag - does nothing if Verbose is false.
func PrintTimingStats(stats *TimingStats, steps int) {
	if !Verbose || steps <= 0 {
		return
	}
	fmt.Fprintln(Output, "\n=== TIMING STATISTICS ===")
	fmt.Fprintf(Output, "Total training time: %v\n", stats.TotalTime)
	fmt.Fprintf(Output, "Average time per step: %v\n", stats.TotalTime/time.Duration(steps))
	fmt.Fprintf(Output, "Steps completed: %d\n", steps)
	fmt.Fprintln(Output, "\nBreakdown by operation:")
	fmt.Fprintf(Output, "  Initialization: %v (%.1f%%)\n", stats.InitTime, share(stats.InitTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Sampling: %v (%.1f%%)\n", stats.SamplingTime, share(stats.SamplingTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Critic scores: %v (%.1f%%)\n", stats.ScoringTime, share(stats.ScoringTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Baseline: %v (%.1f%%)\n", stats.BaselineTime, share(stats.BaselineTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Bound evaluation: %v (%.1f%%)\n", stats.EstimateTime, share(stats.EstimateTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Backward pass: %v (%.1f%%)\n", stats.BackwardTime, share(stats.BackwardTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Weight updates: %v (%.1f%%)\n", stats.UpdateTime, share(stats.UpdateTime, stats.TotalTime))
	fmt.Fprintln(Output, "\nPerformance metrics:")
	fmt.Fprintf(Output, "  Average scoring time: %v\n", stats.ScoringTime/time.Duration(steps))
	fmt.Fprintf(Output, "  Average bound time: %v\n", stats.EstimateTime/time.Duration(steps))
	fmt.Fprintf(Output, "  Average backward time: %v\n", stats.BackwardTime/time.Duration(steps))
}

// DurationUS converts any time.Duration to micro-seconds as float64
func DurationUS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000.0
}

package train

// StopReason records why a run ended.
type StopReason int

const (
	// StopNone means the run is still going.
	StopNone StopReason = iota
	// StopExhausted means every configured epoch ran.
	StopExhausted
	// StopCombined means coverage stayed below target while the MSE had
	// plateaued for Patience consecutive checkpoints.
	StopCombined
	// StopLowCoverage means coverage stayed below LowCoverageThreshold for
	// Patience consecutive checkpoints.
	StopLowCoverage
)

func (r StopReason) String() string {
	switch r {
	case StopNone:
		return "none"
	case StopExhausted:
		return "exhausted"
	case StopCombined:
		return "combined"
	case StopLowCoverage:
		return "low_coverage"
	default:
		return "unknown"
	}
}

// Message is the console line announcing the stop.
func (r StopReason) Message() string {
	switch r {
	case StopCombined:
		return "Early stopping: coverage below target and MSE improvement stalled"
	case StopLowCoverage:
		return "Early stopping: coverage persistently below 90%"
	case StopExhausted:
		return "Training finished: epoch limit reached"
	default:
		return ""
	}
}

// EarlyStopper holds the two consecutive-failure counters. Counters never
// decrement; a non-qualifying checkpoint resets them to zero.
type EarlyStopper struct {
	Combined    int
	LowCoverage int
}

// Observe updates both counters from a checkpoint's coverage and the per-epoch
// MSE history. The plateau test compares the last two epochs, not the last two
// checkpoints. With fewer than two MSE values the plateau test fails.
func (s *EarlyStopper) Observe(coverage float64, mse []float64) StopReason {
	n := len(mse)
	plateau := n >= 2 && mse[n-1]-mse[n-2] < MSEPlateau

	if coverage < CoverageTarget && plateau {
		s.Combined++
	} else {
		s.Combined = 0
	}
	if coverage < LowCoverageThreshold {
		s.LowCoverage++
	} else {
		s.LowCoverage = 0
	}

	switch {
	case s.Combined >= Patience:
		return StopCombined
	case s.LowCoverage >= Patience:
		return StopLowCoverage
	}
	return StopNone
}

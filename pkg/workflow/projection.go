package workflow

import (
	"fmt"
	"math"
)

const (
	BannerComplete     = "✓ Study materials generated successfully!"
	BannerErrored      = "✗ An error occurred during generation"
	BannerInitializing = "Initializing..."
	BannerProcessing   = "Processing..."
	etaPending         = "Calculating..."

	secondsPerStep = 10
)

// Projection is the user-facing view of a run.
type Projection struct {
	CurrentStepDescription string `json:"currentStepDescription"`
	ProgressPercent        int    `json:"progress"`
	EstimatedTimeRemaining string `json:"estimatedTimeRemaining"`
}

// Project maps a run and the ordered step labels of its definition to a
// Projection. It depends on nothing but its arguments.
func Project(run *Run, labels []string) Projection {
	total := len(labels)
	completed := len(run.Steps)
	if completed > total {
		completed = total
	}

	switch run.Status {
	case StatusComplete:
		return Projection{
			CurrentStepDescription: BannerComplete,
			ProgressPercent:        100,
			EstimatedTimeRemaining: "0 seconds",
		}
	case StatusErrored, StatusTerminated:
		return Projection{
			CurrentStepDescription: BannerErrored,
			EstimatedTimeRemaining: etaPending,
		}
	case StatusRunning:
		desc := BannerProcessing
		if completed < total {
			desc = labels[completed]
		}
		percent := 0
		if total > 0 {
			percent = int(math.Round(100 * float64(completed) / float64(total)))
		}
		return Projection{
			CurrentStepDescription: desc,
			ProgressPercent:        percent,
			EstimatedTimeRemaining: FormatETA((total - completed) * secondsPerStep),
		}
	default:
		return Projection{
			CurrentStepDescription: BannerInitializing,
			EstimatedTimeRemaining: etaPending,
		}
	}
}

// FormatETA renders seconds below a minute as "~N seconds", else whole minutes rounded up.
func FormatETA(seconds int) string {
	if seconds <= 0 {
		return "0 seconds"
	}
	if seconds < 60 {
		return fmt.Sprintf("~%d seconds", seconds)
	}
	minutes := (seconds + 59) / 60
	if minutes == 1 {
		return "~1 minute"
	}
	return fmt.Sprintf("~%d minutes", minutes)
}

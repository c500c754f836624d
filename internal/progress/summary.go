package progress

import (
	"fmt"

	"backlog/internal/features"
)

// SummaryLine renders the one-line status shown by the CLI.
func SummaryLine(stats features.Stats) string {
	if stats.Total <= 0 {
		return "Progress: No features in database yet"
	}
	pct := float64(stats.Passing) * 100 / float64(stats.Total)
	return fmt.Sprintf("Progress: %d/%d tests passing (%.1f%%)", stats.Passing, stats.Total, pct)
}

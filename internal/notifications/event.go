package notifications

import (
	"fmt"
	"strings"
	"time"
)

// EventTestProgress is the event name carried in webhook payloads.
const EventTestProgress = "test_progress"

// timestampLayout renders UTC timestamps with microseconds and a Z suffix.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// ProgressEvent describes an increase in the number of passing features.
type ProgressEvent struct {
	Passing              int
	Total                int
	Percentage           float64
	PreviousPassing      int
	CompletedThisSession int
	CompletedTests       []string
	Project              string
	Timestamp            time.Time
}

// Summary renders a one-line description used by text transports and logs.
func (e ProgressEvent) Summary() string {
	return fmt.Sprintf("%d/%d tests passing (%.1f%%), +%d since last check",
		e.Passing, e.Total, e.Percentage, e.CompletedThisSession)
}

type webhookPayload struct {
	Event                     string   `json:"event"`
	Passing                   int      `json:"passing"`
	Total                     int      `json:"total"`
	Percentage                float64  `json:"percentage"`
	PreviousPassing           int      `json:"previous_passing"`
	TestsCompletedThisSession int      `json:"tests_completed_this_session"`
	CompletedTests            []string `json:"completed_tests"`
	Project                   string   `json:"project"`
	Timestamp                 string   `json:"timestamp"`
}

func newWebhookPayload(e ProgressEvent) webhookPayload {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	completed := e.CompletedTests
	if completed == nil {
		completed = []string{}
	}
	return webhookPayload{
		Event:                     EventTestProgress,
		Passing:                   e.Passing,
		Total:                     e.Total,
		Percentage:                e.Percentage,
		PreviousPassing:           e.PreviousPassing,
		TestsCompletedThisSession: e.CompletedThisSession,
		CompletedTests:            completed,
		Project:                   e.Project,
		Timestamp:                 ts.UTC().Format(timestampLayout),
	}
}

func ntfyMessage(e ProgressEvent) string {
	var b strings.Builder
	b.WriteString("✅ ")
	b.WriteString(e.Summary())
	if len(e.CompletedTests) > 0 {
		b.WriteString("\nCompleted:")
		for _, name := range e.CompletedTests {
			b.WriteString("\n• ")
			b.WriteString(name)
		}
	}
	return b.String()
}

package analyzer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldgate/taskgen/pkg/models"
)

func testContext(events []models.Event) *Context {
	now := time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)
	return &Context{
		Events: events,
		Window: Window{From: now.Add(-time.Hour), To: now, Duration: time.Hour},
		Now:    now,
	}
}

// responseEvents builds n assistant responses, the first truncated of which
// finish with reason "length".
func responseEvents(n, truncated int) []models.Event {
	events := make([]models.Event, n)
	for i := range events {
		reason := "stop"
		if i < truncated {
			reason = "length"
		}
		events[i] = models.Event{
			ID:           fmt.Sprintf("resp-%d", i),
			Actor:        models.ActorAssistant,
			Act:          "llm_response",
			FinishReason: reason,
		}
	}
	return events
}

func TestContinuationTriggersAboveThreshold(t *testing.T) {
	a := NewContinuationAnalyzer(0.15)
	tasks, err := a.Analyze(context.Background(), testContext(responseEvents(200, 34)))
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	task := tasks[0]
	assert.Equal(t, models.TaskTypeContinuation, task.Type)
	assert.Equal(t, models.SeverityHigh, task.Severity)
	assert.InDelta(t, 0.86, task.Confidence, 1e-9)
	assert.Equal(t, 64, task.Priority)
	assert.Equal(t, "continuation", task.Analyzer)
	assert.InDelta(t, 0.17, task.Evidence.Metrics["continuationRate"], 1e-9)
	assert.Equal(t, 0.15, task.Evidence.Metrics["threshold"])
	require.NotNil(t, task.Metadata)
	assert.Len(t, task.Metadata.RelatedEvents, models.MaxEvidenceSamples)
}

func TestContinuationCriticalAboveThirtyPercent(t *testing.T) {
	a := NewContinuationAnalyzer(0.15)
	tasks, err := a.Analyze(context.Background(), testContext(responseEvents(100, 40)))
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, models.SeverityCritical, tasks[0].Severity)
	assert.Equal(t, 0.95, tasks[0].Confidence)
}

func TestContinuationQuiet(t *testing.T) {
	a := NewContinuationAnalyzer(0.15)

	// At the threshold exactly: no trigger.
	tasks, err := a.Analyze(context.Background(), testContext(responseEvents(100, 15)))
	require.NoError(t, err)
	assert.Empty(t, tasks)

	// Too few responses to judge.
	tasks, err = a.Analyze(context.Background(), testContext(responseEvents(10, 9)))
	require.NoError(t, err)
	assert.Empty(t, tasks)

	// No events at all.
	tasks, err = a.Analyze(context.Background(), testContext(nil))
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

package analyzer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldgate/taskgen/pkg/models"
)

// conversation builds a short conversation; completed ones end with a
// successful assistant turn.
func conversation(id string, completed bool, errors int, waitMS float64) []models.Event {
	events := []models.Event{
		{ID: id + "-u", ConvID: id, Actor: models.ActorUser, Act: "user_message"},
	}
	for i := 0; i < errors; i++ {
		events = append(events, models.Event{
			ID: fmt.Sprintf("%s-e%d", id, i), ConvID: id,
			Act: "tool_call", Name: "grep", Status: models.EventStatusError,
		})
	}
	if waitMS > 0 {
		events = append(events, models.Event{
			ID: id + "-slow", ConvID: id, Act: "tool_call", Name: "search", ElapsedMS: waitMS,
		})
	}
	if completed {
		events = append(events, models.Event{
			ID: id + "-a", ConvID: id, Actor: models.ActorAssistant,
			Act: "llm_response", Status: models.EventStatusOK, FinishReason: "stop",
		})
	}
	return events
}

func conversations(total, aborted int) []models.Event {
	var events []models.Event
	for i := 0; i < total; i++ {
		events = append(events, conversation(fmt.Sprintf("conv-%d", i), i >= aborted, 0, 0)...)
	}
	return events
}

func TestUXIssueFlagsAbandonedConversations(t *testing.T) {
	a := NewUXIssueAnalyzer(0.20)

	// 3 of 10 conversations end without a successful completion.
	tasks, err := a.Analyze(context.Background(), testContext(conversations(10, 3)))
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	task := tasks[0]
	assert.Equal(t, models.TaskTypeUXIssue, task.Type)
	assert.Contains(t, task.Title, "abandoned conversations")
	assert.InDelta(t, 0.3, task.Evidence.Metrics["abortRate"], 1e-9)
	assert.Equal(t, 3.0, task.Evidence.Metrics["affectedCount"])
}

func TestUXIssueFlagsLongWaits(t *testing.T) {
	a := NewUXIssueAnalyzer(0.20)

	var events []models.Event
	for i := 0; i < 10; i++ {
		var wait float64
		if i < 2 { // 20% > 15% long-wait threshold
			wait = 9000
		}
		events = append(events, conversation(fmt.Sprintf("conv-%d", i), true, 0, wait)...)
	}

	tasks, err := a.Analyze(context.Background(), testContext(events))
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Contains(t, tasks[0].Title, "slow responses")
}

func TestUXIssueFlagsErrorHeavyConversations(t *testing.T) {
	a := NewUXIssueAnalyzer(0.20)

	var events []models.Event
	for i := 0; i < 10; i++ {
		errors := 0
		if i < 3 { // conversations that are mostly errors
			errors = 5
		}
		events = append(events, conversation(fmt.Sprintf("conv-%d", i), true, errors, 0)...)
	}

	tasks, err := a.Analyze(context.Background(), testContext(events))
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Contains(t, tasks[0].Title, "error-heavy conversations")
}

func TestUXIssueNeedsMinimumConversations(t *testing.T) {
	a := NewUXIssueAnalyzer(0.20)
	tasks, err := a.Analyze(context.Background(), testContext(conversations(5, 5)))
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestUXIssueQuietOnHealthyTraffic(t *testing.T) {
	a := NewUXIssueAnalyzer(0.20)
	tasks, err := a.Analyze(context.Background(), testContext(conversations(12, 0)))
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldgate/taskgen/pkg/models"
)

// stubAnalyzer emits canned results or misbehaves on demand.
type stubAnalyzer struct {
	name    string
	enabled bool
	tasks   []models.TaskCard
	err     error
	panics  bool
}

func (s *stubAnalyzer) Name() string  { return s.name }
func (s *stubAnalyzer) Enabled() bool { return s.enabled }

func (s *stubAnalyzer) Analyze(context.Context, *Context) ([]models.TaskCard, error) {
	if s.panics {
		panic("boom")
	}
	return s.tasks, s.err
}

func stubTask(t *testing.T, title string, severity models.Severity, confidence float64) models.TaskCard {
	t.Helper()
	task, err := models.NewTaskCard(time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC),
		models.TaskTypeErrorSpike, severity, title, "d",
		models.Evidence{Summary: "s"}, models.SuggestedFix{Approach: "investigate_and_fix"},
		[]string{"done"}, confidence, "stub")
	require.NoError(t, err)
	return task
}

func TestRegistryAggregatesAndSorts(t *testing.T) {
	low := stubTask(t, "low", models.SeverityLow, 0.6)
	high := stubTask(t, "high", models.SeverityCritical, 0.9)

	r := NewRegistry(
		&stubAnalyzer{name: "a", enabled: true, tasks: []models.TaskCard{low}},
		&stubAnalyzer{name: "b", enabled: true, tasks: []models.TaskCard{high}},
	)

	tasks, failures := r.Run(context.Background(), testContext(nil))
	assert.Empty(t, failures)
	require.Len(t, tasks, 2)
	assert.Equal(t, "high", tasks[0].Title)
	assert.Equal(t, "low", tasks[1].Title)
}

func TestRegistryIsolatesFailures(t *testing.T) {
	ok := stubTask(t, "survivor", models.SeverityHigh, 0.8)

	r := NewRegistry(
		&stubAnalyzer{name: "panicky", enabled: true, panics: true},
		&stubAnalyzer{name: "broken", enabled: true, err: errors.New("bad window")},
		&stubAnalyzer{name: "fine", enabled: true, tasks: []models.TaskCard{ok}},
	)

	tasks, failures := r.Run(context.Background(), testContext(nil))

	require.Len(t, tasks, 1)
	assert.Equal(t, "survivor", tasks[0].Title)

	require.Len(t, failures, 2)
	assert.Equal(t, "broken", failures[0].Analyzer)
	assert.Equal(t, "panicky", failures[1].Analyzer)
	assert.Contains(t, failures[1].Err.Error(), "panic")
}

func TestRegistrySkipsDisabled(t *testing.T) {
	task := stubTask(t, "ignored", models.SeverityHigh, 0.8)
	r := NewRegistry(&stubAnalyzer{name: "off", enabled: false, tasks: []models.TaskCard{task}})

	tasks, failures := r.Run(context.Background(), testContext(nil))
	assert.Empty(t, tasks)
	assert.Empty(t, failures)
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry(
		&stubAnalyzer{name: "first"},
		&stubAnalyzer{name: "second"},
	)
	assert.Equal(t, []string{"first", "second"}, r.Names())
}

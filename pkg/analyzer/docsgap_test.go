package analyzer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldgate/taskgen/pkg/models"
)

type docSet map[string]bool

func (d docSet) IsDocumented(tool string) bool { return d[tool] }

func toolCallEvents(counts map[string]int) []models.Event {
	var events []models.Event
	for tool, n := range counts {
		for i := 0; i < n; i++ {
			events = append(events, models.Event{
				ID:   fmt.Sprintf("%s-%d", tool, i),
				Act:  "tool_call",
				Name: tool,
			})
		}
	}
	return events
}

func TestDocsGapFlagsUndocumentedTools(t *testing.T) {
	a := NewDocsGapAnalyzer(20)

	actx := testContext(toolCallEvents(map[string]int{
		"read_file": 60, // undocumented, heavy use
		"grep":      30, // documented
		"rare_tool": 5,  // under the floor
	}))
	actx.Docs = docSet{"grep": true}

	tasks, err := a.Analyze(context.Background(), actx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	task := tasks[0]
	assert.Equal(t, models.TaskTypeDocsGap, task.Type)
	assert.Equal(t, "Document heavily used tool: read_file", task.Title)
	assert.Equal(t, models.SeverityHigh, task.Severity)
	assert.Equal(t, 60.0, task.Evidence.Metrics["callCount"])
}

func TestDocsGapSeverityScalesWithUsage(t *testing.T) {
	a := NewDocsGapAnalyzer(20)

	actx := testContext(toolCallEvents(map[string]int{"hot_tool": 150}))
	actx.Docs = docSet{}

	tasks, err := a.Analyze(context.Background(), actx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, models.SeverityCritical, tasks[0].Severity)
}

func TestDocsGapAbstainsWithoutChecker(t *testing.T) {
	a := NewDocsGapAnalyzer(20)
	tasks, err := a.Analyze(context.Background(), testContext(toolCallEvents(map[string]int{"x": 100})))
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestDocsGapDeterministicOrdering(t *testing.T) {
	a := NewDocsGapAnalyzer(20)

	actx := testContext(toolCallEvents(map[string]int{"zeta": 25, "alpha": 25, "mid": 25}))
	actx.Docs = docSet{}

	tasks, err := a.Analyze(context.Background(), actx)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Contains(t, tasks[0].Title, "alpha")
	assert.Contains(t, tasks[1].Title, "mid")
	assert.Contains(t, tasks[2].Title, "zeta")
}

func TestDirDocChecker(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grep.md"), []byte("# grep"), 0o644))

	c := NewDirDocChecker(dir)
	assert.True(t, c.IsDocumented("grep"))
	assert.False(t, c.IsDocumented("read_file"))
	assert.False(t, c.IsDocumented("../grep"))
	assert.False(t, c.IsDocumented(""))
}

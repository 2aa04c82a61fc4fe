package analyzer

import (
	"context"
	"fmt"
	"sort"

	"github.com/fieldgate/taskgen/pkg/contextlog"
	"github.com/fieldgate/taskgen/pkg/models"
)

// DocsGapAnalyzerName is the registry key for the documentation gap
// detector.
const DocsGapAnalyzerName = "docs_gap"

// DefaultDocsGapMinUsage is the call-count floor below which a tool is
// not worth a documentation task.
const DefaultDocsGapMinUsage = 20

// Docs gap severity thresholds on call count.
const (
	docsGapCriticalUsage = 100
	docsGapHighUsage     = 50
)

// DocsGapAnalyzer flags heavily used tools that the host's documentation
// predicate reports as undocumented.
type DocsGapAnalyzer struct {
	minUsage int
	enabled  bool
}

// NewDocsGapAnalyzer creates the analyzer with the given usage floor.
func NewDocsGapAnalyzer(minUsage int) *DocsGapAnalyzer {
	if minUsage <= 0 {
		minUsage = DefaultDocsGapMinUsage
	}
	return &DocsGapAnalyzer{minUsage: minUsage, enabled: true}
}

func (a *DocsGapAnalyzer) Name() string  { return DocsGapAnalyzerName }
func (a *DocsGapAnalyzer) Enabled() bool { return a.enabled }

// Analyze emits one task per undocumented tool whose call count meets the
// usage floor. Without a documentation predicate the analyzer abstains.
func (a *DocsGapAnalyzer) Analyze(_ context.Context, actx *Context) ([]models.TaskCard, error) {
	if actx.Docs == nil {
		return nil, nil
	}

	var toolCalls []models.Event
	for i := range actx.Events {
		if actx.Events[i].IsToolCall() {
			toolCalls = append(toolCalls, actx.Events[i])
		}
	}
	groups := contextlog.GroupBy(toolCalls, contextlog.ByName)

	// Deterministic ordering: tools by name.
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	var tasks []models.TaskCard
	for _, name := range names {
		calls := groups[name]
		if len(calls) < a.minUsage {
			continue
		}
		if actx.Docs.IsDocumented(name) {
			continue
		}

		usage := len(calls)
		severity := models.SeverityMedium
		switch {
		case usage >= docsGapCriticalUsage:
			severity = models.SeverityCritical
		case usage >= docsGapHighUsage:
			severity = models.SeverityHigh
		}

		confidence := clampConfidence(0.70+float64(usage)/1000, 0, 0.95)

		evidence := models.Evidence{
			Summary: fmt.Sprintf("Tool %q was called %d times in the window but has no documentation", name, usage),
			Details: []string{
				fmt.Sprintf("Call count %d meets the usage floor of %d", usage, a.minUsage),
			},
			Metrics: map[string]float64{
				"callCount":     float64(usage),
				"minUsage":      float64(a.minUsage),
				"affectedCount": float64(usage),
			},
			Samples: contextlog.Samples(calls, models.MaxEvidenceSamples),
		}

		fix := models.SuggestedFix{
			Approach: "write_documentation",
			Files:    []string{fmt.Sprintf("docs/tools/%s.md", name)},
			Changes: []string{
				fmt.Sprintf("Write a reference entry for %s covering parameters and failure modes", name),
				"Link the entry from the tool index",
			},
			EstimatedEffort: "small",
		}

		task, err := models.NewTaskCard(actx.Now, models.TaskTypeDocsGap, severity,
			fmt.Sprintf("Document heavily used tool: %s", name),
			fmt.Sprintf("The tool %q was invoked %d times in the analysis window yet has no "+
				"documentation. Undocumented tools produce malformed calls and avoidable errors.",
				name, usage),
			evidence, fix,
			[]string{fmt.Sprintf("Documentation for %s exists and is discoverable", name)},
			confidence, a.Name())
		if err != nil {
			return nil, err
		}
		task.Metadata = relatedEvents(calls)
		tasks = append(tasks, task)
	}
	return tasks, nil
}

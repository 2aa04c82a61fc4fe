package analyzer

import (
	"context"
	"fmt"

	"github.com/fieldgate/taskgen/pkg/contextlog"
	"github.com/fieldgate/taskgen/pkg/models"
)

// UXIssueAnalyzerName is the registry key for the user-experience
// friction detector.
const UXIssueAnalyzerName = "ux_issue"

// UX analysis defaults.
const (
	DefaultUXAbortThreshold = 0.20
	uxMinConversations      = 10
	uxLongWaitMS            = 8000
	uxLongWaitThreshold     = 0.15
	uxErrorConvRatio        = 0.30
	uxErrorThreshold        = 0.25
)

// UXIssueAnalyzer groups events by conversation and emits up to three
// separate tasks: aborted conversations, long waits, and error-heavy
// conversations.
type UXIssueAnalyzer struct {
	abortThreshold float64
	enabled        bool
}

// NewUXIssueAnalyzer creates the analyzer with the given abort-rate
// trigger threshold.
func NewUXIssueAnalyzer(abortThreshold float64) *UXIssueAnalyzer {
	if abortThreshold <= 0 {
		abortThreshold = DefaultUXAbortThreshold
	}
	return &UXIssueAnalyzer{abortThreshold: abortThreshold, enabled: true}
}

func (a *UXIssueAnalyzer) Name() string  { return UXIssueAnalyzerName }
func (a *UXIssueAnalyzer) Enabled() bool { return a.enabled }

// convStats summarizes one conversation for the three checks.
type convStats struct {
	id          string
	total       int
	errors      int
	completed   bool
	hasLongWait bool
}

// Analyze requires at least uxMinConversations conversations, then runs
// the three friction checks independently.
func (a *UXIssueAnalyzer) Analyze(_ context.Context, actx *Context) ([]models.TaskCard, error) {
	groups := contextlog.GroupBy(actx.Events, contextlog.ByConvID)
	if len(groups) < uxMinConversations {
		return nil, nil
	}

	stats := make([]convStats, 0, len(groups))
	for id, events := range groups {
		s := convStats{id: id, total: len(events)}
		for i := range events {
			e := &events[i]
			if e.IsError() {
				s.errors++
			}
			if e.Actor == models.ActorAssistant && e.Status == models.EventStatusOK {
				s.completed = true
			}
			if e.ElapsedMS > uxLongWaitMS {
				s.hasLongWait = true
			}
		}
		stats = append(stats, s)
	}

	total := len(stats)
	var aborted, longWaits, errorHeavy int
	for _, s := range stats {
		if !s.completed {
			aborted++
		}
		if s.hasLongWait {
			longWaits++
		}
		if s.total > 0 && float64(s.errors)/float64(s.total) > uxErrorConvRatio {
			errorHeavy++
		}
	}

	var tasks []models.TaskCard

	if ratio := float64(aborted) / float64(total); ratio > a.abortThreshold {
		task, err := a.buildTask(actx, "abandoned conversations",
			fmt.Sprintf("%d of %d conversations (%.0f%%) ended without a successful completion", aborted, total, ratio*100),
			fmt.Sprintf("Users are abandoning conversations before getting an answer: %d of %d "+
				"conversations in the window contain no successful assistant completion.", aborted, total),
			map[string]float64{
				"abortRate":     ratio,
				"threshold":     a.abortThreshold,
				"affectedCount": float64(aborted),
			},
			ratio, a.abortThreshold)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	if ratio := float64(longWaits) / float64(total); ratio > uxLongWaitThreshold {
		task, err := a.buildTask(actx, "slow responses",
			fmt.Sprintf("%d of %d conversations (%.0f%%) contained waits over %ds", longWaits, total, ratio*100, uxLongWaitMS/1000),
			fmt.Sprintf("Responses are keeping users waiting: %d of %d conversations include at "+
				"least one operation slower than %d seconds.", longWaits, total, uxLongWaitMS/1000),
			map[string]float64{
				"longWaitRate":  ratio,
				"threshold":     uxLongWaitThreshold,
				"affectedCount": float64(longWaits),
			},
			ratio, uxLongWaitThreshold)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	if ratio := float64(errorHeavy) / float64(total); ratio > uxErrorThreshold {
		task, err := a.buildTask(actx, "error-heavy conversations",
			fmt.Sprintf("%d of %d conversations (%.0f%%) had more than %.0f%% errors", errorHeavy, total, ratio*100, uxErrorConvRatio*100),
			fmt.Sprintf("Conversations are failing visibly: %d of %d conversations in the window "+
				"have an internal error ratio above %.0f%%.", errorHeavy, total, uxErrorConvRatio*100),
			map[string]float64{
				"errorConvRate": ratio,
				"threshold":     uxErrorThreshold,
				"affectedCount": float64(errorHeavy),
			},
			ratio, uxErrorThreshold)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	return tasks, nil
}

// buildTask assembles one UX task; severity steps up to high when the
// observed ratio is at least double its trigger threshold.
func (a *UXIssueAnalyzer) buildTask(actx *Context, symptom, summary, description string,
	metrics map[string]float64, ratio, threshold float64) (models.TaskCard, error) {

	severity := models.SeverityMedium
	if ratio >= 2*threshold {
		severity = models.SeverityHigh
	}
	confidence := clampConfidence(0.60+(ratio-threshold), 0, 0.90)

	evidence := models.Evidence{
		Summary: summary,
		Metrics: metrics,
	}
	fix := models.SuggestedFix{
		Approach: "investigate_and_fix",
		Changes: []string{
			fmt.Sprintf("Sample affected conversations and characterize the %s pattern", symptom),
			"Fix the dominant friction source and re-measure",
		},
		EstimatedEffort: "medium",
	}
	return models.NewTaskCard(actx.Now, models.TaskTypeUXIssue, severity,
		fmt.Sprintf("Reduce user friction: %s", symptom),
		description, evidence, fix,
		[]string{fmt.Sprintf("Rate of %s drops below the %.0f%% threshold", symptom, threshold*100)},
		confidence, a.Name())
}

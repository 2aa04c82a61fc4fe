package analyzer

import (
	"context"
	"fmt"

	"github.com/fieldgate/taskgen/pkg/contextlog"
	"github.com/fieldgate/taskgen/pkg/models"
)

// ContinuationAnalyzer detects responses cut off by token limits.
// Name is also the trust key used by auto-approval.
const ContinuationAnalyzerName = "continuation"

// Continuation analysis defaults.
const (
	DefaultContinuationThreshold = 0.15
	continuationMinSample        = 20
	continuationCriticalRatio    = 0.30
	continuationHighRatio        = 0.15
)

// ContinuationAnalyzer flags windows where too many assistant responses
// finish with reason "length" — the model is being truncated mid-answer.
type ContinuationAnalyzer struct {
	threshold float64
	enabled   bool
}

// NewContinuationAnalyzer creates the analyzer with the given trigger
// threshold (continuations / responses).
func NewContinuationAnalyzer(threshold float64) *ContinuationAnalyzer {
	if threshold <= 0 {
		threshold = DefaultContinuationThreshold
	}
	return &ContinuationAnalyzer{threshold: threshold, enabled: true}
}

func (a *ContinuationAnalyzer) Name() string  { return ContinuationAnalyzerName }
func (a *ContinuationAnalyzer) Enabled() bool { return a.enabled }

// Analyze triggers when the continuation ratio exceeds the threshold over
// at least continuationMinSample responses.
func (a *ContinuationAnalyzer) Analyze(_ context.Context, actx *Context) ([]models.TaskCard, error) {
	var responses, continuations []models.Event
	for i := range actx.Events {
		e := &actx.Events[i]
		if !e.IsAssistantResponse() {
			continue
		}
		responses = append(responses, *e)
		if e.FinishReason == "length" {
			continuations = append(continuations, *e)
		}
	}

	total := len(responses)
	if total < continuationMinSample {
		return nil, nil
	}
	ratio := float64(len(continuations)) / float64(total)
	if ratio <= a.threshold {
		return nil, nil
	}

	severity := models.SeverityMedium
	switch {
	case ratio > continuationCriticalRatio:
		severity = models.SeverityCritical
	case ratio > continuationHighRatio:
		severity = models.SeverityHigh
	}

	confidence := clampConfidence(0.70+8*(ratio-a.threshold), 0, 0.95)

	evidence := models.Evidence{
		Summary: fmt.Sprintf("%d of %d assistant responses (%.0f%%) were cut off by the token limit",
			len(continuations), total, ratio*100),
		Details: []string{
			fmt.Sprintf("Window: %s to %s", actx.Window.From.Format("15:04:05"), actx.Window.To.Format("15:04:05")),
			fmt.Sprintf("Continuation ratio %.2f exceeds threshold %.2f", ratio, a.threshold),
		},
		Metrics: map[string]float64{
			"continuationRate": ratio,
			"threshold":        a.threshold,
			"totalResponses":   float64(total),
			"continuations":    float64(len(continuations)),
		},
		Samples: contextlog.Samples(continuations, models.MaxEvidenceSamples),
	}

	fix := models.SuggestedFix{
		Approach: "adjust_configuration",
		Files:    []string{"config/llm.yaml"},
		Changes: []string{
			"Raise the max-token ceiling for assistant responses",
			"Trim prompt overhead so more of the budget reaches the answer",
		},
		EstimatedEffort: "small",
	}

	task, err := models.NewTaskCard(actx.Now, models.TaskTypeContinuation, severity,
		fmt.Sprintf("Fix truncated responses: %.0f%% hit the token limit", ratio*100),
		fmt.Sprintf("Over the last window, %d of %d assistant responses ended with finish_reason "+
			"\"length\", meaning the model ran out of tokens before completing its answer. "+
			"Users see truncated output and have to ask for continuations.", len(continuations), total),
		evidence, fix,
		[]string{
			"Continuation ratio drops below the configured threshold",
			"No user-visible truncated responses in a follow-up window",
		},
		confidence, a.Name())
	if err != nil {
		return nil, err
	}
	task.Metadata = relatedEvents(continuations)
	return []models.TaskCard{task}, nil
}

// relatedEvents captures up to MaxEvidenceSamples supporting event ids.
func relatedEvents(events []models.Event) *models.TaskMetadata {
	if len(events) == 0 {
		return nil
	}
	n := len(events)
	if n > models.MaxEvidenceSamples {
		n = models.MaxEvidenceSamples
	}
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if events[i].ID != "" {
			ids = append(ids, events[i].ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return &models.TaskMetadata{RelatedEvents: ids}
}

package analyzer

import (
	"context"
	"fmt"

	"github.com/fieldgate/taskgen/pkg/contextlog"
	"github.com/fieldgate/taskgen/pkg/models"
)

// ErrorSpikeAnalyzerName is the registry and trust key for the error
// spike detector.
const ErrorSpikeAnalyzerName = "error_spike"

// Error spike defaults.
const (
	DefaultErrorSpikeMultiplier = 3.0
	errorSpikeMinErrors         = 5
	errorSpikeCriticalMult      = 5.0
	errorSpikeHighMult          = 4.5
	errorSpikeTopGroups         = 5
)

// ErrorSpikeAnalyzer flags windows whose error rate is a configured
// multiple of the 7-day baseline.
type ErrorSpikeAnalyzer struct {
	multiplier float64
	enabled    bool
}

// NewErrorSpikeAnalyzer creates the analyzer with the given trigger
// multiplier M.
func NewErrorSpikeAnalyzer(multiplier float64) *ErrorSpikeAnalyzer {
	if multiplier <= 0 {
		multiplier = DefaultErrorSpikeMultiplier
	}
	return &ErrorSpikeAnalyzer{multiplier: multiplier, enabled: true}
}

func (a *ErrorSpikeAnalyzer) Name() string  { return ErrorSpikeAnalyzerName }
func (a *ErrorSpikeAnalyzer) Enabled() bool { return a.enabled }

// Analyze triggers when currentErrorsPerHour ≥ M × baseline with at least
// errorSpikeMinErrors in the window. Abstains when the baseline is
// unavailable — a missing denominator must not be replaced by a guess.
func (a *ErrorSpikeAnalyzer) Analyze(_ context.Context, actx *Context) ([]models.TaskCard, error) {
	baseline := actx.Baselines.ErrorsPerHour
	if baseline.Samples == 0 || baseline.Value <= 0 {
		return nil, nil
	}

	var errors []models.Event
	for i := range actx.Events {
		if actx.Events[i].IsError() {
			errors = append(errors, actx.Events[i])
		}
	}
	if len(errors) < errorSpikeMinErrors {
		return nil, nil
	}

	currentPerHour := float64(len(errors)) / windowHours(actx.Window)
	observedMult := currentPerHour / baseline.Value
	if observedMult < a.multiplier {
		return nil, nil
	}

	severity := models.SeverityMedium
	switch {
	case observedMult >= errorSpikeCriticalMult:
		severity = models.SeverityCritical
	case observedMult >= errorSpikeHighMult:
		severity = models.SeverityHigh
	}

	confidence := clampConfidence(0.65+0.1*(observedMult-a.multiplier), 0, 0.95)

	groups := contextlog.GroupBy(errors, contextlog.ByName)
	top := contextlog.TopN(groups, errorSpikeTopGroups)

	details := []string{
		fmt.Sprintf("Current rate %.1f errors/hour vs baseline %.1f errors/hour", currentPerHour, baseline.Value),
	}
	for _, g := range top {
		details = append(details, fmt.Sprintf("%s: %d errors", g.Key, g.Count))
	}

	topName := "unknown"
	if len(top) > 0 {
		topName = top[0].Key
	}

	evidence := models.Evidence{
		Summary: fmt.Sprintf("Error rate is %.1fx baseline (%d errors in the window, most from %s)",
			observedMult, len(errors), topName),
		Details: details,
		Metrics: map[string]float64{
			"currentErrorsPerHour":  currentPerHour,
			"baselineErrorsPerHour": baseline.Value,
			"spikeMultiplier":       observedMult,
			"affectedCount":         float64(len(errors)),
		},
		Samples: contextlog.Samples(errors, models.MaxEvidenceSamples),
	}

	fix := models.SuggestedFix{
		Approach: "investigate_and_fix",
		Changes: []string{
			fmt.Sprintf("Inspect recent failures of %s for a common root cause", topName),
			"Check for a recent deploy or dependency change coinciding with the spike",
		},
		EstimatedEffort: "medium",
	}

	task, err := models.NewTaskCard(actx.Now, models.TaskTypeErrorSpike, severity,
		fmt.Sprintf("Investigate %.1fx error spike: %s", observedMult, topName),
		fmt.Sprintf("The error rate jumped to %.1f errors/hour, %.1fx the 7-day baseline of %.1f. "+
			"The dominant failing operation is %q. Left alone this degrades every downstream flow.",
			currentPerHour, observedMult, baseline.Value, topName),
		evidence, fix,
		[]string{
			"Error rate returns to within 1.5x of baseline",
			"Root cause of the dominant failure identified and fixed",
		},
		confidence, a.Name())
	if err != nil {
		return nil, err
	}
	task.Metadata = relatedEvents(errors)
	return []models.TaskCard{task}, nil
}

package analyzer

import (
	"context"
	"fmt"

	"github.com/fieldgate/taskgen/pkg/contextlog"
	"github.com/fieldgate/taskgen/pkg/models"
)

// PerformanceAnalyzerName is the registry key for the latency regression
// detector.
const PerformanceAnalyzerName = "performance"

// Performance analysis defaults.
const (
	DefaultPerformanceThreshold = 1.5
	performanceMinSample        = 20
	performanceCriticalRatio    = 2.0
	performanceHighRatio        = 1.95
)

// PerformanceAnalyzer compares the window's p95 latency against the 7-day
// baseline and flags regressions.
type PerformanceAnalyzer struct {
	threshold float64
	enabled   bool
}

// NewPerformanceAnalyzer creates the analyzer with the given trigger
// ratio.
func NewPerformanceAnalyzer(threshold float64) *PerformanceAnalyzer {
	if threshold <= 0 {
		threshold = DefaultPerformanceThreshold
	}
	return &PerformanceAnalyzer{threshold: threshold, enabled: true}
}

func (a *PerformanceAnalyzer) Name() string  { return PerformanceAnalyzerName }
func (a *PerformanceAnalyzer) Enabled() bool { return a.enabled }

// Analyze triggers when p95 latency is at least threshold times the
// baseline over a minimum sample. Abstains without baseline history.
func (a *PerformanceAnalyzer) Analyze(_ context.Context, actx *Context) ([]models.TaskCard, error) {
	baseline := actx.Baselines.AvgLatencyMS
	if baseline.Samples == 0 || baseline.Value <= 0 {
		return nil, nil
	}

	var timed []models.Event
	for i := range actx.Events {
		if actx.Events[i].ElapsedMS > 0 {
			timed = append(timed, actx.Events[i])
		}
	}
	if len(timed) < performanceMinSample {
		return nil, nil
	}

	p50 := contextlog.Percentile(timed, contextlog.ElapsedMS, 50)
	p95 := contextlog.Percentile(timed, contextlog.ElapsedMS, 95)
	p99 := contextlog.Percentile(timed, contextlog.ElapsedMS, 99)
	avg := contextlog.Average(timed, contextlog.ElapsedMS)

	ratio := p95 / baseline.Value
	if ratio < a.threshold {
		return nil, nil
	}

	severity := models.SeverityMedium
	switch {
	case ratio >= performanceCriticalRatio:
		severity = models.SeverityCritical
	case ratio >= performanceHighRatio:
		severity = models.SeverityHigh
	}

	confidence := clampConfidence(0.65+0.15*(ratio-a.threshold), 0, 0.95)

	// Bottleneck: the dominant act among the slow tail (elapsed ≥ p95).
	var slow []models.Event
	for i := range timed {
		if timed[i].ElapsedMS >= p95 {
			slow = append(slow, timed[i])
		}
	}
	bottleneck := "unknown"
	if top := contextlog.TopN(contextlog.GroupBy(slow, contextlog.ByAct), 1); len(top) > 0 {
		bottleneck = top[0].Key
	}

	evidence := models.Evidence{
		Summary: fmt.Sprintf("p95 latency %.0fms is %.1fx the 7-day baseline of %.0fms", p95, ratio, baseline.Value),
		Details: []string{
			fmt.Sprintf("p50=%.0fms p95=%.0fms p99=%.0fms avg=%.0fms over %d samples", p50, p95, p99, avg, len(timed)),
			fmt.Sprintf("Dominant operation in the slow tail: %s", bottleneck),
		},
		Metrics: map[string]float64{
			"p50":               p50,
			"p95":               p95,
			"p99":               p99,
			"avg":               avg,
			"baselineLatencyMS": baseline.Value,
			"overshootRatio":    ratio,
			"sampleCount":       float64(len(timed)),
		},
		Samples: contextlog.Samples(slow, models.MaxEvidenceSamples),
	}

	fix := models.SuggestedFix{
		Approach: "profile_and_optimize",
		Changes: []string{
			fmt.Sprintf("Profile %s under current load", bottleneck),
			"Compare against the last known-good deploy for regressions",
		},
		EstimatedEffort: "medium",
	}

	task, err := models.NewTaskCard(actx.Now, models.TaskTypePerformance, severity,
		fmt.Sprintf("Investigate %.1fx latency regression in %s", ratio, bottleneck),
		fmt.Sprintf("The p95 latency over the last window reached %.0fms, %.1fx the 7-day baseline. "+
			"The slow tail is dominated by %q. Users experience this as a sluggish assistant.",
			p95, ratio, bottleneck),
		evidence, fix,
		[]string{"p95 latency within 1.2x of baseline over a follow-up window"},
		confidence, a.Name())
	if err != nil {
		return nil, err
	}
	task.Metadata = relatedEvents(slow)
	return []models.TaskCard{task}, nil
}

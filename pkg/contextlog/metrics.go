package contextlog

import (
	"math"
	"os"
	"sort"
	"time"

	"github.com/fieldgate/taskgen/pkg/models"
)

// Criteria filters events conjunctively: every set field must match.
type Criteria struct {
	Act       string
	Actor     models.Actor
	Status    string
	Name      string
	ConvID    string
	SessionID string
}

// matches reports whether the event satisfies every set criterion.
func (c Criteria) matches(e *models.Event) bool {
	if c.Act != "" && e.Act != c.Act {
		return false
	}
	if c.Actor != "" && e.Actor != c.Actor {
		return false
	}
	if c.Status != "" && e.Status != c.Status {
		return false
	}
	if c.Name != "" && e.Name != c.Name {
		return false
	}
	if c.ConvID != "" && e.ConvID != c.ConvID {
		return false
	}
	if c.SessionID != "" && e.SessionID != c.SessionID {
		return false
	}
	return true
}

// Filter returns the events matching the criteria, preserving order.
func Filter(events []models.Event, c Criteria) []models.Event {
	var out []models.Event
	for i := range events {
		if c.matches(&events[i]) {
			out = append(out, events[i])
		}
	}
	return out
}

// GroupKey extracts the grouping key from an event.
type GroupKey func(*models.Event) string

// Grouping keys used by the analyzers.
var (
	ByName   GroupKey = func(e *models.Event) string { return e.Name }
	ByAct    GroupKey = func(e *models.Event) string { return e.Act }
	ByConvID GroupKey = func(e *models.Event) string { return e.ConvID }
)

// GroupBy buckets events by key, preserving input order within each group.
// Events with an empty key are dropped.
func GroupBy(events []models.Event, key GroupKey) map[string][]models.Event {
	groups := make(map[string][]models.Event)
	for i := range events {
		k := key(&events[i])
		if k == "" {
			continue
		}
		groups[k] = append(groups[k], events[i])
	}
	return groups
}

// GroupCount pairs a group key with its event count.
type GroupCount struct {
	Key   string
	Count int
}

// TopN returns the n largest groups by count, ties broken by key ascending
// so the ranking is deterministic.
func TopN(groups map[string][]models.Event, n int) []GroupCount {
	counts := make([]GroupCount, 0, len(groups))
	for k, evs := range groups {
		counts = append(counts, GroupCount{Key: k, Count: len(evs)})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Key < counts[j].Key
	})
	if n > 0 && len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

// ValueFunc extracts a numeric value from an event.
type ValueFunc func(*models.Event) float64

// ElapsedMS extracts the elapsed_ms field.
var ElapsedMS ValueFunc = func(e *models.Event) float64 { return e.ElapsedMS }

// Percentile computes the p-th percentile of the extracted values using
// the nearest-rank method, p ∈ (0, 100). Returns 0 for empty input.
func Percentile(events []models.Event, value ValueFunc, p float64) float64 {
	if len(events) == 0 || p <= 0 || p > 100 {
		return 0
	}
	values := make([]float64, len(events))
	for i := range events {
		values[i] = value(&events[i])
	}
	sort.Float64s(values)
	rank := int(math.Ceil(p / 100 * float64(len(values))))
	if rank < 1 {
		rank = 1
	}
	return values[rank-1]
}

// Average computes the mean of the extracted values. Returns 0 for empty
// input.
func Average(events []models.Event, value ValueFunc) float64 {
	if len(events) == 0 {
		return 0
	}
	var sum float64
	for i := range events {
		sum += value(&events[i])
	}
	return sum / float64(len(events))
}

// Samples returns up to n events for evidence attachment.
func Samples(events []models.Event, n int) []models.Event {
	if n <= 0 || len(events) == 0 {
		return nil
	}
	if len(events) < n {
		n = len(events)
	}
	out := make([]models.Event, n)
	copy(out, events[:n])
	return out
}

// Baseline metric names.
const (
	MetricErrorsPerHour     = "errors_per_hour"
	MetricContinuationRatio = "continuation_ratio"
	MetricAvgLatencyMS      = "avg_latency_ms"
)

// DefaultBaselineWindow is the historical window baselines default to.
const DefaultBaselineWindow = 7 * 24 * time.Hour

// BaselineResult carries a historical aggregate plus its sample size so
// analyzers can abstain when history is too thin.
type BaselineResult struct {
	Value   float64
	Samples int
}

// Baseline computes a historical aggregate over the given window by
// streaming each hourly file once; memory is bounded by per-file counters,
// never the full event set.
func (r *Reader) Baseline(metric string, window time.Duration) (BaselineResult, error) {
	if window <= 0 {
		window = DefaultBaselineWindow
	}
	now := r.now().UTC()
	from := now.Add(-window)

	if _, err := os.Stat(r.dir); err != nil {
		return BaselineResult{}, &EventReadError{Dir: r.dir, Err: err}
	}

	var (
		errorCount        int
		continuationCount int
		responseCount     int
		latencySum        float64
		latencyCount      int
		totalEvents       int
		hoursWithData     int
	)

	for _, path := range r.hourFiles(from, now) {
		res := &LoadResult{}
		if err := r.loadFile(path, from, now, res); err != nil {
			continue
		}
		if len(res.Events) == 0 {
			continue
		}
		hoursWithData++
		for i := range res.Events {
			e := &res.Events[i]
			totalEvents++
			if e.IsError() {
				errorCount++
			}
			if e.IsAssistantResponse() {
				responseCount++
				if e.FinishReason == "length" {
					continuationCount++
				}
			}
			if e.ElapsedMS > 0 {
				latencySum += e.ElapsedMS
				latencyCount++
			}
		}
	}

	switch metric {
	case MetricErrorsPerHour:
		if hoursWithData == 0 {
			return BaselineResult{}, nil
		}
		return BaselineResult{
			Value:   float64(errorCount) / float64(hoursWithData),
			Samples: totalEvents,
		}, nil
	case MetricContinuationRatio:
		if responseCount == 0 {
			return BaselineResult{}, nil
		}
		return BaselineResult{
			Value:   float64(continuationCount) / float64(responseCount),
			Samples: responseCount,
		}, nil
	case MetricAvgLatencyMS:
		if latencyCount == 0 {
			return BaselineResult{}, nil
		}
		return BaselineResult{
			Value:   latencySum / float64(latencyCount),
			Samples: latencyCount,
		}, nil
	}
	return BaselineResult{}, nil
}

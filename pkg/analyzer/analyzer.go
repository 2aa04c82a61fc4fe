// Package analyzer converts a telemetry event window into task cards.
//
// Each detector implements the Analyzer contract and is pure with respect
// to its Context: it never reads files or the task store. The Registry
// runs all analyzers concurrently and isolates failures so one broken
// detector cannot suppress the others' findings.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/fieldgate/taskgen/pkg/contextlog"
	"github.com/fieldgate/taskgen/pkg/models"
)

// Window is the half-open [From, To) interval the events were loaded from.
type Window struct {
	From     time.Time
	To       time.Time
	Duration time.Duration
}

// Baselines bundles the historical aggregates analyzers compare against.
// A zero-sample baseline means insufficient history: analyzers that need
// it must abstain rather than substitute a default.
type Baselines struct {
	ErrorsPerHour contextlog.BaselineResult
	AvgLatencyMS  contextlog.BaselineResult
}

// DocChecker is the host-supplied documentation predicate consumed by the
// docs-gap analyzer.
type DocChecker interface {
	IsDocumented(tool string) bool
}

// Context is the read-only bundle handed to every analyzer.
type Context struct {
	Events    []models.Event
	Window    Window
	Baselines Baselines
	Docs      DocChecker

	// Now anchors generated timestamps so a run produces consistent
	// generatedAt values across analyzers.
	Now time.Time
}

// Analyzer produces zero or more task cards from a context bundle.
type Analyzer interface {
	Name() string
	Enabled() bool
	Analyze(ctx context.Context, actx *Context) ([]models.TaskCard, error)
}

// Failure records one analyzer's error without aborting the run.
type Failure struct {
	Analyzer string
	Err      error
}

func (f Failure) Error() string {
	return fmt.Sprintf("analyzer %s: %v", f.Analyzer, f.Err)
}

// Registry holds the analyzer set and runs it concurrently.
type Registry struct {
	analyzers []Analyzer
}

// NewRegistry creates a registry over the given analyzers.
func NewRegistry(analyzers ...Analyzer) *Registry {
	return &Registry{analyzers: analyzers}
}

// Names returns the registered analyzer names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.analyzers))
	for _, a := range r.analyzers {
		names = append(names, a.Name())
	}
	return names
}

// Run executes all enabled analyzers concurrently and aggregates their
// task cards sorted by priority. A panicking or failing analyzer is
// recorded as a Failure; it never prevents another analyzer's result from
// being collected.
func (r *Registry) Run(ctx context.Context, actx *Context) ([]models.TaskCard, []Failure) {
	type outcome struct {
		name  string
		tasks []models.TaskCard
		err   error
	}

	results := make(chan outcome, len(r.analyzers))
	launched := 0
	for _, a := range r.analyzers {
		if !a.Enabled() {
			continue
		}
		launched++
		go func(a Analyzer) {
			var out outcome
			out.name = a.Name()
			defer func() {
				if rec := recover(); rec != nil {
					out.err = fmt.Errorf("panic: %v", rec)
					out.tasks = nil
				}
				results <- out
			}()
			out.tasks, out.err = a.Analyze(ctx, actx)
		}(a)
	}

	var tasks []models.TaskCard
	var failures []Failure
	for i := 0; i < launched; i++ {
		out := <-results
		if out.err != nil {
			slog.Warn("Analyzer failed", "analyzer", out.name, "error", out.err)
			failures = append(failures, Failure{Analyzer: out.name, Err: out.err})
			continue
		}
		tasks = append(tasks, out.tasks...)
	}

	models.Sort(tasks)
	sort.Slice(failures, func(i, j int) bool { return failures[i].Analyzer < failures[j].Analyzer })
	return tasks, failures
}

// clampConfidence bounds a computed confidence to [lo, hi].
func clampConfidence(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// windowHours returns the window duration in hours, floored at a minute
// to keep per-hour rates finite on degenerate windows.
func windowHours(w Window) float64 {
	d := w.Duration
	if d < time.Minute {
		d = time.Minute
	}
	return d.Hours()
}

// Package scheduler orchestrates periodic analyzer runs: it loads the
// event window, runs the analyzer registry, and writes surviving task
// cards to the store under confidence, duplicate, and rate-limit gates.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fieldgate/taskgen/pkg/analyzer"
	"github.com/fieldgate/taskgen/pkg/contextlog"
	"github.com/fieldgate/taskgen/pkg/models"
	"github.com/fieldgate/taskgen/pkg/ratewindow"
	"github.com/fieldgate/taskgen/pkg/store"
)

// Skip reasons recorded in run results and audit lines.
const (
	SkipNoEvents       = "no_events"
	SkipAlreadyRunning = "already_running"
	SkipDisabled       = "disabled"
)

// Config holds the scheduler's runtime parameters.
type Config struct {
	Enabled         bool
	Interval        time.Duration
	Window          time.Duration
	MinConfidence   float64
	MaxTasksPerRun  int
	MaxTasksPerHour int
}

// RunParams override per-run pipeline parameters (used by the suggest
// endpoint). Zero values fall back to the configured defaults.
type RunParams struct {
	Window        time.Duration
	MinConfidence float64
	MaxTasks      int
}

// RunResult summarizes one analysis run.
type RunResult struct {
	Skipped        bool              `json:"skipped"`
	SkipReason     string            `json:"skipReason,omitempty"`
	StartedAt      time.Time         `json:"startedAt"`
	Duration       time.Duration     `json:"duration"`
	EventsLoaded   int               `json:"eventsLoaded"`
	CorruptLines   int               `json:"corruptLines,omitempty"`
	TasksGenerated int               `json:"tasksGenerated"`
	TasksSaved     int               `json:"tasksSaved"`
	TasksSkipped   int               `json:"tasksSkipped"`
	Failures       []string          `json:"failures,omitempty"`
	Tasks          []models.TaskCard `json:"tasks,omitempty"`
}

// Stats aggregates scheduler activity since startup.
type Stats struct {
	TotalRuns          int           `json:"totalRuns"`
	TotalRunsSkipped   int           `json:"totalRunsSkipped"`
	TotalGenerated     int           `json:"totalGenerated"`
	TotalSaved         int           `json:"totalSaved"`
	TotalSkippedTasks  int           `json:"totalSkippedTasks"`
	Errors             int           `json:"errors"`
	LastRunAt          time.Time     `json:"lastRunAt"`
	LastRunDuration    time.Duration `json:"lastRunDuration"`
	RateLimitRemaining int           `json:"rateLimitRemaining"`
	RateLimitCeiling   int           `json:"rateLimitCeiling"`
	IsRunning          bool          `json:"isRunning"`
}

// Scheduler owns the timer and the single-flight flag.
type Scheduler struct {
	cfg      Config
	reader   *contextlog.Reader
	registry *analyzer.Registry
	tasks    *store.Store
	auditor  *contextlog.Auditor
	docs     analyzer.DocChecker
	limiter  *ratewindow.Window

	// runMu enforces at-most-one concurrent analysis run; overlapping
	// fires use TryLock and are recorded as skipped.
	runMu sync.Mutex

	statsMu sync.Mutex
	stats   Stats

	cancel context.CancelFunc
	done   chan struct{}

	now func() time.Time
}

// New creates a scheduler. The docs checker may be nil, in which case the
// docs-gap analyzer abstains.
func New(cfg Config, reader *contextlog.Reader, registry *analyzer.Registry,
	tasks *store.Store, auditor *contextlog.Auditor, docs analyzer.DocChecker) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		reader:   reader,
		registry: registry,
		tasks:    tasks,
		auditor:  auditor,
		docs:     docs,
		limiter:  ratewindow.New(time.Hour, cfg.MaxTasksPerHour),
		now:      time.Now,
	}
}

// Start launches the periodic run loop. No-op when already started or
// when task generation is disabled by configuration.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		slog.Info("Task generation disabled, scheduler not started")
		return
	}
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx)
	slog.Info("Scheduler started",
		"interval", s.cfg.Interval,
		"window", s.cfg.Window,
		"max_tasks_per_hour", s.cfg.MaxTasksPerHour)
}

// Stop signals the loop to exit and waits for it to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	slog.Info("Scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := s.RunNow(ctx, RunParams{})
			if result.Skipped {
				slog.Info("Scheduled run skipped", "reason", result.SkipReason)
			}
		}
	}
}

// RunNow performs one analysis run synchronously, obeying single-flight
// and quota rules, and returns its summary. An overlapping call returns a
// skipped result instead of blocking.
func (s *Scheduler) RunNow(ctx context.Context, params RunParams) *RunResult {
	if !s.runMu.TryLock() {
		result := &RunResult{
			Skipped:    true,
			SkipReason: SkipAlreadyRunning,
			StartedAt:  s.now().UTC(),
		}
		s.recordRun(result)
		return result
	}
	defer s.runMu.Unlock()

	s.setRunning(true)
	defer s.setRunning(false)

	result := s.runPipeline(ctx, params)
	s.recordRun(result)
	s.audit(result)
	return result
}

// runPipeline executes the seven pipeline steps of one run.
func (s *Scheduler) runPipeline(ctx context.Context, params RunParams) *RunResult {
	started := s.now().UTC()
	result := &RunResult{StartedAt: started}
	defer func() { result.Duration = s.now().UTC().Sub(started) }()

	window := params.Window
	if window <= 0 {
		window = s.cfg.Window
	}
	minConfidence := params.MinConfidence
	if minConfidence <= 0 {
		minConfidence = s.cfg.MinConfidence
	}
	maxTasks := params.MaxTasks
	if maxTasks <= 0 {
		maxTasks = s.cfg.MaxTasksPerRun
	}

	// 1. Load the event window.
	loaded, err := s.reader.Load(window)
	if err != nil {
		result.Failures = append(result.Failures, err.Error())
		return result
	}
	result.EventsLoaded = len(loaded.Events)
	result.CorruptLines = loaded.CorruptLines

	// 2. Empty window: record and return, never an error.
	if len(loaded.Events) == 0 {
		result.Skipped = true
		result.SkipReason = SkipNoEvents
		return result
	}

	if err := ctx.Err(); err != nil {
		result.Failures = append(result.Failures, "cancelled")
		return result
	}

	// 3. Run the analyzer registry concurrently.
	actx := s.buildContext(loaded.Events, window, started)
	tasks, failures := s.registry.Run(ctx, actx)
	for _, f := range failures {
		result.Failures = append(result.Failures, f.Error())
	}
	result.TasksGenerated = len(tasks)

	// 4. Confidence filter, then truncate to the per-run cap. Tasks
	// arrive pre-sorted by priority from the registry.
	filtered := tasks[:0]
	for _, t := range tasks {
		if t.Confidence >= minConfidence {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) > maxTasks {
		result.TasksSkipped += len(filtered) - maxTasks
		filtered = filtered[:maxTasks]
	}

	// 5. Duplicate suppression against currently active titles.
	active, err := s.tasks.ActiveTitles()
	if err != nil {
		result.Failures = append(result.Failures, err.Error())
		return result
	}
	deduped := filtered[:0]
	for _, t := range filtered {
		if _, dup := active[t.Title]; dup {
			result.TasksSkipped++
			continue
		}
		deduped = append(deduped, t)
	}

	// 6 + 7. Rate-limit gate, then persist survivors. Each save stamps
	// the sliding window; overflow is a soft skip, never a failure.
	for _, t := range deduped {
		if !s.limiter.TryAcquire() {
			result.TasksSkipped++
			continue
		}
		if err := s.tasks.Save(t); err != nil {
			if errors.Is(err, store.ErrDuplicateTitle) {
				result.TasksSkipped++
				continue
			}
			result.Failures = append(result.Failures, fmt.Sprintf("save %s: %v", t.ID, err))
			continue
		}
		result.TasksSaved++
		result.Tasks = append(result.Tasks, t)
	}

	return result
}

// buildContext assembles the analyzer context, including baselines.
// Baseline failures degrade to zero-sample results so the affected
// analyzers abstain.
func (s *Scheduler) buildContext(events []models.Event, window time.Duration, now time.Time) *analyzer.Context {
	errBase, err := s.reader.Baseline(contextlog.MetricErrorsPerHour, contextlog.DefaultBaselineWindow)
	if err != nil {
		slog.Warn("Error baseline unavailable", "error", err)
	}
	latBase, err := s.reader.Baseline(contextlog.MetricAvgLatencyMS, contextlog.DefaultBaselineWindow)
	if err != nil {
		slog.Warn("Latency baseline unavailable", "error", err)
	}
	return &analyzer.Context{
		Events: events,
		Window: analyzer.Window{
			From:     now.Add(-window),
			To:       now,
			Duration: window,
		},
		Baselines: analyzer.Baselines{
			ErrorsPerHour: errBase,
			AvgLatencyMS:  latBase,
		},
		Docs: s.docs,
		Now:  now,
	}
}

func (s *Scheduler) setRunning(v bool) {
	s.statsMu.Lock()
	s.stats.IsRunning = v
	s.statsMu.Unlock()
}

func (s *Scheduler) recordRun(result *RunResult) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.stats.TotalRuns++
	if result.Skipped {
		s.stats.TotalRunsSkipped++
	}
	s.stats.TotalGenerated += result.TasksGenerated
	s.stats.TotalSaved += result.TasksSaved
	s.stats.TotalSkippedTasks += result.TasksSkipped
	s.stats.Errors += len(result.Failures)
	s.stats.LastRunAt = result.StartedAt
	s.stats.LastRunDuration = result.Duration
}

// Stats returns a snapshot of scheduler activity.
func (s *Scheduler) Stats() Stats {
	s.statsMu.Lock()
	snapshot := s.stats
	s.statsMu.Unlock()
	snapshot.RateLimitRemaining = s.limiter.Remaining()
	snapshot.RateLimitCeiling = s.limiter.Limit()
	return snapshot
}

// audit appends one scheduler-run line to the context log.
func (s *Scheduler) audit(result *RunResult) {
	if s.auditor == nil {
		return
	}
	status := "ok"
	if len(result.Failures) > 0 {
		status = "error"
	}
	fields := map[string]any{
		"events_loaded":   result.EventsLoaded,
		"tasks_generated": result.TasksGenerated,
		"tasks_saved":     result.TasksSaved,
		"tasks_skipped":   result.TasksSkipped,
		"duration_ms":     result.Duration.Milliseconds(),
	}
	if result.Skipped {
		fields["skip_reason"] = result.SkipReason
	}
	if len(result.Failures) > 0 {
		fields["failures"] = result.Failures
	}
	s.auditor.Emit(contextlog.AuditActSchedulerRun, status, fields)
}

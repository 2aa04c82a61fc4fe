// Package autoapprove promotes high-confidence generated tasks to
// approved without operator action, behind a chain of safety gates.
package autoapprove

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fieldgate/taskgen/pkg/contextlog"
	"github.com/fieldgate/taskgen/pkg/models"
	"github.com/fieldgate/taskgen/pkg/ratewindow"
	"github.com/fieldgate/taskgen/pkg/store"
)

// Defaults for the gate chain.
const (
	DefaultMinConfidence   = 0.90
	DefaultMinApprovalRate = 0.80
	DefaultBootstrapSample = 10
	DefaultMaxPerHour      = 5
)

// Gate names, reported in decisions and audit lines.
const (
	GateEnabled      = "enabled"
	GateConfidence   = "confidence"
	GateAnalyzer     = "trusted_analyzer"
	GateApprovalRate = "approval_rate"
	GateRateLimit    = "rate_limit"
	GateTaskType     = "task_type"
	GatePassed       = "passed"
)

// DefaultTrustedAnalyzers are the analyzers whose output may be
// auto-approved out of the box.
func DefaultTrustedAnalyzers() []string {
	return []string{"continuation", "error_spike"}
}

// DefaultTaskTypes are the task types eligible for auto-approval out of
// the box: everything the analyzers emit. The analyzer trust gate, not
// the type gate, is the default narrowing filter.
func DefaultTaskTypes() []models.TaskType {
	return []models.TaskType{
		models.TaskTypeContinuation,
		models.TaskTypeErrorSpike,
		models.TaskTypeDocsGap,
		models.TaskTypePerformance,
		models.TaskTypeUXIssue,
	}
}

// Config holds the engine's gate parameters.
type Config struct {
	Enabled          bool
	MinConfidence    float64
	TrustedAnalyzers []string
	MinApprovalRate  float64
	BootstrapSample  int
	MaxPerHour       int
	TaskTypes        []models.TaskType
}

// Decision records the outcome of evaluating one task.
type Decision struct {
	TaskID   string `json:"taskId"`
	Approved bool   `json:"approved"`
	Gate     string `json:"gate"`
	Reason   string `json:"reason,omitempty"`
}

// Stats aggregates engine activity since startup.
type Stats struct {
	Evaluated          int       `json:"evaluated"`
	Approved           int       `json:"approved"`
	Rejected           int       `json:"rejected"`
	LastSweepAt        time.Time `json:"lastSweepAt"`
	RateLimitRemaining int       `json:"rateLimitRemaining"`
}

// Engine sweeps generated tasks through the gate chain whenever the
// store changes. All sweeps are serialized; the store change hook only
// schedules work.
type Engine struct {
	cfg     Config
	tasks   *store.Store
	auditor *contextlog.Auditor
	limiter *ratewindow.Window

	trusted map[string]struct{}
	types   map[models.TaskType]struct{}

	sweepCh chan struct{}
	quit    chan struct{}
	done    chan struct{}

	statsMu sync.Mutex
	stats   Stats

	// rejectedMu guards the per-task record of already-audited
	// rejections, keyed by task id, valued by the failing gate.
	rejectedMu sync.Mutex
	rejected   map[string]string
}

// New creates an engine; zero config fields fall back to defaults.
func New(cfg Config, tasks *store.Store, auditor *contextlog.Auditor) *Engine {
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = DefaultMinConfidence
	}
	if cfg.MinApprovalRate <= 0 {
		cfg.MinApprovalRate = DefaultMinApprovalRate
	}
	if cfg.BootstrapSample <= 0 {
		cfg.BootstrapSample = DefaultBootstrapSample
	}
	if cfg.MaxPerHour <= 0 {
		cfg.MaxPerHour = DefaultMaxPerHour
	}
	if len(cfg.TrustedAnalyzers) == 0 {
		cfg.TrustedAnalyzers = DefaultTrustedAnalyzers()
	}
	if len(cfg.TaskTypes) == 0 {
		cfg.TaskTypes = DefaultTaskTypes()
	}

	e := &Engine{
		cfg:      cfg,
		tasks:    tasks,
		auditor:  auditor,
		limiter:  ratewindow.New(time.Hour, cfg.MaxPerHour),
		trusted:  make(map[string]struct{}, len(cfg.TrustedAnalyzers)),
		types:    make(map[models.TaskType]struct{}, len(cfg.TaskTypes)),
		sweepCh:  make(chan struct{}, 1),
		rejected: make(map[string]string),
	}
	for _, name := range cfg.TrustedAnalyzers {
		e.trusted[name] = struct{}{}
	}
	for _, t := range cfg.TaskTypes {
		e.types[t] = struct{}{}
	}
	return e
}

// Start hooks the store's change signal and launches the sweep worker.
// No-op when the engine is disabled.
func (e *Engine) Start() {
	if !e.cfg.Enabled {
		slog.Info("Auto-approval disabled")
		return
	}
	e.quit = make(chan struct{})
	e.done = make(chan struct{})
	e.tasks.OnChange(e.Schedule)
	go e.worker()
	e.Schedule()
	slog.Info("Auto-approval engine started",
		"min_confidence", e.cfg.MinConfidence,
		"max_per_hour", e.cfg.MaxPerHour)
}

// Stop ends the sweep worker.
func (e *Engine) Stop() {
	if e.done == nil {
		return
	}
	close(e.quit)
	<-e.done
	e.done = nil
	slog.Info("Auto-approval engine stopped")
}

// Schedule requests a sweep; coalesces with an already-pending request.
// Safe to call after Stop: the channel is buffered and never closed.
func (e *Engine) Schedule() {
	if !e.cfg.Enabled {
		return
	}
	select {
	case e.sweepCh <- struct{}{}:
	default:
	}
}

func (e *Engine) worker() {
	defer close(e.done)
	for {
		select {
		case <-e.quit:
			return
		case <-e.sweepCh:
			e.Sweep()
		}
	}
}

// Sweep evaluates every generated task against the gate chain and
// approves the ones that pass all gates.
func (e *Engine) Sweep() []Decision {
	generated, err := e.tasks.Load(models.TaskFilter{Status: models.StatusGenerated}, 0)
	if err != nil {
		slog.Warn("Auto-approval sweep failed to load tasks", "error", err)
		return nil
	}
	e.statsMu.Lock()
	e.stats.LastSweepAt = time.Now().UTC()
	e.statsMu.Unlock()
	if len(generated) == 0 {
		return nil
	}

	rates, err := e.approvalRates()
	if err != nil {
		slog.Warn("Auto-approval sweep failed to compute approval rates", "error", err)
		return nil
	}

	decisions := make([]Decision, 0, len(generated))
	for _, task := range generated {
		d := e.evaluate(task, rates)
		decisions = append(decisions, d)
		e.bumpStats(func(s *Stats) { s.Evaluated++ })
		if !d.Approved {
			e.bumpStats(func(s *Stats) { s.Rejected++ })
			e.auditRejection(d, task)
			slog.Debug("Auto-approval rejected task",
				"task_id", d.TaskID, "gate", d.Gate, "reason", d.Reason)
			continue
		}
		if _, err := e.tasks.Approve(task.ID); err != nil {
			// Lost a race with a manual decision; not an anomaly.
			if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
				continue
			}
			slog.Error("Auto-approval failed to persist", "task_id", task.ID, "error", err)
			continue
		}
		e.bumpStats(func(s *Stats) { s.Approved++ })
		e.audit(d, task)
		slog.Info("Task auto-approved",
			"task_id", task.ID, "analyzer", task.Analyzer, "confidence", task.Confidence)
	}
	return decisions
}

// evaluate runs one task through the gate chain in order; the first
// failing gate names the decision.
func (e *Engine) evaluate(task models.TaskCard, rates map[string]analyzerRecord) Decision {
	d := Decision{TaskID: task.ID}

	if !e.cfg.Enabled {
		d.Gate = GateEnabled
		d.Reason = "auto-approval is disabled"
		return d
	}
	if task.Confidence < e.cfg.MinConfidence {
		d.Gate = GateConfidence
		d.Reason = "confidence below threshold"
		return d
	}
	if _, ok := e.trusted[task.Analyzer]; !ok {
		d.Gate = GateAnalyzer
		d.Reason = "analyzer is not trusted"
		return d
	}
	if rec, ok := rates[task.Analyzer]; ok && rec.decided >= e.cfg.BootstrapSample {
		if rec.rate() < e.cfg.MinApprovalRate {
			d.Gate = GateApprovalRate
			d.Reason = "historical approval rate below threshold"
			return d
		}
	}
	// The type gate precedes the rate limiter: TryAcquire consumes
	// quota, so it must be the last check a task can fail.
	if _, ok := e.types[task.Type]; !ok {
		d.Gate = GateTaskType
		d.Reason = "task type is not auto-approvable"
		return d
	}
	if !e.limiter.TryAcquire() {
		d.Gate = GateRateLimit
		d.Reason = "hourly auto-approval cap reached"
		return d
	}

	d.Approved = true
	d.Gate = GatePassed
	return d
}

// analyzerRecord tracks all-time decided outcomes for one analyzer.
type analyzerRecord struct {
	approved int
	decided  int
}

func (r analyzerRecord) rate() float64 {
	if r.decided == 0 {
		return 1
	}
	return float64(r.approved) / float64(r.decided)
}

// approvalRates computes, per analyzer, the all-time fraction of decided
// tasks (approved, completed, or dismissed) that were accepted.
func (e *Engine) approvalRates() (map[string]analyzerRecord, error) {
	all, err := e.tasks.Load(models.TaskFilter{}, 0)
	if err != nil {
		return nil, err
	}
	rates := make(map[string]analyzerRecord)
	for _, task := range all {
		rec := rates[task.Analyzer]
		switch task.Status {
		case models.StatusApproved, models.StatusCompleted:
			rec.approved++
			rec.decided++
		case models.StatusDismissed:
			rec.decided++
		default:
			continue
		}
		rates[task.Analyzer] = rec
	}
	return rates, nil
}

func (e *Engine) bumpStats(fn func(*Stats)) {
	e.statsMu.Lock()
	fn(&e.stats)
	e.statsMu.Unlock()
}

// Stats returns a snapshot of engine activity.
func (e *Engine) Stats() Stats {
	e.statsMu.Lock()
	s := e.stats
	e.statsMu.Unlock()
	s.RateLimitRemaining = e.limiter.Remaining()
	return s
}

func (e *Engine) audit(d Decision, task models.TaskCard) {
	if e.auditor == nil {
		return
	}
	e.auditor.Emit(contextlog.AuditActAutoApprove, "ok", map[string]any{
		"task_id":    d.TaskID,
		"analyzer":   task.Analyzer,
		"confidence": task.Confidence,
		"gate":       d.Gate,
	})
}

// auditRejection records a skipped task in the context log. One line per
// task per failing gate; repeat sweeps over the same stuck task stay
// silent.
func (e *Engine) auditRejection(d Decision, task models.TaskCard) {
	if e.auditor == nil {
		return
	}
	e.rejectedMu.Lock()
	if e.rejected[d.TaskID] == d.Gate {
		e.rejectedMu.Unlock()
		return
	}
	e.rejected[d.TaskID] = d.Gate
	e.rejectedMu.Unlock()

	e.auditor.Emit(contextlog.AuditActAutoApprove, "skipped", map[string]any{
		"task_id":    d.TaskID,
		"analyzer":   task.Analyzer,
		"confidence": task.Confidence,
		"gate":       d.Gate,
		"reason":     d.Reason,
	})
}

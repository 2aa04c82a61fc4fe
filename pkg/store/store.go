// Package store persists task cards to an append-only JSONL file and
// templates to a single JSON document.
//
// The task file is owned exclusively by one Store instance: all writes go
// through an in-process lock and O_APPEND, so a crash either writes
// nothing or a whole line, and the latest record per id is authoritative
// on read. Reads stream the file fresh each time, which makes them safe
// against concurrent appends.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fieldgate/taskgen/pkg/contextlog"
	"github.com/fieldgate/taskgen/pkg/models"
)

// TasksFileName is the JSONL file holding every task record.
const TasksFileName = "generated_tasks.jsonl"

// maxTaskLineBytes bounds a single task record line.
const maxTaskLineBytes = 1 << 20

// Store is the single-writer task persistence layer.
type Store struct {
	dir  string
	path string

	// mu serializes every mutation of the task file.
	mu sync.Mutex

	// listeners receive the store-changed signal after each successful
	// mutation. Guarded separately so notification registration never
	// contends with the write path.
	lmu       sync.RWMutex
	listeners []func()

	// auditor, when set, records rejected transitions as anomalies in
	// the shared telemetry stream.
	auditor *contextlog.Auditor

	now func() time.Time
}

// NewStore creates (or reuses) the tasks directory and returns a store
// over <dir>/generated_tasks.jsonl.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating tasks dir: %w", err)
	}
	return &Store{
		dir:  dir,
		path: filepath.Join(dir, TasksFileName),
		now:  time.Now,
	}, nil
}

// Path returns the task file path (watched by the broadcast layer).
func (s *Store) Path() string { return s.path }

// SetAuditor attaches the context log auditor. Call before serving
// traffic; the field is not guarded.
func (s *Store) SetAuditor(a *contextlog.Auditor) { s.auditor = a }

// OnChange registers a callback invoked after every successful mutation.
// Callbacks run on their own goroutine and must not call back into the
// store's write path synchronously.
func (s *Store) OnChange(fn func()) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notifyChanged() {
	s.lmu.RLock()
	listeners := make([]func(), len(s.listeners))
	copy(listeners, s.listeners)
	s.lmu.RUnlock()
	for _, fn := range listeners {
		go fn()
	}
}

// Save validates the task and appends its full current record as one
// line. Duplicate titles among active tasks are rejected at write time.
func (s *Store) Save(task models.TaskCard) error {
	if err := task.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	active, err := s.activeTitlesLocked()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if owner, taken := active[task.Title]; taken && owner != task.ID {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrDuplicateTitle, task.Title)
	}
	err = s.appendLocked(task)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.notifyChanged()
	return nil
}

// appendLocked writes one record with fsync. Caller holds s.mu.
func (s *Store) appendLocked(task models.TaskCard) error {
	line, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshaling task %s: %w", task.ID, err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening task file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending task %s: %w", task.ID, err)
	}
	return f.Sync()
}

// readAll streams the file and returns the latest record per id, in no
// particular order. Corrupt lines are counted and skipped.
func (s *Store) readAll() (map[string]models.TaskCard, int, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]models.TaskCard{}, 0, nil
		}
		return nil, 0, fmt.Errorf("opening task file: %w", err)
	}
	defer f.Close()

	latest := make(map[string]models.TaskCard)
	corrupt := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxTaskLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var task models.TaskCard
		if err := json.Unmarshal(line, &task); err != nil || task.ID == "" {
			corrupt++
			continue
		}
		latest[task.ID] = task
	}
	if err := scanner.Err(); err != nil {
		// A torn trailing line mid-append is treated as corrupt, not fatal.
		corrupt++
	}
	return latest, corrupt, nil
}

// Load returns the latest record per id matching the filter, sorted by
// priority desc / confidence desc / generatedAt desc, truncated to limit
// (0 means unlimited).
func (s *Store) Load(filter models.TaskFilter, limit int) ([]models.TaskCard, error) {
	latest, corrupt, err := s.readAll()
	if err != nil {
		return nil, err
	}
	if corrupt > 0 {
		slog.Warn("Task file contains corrupt lines", "count", corrupt)
	}

	tasks := make([]models.TaskCard, 0, len(latest))
	for _, task := range latest {
		if filter.Matches(&task) {
			tasks = append(tasks, task)
		}
	}
	models.Sort(tasks)
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

// Get returns the latest record for an id.
func (s *Store) Get(id string) (models.TaskCard, error) {
	latest, _, err := s.readAll()
	if err != nil {
		return models.TaskCard{}, err
	}
	task, ok := latest[id]
	if !ok {
		return models.TaskCard{}, fmt.Errorf("%w: task %s", ErrNotFound, id)
	}
	return task, nil
}

// ActiveTitles returns the titles of tasks whose latest status is
// generated or approved, mapped to their owning task id.
func (s *Store) ActiveTitles() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeTitlesLocked()
}

func (s *Store) activeTitlesLocked() (map[string]string, error) {
	latest, _, err := s.readAll()
	if err != nil {
		return nil, err
	}
	titles := make(map[string]string)
	for _, task := range latest {
		if task.Status.IsActive() {
			titles[task.Title] = task.ID
		}
	}
	return titles, nil
}

// Approve transitions a task generated → approved.
func (s *Store) Approve(id string) (models.TaskCard, error) {
	return s.transition(id, models.StatusApproved, "")
}

// Dismiss transitions a task to dismissed with the user's reason.
func (s *Store) Dismiss(id, reason string) (models.TaskCard, error) {
	if strings.TrimSpace(reason) == "" {
		return models.TaskCard{}, models.NewValidationError("reason", "dismiss reason is required")
	}
	return s.transition(id, models.StatusDismissed, reason)
}

// Complete transitions a task to completed.
func (s *Store) Complete(id string) (models.TaskCard, error) {
	return s.transition(id, models.StatusCompleted, "")
}

// transition applies a forward status change and re-appends the record.
// Illegal transitions are logged as anomalies and return ErrConflict
// without modifying the file.
func (s *Store) transition(id string, next models.Status, reason string) (models.TaskCard, error) {
	s.mu.Lock()
	latest, _, err := s.readAll()
	if err != nil {
		s.mu.Unlock()
		return models.TaskCard{}, err
	}
	current, ok := latest[id]
	if !ok {
		s.mu.Unlock()
		return models.TaskCard{}, fmt.Errorf("%w: task %s", ErrNotFound, id)
	}
	if !current.Status.CanTransitionTo(next) {
		s.mu.Unlock()
		slog.Warn("Ignoring illegal status transition",
			"task_id", id, "from", current.Status, "to", next)
		if s.auditor != nil {
			s.auditor.Emit(contextlog.AuditActAnomaly, "rejected", map[string]any{
				"anomaly": "illegal_status_transition",
				"task_id": id,
				"from":    string(current.Status),
				"to":      string(next),
			})
		}
		return models.TaskCard{}, fmt.Errorf("%w: %s → %s for task %s",
			ErrConflict, current.Status, next, id)
	}

	updated := current.WithStatus(next, s.now(), reason)
	err = s.appendLocked(updated)
	s.mu.Unlock()

	if err != nil {
		return models.TaskCard{}, err
	}
	s.notifyChanged()
	return updated, nil
}

// Stats aggregates counts by status, severity, and type plus averages.
type Stats struct {
	Total         int                     `json:"total"`
	ByStatus      map[models.Status]int   `json:"byStatus"`
	BySeverity    map[models.Severity]int `json:"bySeverity"`
	ByType        map[models.TaskType]int `json:"byType"`
	AvgPriority   float64                 `json:"avgPriority"`
	AvgConfidence float64                 `json:"avgConfidence"`
}

// Stats computes store-wide aggregates over the latest record per id.
func (s *Store) Stats() (*Stats, error) {
	latest, _, err := s.readAll()
	if err != nil {
		return nil, err
	}
	stats := &Stats{
		ByStatus:   make(map[models.Status]int),
		BySeverity: make(map[models.Severity]int),
		ByType:     make(map[models.TaskType]int),
	}
	var prioritySum, confidenceSum float64
	for _, task := range latest {
		stats.Total++
		stats.ByStatus[task.Status]++
		stats.BySeverity[task.Severity]++
		stats.ByType[task.Type]++
		prioritySum += float64(task.Priority)
		confidenceSum += task.Confidence
	}
	if stats.Total > 0 {
		stats.AvgPriority = prioritySum / float64(stats.Total)
		stats.AvgConfidence = confidenceSum / float64(stats.Total)
	}
	return stats, nil
}

// Cleanup rewrites the file once, dropping dismissed tasks whose
// dismissedAt is older than daysOld days. Every surviving task keeps its
// latest state. The rewrite streams to a temp file and renames it into
// place under the exclusive lock. Returns the number of removed tasks.
func (s *Store) Cleanup(daysOld int) (int, error) {
	if daysOld < 0 {
		return 0, models.NewValidationError("daysOld", "must be non-negative")
	}
	cutoff := s.now().UTC().AddDate(0, 0, -daysOld)

	s.mu.Lock()
	removed, err := s.cleanupLocked(cutoff)
	s.mu.Unlock()

	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.notifyChanged()
	}
	return removed, nil
}

func (s *Store) cleanupLocked(cutoff time.Time) (int, error) {
	latest, _, err := s.readAll()
	if err != nil {
		return 0, err
	}

	keep := make([]models.TaskCard, 0, len(latest))
	removed := 0
	for _, task := range latest {
		if task.Status == models.StatusDismissed && task.DismissedAt != "" {
			if at, perr := time.Parse(time.RFC3339, task.DismissedAt); perr == nil && at.Before(cutoff) {
				removed++
				continue
			}
		}
		keep = append(keep, task)
	}
	if removed == 0 {
		return 0, nil
	}

	// Deterministic file order after rewrite.
	models.Sort(keep)

	tmp, err := os.CreateTemp(s.dir, TasksFileName+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp task file: %w", err)
	}
	tmpPath := tmp.Name()
	w := bufio.NewWriter(tmp)
	for _, task := range keep {
		line, merr := json.Marshal(task)
		if merr != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return 0, fmt.Errorf("marshaling task %s: %w", task.ID, merr)
		}
		if _, werr := w.Write(append(line, '\n')); werr != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return 0, fmt.Errorf("writing temp task file: %w", werr)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("flushing temp task file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("syncing temp task file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("closing temp task file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("replacing task file: %w", err)
	}
	return removed, nil
}

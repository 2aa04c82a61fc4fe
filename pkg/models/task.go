package models

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskType classifies the operational problem a task card surfaces.
type TaskType string

const (
	TaskTypeContinuation TaskType = "continuation_issue"
	TaskTypeErrorSpike   TaskType = "error_spike"
	TaskTypeDocsGap      TaskType = "documentation_gap"
	TaskTypePerformance  TaskType = "performance_degradation"
	TaskTypeUXIssue      TaskType = "ux_issue"
	TaskTypeFromTemplate TaskType = "template"
)

// AllTaskTypes lists every valid task type.
var AllTaskTypes = []TaskType{
	TaskTypeContinuation, TaskTypeErrorSpike, TaskTypeDocsGap,
	TaskTypePerformance, TaskTypeUXIssue, TaskTypeFromTemplate,
}

// Valid reports whether the type is a known task type.
func (t TaskType) Valid() bool {
	for _, v := range AllTaskTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Severity is the ordered urgency classification of a task.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// severityWeights drives priority computation. Fixed by contract.
var severityWeights = map[Severity]float64{
	SeverityCritical: 100,
	SeverityHigh:     75,
	SeverityMedium:   50,
	SeverityLow:      25,
}

// Weight returns the fixed priority weight for the severity, or 0 for an
// unknown value.
func (s Severity) Weight() float64 { return severityWeights[s] }

// Valid reports whether the severity is a member of the enum.
func (s Severity) Valid() bool {
	_, ok := severityWeights[s]
	return ok
}

// Status is the lifecycle state of a task card.
type Status string

const (
	StatusGenerated Status = "generated"
	StatusApproved  Status = "approved"
	StatusDismissed Status = "dismissed"
	StatusCompleted Status = "completed"
)

// Valid reports whether the status is a member of the enum.
func (s Status) Valid() bool {
	switch s {
	case StatusGenerated, StatusApproved, StatusDismissed, StatusCompleted:
		return true
	}
	return false
}

// IsTerminal reports whether the status is a final state. Dismissed and
// completed tasks no longer participate in duplicate suppression.
func (s Status) IsTerminal() bool {
	return s == StatusDismissed || s == StatusCompleted
}

// IsActive reports whether the task still demands attention
// (generated or approved).
func (s Status) IsActive() bool {
	return s == StatusGenerated || s == StatusApproved
}

// CanTransitionTo reports whether moving from s to next is a legal forward
// transition: generated → {approved, dismissed, completed},
// approved → completed.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusGenerated:
		return next == StatusApproved || next == StatusDismissed || next == StatusCompleted
	case StatusApproved:
		return next == StatusCompleted
	}
	return false
}

// Bounds on human-readable text fields.
const (
	MaxTitleLen        = 200
	MaxDescriptionLen  = 4000
	MaxEvidenceSamples = 5
)

// Evidence backs a task card with the observations that produced it.
type Evidence struct {
	Summary string             `json:"summary"`
	Details []string           `json:"details,omitempty"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
	Samples []Event            `json:"samples,omitempty"`
}

// SuggestedFix describes the concrete remediation an analyzer proposes.
type SuggestedFix struct {
	Approach        string   `json:"approach"`
	Files           []string `json:"files,omitempty"`
	Changes         []string `json:"changes,omitempty"`
	EstimatedEffort string   `json:"estimatedEffort,omitempty"`
}

// TaskMetadata carries optional linkage back to the telemetry log.
type TaskMetadata struct {
	RelatedEvents []string `json:"relatedEvents,omitempty"`
}

// TaskCard is the canonical task entity. Instances are treated as
// immutable values: status transitions return a new record.
type TaskCard struct {
	ID                 string        `json:"id"`
	Type               TaskType      `json:"type"`
	Severity           Severity      `json:"severity"`
	Status             Status        `json:"status"`
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	Evidence           Evidence      `json:"evidence"`
	SuggestedFix       SuggestedFix  `json:"suggestedFix"`
	AcceptanceCriteria []string      `json:"acceptanceCriteria"`
	Priority           int           `json:"priority"`
	Confidence         float64       `json:"confidence"`
	Analyzer           string        `json:"analyzer"`
	GeneratedAt        string        `json:"generatedAt"`
	ApprovedAt         string        `json:"approvedAt,omitempty"`
	DismissedAt        string        `json:"dismissedAt,omitempty"`
	CompletedAt        string        `json:"completedAt,omitempty"`
	DismissReason      string        `json:"dismissReason,omitempty"`
	Metadata           *TaskMetadata `json:"metadata,omitempty"`
}

// NewTaskID returns a lexicographically sortable, globally unique,
// time-prefixed identifier.
func NewTaskID(now time.Time) string {
	return fmt.Sprintf("task-%s-%s",
		now.UTC().Format("20060102T150405.000Z0700"),
		uuid.NewString()[:8])
}

// NewTaskCard assembles a validated card with computed priority and a
// fresh id. The generatedAt timestamp and id derive from now.
func NewTaskCard(now time.Time, taskType TaskType, severity Severity, title, description string,
	evidence Evidence, fix SuggestedFix, criteria []string, confidence float64, analyzer string) (TaskCard, error) {

	task := TaskCard{
		ID:                 NewTaskID(now),
		Type:               taskType,
		Severity:           severity,
		Status:             StatusGenerated,
		Title:              title,
		Description:        description,
		Evidence:           evidence,
		SuggestedFix:       fix,
		AcceptanceCriteria: criteria,
		Confidence:         confidence,
		Analyzer:           analyzer,
		GeneratedAt:        now.UTC().Format(time.RFC3339),
	}
	task.Priority = ComputePriority(severity, confidence, evidence)
	if err := task.Validate(); err != nil {
		return TaskCard{}, err
	}
	return task, nil
}

// ComputePriority implements priority = floor(severityWeight ×
// confidence × impactMultiplier), clamped to [0, 100]. The product is
// quantized to 2 decimals before the floor so float noise in
// ratio-derived confidence cannot move it across an integer boundary.
func ComputePriority(severity Severity, confidence float64, evidence Evidence) int {
	p := severity.Weight() * confidence * ImpactMultiplier(evidence)
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	p = math.Round(p*100) / 100
	return int(math.Floor(p))
}

// ImpactMultiplier derives a factor in [1.0, 1.5] from the evidence
// metrics. Each of the scale signals (affected count, rate overshoot)
// nudges the multiplier upward.
func ImpactMultiplier(evidence Evidence) float64 {
	m := 1.0
	if affected, ok := evidence.Metrics["affectedCount"]; ok {
		switch {
		case affected >= 100:
			m += 0.3
		case affected >= 50:
			m += 0.2
		case affected >= 20:
			m += 0.1
		}
	}
	if ratio, ok := evidence.Metrics["overshootRatio"]; ok && ratio > 1 {
		m += math.Min(0.2, (ratio-1)*0.1)
	}
	if m > 1.5 {
		m = 1.5
	}
	return m
}

// Validate enforces the structural invariants of a task card.
func (t *TaskCard) Validate() error {
	if t.ID == "" {
		return NewValidationError("id", "must not be empty")
	}
	if !t.Type.Valid() {
		return NewValidationError("type", fmt.Sprintf("unknown task type %q", t.Type))
	}
	if !t.Severity.Valid() {
		return NewValidationError("severity", fmt.Sprintf("unknown severity %q", t.Severity))
	}
	if !t.Status.Valid() {
		return NewValidationError("status", fmt.Sprintf("unknown status %q", t.Status))
	}
	if strings.TrimSpace(t.Title) == "" {
		return NewValidationError("title", "must not be empty")
	}
	if len(t.Title) > MaxTitleLen {
		return NewValidationError("title", fmt.Sprintf("exceeds %d characters", MaxTitleLen))
	}
	if len(t.Description) > MaxDescriptionLen {
		return NewValidationError("description", fmt.Sprintf("exceeds %d characters", MaxDescriptionLen))
	}
	if t.Confidence < 0 || t.Confidence > 1 {
		return NewValidationError("confidence", "must be within [0, 1]")
	}
	if len(t.AcceptanceCriteria) == 0 {
		return NewValidationError("acceptanceCriteria", "must not be empty")
	}
	if strings.TrimSpace(t.Evidence.Summary) == "" {
		return NewValidationError("evidence.summary", "must not be empty")
	}
	if len(t.Evidence.Samples) > MaxEvidenceSamples {
		return NewValidationError("evidence.samples", fmt.Sprintf("exceeds %d samples", MaxEvidenceSamples))
	}
	if t.GeneratedAt == "" {
		return NewValidationError("generatedAt", "must not be empty")
	}
	return nil
}

// WithStatus returns a copy of the task in the new status with the
// corresponding transition timestamp set. The caller is responsible for
// checking transition legality via Status.CanTransitionTo.
func (t TaskCard) WithStatus(next Status, now time.Time, dismissReason string) TaskCard {
	out := t
	out.Status = next
	ts := now.UTC().Format(time.RFC3339)
	switch next {
	case StatusApproved:
		out.ApprovedAt = ts
	case StatusDismissed:
		out.DismissedAt = ts
		out.DismissReason = dismissReason
	case StatusCompleted:
		out.CompletedAt = ts
	}
	return out
}

// GeneratedTime parses the generatedAt timestamp, returning the zero time
// on malformed input.
func (t *TaskCard) GeneratedTime() time.Time {
	ts, err := time.Parse(time.RFC3339, t.GeneratedAt)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// Sort orders tasks by priority desc, confidence desc, generatedAt desc.
// Numeric ties resolve by generatedAt ascending, then id ascending — the
// final id comparison keeps the order fully deterministic.
func Sort(tasks []TaskCard) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.GeneratedAt != b.GeneratedAt {
			return a.GeneratedAt < b.GeneratedAt
		}
		return a.ID < b.ID
	})
}

// TaskFilter selects a subset of tasks. Zero-valued fields match all.
type TaskFilter struct {
	Status Status
	Type   TaskType
}

// Matches reports whether the task satisfies every set criterion.
func (f TaskFilter) Matches(t *TaskCard) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	return true
}

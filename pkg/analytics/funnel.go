// Package analytics computes pull-style aggregates over the task store:
// the decision funnel with its health score, and the time-series and
// distribution report.
package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/fieldgate/taskgen/pkg/models"
	"github.com/fieldgate/taskgen/pkg/store"
)

// DefaultDaysBack is the funnel window when the caller gives none.
const DefaultDaysBack = 30

// Health score weights over the three conversion rates.
const (
	weightGeneratedToEngaged  = 0.30
	weightEngagedToApproved   = 0.30
	weightApprovedToCompleted = 0.40
)

// Stage is one funnel stage: its count and its share of generated.
type Stage struct {
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Conversion holds the three stage-to-stage rates.
type Conversion struct {
	GeneratedToEngaged  float64 `json:"generatedToEngaged"`
	EngagedToApproved   float64 `json:"engagedToApproved"`
	ApprovedToCompleted float64 `json:"approvedToCompleted"`
}

// Funnel classifies windowed tasks into the five stages and scores the
// pipeline's health.
type Funnel struct {
	DaysBack        int        `json:"daysBack"`
	Generated       Stage      `json:"generated"`
	Engaged         Stage      `json:"engaged"`
	Approved        Stage      `json:"approved"`
	Completed       Stage      `json:"completed"`
	Dismissed       Stage      `json:"dismissed"`
	Conversion      Conversion `json:"conversion"`
	HealthScore     int        `json:"healthScore"`
	Recommendations []string   `json:"recommendations"`
}

// Engine computes reports over the task store.
type Engine struct {
	tasks *store.Store
	now   func() time.Time
}

// New creates an analytics engine.
func New(tasks *store.Store) *Engine {
	return &Engine{tasks: tasks, now: time.Now}
}

// Funnel classifies every task generated within the last daysBack days.
// A task is engaged once its latest status is no longer generated;
// transitions are forward-only, so the latest record decides every stage.
func (e *Engine) Funnel(daysBack int) (*Funnel, error) {
	if daysBack <= 0 {
		daysBack = DefaultDaysBack
	}
	cutoff := e.now().UTC().AddDate(0, 0, -daysBack)

	all, err := e.tasks.Load(models.TaskFilter{}, 0)
	if err != nil {
		return nil, err
	}

	f := &Funnel{DaysBack: daysBack}
	for _, task := range all {
		generatedAt, err := time.Parse(time.RFC3339, task.GeneratedAt)
		if err != nil || generatedAt.Before(cutoff) {
			continue
		}
		f.Generated.Count++
		if task.Status != models.StatusGenerated {
			f.Engaged.Count++
		}
		switch task.Status {
		case models.StatusApproved:
			f.Approved.Count++
		case models.StatusCompleted:
			f.Approved.Count++
			f.Completed.Count++
		case models.StatusDismissed:
			f.Dismissed.Count++
		}
	}

	f.finish()
	return f, nil
}

// finish derives percentages, conversion rates, the health score, and
// recommendations from the raw counts.
func (f *Funnel) finish() {
	f.Generated.Percent = 100
	if f.Generated.Count > 0 {
		denom := float64(f.Generated.Count)
		f.Engaged.Percent = round1(100 * float64(f.Engaged.Count) / denom)
		f.Approved.Percent = round1(100 * float64(f.Approved.Count) / denom)
		f.Completed.Percent = round1(100 * float64(f.Completed.Count) / denom)
		f.Dismissed.Percent = round1(100 * float64(f.Dismissed.Count) / denom)
	} else {
		f.Generated.Percent = 0
	}

	f.Conversion.GeneratedToEngaged = ratio(f.Engaged.Count, f.Generated.Count)
	f.Conversion.EngagedToApproved = ratio(f.Approved.Count, f.Engaged.Count)
	f.Conversion.ApprovedToCompleted = ratio(f.Completed.Count, f.Approved.Count)

	f.HealthScore = int(math.Round(100 * (weightGeneratedToEngaged*f.Conversion.GeneratedToEngaged +
		weightEngagedToApproved*f.Conversion.EngagedToApproved +
		weightApprovedToCompleted*f.Conversion.ApprovedToCompleted)))

	f.Recommendations = f.recommend()
}

func (f *Funnel) recommend() []string {
	var recs []string
	if f.Generated.Count == 0 {
		return []string{"No tasks generated in this window; check that the scheduler is enabled and telemetry is flowing"}
	}
	if f.Conversion.GeneratedToEngaged < 0.50 {
		recs = append(recs, fmt.Sprintf("Only %.0f%% of generated tasks get any decision; review the backlog or raise the confidence floor to cut noise", f.Conversion.GeneratedToEngaged*100))
	}
	if f.Engaged.Count > 0 && f.Conversion.EngagedToApproved < 0.50 {
		recs = append(recs, fmt.Sprintf("%.0f%% of reviewed tasks are rejected; analyzer thresholds may be too aggressive", (1-f.Conversion.EngagedToApproved)*100))
	}
	if f.Approved.Count > 0 && f.Conversion.ApprovedToCompleted < 0.50 {
		recs = append(recs, fmt.Sprintf("Only %.0f%% of approved tasks reach completion; approved work is stalling", f.Conversion.ApprovedToCompleted*100))
	}
	if len(recs) == 0 {
		recs = append(recs, "Funnel is healthy; no action needed")
	}
	return recs
}

func ratio(num, denom int) float64 {
	if denom == 0 {
		return 0
	}
	return round2(float64(num) / float64(denom))
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

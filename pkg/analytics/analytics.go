package analytics

import (
	"sort"
	"time"

	"github.com/fieldgate/taskgen/pkg/models"
)

// DayBucket is one day of task generation counts.
type DayBucket struct {
	Date      string `json:"date"`
	Generated int    `json:"generated"`
	Approved  int    `json:"approved"`
	Dismissed int    `json:"dismissed"`
	Completed int    `json:"completed"`
}

// Report is the full analytics payload: a per-day series plus
// distributions over the latest record of every task in the window.
type Report struct {
	DaysBack      int            `json:"daysBack"`
	Total         int            `json:"total"`
	Series        []DayBucket    `json:"series"`
	ByType        map[string]int `json:"byType"`
	BySeverity    map[string]int `json:"bySeverity"`
	ByStatus      map[string]int `json:"byStatus"`
	ByAnalyzer    map[string]int `json:"byAnalyzer"`
	AvgPriority   float64        `json:"avgPriority"`
	AvgConfidence float64        `json:"avgConfidence"`
}

// Report builds the analytics payload over tasks generated in the last
// daysBack days.
func (e *Engine) Report(daysBack int) (*Report, error) {
	if daysBack <= 0 {
		daysBack = DefaultDaysBack
	}
	cutoff := e.now().UTC().AddDate(0, 0, -daysBack)

	all, err := e.tasks.Load(models.TaskFilter{}, 0)
	if err != nil {
		return nil, err
	}

	report := &Report{
		DaysBack:   daysBack,
		ByType:     make(map[string]int),
		BySeverity: make(map[string]int),
		ByStatus:   make(map[string]int),
		ByAnalyzer: make(map[string]int),
	}
	days := make(map[string]*DayBucket)
	var prioritySum, confidenceSum float64

	for _, task := range all {
		generatedAt, err := time.Parse(time.RFC3339, task.GeneratedAt)
		if err != nil || generatedAt.Before(cutoff) {
			continue
		}
		report.Total++
		report.ByType[string(task.Type)]++
		report.BySeverity[string(task.Severity)]++
		report.ByStatus[string(task.Status)]++
		report.ByAnalyzer[task.Analyzer]++
		prioritySum += float64(task.Priority)
		confidenceSum += task.Confidence

		date := generatedAt.UTC().Format("2006-01-02")
		bucket, ok := days[date]
		if !ok {
			bucket = &DayBucket{Date: date}
			days[date] = bucket
		}
		bucket.Generated++
		switch task.Status {
		case models.StatusApproved:
			bucket.Approved++
		case models.StatusDismissed:
			bucket.Dismissed++
		case models.StatusCompleted:
			bucket.Completed++
		}
	}

	if report.Total > 0 {
		report.AvgPriority = round1(prioritySum / float64(report.Total))
		report.AvgConfidence = round2(confidenceSum / float64(report.Total))
	}

	report.Series = make([]DayBucket, 0, len(days))
	for _, bucket := range days {
		report.Series = append(report.Series, *bucket)
	}
	sort.Slice(report.Series, func(i, j int) bool {
		return report.Series[i].Date < report.Series[j].Date
	})
	return report, nil
}

package config

import (
	"fmt"

	"github.com/fieldgate/taskgen/pkg/models"
)

// validate rejects out-of-range values before the process starts.
func validate(cfg *Config) error {
	if cfg.Storage.TasksDir == "" {
		return NewValidationError("storage", "tasks_dir", ErrInvalidValue)
	}
	if cfg.Storage.ContextLogDir == "" {
		return NewValidationError("storage", "context_log_dir", ErrInvalidValue)
	}

	g := cfg.Generation
	if g.Interval <= 0 {
		return NewValidationError("generation", "interval", ErrInvalidValue)
	}
	if g.Window <= 0 {
		return NewValidationError("generation", "window", ErrInvalidValue)
	}
	if err := unitRange("generation", "min_confidence", g.MinConfidence); err != nil {
		return err
	}
	if g.MaxTasksPerRun <= 0 {
		return NewValidationError("generation", "max_tasks_per_run", ErrInvalidValue)
	}
	if g.MaxTasksPerHour <= 0 {
		return NewValidationError("generation", "max_tasks_per_hour", ErrInvalidValue)
	}

	a := cfg.Analyzers
	if err := unitRange("analyzers", "continuation_threshold", a.ContinuationThreshold); err != nil {
		return err
	}
	if a.ErrorSpikeMultiplier <= 1 {
		return NewValidationError("analyzers", "error_spike_multiplier", ErrInvalidValue)
	}
	if a.DocsGapMinUsage <= 0 {
		return NewValidationError("analyzers", "docs_gap_min_usage", ErrInvalidValue)
	}
	if a.PerformanceThreshold <= 1 {
		return NewValidationError("analyzers", "performance_threshold", ErrInvalidValue)
	}
	if err := unitRange("analyzers", "ux_abort_threshold", a.UXAbortThreshold); err != nil {
		return err
	}

	aa := cfg.AutoApprove
	if err := unitRange("auto_approve", "min_confidence", aa.MinConfidence); err != nil {
		return err
	}
	if err := unitRange("auto_approve", "min_approval_rate", aa.MinApprovalRate); err != nil {
		return err
	}
	if aa.MaxPerHour <= 0 {
		return NewValidationError("auto_approve", "max_per_hour", ErrInvalidValue)
	}
	for _, tt := range aa.TaskTypes {
		if !models.TaskType(tt).Valid() {
			return NewValidationError("auto_approve", "task_types",
				fmt.Errorf("%w: unknown task type %q", ErrInvalidValue, tt))
		}
	}

	if cfg.Stream.WatchDebounce <= 0 {
		return NewValidationError("stream", "watch_debounce", ErrInvalidValue)
	}
	if cfg.Cleanup.DaysOld < 0 {
		return NewValidationError("cleanup", "days_old", ErrInvalidValue)
	}
	if cfg.Cleanup.Enabled && cfg.Cleanup.Interval <= 0 {
		return NewValidationError("cleanup", "interval", ErrInvalidValue)
	}
	return nil
}

// unitRange checks a ratio-style value lies in (0, 1].
func unitRange(section, field string, v float64) error {
	if v <= 0 || v > 1 {
		return NewValidationError(section, field,
			fmt.Errorf("%w: %v is outside (0, 1]", ErrInvalidValue, v))
	}
	return nil
}

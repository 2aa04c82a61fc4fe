// Package config loads, merges, and validates runtime configuration.
// Defaults are built in; an optional taskgen.yaml overrides them; the
// TASKGEN_*/FGK_* environment variables override both.
package config

import "time"

// Config is the fully resolved runtime configuration.
type Config struct {
	configDir string

	Storage     *StorageConfig
	Generation  *GenerationConfig
	Analyzers   *AnalyzerConfig
	AutoApprove *AutoApproveConfig
	Stream      *StreamConfig
	Cleanup     *CleanupConfig
}

// StorageConfig names the data directories.
type StorageConfig struct {
	TasksDir      string `yaml:"tasks_dir"`
	ContextLogDir string `yaml:"context_log_dir"`
	DocsDir       string `yaml:"docs_dir"`
}

// GenerationConfig drives the scheduler.
type GenerationConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Interval        time.Duration `yaml:"interval"`
	Window          time.Duration `yaml:"window"`
	MinConfidence   float64       `yaml:"min_confidence"`
	MaxTasksPerRun  int           `yaml:"max_tasks_per_run"`
	MaxTasksPerHour int           `yaml:"max_tasks_per_hour"`
}

// AnalyzerConfig holds per-analyzer trigger thresholds.
type AnalyzerConfig struct {
	ContinuationThreshold float64 `yaml:"continuation_threshold"`
	ErrorSpikeMultiplier  float64 `yaml:"error_spike_multiplier"`
	DocsGapMinUsage       int     `yaml:"docs_gap_min_usage"`
	PerformanceThreshold  float64 `yaml:"performance_threshold"`
	UXAbortThreshold      float64 `yaml:"ux_abort_threshold"`
}

// AutoApproveConfig drives the auto-approval engine.
type AutoApproveConfig struct {
	Enabled          bool     `yaml:"enabled"`
	MinConfidence    float64  `yaml:"min_confidence"`
	TrustedAnalyzers []string `yaml:"trusted_analyzers"`
	MinApprovalRate  float64  `yaml:"min_approval_rate"`
	MaxPerHour       int      `yaml:"max_per_hour"`
	TaskTypes        []string `yaml:"task_types"`
}

// StreamConfig drives the broadcast layer.
type StreamConfig struct {
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// CleanupConfig drives periodic dismissed-task removal.
type CleanupConfig struct {
	Enabled  bool          `yaml:"enabled"`
	DaysOld  int           `yaml:"days_old"`
	Interval time.Duration `yaml:"interval"`
}

// ConfigDir returns the directory the configuration was loaded from.
func (c *Config) ConfigDir() string { return c.configDir }

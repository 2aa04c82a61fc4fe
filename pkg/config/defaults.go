package config

import "time"

// Built-in defaults; every value can be overridden by taskgen.yaml or
// the environment.
const (
	DefaultTasksDir      = "./data/tasks"
	DefaultContextLogDir = "./data/context_log"
	DefaultDocsDir       = "./docs/tools"

	DefaultInterval        = 15 * time.Minute
	DefaultWindow          = 60 * time.Minute
	DefaultMinConfidence   = 0.6
	DefaultMaxTasksPerRun  = 5
	DefaultMaxTasksPerHour = 10

	DefaultContinuationThreshold = 0.15
	DefaultErrorSpikeMultiplier  = 3.0
	DefaultDocsGapMinUsage       = 20
	DefaultPerformanceThreshold  = 1.5
	DefaultUXAbortThreshold      = 0.20

	DefaultAutoApproveConfidence = 0.90
	DefaultAutoApproveMaxPerHour = 5
	DefaultAutoApproveRate       = 0.80

	DefaultWatchDebounce = 500 * time.Millisecond

	DefaultCleanupDaysOld  = 30
	DefaultCleanupInterval = 24 * time.Hour
)

// defaultConfig returns a fully populated configuration.
func defaultConfig() *Config {
	return &Config{
		Storage: &StorageConfig{
			TasksDir:      DefaultTasksDir,
			ContextLogDir: DefaultContextLogDir,
			DocsDir:       DefaultDocsDir,
		},
		Generation: &GenerationConfig{
			Enabled:         true,
			Interval:        DefaultInterval,
			Window:          DefaultWindow,
			MinConfidence:   DefaultMinConfidence,
			MaxTasksPerRun:  DefaultMaxTasksPerRun,
			MaxTasksPerHour: DefaultMaxTasksPerHour,
		},
		Analyzers: &AnalyzerConfig{
			ContinuationThreshold: DefaultContinuationThreshold,
			ErrorSpikeMultiplier:  DefaultErrorSpikeMultiplier,
			DocsGapMinUsage:       DefaultDocsGapMinUsage,
			PerformanceThreshold:  DefaultPerformanceThreshold,
			UXAbortThreshold:      DefaultUXAbortThreshold,
		},
		AutoApprove: &AutoApproveConfig{
			Enabled:          false,
			MinConfidence:    DefaultAutoApproveConfidence,
			TrustedAnalyzers: []string{"continuation", "error_spike"},
			MinApprovalRate:  DefaultAutoApproveRate,
			MaxPerHour:       DefaultAutoApproveMaxPerHour,
			TaskTypes: []string{
				"continuation_issue", "error_spike", "documentation_gap",
				"performance_degradation", "ux_issue",
			},
		},
		Stream: &StreamConfig{
			WatchDebounce: DefaultWatchDebounce,
		},
		Cleanup: &CleanupConfig{
			Enabled:  true,
			DaysOld:  DefaultCleanupDaysOld,
			Interval: DefaultCleanupInterval,
		},
	}
}

package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the optional YAML override file under the config
// directory.
const ConfigFileName = "taskgen.yaml"

// taskgenYAML mirrors the taskgen.yaml file structure.
type taskgenYAML struct {
	Storage     *StorageConfig     `yaml:"storage"`
	Generation  *GenerationConfig  `yaml:"generation"`
	Analyzers   *AnalyzerConfig    `yaml:"analyzers"`
	AutoApprove *AutoApproveConfig `yaml:"auto_approve"`
	Stream      *StreamConfig      `yaml:"stream"`
	Cleanup     *CleanupConfig     `yaml:"cleanup"`
}

// Initialize loads, merges, and validates configuration.
//
// Resolution order, lowest to highest precedence:
//  1. Built-in defaults
//  2. taskgen.yaml in configDir (optional, env-expanded)
//  3. TASKGEN_* / FGK_* environment variables
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg := defaultConfig()
	cfg.configDir = configDir

	fileCfg, err := loadYAML(configDir)
	if err != nil {
		return nil, err
	}
	if fileCfg != nil {
		if err := mergeFile(cfg, fileCfg); err != nil {
			return nil, NewLoadError(ConfigFileName, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"generation_enabled", cfg.Generation.Enabled,
		"auto_approve_enabled", cfg.AutoApprove.Enabled,
		"tasks_dir", cfg.Storage.TasksDir,
		"context_log_dir", cfg.Storage.ContextLogDir)
	return cfg, nil
}

// loadYAML reads the optional override file; absence is not an error.
func loadYAML(configDir string) (*taskgenYAML, error) {
	path := filepath.Join(configDir, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("No config file found, using defaults", "path", path)
			return nil, nil
		}
		return nil, NewLoadError(ConfigFileName, err)
	}

	data = ExpandEnv(data)

	var fileCfg taskgenYAML
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, NewLoadError(ConfigFileName, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}
	return &fileCfg, nil
}

// mergeFile merges non-zero file values over the defaults, section by
// section.
func mergeFile(cfg *Config, file *taskgenYAML) error {
	merge := func(dst, src any) error {
		if src == nil {
			return nil
		}
		return mergo.Merge(dst, src, mergo.WithOverride)
	}
	if file.Storage != nil {
		if err := merge(cfg.Storage, *file.Storage); err != nil {
			return err
		}
	}
	if file.Generation != nil {
		if err := merge(cfg.Generation, *file.Generation); err != nil {
			return err
		}
	}
	if file.Analyzers != nil {
		if err := merge(cfg.Analyzers, *file.Analyzers); err != nil {
			return err
		}
	}
	if file.AutoApprove != nil {
		if err := merge(cfg.AutoApprove, *file.AutoApprove); err != nil {
			return err
		}
	}
	if file.Stream != nil {
		if err := merge(cfg.Stream, *file.Stream); err != nil {
			return err
		}
	}
	if file.Cleanup != nil {
		if err := merge(cfg.Cleanup, *file.Cleanup); err != nil {
			return err
		}
	}
	return nil
}

// applyEnvOverrides applies the documented environment variables on top
// of whatever the file resolved.
func applyEnvOverrides(cfg *Config) {
	envString("FGK_TASKS_DIR", &cfg.Storage.TasksDir)
	envString("FGK_CONTEXTLOG_DIR", &cfg.Storage.ContextLogDir)
	envString("TASKGEN_DOCS_DIR", &cfg.Storage.DocsDir)

	envBool("TASKGEN_ENABLED", &cfg.Generation.Enabled)
	envMinutes("TASKGEN_INTERVAL_MIN", &cfg.Generation.Interval)
	envMinutes("TASKGEN_WINDOW_MIN", &cfg.Generation.Window)
	envFloat("TASKGEN_MIN_CONFIDENCE", &cfg.Generation.MinConfidence)
	envInt("TASKGEN_MAX_TASKS", &cfg.Generation.MaxTasksPerRun)
	envInt("TASKGEN_MAX_PER_HOUR", &cfg.Generation.MaxTasksPerHour)

	envFloat("TASKGEN_CONTINUATION_THRESHOLD", &cfg.Analyzers.ContinuationThreshold)
	envFloat("TASKGEN_ERROR_SPIKE_MULTIPLIER", &cfg.Analyzers.ErrorSpikeMultiplier)
	envInt("TASKGEN_DOCS_GAP_MIN_USAGE", &cfg.Analyzers.DocsGapMinUsage)
	envFloat("TASKGEN_PERFORMANCE_THRESHOLD", &cfg.Analyzers.PerformanceThreshold)
	envFloat("TASKGEN_UX_ABORT_THRESHOLD", &cfg.Analyzers.UXAbortThreshold)

	envBool("TASKGEN_AUTO_APPROVE", &cfg.AutoApprove.Enabled)
	envFloat("TASKGEN_AUTO_APPROVE_CONFIDENCE", &cfg.AutoApprove.MinConfidence)
	envList("TASKGEN_AUTO_APPROVE_ANALYZERS", &cfg.AutoApprove.TrustedAnalyzers)
	envList("TASKGEN_AUTO_APPROVE_TASK_TYPES", &cfg.AutoApprove.TaskTypes)
	envInt("TASKGEN_AUTO_APPROVE_MAX_PER_HOUR", &cfg.AutoApprove.MaxPerHour)

	envMillis("TASKGEN_WATCH_DEBOUNCE_MS", &cfg.Stream.WatchDebounce)

	envBool("TASKGEN_CLEANUP_ENABLED", &cfg.Cleanup.Enabled)
	envInt("TASKGEN_CLEANUP_DAYS", &cfg.Cleanup.DaysOld)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		} else {
			slog.Warn("Ignoring invalid boolean env var", "key", key, "value", v)
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		} else {
			slog.Warn("Ignoring invalid integer env var", "key", key, "value", v)
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		} else {
			slog.Warn("Ignoring invalid float env var", "key", key, "value", v)
		}
	}
}

func envMinutes(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Minute
		} else {
			slog.Warn("Ignoring invalid minutes env var", "key", key, "value", v)
		}
	}
}

func envMillis(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Millisecond
		} else {
			slog.Warn("Ignoring invalid milliseconds env var", "key", key, "value", v)
		}
	}
}

func envList(key string, dst *[]string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			*dst = out
		}
	}
}

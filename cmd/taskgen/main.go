// taskgen server — reads host telemetry, generates prioritized task
// cards, and serves the task API with a live change stream.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fieldgate/taskgen/pkg/analytics"
	"github.com/fieldgate/taskgen/pkg/analyzer"
	"github.com/fieldgate/taskgen/pkg/api"
	"github.com/fieldgate/taskgen/pkg/autoapprove"
	"github.com/fieldgate/taskgen/pkg/config"
	"github.com/fieldgate/taskgen/pkg/contextlog"
	"github.com/fieldgate/taskgen/pkg/events"
	"github.com/fieldgate/taskgen/pkg/models"
	"github.com/fieldgate/taskgen/pkg/scheduler"
	"github.com/fieldgate/taskgen/pkg/store"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	slog.Info("Starting taskgen", "http_port", httpPort, "config_dir", *configDir)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize persistence
	tasks, err := store.NewStore(cfg.Storage.TasksDir)
	if err != nil {
		slog.Error("Failed to initialize task store", "error", err)
		os.Exit(1)
	}
	templates, err := store.NewTemplateRegistry(cfg.Storage.TasksDir)
	if err != nil {
		slog.Error("Failed to initialize template registry", "error", err)
		os.Exit(1)
	}
	slog.Info("Task store initialized", "path", tasks.Path())

	// 3. Telemetry reader + audit writer
	reader := contextlog.NewReader(cfg.Storage.ContextLogDir)
	auditor := contextlog.NewAuditor(cfg.Storage.ContextLogDir)
	tasks.SetAuditor(auditor)

	// 4. Analyzer registry
	registry := analyzer.NewRegistry(
		analyzer.NewContinuationAnalyzer(cfg.Analyzers.ContinuationThreshold),
		analyzer.NewErrorSpikeAnalyzer(cfg.Analyzers.ErrorSpikeMultiplier),
		analyzer.NewDocsGapAnalyzer(cfg.Analyzers.DocsGapMinUsage),
		analyzer.NewPerformanceAnalyzer(cfg.Analyzers.PerformanceThreshold),
		analyzer.NewUXIssueAnalyzer(cfg.Analyzers.UXAbortThreshold),
	)
	slog.Info("Analyzers registered", "analyzers", registry.Names())

	// 5. Scheduler
	docs := analyzer.NewDirDocChecker(cfg.Storage.DocsDir)
	sched := scheduler.New(scheduler.Config{
		Enabled:         cfg.Generation.Enabled,
		Interval:        cfg.Generation.Interval,
		Window:          cfg.Generation.Window,
		MinConfidence:   cfg.Generation.MinConfidence,
		MaxTasksPerRun:  cfg.Generation.MaxTasksPerRun,
		MaxTasksPerHour: cfg.Generation.MaxTasksPerHour,
	}, reader, registry, tasks, auditor, docs)
	sched.Start(ctx)

	// 6. Broadcast layer: hub fed by the store hook and the file watcher
	hub := events.NewHub(tasks)
	hub.Start(ctx)
	tasks.OnChange(hub.Refresh)

	watcher := events.NewWatcher(tasks.Path(), cfg.Stream.WatchDebounce, hub.Refresh)
	if err := watcher.Start(ctx); err != nil {
		slog.Error("Failed to start task file watcher", "error", err)
		os.Exit(1)
	}

	// 7. Auto-approval engine
	approvableTypes := make([]models.TaskType, 0, len(cfg.AutoApprove.TaskTypes))
	for _, tt := range cfg.AutoApprove.TaskTypes {
		approvableTypes = append(approvableTypes, models.TaskType(tt))
	}
	approval := autoapprove.New(autoapprove.Config{
		Enabled:          cfg.AutoApprove.Enabled,
		MinConfidence:    cfg.AutoApprove.MinConfidence,
		TrustedAnalyzers: cfg.AutoApprove.TrustedAnalyzers,
		MinApprovalRate:  cfg.AutoApprove.MinApprovalRate,
		MaxPerHour:       cfg.AutoApprove.MaxPerHour,
		TaskTypes:        approvableTypes,
	}, tasks, auditor)
	approval.Start()

	// 8. Cleanup service
	var cleanup *store.CleanupService
	if cfg.Cleanup.Enabled {
		cleanup = store.NewCleanupService(tasks, cfg.Cleanup.DaysOld, cfg.Cleanup.Interval)
		cleanup.Start(ctx)
	}

	// 9. HTTP server
	reports := analytics.New(tasks)
	httpServer := api.NewServer(cfg, tasks, templates, sched, hub, approval, reports)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + httpPort
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("taskgen started successfully",
		"generation_enabled", cfg.Generation.Enabled,
		"auto_approve_enabled", cfg.AutoApprove.Enabled)

	// 10. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 11. Graceful shutdown: stop intake first, then drain HTTP
	sched.Stop()
	watcher.Stop()
	approval.Stop()
	if cleanup != nil {
		cleanup.Stop()
	}
	hub.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}

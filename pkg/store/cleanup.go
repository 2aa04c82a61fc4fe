package store

import (
	"context"
	"log/slog"
	"time"
)

// CleanupService periodically removes dismissed tasks older than the
// retention horizon.
type CleanupService struct {
	tasks    *Store
	daysOld  int
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewCleanupService creates the service.
func NewCleanupService(tasks *Store, daysOld int, interval time.Duration) *CleanupService {
	return &CleanupService{
		tasks:    tasks,
		daysOld:  daysOld,
		interval: interval,
	}
}

// Start launches the cleanup loop.
func (s *CleanupService) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx)
	slog.Info("Cleanup service started", "days_old", s.daysOld, "interval", s.interval)
}

// Stop ends the loop.
func (s *CleanupService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	slog.Info("Cleanup service stopped")
}

func (s *CleanupService) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.tasks.Cleanup(s.daysOld)
			if err != nil {
				slog.Error("Scheduled cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("Scheduled cleanup removed dismissed tasks", "removed", removed)
			}
		}
	}
}

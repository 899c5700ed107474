package service

import (
	"context"
	"log/slog"
	"time"
)

// HousekeepingService sweeps expired sessions and, when enabled, runs a
// periodic directory sync.
type HousekeepingService struct {
	Sessions  *SessionStore
	Directory *DirectoryService
	Logger    *slog.Logger

	Interval     time.Duration
	SyncInterval time.Duration // zero disables periodic sync

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService defaults interval to one hour. A nil directory or a
// non-positive syncInterval disables periodic sync.
func NewHousekeepingService(
	sessions *SessionStore,
	directory *DirectoryService,
	logger *slog.Logger,
	interval, syncInterval time.Duration,
) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	if directory == nil {
		syncInterval = 0
	}
	return &HousekeepingService{
		Sessions:     sessions,
		Directory:    directory,
		Logger:       logger,
		Interval:     interval,
		SyncInterval: syncInterval,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start launches the worker. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval, "sync_interval", s.SyncInterval)
}

// Stop blocks until any in-progress run has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	var syncC <-chan time.Time
	if s.SyncInterval > 0 {
		syncTicker := time.NewTicker(s.SyncInterval)
		defer syncTicker.Stop()
		syncC = syncTicker.C
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.Cleanup(ctx)

	for {
		select {
		case <-ticker.C:
			s.Cleanup(ctx)
		case <-syncC:
			s.Sync(ctx)
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup deletes expired durable sessions and prunes the session cache.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	n, err := s.Sessions.Sweep(ctx)
	if err != nil {
		s.Logger.Error("failed to sweep expired sessions", "error", err)
	}
	pruned := s.Sessions.PruneCache()
	s.Logger.Info("housekeeping cleanup completed", "sessions_deleted", n, "cache_pruned", pruned)
}

// Sync runs one full directory sync.
func (s *HousekeepingService) Sync(ctx context.Context) {
	if s.Directory == nil {
		return
	}
	res, err := s.Directory.SyncAll(ctx)
	if err != nil {
		s.Logger.Error("scheduled directory sync failed", "error", err, "inserted", res.Inserted, "updated", res.Updated)
		return
	}
	s.Logger.Info("scheduled directory sync completed",
		"inserted", res.Inserted,
		"updated", res.Updated,
		"unchanged", res.Unchanged,
		"skipped", res.Skipped,
	)
}

package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/JoeProAI/followlytics/internal/models"
	"github.com/JoeProAI/followlytics/internal/tracker"
)

// Scheduler starts scan runs on each target's cron schedule. It re-reads the
// target list periodically so schedule edits and new targets are picked up
// without a restart.
//
// The scheduler only opens runs. Page delivery and completion belong to the
// extraction source; a tick against a target with a run already in flight is
// silently skipped.
type Scheduler struct {
	targets      models.TargetRepository
	manager      *tracker.Manager
	logger       *slog.Logger
	syncInterval time.Duration

	cron *cron.Cron

	mu      sync.Mutex
	entries map[string]scheduledEntry
	cancel  context.CancelFunc
	done    chan struct{}
}

type scheduledEntry struct {
	id   cron.EntryID
	spec string
}

func NewScheduler(targets models.TargetRepository, manager *tracker.Manager, syncInterval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		targets:      targets,
		manager:      manager,
		logger:       logger,
		syncInterval: syncInterval,
		cron:         cron.New(),
		entries:      make(map[string]scheduledEntry),
	}
}

// Start syncs once, begins the cron loop, and launches the background re-sync.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.sync(ctx); err != nil {
		return err
	}

	s.cron.Start()

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.syncLoop(loopCtx)

	s.logger.Info("scan scheduler started", "sync_interval", s.syncInterval)
	return nil
}

// Stop halts the cron loop and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	<-s.cron.Stop().Done()
	s.logger.Info("scan scheduler stopped")
}

func (s *Scheduler) syncLoop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sync(ctx); err != nil {
				s.logger.Error("scheduler sync failed", "error", err)
			}
		}
	}
}

// sync reconciles cron entries against the stored targets: new or changed
// schedules are (re)registered, removed targets or cleared schedules are
// deregistered.
func (s *Scheduler) sync(ctx context.Context) error {
	targets, err := s.targets.ListAll(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[string]string)
	for _, target := range targets {
		if target.ScanSchedule != "" {
			wanted[target.ID] = target.ScanSchedule
		}
	}

	for targetID, entry := range s.entries {
		spec, ok := wanted[targetID]
		if ok && spec == entry.spec {
			continue
		}
		s.cron.Remove(entry.id)
		delete(s.entries, targetID)
	}

	for _, target := range targets {
		spec, ok := wanted[target.ID]
		if !ok {
			continue
		}
		if _, registered := s.entries[target.ID]; registered {
			continue
		}

		targetID := target.ID
		handle := target.Handle
		id, err := s.cron.AddFunc(spec, func() { s.tick(targetID, handle) })
		if err != nil {
			s.logger.Error("invalid scan schedule, target skipped",
				"target_id", targetID, "handle", handle, "schedule", spec, "error", err)
			continue
		}
		s.entries[target.ID] = scheduledEntry{id: id, spec: spec}
		s.logger.Debug("target scheduled", "target_id", targetID, "handle", handle, "schedule", spec)
	}

	return nil
}

func (s *Scheduler) tick(targetID, handle string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	run, err := s.manager.StartRun(ctx, targetID)
	if err != nil {
		if errors.Is(err, tracker.ErrRunActive) {
			s.logger.Debug("scheduled tick skipped, run already in flight", "target_id", targetID)
			return
		}
		s.logger.Error("scheduled run start failed", "target_id", targetID, "handle", handle, "error", err)
		return
	}

	s.logger.Info("scheduled scan run opened", "target_id", targetID, "handle", handle, "run_id", run.ID)
}

// Package scheduler runs the periodic stale-file sweep that keeps the
// working directory from filling up with abandoned downloads and encodes.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jmylchreest/compressr/internal/config"
	"github.com/jmylchreest/compressr/internal/storage"
	"github.com/jmylchreest/compressr/pkg/bytesize"
)

// Sweeper deletes stale files from the workspace on a cron schedule.
// Only regular files directly inside the configured directories are
// considered; subdirectories and fresh files are left alone.
type Sweeper struct {
	mu sync.Mutex

	workspace *storage.Workspace
	dirs      []string
	maxAge    time.Duration
	schedule  cron.Schedule
	spec      string

	logger *slog.Logger

	// Running state
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a sweeper over the given workspace-relative directories.
// The schedule accepts standard five-field cron expressions and
// descriptors such as "@hourly".
func New(workspace *storage.Workspace, cfg config.CleanupConfig, dirs []string, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parsing cleanup schedule %q: %w", cfg.Schedule, err)
	}

	return &Sweeper{
		workspace: workspace,
		dirs:      dirs,
		maxAge:    cfg.MaxAge.Std(),
		schedule:  schedule,
		spec:      cfg.Schedule,
		logger:    logger,
	}, nil
}

// Start begins the background sweep loop. The first sweep runs
// immediately so files orphaned by a previous crash are collected
// without waiting for the schedule.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return fmt.Errorf("sweeper already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.loop()

	s.logger.Info("sweeper started",
		slog.String("schedule", s.spec),
		slog.Duration("max_age", s.maxAge),
	)
	return nil
}

// Stop stops the sweeper and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.ctx = nil
	s.cancel = nil
	s.mu.Unlock()

	s.logger.Info("sweeper stopped")
}

// loop sweeps once on start, then sleeps until each next cron
// activation.
func (s *Sweeper) loop() {
	defer s.wg.Done()

	s.Sweep(s.ctx)

	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.Sweep(s.ctx)
		}
	}
}

// Sweep removes stale regular files from each configured directory and
// returns the number of files removed and the bytes reclaimed. Missing
// directories are skipped; per-directory failures are logged and do not
// abort the remaining directories.
func (s *Sweeper) Sweep(ctx context.Context) (int, int64) {
	var (
		removed   int
		reclaimed int64
	)

	for _, dir := range s.dirs {
		if ctx != nil && ctx.Err() != nil {
			break
		}

		n, bytes, err := s.workspace.RemoveOlderThan(dir, s.maxAge)
		if err != nil {
			s.logger.Error("sweep failed",
				slog.String("dir", dir),
				slog.Any("error", err),
			)
			continue
		}
		if n > 0 {
			s.logger.Debug("swept stale files",
				slog.String("dir", dir),
				slog.Int("removed", n),
				slog.String("reclaimed", bytesize.Format(bytesize.Size(bytes))),
			)
		}
		removed += n
		reclaimed += bytes
	}

	if removed > 0 {
		s.logger.Info("sweep complete",
			slog.Int("removed", removed),
			slog.String("reclaimed", bytesize.Format(bytesize.Size(reclaimed))),
		)
	}
	return removed, reclaimed
}

package tokensweeper

import (
	"context"
	"time"

	"github.com/nkiryanov/todoapi/internal/logger"
	"github.com/nkiryanov/todoapi/internal/metrics"
)

const (
	defaultInterval  = time.Hour
	defaultRetention = 24 * time.Hour
)

type staleDeleter interface {
	// Delete tokens expired or revoked before the moment
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

type Config struct {
	// How often to sweep
	Interval time.Duration

	// How long to keep expired and revoked tokens
	Retention time.Duration
}

// Sweeper periodically deletes refresh tokens nobody can use anymore
type Sweeper struct {
	interval  time.Duration
	retention time.Duration

	repo   staleDeleter
	logger logger.Logger
	now    func() time.Time
}

func New(cfg Config, repo staleDeleter, l logger.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Retention < 0 {
		cfg.Retention = defaultRetention
	}

	return &Sweeper{
		interval:  cfg.Interval,
		retention: cfg.Retention,
		repo:      repo,
		logger:    l,
		now:       time.Now,
	}
}

// Run sweeping in background until ctx is done
// Returned channel is closed when the sweeper stopped
func (s *Sweeper) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	s.logger.Debug("Starting token sweeper", "interval", s.interval, "retention", s.retention)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("Token sweeper stopped by context")
				return

			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()

	return idleStopped
}

// Sweep once
func (s *Sweeper) Sweep(ctx context.Context) int64 {
	deleted, err := s.repo.DeleteStale(ctx, s.now().Add(-s.retention))
	if err != nil {
		s.logger.Error("Failed to delete stale refresh tokens", "error", err)
		return 0
	}

	if deleted > 0 {
		metrics.RefreshTokensCleanupDeleted.Add(float64(deleted))
		s.logger.Info("Stale refresh tokens deleted", "count", deleted)
	}
	return deleted
}

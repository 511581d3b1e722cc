// Package sweeper runs the periodic expiry maintenance loop.
package sweeper

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// DefaultInterval is the time between sweeps.
const DefaultInterval = time.Hour

// Store is the persistence the sweeper drives.
type Store interface {
	MarkExpired(ctx context.Context, now time.Time) (int64, error)
	DeleteExpiredAnnotations(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper periodically deactivates expired mappings and prunes stale
// annotations.
type Sweeper struct {
	store    Store
	logger   *slog.Logger
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a sweeper. A non-positive interval selects the default.
func New(store Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		store:    store,
		logger:   logger.With("component", "sweeper"),
		interval: interval,
	}
}

// Run starts the sweep loop and blocks until the context is cancelled.
// The first sweep is jittered so that restarting replicas do not all
// hit the store at once.
func (s *Sweeper) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()
	defer close(done)

	jitter := time.Duration(rand.Int63n(int64(s.interval / 10)))
	s.logger.Info("sweeper started", "interval", s.interval, "first_run_in", jitter)

	timer := time.NewTimer(jitter)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopping")
			return nil
		case <-timer.C:
			s.sweep(ctx)
			timer.Reset(s.interval)
		}
	}
}

// Shutdown stops the loop. It implements server.ShutdownFunc.
func (s *Sweeper) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	now := time.Now().UTC()

	expired, err := s.store.MarkExpired(ctx, now)
	if err != nil {
		s.logger.Error("failed to mark expired mappings", "error", err)
	} else if expired > 0 {
		s.logger.Info("deactivated expired mappings", "count", expired)
	}

	pruned, err := s.store.DeleteExpiredAnnotations(ctx, now)
	if err != nil {
		s.logger.Error("failed to prune stale annotations", "error", err)
	} else if pruned > 0 {
		s.logger.Info("pruned stale annotations", "count", pruned)
	}
}

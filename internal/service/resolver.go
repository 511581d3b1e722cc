package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hopline/hopline/internal/auth"
	"github.com/hopline/hopline/internal/cache"
	"github.com/hopline/hopline/internal/metrics"
	"github.com/hopline/hopline/internal/model"
	"github.com/hopline/hopline/internal/repository"
)

// Resolution is the successful outcome of a redirect lookup.
type Resolution struct {
	// Mapping is nil when the destination came straight from the cache.
	Mapping *model.Mapping

	OriginalURL string
	CacheHit    bool
}

// Resolver runs the redirect fast path: cache-first lookup, the
// five-state validity machine, and cache maintenance on state changes.
type Resolver struct {
	store   MappingStore
	cache   HotCache
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewResolver creates the redirect resolver.
func NewResolver(store MappingStore, hotCache HotCache, logger *slog.Logger, recorder metrics.Recorder) *Resolver {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Resolver{
		store:   store,
		cache:   hotCache,
		logger:  logger.With("component", "service.resolver"),
		metrics: recorder,
	}
}

// Resolve maps an effective key to its destination URL.
//
// The cache holds only open, system-keyed entries, so a hit can answer
// without touching the store. Everything else goes through the state
// machine: Missing, Inactive, Expired, Gated and Open map onto the
// sentinel errors the HTTP layer translates to status codes.
func (r *Resolver) Resolve(ctx context.Context, key, password string) (*Resolution, error) {
	start := time.Now()
	defer func() {
		r.metrics.ObserveRedirectDuration(time.Since(start))
	}()

	// A supplied password implies a gated mapping, which is never
	// cached; skip the lookup in that case.
	if password == "" {
		destination, err := r.cache.GetURL(ctx, key)
		switch {
		case err == nil:
			r.metrics.IncRedirectCacheHit()
			return &Resolution{OriginalURL: destination, CacheHit: true}, nil
		case errors.Is(err, cache.ErrCacheMiss):
			r.metrics.IncRedirectCacheMiss()
		default:
			r.logger.Warn("cache lookup failed, falling through", "key", key, "error", err)
			r.metrics.IncRedirectCacheMiss()
		}
	}

	m, err := r.store.GetMappingByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrMappingNotFound) {
			return nil, ErrMappingNotFound
		}
		return nil, fmt.Errorf("failed to resolve key: %w", err)
	}

	unlocked := false
	if m.IsPasswordProtected() {
		if password == "" {
			return nil, ErrPasswordRequired
		}
		if err := auth.VerifyPassword(*m.PasswordHash, password); err != nil {
			if errors.Is(err, auth.ErrPasswordMismatch) {
				return nil, ErrWrongPassword
			}
			return nil, fmt.Errorf("failed to verify password: %w", err)
		}
		unlocked = true
	}

	switch state := m.Resolve(time.Now(), unlocked); state {
	case model.ResolveInactive:
		return nil, ErrMappingInactive

	case model.ResolveExpired:
		// Evict before reporting so the next request cannot be served a
		// stale redirect. Keyed by the mapping's own short key.
		if err := r.cache.DeleteURL(ctx, m.ShortKey); err != nil {
			r.logger.Warn("failed to evict expired mapping", "short_key", m.ShortKey, "error", err)
		}
		return nil, ErrMappingExpired

	case model.ResolveOpen:
		if !m.IsPasswordProtected() {
			if err := r.cache.SetURL(ctx, m.ShortKey, m.OriginalURL, m.ExpiresAt); err != nil {
				r.logger.Warn("failed to backfill cache", "short_key", m.ShortKey, "error", err)
			}
		}
		return &Resolution{Mapping: m, OriginalURL: m.OriginalURL}, nil

	default:
		return nil, fmt.Errorf("unexpected resolve state %s", state)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hopline/hopline/internal/ai"
	"github.com/hopline/hopline/internal/auth"
	"github.com/hopline/hopline/internal/keygen"
	"github.com/hopline/hopline/internal/metadata"
	"github.com/hopline/hopline/internal/metrics"
	"github.com/hopline/hopline/internal/model"
	"github.com/hopline/hopline/internal/repository"
)

const (
	// mintAttempts bounds probing at the default key length before the
	// minter escalates to the longer fallback length.
	mintAttempts = 10

	// createRetries bounds re-minting when a concurrent create wins the
	// race on the same key. The unique constraint serializes.
	createRetries = 3

	recentListLimit = 20

	reanalyzeTimeout = time.Minute
)

// Shortener orchestrates mapping creation and the read-side API
// operations built on top of it.
type Shortener struct {
	store    MappingStore
	clicks   ClickStore
	cache    HotCache
	fetcher  PageFetcher
	ai       Analyzer
	dispatch BackgroundDispatcher
	baseURL  string
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewShortener creates the mapping service. fetcher and analyzer may be
// nil to disable the corresponding enrichment.
func NewShortener(store MappingStore, clicks ClickStore, cache HotCache, fetcher PageFetcher, analyzer Analyzer, baseURL string, logger *slog.Logger, recorder metrics.Recorder) *Shortener {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Shortener{
		store:   store,
		clicks:  clicks,
		cache:   cache,
		fetcher: fetcher,
		ai:      analyzer,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger.With("component", "service.shortener"),
		metrics: recorder,
	}
}

// SetDispatcher wires the bounded background pool used for deferred AI
// re-analysis. Without one, creation skips the background pass rather
// than spawning unbounded goroutines.
func (s *Shortener) SetDispatcher(d BackgroundDispatcher) {
	s.dispatch = d
}

// CreateInput defines one mapping creation request.
type CreateInput struct {
	OriginalURL      string
	CustomAlias      string
	Password         string
	ExpiresAt        *time.Time
	FetchMetadata    bool
	EnableAIAnalysis bool

	// Creator audit attributes captured at the HTTP layer.
	ClientIP  string
	UserAgent string
}

// CreateOutput is a created mapping plus the synchronous AI analysis,
// when one was requested.
type CreateOutput struct {
	Mapping *model.Mapping
	AI      *ai.Result
}

// Create runs the full creation sequence: validate, check alias, hash
// password, mint a unique key, persist, enrich, cache.
// An expiry in the past is accepted; the mapping is simply born expired.
func (s *Shortener) Create(ctx context.Context, input CreateInput) (*CreateOutput, error) {
	dest, err := validateOriginalURL(input.OriginalURL)
	if err != nil {
		return nil, err
	}

	m := &model.Mapping{
		OriginalURL:      dest,
		IsActive:         true,
		ExpiresAt:        input.ExpiresAt,
		CreatedByIP:      input.ClientIP,
		CreatorUserAgent: input.UserAgent,
	}

	if input.CustomAlias != "" {
		if err := validateAlias(input.CustomAlias); err != nil {
			return nil, err
		}
		exists, err := s.store.KeyExists(ctx, input.CustomAlias)
		if err != nil {
			return nil, fmt.Errorf("failed to check alias: %w", err)
		}
		if exists {
			return nil, ErrAliasTaken
		}
		alias := input.CustomAlias
		m.Alias = &alias
	}

	if input.Password != "" {
		hash, err := auth.HashPassword(input.Password)
		if err != nil {
			return nil, err
		}
		m.PasswordHash = &hash
	}

	if err := s.insertWithUniqueKey(ctx, m); err != nil {
		return nil, err
	}

	s.metrics.IncMappingCreated()
	s.logger.Info("mapping created",
		"short_key", m.ShortKey,
		"effective_key", m.EffectiveKey(),
		"protected", m.IsPasswordProtected(),
	)

	var meta *metadata.PageMeta
	if input.FetchMetadata && s.fetcher != nil {
		meta = s.fetcher.Fetch(ctx, dest)
		s.applyMetadata(ctx, m, meta)
	}

	out := &CreateOutput{Mapping: m}
	if input.EnableAIAnalysis && s.ai != nil {
		title, description := "", ""
		if meta != nil {
			title, description = meta.Title, meta.Description
		}

		result := s.ai.Analyze(ctx, dest, title, description)
		out.AI = result
		if !result.FromCache && !result.Degraded() {
			s.applyAnnotation(ctx, m, result)
		}

		// A cached or degraded synchronous result leaves ai_analyzed_at
		// unset; the background pass fills it in.
		if s.dispatch != nil {
			id := m.ID
			if !s.dispatch.Submit("ai_reanalysis", m.EffectiveKey(), func() {
				s.reanalyze(id, title, description)
			}) {
				s.logger.Warn("background analysis refused by executor", "mapping_id", id)
			}
		}
	}

	if !m.IsPasswordProtected() {
		if err := s.cache.SetURL(ctx, m.ShortKey, dest, m.ExpiresAt); err != nil {
			s.logger.Warn("failed to cache new mapping", "short_key", m.ShortKey, "error", err)
		}
	}

	return out, nil
}

// insertWithUniqueKey mints a key, inserts, and re-mints when a
// concurrent create stole the key between probe and insert.
func (s *Shortener) insertWithUniqueKey(ctx context.Context, m *model.Mapping) error {
	for attempt := 0; ; attempt++ {
		key, err := s.mintUniqueKey(ctx)
		if err != nil {
			return err
		}
		m.ShortKey = key

		err = s.store.CreateMapping(ctx, m)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, repository.ErrAliasExists):
			return ErrAliasTaken
		case errors.Is(err, repository.ErrKeyExists) && attempt < createRetries:
			s.logger.Warn("minted key lost an insert race, re-minting", "short_key", key)
		default:
			return fmt.Errorf("failed to persist mapping: %w", err)
		}
	}
}

// mintUniqueKey probes candidate keys against both the short-key and
// alias namespaces, escalating to a longer key when the default length
// keeps colliding.
func (s *Shortener) mintUniqueKey(ctx context.Context) (string, error) {
	for i := 0; i < mintAttempts; i++ {
		key, err := keygen.Mint()
		if err != nil {
			return "", fmt.Errorf("failed to mint key: %w", err)
		}
		exists, err := s.store.KeyExists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("failed to probe minted key: %w", err)
		}
		if !exists {
			return key, nil
		}
	}

	s.logger.Warn("default-length key space congested, escalating", "length", keygen.EscalatedLength)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		key, err := keygen.MintOfLength(keygen.EscalatedLength)
		if err != nil {
			return "", fmt.Errorf("failed to mint key: %w", err)
		}
		exists, err := s.store.KeyExists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("failed to probe minted key: %w", err)
		}
		if !exists {
			return key, nil
		}
	}
}

// applyMetadata stores fetched page metadata on the mapping, best
// effort.
func (s *Shortener) applyMetadata(ctx context.Context, m *model.Mapping, meta *metadata.PageMeta) {
	if meta == nil {
		return
	}
	if meta.Title != "" {
		m.MetaTitle = &meta.Title
	}
	if meta.Description != "" {
		m.MetaDescription = &meta.Description
	}
	if meta.ImageURL != "" {
		m.MetaImageURL = &meta.ImageURL
	}
	if meta.FaviconURL != "" {
		m.FaviconURL = &meta.FaviconURL
	}
	m.MetaFetchedAt = meta.FetchedAt

	if err := s.store.UpdatePageMetadata(ctx, m); err != nil {
		s.logger.Warn("failed to persist page metadata", "short_key", m.ShortKey, "error", err)
	}
}

// applyAnnotation stores an AI analysis on the mapping, best effort.
func (s *Shortener) applyAnnotation(ctx context.Context, m *model.Mapping, result *ai.Result) {
	now := time.Now().UTC()
	summary := result.Summary
	category := result.Category
	tags := strings.Join(result.Tags, ",")

	m.AISummary = &summary
	m.AICategory = &category
	m.AITags = &tags
	m.AISafetyScore = &result.SafetyScore
	m.AIAnalyzedAt = &now

	if err := s.store.UpdateAIAnnotation(ctx, m); err != nil {
		s.logger.Warn("failed to persist ai annotation", "short_key", m.ShortKey, "error", err)
	}
}

// reanalyze runs a background AI pass for a freshly created mapping.
// It only writes when the mapping is still unanalyzed, so a successful
// synchronous analysis wins.
func (s *Shortener) reanalyze(mappingID int64, title, description string) {
	ctx, cancel := context.WithTimeout(context.Background(), reanalyzeTimeout)
	defer cancel()

	m, err := s.store.GetMappingByID(ctx, mappingID)
	if err != nil {
		s.logger.Warn("background analysis could not load mapping", "mapping_id", mappingID, "error", err)
		return
	}
	if m.AIAnalyzedAt != nil {
		return
	}

	result := s.ai.Analyze(ctx, m.OriginalURL, title, description)
	if result.Degraded() {
		return
	}
	s.applyAnnotation(ctx, m, result)
}

// BulkOverrides are batch-level flags that take precedence over
// per-item settings when set.
type BulkOverrides struct {
	FetchMetadata    *bool
	EnableAIAnalysis *bool
}

// BulkFailure records one failed item of a bulk create.
type BulkFailure struct {
	Index       int    `json:"index"`
	OriginalURL string `json:"original_url"`
	Error       string `json:"error"`
}

// BulkResult collects per-item outcomes of a bulk create in input
// order.
type BulkResult struct {
	Successes []*CreateOutput
	Failures  []BulkFailure
}

// CreateBulk creates mappings one by one. A failing item is recorded
// and never aborts the batch.
func (s *Shortener) CreateBulk(ctx context.Context, inputs []CreateInput, overrides BulkOverrides) *BulkResult {
	result := &BulkResult{}

	for i, input := range inputs {
		if overrides.FetchMetadata != nil {
			input.FetchMetadata = *overrides.FetchMetadata
		}
		if overrides.EnableAIAnalysis != nil {
			input.EnableAIAnalysis = *overrides.EnableAIAnalysis
		}

		out, err := s.Create(ctx, input)
		if err != nil {
			result.Failures = append(result.Failures, BulkFailure{
				Index:       i,
				OriginalURL: input.OriginalURL,
				Error:       err.Error(),
			})
			continue
		}
		result.Successes = append(result.Successes, out)
	}

	return result
}

// ListRecent returns the most recently created active mappings.
func (s *Shortener) ListRecent(ctx context.Context) ([]*model.Mapping, error) {
	mappings, err := s.store.ListRecentMappings(ctx, recentListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	return mappings, nil
}

// Stats holds the basic counters for one mapping.
type Stats struct {
	Mapping        *model.Mapping
	RecordedClicks int64
}

// Stats returns the counters for a mapping addressed by effective key.
func (s *Shortener) Stats(ctx context.Context, key string) (*Stats, error) {
	m, err := s.getMapping(ctx, key)
	if err != nil {
		return nil, err
	}

	recorded, err := s.clicks.CountClickEvents(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count click events: %w", err)
	}

	return &Stats{Mapping: m, RecordedClicks: recorded}, nil
}

// Analytics returns the aggregated click breakdowns for a mapping.
func (s *Shortener) Analytics(ctx context.Context, key string) (*model.AnalyticsBreakdown, error) {
	m, err := s.getMapping(ctx, key)
	if err != nil {
		return nil, err
	}

	breakdown := &model.AnalyticsBreakdown{
		ShortKey:    m.ShortKey,
		GeneratedAt: time.Now().UTC(),
	}

	if breakdown.TotalClicks, err = s.clicks.CountClickEvents(ctx, m.ID); err != nil {
		return nil, fmt.Errorf("failed to count click events: %w", err)
	}
	if breakdown.Countries, err = s.clicks.ClicksByCountry(ctx, m.ID); err != nil {
		return nil, fmt.Errorf("failed to aggregate countries: %w", err)
	}
	if breakdown.Devices, err = s.clicks.ClicksByDevice(ctx, m.ID); err != nil {
		return nil, fmt.Errorf("failed to aggregate devices: %w", err)
	}
	if breakdown.Browsers, err = s.clicks.ClicksByBrowser(ctx, m.ID); err != nil {
		return nil, fmt.Errorf("failed to aggregate browsers: %w", err)
	}
	if breakdown.OSes, err = s.clicks.ClicksByOS(ctx, m.ID); err != nil {
		return nil, fmt.Errorf("failed to aggregate operating systems: %w", err)
	}
	if breakdown.Referers, err = s.clicks.ClicksByReferer(ctx, m.ID); err != nil {
		return nil, fmt.Errorf("failed to aggregate referers: %w", err)
	}
	if breakdown.Daily, err = s.clicks.ClicksByDay(ctx, m.ID); err != nil {
		return nil, fmt.Errorf("failed to aggregate daily clicks: %w", err)
	}

	return breakdown, nil
}

// Preview returns a mapping's decorations for the link preview page.
func (s *Shortener) Preview(ctx context.Context, key string) (*model.Mapping, error) {
	return s.getMapping(ctx, key)
}

// ProtectionStatus reports whether the mapping requires a password.
func (s *Shortener) ProtectionStatus(ctx context.Context, key string) (bool, error) {
	m, err := s.getMapping(ctx, key)
	if err != nil {
		return false, err
	}
	return m.IsPasswordProtected(), nil
}

// ShortURL builds the public URL for an effective key.
func (s *Shortener) ShortURL(effectiveKey string) string {
	return s.baseURL + "/" + effectiveKey
}

// BaseURL returns the configured public base URL.
func (s *Shortener) BaseURL() string {
	return s.baseURL
}

func (s *Shortener) getMapping(ctx context.Context, key string) (*model.Mapping, error) {
	m, err := s.store.GetMappingByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrMappingNotFound) {
			return nil, ErrMappingNotFound
		}
		return nil, fmt.Errorf("failed to load mapping: %w", err)
	}
	return m, nil
}

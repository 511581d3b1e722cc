package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/hopline/hopline/internal/ai"
	"github.com/hopline/hopline/internal/cache"
	"github.com/hopline/hopline/internal/metadata"
	"github.com/hopline/hopline/internal/model"
	"github.com/hopline/hopline/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestCache backs the HotCache contract with a real Redis protocol
// via miniredis.
func newTestCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	c, err := cache.New(context.Background(), "redis://"+srv.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	return c, srv
}

// fakeMappingStore is an in-memory MappingStore enforcing the key and
// alias uniqueness the real store gets from its constraints.
type fakeMappingStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*model.Mapping

	// keyExists, when set, overrides the collision probe.
	keyExists func(key string) bool

	metadataUpdates   int
	annotationUpdates int
}

func newFakeMappingStore() *fakeMappingStore {
	return &fakeMappingStore{byID: map[int64]*model.Mapping{}}
}

func (s *fakeMappingStore) lookupLocked(key string) *fakeMappingStoreEntry {
	for _, m := range s.byID {
		if m.ShortKey == key {
			return &fakeMappingStoreEntry{m, false}
		}
		if m.Alias != nil && *m.Alias == key {
			return &fakeMappingStoreEntry{m, true}
		}
	}
	return nil
}

type fakeMappingStoreEntry struct {
	mapping *model.Mapping
	byAlias bool
}

func (s *fakeMappingStore) CreateMapping(_ context.Context, m *model.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if hit := s.lookupLocked(m.ShortKey); hit != nil {
		if hit.byAlias {
			return repository.ErrAliasExists
		}
		return repository.ErrKeyExists
	}
	if m.Alias != nil {
		if s.lookupLocked(*m.Alias) != nil {
			return repository.ErrAliasExists
		}
	}

	s.nextID++
	m.ID = s.nextID
	m.CreatedAt = time.Now().UTC()
	stored := *m
	s.byID[m.ID] = &stored
	return nil
}

func (s *fakeMappingStore) GetMappingByKey(_ context.Context, key string) (*model.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hit := s.lookupLocked(key); hit != nil {
		copied := *hit.mapping
		return &copied, nil
	}
	return nil, repository.ErrMappingNotFound
}

func (s *fakeMappingStore) GetMappingByID(_ context.Context, id int64) (*model.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.byID[id]; ok {
		copied := *m
		return &copied, nil
	}
	return nil, repository.ErrMappingNotFound
}

func (s *fakeMappingStore) KeyExists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keyExists != nil {
		return s.keyExists(key), nil
	}
	return s.lookupLocked(key) != nil, nil
}

func (s *fakeMappingStore) ListRecentMappings(_ context.Context, limit int) ([]*model.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.Mapping
	for id := s.nextID; id > 0 && len(out) < limit; id-- {
		if m, ok := s.byID[id]; ok && m.IsActive {
			copied := *m
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeMappingStore) UpdatePageMetadata(_ context.Context, m *model.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[m.ID]
	if !ok {
		return repository.ErrMappingNotFound
	}
	stored.MetaTitle = m.MetaTitle
	stored.MetaDescription = m.MetaDescription
	stored.MetaImageURL = m.MetaImageURL
	stored.FaviconURL = m.FaviconURL
	stored.MetaFetchedAt = m.MetaFetchedAt
	s.metadataUpdates++
	return nil
}

func (s *fakeMappingStore) UpdateAIAnnotation(_ context.Context, m *model.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[m.ID]
	if !ok {
		return repository.ErrMappingNotFound
	}
	stored.AISummary = m.AISummary
	stored.AICategory = m.AICategory
	stored.AITags = m.AITags
	stored.AISafetyScore = m.AISafetyScore
	stored.AIAnalyzedAt = m.AIAnalyzedAt
	s.annotationUpdates++
	return nil
}

func (s *fakeMappingStore) annotationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.annotationUpdates
}

// fakeClickStore serves canned aggregates.
type fakeClickStore struct {
	total     int64
	countries []model.BucketCount
	devices   []model.BucketCount
	browsers  []model.BucketCount
	oses      []model.BucketCount
	referers  []model.BucketCount
	daily     []model.DailyCount
}

func (s *fakeClickStore) CountClickEvents(context.Context, int64) (int64, error) {
	return s.total, nil
}

func (s *fakeClickStore) ClicksByCountry(context.Context, int64) ([]model.BucketCount, error) {
	return s.countries, nil
}

func (s *fakeClickStore) ClicksByDevice(context.Context, int64) ([]model.BucketCount, error) {
	return s.devices, nil
}

func (s *fakeClickStore) ClicksByBrowser(context.Context, int64) ([]model.BucketCount, error) {
	return s.browsers, nil
}

func (s *fakeClickStore) ClicksByOS(context.Context, int64) ([]model.BucketCount, error) {
	return s.oses, nil
}

func (s *fakeClickStore) ClicksByReferer(context.Context, int64) ([]model.BucketCount, error) {
	return s.referers, nil
}

func (s *fakeClickStore) ClicksByDay(context.Context, int64) ([]model.DailyCount, error) {
	return s.daily, nil
}

// fakeFetcher returns a fixed PageMeta without touching the network.
type fakeFetcher struct {
	meta *metadata.PageMeta
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) *metadata.PageMeta {
	if f.meta != nil {
		return f.meta
	}
	return &metadata.PageMeta{URL: rawURL}
}

// fakeAnalyzer returns a canned result and records invocations.
type fakeAnalyzer struct {
	mu     sync.Mutex
	result *ai.Result
	calls  int
}

func (a *fakeAnalyzer) Analyze(context.Context, string, string, string) *ai.Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.result != nil {
		copied := *a.result
		return &copied
	}
	return &ai.Result{Category: "Other", SafetyScore: 0.8, IsSafe: true}
}

func (a *fakeAnalyzer) SuggestAliases(context.Context, string, string) []string { return nil }

func (a *fakeAnalyzer) CheckSafety(context.Context, string) *ai.SafetyResult {
	return &ai.SafetyResult{SafetyScore: 0.5, IsSafe: true}
}

func (a *fakeAnalyzer) Available(context.Context) bool { return true }

func newTestShortener(t *testing.T, store *fakeMappingStore, clicks ClickStore, analyzer Analyzer) (*Shortener, *miniredis.Miniredis) {
	t.Helper()

	c, srv := newTestCache(t)
	if clicks == nil {
		clicks = &fakeClickStore{}
	}
	svc := NewShortener(store, clicks, c, &fakeFetcher{}, analyzer, "https://hopl.in", discardLogger(), nil)
	return svc, srv
}

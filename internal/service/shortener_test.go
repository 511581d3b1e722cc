package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hopline/hopline/internal/ai"
	"github.com/hopline/hopline/internal/auth"
	"github.com/hopline/hopline/internal/keygen"
)

func TestCreatePlainMapping(t *testing.T) {
	t.Parallel()

	store := newFakeMappingStore()
	svc, srv := newTestShortener(t, store, nil, nil)

	out, err := svc.Create(context.Background(), CreateInput{
		OriginalURL: "https://example.com/a",
		ClientIP:    "203.0.113.9",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	m := out.Mapping
	if len(m.ShortKey) < keygen.MinLength || len(m.ShortKey) > keygen.MaxLength {
		t.Errorf("ShortKey length = %d, want %d..%d", len(m.ShortKey), keygen.MinLength, keygen.MaxLength)
	}
	if m.ID == 0 {
		t.Error("mapping must be assigned an id")
	}
	if !m.IsActive {
		t.Error("new mapping must be active")
	}
	if m.CreatedByIP != "203.0.113.9" {
		t.Errorf("CreatedByIP = %q", m.CreatedByIP)
	}
	if got := svc.ShortURL(m.EffectiveKey()); got != "https://hopl.in/"+m.ShortKey {
		t.Errorf("ShortURL = %q", got)
	}

	cached, err := srv.Get("short:" + m.ShortKey)
	if err != nil || cached != "https://example.com/a" {
		t.Errorf("cache entry = %q, %v; want destination cached", cached, err)
	}
}

func TestCreateRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	svc, _ := newTestShortener(t, newFakeMappingStore(), nil, nil)

	for _, raw := range []string{"", "not-a-url", "ftp://example.com", "https://"} {
		if _, err := svc.Create(context.Background(), CreateInput{OriginalURL: raw}); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("Create(%q) = %v, want ErrInvalidURL", raw, err)
		}
	}
}

func TestCreateAliasCollision(t *testing.T) {
	t.Parallel()

	store := newFakeMappingStore()
	svc, _ := newTestShortener(t, store, nil, nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateInput{OriginalURL: "https://a.test", CustomAlias: "demo"})
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if first.Mapping.EffectiveKey() != "demo" {
		t.Errorf("EffectiveKey = %q, want demo", first.Mapping.EffectiveKey())
	}

	if _, err := svc.Create(ctx, CreateInput{OriginalURL: "https://b.test", CustomAlias: "demo"}); !errors.Is(err, ErrAliasTaken) {
		t.Errorf("duplicate alias = %v, want ErrAliasTaken", err)
	}

	// An alias may not shadow an existing system key either.
	if _, err := svc.Create(ctx, CreateInput{OriginalURL: "https://c.test", CustomAlias: first.Mapping.ShortKey}); !errors.Is(err, ErrAliasTaken) {
		t.Errorf("alias colliding with short key = %v, want ErrAliasTaken", err)
	}
}

func TestCreateInvalidAlias(t *testing.T) {
	t.Parallel()

	svc, _ := newTestShortener(t, newFakeMappingStore(), nil, nil)

	if _, err := svc.Create(context.Background(), CreateInput{OriginalURL: "https://a.test", CustomAlias: "!!"}); !errors.Is(err, ErrInvalidAlias) {
		t.Errorf("Create with bad alias = %v, want ErrInvalidAlias", err)
	}
}

func TestCreateProtectedMappingIsNotCached(t *testing.T) {
	t.Parallel()

	store := newFakeMappingStore()
	svc, srv := newTestShortener(t, store, nil, nil)

	out, err := svc.Create(context.Background(), CreateInput{
		OriginalURL: "https://secret.test",
		Password:    "hunter2",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if !out.Mapping.IsPasswordProtected() {
		t.Error("mapping must be password protected")
	}
	if srv.Exists("short:" + out.Mapping.ShortKey) {
		t.Error("protected mapping must never enter the cache")
	}

	protected, err := svc.ProtectionStatus(context.Background(), out.Mapping.ShortKey)
	if err != nil || !protected {
		t.Errorf("ProtectionStatus = %v, %v; want true", protected, err)
	}
}

func TestCreatePasswordLengthValidation(t *testing.T) {
	t.Parallel()

	svc, _ := newTestShortener(t, newFakeMappingStore(), nil, nil)

	if _, err := svc.Create(context.Background(), CreateInput{OriginalURL: "https://a.test", Password: "abc"}); !errors.Is(err, auth.ErrPasswordLength) {
		t.Errorf("3-char password = %v, want ErrPasswordLength", err)
	}
	if _, err := svc.Create(context.Background(), CreateInput{OriginalURL: "https://a.test", Password: "abcd"}); err != nil {
		t.Errorf("4-char password = %v, want accepted", err)
	}
}

func TestCreateAcceptsPastExpiry(t *testing.T) {
	t.Parallel()

	store := newFakeMappingStore()
	svc, srv := newTestShortener(t, store, nil, nil)

	past := time.Now().Add(-time.Hour)
	out, err := svc.Create(context.Background(), CreateInput{
		OriginalURL: "https://x.test",
		ExpiresAt:   &past,
	})
	if err != nil {
		t.Fatalf("Create with past expiry: %v", err)
	}
	if !out.Mapping.IsExpired(time.Now()) {
		t.Error("mapping must be born expired")
	}
	if srv.Exists("short:" + out.Mapping.ShortKey) {
		t.Error("an already expired mapping must not be cached")
	}
}

func TestCreateAppliesFreshAnnotation(t *testing.T) {
	t.Parallel()

	store := newFakeMappingStore()
	analyzer := &fakeAnalyzer{result: &ai.Result{
		Summary:     "A code hosting platform for developers everywhere.",
		Category:    "Technology",
		Tags:        []string{"git", "code"},
		SafetyScore: 0.95,
		IsSafe:      true,
	}}
	svc, _ := newTestShortener(t, store, nil, analyzer)

	out, err := svc.Create(context.Background(), CreateInput{
		OriginalURL:      "https://github.com",
		EnableAIAnalysis: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if out.AI == nil || out.AI.Category != "Technology" {
		t.Fatalf("AI result missing from output: %+v", out.AI)
	}

	stored, err := store.GetMappingByID(context.Background(), out.Mapping.ID)
	if err != nil {
		t.Fatalf("GetMappingByID: %v", err)
	}
	if stored.AICategory == nil || *stored.AICategory != "Technology" {
		t.Errorf("stored category = %v, want Technology", stored.AICategory)
	}
	if stored.AITags == nil || *stored.AITags != "git,code" {
		t.Errorf("stored tags = %v, want git,code", stored.AITags)
	}
	if stored.AIAnalyzedAt == nil {
		t.Error("ai_analyzed_at must be set after a fresh analysis")
	}
}

func TestCreateSkipsDegradedAnnotation(t *testing.T) {
	t.Parallel()

	store := newFakeMappingStore()
	analyzer := &fakeAnalyzer{result: &ai.Result{
		Summary:     "AI analysis is currently unavailable. Please try again later.",
		Category:    "Other",
		SafetyScore: 0.8,
		IsSafe:      true,
	}}
	svc, _ := newTestShortener(t, store, nil, analyzer)

	out, err := svc.Create(context.Background(), CreateInput{
		OriginalURL:      "https://example.com",
		EnableAIAnalysis: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if out.AI == nil {
		t.Fatal("the degraded result must still be returned to the caller")
	}

	stored, err := store.GetMappingByID(context.Background(), out.Mapping.ID)
	if err != nil {
		t.Fatalf("GetMappingByID: %v", err)
	}
	if stored.AIAnalyzedAt != nil {
		t.Error("a degraded analysis must not be persisted")
	}
}

// syncDispatcher runs submitted work inline and records what was
// submitted.
type syncDispatcher struct {
	kinds []string
	keys  []string
}

func (d *syncDispatcher) Submit(kind, key string, fn func()) bool {
	d.kinds = append(d.kinds, kind)
	d.keys = append(d.keys, key)
	fn()
	return true
}

func TestCreateDefersReanalysisToDispatcher(t *testing.T) {
	t.Parallel()

	store := newFakeMappingStore()
	analyzer := &fakeAnalyzer{result: &ai.Result{
		Summary:     "A code hosting platform for developers everywhere.",
		Category:    "Technology",
		SafetyScore: 0.95,
		IsSafe:      true,
		FromCache:   true,
	}}
	svc, _ := newTestShortener(t, store, nil, analyzer)
	dispatch := &syncDispatcher{}
	svc.SetDispatcher(dispatch)

	out, err := svc.Create(context.Background(), CreateInput{
		OriginalURL:      "https://github.com",
		EnableAIAnalysis: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if len(dispatch.kinds) != 1 || dispatch.kinds[0] != "ai_reanalysis" {
		t.Fatalf("dispatched kinds = %v, want one ai_reanalysis", dispatch.kinds)
	}
	if dispatch.keys[0] != out.Mapping.EffectiveKey() {
		t.Errorf("dispatched key = %q, want %q", dispatch.keys[0], out.Mapping.EffectiveKey())
	}

	// The cached synchronous result is not persisted; the dispatched
	// background pass fills the annotation in.
	stored, err := store.GetMappingByID(context.Background(), out.Mapping.ID)
	if err != nil {
		t.Fatalf("GetMappingByID: %v", err)
	}
	if stored.AIAnalyzedAt == nil {
		t.Error("ai_analyzed_at must be set by the dispatched pass")
	}
	if stored.AICategory == nil || *stored.AICategory != "Technology" {
		t.Errorf("stored category = %v, want Technology", stored.AICategory)
	}
}

func TestMintEscalatesOnCongestion(t *testing.T) {
	t.Parallel()

	store := newFakeMappingStore()
	// Every default-length probe collides; only the escalated length is
	// free.
	store.keyExists = func(key string) bool {
		return len(key) < keygen.EscalatedLength
	}
	svc, _ := newTestShortener(t, store, nil, nil)

	out, err := svc.Create(context.Background(), CreateInput{OriginalURL: "https://example.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(out.Mapping.ShortKey) != keygen.EscalatedLength {
		t.Errorf("ShortKey length = %d, want escalated %d", len(out.Mapping.ShortKey), keygen.EscalatedLength)
	}
}

func TestCreateBulkPartialFailure(t *testing.T) {
	t.Parallel()

	store := newFakeMappingStore()
	svc, _ := newTestShortener(t, store, nil, nil)

	result := svc.CreateBulk(context.Background(), []CreateInput{
		{OriginalURL: "https://ok.test"},
		{OriginalURL: "not-a-url"},
		{OriginalURL: "https://also.test"},
	}, BulkOverrides{})

	if len(result.Successes) != 2 {
		t.Errorf("successes = %d, want 2", len(result.Successes))
	}
	if len(result.Failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(result.Failures))
	}
	if f := result.Failures[0]; f.Index != 1 || f.OriginalURL != "not-a-url" {
		t.Errorf("failure = %+v, want index 1 for not-a-url", f)
	}
}

func TestCreateBulkOverridesFlags(t *testing.T) {
	t.Parallel()

	store := newFakeMappingStore()
	analyzer := &fakeAnalyzer{}
	svc, _ := newTestShortener(t, store, nil, analyzer)

	off := false
	svc.CreateBulk(context.Background(), []CreateInput{
		{OriginalURL: "https://a.test", EnableAIAnalysis: true},
		{OriginalURL: "https://b.test", EnableAIAnalysis: true},
	}, BulkOverrides{EnableAIAnalysis: &off})

	analyzer.mu.Lock()
	calls := analyzer.calls
	analyzer.mu.Unlock()
	if calls != 0 {
		t.Errorf("analyzer calls = %d, want 0 when the bulk override disables AI", calls)
	}
}

func TestStatsAndAnalytics(t *testing.T) {
	t.Parallel()

	store := newFakeMappingStore()
	clicks := &fakeClickStore{total: 42}
	svc, _ := newTestShortener(t, store, clicks, nil)
	ctx := context.Background()

	out, err := svc.Create(ctx, CreateInput{OriginalURL: "https://example.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	stats, err := svc.Stats(ctx, out.Mapping.ShortKey)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.RecordedClicks != 42 {
		t.Errorf("RecordedClicks = %d, want 42", stats.RecordedClicks)
	}

	breakdown, err := svc.Analytics(ctx, out.Mapping.ShortKey)
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}
	if breakdown.TotalClicks != 42 || breakdown.ShortKey != out.Mapping.ShortKey {
		t.Errorf("breakdown = %+v", breakdown)
	}

	if _, err := svc.Stats(ctx, "missing"); !errors.Is(err, ErrMappingNotFound) {
		t.Errorf("Stats(missing) = %v, want ErrMappingNotFound", err)
	}
}

package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hopline/hopline/internal/ai"
	"github.com/hopline/hopline/internal/handler/dto"
)

// fakeAnalyzer is a canned Analyzer for AI endpoint tests.
type fakeAnalyzer struct {
	suggestions []string
	safety      *ai.SafetyResult
	available   bool
}

func (f *fakeAnalyzer) SuggestAliases(ctx context.Context, rawURL, title string) []string {
	return f.suggestions
}

func (f *fakeAnalyzer) CheckSafety(ctx context.Context, rawURL string) *ai.SafetyResult {
	return f.safety
}

func (f *fakeAnalyzer) Available(ctx context.Context) bool {
	return f.available
}

func TestSuggestAliasesEndpoint(t *testing.T) {
	t.Parallel()

	h := NewAIHandler(&fakeAnalyzer{
		suggestions: []string{"go-tips", "golang-blog"},
		available:   true,
	}, "llama3", discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/ai/suggest-aliases",
		strings.NewReader(`{"url":"https://blog.example.com","title":"Go tips"}`))
	rec := httptest.NewRecorder()
	h.SuggestAliases(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeJSON[dto.SuggestAliasesResponse](t, rec)
	if len(resp.Suggestions) != 2 || resp.Suggestions[0] != "go-tips" {
		t.Errorf("suggestions = %v", resp.Suggestions)
	}
}

func TestSuggestAliasesEmptyResultIsNotNull(t *testing.T) {
	t.Parallel()

	h := NewAIHandler(&fakeAnalyzer{available: false}, "llama3", discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/ai/suggest-aliases",
		strings.NewReader(`{"url":"https://example.com"}`))
	rec := httptest.NewRecorder()
	h.SuggestAliases(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"suggestions":[]`) {
		t.Errorf("body = %s, want empty array", rec.Body.String())
	}
}

func TestSuggestAliasesMissingURL(t *testing.T) {
	t.Parallel()

	h := NewAIHandler(&fakeAnalyzer{available: true}, "llama3", discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/ai/suggest-aliases",
		strings.NewReader(`{"title":"no url"}`))
	rec := httptest.NewRecorder()
	h.SuggestAliases(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCheckSafetyEndpoint(t *testing.T) {
	t.Parallel()

	h := NewAIHandler(&fakeAnalyzer{
		safety: &ai.SafetyResult{
			SafetyScore: 0.2,
			IsSafe:      false,
			Reasons:     []string{"phishing indicators"},
		},
		available: true,
	}, "llama3", discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/ai/check-safety",
		strings.NewReader(`{"url":"https://suspicious.example"}`))
	rec := httptest.NewRecorder()
	h.CheckSafety(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeJSON[dto.CheckSafetyResponse](t, rec)
	if resp.IsSafe {
		t.Error("isSafe = true, want false")
	}
	if resp.SafetyScore != 0.2 {
		t.Errorf("safetyScore = %v, want 0.2", resp.SafetyScore)
	}
	if len(resp.Reasons) != 1 {
		t.Errorf("reasons = %v", resp.Reasons)
	}
}

func TestAIHealthEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		available bool
		wantModel string
	}{
		{"available reports model", true, "llama3"},
		{"unavailable hides model", false, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewAIHandler(&fakeAnalyzer{available: tt.available}, "llama3", discardLogger())

			req := httptest.NewRequest(http.MethodGet, "/api/ai/health", nil)
			rec := httptest.NewRecorder()
			h.Health(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			resp := decodeJSON[dto.AIHealthResponse](t, rec)
			if resp.Available != tt.available {
				t.Errorf("available = %v, want %v", resp.Available, tt.available)
			}
			if resp.Model != tt.wantModel {
				t.Errorf("model = %q, want %q", resp.Model, tt.wantModel)
			}
		})
	}
}

package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hopline/hopline/internal/ai"
	"github.com/hopline/hopline/internal/handler/dto"
)

// Analyzer is the subset of the AI client used by the AI endpoints.
type Analyzer interface {
	SuggestAliases(ctx context.Context, rawURL, title string) []string
	CheckSafety(ctx context.Context, rawURL string) *ai.SafetyResult
	Available(ctx context.Context) bool
}

// AIHandler handles the AI utility endpoints.
type AIHandler struct {
	analyzer Analyzer
	model    string
	logger   *slog.Logger
}

// NewAIHandler creates a new AIHandler.
func NewAIHandler(analyzer Analyzer, model string, logger *slog.Logger) *AIHandler {
	return &AIHandler{
		analyzer: analyzer,
		model:    model,
		logger:   logger,
	}
}

// SuggestAliases handles POST /api/ai/suggest-aliases.
func (h *AIHandler) SuggestAliases(w http.ResponseWriter, r *http.Request) {
	var req dto.SuggestAliasesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "MISSING_URL", "url is required")
		return
	}

	suggestions := h.analyzer.SuggestAliases(r.Context(), req.URL, req.Title)
	if suggestions == nil {
		suggestions = []string{}
	}

	writeJSON(w, http.StatusOK, dto.SuggestAliasesResponse{Suggestions: suggestions})
}

// CheckSafety handles POST /api/ai/check-safety.
func (h *AIHandler) CheckSafety(w http.ResponseWriter, r *http.Request) {
	var req dto.CheckSafetyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "MISSING_URL", "url is required")
		return
	}

	verdict := h.analyzer.CheckSafety(r.Context(), req.URL)

	writeJSON(w, http.StatusOK, dto.CheckSafetyResponse{
		SafetyScore: verdict.SafetyScore,
		IsSafe:      verdict.IsSafe,
		Reasons:     verdict.Reasons,
	})
}

// Health handles GET /api/ai/health.
func (h *AIHandler) Health(w http.ResponseWriter, r *http.Request) {
	available := h.analyzer.Available(r.Context())

	resp := dto.AIHealthResponse{Available: available}
	if available {
		resp.Model = h.model
	}
	writeJSON(w, http.StatusOK, resp)
}

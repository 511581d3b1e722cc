// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"strings"
	"time"

	"github.com/hopline/hopline/internal/ai"
	"github.com/hopline/hopline/internal/model"
)

// CreateURLRequest represents the request body for creating a mapping.
// The enrichment flags default to true when omitted, which is why they
// are pointers.
type CreateURLRequest struct {
	OriginalURL      string     `json:"originalUrl"`
	CustomAlias      string     `json:"customAlias,omitempty"`
	Password         string     `json:"password,omitempty"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	FetchMetadata    *bool      `json:"fetchMetadata,omitempty"`
	EnableAIAnalysis *bool      `json:"enableAiAnalysis,omitempty"`
	GenerateQRCode   bool       `json:"generateQrCode,omitempty"`
}

// BulkCreateRequest represents the request body for bulk creation.
// The top-level flags override the per-item flags for the whole batch.
type BulkCreateRequest struct {
	URLs             []CreateURLRequest `json:"urls"`
	FetchMetadata    *bool              `json:"fetchMetadata,omitempty"`
	EnableAIAnalysis *bool              `json:"enableAiAnalysis,omitempty"`
}

// URLResponse represents a mapping in API responses.
type URLResponse struct {
	ID                int64      `json:"id"`
	ShortKey          string     `json:"shortKey"`
	Alias             *string    `json:"alias,omitempty"`
	ShortURL          string     `json:"shortUrl"`
	OriginalURL       string     `json:"originalUrl"`
	IsActive          bool       `json:"isActive"`
	PasswordRequired  bool       `json:"passwordRequired"`
	ExpiresAt         *time.Time `json:"expiresAt,omitempty"`
	ClickCount        int64      `json:"clickCount"`
	CreatedAt         time.Time  `json:"createdAt"`
	MetaTitle         *string    `json:"metaTitle,omitempty"`
	MetaDescription   *string    `json:"metaDescription,omitempty"`
	MetaImageURL      *string    `json:"metaImageUrl,omitempty"`
	FaviconURL        *string    `json:"faviconUrl,omitempty"`
	AISummary         *string    `json:"aiSummary,omitempty"`
	AICategory        *string    `json:"aiCategory,omitempty"`
	AITags            []string   `json:"aiTags,omitempty"`
	AISafetyScore     *float64   `json:"aiSafetyScore,omitempty"`
	AIAnalyzedAt      *time.Time `json:"aiAnalyzedAt,omitempty"`
	AIAnalysis        *AIAnalysisResponse `json:"aiAnalysis,omitempty"`
	QRCodeBase64      string     `json:"qrCodeBase64,omitempty"`
}

// AIAnalysisResponse carries the synchronous analysis returned at
// creation time.
type AIAnalysisResponse struct {
	Summary          string   `json:"summary"`
	Category         string   `json:"category"`
	Tags             []string `json:"tags"`
	SafetyScore      float64  `json:"safetyScore"`
	IsSafe           bool     `json:"isSafe"`
	SafetyReasons    []string `json:"safetyReasons,omitempty"`
	AliasSuggestions []string `json:"aliasSuggestions,omitempty"`
	FromCache        bool     `json:"fromCache"`
}

// BulkFailureResponse records one failed item of a bulk create.
type BulkFailureResponse struct {
	Index       int    `json:"index"`
	OriginalURL string `json:"originalUrl"`
	Error       string `json:"error"`
}

// BulkCreateResponse collects per-item outcomes of a bulk create.
type BulkCreateResponse struct {
	Created      []URLResponse         `json:"created"`
	Failed       []BulkFailureResponse `json:"failed"`
	SuccessCount int                   `json:"successCount"`
	FailureCount int                   `json:"failureCount"`
}

// URLListResponse represents the recent-mappings listing.
type URLListResponse struct {
	Data  []URLResponse `json:"data"`
	Count int           `json:"count"`
}

// StatsResponse represents the counters for one mapping.
type StatsResponse struct {
	ShortKey       string     `json:"shortKey"`
	ShortURL       string     `json:"shortUrl"`
	OriginalURL    string     `json:"originalUrl"`
	ClickCount     int64      `json:"clickCount"`
	RecordedClicks int64      `json:"recordedClicks"`
	IsActive       bool       `json:"isActive"`
	CreatedAt      time.Time  `json:"createdAt"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
}

// PreviewResponse carries the page decorations for a mapping without
// revealing the destination of gated links.
type PreviewResponse struct {
	ShortKey         string  `json:"shortKey"`
	ShortURL         string  `json:"shortUrl"`
	PasswordRequired bool    `json:"passwordRequired"`
	Title            *string `json:"title,omitempty"`
	Description      *string `json:"description,omitempty"`
	ImageURL         *string `json:"imageUrl,omitempty"`
	FaviconURL       *string `json:"faviconUrl,omitempty"`
}

// ProtectionResponse reports whether a mapping requires a password.
type ProtectionResponse struct {
	PasswordRequired bool `json:"passwordRequired"`
}

// UnlockRequest represents the JSON body for unlocking a gated mapping.
type UnlockRequest struct {
	Password string `json:"password"`
}

// SuggestAliasesRequest asks the model for alias candidates.
type SuggestAliasesRequest struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// SuggestAliasesResponse carries alias candidates.
type SuggestAliasesResponse struct {
	Suggestions []string `json:"suggestions"`
}

// CheckSafetyRequest asks the model for a safety verdict.
type CheckSafetyRequest struct {
	URL string `json:"url"`
}

// CheckSafetyResponse carries the safety verdict.
type CheckSafetyResponse struct {
	SafetyScore float64  `json:"safetyScore"`
	IsSafe      bool     `json:"isSafe"`
	Reasons     []string `json:"reasons,omitempty"`
}

// AIHealthResponse reports model availability.
type AIHealthResponse struct {
	Available bool   `json:"available"`
	Model     string `json:"model,omitempty"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToURLResponse converts a Mapping model to a URLResponse DTO.
func ToURLResponse(m *model.Mapping, baseURL string) *URLResponse {
	resp := &URLResponse{
		ID:               m.ID,
		ShortKey:         m.ShortKey,
		Alias:            m.Alias,
		ShortURL:         baseURL + "/" + m.EffectiveKey(),
		OriginalURL:      m.OriginalURL,
		IsActive:         m.IsActive,
		PasswordRequired: m.IsPasswordProtected(),
		ExpiresAt:        m.ExpiresAt,
		ClickCount:       m.ClickCount,
		CreatedAt:        m.CreatedAt,
		MetaTitle:        m.MetaTitle,
		MetaDescription:  m.MetaDescription,
		MetaImageURL:     m.MetaImageURL,
		FaviconURL:       m.FaviconURL,
		AISummary:        m.AISummary,
		AICategory:       m.AICategory,
		AISafetyScore:    m.AISafetyScore,
		AIAnalyzedAt:     m.AIAnalyzedAt,
	}
	if m.AITags != nil && *m.AITags != "" {
		resp.AITags = strings.Split(*m.AITags, ",")
	}
	return resp
}

// ToAIAnalysisResponse converts an analysis result to its DTO.
func ToAIAnalysisResponse(r *ai.Result) *AIAnalysisResponse {
	if r == nil {
		return nil
	}
	return &AIAnalysisResponse{
		Summary:          r.Summary,
		Category:         r.Category,
		Tags:             r.Tags,
		SafetyScore:      r.SafetyScore,
		IsSafe:           r.IsSafe,
		SafetyReasons:    r.SafetyReasons,
		AliasSuggestions: r.AliasSuggestions,
		FromCache:        r.FromCache,
	}
}

// ToPreviewResponse converts a Mapping to its gated-safe preview DTO.
func ToPreviewResponse(m *model.Mapping, baseURL string) *PreviewResponse {
	return &PreviewResponse{
		ShortKey:         m.ShortKey,
		ShortURL:         baseURL + "/" + m.EffectiveKey(),
		PasswordRequired: m.IsPasswordProtected(),
		Title:            m.MetaTitle,
		Description:      m.MetaDescription,
		ImageURL:         m.MetaImageURL,
		FaviconURL:       m.FaviconURL,
	}
}

package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hopline/hopline/internal/auth"
	"github.com/hopline/hopline/internal/handler/dto"
	"github.com/hopline/hopline/internal/middleware"
	"github.com/hopline/hopline/internal/qrcode"
	"github.com/hopline/hopline/internal/service"
)

// maxBulkItems caps the number of URLs accepted by the bulk endpoints.
const maxBulkItems = 100

// URLHandler handles HTTP requests for mapping operations.
type URLHandler struct {
	svc    *service.Shortener
	logger *slog.Logger
}

// NewURLHandler creates a new URLHandler.
func NewURLHandler(svc *service.Shortener, logger *slog.Logger) *URLHandler {
	return &URLHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/urls.
func (h *URLHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	out, err := h.svc.Create(r.Context(), h.toCreateInput(req, r))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("mapping_created",
		"mapping_id", out.Mapping.ID,
		"short_key", out.Mapping.ShortKey,
		"has_custom_alias", req.CustomAlias != "",
		"password_protected", out.Mapping.IsPasswordProtected(),
	)

	resp := dto.ToURLResponse(out.Mapping, h.svc.BaseURL())
	resp.AIAnalysis = dto.ToAIAnalysisResponse(out.AI)
	if req.GenerateQRCode {
		h.attachQRCode(resp)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// CreateBulk handles POST /api/urls/bulk.
func (h *URLHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	var req dto.BulkCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "EMPTY_BATCH", "No URLs supplied")
		return
	}
	if len(req.URLs) > maxBulkItems {
		writeError(w, http.StatusBadRequest, "BATCH_TOO_LARGE", "At most 100 URLs per batch")
		return
	}

	inputs := make([]service.CreateInput, len(req.URLs))
	for i, item := range req.URLs {
		inputs[i] = h.toCreateInput(item, r)
	}

	overrides := service.BulkOverrides{
		FetchMetadata:    req.FetchMetadata,
		EnableAIAnalysis: req.EnableAIAnalysis,
	}

	result := h.svc.CreateBulk(r.Context(), inputs, overrides)

	h.logger.Info("bulk_create_finished",
		"requested", len(req.URLs),
		"created", len(result.Successes),
		"failed", len(result.Failures),
	)

	writeJSON(w, http.StatusCreated, h.toBulkResponse(result))
}

// CreateBulkCSV handles POST /api/urls/bulk/csv (multipart upload).
// CSV rows skip metadata and AI enrichment by default.
func (h *URLHandler) CreateBulkCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(service.MaxCSVSize); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_MULTIPART", "Invalid multipart request")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "MISSING_FILE", "CSV file field is required")
		return
	}
	defer file.Close()

	urls, err := service.ParseCSVURLs(file)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCSVTooLarge):
			writeError(w, http.StatusBadRequest, "CSV_TOO_LARGE", "CSV file exceeds 1MB")
		case errors.Is(err, service.ErrCSVTooMany):
			writeError(w, http.StatusBadRequest, "CSV_TOO_MANY_ROWS", "CSV file exceeds 100 rows")
		case errors.Is(err, service.ErrCSVEmpty):
			writeError(w, http.StatusBadRequest, "CSV_EMPTY", "CSV file contains no URLs")
		default:
			writeError(w, http.StatusBadRequest, "INVALID_CSV", "Could not parse CSV file")
		}
		return
	}

	inputs := make([]service.CreateInput, len(urls))
	for i, u := range urls {
		inputs[i] = service.CreateInput{
			OriginalURL: u,
			ClientIP:    middleware.ClientIP(r),
			UserAgent:   r.UserAgent(),
		}
	}

	result := h.svc.CreateBulk(r.Context(), inputs, service.BulkOverrides{})

	if len(result.Successes) == 0 {
		writeError(w, http.StatusBadRequest, "NO_VALID_URLS", "No valid URLs in CSV file")
		return
	}

	h.logger.Info("csv_import_finished",
		"rows", len(urls),
		"created", len(result.Successes),
		"failed", len(result.Failures),
	)

	writeJSON(w, http.StatusCreated, h.toBulkResponse(result))
}

// List handles GET /api/urls.
func (h *URLHandler) List(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.svc.ListRecent(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	data := make([]dto.URLResponse, len(mappings))
	for i, m := range mappings {
		data[i] = *dto.ToURLResponse(m, h.svc.BaseURL())
	}

	writeJSON(w, http.StatusOK, dto.URLListResponse{
		Data:  data,
		Count: len(data),
	})
}

// Stats handles GET /api/urls/{key}/stats.
func (h *URLHandler) Stats(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	stats, err := h.svc.Stats(r.Context(), key)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	m := stats.Mapping
	writeJSON(w, http.StatusOK, dto.StatsResponse{
		ShortKey:       m.ShortKey,
		ShortURL:       h.svc.ShortURL(m.EffectiveKey()),
		OriginalURL:    m.OriginalURL,
		ClickCount:     m.ClickCount,
		RecordedClicks: stats.RecordedClicks,
		IsActive:       m.IsActive,
		CreatedAt:      m.CreatedAt,
		ExpiresAt:      m.ExpiresAt,
	})
}

// Analytics handles GET /api/urls/{key}/analytics.
func (h *URLHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	breakdown, err := h.svc.Analytics(r.Context(), key)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, breakdown)
}

// QRCode handles GET /api/urls/{key}/qrcode.
func (h *URLHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	m, err := h.svc.Preview(r.Context(), key)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	opts := qrcode.Options{
		FgColor: r.URL.Query().Get("fgColor"),
		BgColor: r.URL.Query().Get("bgColor"),
	}
	if raw := r.URL.Query().Get("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_SIZE", "Size must be an integer")
			return
		}
		opts.Size = size
	}

	png, err := qrcode.Encode(h.svc.ShortURL(m.EffectiveKey()), opts)
	if err != nil {
		switch {
		case errors.Is(err, qrcode.ErrInvalidSize):
			writeError(w, http.StatusBadRequest, "INVALID_SIZE", "Size must be between 100 and 1000")
		case errors.Is(err, qrcode.ErrInvalidColor):
			writeError(w, http.StatusBadRequest, "INVALID_COLOR", "Colors must be hex values like #1a2b3c")
		default:
			h.logger.Error("qr encode failed", "short_key", m.ShortKey, "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		}
		return
	}

	// QR images are immutable for a given key and safe to cache.
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// Preview handles GET /api/urls/{key}/preview. The destination URL is
// withheld so gated links do not leak their target.
func (h *URLHandler) Preview(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	m, err := h.svc.Preview(r.Context(), key)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToPreviewResponse(m, h.svc.BaseURL()))
}

// Protection handles GET /api/urls/{key}/protected.
func (h *URLHandler) Protection(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	required, err := h.svc.ProtectionStatus(r.Context(), key)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ProtectionResponse{PasswordRequired: required})
}

// toCreateInput converts a request item, applying the default-true
// enrichment flags and the creator audit fields.
func (h *URLHandler) toCreateInput(req dto.CreateURLRequest, r *http.Request) service.CreateInput {
	input := service.CreateInput{
		OriginalURL:      req.OriginalURL,
		CustomAlias:      req.CustomAlias,
		Password:         req.Password,
		ExpiresAt:        req.ExpiresAt,
		FetchMetadata:    true,
		EnableAIAnalysis: true,
		ClientIP:         middleware.ClientIP(r),
		UserAgent:        r.UserAgent(),
	}
	if req.FetchMetadata != nil {
		input.FetchMetadata = *req.FetchMetadata
	}
	if req.EnableAIAnalysis != nil {
		input.EnableAIAnalysis = *req.EnableAIAnalysis
	}
	return input
}

func (h *URLHandler) toBulkResponse(result *service.BulkResult) dto.BulkCreateResponse {
	resp := dto.BulkCreateResponse{
		Created:      make([]dto.URLResponse, len(result.Successes)),
		Failed:       make([]dto.BulkFailureResponse, len(result.Failures)),
		SuccessCount: len(result.Successes),
		FailureCount: len(result.Failures),
	}
	for i, out := range result.Successes {
		item := dto.ToURLResponse(out.Mapping, h.svc.BaseURL())
		item.AIAnalysis = dto.ToAIAnalysisResponse(out.AI)
		resp.Created[i] = *item
	}
	for i, f := range result.Failures {
		resp.Failed[i] = dto.BulkFailureResponse{
			Index:       f.Index,
			OriginalURL: f.OriginalURL,
			Error:       f.Error,
		}
	}
	return resp
}

// attachQRCode renders the short URL as a QR code into the response.
// Rendering failures degrade silently.
func (h *URLHandler) attachQRCode(resp *dto.URLResponse) {
	png, err := qrcode.Encode(resp.ShortURL, qrcode.Options{})
	if err != nil {
		h.logger.Warn("qr encode failed", "short_key", resp.ShortKey, "error", err)
		return
	}
	resp.QRCodeBase64 = base64.StdEncoding.EncodeToString(png)
}

// handleServiceError maps service errors to HTTP responses.
func (h *URLHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, "INVALID_URL", "Invalid original URL")
	case errors.Is(err, service.ErrInvalidAlias):
		writeError(w, http.StatusBadRequest, "INVALID_ALIAS", "Alias must be 3-50 chars of letters, digits, underscore or hyphen")
	case errors.Is(err, service.ErrAliasTaken):
		writeError(w, http.StatusBadRequest, "ALIAS_TAKEN", "Alias is already in use")
	case errors.Is(err, auth.ErrPasswordLength):
		writeError(w, http.StatusBadRequest, "INVALID_PASSWORD", "Password must be 4-128 characters")
	case errors.Is(err, service.ErrMappingNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Short URL not found")
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

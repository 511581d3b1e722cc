package handler

import (
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hopline/hopline/internal/handler/dto"
	"github.com/hopline/hopline/internal/middleware"
	"github.com/hopline/hopline/internal/model"
	"github.com/hopline/hopline/internal/service"
)

// ClickTracker receives the audit snapshot of a served redirect.
// The snapshot is captured synchronously because the request is not
// safe to read from background work.
type ClickTracker interface {
	Track(key string, snapshot model.ClickSnapshot)
}

// RedirectHandler handles redirect and unlock requests.
type RedirectHandler struct {
	resolver *service.Resolver
	tracker  ClickTracker
	logger   *slog.Logger
}

// NewRedirectHandler creates a new RedirectHandler. tracker may be nil,
// in which case clicks are not recorded.
func NewRedirectHandler(resolver *service.Resolver, tracker ClickTracker, logger *slog.Logger) *RedirectHandler {
	return &RedirectHandler{
		resolver: resolver,
		tracker:  tracker,
		logger:   logger,
	}
}

// passwordFormTemplate is served to browsers hitting a gated link.
// Styling is inline; the CSP allows inline styles for this page.
var passwordFormTemplate = template.Must(template.New("password_form").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Password required</title>
<style>
body { font-family: sans-serif; max-width: 24em; margin: 4em auto; }
input, button { font-size: 1em; padding: 0.4em; }
.error { color: #b00020; }
</style>
</head>
<body>
<h1>This link is password protected</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="POST" action="/{{.Key}}/unlock">
<input type="password" name="password" placeholder="Password" autofocus>
<button type="submit">Open link</button>
</form>
</body>
</html>
`))

// Redirect handles GET /{key} with an optional ?password query param.
func (h *RedirectHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	password := r.URL.Query().Get("password")

	h.serve(w, r, key, password)
}

// Unlock handles POST /{key}/unlock with the password in a JSON body or
// a submitted HTML form.
func (h *RedirectHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	password, ok := readUnlockPassword(r)
	if !ok {
		setRedirectHeaders(w)
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	h.serve(w, r, key, password)
}

// serve runs the resolver and maps its outcome onto the HTTP surface.
func (h *RedirectHandler) serve(w http.ResponseWriter, r *http.Request, key, password string) {
	setRedirectHeaders(w)

	start := time.Now()
	res, err := h.resolver.Resolve(r.Context(), key, password)
	duration := time.Since(start)

	if err != nil {
		h.handleResolveError(w, r, key, err, duration)
		return
	}

	// Snapshot before handing off; the request must not be touched by
	// the tracker's workers.
	if h.tracker != nil {
		h.tracker.Track(key, model.ClickSnapshot{
			ClientIP:  middleware.ClientIP(r),
			UserAgent: r.UserAgent(),
			Referer:   r.Referer(),
			ClickedAt: time.Now().UTC(),
		})
	}

	h.logger.Info("redirect_success",
		"key", key,
		"cache_hit", res.CacheHit,
		"duration_ms", float64(duration.Microseconds())/1000,
	)

	http.Redirect(w, r, res.OriginalURL, http.StatusFound)
}

func (h *RedirectHandler) handleResolveError(w http.ResponseWriter, r *http.Request, key string, err error, duration time.Duration) {
	durationMs := float64(duration.Microseconds()) / 1000

	switch {
	case errors.Is(err, service.ErrMappingNotFound):
		h.logger.Info("redirect_not_found", "key", key, "duration_ms", durationMs)
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Short URL not found")

	case errors.Is(err, service.ErrMappingInactive):
		h.logger.Info("redirect_inactive", "key", key, "duration_ms", durationMs)
		writeError(w, http.StatusForbidden, "LINK_INACTIVE", "Short URL has been deactivated")

	case errors.Is(err, service.ErrMappingExpired):
		h.logger.Info("redirect_expired", "key", key, "duration_ms", durationMs)
		writeError(w, http.StatusGone, "LINK_EXPIRED", "Short URL has expired")

	case errors.Is(err, service.ErrPasswordRequired):
		h.logger.Info("redirect_gated", "key", key, "duration_ms", durationMs)
		h.writeUnauthorized(w, r, key, "")

	case errors.Is(err, service.ErrWrongPassword):
		h.logger.Info("redirect_bad_password", "key", key, "duration_ms", durationMs)
		h.writeUnauthorized(w, r, key, "Wrong password, try again.")

	default:
		h.logger.Error("redirect_error", "key", key, "error", err, "duration_ms", durationMs)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// writeUnauthorized answers a gated or failed-password resolve. Browsers
// get the HTML password form, API clients get JSON.
func (h *RedirectHandler) writeUnauthorized(w http.ResponseWriter, r *http.Request, key, formError string) {
	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		err := passwordFormTemplate.Execute(w, struct {
			Key   string
			Error string
		}{Key: key, Error: formError})
		if err != nil {
			h.logger.Error("password form render failed", "key", key, "error", err)
		}
		return
	}

	code := "PASSWORD_REQUIRED"
	message := "This short URL requires a password"
	if formError != "" {
		code = "INVALID_PASSWORD"
		message = "Wrong password"
	}
	writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: message, Code: code})
}

// setRedirectHeaders applies the cache policy of the redirect surface.
// Redirect responses must never be cached or an expired or deactivated
// link would keep working from intermediary caches.
func setRedirectHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
}

// readUnlockPassword extracts the password from a JSON body or form data.
func readUnlockPassword(r *http.Request) (string, bool) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var req dto.UnlockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", false
		}
		return req.Password, true
	}

	if err := r.ParseForm(); err != nil {
		return "", false
	}
	return r.PostFormValue("password"), true
}

// wantsHTML reports whether the client is a browser expecting HTML.
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// Package ai enriches destination URLs with summaries, categories and
// safety scoring produced by a local Ollama instance.
package ai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hopline/hopline/internal/model"
)

const (
	generateTimeout     = 45 * time.Second
	healthProbeTimeout  = 5 * time.Second
	healthProbeInterval = 30 * time.Second
	generateRetries     = 2
	retryBackoff        = time.Second

	// DefaultCacheTTL is how long an analysis stays valid.
	DefaultCacheTTL = 7 * 24 * time.Hour
)

// Result is one completed URL analysis.
type Result struct {
	Summary          string   `json:"summary"`
	Category         string   `json:"category"`
	Tags             []string `json:"tags"`
	SafetyScore      float64  `json:"safety_score"`
	IsSafe           bool     `json:"is_safe"`
	SafetyReasons    []string `json:"safety_reasons"`
	AliasSuggestions []string `json:"alias_suggestions,omitempty"`
	FromCache        bool     `json:"from_cache"`
}

// SafetyResult is the outcome of a standalone safety check.
type SafetyResult struct {
	SafetyScore float64  `json:"safety_score"`
	IsSafe      bool     `json:"is_safe"`
	Reasons     []string `json:"reasons"`
}

// AnnotationStore is the persistence needed by the analysis cache.
type AnnotationStore interface {
	GetAnnotation(ctx context.Context, urlHash string) (*model.Annotation, error)
	UpsertAnnotation(ctx context.Context, a *model.Annotation) error
}

// Client talks to an Ollama-compatible generate endpoint. Every public
// method degrades to a neutral default instead of failing: enrichment
// must never block or break link creation.
type Client struct {
	baseURL  string
	model    string
	http     *http.Client
	store    AnnotationStore
	logger   *slog.Logger
	cacheTTL time.Duration

	mu          sync.Mutex
	available   bool
	lastProbeAt time.Time
}

// NewClient creates an enrichment client. store may be nil to disable
// the persistent analysis cache.
func NewClient(baseURL, modelName string, store AnnotationStore, cacheTTL time.Duration, logger *slog.Logger) *Client {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     modelName,
		http:      &http.Client{Timeout: generateTimeout},
		store:     store,
		logger:    logger,
		cacheTTL:  cacheTTL,
		available: true,
	}
}

// generateRequest is the Ollama /api/generate payload.
type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Analyze produces the full analysis for a URL, preferring the cached
// annotation when fresh. The result is always usable.
func (c *Client) Analyze(ctx context.Context, rawURL, pageTitle, pageDescription string) *Result {
	urlHash := HashURL(rawURL)

	if c.store != nil {
		if cached, err := c.store.GetAnnotation(ctx, urlHash); err == nil {
			c.logger.Debug("analysis cache hit", "url", rawURL)
			return resultFromAnnotation(cached)
		}
	}

	if !c.Available(ctx) {
		c.logger.Warn("model unavailable, returning default analysis", "url", rawURL)
		return defaultResult()
	}

	c.logger.Info("analyzing url", "url", rawURL)

	raw, err := c.generate(ctx, analysisPrompt(rawURL, pageTitle, pageDescription))
	if err != nil {
		c.logger.Error("analysis call failed", "url", rawURL, "error", err)
		c.markUnavailable()
		return defaultResult()
	}

	result := parseAnalysis(raw)
	sanitizeResult(result)

	if c.store != nil {
		c.saveToCache(ctx, urlHash, rawURL, result)
	}

	return result
}

// SuggestAliases asks the model for short alias candidates. An empty
// slice means no usable suggestion.
func (c *Client) SuggestAliases(ctx context.Context, rawURL, title string) []string {
	if !c.Available(ctx) {
		return nil
	}

	raw, err := c.generate(ctx, aliasPrompt(rawURL, title))
	if err != nil {
		c.logger.Error("alias suggestion call failed", "url", rawURL, "error", err)
		return nil
	}

	return parseAliasLines(raw)
}

// CheckSafety runs a standalone safety assessment of a URL.
func (c *Client) CheckSafety(ctx context.Context, rawURL string) *SafetyResult {
	if !c.Available(ctx) {
		return defaultSafetyResult()
	}

	raw, err := c.generate(ctx, safetyPrompt(rawURL))
	if err != nil {
		c.logger.Error("safety check call failed", "url", rawURL, "error", err)
		return defaultSafetyResult()
	}

	return parseSafety(raw)
}

// Available probes the model's tag listing, remembering the outcome for
// a short interval so the hot path is not gated on probe latency.
func (c *Client) Available(ctx context.Context) bool {
	c.mu.Lock()
	if time.Since(c.lastProbeAt) < healthProbeInterval {
		available := c.available
		c.mu.Unlock()
		return available
	}
	c.lastProbeAt = time.Now()
	c.mu.Unlock()

	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		c.setAvailable(false)
		return false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("model health probe failed", "error", err)
		c.setAvailable(false)
		return false
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	healthy := resp.StatusCode == http.StatusOK && bytes.Contains(body, []byte("models"))
	c.setAvailable(healthy)
	return healthy
}

// generate calls /api/generate, retrying timeouts with a fixed backoff.
func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: 0,
			TopP:        0.9,
			NumPredict:  1000,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode generate request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= generateRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryBackoff):
			}
		}

		raw, err := c.generateOnce(ctx, payload)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		// Only timeouts are worth retrying.
		if !isTimeout(err) {
			break
		}
		c.logger.Warn("generate timed out, retrying", "attempt", attempt+1)
	}

	return "", lastErr
}

func (c *Client) generateOnce(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generate returned status %d", resp.StatusCode)
	}

	var body generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode generate response: %w", err)
	}
	if strings.TrimSpace(body.Response) == "" {
		return "", errors.New("empty generate response")
	}

	return body.Response, nil
}

func (c *Client) saveToCache(ctx context.Context, urlHash, rawURL string, result *Result) {
	now := time.Now().UTC()
	err := c.store.UpsertAnnotation(ctx, &model.Annotation{
		URLHash:     urlHash,
		OriginalURL: rawURL,
		Summary:     result.Summary,
		Category:    result.Category,
		Tags:        result.Tags,
		SafetyScore: result.SafetyScore,
		IsSafe:      result.IsSafe,
		Reasons:     result.SafetyReasons,
		AnalyzedAt:  now,
		ExpiresAt:   now.Add(c.cacheTTL),
	})
	if err != nil {
		c.logger.Warn("failed to cache analysis", "url", rawURL, "error", err)
	}
}

func (c *Client) markUnavailable() {
	c.setAvailable(false)
}

func (c *Client) setAvailable(v bool) {
	c.mu.Lock()
	c.available = v
	c.mu.Unlock()
}

// HashURL returns the hex SHA-256 content address of a URL.
func HashURL(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// resultFromAnnotation converts a cached annotation into a Result.
func resultFromAnnotation(a *model.Annotation) *Result {
	return &Result{
		Summary:       a.Summary,
		Category:      a.Category,
		Tags:          a.Tags,
		SafetyScore:   a.SafetyScore,
		IsSafe:        a.IsSafe,
		SafetyReasons: a.Reasons,
		FromCache:     true,
	}
}

const unavailableSummary = "AI analysis is currently unavailable. Please try again later."

// Degraded reports whether this result is the placeholder produced when
// the model could not be reached. Degraded results must not be
// persisted as annotations.
func (r *Result) Degraded() bool {
	return !r.FromCache && r.Summary == unavailableSummary
}

// defaultResult is returned whenever the model cannot be used.
func defaultResult() *Result {
	return &Result{
		Summary:     unavailableSummary,
		Category:    "Other",
		SafetyScore: 0.8,
		IsSafe:      true,
	}
}

// defaultSafetyResult is the neutral outcome of a failed safety check.
func defaultSafetyResult() *SafetyResult {
	return &SafetyResult{
		SafetyScore: 0.5,
		IsSafe:      true,
		Reasons:     []string{"AI safety check unavailable"},
	}
}

// isTimeout reports whether err is a deadline-style failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

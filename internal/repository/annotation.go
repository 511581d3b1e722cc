package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hopline/hopline/internal/model"
)

// ErrAnnotationNotFound indicates there is no cached analysis for a URL.
var ErrAnnotationNotFound = errors.New("annotation not found")

// GetAnnotation retrieves the cached analysis for a URL hash.
// Expired entries are treated as absent and deleted lazily.
func (r *Repository) GetAnnotation(ctx context.Context, urlHash string) (*model.Annotation, error) {
	query := `
		SELECT id, url_hash, original_url, summary, category, tags,
		       safety_score, is_safe, safety_reasons, analyzed_at, expires_at
		FROM annotations
		WHERE url_hash = $1
	`

	var a model.Annotation
	var tags, reasons string
	err := r.pool.QueryRow(ctx, query, urlHash).Scan(
		&a.ID,
		&a.URLHash,
		&a.OriginalURL,
		&a.Summary,
		&a.Category,
		&tags,
		&a.SafetyScore,
		&a.IsSafe,
		&reasons,
		&a.AnalyzedAt,
		&a.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAnnotationNotFound
		}
		return nil, fmt.Errorf("failed to get annotation: %w", err)
	}

	if a.Expired(time.Now()) {
		r.pool.Exec(ctx, `DELETE FROM annotations WHERE url_hash = $1`, urlHash)
		return nil, ErrAnnotationNotFound
	}

	a.Tags = splitList(tags)
	a.Reasons = splitList(reasons)
	return &a, nil
}

// UpsertAnnotation stores the analysis for a URL, replacing any previous
// entry for the same hash and refreshing the expiry window.
func (r *Repository) UpsertAnnotation(ctx context.Context, a *model.Annotation) error {
	query := `
		INSERT INTO annotations (
			url_hash, original_url, summary, category, tags,
			safety_score, is_safe, safety_reasons, analyzed_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (url_hash) DO UPDATE SET
			summary = EXCLUDED.summary,
			category = EXCLUDED.category,
			tags = EXCLUDED.tags,
			safety_score = EXCLUDED.safety_score,
			is_safe = EXCLUDED.is_safe,
			safety_reasons = EXCLUDED.safety_reasons,
			analyzed_at = EXCLUDED.analyzed_at,
			expires_at = EXCLUDED.expires_at
	`

	_, err := r.pool.Exec(ctx, query,
		a.URLHash,
		a.OriginalURL,
		a.Summary,
		a.Category,
		joinList(a.Tags),
		a.SafetyScore,
		a.IsSafe,
		joinList(a.Reasons),
		a.AnalyzedAt,
		a.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert annotation: %w", err)
	}

	return nil
}

// DeleteExpiredAnnotations removes stale cached analyses and returns the
// number of rows removed.
func (r *Repository) DeleteExpiredAnnotations(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM annotations WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired annotations: %w", err)
	}
	return result.RowsAffected(), nil
}

// splitList parses a comma-joined column into a slice.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// joinList renders a slice as a comma-joined column value.
func joinList(items []string) string {
	return strings.Join(items, ",")
}

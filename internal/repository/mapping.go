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

// Common errors for mapping repository operations.
var (
	ErrMappingNotFound = errors.New("mapping not found")
	ErrAliasExists     = errors.New("alias already exists")
	ErrKeyExists       = errors.New("short key already exists")
)

const mappingColumns = `
	id, short_key, alias, original_url, created_at, expires_at, is_active,
	click_count, password_hash, created_by_ip, creator_user_agent,
	meta_title, meta_description, meta_image_url, favicon_url, meta_fetched_at,
	ai_summary, ai_category, ai_tags, ai_safety_score, ai_analyzed_at`

// CreateMapping inserts a new mapping and populates its ID and created_at.
func (r *Repository) CreateMapping(ctx context.Context, m *model.Mapping) error {
	query := `
		INSERT INTO url_mappings (
			short_key, alias, original_url, expires_at, is_active,
			password_hash, created_by_ip, creator_user_agent
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		m.ShortKey,
		m.Alias,
		m.OriginalURL,
		m.ExpiresAt,
		m.IsActive,
		m.PasswordHash,
		m.CreatedByIP,
		m.CreatorUserAgent,
	).Scan(&m.ID, &m.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(err.Error(), "alias") {
				return ErrAliasExists
			}
			return ErrKeyExists
		}
		return fmt.Errorf("failed to create mapping: %w", err)
	}

	return nil
}

// GetMappingByKey retrieves a mapping by its effective key, matching the
// system short key first and the custom alias second.
// This is the hot path for redirects.
func (r *Repository) GetMappingByKey(ctx context.Context, key string) (*model.Mapping, error) {
	query := `
		SELECT ` + mappingColumns + `
		FROM url_mappings
		WHERE short_key = $1 OR alias = $1
		LIMIT 1
	`

	m, err := scanMapping(r.pool.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMappingNotFound
		}
		return nil, fmt.Errorf("failed to get mapping by key: %w", err)
	}

	return m, nil
}

// GetMappingByID retrieves a mapping by its database ID.
func (r *Repository) GetMappingByID(ctx context.Context, id int64) (*model.Mapping, error) {
	query := `
		SELECT ` + mappingColumns + `
		FROM url_mappings
		WHERE id = $1
	`

	m, err := scanMapping(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMappingNotFound
		}
		return nil, fmt.Errorf("failed to get mapping by id: %w", err)
	}

	return m, nil
}

// KeyExists reports whether a candidate key collides with an existing
// short key or alias. Minting probes both namespaces.
func (r *Repository) KeyExists(ctx context.Context, key string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM url_mappings WHERE short_key = $1 OR alias = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, key).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check key existence: %w", err)
	}

	return exists, nil
}

// IncrementClickCount atomically increments the click counter by short key.
func (r *Repository) IncrementClickCount(ctx context.Context, shortKey string) error {
	query := `
		UPDATE url_mappings
		SET click_count = click_count + 1
		WHERE short_key = $1
	`

	if _, err := r.pool.Exec(ctx, query, shortKey); err != nil {
		return fmt.Errorf("failed to increment click count: %w", err)
	}

	return nil
}

// MarkExpired deactivates every active mapping whose expiry has passed
// and returns how many rows changed.
func (r *Repository) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE url_mappings
		SET is_active = FALSE
		WHERE is_active = TRUE
		  AND expires_at IS NOT NULL
		  AND expires_at <= $1
	`

	result, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark expired mappings: %w", err)
	}

	return result.RowsAffected(), nil
}

// ListRecentMappings returns the most recently created active mappings.
func (r *Repository) ListRecentMappings(ctx context.Context, limit int) ([]*model.Mapping, error) {
	query := `
		SELECT ` + mappingColumns + `
		FROM url_mappings
		WHERE is_active = TRUE
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*model.Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		mappings = append(mappings, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mappings: %w", err)
	}

	return mappings, nil
}

// UpdatePageMetadata stores fetched page metadata on a mapping.
func (r *Repository) UpdatePageMetadata(ctx context.Context, m *model.Mapping) error {
	query := `
		UPDATE url_mappings
		SET meta_title = $2, meta_description = $3, meta_image_url = $4,
		    favicon_url = $5, meta_fetched_at = $6
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		m.ID,
		m.MetaTitle,
		m.MetaDescription,
		m.MetaImageURL,
		m.FaviconURL,
		m.MetaFetchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update page metadata: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrMappingNotFound
	}

	return nil
}

// UpdateAIAnnotation stores AI enrichment results on a mapping.
func (r *Repository) UpdateAIAnnotation(ctx context.Context, m *model.Mapping) error {
	query := `
		UPDATE url_mappings
		SET ai_summary = $2, ai_category = $3, ai_tags = $4,
		    ai_safety_score = $5, ai_analyzed_at = $6
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		m.ID,
		m.AISummary,
		m.AICategory,
		m.AITags,
		m.AISafetyScore,
		m.AIAnalyzedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update ai annotation: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrMappingNotFound
	}

	return nil
}

// scanMapping scans a mapping row. pgx.Row is satisfied by both QueryRow
// results and pgx.Rows.
func scanMapping(row pgx.Row) (*model.Mapping, error) {
	var m model.Mapping
	err := row.Scan(
		&m.ID,
		&m.ShortKey,
		&m.Alias,
		&m.OriginalURL,
		&m.CreatedAt,
		&m.ExpiresAt,
		&m.IsActive,
		&m.ClickCount,
		&m.PasswordHash,
		&m.CreatedByIP,
		&m.CreatorUserAgent,
		&m.MetaTitle,
		&m.MetaDescription,
		&m.MetaImageURL,
		&m.FaviconURL,
		&m.MetaFetchedAt,
		&m.AISummary,
		&m.AICategory,
		&m.AITags,
		&m.AISafetyScore,
		&m.AIAnalyzedAt,
	)
	return &m, err
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	// PostgreSQL error code 23505 is unique_violation
	return err != nil && (strings.Contains(err.Error(), "23505") || strings.Contains(err.Error(), "unique"))
}

// Package model defines domain entities for the application.
package model

import "time"

// ResolveState is the terminal state of a redirect resolution.
type ResolveState int

const (
	ResolveMissing ResolveState = iota
	ResolveInactive
	ResolveExpired
	ResolveGated
	ResolveOpen
)

// String returns the state name for logging.
func (s ResolveState) String() string {
	switch s {
	case ResolveMissing:
		return "missing"
	case ResolveInactive:
		return "inactive"
	case ResolveExpired:
		return "expired"
	case ResolveGated:
		return "gated"
	case ResolveOpen:
		return "open"
	}
	return "unknown"
}

// Mapping represents a shortened URL entity.
type Mapping struct {
	ID          int64      `json:"id"`
	ShortKey    string     `json:"short_key"`
	Alias       *string    `json:"alias,omitempty"`
	OriginalURL string     `json:"original_url"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	IsActive    bool       `json:"is_active"`
	ClickCount  int64      `json:"click_count"`

	// Access control
	PasswordHash *string `json:"-"`

	// Creator audit fields
	CreatedByIP      string `json:"-"`
	CreatorUserAgent string `json:"-"`

	// Page metadata decorations
	MetaTitle       *string    `json:"meta_title,omitempty"`
	MetaDescription *string    `json:"meta_description,omitempty"`
	MetaImageURL    *string    `json:"meta_image_url,omitempty"`
	FaviconURL      *string    `json:"favicon_url,omitempty"`
	MetaFetchedAt   *time.Time `json:"meta_fetched_at,omitempty"`

	// AI enrichment decorations
	AISummary     *string    `json:"ai_summary,omitempty"`
	AICategory    *string    `json:"ai_category,omitempty"`
	AITags        *string    `json:"ai_tags,omitempty"`
	AISafetyScore *float64   `json:"ai_safety_score,omitempty"`
	AIAnalyzedAt  *time.Time `json:"ai_analyzed_at,omitempty"`
}

// EffectiveKey returns the alias when present, otherwise the short key.
func (m *Mapping) EffectiveKey() string {
	if m.Alias != nil && *m.Alias != "" {
		return *m.Alias
	}
	return m.ShortKey
}

// IsExpired reports whether the mapping's expiry time has passed.
// A mapping whose expires_at equals now is already expired.
func (m *Mapping) IsExpired(now time.Time) bool {
	return m.ExpiresAt != nil && !now.Before(*m.ExpiresAt)
}

// IsPasswordProtected reports whether resolution requires a password.
func (m *Mapping) IsPasswordProtected() bool {
	return m.PasswordHash != nil && *m.PasswordHash != ""
}

// Resolve computes the resolution state at the given instant.
// Gating takes precedence over the active and expiry checks so that a
// protected mapping never leaks its lifecycle state to unauthenticated
// callers.
func (m *Mapping) Resolve(now time.Time, unlocked bool) ResolveState {
	if m.IsPasswordProtected() && !unlocked {
		return ResolveGated
	}
	if !m.IsActive {
		return ResolveInactive
	}
	if m.IsExpired(now) {
		return ResolveExpired
	}
	return ResolveOpen
}

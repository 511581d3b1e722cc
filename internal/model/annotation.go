// Package model defines domain entities for the application.
package model

import "time"

// Categories is the closed taxonomy for AI-assigned URL categories.
var Categories = []string{
	"Technology",
	"News",
	"Entertainment",
	"Education",
	"Business",
	"Social",
	"Shopping",
	"Health",
	"Travel",
	"Finance",
	"Sports",
	"Other",
}

// Annotation is the AI-produced analysis of a destination URL, cached
// content-addressed by the SHA-256 of the URL.
type Annotation struct {
	ID          int64     `json:"-"`
	URLHash     string    `json:"-"` // hex SHA-256 of the original URL
	OriginalURL string    `json:"original_url"`
	Summary     string    `json:"summary"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	SafetyScore float64   `json:"safety_score"`
	IsSafe      bool      `json:"is_safe"`
	Reasons     []string  `json:"safety_reasons,omitempty"`
	AnalyzedAt  time.Time `json:"analyzed_at"`
	ExpiresAt   time.Time `json:"-"`
	FromCache   bool      `json:"from_cache"`
}

// Expired reports whether the cached annotation is stale.
func (a *Annotation) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

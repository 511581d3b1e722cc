// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/hopline/hopline/internal/ai"
	"github.com/hopline/hopline/internal/metadata"
	"github.com/hopline/hopline/internal/model"
)

// Service errors surfaced to the HTTP layer.
var (
	ErrInvalidURL       = errors.New("invalid original URL")
	ErrInvalidAlias     = errors.New("invalid alias format")
	ErrAliasTaken       = errors.New("alias already exists")
	ErrMappingNotFound  = errors.New("mapping not found")
	ErrMappingInactive  = errors.New("mapping is inactive")
	ErrMappingExpired   = errors.New("mapping is expired")
	ErrPasswordRequired = errors.New("password required")
	ErrWrongPassword    = errors.New("wrong password")
)

// MappingStore is the persistence the services need for mappings.
type MappingStore interface {
	CreateMapping(ctx context.Context, m *model.Mapping) error
	GetMappingByKey(ctx context.Context, key string) (*model.Mapping, error)
	GetMappingByID(ctx context.Context, id int64) (*model.Mapping, error)
	KeyExists(ctx context.Context, key string) (bool, error)
	ListRecentMappings(ctx context.Context, limit int) ([]*model.Mapping, error)
	UpdatePageMetadata(ctx context.Context, m *model.Mapping) error
	UpdateAIAnnotation(ctx context.Context, m *model.Mapping) error
}

// ClickStore aggregates persisted click events.
type ClickStore interface {
	CountClickEvents(ctx context.Context, mappingID int64) (int64, error)
	ClicksByCountry(ctx context.Context, mappingID int64) ([]model.BucketCount, error)
	ClicksByDevice(ctx context.Context, mappingID int64) ([]model.BucketCount, error)
	ClicksByBrowser(ctx context.Context, mappingID int64) ([]model.BucketCount, error)
	ClicksByOS(ctx context.Context, mappingID int64) ([]model.BucketCount, error)
	ClicksByReferer(ctx context.Context, mappingID int64) ([]model.BucketCount, error)
	ClicksByDay(ctx context.Context, mappingID int64) ([]model.DailyCount, error)
}

// HotCache is the short-key to destination cache contract.
type HotCache interface {
	GetURL(ctx context.Context, shortKey string) (string, error)
	SetURL(ctx context.Context, shortKey, destination string, expiresAt *time.Time) error
	DeleteURL(ctx context.Context, shortKey string) error
}

// PageFetcher extracts metadata from a destination page, best effort.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) *metadata.PageMeta
}

// Analyzer produces AI annotations for a destination URL.
type Analyzer interface {
	Analyze(ctx context.Context, rawURL, pageTitle, pageDescription string) *ai.Result
	SuggestAliases(ctx context.Context, rawURL, title string) []string
	CheckSafety(ctx context.Context, rawURL string) *ai.SafetyResult
	Available(ctx context.Context) bool
}

// BackgroundDispatcher defers enrichment work to a bounded worker pool
// shared with click tracking, so a saturated backlog stays bounded and
// drains on shutdown. Submit reports whether the job was accepted.
type BackgroundDispatcher interface {
	Submit(kind, key string, fn func()) bool
}

// Package model defines domain entities for the application.
package model

import "time"

// DeviceType classifies the client device for a click.
type DeviceType string

const (
	DeviceDesktop DeviceType = "Desktop"
	DeviceMobile  DeviceType = "Mobile"
	DeviceTablet  DeviceType = "Tablet"
	DeviceBot     DeviceType = "Bot"
	DeviceUnknown DeviceType = "Unknown"
)

// ClickSnapshot holds the request attributes captured synchronously
// before the redirect response is written. Everything else about a click
// is derived asynchronously.
type ClickSnapshot struct {
	ClientIP  string
	UserAgent string
	Referer   string
	ClickedAt time.Time
}

// ClickEvent represents a single enriched redirect event.
type ClickEvent struct {
	ID      int64  `json:"id"`
	EventID string `json:"event_id"` // ULID, at-least-once dedup key

	MappingID int64 `json:"mapping_id"`

	ClickedAt time.Time `json:"clicked_at"`
	ClientIP  string    `json:"client_ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Referer   string    `json:"referer,omitempty"`

	// User agent classification
	BrowserName    string     `json:"browser_name,omitempty"`
	BrowserVersion string     `json:"browser_version,omitempty"`
	OSName         string     `json:"os_name,omitempty"`
	OSVersion      string     `json:"os_version,omitempty"`
	DeviceType     DeviceType `json:"device_type"`

	// Geolocation (best effort)
	CountryCode string `json:"country_code,omitempty"` // ISO 3166-1 alpha-2
	CountryName string `json:"country_name,omitempty"`
	City        string `json:"city,omitempty"`
	Region      string `json:"region,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
}

// BucketCount is a single row of a grouped analytics breakdown.
type BucketCount struct {
	Label  string `json:"label"`
	Clicks int64  `json:"clicks"`
}

// DailyCount represents clicks on a single UTC day.
type DailyCount struct {
	Date   string `json:"date"` // ISO date
	Clicks int64  `json:"clicks"`
}

// AnalyticsBreakdown is the aggregated analytics response for a mapping.
type AnalyticsBreakdown struct {
	ShortKey    string        `json:"short_key"`
	TotalClicks int64         `json:"total_clicks"`
	Countries   []BucketCount `json:"countries"`
	Devices     []BucketCount `json:"devices"`
	Browsers    []BucketCount `json:"browsers"`
	OSes        []BucketCount `json:"operating_systems"`
	Referers    []BucketCount `json:"referers"`
	Daily       []DailyCount  `json:"daily"`
	GeneratedAt time.Time     `json:"generated_at"`
}

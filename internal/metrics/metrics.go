// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Redirect metrics
	IncRedirectCacheHit()
	IncRedirectCacheMiss()
	ObserveRedirectDuration(duration time.Duration)

	// Shortening metrics
	IncMappingCreated()

	// Click tracking pipeline metrics
	IncClickTracked(status string) // status: "success", "failed", "dropped", "skipped"
	ObserveClickPipelineDuration(duration time.Duration)
	SetTrackerQueueDepth(depth int64)

	// AI enrichment metrics
	IncAIRequest(outcome string) // outcome: "success", "failed", "cache_hit", "unavailable"
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}

package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncRedirectCacheHit is a no-op.
func (n *NoopRecorder) IncRedirectCacheHit() {}

// IncRedirectCacheMiss is a no-op.
func (n *NoopRecorder) IncRedirectCacheMiss() {}

// ObserveRedirectDuration is a no-op.
func (n *NoopRecorder) ObserveRedirectDuration(duration time.Duration) {}

// IncMappingCreated is a no-op.
func (n *NoopRecorder) IncMappingCreated() {}

// IncClickTracked is a no-op.
func (n *NoopRecorder) IncClickTracked(status string) {}

// ObserveClickPipelineDuration is a no-op.
func (n *NoopRecorder) ObserveClickPipelineDuration(duration time.Duration) {}

// SetTrackerQueueDepth is a no-op.
func (n *NoopRecorder) SetTrackerQueueDepth(depth int64) {}

// IncAIRequest is a no-op.
func (n *NoopRecorder) IncAIRequest(outcome string) {}

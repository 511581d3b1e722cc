package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	RedirectCacheHits       uint64
	RedirectCacheMisses     uint64
	RedirectDurationCount   uint64
	RedirectDurationTotalNs int64
	MappingsCreated         uint64
	ClicksTracked           map[string]uint64
	ClickPipelineCount      uint64
	ClickPipelineTotalNs    int64
	TrackerQueueDepth       int64
	AIRequests              map[string]uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	redirectCacheHits       uint64
	redirectCacheMisses     uint64
	redirectDurationCount   uint64
	redirectDurationTotalNs int64
	mappingsCreated         uint64
	clickPipelineCount      uint64
	clickPipelineTotalNs    int64
	trackerQueueDepth       int64

	mu            sync.Mutex
	clicksTracked map[string]uint64
	aiRequests    map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		clicksTracked: make(map[string]uint64),
		aiRequests:    make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	clicks := make(map[string]uint64, len(m.clicksTracked))
	for k, v := range m.clicksTracked {
		clicks[k] = v
	}
	ai := make(map[string]uint64, len(m.aiRequests))
	for k, v := range m.aiRequests {
		ai[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		RedirectCacheHits:       atomic.LoadUint64(&m.redirectCacheHits),
		RedirectCacheMisses:     atomic.LoadUint64(&m.redirectCacheMisses),
		RedirectDurationCount:   atomic.LoadUint64(&m.redirectDurationCount),
		RedirectDurationTotalNs: atomic.LoadInt64(&m.redirectDurationTotalNs),
		MappingsCreated:         atomic.LoadUint64(&m.mappingsCreated),
		ClicksTracked:           clicks,
		ClickPipelineCount:      atomic.LoadUint64(&m.clickPipelineCount),
		ClickPipelineTotalNs:    atomic.LoadInt64(&m.clickPipelineTotalNs),
		TrackerQueueDepth:       atomic.LoadInt64(&m.trackerQueueDepth),
		AIRequests:              ai,
	}
}

// IncRedirectCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncRedirectCacheHit() {
	atomic.AddUint64(&m.redirectCacheHits, 1)
}

// IncRedirectCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncRedirectCacheMiss() {
	atomic.AddUint64(&m.redirectCacheMisses, 1)
}

// ObserveRedirectDuration records redirect duration.
func (m *InMemoryRecorder) ObserveRedirectDuration(duration time.Duration) {
	atomic.AddUint64(&m.redirectDurationCount, 1)
	atomic.AddInt64(&m.redirectDurationTotalNs, duration.Nanoseconds())
}

// IncMappingCreated increments the created-mapping counter.
func (m *InMemoryRecorder) IncMappingCreated() {
	atomic.AddUint64(&m.mappingsCreated, 1)
}

// IncClickTracked records a click-tracking outcome.
func (m *InMemoryRecorder) IncClickTracked(status string) {
	m.mu.Lock()
	m.clicksTracked[status]++
	m.mu.Unlock()
}

// ObserveClickPipelineDuration records one end-to-end enrichment duration.
func (m *InMemoryRecorder) ObserveClickPipelineDuration(duration time.Duration) {
	atomic.AddUint64(&m.clickPipelineCount, 1)
	atomic.AddInt64(&m.clickPipelineTotalNs, duration.Nanoseconds())
}

// SetTrackerQueueDepth records the current tracker queue depth.
func (m *InMemoryRecorder) SetTrackerQueueDepth(depth int64) {
	atomic.StoreInt64(&m.trackerQueueDepth, depth)
}

// IncAIRequest records an AI enrichment outcome.
func (m *InMemoryRecorder) IncAIRequest(outcome string) {
	m.mu.Lock()
	m.aiRequests[outcome]++
	m.mu.Unlock()
}

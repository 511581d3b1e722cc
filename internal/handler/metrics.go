package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/hopline/hopline/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "hopline_redirect_cache_hits_total %d\n", snap.RedirectCacheHits)
	writeMetric(w, "hopline_redirect_cache_misses_total %d\n", snap.RedirectCacheMisses)
	writeMetric(w, "hopline_redirect_duration_seconds_count %d\n", snap.RedirectDurationCount)
	writeMetric(w, "hopline_redirect_duration_seconds_sum %.6f\n", float64(snap.RedirectDurationTotalNs)/1e9)

	writeMetric(w, "hopline_mappings_created_total %d\n", snap.MappingsCreated)

	for _, status := range sortedKeys(snap.ClicksTracked) {
		writeMetric(w, "hopline_clicks_tracked_total{status=%q} %d\n", status, snap.ClicksTracked[status])
	}
	writeMetric(w, "hopline_click_pipeline_duration_seconds_count %d\n", snap.ClickPipelineCount)
	writeMetric(w, "hopline_click_pipeline_duration_seconds_sum %.6f\n", float64(snap.ClickPipelineTotalNs)/1e9)
	writeMetric(w, "hopline_tracker_queue_depth %d\n", snap.TrackerQueueDepth)

	for _, outcome := range sortedKeys(snap.AIRequests) {
		writeMetric(w, "hopline_ai_requests_total{outcome=%q} %d\n", outcome, snap.AIRequests[outcome])
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

// sortedKeys keeps the exposition output deterministic.
func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

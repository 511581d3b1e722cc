// Package analytics provides asynchronous click event capture and
// enrichment.
package analytics

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hopline/hopline/internal/geoip"
	"github.com/hopline/hopline/internal/metrics"
	"github.com/hopline/hopline/internal/model"
	"github.com/hopline/hopline/internal/repository"
	"github.com/hopline/hopline/internal/useragent"
)

const (
	// DefaultQueueSize bounds the in-flight click buffer.
	DefaultQueueSize = 1024

	// processTimeout caps one enrichment pipeline run.
	processTimeout = 10 * time.Second
)

// MappingStore is the persistence the tracker needs.
type MappingStore interface {
	GetMappingByKey(ctx context.Context, key string) (*model.Mapping, error)
	IncrementClickCount(ctx context.Context, shortKey string) error
	InsertClickEvent(ctx context.Context, event *model.ClickEvent) error
}

// GeoLookup resolves a client IP to a location, best effort.
type GeoLookup interface {
	Lookup(ctx context.Context, ip string) *geoip.Location
}

// UAParser classifies a raw User-Agent header.
type UAParser interface {
	Parse(rawUA string) useragent.Info
}

// job pairs the key a visitor hit with the request attributes captured
// before the redirect was written.
type job struct {
	key      string
	snapshot model.ClickSnapshot
}

// task is one unit of deferred enrichment work: a click pipeline run or
// a submitted background job such as an AI re-analysis.
type task struct {
	kind string
	key  string
	run  func()
}

// Tracker is the bounded enrichment executor. Click snapshots and
// submitted background work share one worker pool and one queue, so a
// saturated enrichment backlog stays bounded and never touches redirect
// latency. On saturation the oldest queued task is dropped to admit the
// new one.
type Tracker struct {
	store   MappingStore
	ua      UAParser
	geo     GeoLookup
	logger  *slog.Logger
	metrics metrics.Recorder

	workers   int
	queueSize int
	queue     chan task

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy

	mu      sync.Mutex
	started bool
	closed  bool
	done    chan struct{}
}

// NewTracker creates a click tracker. geo may be nil to disable
// geolocation.
func NewTracker(store MappingStore, uaParser UAParser, geo GeoLookup, logger *slog.Logger, recorder metrics.Recorder) *Tracker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Tracker{
		store:     store,
		ua:        uaParser,
		geo:       geo,
		logger:    logger.With("component", "analytics.tracker"),
		metrics:   recorder,
		workers:   4 * runtime.GOMAXPROCS(0),
		queueSize: DefaultQueueSize,
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}
}

// SetWorkers overrides the default pool size. Must be called before Run.
func (t *Tracker) SetWorkers(n int) {
	if n > 0 {
		t.workers = n
	}
}

// SetQueueSize overrides the default queue capacity. Must be called
// before Run.
func (t *Tracker) SetQueueSize(n int) {
	if n > 0 {
		t.queueSize = n
	}
}

// Run starts the worker pool and blocks until Shutdown closes the
// queue and the workers drain it.
func (t *Tracker) Run(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return errors.New("tracker already started")
	}
	t.started = true
	t.queue = make(chan task, t.queueSize)
	t.done = make(chan struct{})
	t.mu.Unlock()

	t.logger.Info("enrichment executor started", "workers", t.workers, "queue_size", t.queueSize)

	go func() {
		<-ctx.Done()
		t.closeQueue()
	}()

	var wg sync.WaitGroup
	for i := 0; i < t.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tk := range t.queue {
				tk.run()
			}
		}()
	}
	wg.Wait()
	close(t.done)

	t.logger.Info("enrichment executor stopped")
	return nil
}

// closeQueue stops intake exactly once; queued clicks still drain.
func (t *Tracker) closeQueue() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started || t.closed {
		return
	}
	t.closed = true
	close(t.queue)
}

// Track enqueues one click for asynchronous enrichment. It never
// blocks; see enqueue for the saturation policy.
func (t *Tracker) Track(key string, snapshot model.ClickSnapshot) {
	j := job{key: key, snapshot: snapshot}
	if !t.enqueue(task{kind: "click", key: key, run: func() { t.process(j) }}) {
		t.metrics.IncClickTracked("dropped")
	}
}

// Submit hands an arbitrary enrichment job to the executor. It reports
// whether the job was accepted; a refused job was dropped because the
// executor is stopped or its queue stayed full.
func (t *Tracker) Submit(kind, key string, fn func()) bool {
	return t.enqueue(task{kind: kind, key: key, run: fn})
}

// enqueue admits a task without ever blocking the caller. When the
// queue is saturated the oldest queued task is evicted to make room;
// only if the queue refills in the same instant is the new task dropped.
func (t *Tracker) enqueue(tk task) bool {
	t.mu.Lock()
	if !t.started || t.closed {
		t.mu.Unlock()
		return false
	}
	queue := t.queue
	t.mu.Unlock()

	select {
	case queue <- tk:
		t.metrics.SetTrackerQueueDepth(int64(len(queue)))
		return true
	default:
	}

	select {
	case old := <-queue:
		t.logger.Warn("enrichment queue saturated, dropping oldest task", "kind", old.kind, "key", old.key)
		if old.kind == "click" {
			t.metrics.IncClickTracked("dropped")
		}
	default:
	}

	select {
	case queue <- tk:
		t.metrics.SetTrackerQueueDepth(int64(len(queue)))
		return true
	default:
		t.logger.Warn("enrichment queue saturated, dropping task", "kind", tk.kind, "key", tk.key)
		return false
	}
}

// Shutdown closes the queue and waits for the workers to drain it.
// It implements server.ShutdownFunc.
func (t *Tracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	started := t.started
	done := t.done
	t.mu.Unlock()
	if !started {
		return nil
	}

	t.closeQueue()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		t.logger.Warn("click tracker drain timed out")
		return ctx.Err()
	}
}

// process runs the full enrichment pipeline for one click. The context
// is detached from the request so draining survives server shutdown.
func (t *Tracker) process(j job) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	mapping, err := t.store.GetMappingByKey(ctx, j.key)
	if err != nil {
		if errors.Is(err, repository.ErrMappingNotFound) {
			// Deleted between redirect and processing.
			t.logger.Debug("mapping vanished before click was recorded", "key", j.key)
			t.metrics.IncClickTracked("skipped")
			return
		}
		t.logger.Error("failed to load mapping for click", "key", j.key, "error", err)
		t.metrics.IncClickTracked("failed")
		return
	}

	if err := t.store.IncrementClickCount(ctx, mapping.ShortKey); err != nil {
		t.logger.Warn("failed to increment click count", "short_key", mapping.ShortKey, "error", err)
	}

	event := &model.ClickEvent{
		EventID:   t.newEventID(j.snapshot.ClickedAt),
		MappingID: mapping.ID,
		ClickedAt: j.snapshot.ClickedAt,
		ClientIP:  j.snapshot.ClientIP,
		UserAgent: j.snapshot.UserAgent,
		Referer:   j.snapshot.Referer,
	}

	info := t.ua.Parse(j.snapshot.UserAgent)
	event.BrowserName = info.BrowserName
	event.BrowserVersion = info.BrowserVersion
	event.OSName = info.OSName
	event.OSVersion = info.OSVersion
	event.DeviceType = info.DeviceType

	if t.geo != nil {
		if loc := t.geo.Lookup(ctx, j.snapshot.ClientIP); loc != nil {
			event.CountryCode = loc.CountryCode
			event.CountryName = loc.CountryName
			event.Region = loc.Region
			event.City = loc.City
			event.Timezone = loc.Timezone
		}
	}

	if err := t.store.InsertClickEvent(ctx, event); err != nil {
		t.logger.Error("failed to persist click event",
			"short_key", mapping.ShortKey,
			"event_id", event.EventID,
			"error", err,
		)
		t.metrics.IncClickTracked("failed")
		return
	}

	t.metrics.IncClickTracked("success")
	t.metrics.ObserveClickPipelineDuration(time.Since(start))
}

// newEventID mints a monotonic ULID anchored at the click timestamp so
// replays of the same event sort next to the original.
func (t *Tracker) newEventID(ts time.Time) string {
	t.entropyMu.Lock()
	defer t.entropyMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(ts), t.entropy)
	if err != nil {
		// Entropy exhaustion within one millisecond; fall back to now.
		id = ulid.MustNew(ulid.Now(), rand.Reader)
	}
	return id.String()
}

// Package metrics exposes trackpool's Prometheus metrics: resource pool
// activity per track, lease waits, flashbacks and traversal throughput.
//
// # Basic Usage
//
//	// Observe a track's pool
//	src, err := track.NewSource(ctx, desc, track.WithObserver(metrics.NewTrackObserver(desc.Name)))
//
//	// Count traversal output
//	metrics.FeaturesEmitted.WithLabelValues("calls").Add(float64(n))
//
//	// Track throughput
//	tracker := metrics.NewThroughputTracker("calls")
//	tracker.Increment(int64(n))
//	rate := tracker.GetAndReset()
//
// Every metric is registered with the default registry on package load, so
// promhttp.Handler serves them without further setup.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResourcesCreated counts resources opened by a track's pool.
	// Labels: track
	ResourcesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackpool_resources_created_total",
			Help: "Total number of track resources opened",
		},
		[]string{"track"},
	)

	// ResourcesReused counts leases served by an existing resource.
	// Labels: track
	ResourcesReused = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackpool_resources_reused_total",
			Help: "Total number of leases served by an idle resource",
		},
		[]string{"track"},
	)

	// Flashbacks counts stream iterators rewound to serve a lease.
	// Labels: track
	Flashbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackpool_flashbacks_total",
			Help: "Total number of stream iterators rewound from their history",
		},
		[]string{"track"},
	)

	// FeaturesEmitted counts records produced by traversal.
	// Labels: track
	FeaturesEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackpool_features_total",
			Help: "Total number of features emitted by traversal",
		},
		[]string{"track"},
	)

	// ShardsProcessed counts completed traversal shards.
	// Labels: status (success/failure)
	ShardsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackpool_shards_total",
			Help: "Total number of traversal shards processed",
		},
		[]string{"status"},
	)

	// Resources tracks the resources a pool holds.
	// Labels: track, state (idle/leased)
	Resources = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trackpool_resources",
			Help: "Current number of track resources by state",
		},
		[]string{"track", "state"},
	)

	// LeaseWait tracks how long Seek blocked waiting for a resource.
	// Labels: track
	LeaseWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "trackpool_lease_wait_seconds",
			Help: "Time spent waiting for a track resource to be released",
			Buckets: []float64{
				0.0001, // 100μs
				0.001,  // 1ms
				0.01,   // 10ms
				0.1,    // 100ms
				1,      // 1s
				10,     // 10s
			},
		},
		[]string{"track"},
	)

	// Throughput tracks features per second.
	// Labels: track
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trackpool_throughput_features_per_second",
			Help: "Current traversal throughput in features per second",
		},
		[]string{"track"},
	)
)

// TrackObserver records pool events of one track. It satisfies
// track.Observer.
type TrackObserver struct {
	created  prometheus.Counter
	reused   prometheus.Counter
	flash    prometheus.Counter
	idle     prometheus.Gauge
	leased   prometheus.Gauge
	waitTime prometheus.Observer
}

// NewTrackObserver binds the pool metrics to the track label.
func NewTrackObserver(track string) *TrackObserver {
	return &TrackObserver{
		created:  ResourcesCreated.WithLabelValues(track),
		reused:   ResourcesReused.WithLabelValues(track),
		flash:    Flashbacks.WithLabelValues(track),
		idle:     Resources.WithLabelValues(track, "idle"),
		leased:   Resources.WithLabelValues(track, "leased"),
		waitTime: LeaseWait.WithLabelValues(track),
	}
}

// ResourceCreated records a newly opened resource.
func (o *TrackObserver) ResourceCreated() { o.created.Inc() }

// ResourceReused records a lease served from the idle set.
func (o *TrackObserver) ResourceReused() { o.reused.Inc() }

// LeaseWaited records time blocked in Acquire.
func (o *TrackObserver) LeaseWaited(d time.Duration) { o.waitTime.Observe(d.Seconds()) }

// SizeChanged updates the resource gauges.
func (o *TrackObserver) SizeChanged(total, idle int) {
	o.idle.Set(float64(idle))
	o.leased.Set(float64(total - idle))
}

// Flashback records a rewound stream iterator.
func (o *TrackObserver) Flashback() { o.flash.Inc() }

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the label the timer was created with.
func (t *Timer) Name() string { return t.name }

// Stop returns the elapsed duration since creation. It may be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks throughput (features per second) over time windows.
// Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64     // Features since last reset
	lastReset time.Time // Time of last reset
	gauge     prometheus.Gauge
}

// NewThroughputTracker creates a tracker reporting to the throughput gauge
// of track.
func NewThroughputTracker(track string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		gauge:     Throughput.WithLabelValues(track),
	}
}

// Increment adds n to the feature count. Safe for concurrent use.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the current throughput, updates the Prometheus
// gauge, resets the counter and returns the rate.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()
	t.gauge.Set(throughput)

	return throughput
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackObserver(t *testing.T) {
	obs := NewTrackObserver("observer_test")
	obs.ResourceCreated()
	obs.ResourceCreated()
	obs.ResourceReused()
	obs.Flashback()
	obs.SizeChanged(3, 1)
	obs.LeaseWaited(20 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(ResourcesCreated.WithLabelValues("observer_test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ResourcesReused.WithLabelValues("observer_test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(Flashbacks.WithLabelValues("observer_test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(Resources.WithLabelValues("observer_test", "idle")))
	assert.Equal(t, 2.0, testutil.ToFloat64(Resources.WithLabelValues("observer_test", "leased")))
	assert.Equal(t, 1, testutil.CollectAndCount(LeaseWait, "trackpool_lease_wait_seconds"))
}

func TestThroughputTracker(t *testing.T) {
	tracker := NewThroughputTracker("throughput_test")
	tracker.Increment(100)
	time.Sleep(5 * time.Millisecond)

	rate := tracker.GetAndReset()
	assert.Greater(t, rate, 0.0)
	assert.Equal(t, rate, testutil.ToFloat64(Throughput.WithLabelValues("throughput_test")))
	assert.Equal(t, int64(0), tracker.count)
}

func TestTimer(t *testing.T) {
	timer := NewTimer("shard")
	time.Sleep(time.Millisecond)
	assert.Equal(t, "shard", timer.Name())
	assert.GreaterOrEqual(t, timer.Stop(), time.Millisecond)
}

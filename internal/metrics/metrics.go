package metrics

import (
	"sync/atomic"
	"time"
)

const (
	// BucketCount is the number of latency buckets, the last one being +Inf.
	BucketCount   = 8
	cacheLineSize = 64
)

// BucketBounds are the inclusive upper bounds, in seconds, of every bucket
// but the last.
var BucketBounds = [BucketCount - 1]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

type histogram struct {
	buckets [BucketCount]uint64
	sumNS   uint64
}

// Registry holds a fixed set of counters and histograms addressed by index.
// The zero value and a nil *Registry record nothing.
type Registry struct {
	enabled    bool
	latency    bool
	counters   []paddedCounter
	histograms []histogram
	timed      []bool
}

// New returns a registry with size slots. Only the ids listed in timed
// accept Observe calls, and only when latency is true.
func New(size int, enabled, latency bool, timed ...int) *Registry {
	r := &Registry{
		enabled:    enabled,
		latency:    enabled && latency,
		counters:   make([]paddedCounter, size),
		histograms: make([]histogram, size),
		timed:      make([]bool, size),
	}
	for _, id := range timed {
		if id >= 0 && id < size {
			r.timed[id] = true
		}
	}
	return r
}

func (r *Registry) Enabled() bool        { return r != nil && r.enabled }
func (r *Registry) LatencyEnabled() bool { return r != nil && r.latency }

func (r *Registry) valid(id int) bool {
	return r != nil && r.enabled && id >= 0 && id < len(r.counters)
}

// Inc adds one to counter id.
func (r *Registry) Inc(id int) {
	if !r.valid(id) {
		return
	}
	atomic.AddUint64(&r.counters[id].value, 1)
}

// Observe records d in histogram id.
func (r *Registry) Observe(id int, d time.Duration) {
	if !r.valid(id) || !r.latency || !r.timed[id] {
		return
	}
	h := &r.histograms[id]
	atomic.AddUint64(&h.buckets[BucketIndex(d)], 1)
	if d > 0 {
		atomic.AddUint64(&h.sumNS, uint64(d))
	}
}

// Value returns counter id.
func (r *Registry) Value(id int) uint64 {
	if r == nil || id < 0 || id >= len(r.counters) {
		return 0
	}
	return atomic.LoadUint64(&r.counters[id].value)
}

// Buckets returns a copy of the non-cumulative bucket counts of histogram
// id, or nil when it is not recorded.
func (r *Registry) Buckets(id int) []uint64 {
	if !r.valid(id) || !r.latency || !r.timed[id] {
		return nil
	}
	out := make([]uint64, BucketCount)
	for i := range out {
		out[i] = atomic.LoadUint64(&r.histograms[id].buckets[i])
	}
	return out
}

// Sum returns the total observed duration of histogram id.
func (r *Registry) Sum(id int) time.Duration {
	if !r.valid(id) {
		return 0
	}
	return time.Duration(atomic.LoadUint64(&r.histograms[id].sumNS))
}

// Timed reports whether id is a histogram slot.
func (r *Registry) Timed(id int) bool {
	return r != nil && id >= 0 && id < len(r.timed) && r.timed[id]
}

// BucketIndex maps a duration to its bucket.
func BucketIndex(d time.Duration) int {
	s := d.Seconds()
	for i, bound := range BucketBounds {
		if s <= bound {
			return i
		}
	}
	return BucketCount - 1
}

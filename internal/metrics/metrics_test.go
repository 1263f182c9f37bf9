package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestRegistryCounters(t *testing.T) {
	r := New(4, true, false)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Inc(1)
			}
		}()
	}
	wg.Wait()

	if got := r.Value(1); got != 800 {
		t.Fatalf("expected 800, got %d", got)
	}
	r.Inc(-1)
	r.Inc(99)
	if r.Value(99) != 0 {
		t.Fatal("out of range id must read as zero")
	}
}

func TestRegistryDisabledAndNil(t *testing.T) {
	r := New(2, false, true, 0)
	r.Inc(0)
	r.Observe(0, time.Millisecond)
	if r.Value(0) != 0 || r.Buckets(0) != nil {
		t.Fatal("disabled registry must not record")
	}

	var nilReg *Registry
	nilReg.Inc(0)
	nilReg.Observe(0, time.Millisecond)
	if nilReg.Enabled() || nilReg.Value(0) != 0 {
		t.Fatal("nil registry must be inert")
	}
}

func TestRegistryHistogram(t *testing.T) {
	r := New(3, true, true, 2)
	r.Observe(2, 3*time.Millisecond)
	r.Observe(2, 40*time.Millisecond)
	r.Observe(2, time.Second)
	r.Observe(1, time.Millisecond)

	b := r.Buckets(2)
	if len(b) != BucketCount || b[0] != 1 || b[3] != 1 || b[BucketCount-1] != 1 {
		t.Fatalf("unexpected buckets %v", b)
	}
	if r.Buckets(1) != nil {
		t.Fatal("untimed slot must not expose buckets")
	}
	if r.Sum(2) != 1043*time.Millisecond {
		t.Fatalf("unexpected sum %v", r.Sum(2))
	}
}

func TestBucketIndex(t *testing.T) {
	cases := map[time.Duration]int{
		0:                      0,
		5 * time.Millisecond:   0,
		6 * time.Millisecond:   1,
		25 * time.Millisecond:  2,
		100 * time.Millisecond: 4,
		500 * time.Millisecond: 6,
		501 * time.Millisecond: 7,
	}
	for d, want := range cases {
		if got := BucketIndex(d); got != want {
			t.Errorf("BucketIndex(%v) = %d, want %d", d, got, want)
		}
	}
}

// cached_test.go: end-to-end tests for the Cache facade, including the
// concrete scenarios from spec.md §8.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cached

import (
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// TestCache_BasicPutGet mirrors spec.md §8 scenario 1.
func TestCache_BasicPutGet(t *testing.T) {
	c := New[string, string](Options[string, string]{TotalCacheWeight: 1 << 20})
	defer c.Shutdown()

	status, err := c.Put("topic", "microservices").Wait()
	if status != Accepted || err != nil {
		t.Fatalf("Put = %v, %v", status, err)
	}

	v, ok := c.Get("topic")
	if !ok || v != "microservices" {
		t.Fatalf("Get(topic) = %q, %v; want microservices, true", v, ok)
	}

	want := DefaultWeightCalculation("topic", "microservices", false)
	if got := c.TotalWeightUsed(); got != want {
		t.Fatalf("TotalWeightUsed = %d, want %d", got, want)
	}
}

// TestCache_TTLEviction mirrors spec.md §8 scenario 2.
func TestCache_TTLEviction(t *testing.T) {
	c := New[string, string](Options[string, string]{
		TotalCacheWeight: 1 << 20,
		TTLShards:        2,
		TTLTickDuration:  10 * time.Millisecond,
	})
	defer c.Shutdown()

	status, err := c.PutWithTTL("k", "v", 20*time.Millisecond).Wait()
	if status != Accepted || err != nil {
		t.Fatalf("PutWithTTL = %v, %v", status, err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := c.Get("k"); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("key was never evicted by the TTL ticker")
}

// TestCache_WeightDrivenRejection mirrors spec.md §8 scenario 3.
func TestCache_WeightDrivenRejection(t *testing.T) {
	c := New[string, string](Options[string, string]{TotalCacheWeight: 100})
	defer c.Shutdown()

	if status, _ := c.PutWithWeight("a", "1", 50).Wait(); status != Accepted {
		t.Fatalf("first put = %v, want Accepted", status)
	}
	if status, _ := c.PutWithWeight("b", "2", 50).Wait(); status != Accepted {
		t.Fatalf("second put = %v, want Accepted", status)
	}
	status, _ := c.PutWithWeight("c", "3", 50).Wait()
	if status != Rejected {
		t.Fatalf("third put = %v, want Rejected", status)
	}
	if got := c.TotalWeightUsed(); got != 100 {
		t.Fatalf("TotalWeightUsed = %d, want 100", got)
	}
}

// TestCache_FrequencyPipeline mirrors spec.md §8 scenario 4 exactly:
// access_pool_size=1, access_buffer_size=3, and the named access sequence
// produces estimate(topic)=2, estimate(disk)=1. Writes do not themselves
// record accesses (see Cache.Put's doc comment); only get does.
func TestCache_FrequencyPipeline(t *testing.T) {
	c := New[string, string](Options[string, string]{
		TotalCacheWeight: 1 << 20,
		AccessPoolSize:   1,
		AccessBufferSize: 3,
	})
	defer c.Shutdown()

	c.Put("topic", "A").Wait()
	c.Put("disk", "B").Wait()
	c.Get("topic")
	c.Get("disk")
	c.Get("topic")
	c.Get("disk")

	topicHash := c.hashFn("topic")
	diskHash := c.hashFn("disk")

	if got := c.admission.sketch.estimate(topicHash); got != 2 {
		t.Fatalf("estimate(topic) = %d, want 2", got)
	}
	if got := c.admission.sketch.estimate(diskHash); got != 1 {
		t.Fatalf("estimate(disk) = %d, want 1", got)
	}
}

// TestCache_ShutdownVisibility mirrors spec.md §8 scenario 6: concurrent
// producers racing a shutdown all eventually see either an applied write or
// a Shutdown status/error, and reads afterward see nothing.
func TestCache_ShutdownVisibility(t *testing.T) {
	c := New[string, string](Options[string, string]{TotalCacheWeight: 1 << 20})

	const producers = 20
	var g errgroup.Group
	for i := 0; i < producers; i++ {
		i := i
		g.Go(func() error {
			ack := c.Put("k", "v")
			status, err := ack.Wait()
			if status != Accepted && status != Shutdown {
				t.Errorf("producer %d: status = %v, want Accepted or Shutdown", i, status)
			}
			if status == Shutdown && !IsShutdown(err) {
				t.Errorf("producer %d: Shutdown status without a shutdown error", i)
			}
			return nil
		})
	}

	c.Shutdown()
	_ = g.Wait()

	status, err := c.Put("after-shutdown", "v").Wait()
	if status != Shutdown || !IsShutdown(err) {
		t.Fatalf("post-shutdown Put = %v, %v; want Shutdown", status, err)
	}
	if _, ok := c.Get("k"); ok {
		t.Fatal("Get(k) after shutdown returned ok=true; want a miss")
	}
}

func TestCache_DeleteThenGetMisses(t *testing.T) {
	c := New[string, string](Options[string, string]{TotalCacheWeight: 1 << 20})
	defer c.Shutdown()

	c.Put("k", "v").Wait()
	status, err := c.Delete("k").Wait()
	if status != Accepted || err != nil {
		t.Fatalf("Delete = %v, %v", status, err)
	}
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestCache_DeleteAbsentKeyIsRejected(t *testing.T) {
	c := New[string, string](Options[string, string]{TotalCacheWeight: 1 << 20})
	defer c.Shutdown()

	status, err := c.Delete("missing").Wait()
	if status != Rejected || err != nil {
		t.Fatalf("Delete(missing) = %v, %v; want Rejected, nil", status, err)
	}
}

func TestCache_PutWithWeightPanicsOnNonPositiveWeight(t *testing.T) {
	c := New[string, string](Options[string, string]{TotalCacheWeight: 1 << 20})
	defer c.Shutdown()

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for a non-positive weight")
		}
	}()
	c.PutWithWeight("k", "v", 0)
}

func TestCache_PutPanicsWhenWeightCalculationFnReturnsNonPositive(t *testing.T) {
	c := New[string, string](Options[string, string]{
		TotalCacheWeight:    1 << 20,
		WeightCalculationFn: func(string, string, bool) int64 { return 0 },
	})
	defer c.Shutdown()

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for a non-positive computed weight")
		}
	}()
	c.Put("k", "v")
}

func TestMapGet_TransformsHitAndMissesCleanly(t *testing.T) {
	c := New[string, string](Options[string, string]{TotalCacheWeight: 1 << 20})
	defer c.Shutdown()
	c.Put("k", "hello").Wait()

	length, ok := MapGet(c, "k", func(v string) int { return len(v) })
	if !ok || length != 5 {
		t.Fatalf("MapGet = %d, %v; want 5, true", length, ok)
	}

	if _, ok := MapGet(c, "missing", func(v string) int { return len(v) }); ok {
		t.Fatal("MapGet on a missing key returned ok=true")
	}
}

func TestMultiGet_ReturnsOnlyHits(t *testing.T) {
	c := New[string, string](Options[string, string]{TotalCacheWeight: 1 << 20})
	defer c.Shutdown()
	c.Put("a", "1").Wait()
	c.Put("b", "2").Wait()

	got := MultiGet(c, []string{"a", "b", "missing"})
	if len(got) != 2 || got["a"] != "1" || got["b"] != "2" {
		t.Fatalf("MultiGet = %v", got)
	}
}

func TestCache_StatsSummaryReflectsActivity(t *testing.T) {
	c := New[string, string](Options[string, string]{TotalCacheWeight: 1 << 20})
	defer c.Shutdown()

	c.Put("a", "1").Wait()
	c.Get("a")
	c.Get("missing")

	stats := c.StatsSummary()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Puts != 1 {
		t.Fatalf("StatsSummary = %+v", stats)
	}
	if stats.KeysResident != 1 {
		t.Fatalf("KeysResident = %d, want 1", stats.KeysResident)
	}
}

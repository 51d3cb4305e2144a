// ttl_test.go: tests for the sharded timer-wheel TTL ticker.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cached

import (
	"sync"
	"testing"
	"time"
)

func TestTTLTicker_SweepsExpiredEntries(t *testing.T) {
	clock := &fakeClock{}

	var mu sync.Mutex
	var expired []uint64
	hook := func(keyID uint64) {
		mu.Lock()
		expired = append(expired, keyID)
		mu.Unlock()
	}

	ticker := newTTLTicker(2, 10*time.Millisecond, clock, hook, NoOpLogger{}, NoOpMetricsCollector{})
	defer ticker.shutdown()

	ticker.put(1, clock.Now()+int64(5*time.Millisecond))
	clock.nowNano += int64(time.Second)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(expired)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(expired) != 1 || expired[0] != 1 {
		t.Fatalf("expired = %v, want [1]", expired)
	}
}

func TestTTLTicker_DeleteBeforeSweepPreventsExpiry(t *testing.T) {
	clock := &fakeClock{}

	var mu sync.Mutex
	var expired []uint64
	hook := func(keyID uint64) {
		mu.Lock()
		expired = append(expired, keyID)
		mu.Unlock()
	}

	ticker := newTTLTicker(2, 10*time.Millisecond, clock, hook, NoOpLogger{}, NoOpMetricsCollector{})
	defer ticker.shutdown()

	ticker.put(1, clock.Now()+int64(5*time.Millisecond))
	ticker.delete(1)
	clock.nowNano += int64(time.Second)

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(expired) != 0 {
		t.Fatalf("expired = %v, want none", expired)
	}
}

func TestTTLShard_UpdateMovesBucket(t *testing.T) {
	sh := newTTLShard()
	sh.put(1, int64(5*time.Second))
	sh.put(1, int64(50*time.Second))

	if due := sh.evictDue(5); len(due) != 0 {
		t.Fatalf("evictDue(5) = %v, want none (entry moved to second 50)", due)
	}
	if due := sh.evictDue(50); len(due) != 1 || due[0] != 1 {
		t.Fatalf("evictDue(50) = %v, want [1]", due)
	}
}

func TestTTLShard_DeleteRemovesFromBucket(t *testing.T) {
	sh := newTTLShard()
	sh.put(1, int64(5*time.Second))
	sh.delete(1)

	if due := sh.evictDue(5); len(due) != 0 {
		t.Fatalf("evictDue(5) = %v, want none", due)
	}
}

func TestTTLShard_ClearEmptiesBucketsAndIndex(t *testing.T) {
	sh := newTTLShard()
	sh.put(1, int64(5*time.Second))
	sh.clear()

	if due := sh.evictDue(1 << 30); len(due) != 0 {
		t.Fatalf("evictDue after clear = %v, want none", due)
	}
}

func TestTTLTicker_GetReportsRegisteredExpirySecond(t *testing.T) {
	clock := &fakeClock{}
	ticker := newTTLTicker(2, time.Millisecond, clock, func(uint64) {}, NoOpLogger{}, NoOpMetricsCollector{})
	defer ticker.shutdown()

	if _, ok := ticker.get(1); ok {
		t.Fatal("get on an unregistered key_id reported present")
	}

	expireAfter := int64(5 * time.Second)
	ticker.put(1, expireAfter)
	sec, ok := ticker.get(1)
	if !ok || sec != expirySecond(expireAfter) {
		t.Fatalf("get(1) = %d, %v; want %d, true", sec, ok, expirySecond(expireAfter))
	}

	ticker.delete(1)
	if _, ok := ticker.get(1); ok {
		t.Fatal("get after delete still reported present")
	}
}

func TestTTLTicker_ShutdownIsIdempotent(t *testing.T) {
	clock := &fakeClock{}
	ticker := newTTLTicker(1, time.Millisecond, clock, func(uint64) {}, NoOpLogger{}, NoOpMetricsCollector{})
	ticker.shutdown()
	ticker.shutdown()
}

// cached.go: the public Cache facade wiring every component together, per
// spec.md §6.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cached

import (
	"sync/atomic"
	"time"
)

// Cache is a concurrent, in-memory key/value cache admitting candidates
// with a W-TinyLFU policy and evicting by Sampled-LFU against a global
// weight budget. The zero value is not usable; construct with New.
type Cache[K comparable, V any] struct {
	store     *store[K, V]
	admission *admissionPolicy
	pool      *accessPool
	ttl       *ttlTicker
	executor  *commandExecutor[K, V]
	ids       *idGenerator

	hashFn   func(K) uint64
	weightFn func(K, V, bool) int64
	clock    Clock
	logger   Logger
	stats    *statsTracker
}

// New constructs a Cache from opts, applying defaults for any zero-valued
// field (see Options.Validate). The returned Cache owns a background TTL
// sweep goroutine; call Shutdown when done with it.
func New[K comparable, V any](opts Options[K, V]) *Cache[K, V] {
	opts.Validate()

	stats := newStatsTracker(opts.MetricsCollector)

	sketch := newFrequencySketch(opts.Counters)
	admission := newAdmissionPolicy(opts.TotalCacheWeight, sketch, opts.Logger, stats)
	st := newStore[K, V](opts.Shards, opts.KeyHashFn, opts.Clock)
	pool := newAccessPool(opts.AccessPoolSize, opts.AccessBufferSize, admission, stats)
	ids := &idGenerator{}

	c := &Cache[K, V]{
		store:     st,
		admission: admission,
		pool:      pool,
		ids:       ids,
		hashFn:    opts.KeyHashFn,
		weightFn:  opts.WeightCalculationFn,
		clock:     opts.Clock,
		logger:    opts.Logger,
		stats:     stats,
	}

	c.ttl = newTTLTicker(opts.TTLShards, opts.TTLTickDuration, opts.Clock, c.expireHook, opts.Logger, stats)
	c.executor = newCommandExecutor[K, V](opts.CommandBufferSize, st, admission, c.ttl, ids, opts.KeyHashFn, opts.Logger, stats)

	return c
}

// expireHook is the TTL Ticker's eviction callback: remove the key from the
// Store and the Key-Weight Table. It does not go through the command
// channel: it runs on the ticker's own goroutine, concurrently with the
// command worker, and each call it makes is guarded only by the store's
// shard locks and the admission policy's mutex.
func (c *Cache[K, V]) expireHook(keyID uint64) {
	c.store.deleteByID(keyID)
	c.admission.deleteWithHook(keyID)
}

// Put inserts or replaces key's value with a computed weight and no expiry.
// Per spec.md's frequency-pipeline scenario, writes do not themselves feed
// the access pool — only reads do; a write's own admission is decided by
// the candidate/victim comparison in the admission policy, not by the
// write recording itself as an access. The weight is computed here, in the
// caller's own goroutine (mirroring original_source's cached.rs, which
// evaluates weight_calculation_fn before dispatching put_with_weight), and
// panics if it is not strictly positive rather than letting a bad
// WeightCalculationFn corrupt the admission policy's weight budget.
func (c *Cache[K, V]) Put(key K, value V) *CommandAcknowledgement {
	weight := c.weightFn(key, value, false)
	if weight <= 0 {
		panic(NewErrInvalidWeight(weight))
	}
	return c.executor.dispatch(command[K, V]{kind: cmdPut, key: key, value: value, hasValue: true, weight: weight, hasWeight: true})
}

// PutWithWeight inserts or replaces key's value with an explicit weight and
// no expiry.
func (c *Cache[K, V]) PutWithWeight(key K, value V, weight int64) *CommandAcknowledgement {
	if weight <= 0 {
		panic(NewErrInvalidWeight(weight))
	}
	return c.executor.dispatch(command[K, V]{kind: cmdPut, key: key, value: value, hasValue: true, weight: weight, hasWeight: true})
}

// PutWithTTL inserts or replaces key's value with a computed weight and the
// given expiry. See Put's doc comment for why the weight is computed and
// validated eagerly here rather than lazily in the command worker.
func (c *Cache[K, V]) PutWithTTL(key K, value V, ttl time.Duration) *CommandAcknowledgement {
	weight := c.weightFn(key, value, true)
	if weight <= 0 {
		panic(NewErrInvalidWeight(weight))
	}
	return c.executor.dispatch(command[K, V]{kind: cmdPutWithTTL, key: key, value: value, hasValue: true, ttl: ttl, weight: weight, hasWeight: true})
}

// PutWithWeightAndTTL inserts or replaces key's value with an explicit
// weight and the given expiry.
func (c *Cache[K, V]) PutWithWeightAndTTL(key K, value V, weight int64, ttl time.Duration) *CommandAcknowledgement {
	if weight <= 0 {
		panic(NewErrInvalidWeight(weight))
	}
	return c.executor.dispatch(command[K, V]{kind: cmdPutWithTTL, key: key, value: value, hasValue: true, ttl: ttl, weight: weight, hasWeight: true})
}

// Get returns key's value, if resident and not expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.recordAccess(key)
	v, ok := c.store.get(key)
	c.stats.RecordGet(ok)
	return v, ok
}

// GetRef returns a pointer to key's value, if resident and not expired. See
// store.getRef for why this differs from the original API's borrowed
// reference.
func (c *Cache[K, V]) GetRef(key K) (*V, bool) {
	c.recordAccess(key)
	v, ok := c.store.getRef(key)
	c.stats.RecordGet(ok)
	return v, ok
}

// Delete removes key immediately (the fast-path tombstone: reads miss
// right away) and asynchronously reconciles the admission policy and TTL
// ticker through the command pipeline. The returned acknowledgement
// resolves once that reconciliation has completed; Rejected if key was not
// resident.
func (c *Cache[K, V]) Delete(key K) *CommandAcknowledgement {
	keyID, _, _, ok := c.store.delete(key)
	if !ok {
		ack := newCommandAcknowledgement()
		ack.resolve(Rejected, nil)
		return ack
	}
	return c.executor.dispatch(command[K, V]{kind: cmdDelete, keyID: keyID})
}

// Upsert atomically updates value/weight/TTL on an existing key, or falls
// through to a regular Put/PutWithTTL if the key is absent. Panics with
// NewErrUpsertNoValue if the key is absent and req carries no value.
func (c *Cache[K, V]) Upsert(req *UpsertRequest[K, V]) *CommandAcknowledgement {
	didUpdate, keyID, transition, _, newExpireAfter := c.store.update(req.key, valuePtr(req), ttlPtr(req), req.removeTTL)

	if didUpdate {
		cmd := command[K, V]{kind: cmdReconcile, keyID: keyID, transition: transition, newExpireAfter: newExpireAfter}
		if req.hasWeight {
			cmd.weight = req.weight
			cmd.hasWeight = true
		}
		return c.executor.dispatch(cmd)
	}

	if !req.hasValue {
		panic(NewErrUpsertNoValue())
	}
	if req.hasTTL {
		if req.hasWeight {
			return c.PutWithWeightAndTTL(req.key, req.value, req.weight, req.ttl)
		}
		return c.PutWithTTL(req.key, req.value, req.ttl)
	}
	if req.hasWeight {
		return c.PutWithWeight(req.key, req.value, req.weight)
	}
	return c.Put(req.key, req.value)
}

func valuePtr[K comparable, V any](req *UpsertRequest[K, V]) *V {
	if !req.hasValue {
		return nil
	}
	return &req.value
}

func ttlPtr[K comparable, V any](req *UpsertRequest[K, V]) *time.Duration {
	if !req.hasTTL {
		return nil
	}
	return &req.ttl
}

// TotalWeightUsed returns the sum of resident weights currently admitted.
func (c *Cache[K, V]) TotalWeightUsed() int64 {
	return c.admission.totalWeightUsed()
}

// StatsSummary returns a point-in-time snapshot of cache counters.
func (c *Cache[K, V]) StatsSummary() StatsSummary {
	s := c.stats.snapshot()
	s.TotalWeightUsed = c.admission.totalWeightUsed()
	s.KeysResident = c.store.len()
	return s
}

// Shutdown stops the TTL ticker and command executor, resolving every
// already-queued command with Shutdown, then clears the Store, the
// Key-Weight Table, and the TTL Ticker so later reads miss. Safe to call
// more than once.
func (c *Cache[K, V]) Shutdown() {
	c.executor.shutdown()
	c.ttl.shutdown()
	c.store.clear()
	c.admission.clear()
	c.ttl.clear()
}

// recordAccess hashes key and feeds it to the access pool for eventual
// frequency-sketch accounting. Never blocks.
func (c *Cache[K, V]) recordAccess(key K) {
	c.pool.recordAccess(c.hashFn(key))
}

// MapGet looks up key and, if resident and alive, applies mapFn to its
// value, returning the transformed result. A free function rather than a
// method because Go methods cannot introduce an additional type parameter.
func MapGet[K comparable, V any, R any](c *Cache[K, V], key K, mapFn func(V) R) (R, bool) {
	v, ok := c.Get(key)
	if !ok {
		var zero R
		return zero, false
	}
	return mapFn(v), true
}

// MapGetRef is MapGet over GetRef, for callers that want mapFn to see a
// pointer (e.g. to avoid copying a large V).
func MapGetRef[K comparable, V any, R any](c *Cache[K, V], key K, mapFn func(*V) R) (R, bool) {
	v, ok := c.GetRef(key)
	if !ok {
		var zero R
		return zero, false
	}
	return mapFn(v), true
}

// MultiGet looks up every key in keys, returning a map of only the hits.
func MultiGet[K comparable, V any](c *Cache[K, V], keys []K) map[K]V {
	out := make(map[K]V, len(keys))
	for _, k := range keys {
		if v, ok := c.Get(k); ok {
			out[k] = v
		}
	}
	return out
}

// statsTracker decorates a caller-supplied MetricsCollector with the
// internal atomic counters StatsSummary reports, so StatsSummary works
// even under the default NoOpMetricsCollector.
type statsTracker struct {
	hits, misses, puts, deletes, rejections, evictions, expirations, accessDropped atomic.Uint64
	inner                                                                          MetricsCollector
}

func newStatsTracker(inner MetricsCollector) *statsTracker {
	return &statsTracker{inner: inner}
}

func (s *statsTracker) RecordGet(hit bool) {
	if hit {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
	s.inner.RecordGet(hit)
}

func (s *statsTracker) RecordPut() {
	s.puts.Add(1)
	s.inner.RecordPut()
}

func (s *statsTracker) RecordDelete() {
	s.deletes.Add(1)
	s.inner.RecordDelete()
}

func (s *statsTracker) RecordReject() {
	s.rejections.Add(1)
	s.inner.RecordReject()
}

func (s *statsTracker) RecordEviction() {
	s.evictions.Add(1)
	s.inner.RecordEviction()
}

func (s *statsTracker) RecordExpiration() {
	s.expirations.Add(1)
	s.inner.RecordExpiration()
}

func (s *statsTracker) RecordAccessDropped() {
	s.accessDropped.Add(1)
	s.inner.RecordAccessDropped()
}

func (s *statsTracker) snapshot() StatsSummary {
	return StatsSummary{
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Puts:          s.puts.Load(),
		Deletes:       s.deletes.Load(),
		Rejections:    s.rejections.Load(),
		Evictions:     s.evictions.Load(),
		Expirations:   s.expirations.Load(),
		AccessDropped: s.accessDropped.Load(),
	}
}

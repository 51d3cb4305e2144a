// store.go: sharded concurrent map holding typed stored values, per
// spec.md §4.4.
//
// The per-shard read-write-lock pattern is grounded on the sharded-map
// reference material in the pack (the teacher library itself keeps
// everything in one lock-free table, so sharding-by-RWMutex is learned from
// the wider corpus rather than from agilira-balios). The secondary
// key_id -> key index exists because the admission policy and TTL ticker
// address entries by key_id alone (per spec.md §3's Key-Weight Table and
// TTLEntry), while the store itself is addressed by the generic key; the
// index is what lets their delete hooks reach into a generic store without
// becoming generic themselves.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cached

import (
	"sync"
	"time"
)

// ttlTransition describes how an update() call changed a stored value's
// expiry, per spec.md §4.4's UpdateResponse.
type ttlTransition int

const (
	ttlUnchanged ttlTransition = iota
	ttlAdded
	ttlDeleted
	ttlUpdated
)

// storedValue is the Store's owned representation of a resident value,
// grounded on original_source's StoredValue<Value> (value/key_id/optional
// expire_after).
type storedValue[V any] struct {
	value       V
	keyID       uint64
	expireAfter int64
	hasExpiry   bool
}

func neverExpiring[V any](value V, keyID uint64) storedValue[V] {
	return storedValue[V]{value: value, keyID: keyID}
}

func expiring[V any](value V, keyID uint64, expireAfter int64) storedValue[V] {
	return storedValue[V]{value: value, keyID: keyID, expireAfter: expireAfter, hasExpiry: true}
}

func (sv storedValue[V]) isAlive(clock Clock) bool {
	if !sv.hasExpiry {
		return true
	}
	return !HasPassed(clock, sv.expireAfter)
}

type shard[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]storedValue[V]
}

// store is the sharded map. Shard selection is hash(key) & (shards-1), per
// spec.md §4.4.
type store[K comparable, V any] struct {
	shards    []*shard[K, V]
	shardMask uint64
	hashFn    func(K) uint64
	clock     Clock

	idMu    sync.RWMutex
	idIndex map[uint64]K
}

func newStore[K comparable, V any](shardCount int, hashFn func(K) uint64, clock Clock) *store[K, V] {
	shards := make([]*shard[K, V], shardCount)
	for i := range shards {
		shards[i] = &shard[K, V]{m: make(map[K]storedValue[V])}
	}
	return &store[K, V]{
		shards:    shards,
		shardMask: uint64(shardCount - 1),
		hashFn:    hashFn,
		clock:     clock,
		idIndex:   make(map[uint64]K),
	}
}

func (s *store[K, V]) shardFor(key K) *shard[K, V] {
	return s.shards[s.hashFn(key)&s.shardMask]
}

// put inserts or replaces a never-expiring value.
func (s *store[K, V]) put(key K, value V, keyID uint64) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.m[key] = neverExpiring(value, keyID)
	sh.mu.Unlock()

	s.idMu.Lock()
	s.idIndex[keyID] = key
	s.idMu.Unlock()
}

// putWithTTL inserts or replaces a value with an expiry, returning the
// computed expire_after (nanoseconds since epoch) for the caller to
// register with the TTL Ticker.
func (s *store[K, V]) putWithTTL(key K, value V, keyID uint64, ttl time.Duration) int64 {
	expireAfter := s.clock.Now() + int64(ttl)

	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.m[key] = expiring(value, keyID, expireAfter)
	sh.mu.Unlock()

	s.idMu.Lock()
	s.idIndex[keyID] = key
	s.idMu.Unlock()

	return expireAfter
}

// existingKeyID returns the key_id already assigned to key, if any resident
// entry exists for it (alive or not yet reaped). Put/PutWithTTL call this
// first so that overwriting an existing key reuses its key_id instead of
// growing the Key-Weight Table with a fresh row per write: a resident key
// keeps one key_id, and one table row, across overwrites.
func (s *store[K, V]) existingKeyID(key K) (uint64, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	sv, ok := sh.m[key]
	if !ok {
		return 0, false
	}
	return sv.keyID, true
}

// get returns the value for key if present and alive.
func (s *store[K, V]) get(key K) (V, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	sv, ok := sh.m[key]
	sh.mu.RUnlock()

	if !ok || !sv.isAlive(s.clock) {
		var zero V
		return zero, false
	}
	return sv.value, true
}

// getRef returns a pointer to a copy of the value for key if present and
// alive. Go has no borrow-checked reference the way the original API's
// get_ref lends one tied to a shard guard; this exists for API-shape parity
// and to avoid a second copy at call sites that only read a field.
func (s *store[K, V]) getRef(key K) (*V, bool) {
	v, ok := s.get(key)
	if !ok {
		return nil, false
	}
	return &v, true
}

// delete removes key unconditionally (the fast-path tombstone: callers use
// this directly, outside the command pipeline, so reads miss immediately;
// the command worker's own delete of the same key is then idempotent).
func (s *store[K, V]) delete(key K) (keyID uint64, expireAfter int64, hadExpiry bool, ok bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	sv, exists := sh.m[key]
	if exists {
		delete(sh.m, key)
	}
	sh.mu.Unlock()

	if !exists {
		return 0, 0, false, false
	}

	s.idMu.Lock()
	delete(s.idIndex, sv.keyID)
	s.idMu.Unlock()

	return sv.keyID, sv.expireAfter, sv.hasExpiry, true
}

// deleteByID removes the entry for keyID, if any, via the secondary index.
// Used by the admission policy's weight-driven eviction and the TTL
// ticker's expiry hook, both of which only know a key_id.
func (s *store[K, V]) deleteByID(keyID uint64) (expireAfter int64, hadExpiry bool, ok bool) {
	s.idMu.RLock()
	key, found := s.idIndex[keyID]
	s.idMu.RUnlock()
	if !found {
		return 0, false, false
	}
	_, expireAfter, hadExpiry, ok = s.delete(key)
	return
}

// update performs the in-place read-modify-write used by Upsert
// (spec.md §4.7): value, TTL-add/replace, and TTL-remove are independent
// axes. It is guarded per-shard and may be called concurrently with the
// command worker's put/delete on other keys (spec.md §3: "store.update ...
// guarded per-shard" is the one fast path besides mark_deleted).
func (s *store[K, V]) update(key K, newValue *V, newTTL *time.Duration, removeTTL bool) (didUpdate bool, keyID uint64, transition ttlTransition, oldExpireAfter, newExpireAfter int64) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sv, ok := sh.m[key]
	if !ok {
		return false, 0, ttlUnchanged, 0, 0
	}

	if sv.hasExpiry {
		oldExpireAfter = sv.expireAfter
	}
	newExpireAfter = oldExpireAfter

	if newValue != nil {
		sv.value = *newValue
	}

	switch {
	case removeTTL && sv.hasExpiry:
		sv.hasExpiry = false
		sv.expireAfter = 0
		newExpireAfter = 0
		transition = ttlDeleted
	case newTTL != nil:
		computed := s.clock.Now() + int64(*newTTL)
		if sv.hasExpiry {
			transition = ttlUpdated
		} else {
			transition = ttlAdded
		}
		sv.hasExpiry = true
		sv.expireAfter = computed
		newExpireAfter = computed
	default:
		transition = ttlUnchanged
	}

	sh.m[key] = sv
	return true, sv.keyID, transition, oldExpireAfter, newExpireAfter
}

// clear drops all shards and the id index.
func (s *store[K, V]) clear() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.m = make(map[K]storedValue[V])
		sh.mu.Unlock()
	}
	s.idMu.Lock()
	s.idIndex = make(map[uint64]K)
	s.idMu.Unlock()
}

// len returns the total number of resident entries across all shards,
// including any not-yet-expired-but-stale ones (a diagnostic count, not a
// hot-path operation).
func (s *store[K, V]) len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.m)
		sh.mu.RUnlock()
	}
	return n
}

// upsert.go: the request builder for Cache.Upsert (cached.go), the atomic
// read-modify-write over an existing key, per spec.md §4.7. Grounded on
// original_source's upsert.rs builder shape
// (value/weight/ttl are independent optional axes, with a distinct
// remove-ttl axis rather than overloading a nil ttl to mean "remove").
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cached

import "time"

// UpsertRequest describes an atomic update to an existing key, or the
// fallback write to perform if the key is absent. Build one with
// NewUpsertRequest and its With* methods, then pass it to Cache.Upsert.
type UpsertRequest[K comparable, V any] struct {
	key K

	value    V
	hasValue bool

	weight    int64
	hasWeight bool

	ttl       time.Duration
	hasTTL    bool
	removeTTL bool
}

// NewUpsertRequest starts a builder for an upsert against key.
func NewUpsertRequest[K comparable, V any](key K) *UpsertRequest[K, V] {
	return &UpsertRequest[K, V]{key: key}
}

// WithValue supplies the new value. Required if the key turns out to be
// absent (the fallback write needs a value); optional for an update to an
// existing key, where omitting it leaves the value unchanged.
func (r *UpsertRequest[K, V]) WithValue(value V) *UpsertRequest[K, V] {
	r.value = value
	r.hasValue = true
	return r
}

// WithWeight supplies an explicit weight for the candidate, overriding the
// configured WeightCalculationFn.
func (r *UpsertRequest[K, V]) WithWeight(weight int64) *UpsertRequest[K, V] {
	r.weight = weight
	r.hasWeight = true
	return r
}

// WithTimeToLive adds or replaces the key's expiry.
func (r *UpsertRequest[K, V]) WithTimeToLive(ttl time.Duration) *UpsertRequest[K, V] {
	r.ttl = ttl
	r.hasTTL = true
	r.removeTTL = false
	return r
}

// WithRemoveTimeToLive removes any existing expiry, making the key
// never-expiring. Mutually exclusive with WithTimeToLive; whichever is
// called last wins.
func (r *UpsertRequest[K, V]) WithRemoveTimeToLive() *UpsertRequest[K, V] {
	r.removeTTL = true
	r.hasTTL = false
	return r
}

// config.go: configuration for the cache.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cached

import "time"

// Defaults applied by Options.Validate when a field is left at its zero
// value.
const (
	DefaultCounters           = 16384
	DefaultCapacity           = 10_000
	DefaultTotalCacheWeight   = 1 << 24 // 16 MiB of weight units
	DefaultShards             = 16
	DefaultAccessPoolSize     = 8
	DefaultAccessBufferSize   = 64
	DefaultCommandBufferSize  = 1024
	DefaultTTLShards          = 8
	DefaultTTLTickDuration    = 500 * time.Millisecond

	// DefaultTickerEntryWeight is the implementation-defined weight
	// contribution of a resident TTL ticker entry (one key_id plus one
	// expiry second), per spec.md §9 open question (b). Callers and tests
	// must agree on this constant.
	DefaultTickerEntryWeight = 24
)

// Options configures a Cache. All fields are optional; Validate fills in
// defaults and panics on structurally invalid values (shard counts that
// aren't a power of two, counts below the required minimum).
type Options[K comparable, V any] struct {
	// Counters is the total width of the frequency sketch (sizing hint,
	// rounded up to a power of two internally).
	Counters int

	// Capacity is the expected number of resident keys (sizing hint only;
	// does not bound admission, TotalCacheWeight does).
	Capacity int

	// TotalCacheWeight is the global weight budget enforced by the
	// admission policy.
	TotalCacheWeight int64

	// Shards is the number of store shards. Must be a power of two, >= 2.
	Shards int

	// AccessPoolSize is the number of striped ring buffers in the access
	// pool. Must be a power of two, > 0.
	AccessPoolSize int

	// AccessBufferSize is the capacity of each access-pool ring buffer.
	// Must be > 0.
	AccessBufferSize int

	// CommandBufferSize is the capacity of the bounded command channel.
	// Must be > 0.
	CommandBufferSize int

	// TTLShards is the number of TTL ticker shards. Must be a power of
	// two, >= 1.
	TTLShards int

	// TTLTickDuration is the cadence at which the TTL ticker scans for due
	// shards.
	TTLTickDuration time.Duration

	// KeyHashFn hashes a key to a uint64. Defaults to an internal hasher
	// for common key kinds (string, integers, fmt.Stringer); supply your
	// own for other key types.
	KeyHashFn func(K) uint64

	// WeightCalculationFn computes the weight of a candidate key/value
	// when the caller does not supply one explicitly. Defaults to
	// DefaultWeightCalculation.
	WeightCalculationFn func(key K, value V, hasTTL bool) int64

	// Clock is the time source used for TTL expiry and sketch aging.
	// Defaults to SystemClock().
	Clock Clock

	// Logger receives debug/info/warn/error events. Defaults to
	// NoOpLogger{}.
	Logger Logger

	// MetricsCollector receives operation counters. Defaults to
	// NoOpMetricsCollector{}.
	MetricsCollector MetricsCollector
}

// Validate normalizes zero-valued fields to their defaults and panics on
// structurally invalid values supplied explicitly by the caller. It is
// called automatically by New; exported so callers can inspect the
// normalized configuration ahead of time.
func (o *Options[K, V]) Validate() {
	if o.Counters <= 0 {
		o.Counters = DefaultCounters
	}
	if o.Capacity <= 0 {
		o.Capacity = DefaultCapacity
	}
	if o.TotalCacheWeight <= 0 {
		o.TotalCacheWeight = DefaultTotalCacheWeight
	}

	if o.Shards == 0 {
		o.Shards = DefaultShards
	}
	if !isPowerOfTwo(o.Shards) || o.Shards < 2 {
		panic(NewErrInvalidShardCount("Shards", o.Shards))
	}

	if o.AccessPoolSize == 0 {
		o.AccessPoolSize = DefaultAccessPoolSize
	}
	if !isPowerOfTwo(o.AccessPoolSize) || o.AccessPoolSize < 1 {
		panic(NewErrInvalidShardCount("AccessPoolSize", o.AccessPoolSize))
	}

	if o.AccessBufferSize <= 0 {
		o.AccessBufferSize = DefaultAccessBufferSize
	}

	if o.CommandBufferSize <= 0 {
		o.CommandBufferSize = DefaultCommandBufferSize
	}

	if o.TTLShards == 0 {
		o.TTLShards = DefaultTTLShards
	}
	if !isPowerOfTwo(o.TTLShards) || o.TTLShards < 1 {
		panic(NewErrInvalidShardCount("TTLShards", o.TTLShards))
	}

	if o.TTLTickDuration <= 0 {
		o.TTLTickDuration = DefaultTTLTickDuration
	}

	if o.KeyHashFn == nil {
		o.KeyHashFn = defaultKeyHash[K]
	}
	if o.WeightCalculationFn == nil {
		o.WeightCalculationFn = DefaultWeightCalculation[K, V]
	}
	if o.Clock == nil {
		o.Clock = SystemClock()
	}
	if o.Logger == nil {
		o.Logger = NoOpLogger{}
	}
	if o.MetricsCollector == nil {
		o.MetricsCollector = NoOpMetricsCollector{}
	}
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// nextPowerOf2 returns the smallest power of two >= n (minimum 1).
func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

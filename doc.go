// Package cached provides a concurrent, in-memory key/value cache that
// admits candidate keys with a W-TinyLFU policy (Count-Min Sketch +
// doorkeeper) and evicts by Sampled-LFU against a global weight budget.
//
// # Overview
//
// The cache is built from independently testable components wired together
// by a single-writer command pipeline:
//
//   - Frequency Sketch: a Count-Min Sketch with a doorkeeper bitset
//     estimates how often a key-hash has been observed, with periodic aging.
//   - Access Pool: lossy, lock-free striped ring buffers batch read
//     observations off the hot path and drain them into the sketch.
//   - Admission Policy: gates candidate writes against the weight budget,
//     evicting sampled low-value residents when there's no room.
//   - Store: a sharded, read-write-locked map holding typed values with
//     optional per-entry expiry.
//   - TTL Ticker: a sharded timer wheel that scans for and evicts expired
//     entries on a fixed cadence.
//   - Command Executor: a bounded channel with a single worker goroutine
//     serializes all mutating operations and resolves per-command
//     acknowledgements exactly once.
//
// # Quick start
//
//	import "github.com/wtinylfu/cached"
//
//	c := cached.New[string, string](cached.Options[string, string]{
//	    TotalCacheWeight: 1 << 20,
//	})
//	defer c.Shutdown()
//
//	c.Put("topic", "microservices")
//	if v, ok := c.Get("topic"); ok {
//	    fmt.Println(v)
//	}
//
// # TTL
//
//	ack := c.PutWithTTL("session", token, 30*time.Second)
//	ack.Wait() // blocks until the write has been applied
//
// # Upsert
//
// Upsert performs an atomic read-modify-write over an existing key,
// independently touching value, weight, and TTL, falling through to a
// regular Put when the key is absent:
//
//	c.Upsert(cached.NewUpsertRequest[string, string]("k").
//	    WithTimeToLive(100 * time.Second))
//
// # Observability
//
// Logger, MetricsCollector, and Clock are external collaborator interfaces;
// the cache never assumes a particular logging, metrics, or time backend.
// Statistics aggregation for dashboards, persistence, replication, and
// cross-process coherence are explicitly out of scope — this package holds
// volatile, in-process state only.
package cached

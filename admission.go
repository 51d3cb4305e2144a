// admission.go: TinyLFU admission gate + Sampled-LFU evictor, per
// spec.md §4.2.
//
// The maybe_add algorithm and victim-sampling shape are grounded on the
// reference material's TinyLFU candidate/sample split (estimate a
// candidate's frequency, compare against a small uniform sample of
// residents, evict the loser). Sampling uses Go's randomized map iteration
// order to approximate "draw uniformly at random from the table" rather
// than building a separate reservoir structure, the same shortcut the
// reference TinyLFU implementations take via their own early-exit iteration
// callback.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cached

import "sync"

// CommandStatus is the outcome of a command applied through the Command
// Executor. It is not an error: Rejected is an expected, common result of
// admission control.
type CommandStatus int

const (
	// Accepted means the command was applied.
	Accepted CommandStatus = iota
	// Rejected means the admission policy denied the candidate, or a
	// delete/upsert found nothing to act on.
	Rejected
	// Shutdown means the cache was shutting down when the command would
	// have been processed.
	Shutdown
)

func (s CommandStatus) String() string {
	switch s {
	case Accepted:
		return "Accepted"
	case Rejected:
		return "Rejected"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// keyWeightEntry is one row of the Key-Weight Table (spec.md §3).
type keyWeightEntry struct {
	keyHash uint64
	weight  int64
}

// admissionCandidate is the non-generic projection of a KeyDescription[K]
// that the admission policy needs: it never touches the caller's key type.
type admissionCandidate struct {
	keyID   uint64
	keyHash uint64
	weight  int64
}

// sampleSize is the number of residents drawn when looking for a victim,
// per spec.md §4.2 ("typically 5").
const sampleSize = 5

// admissionPolicy composes the Frequency Sketch and the Key-Weight Table.
// It is the only owner of both. The table is mutated by the command
// worker's admission calls and by the TTL Ticker's expiry hook (on the
// ticker goroutine), serialized by mu; the sketch is also fed by the access
// pool's drain.
type admissionPolicy struct {
	mu    sync.RWMutex
	table map[uint64]keyWeightEntry

	weightUsed       int64
	totalCacheWeight int64

	sketch *frequencySketch

	logger  Logger
	metrics MetricsCollector
}

func newAdmissionPolicy(totalCacheWeight int64, sketch *frequencySketch, logger Logger, metrics MetricsCollector) *admissionPolicy {
	return &admissionPolicy{
		table:            make(map[uint64]keyWeightEntry),
		totalCacheWeight: totalCacheWeight,
		sketch:           sketch,
		logger:           logger,
		metrics:          metrics,
	}
}

// maybeAdd implements spec.md §4.2's algorithm exactly. deleteHook is
// called (outside the admission lock) for every victim evicted to make
// room; it is expected to remove the key from the Store and TTL Ticker.
func (a *admissionPolicy) maybeAdd(cand admissionCandidate, deleteHook func(keyID uint64)) CommandStatus {
	if cand.weight > a.totalCacheWeight {
		a.metrics.RecordReject()
		return Rejected
	}

	a.mu.Lock()

	if existing, ok := a.table[cand.keyID]; ok {
		a.weightUsed += cand.weight - existing.weight
		a.table[cand.keyID] = keyWeightEntry{keyHash: cand.keyHash, weight: cand.weight}
		a.mu.Unlock()
		return Accepted
	}

	free := a.totalCacheWeight - a.weightUsed
	if cand.weight <= free {
		a.table[cand.keyID] = keyWeightEntry{keyHash: cand.keyHash, weight: cand.weight}
		a.weightUsed += cand.weight
		a.mu.Unlock()
		return Accepted
	}

	candidateFreq := a.sketch.estimate(cand.keyHash)

	var evicted []uint64
	for free < cand.weight {
		victimID, victimEntry, found := a.sampleVictim()
		if !found {
			a.mu.Unlock()
			for _, id := range evicted {
				deleteHook(id)
				a.metrics.RecordEviction()
			}
			a.metrics.RecordReject()
			return Rejected
		}

		if a.sketch.estimate(victimEntry.keyHash) >= candidateFreq {
			a.mu.Unlock()
			for _, id := range evicted {
				deleteHook(id)
				a.metrics.RecordEviction()
			}
			a.metrics.RecordReject()
			return Rejected
		}

		delete(a.table, victimID)
		a.weightUsed -= victimEntry.weight
		free += victimEntry.weight
		evicted = append(evicted, victimID)
	}

	a.table[cand.keyID] = keyWeightEntry{keyHash: cand.keyHash, weight: cand.weight}
	a.weightUsed += cand.weight
	a.mu.Unlock()

	for _, id := range evicted {
		deleteHook(id)
		a.metrics.RecordEviction()
	}
	return Accepted
}

// sampleVictim draws up to sampleSize residents (via Go's randomized map
// iteration) and returns the one with the lowest frequency estimate,
// breaking ties by the lowest key_id. Must be called with a.mu held.
func (a *admissionPolicy) sampleVictim() (uint64, keyWeightEntry, bool) {
	var (
		victimID    uint64
		victimEntry keyWeightEntry
		victimFreq  uint64
		found       bool
		drawn       int
	)

	for id, entry := range a.table {
		if drawn >= sampleSize {
			break
		}
		drawn++

		freq := a.sketch.estimate(entry.keyHash)
		if !found || freq < victimFreq || (freq == victimFreq && id < victimID) {
			victimID, victimEntry, victimFreq, found = id, entry, freq, true
		}
	}

	return victimID, victimEntry, found
}

// accept is the Access Pool's drain callback: increment the sketch for
// every observed hash and age it if due.
func (a *admissionPolicy) accept(hashes []uint64) {
	for _, h := range hashes {
		a.sketch.increment(h)
		a.sketch.resetIfDue()
	}
}

// updateWeight adjusts an already-admitted key's weight in place. Used by
// the UpdateWeight command (dispatched internally by Upsert).
func (a *admissionPolicy) updateWeight(keyID uint64, newWeight int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.table[keyID]
	if !ok {
		return
	}
	a.weightUsed += newWeight - entry.weight
	entry.weight = newWeight
	a.table[keyID] = entry
}

// adjustWeight adds delta to an already-admitted key's weight in place,
// without replacing it outright. Used to apply the TTL ticker-entry weight
// contribution (spec.md §4.7 step 3) when a TTL is added to or removed from
// an existing key during an Upsert that supplied no explicit weight.
func (a *admissionPolicy) adjustWeight(keyID uint64, delta int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.table[keyID]
	if !ok {
		return
	}
	entry.weight += delta
	a.weightUsed += delta
	a.table[keyID] = entry
}

// deleteWithHook removes keyID from the Key-Weight Table, if present,
// adjusting weightUsed. Used when a key is deleted (not evicted) so the
// admission policy stays in sync with the Store.
func (a *admissionPolicy) deleteWithHook(keyID uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.table[keyID]
	if !ok {
		return
	}
	delete(a.table, keyID)
	a.weightUsed -= entry.weight
}

// weightOf returns the current weight recorded for keyID, and whether it
// is present.
func (a *admissionPolicy) weightOf(keyID uint64) (int64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	entry, ok := a.table[keyID]
	return entry.weight, ok
}

// contains reports whether keyID is present in the Key-Weight Table.
func (a *admissionPolicy) contains(keyID uint64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.table[keyID]
	return ok
}

// totalWeightUsed returns the current sum of resident weights.
func (a *admissionPolicy) totalWeightUsed() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.weightUsed
}

// clear drops the Key-Weight Table and resets weightUsed. Does not reset
// the frequency sketch, which is process-lifetime per spec.md §3.
func (a *admissionPolicy) clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.table = make(map[uint64]keyWeightEntry)
	a.weightUsed = 0
}

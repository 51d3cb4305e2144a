// command.go: the single-writer Command Executor, per spec.md §4.6.
//
// Every mutation except the two documented fast paths (store.delete's
// tombstone and store.update's guarded in-place write, both in store.go)
// and the TTL Ticker's expiry sweep flows through one worker goroutine
// reading a bounded channel. The sweep runs on the ticker's own goroutine
// and calls the Cache's expireHook, which removes keys from the Store and
// the Key-Weight Table concurrently with the worker; those structures
// guard each call with their own locks.
//
// The cmdReconcile variant is not one of spec.md's named commands; it is
// dispatched internally by Cache.Upsert (cached.go) after its direct store.update
// call returns a TTL transition, so that the TTL Ticker and Key-Weight
// Table reconciliation spec.md §4.7 requires still happens on the single
// writer rather than racing it. This mirrors original_source's
// command_executor's UpdateTTL handling, which does the same
// store-then-reconcile sequencing for the same reason.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cached

import (
	"sync/atomic"
	"time"
)

type commandKind int

const (
	cmdPut commandKind = iota
	cmdPutWithTTL
	cmdDelete
	cmdUpdateWeight
	cmdReconcile
)

// command is the tagged union dispatched to the executor's worker. Only the
// fields relevant to kind are populated; the rest are zero.
type command[K comparable, V any] struct {
	kind commandKind

	key      K
	value    V
	hasValue bool

	weight    int64
	hasWeight bool

	ttl time.Duration

	keyID          uint64
	transition     ttlTransition
	newExpireAfter int64

	ack *CommandAcknowledgement
}

// commandExecutor owns the bounded channel and the single worker goroutine
// that serializes every mutation across the store, admission policy, and
// TTL ticker.
type commandExecutor[K comparable, V any] struct {
	store     *store[K, V]
	admission *admissionPolicy
	ttl       *ttlTicker
	ids       *idGenerator
	hashFn    func(K) uint64

	ch chan command[K, V]

	shuttingDown atomic.Bool
	stopCh       chan struct{}
	doneCh       chan struct{}

	logger  Logger
	metrics MetricsCollector
}

func newCommandExecutor[K comparable, V any](
	bufferSize int,
	st *store[K, V],
	admission *admissionPolicy,
	ttl *ttlTicker,
	ids *idGenerator,
	hashFn func(K) uint64,
	logger Logger,
	metrics MetricsCollector,
) *commandExecutor[K, V] {
	ce := &commandExecutor[K, V]{
		store:     st,
		admission: admission,
		ttl:       ttl,
		ids:       ids,
		hashFn:    hashFn,
		ch:        make(chan command[K, V], bufferSize),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		logger:    logger,
		metrics:   metrics,
	}
	go ce.run()
	return ce
}

// dispatch enqueues cmd and returns its acknowledgement. If the executor is
// shutting down, the acknowledgement resolves immediately with Shutdown and
// NewErrShutdown, without touching the channel.
func (ce *commandExecutor[K, V]) dispatch(cmd command[K, V]) *CommandAcknowledgement {
	ack := newCommandAcknowledgement()
	cmd.ack = ack

	if ce.shuttingDown.Load() {
		ack.resolve(Shutdown, NewErrShutdown())
		return ack
	}

	select {
	case ce.ch <- cmd:
	case <-ce.stopCh:
		ack.resolve(Shutdown, NewErrShutdown())
	}
	return ack
}

func (ce *commandExecutor[K, V]) run() {
	defer close(ce.doneCh)
	for {
		select {
		case cmd := <-ce.ch:
			ce.apply(cmd)
		case <-ce.stopCh:
			ce.drainRemaining()
			return
		}
	}
}

// drainRemaining resolves every command already queued at shutdown time
// with Shutdown, rather than silently dropping them.
func (ce *commandExecutor[K, V]) drainRemaining() {
	for {
		select {
		case cmd := <-ce.ch:
			cmd.ack.resolve(Shutdown, NewErrShutdown())
		default:
			return
		}
	}
}

func (ce *commandExecutor[K, V]) apply(cmd command[K, V]) {
	switch cmd.kind {
	case cmdPut:
		ce.applyPut(cmd)
	case cmdPutWithTTL:
		ce.applyPutWithTTL(cmd)
	case cmdDelete:
		ce.admission.deleteWithHook(cmd.keyID)
		ce.ttl.delete(cmd.keyID)
		ce.metrics.RecordDelete()
		cmd.ack.resolve(Accepted, nil)
	case cmdUpdateWeight:
		ce.admission.updateWeight(cmd.keyID, cmd.weight)
		cmd.ack.resolve(Accepted, nil)
	case cmdReconcile:
		ce.applyReconcile(cmd)
	}
}

// deleteHook is passed to the admission policy as the eviction callback: it
// removes a sampled victim from both the Store and the TTL Ticker.
func (ce *commandExecutor[K, V]) deleteHook(keyID uint64) {
	ce.store.deleteByID(keyID)
	ce.ttl.delete(keyID)
}

// applyPut builds the write's KeyDescription (spec.md §3) once key_id has
// been resolved, and that one description feeds both the admission policy
// and the store, per the entity's documented purpose in keydescription.go.
func (ce *commandExecutor[K, V]) applyPut(cmd command[K, V]) {
	keyID, existed := ce.store.existingKeyID(cmd.key)
	if !existed {
		keyID = ce.ids.nextID()
	}
	kd := KeyDescription[K]{Key: cmd.key, KeyID: keyID, KeyHash: ce.hashFn(cmd.key), Weight: cmd.weight}

	status := ce.admission.maybeAdd(admissionCandidate{keyID: kd.KeyID, keyHash: kd.KeyHash, weight: kd.Weight}, ce.deleteHook)
	if status == Accepted {
		ce.store.put(kd.Key, cmd.value, kd.KeyID)
		if existed {
			ce.ttl.delete(kd.KeyID)
		}
		ce.metrics.RecordPut()
	}
	cmd.ack.resolve(status, nil)
}

func (ce *commandExecutor[K, V]) applyPutWithTTL(cmd command[K, V]) {
	keyID, existed := ce.store.existingKeyID(cmd.key)
	if !existed {
		keyID = ce.ids.nextID()
	}
	kd := KeyDescription[K]{Key: cmd.key, KeyID: keyID, KeyHash: ce.hashFn(cmd.key), Weight: cmd.weight}

	status := ce.admission.maybeAdd(admissionCandidate{keyID: kd.KeyID, keyHash: kd.KeyHash, weight: kd.Weight}, ce.deleteHook)
	if status == Accepted {
		expireAfter := ce.store.putWithTTL(kd.Key, cmd.value, kd.KeyID, cmd.ttl)
		ce.ttl.put(kd.KeyID, expireAfter)
		ce.metrics.RecordPut()
	}
	cmd.ack.resolve(status, nil)
}

// applyReconcile is dispatched after Upsert's direct store.update call. When
// the caller supplied no explicit weight, a TTL add/remove still changes the
// key's weight by the ticker-entry contribution (spec.md §4.7 step 3, §8
// scenario 5) — computed here, inside the single writer, rather than read
// by the caller beforehand, so it can never race a concurrent reconcile of
// the same key_id.
func (ce *commandExecutor[K, V]) applyReconcile(cmd command[K, V]) {
	if cmd.hasWeight {
		ce.admission.updateWeight(cmd.keyID, cmd.weight)
	} else {
		switch cmd.transition {
		case ttlAdded:
			ce.admission.adjustWeight(cmd.keyID, DefaultTickerEntryWeight)
		case ttlDeleted:
			ce.admission.adjustWeight(cmd.keyID, -DefaultTickerEntryWeight)
		}
	}
	switch cmd.transition {
	case ttlAdded, ttlUpdated:
		ce.ttl.update(cmd.keyID, cmd.newExpireAfter)
	case ttlDeleted:
		ce.ttl.delete(cmd.keyID)
	case ttlUnchanged:
		// nothing to reconcile
	}
	ce.metrics.RecordPut()
	cmd.ack.resolve(Accepted, nil)
}

// shutdown stops the worker goroutine, resolving every already-queued
// command with Shutdown, and waits for it to exit. Safe to call more than
// once; only the first call has an effect.
func (ce *commandExecutor[K, V]) shutdown() {
	if ce.shuttingDown.CompareAndSwap(false, true) {
		close(ce.stopCh)
	}
	<-ce.doneCh
}

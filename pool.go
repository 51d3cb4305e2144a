// pool.go: lock-free lossy access pool, per spec.md §4.3.
//
// Each stripe is a fixed ring guarded by an atomic reservation counter
// rather than a lock: a CAS loop claims a slot, and whichever writer claims
// the last slot in the ring drains it inline and hands the batch to the
// admission policy. Writers that would overflow the ring before a drain
// completes simply drop their sample. This is the same CAS-retry idiom the
// frequency sketch uses for its counters (sketch.go), applied here to slot
// reservation instead of counter increments.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cached

import "sync/atomic"

// accessStripe is one ring buffer of the access pool.
type accessStripe struct {
	buf   []uint64
	count uint64
}

func newAccessStripe(capacity int) *accessStripe {
	return &accessStripe{buf: make([]uint64, capacity)}
}

// add reserves a slot for hash and stores it. If this call fills the ring,
// it drains the batch inline via drain and reopens the ring. Returns true
// if the sample was dropped (ring was already full and draining).
func (st *accessStripe) add(hash uint64, drain func([]uint64)) (dropped bool) {
	cap64 := uint64(len(st.buf))

	for {
		cur := atomic.LoadUint64(&st.count)
		if cur >= cap64 {
			return true
		}
		if atomic.CompareAndSwapUint64(&st.count, cur, cur+1) {
			atomic.StoreUint64(&st.buf[cur], hash)

			if cur+1 == cap64 {
				batch := make([]uint64, cap64)
				for i := range batch {
					batch[i] = atomic.LoadUint64(&st.buf[i])
				}
				atomic.StoreUint64(&st.count, 0)
				drain(batch)
			}
			return false
		}
	}
}

// accessPool is P striped accessStripes; a per-access hash picks the
// stripe, so concurrent readers rarely contend on the same ring.
type accessPool struct {
	stripes    []*accessStripe
	stripeMask uint64
	admission  *admissionPolicy
	metrics    MetricsCollector
}

func newAccessPool(stripeCount, bufferSize int, admission *admissionPolicy, metrics MetricsCollector) *accessPool {
	stripes := make([]*accessStripe, stripeCount)
	for i := range stripes {
		stripes[i] = newAccessStripe(bufferSize)
	}
	return &accessPool{
		stripes:    stripes,
		stripeMask: uint64(stripeCount - 1),
		admission:  admission,
		metrics:    metrics,
	}
}

// recordAccess enqueues hash for eventual frequency-sketch accounting. It
// never blocks: at worst it drops the sample (invariant I6 - the sketch
// never overestimates because of a dropped access).
func (p *accessPool) recordAccess(hash uint64) {
	idx := mix(hash, 0xff51afd7ed558ccd) & p.stripeMask
	if dropped := p.stripes[idx].add(hash, p.admission.accept); dropped {
		p.metrics.RecordAccessDropped()
	}
}

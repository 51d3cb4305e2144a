// clock.go: injectable time source for TTL and aging.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cached

import (
	"time"

	"github.com/agilira/go-timecache"
)

// Clock abstracts the wall-clock source so tests can control expiry without
// sleeping. Now returns nanoseconds since the Unix epoch.
type Clock interface {
	Now() int64
}

// HasPassed reports whether the given nanosecond instant is at or before
// the clock's current time.
func HasPassed(c Clock, instantNano int64) bool {
	return c.Now() >= instantNano
}

// systemClock is the default Clock, backed by go-timecache's periodically
// refreshed timestamp. It trades a small amount of precision (refreshed on
// a background tick rather than on every call) for avoiding a syscall on
// every read/write.
type systemClock struct{}

// SystemClock is the default Clock used when Options.Clock is nil.
func SystemClock() Clock { return systemClock{} }

func (systemClock) Now() int64 { return timecache.CachedTimeNano() }

// expirySecond floors a nanosecond instant to the second, for TTL Ticker
// bucketing.
func expirySecond(instantNano int64) int64 {
	return instantNano / int64(time.Second)
}

// weight.go: default weight-calculation function.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cached

import "unsafe"

// storedValueOverhead approximates the fixed bookkeeping cost of a
// StoredValue entry (key_id + expiry timestamp), independent of the
// caller's key/value sizes.
const storedValueOverhead = 16

// DefaultWeightCalculation estimates the weight of a candidate key/value
// pair as key size + value size + per-entry overhead, plus
// DefaultTickerEntryWeight when the entry carries a TTL. Callers with a
// better notion of cost (e.g. actual serialized byte length) should supply
// Options.WeightCalculationFn instead.
func DefaultWeightCalculation[K comparable, V any](key K, value V, hasTTL bool) int64 {
	w := int64(sizeOfKey(key)) + int64(sizeOfValue(value)) + storedValueOverhead
	if hasTTL {
		w += DefaultTickerEntryWeight
	}
	return w
}

func sizeOfKey[K comparable](key K) uintptr {
	switch v := any(key).(type) {
	case string:
		return uintptr(len(v))
	case []byte:
		return uintptr(len(v))
	default:
		return unsafe.Sizeof(key)
	}
}

func sizeOfValue[V any](value V) uintptr {
	switch v := any(value).(type) {
	case string:
		return uintptr(len(v))
	case []byte:
		return uintptr(len(v))
	default:
		return unsafe.Sizeof(value)
	}
}

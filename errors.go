// errors.go: structured errors for cache operations.
//
// Transient/expected conditions are returned as errors; programmer errors
// (bad configuration, misuse of the upsert builder) are panics. Rejection
// of a candidate by the admission policy is a CommandStatus value, not an
// error.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0
package cached

import (
	goerrors "errors"

	"github.com/agilira/go-errors"
)

// Error codes for cache operations.
const (
	// Configuration errors — surfaced only via panic constructors,
	// never returned, since they indicate programmer error.
	ErrCodeInvalidShardCount errors.ErrorCode = "CACHED_INVALID_SHARD_COUNT"
	ErrCodeInvalidWeight     errors.ErrorCode = "CACHED_INVALID_WEIGHT"
	ErrCodeUpsertNoValue     errors.ErrorCode = "CACHED_UPSERT_NO_VALUE"

	// Operation errors — returned to callers.
	ErrCodeShutdown          errors.ErrorCode = "CACHED_SHUTDOWN"
	ErrCodeChannelSendFailed errors.ErrorCode = "CACHED_CHANNEL_SEND_FAILED"
)

const (
	msgInvalidShardCount = "shard count must be a power of two (Shards must also be at least 2)"
	msgInvalidWeight     = "weight must be strictly positive"
	msgUpsertNoValue     = "upsert request has neither an existing entry nor a supplied value"
	msgShutdown          = "cache is shutting down"
	msgChannelSendFailed = "command channel send failed"
)

// NewErrInvalidShardCount builds the panic value for a non-power-of-two or
// too-small shard count. Callers panic with this; it is never returned.
func NewErrInvalidShardCount(name string, got int) error {
	return errors.NewWithContext(ErrCodeInvalidShardCount, msgInvalidShardCount, map[string]interface{}{
		"parameter": name,
		"got":       got,
	})
}

// NewErrInvalidWeight builds the panic value for a non-positive weight.
func NewErrInvalidWeight(weight int64) error {
	return errors.NewWithContext(ErrCodeInvalidWeight, msgInvalidWeight, map[string]interface{}{
		"weight": weight,
	})
}

// NewErrUpsertNoValue builds the panic value for an upsert on an absent key
// with no supplied value.
func NewErrUpsertNoValue() error {
	return errors.New(ErrCodeUpsertNoValue, msgUpsertNoValue)
}

// NewErrShutdown builds the error returned by every public mutator once the
// cache has begun shutting down.
func NewErrShutdown() error {
	return errors.New(ErrCodeShutdown, msgShutdown)
}

// NewErrChannelSendFailed builds the error returned when the bounded
// command channel could not accept a command. Per the spec this is
// collapsed into the shutdown error by the facade, but retains its own
// code for diagnostics.
func NewErrChannelSendFailed(cause error) error {
	if cause != nil {
		return errors.Wrap(cause, ErrCodeChannelSendFailed, msgChannelSendFailed).AsRetryable()
	}
	return errors.New(ErrCodeChannelSendFailed, msgChannelSendFailed).AsRetryable()
}

// IsShutdown reports whether err is (or wraps) the shutdown error.
func IsShutdown(err error) bool {
	return errors.HasCode(err, ErrCodeShutdown)
}

// IsRetryable reports whether err can be retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var retryable errors.Retryable
	if goerrors.As(err, &retryable) {
		return retryable.IsRetryable()
	}
	return false
}

// GetErrorCode extracts the error code carried by err, or "" if none.
func GetErrorCode(err error) errors.ErrorCode {
	if err == nil {
		return ""
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		return coder.ErrorCode()
	}
	return ""
}

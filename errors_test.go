// errors_test.go: tests for the structured error constructors.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cached

import "testing"

func TestNewErrShutdown_HasShutdownCode(t *testing.T) {
	err := NewErrShutdown()
	if !IsShutdown(err) {
		t.Fatal("IsShutdown(NewErrShutdown()) = false, want true")
	}
	if GetErrorCode(err) != ErrCodeShutdown {
		t.Errorf("GetErrorCode = %q, want %q", GetErrorCode(err), ErrCodeShutdown)
	}
}

func TestNewErrChannelSendFailed_IsRetryable(t *testing.T) {
	err := NewErrChannelSendFailed(nil)
	if !IsRetryable(err) {
		t.Fatal("expected channel-send-failed error to be retryable")
	}
	if GetErrorCode(err) != ErrCodeChannelSendFailed {
		t.Errorf("GetErrorCode = %q, want %q", GetErrorCode(err), ErrCodeChannelSendFailed)
	}
}

func TestIsShutdown_FalseForOtherErrors(t *testing.T) {
	if IsShutdown(NewErrChannelSendFailed(nil)) {
		t.Fatal("IsShutdown should be false for a channel-send error")
	}
	if IsShutdown(nil) {
		t.Fatal("IsShutdown(nil) should be false")
	}
}

func TestGetErrorCode_NilError(t *testing.T) {
	if code := GetErrorCode(nil); code != "" {
		t.Errorf("GetErrorCode(nil) = %q, want empty", code)
	}
}

func TestPanicConstructors_ProducePanicValues(t *testing.T) {
	// These constructors build the panic value; they are never returned,
	// only panicked with (see Options.Validate and the upsert/put paths).
	if err := NewErrInvalidShardCount("Shards", 3); err == nil {
		t.Fatal("NewErrInvalidShardCount returned nil")
	}
	if err := NewErrInvalidWeight(-1); err == nil {
		t.Fatal("NewErrInvalidWeight returned nil")
	}
	if err := NewErrUpsertNoValue(); err == nil {
		t.Fatal("NewErrUpsertNoValue returned nil")
	}
}

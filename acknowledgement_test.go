// acknowledgement_test.go: tests for the one-shot command acknowledgement.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cached

import (
	"errors"
	"testing"
)

func TestCommandAcknowledgement_WaitBlocksUntilResolved(t *testing.T) {
	ack := newCommandAcknowledgement()

	done := make(chan struct{})
	go func() {
		status, err := ack.Wait()
		if status != Accepted || err != nil {
			t.Errorf("Wait() = %v, %v; want Accepted, nil", status, err)
		}
		close(done)
	}()

	ack.resolve(Accepted, nil)
	<-done
}

func TestCommandAcknowledgement_ResolveIsIdempotent(t *testing.T) {
	ack := newCommandAcknowledgement()
	ack.resolve(Accepted, nil)
	ack.resolve(Rejected, errors.New("should be ignored"))

	status, err := ack.Wait()
	if status != Accepted || err != nil {
		t.Fatalf("Wait() = %v, %v; want the first resolution (Accepted, nil)", status, err)
	}
}

func TestCommandAcknowledgement_DoneClosesOnResolve(t *testing.T) {
	ack := newCommandAcknowledgement()
	select {
	case <-ack.Done():
		t.Fatal("Done() channel closed before resolve")
	default:
	}

	ack.resolve(Shutdown, NewErrShutdown())
	<-ack.Done()
}

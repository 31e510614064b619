// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"os"
	"testing"
	"time"
)

// TestListenForShutdown ensures the shutdown context is cancelled by the first
// signal, repeated signals are consumed, and stopping the listener stops
// signal delivery exactly once.
func TestListenForShutdown(t *testing.T) {
	sigChan := make(chan os.Signal)
	var stops int
	ctx, stop := listenForShutdown(context.Background(), sigChan,
		func() { stops++ })

	if shutdownRequested(ctx) {
		t.Fatal("shutdown requested before any signal")
	}
	sigChan <- os.Interrupt
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not cancelled by signal")
	}
	if !shutdownRequested(ctx) {
		t.Fatal("shutdown not requested after signal")
	}

	// The unbuffered sends only complete when the listener receives them.
	for i := 0; i < 2; i++ {
		select {
		case sigChan <- os.Interrupt:
		case <-time.After(5 * time.Second):
			t.Fatal("repeated signal not consumed")
		}
	}

	stop()
	stop()
	if stops != 1 {
		t.Fatalf("unexpected number of notify stops: got %d, want 1", stops)
	}
}

// TestListenForShutdownStop ensures stopping the listener before any signal
// is received cancels the context and that cancelling the parent context
// cancels the shutdown context.
func TestListenForShutdownStop(t *testing.T) {
	ctx, stop := listenForShutdown(context.Background(),
		make(chan os.Signal), func() {})
	stop()
	if !shutdownRequested(ctx) {
		t.Fatal("context not cancelled by stop")
	}

	parent, cancel := context.WithCancel(context.Background())
	ctx, stop = listenForShutdown(parent, make(chan os.Signal), func() {})
	defer stop()
	cancel()
	if !shutdownRequested(ctx) {
		t.Fatal("context not cancelled with its parent")
	}
}

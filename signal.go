// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
)

// shutdownSignals are the signals that shut bloomsyncd down.  Platforms that
// support it add SIGTERM during init.
var shutdownSignals = []os.Signal{os.Interrupt}

// shutdownListener returns a context derived from parent that is cancelled
// once one of the shutdown signals is received.  The returned function stops
// listening for signals and must be called once the context is no longer
// needed.
func shutdownListener(parent context.Context) (context.Context, func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, shutdownSignals...)
	return listenForShutdown(parent, sigChan, func() { signal.Stop(sigChan) })
}

// listenForShutdown returns a context derived from parent that is cancelled
// when the first signal is received from sigChan.  Later signals are logged so
// the user knows the shutdown is in progress rather than hung.
//
// The returned function invokes stopNotify, cancels the context, and waits for
// the listening goroutine to exit.
func listenForShutdown(parent context.Context, sigChan <-chan os.Signal, stopNotify func()) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case sig := <-sigChan:
			bsydLog.Infof("Received signal (%s).  Shutting down...", sig)
			cancel()
		case <-quit:
			return
		}

		for {
			select {
			case sig := <-sigChan:
				bsydLog.Infof("Received signal (%s).  Already shutting "+
					"down...", sig)
			case <-quit:
				return
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			stopNotify()
			cancel()
			close(quit)
			wg.Wait()
		})
	}
	return ctx, stop
}

// shutdownRequested returns true when the context returned by shutdownListener
// was cancelled.
func shutdownRequested(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
	}

	return false
}

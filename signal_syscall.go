// Copyright (c) 2021-2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build unix || windows

package main

import "syscall"

func init() {
	// Service managers stop daemons with SIGTERM.
	shutdownSignals = append(shutdownSignals, syscall.SIGTERM)
}

// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peergroup tracks connected peers so messages can be broadcast to
// all of them or sent to an individual peer by id.
package peergroup

// Copyright (c) 2017-2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package sampleconfig provides the commented example config for bloomsyncd.
package sampleconfig

import (
	_ "embed"
)

// sampleBloomsyncdConf is a string containing the commented example config for
// bloomsyncd.
//
//go:embed sample-bloomsyncd.conf
var sampleBloomsyncdConf string

// Bloomsyncd returns a string containing the commented example config for
// bloomsyncd.
func Bloomsyncd() string {
	return sampleBloomsyncdConf
}

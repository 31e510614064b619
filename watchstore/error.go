// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package watchstore

// ErrorKind identifies a kind of error.  It has full support for errors.Is and
// errors.As, so the caller can directly check against an error kind when
// determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific ErrorKind.
const (
	// ErrEmptyItem indicates an attempt to watch an empty item.
	ErrEmptyItem = ErrorKind("ErrEmptyItem")

	// ErrClosed indicates the store was used after it was closed.
	ErrClosed = ErrorKind("ErrClosed")

	// ErrDatabase indicates a general failure of the underlying database.
	ErrDatabase = ErrorKind("ErrDatabase")

	// ErrCorruption indicates the underlying database is corrupt.
	ErrCorruption = ErrorKind("ErrCorruption")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies an error related to the watch store.  It has full support
// for errors.Is and errors.As, so the caller can ascertain the specific reason
// for the error by checking the underlying error.
type Error struct {
	Err         error
	Description string

	// RawErr is the error returned by the underlying database, if any.
	RawErr error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped errors.
func (e Error) Unwrap() []error {
	if e.RawErr == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.RawErr}
}

// makeError creates an Error given a set of arguments.
func makeError(kind ErrorKind, desc string) Error {
	return Error{Err: kind, Description: desc}
}

// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package filtermgr

// ErrorKind identifies a kind of error.  It has full support for errors.Is and
// errors.As, so the caller can directly check against an error kind when
// determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific Error.
const (
	// ErrConfiguration indicates the manager was created without a usable
	// peer notifier or with out of range rates.
	ErrConfiguration = ErrorKind("ErrConfiguration")

	// ErrInvalidSourceResponse indicates a source responded to a fetch with
	// something other than a list of elements or nil.
	ErrInvalidSourceResponse = ErrorKind("ErrInvalidSourceResponse")

	// ErrDoubleResponse indicates a source answered a single fetch more than
	// once, either by returning elements and also invoking the reply func or
	// by invoking the reply func multiple times.
	ErrDoubleResponse = ErrorKind("ErrDoubleResponse")

	// ErrSourceFetchFailed indicates a source reported an error through the
	// reply func.
	ErrSourceFetchFailed = ErrorKind("ErrSourceFetchFailed")

	// ErrRemovalUnsupported indicates an attempt to remove an element or
	// source from the filter.  Bloom filters can't unset bits without
	// evicting other members, so removal is not available.
	ErrRemovalUnsupported = ErrorKind("ErrRemovalUnsupported")

	// ErrShutdown indicates the manager stopped before the request could be
	// serviced.
	ErrShutdown = ErrorKind("ErrShutdown")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies an error related to managing the filter.  It has full
// support for errors.Is and errors.As, so the caller can ascertain the
// specific reason for the error by checking the underlying error kind as well
// as the cause reported by a source, if any.
type Error struct {
	Err         error
	Description string

	// Cause is the error reported by a source, if any.
	Cause error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped errors.
func (e Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// makeError creates an Error given a set of arguments.
func makeError(kind ErrorKind, desc string) Error {
	return Error{Err: kind, Description: desc}
}

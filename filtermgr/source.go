// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package filtermgr

import "fmt"

// ReplyFunc is the function a Source uses to asynchronously deliver the
// response to a fetch.  The elements must either be nil or a [][]byte.  They
// are copied before it returns, so the source may reuse them afterwards.
//
// It is safe to invoke from any goroutine, including from within the call to
// FetchElements it belongs to.
type ReplyFunc func(elements interface{}, err error)

// deferredResponse is the type of the Deferred sentinel.
type deferredResponse struct{}

// Deferred is returned by Source.FetchElements to indicate the response will be
// delivered later by invoking the provided ReplyFunc.
var Deferred interface{} = deferredResponse{}

// Source describes a pluggable producer of items the filter should match.
//
// The response to each fetch MUST be provided exactly once: either by
// returning it from FetchElements or by returning Deferred and later invoking
// the reply func.  Returning a response and also invoking the reply func, or
// invoking the reply func more than once, is a contract violation that results
// in ErrDoubleResponse.
//
// FetchElements is called from the manager's event handler and therefore must
// not block.  Sources that need to perform I/O should return Deferred and reply
// from another goroutine.  A source that never replies stalls the rebuild that
// requested the fetch, so sources backed by remote services should bound their
// own response time.
type Source interface {
	// FetchElements returns the full current set of elements the source
	// wants the filter to match as a [][]byte, nil when there are none, or
	// Deferred when the elements will be provided via reply.  Returned
	// elements are copied, like those provided via reply.
	//
	// The manager is always subscribed before a fetch is requested, so
	// every element added after the fetch takes its snapshot is also
	// delivered to the subscriber.
	FetchElements(reply ReplyFunc) interface{}

	// Subscribe registers the provided function to be invoked whenever the
	// source discovers new elements.  The returned function cancels the
	// subscription.
	//
	// Subscribe is called from the manager's event handler, so neither it
	// nor FetchElements may invoke the notify function directly.
	Subscribe(notify func(elements ...[]byte)) (cancel func())
}

// sourceEntry houses a registered source along with its notification
// subscription.
type sourceEntry struct {
	src Source

	// cancel cancels the new element subscription and subscribed tracks
	// whether the subscription is still live.  Both are owned by the event
	// handler.
	cancel     func()
	subscribed bool

	// registering is set while the registration fetch of the source is
	// outstanding.  Notifications received meanwhile are held in pending
	// until the registration either succeeds or fails.
	registering bool
	pending     [][]byte
}

// unsubscribe cancels the source's notification subscription if it has one.
func (e *sourceEntry) unsubscribe() {
	if !e.subscribed {
		return
	}
	e.subscribed = false
	if e.cancel != nil {
		e.cancel()
	}
}

// fetchPurpose identifies why a source is being fetched.
type fetchPurpose uint8

const (
	// fetchRegister is a fetch performed while registering a new source.
	fetchRegister fetchPurpose = iota

	// fetchRebuild is a re-fetch of an already registered source performed
	// while rebuilding the filter.
	fetchRebuild
)

// String returns the fetch purpose as a human-readable string.
func (p fetchPurpose) String() string {
	switch p {
	case fetchRegister:
		return "register"
	case fetchRebuild:
		return "rebuild"
	}
	return fmt.Sprintf("unknown purpose (%d)", uint8(p))
}

// fetchToken tracks a single fetch of a source.  The first response to arrive
// commits the outcome and any later response is a double response.
//
// All fields are owned by the event handler.
type fetchToken struct {
	entry     *sourceEntry
	purpose   fetchPurpose
	committed bool

	// reply is the channel the result of a registration is delivered on.
	// It is only set for registration fetches.
	reply chan error

	// rebuild is the rebuild the fetch belongs to.  It is only set for
	// rebuild fetches.
	rebuild *rebuildState
}

// copyResponse returns a deep copy of a fetch response when it is a list of
// elements and the response unchanged otherwise.
func copyResponse(resp interface{}) interface{} {
	elements, ok := resp.([][]byte)
	if !ok {
		return resp
	}
	copied := make([][]byte, 0, len(elements))
	for _, element := range elements {
		copied = append(copied, append([]byte(nil), element...))
	}
	return copied
}

// parseFetchResponse validates the shape of a fetch response and returns the
// elements it contains.
func parseFetchResponse(resp interface{}) ([][]byte, error) {
	switch elements := resp.(type) {
	case nil:
		return nil, nil
	case [][]byte:
		return elements, nil
	}

	str := fmt.Sprintf("source responded with %T; responses must be "+
		"[][]byte or nil", resp)
	return nil, makeError(ErrInvalidSourceResponse, str)
}

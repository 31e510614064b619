// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package filtermgr

import (
	"errors"
	"io"
	"testing"
)

// TestErrorKindStringer tests the stringized output for the ErrorKind type.
func TestErrorKindStringer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   ErrorKind
		want string
	}{
		{ErrConfiguration, "ErrConfiguration"},
		{ErrInvalidSourceResponse, "ErrInvalidSourceResponse"},
		{ErrDoubleResponse, "ErrDoubleResponse"},
		{ErrSourceFetchFailed, "ErrSourceFetchFailed"},
		{ErrRemovalUnsupported, "ErrRemovalUnsupported"},
		{ErrShutdown, "ErrShutdown"},
	}

	for i, test := range tests {
		result := test.in.Error()
		if result != test.want {
			t.Errorf("#%d: got: %s want: %s", i, result, test.want)
			continue
		}
	}
}

// TestErrors ensures the Error type works as expected with errors.Is and
// errors.As including any wrapped causes.
func TestErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     Error
		want    string
		wantIs  []error
		wantNot []error
	}{{
		name:    "kind only",
		err:     makeError(ErrDoubleResponse, "double response"),
		want:    "double response",
		wantIs:  []error{ErrDoubleResponse},
		wantNot: []error{ErrShutdown, io.EOF},
	}, {
		name: "with cause",
		err: Error{
			Err:         ErrSourceFetchFailed,
			Description: "fetch failed",
			Cause:       io.EOF,
		},
		want:    "fetch failed",
		wantIs:  []error{ErrSourceFetchFailed, io.EOF},
		wantNot: []error{ErrInvalidSourceResponse},
	}}

	for _, test := range tests {
		if got := test.err.Error(); got != test.want {
			t.Errorf("%q: unexpected error string: got %q, want %q",
				test.name, got, test.want)
		}
		for _, target := range test.wantIs {
			if !errors.Is(test.err, target) {
				t.Errorf("%q: expected error to be %v", test.name, target)
			}
		}
		for _, target := range test.wantNot {
			if errors.Is(test.err, target) {
				t.Errorf("%q: unexpected match for %v", test.name, target)
			}
		}

		var kind ErrorKind
		if !errors.As(test.err, &kind) {
			t.Errorf("%q: unable to extract error kind", test.name)
			continue
		}
		if kind != test.err.Err {
			t.Errorf("%q: unexpected kind: got %v, want %v", test.name,
				kind, test.err.Err)
		}
	}
}

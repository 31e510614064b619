// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package filtermgr

import (
	"math"
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil/bloom"
)

// TestCalcFPRate ensures the false positive estimate matches the expected
// values for a range of filter parameters.
func TestCalcFPRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		sizeBits  uint32
		hashFuncs uint32
		n         uint32
		want      float64
	}{{
		name:      "empty filter",
		sizeBits:  0,
		hashFuncs: 3,
		n:         100,
		want:      1,
	}, {
		name:      "59 bytes, 3 funcs, 100 items",
		sizeBits:  472,
		hashFuncs: 3,
		n:         100,
		want:      0.10407,
	}, {
		name:      "59 bytes, 3 funcs, 119 items",
		sizeBits:  472,
		hashFuncs: 3,
		n:         119,
		want:      0.14940,
	}, {
		name:      "59 bytes, 3 funcs, 120 items",
		sizeBits:  472,
		hashFuncs: 3,
		n:         120,
		want:      0.15193,
	}, {
		name:      "71 bytes, 3 funcs, 120 items",
		sizeBits:  568,
		hashFuncs: 3,
		n:         120,
		want:      0.10345,
	}}

	for _, test := range tests {
		got := calcFPRate(test.sizeBits, test.hashFuncs, test.n)
		if math.Abs(got-test.want) > 0.0005 {
			t.Errorf("%q: unexpected rate: got %v, want %v", test.name,
				got, test.want)
		}
	}
}

// TestNeedsResize ensures the resize policy triggers at the expected point.
func TestNeedsResize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		fpRate    float64
		target    float64
		threshold float64
		want      bool
	}{
		{"below target", 0.05, 0.1, 0.5, false},
		{"at target", 0.1, 0.1, 0.5, false},
		{"just below limit", 0.1494, 0.1, 0.5, false},
		{"just above limit", 0.1519, 0.1, 0.5, true},
		{"default policy over", 0.0015, 0.001, 0.4, true},
		{"default policy under", 0.0013, 0.001, 0.4, false},
	}

	for _, test := range tests {
		got := needsResize(test.fpRate, test.target, test.threshold)
		if got != test.want {
			t.Errorf("%q: got %v, want %v", test.name, got, test.want)
		}
	}
}

// TestFilterElements ensures filters are never sized for fewer than the
// minimum number of elements.
func TestFilterElements(t *testing.T) {
	t.Parallel()

	tests := []struct {
		count uint32
		want  uint32
	}{
		{0, minFilterElements},
		{1, minFilterElements},
		{99, minFilterElements},
		{100, 100},
		{120, 120},
		{100000, 100000},
	}

	for _, test := range tests {
		if got := filterElements(test.count); got != test.want {
			t.Errorf("filterElements(%d): got %d, want %d", test.count,
				got, test.want)
		}
	}
}

// TestFilterSizing ensures filters created for the target rate used by the
// resize tests have the sizes the estimates above rely on.
func TestFilterSizing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		elements  uint32
		wantBytes int
		wantFuncs uint32
	}{
		{100, 59, 3},
		{120, 71, 3},
	}

	for _, test := range tests {
		f := bloom.NewFilter(test.elements, 0, 0.1, wire.BloomUpdateNone)
		msg := f.MsgFilterLoad()
		if len(msg.Filter) != test.wantBytes {
			t.Errorf("%d elements: got %d bytes, want %d", test.elements,
				len(msg.Filter), test.wantBytes)
		}
		if msg.HashFuncs != test.wantFuncs {
			t.Errorf("%d elements: got %d hash funcs, want %d",
				test.elements, msg.HashFuncs, test.wantFuncs)
		}
	}
}

// TestFilterParams ensures the filter parameters computed without allocating a
// filter match those of filters created by bloom.NewFilter, including when the
// size and rate limits apply.
func TestFilterParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		elements uint32
		fpRate   float64
	}{
		{"floor", 100, 0.1},
		{"default rate", 120, DefaultFalsePositiveRate},
		{"large", 25000, 0.0001},
		{"max size", 1000000, DefaultFalsePositiveRate},
		{"rate below min", 500, 0},
		{"rate above max", 500, 2},
	}

	for _, test := range tests {
		sizeBits, hashFuncs := filterParams(test.elements, test.fpRate)
		msg := bloom.NewFilter(test.elements, 0, test.fpRate,
			wire.BloomUpdateNone).MsgFilterLoad()
		if want := uint32(len(msg.Filter)) * 8; sizeBits != want {
			t.Errorf("%q: got %d bits, want %d", test.name, sizeBits, want)
		}
		if hashFuncs != msg.HashFuncs {
			t.Errorf("%q: got %d hash funcs, want %d", test.name,
				hashFuncs, msg.HashFuncs)
		}
	}
}

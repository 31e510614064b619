// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package filtermgr

import (
	"math"

	"github.com/btcsuite/btcd/wire"
)

// minFilterElements is the minimum number of items a filter is sized for and
// the minimum number of items assumed to be in a filter when estimating its
// false positive rate.  It keeps small filters from producing degenerate
// estimates right after they are created.
const minFilterElements = 100

// calcFPRate returns the estimated false positive rate of a bloom filter with
// the provided size in bits and number of hash functions after n items have
// been inserted.
//
// It uses the standard approximation (1 - e^(-k*n/m))^k.
func calcFPRate(sizeBits, hashFuncs, n uint32) float64 {
	if sizeBits == 0 {
		return 1
	}
	k := float64(hashFuncs)
	exp := math.Exp(-k * float64(n) / float64(sizeBits))
	return math.Pow(1-exp, k)
}

// filterParams returns the size in bits and the number of hash functions of a
// filter created by bloom.NewFilter for n items at the provided false positive
// rate.  It uses the same formulas and limits without allocating the filter.
func filterParams(n uint32, fpRate float64) (sizeBits, hashFuncs uint32) {
	fpRate = math.Max(math.Min(fpRate, 1), 1e-9)

	// m = -(n*ln(p) / ln(2)^2) bits clamped to the maximum filter size and
	// truncated to whole bytes.
	dataLen := uint32(-1 * float64(n) * math.Log(fpRate) / (math.Ln2 * math.Ln2))
	if dataLen > wire.MaxFilterLoadFilterSize*8 {
		dataLen = wire.MaxFilterLoadFilterSize * 8
	}
	sizeBits = dataLen / 8 * 8

	// k = (m/n) * ln(2) clamped to the maximum number of hash functions.
	hashFuncs = uint32(float64(sizeBits) / float64(n) * math.Ln2)
	if hashFuncs > wire.MaxFilterLoadHashFuncs {
		hashFuncs = wire.MaxFilterLoadHashFuncs
	}
	return sizeBits, hashFuncs
}

// filterElements returns the number of items the filter should be sized for or
// assumed to contain given the number of insertions.
func filterElements(count uint32) uint32 {
	if count < minFilterElements {
		return minFilterElements
	}
	return count
}

// needsResize returns whether or not a filter with the given estimated false
// positive rate has drifted far enough above the target rate to warrant a
// rebuild.  A rate exceeding the target by less than the threshold fraction of
// the target is tolerated so insertions near the boundary do not continually
// force rebuilds.
func needsResize(fpRate, target, threshold float64) bool {
	return fpRate-target >= threshold*target
}

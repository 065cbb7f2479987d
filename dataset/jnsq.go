// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package dataset

import (
	"math/bits"

	"github.com/grailbio/laid/bitword"
)

// The JNSQ ("join-not-same-question") pass turns a dataset that is not
// class-consistent into one that is, by appending a per-row inconsistency
// counter as extra attribute bits.  Rows that agree on every attribute but
// carry different classes receive distinct counter values, so the widened
// attribute projection becomes a function of class.

// JNSQWidth returns the field width needed for the given maximum
// inconsistency value, ceil(log2(maxInconsistency+1)).
func JNSQWidth(maxInconsistency int) int {
	return bits.Len(uint(maxInconsistency))
}

// writeJNSQField stores v into the width-bit field starting at bit position
// start of the row.  Values wider than one bit are written bit-reversed;
// this is the legacy encoding and is preserved for bit-exact compatibility
// with data prepared by earlier versions of the engine.  A field that
// straddles a word boundary is split, high bits in the low end of the first
// word.
func writeJNSQField(row []uint64, start, width int, v uint64) {
	if width > 1 {
		v = bitword.Reverse(v, width)
	}
	firstWidth := width
	if rem := bitword.BitsPerWord - start%bitword.BitsPerWord; firstWidth > rem {
		firstWidth = rem
	}
	bitword.Deposit(row, start, firstWidth, v>>uint(width-firstWidth))
	if firstWidth < width {
		bitword.Deposit(row, start+firstWidth, width-firstWidth, v)
	}
}

// ApplyJNSQ writes the inconsistency counter of every row into a JNSQ field
// of BitsForClass bits placed immediately after the attribute bits, and
// returns the maximum counter value encountered.  The dataset must be
// sorted, deduplicated, and class-indexed: the field may claim bits shared
// with the class tail, which is dead after FillClassIndex.
func (d *Dataset) ApplyJNSQ() int {
	maxInconsistency := 0
	inconsistency := 0
	for i := 0; i < d.NRows; i++ {
		if i > 0 && d.SameAttributes(i, i-1) {
			inconsistency++
			if inconsistency > maxInconsistency {
				maxInconsistency = inconsistency
			}
		} else {
			inconsistency = 0
		}
		writeJNSQField(d.Row(i), d.NAttrs, d.BitsForClass, uint64(inconsistency))
	}
	return maxInconsistency
}

// SetJNSQBits finalizes the JNSQ width: the first j bits of the field become
// attribute bits.  With j = JNSQWidth(ApplyJNSQ()) the widened attributes
// distinguish every pair of rows, since equal-attribute runs carry distinct
// counters below 2^j and the reversed encoding stores counter bit k at
// attribute position NAttrs+k.
func (d *Dataset) SetJNSQBits(j int) {
	d.JNSQBits = j
	d.NAttrs += j
}

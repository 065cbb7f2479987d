// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cover

import (
	"math/bits"

	"github.com/grailbio/base/log"
	"github.com/grailbio/laid/bitword"
	"github.com/grailbio/laid/dataset"
)

// wordsPerCycle tiles the totals loops: each pass over the pair slice
// touches this many row words, so the per-attribute counters in play stay
// cache resident.  A tuning constant, not a contract.
const wordsPerCycle = 8

// accumulateTotals adds delta to totals[j] for every attribute j that
// discriminates a selected pair in the n-row slice at start.  sel selects
// pairs by their covered-mask bit: pairs whose bit equals want are
// processed, and a nil sel processes every pair.
func accumulateTotals(d *dataset.Dataset, start PairCursor, n int64, sel []uint64, want bool, delta int64, totals []int64) {
	nw := d.AttrWords()
	tailMask := d.AttrTailMask()
	for g := 0; g < nw; g += wordsPerCycle {
		gEnd := g + wordsPerCycle
		if gEnd > nw {
			gEnd = nw
		}
		cur := start
		for p := int64(0); p < n; p++ {
			if sel != nil && bitword.Test(sel, int(p)) != want {
				cur.Next(d)
				continue
			}
			a := d.ClassRow(cur.ClassA, cur.IdxA)
			b := d.ClassRow(cur.ClassB, cur.IdxB)
			for w := g; w < gEnd; w++ {
				lxor := a[w] ^ b[w]
				if w == nw-1 {
					lxor &= tailMask
				}
				base := w * bitword.BitsPerWord
				for lxor != 0 {
					totals[base+63-bits.TrailingZeros64(lxor)] += delta
					lxor &= lxor - 1
				}
			}
			cur.Next(d)
		}
	}
}

// InitialTotals computes the per-attribute discrimination counts of the
// slice from scratch: totals[j] = number of pairs whose XOR has bit j set.
func InitialTotals(d *dataset.Dataset, start PairCursor, n int64, totals []int64) {
	for i := range totals {
		totals[i] = 0
	}
	accumulateTotals(d, start, n, nil, false, 1, totals)
}

// RebuildUncovered recomputes totals counting only pairs whose covered bit
// is clear.  Used when a round covers most of the remaining pairs, so
// rescanning the uncovered minority is cheaper than subtracting the
// majority.
func RebuildUncovered(d *dataset.Dataset, start PairCursor, n int64, covered []uint64, totals []int64) {
	for i := range totals {
		totals[i] = 0
	}
	accumulateTotals(d, start, n, covered, false, 1, totals)
}

// SubtractCovered decrements totals by the contributions of the pairs whose
// mask bit is set, leaving the counts of the untouched majority intact.
// Totals must not go negative; a negative count means the covered-lines
// bookkeeping diverged from the pair slice.
func SubtractCovered(d *dataset.Dataset, start PairCursor, n int64, mask []uint64, totals []int64) {
	accumulateTotals(d, start, n, mask, true, -1, totals)
	for j, v := range totals {
		if v < 0 {
			log.Panicf("attribute %d: total %d after subtract", j, v)
		}
	}
}

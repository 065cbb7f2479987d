// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cover

import (
	"sort"

	"github.com/grailbio/base/bitset"
	"github.com/grailbio/base/log"
	"github.com/grailbio/laid/bitword"
	"github.com/grailbio/laid/comm"
	"github.com/grailbio/laid/dataset"
)

// Pick records one round of the greedy selection.
type Pick struct {
	// Attr is the attribute selected this round.
	Attr int
	// Covered is the number of previously uncovered pairs the attribute
	// discriminates.
	Covered int64
	// Uncovered is the number of pairs left uncovered after this round.
	Uncovered int64
}

// Solution is the cover emitted by the global root.
type Solution struct {
	// Attrs is the selected attribute set, ascending.
	Attrs []int
	// Picks holds the selections in round order.
	Picks []Pick
	// Rounds is the number of attributes picked, equal to len(Attrs).
	Rounds int
	// TotalPairs is L, the virtual-matrix row count the cover discriminates.
	TotalPairs int64
	// NAttrs is the widened attribute count the selection drew from.
	NAttrs int
}

// Solve runs the distributed greedy set cover over the prepared dataset.
// Every rank of the world must call it with the same dataset view; the
// global root returns the solution and all other ranks return nil.
//
// Each round is one bulk-synchronous superstep: local totals reduce to the
// root, the root picks the attribute covering the most still-uncovered
// pairs (lowest index on ties) and broadcasts it, and every rank folds the
// newly covered pairs of its slice out of its totals, by subtraction or by
// rebuild, whichever touches fewer pairs.
func Solve(r *comm.Rank, d *dataset.Dataset) *Solution {
	l := d.TotalPairs()
	sOffset := BlockLow(r.ID(), r.Size(), l)
	sSize := BlockSize(r.ID(), r.Size(), l)
	if sSize < 0 || sSize > l {
		log.Panicf("rank %d: slice size %d outside [0, %d]", r.ID(), sSize, l)
	}
	log.Debug.Printf("rank %d: pairs [%d, %d)", r.ID(), sOffset, sOffset+sSize)

	totals := make([]int64, d.NAttrs)
	var (
		start   PairCursor
		covered []uint64
		nCov    int64
	)
	if sSize > 0 {
		start = SeekPair(d, sOffset)
		covered = make([]uint64, bitword.WordsFor(int(sSize)))
		InitialTotals(d, start, sSize, totals)
	}

	// Root-only cover state.
	var (
		selected        []uintptr
		picked          []int
		picks           []Pick
		globalUncovered = l
	)
	if r.IsGlobalRoot() {
		selected = make([]uintptr, (d.NAttrs+bitset.BitsPerWord-1)/bitset.BitsPerWord)
	}

	for {
		global := r.ReduceSumInt64s(totals)
		best := -1
		if r.IsGlobalRoot() {
			best = decide(global, globalUncovered, selected)
		}
		best = r.BroadcastInt(best, comm.GlobalRoot)
		if best < 0 {
			break
		}
		if r.IsGlobalRoot() {
			bitset.Set(selected, best)
			picked = append(picked, best)
			globalUncovered -= global[best]
			if globalUncovered < 0 {
				log.Panicf("uncovered count %d after selecting attribute %d", globalUncovered, best)
			}
			picks = append(picks, Pick{Attr: best, Covered: global[best], Uncovered: globalUncovered})
			log.Debug.Printf("round %d: attribute %d covers %d pairs, %d uncovered",
				len(picked), best, global[best], globalUncovered)
		}
		if sSize == 0 {
			continue
		}
		col := Column(d, start, best, sSize)
		for w := range col {
			col[w] &^= covered[w]
		}
		newly := int64(bitword.Count(col))
		if remainder := sSize - nCov - newly; newly < remainder {
			SubtractCovered(d, start, sSize, col, totals)
			for w := range covered {
				covered[w] |= col[w]
			}
		} else {
			for w := range covered {
				covered[w] |= col[w]
			}
			RebuildUncovered(d, start, sSize, covered, totals)
		}
		nCov += newly
	}

	if !r.IsGlobalRoot() {
		return nil
	}
	sort.Ints(picked)
	return &Solution{Attrs: picked, Picks: picks, Rounds: len(picks), TotalPairs: l, NAttrs: d.NAttrs}
}

// decide picks the next attribute on the root: the first maximum of the
// reduced totals, or -1 when no attribute discriminates an uncovered pair.
func decide(global []int64, globalUncovered int64, selected []uintptr) int {
	best := 0
	for j, v := range global {
		if v < 0 {
			log.Panicf("attribute %d: negative reduced total %d", j, v)
		}
		if v > global[best] {
			best = j
		}
	}
	if global[best] == 0 || globalUncovered == 0 {
		return -1
	}
	if bitset.Test(selected, best) {
		log.Panicf("attribute %d reselected with total %d", best, global[best])
	}
	return best
}

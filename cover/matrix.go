// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cover

import (
	"github.com/grailbio/laid/bitword"
	"github.com/grailbio/laid/dataset"
)

// The virtual disjoint matrix is never materialized: any line is the XOR of
// the two observations its cursor pairs, and any column slice is generated
// by walking the enumerator and testing one attribute bit per pair.  Both
// views share that single primitive; recomputation is the price of not
// persisting L rows.

// Line writes the virtual-matrix row at cur into out: the XOR of the paired
// observations over the attribute words, with class and padding bits of the
// tail word cleared.  out must have d.AttrWords() words.
func Line(d *dataset.Dataset, cur PairCursor, out []uint64) {
	a := d.ClassRow(cur.ClassA, cur.IdxA)
	b := d.ClassRow(cur.ClassB, cur.IdxB)
	nw := d.AttrWords()
	for w := 0; w < nw; w++ {
		out[w] = a[w] ^ b[w]
	}
	out[nw-1] &= d.AttrTailMask()
}

// Column generates the attr column of the virtual matrix for the n rows
// starting at cursor start.  Bit p of the result is set iff the pair at row
// start+p differs in attribute attr.  The result is packed most significant
// bit first within each word; downstream covered-line masks depend on that
// packing.
func Column(d *dataset.Dataset, start PairCursor, attr int, n int64) []uint64 {
	out := make([]uint64, bitword.WordsFor(int(n)))
	word := attr / bitword.BitsPerWord
	shift := uint(63 - attr%bitword.BitsPerWord)
	cur := start
	for p := int64(0); p < n; p++ {
		a := d.ClassRow(cur.ClassA, cur.IdxA)
		b := d.ClassRow(cur.ClassB, cur.IdxB)
		out[p/bitword.BitsPerWord] |= ((a[word] ^ b[word]) >> shift & 1) << uint(63-p%bitword.BitsPerWord)
		cur.Next(d)
	}
	return out
}

// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package dataset holds a bit-packed observation matrix and the preparation
// steps that make it usable by the cover engine: lexicographic sort,
// duplicate removal, class indexing, and JNSQ disambiguation.
//
// A row is WordsPerRow 64-bit words: NAttrs attribute bits packed from the
// most significant bit of the first word, and BitsForClass class bits in the
// least significant bits of the final word.  The bits between the attribute
// tail and the class field are zero on input; the JNSQ pass may claim them.
package dataset

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/laid/bitword"
)

// Dataset is an in-memory bit-packed observation matrix.  The preparation
// methods (Sort, Dedup, FillClassIndex, ApplyJNSQ, SetJNSQBits) must be
// called in that order, after which the dataset is immutable.
type Dataset struct {
	// Name is the dataset name from the container, for diagnostics.
	Name string
	// NRows is the number of observations.  Dedup may lower it.
	NRows int
	// NAttrs is the number of attribute bits per row.  SetJNSQBits raises it
	// by the JNSQ width.
	NAttrs int
	// NClasses is the number of classes, K.
	NClasses int
	// BitsForClass is the width of the class field, C.
	BitsForClass int
	// WordsPerRow is the storage stride of Rows, fixed at
	// ceil((NAttrs+BitsForClass)/64) for the input attribute count.
	WordsPerRow int
	// JNSQBits is the JNSQ field width J, zero until SetJNSQBits.
	JNSQBits int
	// Rows is the row-major packed matrix, NRows*WordsPerRow words.
	Rows []uint64

	classRows [][]int32
}

// New creates a dataset backed by the given packed rows.  The slice is
// retained, not copied.
func New(name string, rows []uint64, nRows, nAttrs, nClasses, bitsForClass, wordsPerRow int) *Dataset {
	return &Dataset{
		Name:         name,
		NRows:        nRows,
		NAttrs:       nAttrs,
		NClasses:     nClasses,
		BitsForClass: bitsForClass,
		WordsPerRow:  wordsPerRow,
		Rows:         rows[:nRows*wordsPerRow],
	}
}

// Row returns row i as a WordsPerRow-word slice aliasing the backing store.
func (d *Dataset) Row(i int) []uint64 {
	base := i * d.WordsPerRow
	return d.Rows[base : base+d.WordsPerRow]
}

// Class returns the class label of row i, read from the class field.
func (d *Dataset) Class(i int) int {
	last := d.Row(i)[d.WordsPerRow-1]
	return int(last & (1<<uint(d.BitsForClass) - 1))
}

// ClassCount returns n_k, the number of observations of class k.  Valid
// after FillClassIndex.
func (d *Dataset) ClassCount(k int) int {
	return len(d.classRows[k])
}

// ClassRow returns observation idx of class k.  Valid after FillClassIndex.
func (d *Dataset) ClassRow(k, idx int) []uint64 {
	return d.Row(int(d.classRows[k][idx]))
}

// ClassRowIndex returns the dataset row index of observation idx of class k.
func (d *Dataset) ClassRowIndex(k, idx int) int {
	return int(d.classRows[k][idx])
}

// AttrWords returns the number of leading row words that carry attribute
// bits.  After SetJNSQBits this may be smaller than WordsPerRow: the cover
// phase never needs the class tail.
func (d *Dataset) AttrWords() int {
	return bitword.WordsFor(d.NAttrs)
}

// AttrTailMask returns the mask selecting the attribute bits of word
// AttrWords()-1, zeroing any class or padding bits that share it.
func (d *Dataset) AttrTailMask() uint64 {
	tail := d.NAttrs - (d.AttrWords()-1)*bitword.BitsPerWord
	return bitword.LeadingMask(tail)
}

type rowSorter struct {
	rows []uint64
	w    int
	tmp  []uint64
}

func (s *rowSorter) Len() int { return len(s.rows) / s.w }

// Less compares two rows lexicographically, most significant word first.
// With the class field in the row tail, rows with equal attributes end up
// adjacent, ordered by class; dedup and JNSQ depend on that adjacency.
func (s *rowSorter) Less(i, j int) bool {
	a := s.rows[i*s.w : (i+1)*s.w]
	b := s.rows[j*s.w : (j+1)*s.w]
	for w := 0; w < s.w; w++ {
		if a[w] != b[w] {
			return a[w] < b[w]
		}
	}
	return false
}

func (s *rowSorter) Swap(i, j int) {
	a := s.rows[i*s.w : (i+1)*s.w]
	b := s.rows[j*s.w : (j+1)*s.w]
	copy(s.tmp, a)
	copy(a, b)
	copy(b, s.tmp)
}

// Sort orders the rows lexicographically by their full bit pattern.
func (d *Dataset) Sort() {
	sort.Sort(&rowSorter{rows: d.Rows, w: d.WordsPerRow, tmp: make([]uint64, d.WordsPerRow)})
}

func rowsEqual(a, b []uint64) bool {
	for w := range a {
		if a[w] != b[w] {
			return false
		}
	}
	return true
}

// Dedup removes rows that are bit-identical (attributes and class) to the
// immediately preceding row, and returns the number removed.  Rows that
// agree on attributes but not class are kept; they are the inconsistencies
// the JNSQ pass resolves.  The dataset must be sorted.
func (d *Dataset) Dedup() int {
	if d.NRows == 0 {
		return 0
	}
	w := d.WordsPerRow
	kept := 1
	for i := 1; i < d.NRows; i++ {
		row := d.Rows[i*w : (i+1)*w]
		prev := d.Rows[(kept-1)*w : kept*w]
		if rowsEqual(row, prev) {
			continue
		}
		if kept != i {
			copy(d.Rows[kept*w:(kept+1)*w], row)
		}
		kept++
	}
	removed := d.NRows - kept
	d.NRows = kept
	d.Rows = d.Rows[:kept*w]
	return removed
}

// SameAttributes reports whether rows i and j agree on every attribute bit.
// Class and JNSQ bits are excluded from the comparison.
func (d *Dataset) SameAttributes(i, j int) bool {
	a, b := d.Row(i), d.Row(j)
	whole := d.NAttrs / bitword.BitsPerWord
	for w := 0; w < whole; w++ {
		if a[w] != b[w] {
			return false
		}
	}
	if rem := d.NAttrs % bitword.BitsPerWord; rem != 0 {
		mask := bitword.LeadingMask(rem)
		if (a[whole]^b[whole])&mask != 0 {
			return false
		}
	}
	return true
}

// FillClassIndex builds the per-class row index in a single pass over the
// sorted, deduplicated rows.  Rows of one class keep their dataset order.
// It fails when a row's class field names a class >= K.
//
// The full-row sort does not leave classes contiguous (the class field is
// the least significant part of the comparison), so the index is a row-index
// list per class rather than a base pointer and a count.
func (d *Dataset) FillClassIndex() error {
	d.classRows = make([][]int32, d.NClasses)
	for i := 0; i < d.NRows; i++ {
		c := d.Class(i)
		if c >= d.NClasses {
			return errors.E(errors.Invalid,
				fmt.Sprintf("dataset %s: row %d: class %d out of range [0, %d)", d.Name, i, c, d.NClasses))
		}
		d.classRows[c] = append(d.classRows[c], int32(i))
	}
	return nil
}

// TotalPairs returns L, the virtual disjoint-matrix row count
// sum_{a<b} n_a*n_b.  Valid after FillClassIndex.
func (d *Dataset) TotalPairs() int64 {
	var tot int64
	for a := 0; a < d.NClasses; a++ {
		for b := a + 1; b < d.NClasses; b++ {
			tot += int64(d.ClassCount(a)) * int64(d.ClassCount(b))
		}
	}
	return tot
}

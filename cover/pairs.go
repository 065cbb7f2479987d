// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package cover implements the greedy set-cover core: the class-pair
// enumerator over the virtual disjoint matrix, the bit-parallel
// attribute-total engine, the per-rank work partition, and the round-based
// driver.
package cover

import (
	"github.com/grailbio/base/log"
	"github.com/grailbio/laid/dataset"
)

// PairCursor identifies one row of the virtual disjoint matrix: the ordered
// crossing of observation IdxA of ClassA with observation IdxB of ClassB.
// Row order is the nested loop
//
//	for ClassA { for IdxA { for ClassB > ClassA { for IdxB } } }
//
// with IdxB advancing fastest.  The partitioner and every matrix generator
// depend on this order.
type PairCursor struct {
	ClassA, IdxA, ClassB, IdxB int
}

// SeekPair returns the cursor for linear row l of the virtual matrix.
// For two classes this is a division; the general case walks the loop
// structure a class block at a time.  It is called once per rank at setup.
func SeekPair(d *dataset.Dataset, l int64) PairCursor {
	k := d.NClasses
	if l < 0 || l >= d.TotalPairs() {
		log.Panicf("pair index %d out of range [0, %d)", l, d.TotalPairs())
	}
	if k == 2 {
		n1 := int64(d.ClassCount(1))
		return PairCursor{0, int(l / n1), 1, int(l % n1)}
	}
	rem := l
	for classA := 0; classA < k-1; classA++ {
		var inner int64
		for b := classA + 1; b < k; b++ {
			inner += int64(d.ClassCount(b))
		}
		if inner == 0 {
			continue
		}
		block := int64(d.ClassCount(classA)) * inner
		if rem >= block {
			rem -= block
			continue
		}
		idxA := rem / inner
		rem %= inner
		for classB := classA + 1; ; classB++ {
			n := int64(d.ClassCount(classB))
			if rem < n {
				return PairCursor{classA, int(idxA), classB, int(rem)}
			}
			rem -= n
		}
	}
	log.Panicf("pair index %d not reached; class counts inconsistent", l)
	return PairCursor{}
}

// Next advances the cursor to the following virtual-matrix row, skipping
// empty classes.  Advancing past the last row leaves ClassA at the class
// count; callers bound their walks by the slice size and never observe that
// state.
func (c *PairCursor) Next(d *dataset.Dataset) {
	k := d.NClasses
	c.IdxB++
	if c.ClassB < k && c.IdxB < d.ClassCount(c.ClassB) {
		return
	}
	c.IdxB = 0
	for c.ClassB++; c.ClassB < k; c.ClassB++ {
		if d.ClassCount(c.ClassB) > 0 {
			return
		}
	}
	c.IdxA++
	for c.ClassA < k-1 {
		if c.IdxA < d.ClassCount(c.ClassA) {
			for c.ClassB = c.ClassA + 1; c.ClassB < k; c.ClassB++ {
				if d.ClassCount(c.ClassB) > 0 {
					return
				}
			}
			// No later class has observations, so no IdxA of this ClassA
			// emits anything.
		}
		c.ClassA++
		c.IdxA = 0
	}
	c.ClassA = k
}

// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cover

import (
	"fmt"
	"runtime"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/laid/bitword"
	"github.com/grailbio/laid/dataset"
)

// VerifySolution checks that the selected attributes discriminate every
// virtual-matrix row: for each class pair there is a selected bit set in the
// pair's XOR.  The scan is sharded over CPUs; each shard is independent, so
// the bounded traverse pool is safe here, unlike the rank bodies.
func VerifySolution(d *dataset.Dataset, attrs []int) error {
	l := d.TotalPairs()
	if l == 0 {
		return nil
	}
	mask := make([]uint64, d.AttrWords())
	for _, j := range attrs {
		bitword.Set(mask, j)
	}
	nShard := runtime.NumCPU()
	if int64(nShard) > l {
		nShard = int(l)
	}
	return traverse.Each(nShard, func(shard int) error {
		lo := BlockLow(shard, nShard, l)
		n := BlockSize(shard, nShard, l)
		cur := SeekPair(d, lo)
		line := make([]uint64, d.AttrWords())
		for p := int64(0); p < n; p++ {
			Line(d, cur, line)
			hit := false
			for w := range line {
				if line[w]&mask[w] != 0 {
					hit = true
					break
				}
			}
			if !hit {
				return errors.E(errors.Precondition, fmt.Sprintf(
					"pair %d (class %d obs %d = row %d x class %d obs %d = row %d) not discriminated by the solution",
					lo+p, cur.ClassA, cur.IdxA, d.ClassRowIndex(cur.ClassA, cur.IdxA),
					cur.ClassB, cur.IdxB, d.ClassRowIndex(cur.ClassB, cur.IdxB)))
			}
			cur.Next(d)
		}
		return nil
	})
}

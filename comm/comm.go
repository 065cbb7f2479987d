// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package comm provides the bulk-synchronous substrate the cover engine runs
// on: a World of ranks, grouped into logical nodes, communicating only
// through collectives (barrier, reduce-to-root, broadcast).  Every rank must
// call every collective in the same order; a rank with no local work still
// participates with zero contributions.
package comm

import (
	"fmt"
	"sync"

	"github.com/grailbio/base/errorreporter"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// GlobalRoot is the rank that owns reductions and the solution.
const GlobalRoot = 0

// World is a fixed-size group of ranks.  Create one with NewWorld and drive
// it with Run; the per-rank body receives a Rank whose collective calls pair
// up with every other rank's.
type World struct {
	size         int
	ranksPerNode int

	global *barrier
	nodes  []*node

	mu       sync.Mutex
	redBuf   []int64
	bcastInt int
}

type node struct {
	id      int
	size    int
	barrier *barrier

	mu   sync.Mutex
	slot interface{}
	meta Meta
}

// Meta is the dataset geometry broadcast over a node after each mutation of
// the node's shared dataset.
type Meta struct {
	NRows        int
	NAttrs       int
	NClasses     int
	BitsForClass int
	WordsPerRow  int
	JNSQBits     int
}

// NewWorld creates a world of size ranks grouped into nodes of up to
// ranksPerNode ranks each.
func NewWorld(size, ranksPerNode int) (*World, error) {
	if size <= 0 || ranksPerNode <= 0 {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("world geometry %d ranks, %d per node", size, ranksPerNode))
	}
	w := &World{
		size:         size,
		ranksPerNode: ranksPerNode,
		global:       newBarrier(size),
	}
	nNodes := (size + ranksPerNode - 1) / ranksPerNode
	for n := 0; n < nNodes; n++ {
		nodeSize := ranksPerNode
		if rem := size - n*ranksPerNode; rem < nodeSize {
			nodeSize = rem
		}
		w.nodes = append(w.nodes, &node{id: n, size: nodeSize, barrier: newBarrier(nodeSize)})
	}
	return w, nil
}

// Size returns the number of ranks in the world.
func (w *World) Size() int { return w.size }

// Run executes fn once per rank, each on its own goroutine, and returns the
// first error any rank reported.  Collectives require all ranks to be live
// simultaneously, so ranks are plain goroutines rather than a bounded pool.
func (w *World) Run(fn func(r *Rank) error) error {
	var (
		wg  sync.WaitGroup
		err errorreporter.T
	)
	for id := 0; id < w.size; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			err.Set(fn(&Rank{world: w, id: id, node: w.nodes[id/w.ranksPerNode]}))
		}(id)
	}
	wg.Wait()
	return err.Err()
}

// Rank is one participant in a World.
type Rank struct {
	world *World
	id    int
	node  *node
}

// ID returns this rank's index in [0, Size).
func (r *Rank) ID() int { return r.id }

// Size returns the world size.
func (r *Rank) Size() int { return r.world.size }

// Node returns the index of the node this rank belongs to.
func (r *Rank) Node() int { return r.node.id }

// LocalID returns this rank's index within its node.
func (r *Rank) LocalID() int { return r.id % r.world.ranksPerNode }

// LocalSize returns the number of ranks on this rank's node.
func (r *Rank) LocalSize() int { return r.node.size }

// IsGlobalRoot reports whether this rank owns reductions.
func (r *Rank) IsGlobalRoot() bool { return r.id == GlobalRoot }

// IsLocalRoot reports whether this rank owns its node's shared dataset slot.
func (r *Rank) IsLocalRoot() bool { return r.LocalID() == 0 }

// Barrier blocks until every rank in the world has entered it.
func (r *Rank) Barrier() {
	r.world.global.wait()
}

// LocalBarrier blocks until every rank on this node has entered it.
func (r *Rank) LocalBarrier() {
	r.node.barrier.wait()
}

// ReduceSumInt64s element-wise sums the contributions of all ranks and
// returns the total on the global root; every other rank gets nil.  All
// contributions must have the same length.
func (r *Rank) ReduceSumInt64s(contrib []int64) []int64 {
	w := r.world
	w.mu.Lock()
	if w.redBuf == nil {
		w.redBuf = make([]int64, len(contrib))
	}
	if len(w.redBuf) != len(contrib) {
		log.Panicf("rank %d: reduction length %d, want %d", r.id, len(contrib), len(w.redBuf))
	}
	for i, v := range contrib {
		w.redBuf[i] += v
	}
	w.mu.Unlock()
	w.global.wait()
	var out []int64
	if r.id == GlobalRoot {
		out = w.redBuf
		w.redBuf = nil
	}
	w.global.wait()
	return out
}

// BroadcastInt returns v as provided by the root rank.
func (r *Rank) BroadcastInt(v int, root int) int {
	w := r.world
	if r.id == root {
		w.mu.Lock()
		w.bcastInt = v
		w.mu.Unlock()
	}
	w.global.wait()
	w.mu.Lock()
	v = w.bcastInt
	w.mu.Unlock()
	w.global.wait()
	return v
}

// barrier is a reusable counting barrier.
type barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	n       int
	waiting int
	gen     int
}

func newBarrier(n int) *barrier {
	b := &barrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *barrier) wait() {
	b.mu.Lock()
	gen := b.gen
	b.waiting++
	if b.waiting == b.n {
		b.waiting = 0
		b.gen++
		b.cond.Broadcast()
	} else {
		for gen == b.gen {
			b.cond.Wait()
		}
	}
	b.mu.Unlock()
}

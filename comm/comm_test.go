// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package comm_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/grailbio/laid/comm"
	"github.com/stretchr/testify/require"
)

func TestWorldGeometry(t *testing.T) {
	w, err := comm.NewWorld(5, 2)
	require.NoError(t, err)
	require.Equal(t, 5, w.Size())

	var mu sync.Mutex
	type geom struct{ node, localID, localSize int }
	got := map[int]geom{}
	require.NoError(t, w.Run(func(r *comm.Rank) error {
		mu.Lock()
		got[r.ID()] = geom{r.Node(), r.LocalID(), r.LocalSize()}
		mu.Unlock()
		return nil
	}))
	require.Equal(t, map[int]geom{
		0: {0, 0, 2},
		1: {0, 1, 2},
		2: {1, 0, 2},
		3: {1, 1, 2},
		4: {2, 0, 1},
	}, got)
}

func TestWorldGeometryInvalid(t *testing.T) {
	_, err := comm.NewWorld(0, 1)
	require.Error(t, err)
	_, err = comm.NewWorld(4, 0)
	require.Error(t, err)
}

func TestReduceSumInt64s(t *testing.T) {
	w, err := comm.NewWorld(7, 3)
	require.NoError(t, err)
	var rootSum []int64
	require.NoError(t, w.Run(func(r *comm.Rank) error {
		// Two consecutive reductions: buffers must not leak between rounds.
		for round := 0; round < 2; round++ {
			contrib := []int64{int64(r.ID()), 1, 0}
			sum := r.ReduceSumInt64s(contrib)
			if r.IsGlobalRoot() {
				if round == 1 {
					rootSum = sum
				}
			} else if sum != nil {
				t.Errorf("rank %d: non-nil reduction result", r.ID())
			}
		}
		return nil
	}))
	require.Equal(t, []int64{21, 7, 0}, rootSum)
}

func TestBroadcastInt(t *testing.T) {
	w, err := comm.NewWorld(4, 4)
	require.NoError(t, err)
	var nSeen int64
	require.NoError(t, w.Run(func(r *comm.Rank) error {
		for round := 0; round < 3; round++ {
			v := -1
			if r.ID() == comm.GlobalRoot {
				v = 100 + round
			}
			got := r.BroadcastInt(v, comm.GlobalRoot)
			if got != 100+round {
				t.Errorf("rank %d round %d: broadcast %d", r.ID(), round, got)
			}
			atomic.AddInt64(&nSeen, 1)
		}
		return nil
	}))
	require.Equal(t, int64(12), nSeen)
}

func TestBarrierOrdering(t *testing.T) {
	w, err := comm.NewWorld(8, 8)
	require.NoError(t, err)
	var phase int64
	require.NoError(t, w.Run(func(r *comm.Rank) error {
		if r.ID() == 0 {
			atomic.StoreInt64(&phase, 1)
		}
		r.Barrier()
		if atomic.LoadInt64(&phase) != 1 {
			t.Errorf("rank %d: barrier did not order the phase write", r.ID())
		}
		return nil
	}))
}

func TestShareSlot(t *testing.T) {
	w, err := comm.NewWorld(6, 3)
	require.NoError(t, err)
	var mu sync.Mutex
	seen := map[int]interface{}{}
	require.NoError(t, w.Run(func(r *comm.Rank) error {
		var v interface{}
		if r.IsLocalRoot() {
			v = 1000 + r.Node()
		}
		v = r.ShareSlot(v)
		mu.Lock()
		seen[r.ID()] = v
		mu.Unlock()
		return nil
	}))
	for id, v := range seen {
		require.Equal(t, 1000+id/3, v, "rank %d", id)
	}
}

func TestShareMeta(t *testing.T) {
	w, err := comm.NewWorld(4, 2)
	require.NoError(t, err)
	require.NoError(t, w.Run(func(r *comm.Rank) error {
		var m comm.Meta
		if r.IsLocalRoot() {
			m = comm.Meta{NRows: 10 + r.Node(), NAttrs: 3, NClasses: 2, BitsForClass: 1, WordsPerRow: 1}
		}
		m = r.ShareMeta(m)
		if m.NRows != 10+r.Node() || m.NAttrs != 3 {
			t.Errorf("rank %d: meta %+v", r.ID(), m)
		}
		return nil
	}))
}

func TestRunPropagatesError(t *testing.T) {
	w, err := comm.NewWorld(3, 3)
	require.NoError(t, err)
	errRun := w.Run(func(r *comm.Rank) error {
		if r.ID() == 1 {
			return errFake
		}
		return nil
	})
	require.Equal(t, errFake, errRun)
}

var errFake = &fakeError{}

type fakeError struct{}

func (*fakeError) Error() string { return "fake" }

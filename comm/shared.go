// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package comm

// Node-shared dataset coordination.  Exactly one rank per node (the local
// root) owns the mutable view of the node's dataset during setup; peers
// obtain the same object after a node barrier and treat it as read-only.
// The caller separates "mutable" from "immutable and shared" with a global
// Barrier, mirroring a shared-memory window allocation.

// ShareSlot publishes v (from the local root; peers pass nil) to every rank
// on the node and returns it.  The local root must not mutate v after any
// peer has observed it without an intervening collective.
func (r *Rank) ShareSlot(v interface{}) interface{} {
	n := r.node
	if r.IsLocalRoot() {
		n.mu.Lock()
		n.slot = v
		n.mu.Unlock()
	}
	n.barrier.wait()
	n.mu.Lock()
	v = n.slot
	n.mu.Unlock()
	n.barrier.wait()
	return v
}

// ShareMeta broadcasts the dataset geometry over the node-local
// communicator.  The local root calls it after each mutation of the shared
// dataset (container read, JNSQ) so peers observe consistent counts.
func (r *Rank) ShareMeta(m Meta) Meta {
	n := r.node
	if r.IsLocalRoot() {
		n.mu.Lock()
		n.meta = m
		n.mu.Unlock()
	}
	n.barrier.wait()
	n.mu.Lock()
	m = n.meta
	n.mu.Unlock()
	n.barrier.wait()
	return m
}

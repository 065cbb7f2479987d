// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package dataset

import (
	"github.com/grailbio/base/log"
)

// PrepStats summarizes a preparation pass.
type PrepStats struct {
	// Removed is the number of fully duplicate rows dropped.
	Removed int
	// MaxInconsistency is the largest JNSQ counter written.
	MaxInconsistency int
	// JNSQBits is the resulting JNSQ field width.
	JNSQBits int
}

// Prepare runs the full preparation pipeline in order: sort, dedup, class
// index, JNSQ.  On a dataset with no duplicates and no inconsistencies it
// is a no-op apart from the sort, and the stats report zeros.
func Prepare(d *Dataset) (PrepStats, error) {
	var stats PrepStats
	d.Sort()
	stats.Removed = d.Dedup()
	if err := d.FillClassIndex(); err != nil {
		return stats, err
	}
	stats.MaxInconsistency = d.ApplyJNSQ()
	stats.JNSQBits = JNSQWidth(stats.MaxInconsistency)
	d.SetJNSQBits(stats.JNSQBits)
	log.Debug.Printf("dataset %s: %d rows (%d duplicates removed), %d attributes (%d JNSQ), %d classes",
		d.Name, d.NRows, stats.Removed, d.NAttrs, d.JNSQBits, d.NClasses)
	return stats, nil
}

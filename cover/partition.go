// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cover

// The work partition assigns each rank a contiguous slice of the virtual
// matrix's row range [0, L).  Slices tile the range exactly; when there are
// more ranks than rows, high ranks get empty slices and still participate in
// every collective.

// BlockLow returns the first virtual-matrix row of rank r's slice.
func BlockLow(r, size int, l int64) int64 {
	return int64(r) * l / int64(size)
}

// BlockSize returns the number of virtual-matrix rows in rank r's slice.
func BlockSize(r, size int, l int64) int64 {
	return BlockLow(r+1, size, l) - BlockLow(r, size, l)
}

// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package laidf

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/laid/bitword"
	"github.com/grailbio/laid/dataset"
	"github.com/klauspost/compress/gzip"
)

// ReadTSV parses a textual observation matrix: one row per line, tab- or
// space-separated 0/1 attribute values followed by an integer class label in
// the last column.  Blank lines and lines starting with '#' are skipped.
// The class count is one more than the largest label seen.
func ReadTSV(in io.Reader, name string) (*dataset.Dataset, error) {
	var (
		attrRows [][]bool
		classes  []int
		nAttrs   = -1
		nClasses int
		lineno   int
	)
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, errors.E(errors.Invalid,
				fmt.Sprintf("%s:%d: need at least one attribute and a class", name, lineno))
		}
		if nAttrs < 0 {
			nAttrs = len(fields) - 1
		} else if len(fields)-1 != nAttrs {
			return nil, errors.E(errors.Invalid, fmt.Sprintf(
				"%s:%d: %d attributes, want %d", name, lineno, len(fields)-1, nAttrs))
		}
		row := make([]bool, nAttrs)
		for j, f := range fields[:nAttrs] {
			switch f {
			case "0":
			case "1":
				row[j] = true
			default:
				return nil, errors.E(errors.Invalid, fmt.Sprintf(
					"%s:%d: attribute %d: %q is not boolean", name, lineno, j, f))
			}
		}
		class, err := strconv.Atoi(fields[nAttrs])
		if err != nil || class < 0 {
			return nil, errors.E(errors.Invalid,
				fmt.Sprintf("%s:%d: bad class label %q", name, lineno, fields[nAttrs]))
		}
		if class >= nClasses {
			nClasses = class + 1
		}
		attrRows = append(attrRows, row)
		classes = append(classes, class)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if nClasses < 2 || len(attrRows) < 2 || nAttrs < 1 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf(
			"%s: malformed dataset: %d classes, %d observations, %d attributes",
			name, nClasses, len(attrRows), nAttrs))
	}

	bitsForClass := 1
	for 1<<uint(bitsForClass) < nClasses {
		bitsForClass++
	}
	w := bitword.WordsFor(nAttrs + bitsForClass)
	rows := make([]uint64, len(attrRows)*w)
	for i, bits := range attrRows {
		row := rows[i*w : (i+1)*w]
		for j, b := range bits {
			if b {
				bitword.Set(row, j)
			}
		}
		row[w-1] |= uint64(classes[i])
	}
	return dataset.New(name, rows, len(attrRows), nAttrs, nClasses, bitsForClass, w), nil
}

// ReadTSVFile reads a textual matrix from path, transparently decompressing
// a .gz suffix.
func ReadTSVFile(ctx context.Context, path, name string) (d *dataset.Dataset, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("dataset file %s", path), err)
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	var r io.Reader = in.Reader(ctx)
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.E(fmt.Sprintf("%s: gzip", path), err)
		}
		defer gz.Close() // nolint: errcheck
		r = gz
	}
	return ReadTSV(r, name)
}

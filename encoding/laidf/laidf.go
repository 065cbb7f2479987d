// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package laidf reads and writes the dataset container consumed by the
// cover engine.  A container is a zstd-transformed recordio file holding one
// record per observation row (the row's words, big endian) and a gob-encoded
// trailer with the dataset geometry.
package laidf

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/grailbio/laid/dataset"
)

const (
	versionHeader = "laidversion"
	version       = "LAID_V1"
)

// fileHeader is the gob-encoded trailer of a container.
type fileHeader struct {
	// Name identifies the dataset within the container.
	Name string
	// Geometry of the packed matrix; see dataset.Dataset.
	NRows        int
	NAttrs       int
	NClasses     int
	BitsForClass int
	WordsPerRow  int
}

func (h fileHeader) validate(path string) error {
	if h.Name == "" || h.NRows == 0 || h.WordsPerRow == 0 {
		return errors.E(errors.Invalid,
			fmt.Sprintf("%s: missing dataset metadata attribute in trailer: %+v", path, h))
	}
	if h.NClasses < 2 || h.NRows < 2 || h.NAttrs < 1 {
		return errors.E(errors.Invalid, fmt.Sprintf(
			"%s: malformed dataset %s: %d classes, %d observations, %d attributes",
			path, h.Name, h.NClasses, h.NRows, h.NAttrs))
	}
	return nil
}

// Write stores the dataset as a container at path.  Only unprepared
// datasets should be written: the JNSQ field is an in-memory artifact.
func Write(ctx context.Context, path string, d *dataset.Dataset) (err error) {
	recordiozstd.Init()
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	w := recordio.NewWriter(out.Writer(ctx), recordio.WriterOpts{
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(versionHeader, version)
	w.AddHeader(recordio.KeyTrailer, true)
	buf := make([]byte, d.WordsPerRow*8)
	for i := 0; i < d.NRows; i++ {
		row := d.Row(i)
		for wi, word := range row {
			binary.BigEndian.PutUint64(buf[wi*8:], word)
		}
		w.Append(append([]byte(nil), buf...))
	}
	b := bytes.NewBuffer(nil)
	if err = gob.NewEncoder(b).Encode(fileHeader{
		Name:         d.Name,
		NRows:        d.NRows,
		NAttrs:       d.NAttrs,
		NClasses:     d.NClasses,
		BitsForClass: d.BitsForClass,
		WordsPerRow:  d.WordsPerRow,
	}); err != nil {
		return err
	}
	w.SetTrailer(b.Bytes())
	e := errors.Once{}
	e.Set(w.Finish())
	e.Set(out.Close(ctx))
	return e.Err()
}

// Read loads the named dataset from the container at path.  An empty name
// accepts whatever dataset the container holds.
func Read(ctx context.Context, path, name string) (d *dataset.Dataset, err error) {
	recordiozstd.Init()
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("dataset container %s", path), err)
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	r := recordio.NewScanner(in.Reader(ctx), recordio.ScannerOpts{})
	versionFound := false
	for _, kv := range r.Header() {
		if kv.Key == versionHeader {
			if kv.Value.(string) != version {
				return nil, errors.E(errors.Invalid, fmt.Sprintf(
					"%s: container version %v, want %s", path, kv.Value, version))
			}
			versionFound = true
			break
		}
	}
	if !versionFound {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("%s: not a dataset container (no %s header)", path, versionHeader))
	}
	var h fileHeader
	if err := gob.NewDecoder(bytes.NewReader(r.Trailer())).Decode(&h); err != nil {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("%s: missing dataset metadata attribute", path), err)
	}
	if err := h.validate(path); err != nil {
		return nil, err
	}
	if name != "" && name != h.Name {
		return nil, errors.E(errors.NotExist,
			fmt.Sprintf("%s: no dataset named %s (container holds %s)", path, name, h.Name))
	}
	rows := make([]uint64, h.NRows*h.WordsPerRow)
	n := 0
	for r.Scan() {
		rec := r.Get().([]byte)
		if len(rec) != h.WordsPerRow*8 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf(
				"%s: row %d holds %d bytes, want %d", path, n, len(rec), h.WordsPerRow*8))
		}
		if n >= h.NRows {
			return nil, errors.E(errors.Invalid,
				fmt.Sprintf("%s: more than %d rows", path, h.NRows))
		}
		row := rows[n*h.WordsPerRow : (n+1)*h.WordsPerRow]
		for wi := range row {
			row[wi] = binary.BigEndian.Uint64(rec[wi*8:])
		}
		n++
	}
	if err := r.Err(); err != nil {
		return nil, errors.E(fmt.Sprintf("%s: reading rows", path), err)
	}
	if n != h.NRows {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("%s: %d rows, trailer promises %d", path, n, h.NRows))
	}
	return dataset.New(h.Name, rows, h.NRows, h.NAttrs, h.NClasses, h.BitsForClass, h.WordsPerRow), nil
}

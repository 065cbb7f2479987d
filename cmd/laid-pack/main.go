// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

/*
laid-pack converts a textual 0/1 observation matrix (one row per line,
attributes followed by an integer class label, optionally gzipped) into the
bit-packed dataset container that laid-cover consumes.

Example:

    laid-pack -o mushroom.laid -d mushroom mushroom.tsv.gz
*/

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/laid/encoding/laidf"
)

var (
	outPath = flag.String("o", "", "Output container path (required)")
	name    = flag.String("d", "", "Dataset name to record in the container; defaults to the input path")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s -o out.laid [-d name] input.tsv[.gz]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()

	if *outPath == "" || flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	inPath := flag.Arg(0)
	dsName := *name
	if dsName == "" {
		dsName = inPath
	}
	ctx := vcontext.Background()
	d, err := laidf.ReadTSVFile(ctx, inPath, dsName)
	if err != nil {
		log.Fatalf("laid-pack: %v", err)
	}
	if err := laidf.Write(ctx, *outPath, d); err != nil {
		log.Fatalf("laid-pack: %v", err)
	}
	log.Printf("packed %d observations, %d attributes, %d classes into %s",
		d.NRows, d.NAttrs, d.NClasses, *outPath)
}

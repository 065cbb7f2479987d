// Copyright 2019 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

/*
laid-cover selects a minimal-ish set of boolean attributes that
distinguishes every pair of observations drawn from different classes, by
running the LAID greedy set cover over the implicit disjoint matrix of a
bit-packed dataset container.

Example:

    laid-cover -f mushroom.laid -d mushroom -ranks 16
*/

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/laid/comm"
	"github.com/grailbio/laid/cover"
	"github.com/grailbio/laid/dataset"
	"github.com/grailbio/laid/encoding/laidf"
)

var (
	dataPath     = flag.String("f", "", "Input dataset container path (required)")
	dataName     = flag.String("d", "", "Dataset name within the container; empty accepts any")
	ranks        = flag.Int("ranks", 0, "Number of ranks to run the cover on; 0 = runtime.NumCPU()")
	ranksPerNode = flag.Int("ranks-per-node", 0, "Ranks sharing one dataset copy; 0 = all of them")
	reportPath   = flag.String("report", "", "Optional TSV report of per-round selections")
	verify       = flag.Bool("verify", false, "Recheck that the solution discriminates every class pair")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s -f path [-d name] [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
}

// loaded is the per-node setup result shared from the local root.
type loaded struct {
	d    *dataset.Dataset
	prep dataset.PrepStats
	err  error
}

func metaOf(d *dataset.Dataset) comm.Meta {
	if d == nil {
		return comm.Meta{}
	}
	return comm.Meta{
		NRows:        d.NRows,
		NAttrs:       d.NAttrs,
		NClasses:     d.NClasses,
		BitsForClass: d.BitsForClass,
		WordsPerRow:  d.WordsPerRow,
		JNSQBits:     d.JNSQBits,
	}
}

// setup loads and prepares the dataset on each node's local root and shares
// it with the node's peers.  Every rank leaves setup with the same verdict:
// either all hold the prepared dataset or all return an error, so no rank
// is left waiting in a later collective.
func setup(ctx context.Context, r *comm.Rank) (*dataset.Dataset, error) {
	var ld loaded
	if r.IsLocalRoot() {
		ld.d, ld.err = laidf.Read(ctx, *dataPath, *dataName)
	}
	r.ShareMeta(metaOf(ld.d))
	if r.IsLocalRoot() && ld.err == nil {
		ld.prep, ld.err = dataset.Prepare(ld.d)
		if ld.err == nil && r.IsGlobalRoot() {
			log.Printf("dataset %s: %d observations, %d attributes (%d JNSQ), %d classes, %d duplicates removed",
				ld.d.Name, ld.d.NRows, ld.d.NAttrs, ld.d.JNSQBits, ld.d.NClasses, ld.prep.Removed)
		}
	}
	m := r.ShareMeta(metaOf(ld.d))
	log.Debug.Printf("rank %d: dataset geometry %+v", r.ID(), m)
	ld = r.ShareSlot(ld).(loaded)

	// Agree globally on whether every node loaded.
	var nErr int64
	if ld.err != nil {
		nErr = 1
	}
	failed := 0
	if total := r.ReduceSumInt64s([]int64{nErr}); total != nil && total[0] > 0 {
		failed = 1
	}
	if r.BroadcastInt(failed, comm.GlobalRoot) != 0 {
		if ld.err != nil {
			return nil, ld.err
		}
		return nil, errors.E("dataset setup failed on a peer node")
	}
	// The dataset is immutable from here on.
	r.Barrier()
	return ld.d, nil
}

func writeReport(ctx context.Context, path string, sol *cover.Solution) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	w := tsv.NewWriter(out.Writer(ctx))
	w.WriteString("round\tattribute\tcovered\tuncovered")
	w.EndLine()
	for i, p := range sol.Picks {
		w.WriteUint32(uint32(i + 1))
		w.WriteUint32(uint32(p.Attr))
		w.WriteString(strconv.FormatInt(p.Covered, 10))
		w.WriteString(strconv.FormatInt(p.Uncovered, 10))
		w.EndLine()
	}
	e := errors.Once{}
	e.Set(w.Flush())
	e.Set(out.Close(ctx))
	return e.Err()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()

	if *dataPath == "" {
		fmt.Fprintln(os.Stderr, "laid-cover: -f is required")
		flag.Usage()
		os.Exit(1)
	}
	nRanks := *ranks
	if nRanks <= 0 {
		nRanks = runtime.NumCPU()
	}
	perNode := *ranksPerNode
	if perNode <= 0 {
		perNode = nRanks
	}
	ctx := vcontext.Background()
	world, err := comm.NewWorld(nRanks, perNode)
	if err != nil {
		log.Fatalf("laid-cover: %v", err)
	}

	var sol *cover.Solution
	err = world.Run(func(r *comm.Rank) error {
		d, err := setup(ctx, r)
		if err != nil {
			return err
		}
		if s := cover.Solve(r, d); s != nil {
			sol = s
			if *verify {
				if err := cover.VerifySolution(d, s.Attrs); err != nil {
					return err
				}
				log.Printf("solution verified against %d class pairs", s.TotalPairs)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("laid-cover: %v", err)
	}

	parts := make([]string, len(sol.Attrs))
	for i, a := range sol.Attrs {
		parts[i] = strconv.Itoa(a)
	}
	fmt.Printf("Solution: { %s }\n", strings.Join(parts, " "))
	fmt.Printf("%d attributes selected (%.2f%% of %d)\n",
		len(sol.Attrs), 100*float64(len(sol.Attrs))/float64(sol.NAttrs), sol.NAttrs)

	if *reportPath != "" {
		if err := writeReport(ctx, *reportPath, sol); err != nil {
			log.Fatalf("laid-cover: report %s: %v", *reportPath, err)
		}
		log.Printf("wrote %d rounds to %s", len(sol.Picks), *reportPath)
	}
}

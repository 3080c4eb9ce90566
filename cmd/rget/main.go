// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"

	"github.com/cockroachdb/rget"
	"github.com/cockroachdb/rget/internal/blob"
	"github.com/cockroachdb/rget/memstore"
	"github.com/kr/pretty"
	"github.com/spf13/cobra"
)

var (
	numKeys         int
	valueSize       int
	largeValueSize  int
	numSlices       int
	nodeCapacity    int
	compressionName string
	bfsThreshold    int
	parallelBegin   bool
	verbose         bool
)

var rootCmd = &cobra.Command{
	Use:   "rget [command] (flags)",
	Short: "range scan tool over an in-memory multi-slice store",
	Long:  ``,
}

func init() {
	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(scanCmd, benchCmd)

	rootCmd.PersistentFlags().IntVarP(
		&numKeys, "keys", "n", 10000, "number of keys to load")
	rootCmd.PersistentFlags().IntVar(
		&valueSize, "value", 8, "size of values to load")
	rootCmd.PersistentFlags().IntVar(
		&largeValueSize, "large-value", 0,
		"values longer than this are stored out-of-line (0 stores every value in-place)")
	rootCmd.PersistentFlags().IntVar(
		&numSlices, "slices", memstore.DefaultSlices, "number of slices")
	rootCmd.PersistentFlags().IntVar(
		&nodeCapacity, "node-capacity", 0, "maximum fan-out of a tree node (0 uses the default)")
	rootCmd.PersistentFlags().StringVar(
		&compressionName, "compression", "snappy", "compression of out-of-line values (none|snappy|zstd)")
	rootCmd.PersistentFlags().IntVar(
		&bfsThreshold, "threshold", rget.DefaultBreadthFirstThreshold,
		"latched nodes per slice at which the traversal turns depth-first")
	rootCmd.PersistentFlags().BoolVar(
		&parallelBegin, "parallel-begin", false, "begin the slices' transactions concurrently")
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "print the options and log every scan")

	scanCmd.Flags().BoolVar(
		&scanLeftOpen, "left-open", false, "exclude the start key")
	scanCmd.Flags().BoolVar(
		&scanRightOpen, "right-open", false, "exclude the end key")
	scanCmd.Flags().Uint64VarP(
		&scanLimit, "limit", "l", 0, "maximum number of keys to return (0 means unlimited)")

	benchCmd.Flags().IntVarP(
		&benchConcurrency, "concurrency", "c", 1, "number of concurrent scanners")
	benchCmd.Flags().IntVar(
		&benchWriters, "writers", 0, "number of concurrent writers")
	benchCmd.Flags().IntVar(
		&benchRows, "rows", 100, "number of rows to scan in each operation")
	benchCmd.Flags().DurationVarP(
		&benchDuration, "duration", "d", benchDuration, "the duration to run")
}

func main() {
	log.SetFlags(0)
	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}

func makeKey(i int) []byte {
	return fmt.Appendf(nil, "key-%08d", i)
}

// loadStore returns a store holding numKeys keys with random values.
func loadStore(w io.Writer) (*memstore.Store, error) {
	c, err := blob.ParseCompression(compressionName)
	if err != nil {
		return nil, err
	}
	opts := &memstore.Options{
		Slices:              numSlices,
		NodeCapacity:        nodeCapacity,
		LargeValueThreshold: largeValueSize,
		Compression:         c,
	}
	if verbose {
		fmt.Fprintf(w, "store options: %# v\n", pretty.Formatter(opts.EnsureDefaults()))
	}
	s := memstore.New(opts)
	rng := rand.New(rand.NewPCG(1449168817, 0))
	value := make([]byte, valueSize)
	for i := 0; i < numKeys; i++ {
		for j := range value {
			value[j] = byte('a' + rng.IntN(26))
		}
		s.Set(makeKey(i), value)
	}
	return s, nil
}

func scanOptions() *rget.Options {
	opts := &rget.Options{
		BreadthFirstThreshold: bfsThreshold,
		ParallelBegin:         parallelBegin,
	}
	if verbose {
		l := rget.MakeLoggingEventListener(nil)
		opts.EventListener = &l
	}
	return opts
}

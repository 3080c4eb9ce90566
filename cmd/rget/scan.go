// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"context"
	"fmt"

	"github.com/cockroachdb/rget"
	"github.com/kr/pretty"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	scanLeftOpen  bool
	scanRightOpen bool
	scanLimit     uint64
)

var scanCmd = &cobra.Command{
	Use:   "scan [start] [end]",
	Short: "load a store and print the keys in a range",
	Long: `
Load a store and print the keys in [start, end]. An omitted or empty bound
is unbounded. Keys are loaded as key-00000000, key-00000001, ...
`,
	Args: cobra.MaximumNArgs(2),
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	s, err := loadStore(w)
	if err != nil {
		return err
	}
	defer s.Close()

	var r rget.KeyRange
	if len(args) > 0 && args[0] != "" {
		r.Start = []byte(args[0])
	}
	if len(args) > 1 && args[1] != "" {
		r.End = []byte(args[1])
	}
	r.LeftOpen, r.RightOpen = scanLeftOpen, scanRightOpen

	opts := scanOptions()
	if verbose {
		fmt.Fprintf(w, "scan options: %# v\n", pretty.Formatter(opts.Clone().EnsureDefaults()))
	}
	ctx := context.Background()
	res, err := rget.Scan(ctx, s, r, scanLimit, opts)
	if err != nil {
		return err
	}
	defer res.Release()

	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"Key", "Slice", "Storage", "Value"})
	for _, kv := range res.KVs {
		storage := "in-place"
		if !kv.Value.IsInPlace() {
			storage = "out-of-line"
		}
		v, err := kv.Value.Value(ctx)
		value := string(v)
		if err != nil {
			value = fmt.Sprintf("error: %v", err)
		}
		tbl.Append([]string{
			string(kv.Key),
			fmt.Sprintf("%d", s.SliceOf(kv.Key)),
			storage,
			value,
		})
	}
	tbl.Render()
	fmt.Fprintln(w, res.Stats.String())
	return nil
}

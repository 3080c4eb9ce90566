// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/rget"
	"github.com/spf13/cobra"
)

const (
	minLatency = 10 * time.Microsecond
	maxLatency = 10 * time.Second
)

var (
	benchConcurrency = 1
	benchWriters     = 0
	benchRows        = 100
	benchDuration    = 10 * time.Second
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "run the range scan benchmark",
	Long: `
Run random range scans of a fixed number of rows against a loaded store,
optionally while writers overwrite random keys, and report scan latency
percentiles.
`,
	Args: cobra.NoArgs,
	RunE: runBench,
}

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(minLatency.Nanoseconds(), maxLatency.Nanoseconds(), 1)
}

func recordLatency(h *hdrhistogram.Histogram, elapsed time.Duration) {
	elapsed = min(max(elapsed, minLatency), maxLatency)
	if err := h.RecordValue(elapsed.Nanoseconds()); err != nil {
		// The latency is clamped to the histogram's range.
		panic(fmt.Sprintf("recording value: %s", err))
	}
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchRows <= 0 || benchRows > numKeys {
		return errors.Newf("--rows must be in [1, %d]", numKeys)
	}
	w := cmd.OutOrStdout()
	s, err := loadStore(w)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), benchDuration)
	defer cancel()
	opts := scanOptions()

	var (
		wg      sync.WaitGroup
		writes  atomic.Int64
		mu      sync.Mutex
		merged  = newHistogram()
		scanErr error
	)
	for i := 0; i < benchWriters; i++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(seed, 1))
			value := make([]byte, valueSize)
			for ctx.Err() == nil {
				for j := range value {
					value[j] = byte('a' + rng.IntN(26))
				}
				s.Set(makeKey(rng.IntN(numKeys)), value)
				writes.Add(1)
			}
		}(uint64(i))
	}

	start := time.Now()
	for i := 0; i < benchConcurrency; i++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(seed, 2))
			hist := newHistogram()
			err := func() error {
				for ctx.Err() == nil {
					startIdx := rng.IntN(numKeys - benchRows + 1)
					r := rget.KeyRange{
						Start:     makeKey(startIdx),
						End:       makeKey(startIdx + benchRows),
						RightOpen: true,
					}
					begin := time.Now()
					res, err := rget.Scan(ctx, s, r, 0, opts)
					if err != nil {
						if ctx.Err() != nil {
							return nil
						}
						return err
					}
					recordLatency(hist, time.Since(begin))
					n := len(res.KVs)
					res.Release()
					if n != benchRows {
						return errors.Newf("scanned %d, expected %d", n, benchRows)
					}
				}
				return nil
			}()
			mu.Lock()
			defer mu.Unlock()
			merged.Merge(hist)
			if err != nil && scanErr == nil {
				scanErr = err
			}
		}(uint64(i))
	}
	wg.Wait()
	elapsed := time.Since(start)
	if scanErr != nil {
		return scanErr
	}

	fmt.Fprintln(w, "_elapsed____ops(total)___ops/sec___writes/sec___p50(ms)___p95(ms)___p99(ms)_pMax(ms)")
	fmt.Fprintf(w, "%7.1fs %12d %9.1f %12.1f %9.3f %9.3f %9.3f %8.3f\n",
		elapsed.Seconds(),
		merged.TotalCount(),
		float64(merged.TotalCount())/elapsed.Seconds(),
		float64(writes.Load())/elapsed.Seconds(),
		time.Duration(merged.ValueAtQuantile(50)).Seconds()*1000,
		time.Duration(merged.ValueAtQuantile(95)).Seconds()*1000,
		time.Duration(merged.ValueAtQuantile(99)).Seconds()*1000,
		time.Duration(merged.Max()).Seconds()*1000,
	)
	return nil
}

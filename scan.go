// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rget

import (
	"context"

	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"golang.org/x/sync/errgroup"
)

// RangeResult is the result of a scan: keys in strictly ascending order with
// their value providers. The caller owns the providers and releases them with
// Release.
type RangeResult struct {
	KVs []KeyValue
	// Truncated is set if the scan stopped because it collected MaxResults
	// keys. Keys beyond the last one returned may or may not exist.
	Truncated bool
	Stats     ScanStats
}

// Release releases every value provider in the result.
func (r *RangeResult) Release() {
	if r == nil {
		return
	}
	releaseKVs(r.KVs)
	r.KVs = nil
}

func releaseKVs(kvs []KeyValue) {
	for i := range kvs {
		kvs[i].Value.Release()
	}
}

// Scan returns the keys of every slice of store that lie within r, in
// ascending order, together with providers for their values. At most
// maxResults keys are returned; a maxResults of zero means no limit.
//
// Scan opens one read transaction per slice, regardless of maxResults. Every
// node latch and transaction it acquires, and every value provider it does not
// return, is released before it returns. If any slice fails, the whole scan
// fails: the error is returned with no partial result.
//
// A range that excludes every key yields an empty result, or ErrInvalidRange
// if opts.StrictRanges is set, without opening any transaction.
func Scan(
	ctx context.Context, store Store, r KeyRange, maxResults uint64, opts *Options,
) (_ *RangeResult, err error) {
	o := opts.Clone().EnsureDefaults()
	start := crtime.NowMono()
	slices := store.Slices()
	stats := ScanStats{Slices: make([]SliceStats, len(slices))}
	defer func() {
		stats.Duration = start.Elapsed()
		o.finishScan(ScanInfo{Range: r, MaxResults: maxResults, Stats: stats, Err: err})
	}()

	if r.Empty(o.Comparer.Compare) {
		if o.StrictRanges {
			return nil, errors.Wrapf(ErrInvalidRange, "%s", r)
		}
		return &RangeResult{Stats: stats}, nil
	}

	txns, err := beginReads(ctx, slices, o.ParallelBegin)
	if err != nil {
		return nil, err
	}
	kvs, truncated, err := scanTransactions(ctx, txns, r, maxResults, o, stats.Slices)
	if err != nil {
		return nil, err
	}
	stats.KeysReturned = len(kvs)
	stats.Truncated = truncated
	return &RangeResult{KVs: kvs, Truncated: truncated, Stats: stats}, nil
}

// scanTransactions merges the slices' iterators and collects up to maxResults
// keys. It ends every transaction before returning, and on error releases the
// keys it collected.
func scanTransactions(
	ctx context.Context,
	txns []Transaction,
	r KeyRange,
	maxResults uint64,
	o *Options,
	stats []SliceStats,
) (kvs []KeyValue, truncated bool, err error) {
	defer func() {
		err = errors.CombineErrors(err, endReads(txns))
		if err != nil {
			releaseKVs(kvs)
			kvs, truncated = nil, false
		}
	}()

	iters := make([]kvIterator, len(txns))
	for i, txn := range txns {
		iters[i] = newSliceIter(i, txn, o.Comparer.Compare, r, o.BreadthFirstThreshold, &stats[i])
	}
	m := newMergingIter(o.Comparer.Compare, iters...)
	defer func() {
		err = errors.CombineErrors(err, m.Close())
	}()

	for maxResults == 0 || uint64(len(kvs)) < maxResults {
		if err := ctx.Err(); err != nil {
			return kvs, false, err
		}
		kv, ok, err := m.Next(ctx)
		if err != nil {
			return kvs, false, err
		}
		if !ok {
			return kvs, false, nil
		}
		kvs = append(kvs, kv)
	}
	return kvs, true, nil
}

// beginReads opens one read transaction per slice. If any fails, the
// transactions already opened are ended and the error is returned.
func beginReads(ctx context.Context, slices []Slice, parallel bool) ([]Transaction, error) {
	txns := make([]Transaction, len(slices))
	begin := func(ctx context.Context, i int) error {
		txn, err := slices[i].BeginRead(ctx)
		if err != nil {
			return errors.Wrapf(err, "slice %d", redact.Safe(i))
		}
		txns[i] = txn
		return nil
	}

	var err error
	if parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i := range slices {
			g.Go(func() error { return begin(gctx, i) })
		}
		err = g.Wait()
	} else {
		for i := range slices {
			if err = begin(ctx, i); err != nil {
				break
			}
		}
	}
	if err != nil {
		return nil, errors.CombineErrors(err, endReads(txns))
	}
	return txns, nil
}

// endReads ends every non-nil transaction, combining their errors.
func endReads(txns []Transaction) error {
	var err error
	for i, txn := range txns {
		if txn == nil {
			continue
		}
		if endErr := txn.End(); endErr != nil {
			err = errors.CombineErrors(err, errors.Wrapf(endErr, "ending slice %d", redact.Safe(i)))
		}
		txns[i] = nil
	}
	return err
}

func (o *Options) finishScan(info ScanInfo) {
	o.Metrics.record(&info.Stats, info.Err)
	switch {
	case info.Err != nil:
		o.Logger.Errorf("rget: %s", info)
	case o.SlowScanThreshold > 0 && info.Stats.Duration > o.SlowScanThreshold:
		o.Logger.Infof("rget: slow %s", info)
	}
	if o.EventListener != nil && o.EventListener.ScanEnd != nil {
		o.EventListener.ScanEnd(info)
	}
}

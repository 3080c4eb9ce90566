// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rget

import "time"

// DefaultBreadthFirstThreshold is the default value of
// Options.BreadthFirstThreshold.
const DefaultBreadthFirstThreshold = 16

// Options holds the optional parameters for a scan.
type Options struct {
	// Comparer defines the key order shared by every slice. The default is
	// DefaultComparer (bytewise).
	Comparer *Comparer

	// BreadthFirstThreshold is the number of simultaneously latched nodes
	// below which a slice's tree is walked breadth-first. Once a slice
	// iterator holds this many latches it walks the rest of its tree
	// depth-first. A threshold of 1 walks depth-first from the root. The
	// default is DefaultBreadthFirstThreshold.
	//
	// Because a node's in-range children are latched together, a slice can
	// hold up to BreadthFirstThreshold plus one node's fan-out per tree level
	// at once.
	BreadthFirstThreshold int

	// StrictRanges makes a scan over a range that excludes every key (for
	// example start > end) fail with ErrInvalidRange. By default such a scan
	// returns an empty result. Either way no transaction is opened.
	StrictRanges bool

	// ParallelBegin opens the slices' read transactions concurrently rather
	// than one after another.
	ParallelBegin bool

	// Logger is used to report failed and slow scans. The default is
	// DefaultLogger.
	Logger Logger

	// EventListener is notified at the end of every scan. The default is no
	// listener.
	EventListener *EventListener

	// Metrics receives the scan's latency and counts. The default records
	// nothing.
	Metrics *ScanMetrics

	// SlowScanThreshold is the duration above which a successful scan is
	// logged. Zero disables slow-scan logging.
	SlowScanThreshold time.Duration
}

// EnsureDefaults ensures that the default values for all options are set if a
// valid value was not already specified. Returns the new options.
func (o *Options) EnsureDefaults() *Options {
	if o == nil {
		o = &Options{}
	}
	o.Comparer = o.Comparer.EnsureDefaults()
	if o.BreadthFirstThreshold <= 0 {
		o.BreadthFirstThreshold = DefaultBreadthFirstThreshold
	}
	if o.Logger == nil {
		o.Logger = DefaultLogger
	}
	return o
}

// Clone creates a shallow-copy of the supplied options.
func (o *Options) Clone() *Options {
	n := &Options{}
	if o != nil {
		*n = *o
	}
	return n
}

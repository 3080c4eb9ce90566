// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rget

import (
	"time"

	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/redact"
	"github.com/prometheus/client_golang/prometheus"
)

// SliceStats describes the traversal of one slice during a scan.
type SliceStats struct {
	// NodesLatched is the number of node latches acquired.
	NodesLatched int
	// PeakLatched is the largest number of nodes latched at once.
	PeakLatched int
	// LeavesVisited is the number of leaves whose entries were captured.
	LeavesVisited int
	// KeysEmitted is the number of keys handed to the merge.
	KeysEmitted int
	// SwitchedToDepthFirst is set if the traversal left breadth-first mode.
	SwitchedToDepthFirst bool
}

// ScanStats describes a completed scan.
type ScanStats struct {
	Slices []SliceStats
	// KeysReturned is the number of keys in the result.
	KeysReturned int
	// Truncated is set if the scan stopped at its cap.
	Truncated bool
	Duration  time.Duration
}

// NodesLatched returns the number of node latches acquired across slices.
func (s *ScanStats) NodesLatched() int {
	var n int
	for i := range s.Slices {
		n += s.Slices[i].NodesLatched
	}
	return n
}

// PeakLatched returns the largest number of nodes latched at once by any
// single slice.
func (s *ScanStats) PeakLatched() int {
	var n int
	for i := range s.Slices {
		n = max(n, s.Slices[i].PeakLatched)
	}
	return n
}

// String implements fmt.Stringer.
func (s *ScanStats) String() string {
	return redact.StringWithoutMarkers(s)
}

// SafeFormat implements redact.SafeFormatter.
func (s *ScanStats) SafeFormat(w redact.SafePrinter, _ rune) {
	var leaves int
	for i := range s.Slices {
		leaves += s.Slices[i].LeavesVisited
	}
	w.Printf("%d slices, %s keys", redact.Safe(len(s.Slices)),
		crhumanize.Count(uint64(s.KeysReturned), crhumanize.Compact))
	if s.Truncated {
		w.SafeString(" (truncated)")
	}
	w.Printf(", %s nodes latched (peak %d), %s leaves, %s",
		crhumanize.Count(uint64(s.NodesLatched()), crhumanize.Compact),
		redact.Safe(s.PeakLatched()),
		crhumanize.Count(uint64(leaves), crhumanize.Compact),
		redact.Safe(s.Duration))
}

// ScanMetrics holds the prometheus collectors a scan reports to. Any nil
// collector is skipped.
type ScanMetrics struct {
	// Latency records the duration of every scan, in nanoseconds.
	Latency prometheus.Histogram
	// Scans counts completed scans, successful or not.
	Scans prometheus.Counter
	// Failures counts scans that returned an error.
	Failures prometheus.Counter
	// Keys counts keys returned by successful scans.
	Keys prometheus.Counter
	// Truncated counts successful scans that stopped at their cap.
	Truncated prometheus.Counter
}

// NewScanMetrics returns ScanMetrics whose collectors are named with the
// given prefix. The collectors are not registered.
func NewScanMetrics(prefix string) *ScanMetrics {
	return &ScanMetrics{
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "_scan_latency",
			Help:    "Latency of range scans in nanoseconds.",
			Buckets: prometheus.ExponentialBucketsRange(1e3, 1e10, 15),
		}),
		Scans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_scans_total",
			Help: "Range scans completed.",
		}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_scan_failures_total",
			Help: "Range scans that failed.",
		}),
		Keys: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_scan_keys_total",
			Help: "Keys returned by range scans.",
		}),
		Truncated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_scans_truncated_total",
			Help: "Range scans that stopped at their result cap.",
		}),
	}
}

// Collectors returns the non-nil collectors, for registration.
func (m *ScanMetrics) Collectors() []prometheus.Collector {
	var cs []prometheus.Collector
	add := func(c prometheus.Collector, ok bool) {
		if ok {
			cs = append(cs, c)
		}
	}
	add(m.Latency, m.Latency != nil)
	add(m.Scans, m.Scans != nil)
	add(m.Failures, m.Failures != nil)
	add(m.Keys, m.Keys != nil)
	add(m.Truncated, m.Truncated != nil)
	return cs
}

func (m *ScanMetrics) record(stats *ScanStats, err error) {
	if m == nil {
		return
	}
	if m.Latency != nil {
		m.Latency.Observe(float64(stats.Duration))
	}
	if m.Scans != nil {
		m.Scans.Inc()
	}
	if err != nil {
		if m.Failures != nil {
			m.Failures.Inc()
		}
		return
	}
	if m.Keys != nil {
		m.Keys.Add(float64(stats.KeysReturned))
	}
	if stats.Truncated && m.Truncated != nil {
		m.Truncated.Inc()
	}
}

// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rget

import "github.com/cockroachdb/redact"

// ScanInfo contains the info for a scan end event.
type ScanInfo struct {
	Range      KeyRange
	MaxResults uint64
	Stats      ScanStats
	// Err is the error the scan failed with, if any.
	Err error
}

// String implements fmt.Stringer.
func (i ScanInfo) String() string {
	return redact.StringWithoutMarkers(i)
}

// SafeFormat implements redact.SafeFormatter.
func (i ScanInfo) SafeFormat(w redact.SafePrinter, _ rune) {
	if i.Err != nil {
		w.Printf("scan %s limit %d failed: %v", i.Range, redact.Safe(i.MaxResults), i.Err)
		return
	}
	w.Printf("scan %s limit %d: %s", i.Range, redact.Safe(i.MaxResults), &i.Stats)
}

// EventListener contains a set of functions that will be invoked when various
// significant scan events occur. Note that the functions should not run for
// an excessive amount of time as they are invoked synchronously by the scan
// and may block it from returning.
type EventListener struct {
	// ScanEnd is invoked after every scan, once all of its resources have
	// been released.
	ScanEnd func(ScanInfo)
}

// EnsureDefaults ensures that event listener callbacks are non-nil.
func (l *EventListener) EnsureDefaults() {
	if l.ScanEnd == nil {
		l.ScanEnd = func(ScanInfo) {}
	}
}

// MakeLoggingEventListener creates an EventListener that logs all events to
// the specified logger.
func MakeLoggingEventListener(logger Logger) EventListener {
	if logger == nil {
		logger = DefaultLogger
	}
	return EventListener{
		ScanEnd: func(info ScanInfo) {
			logger.Infof("%s", info)
		},
	}
}

// TeeEventListener wraps two EventListeners, forwarding all events to both.
func TeeEventListener(a, b EventListener) EventListener {
	a.EnsureDefaults()
	b.EnsureDefaults()
	return EventListener{
		ScanEnd: func(info ScanInfo) {
			a.ScanEnd(info)
			b.ScanEnd(info)
		},
	}
}

// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package coordinator

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Profiler tracks the throughput of an in-progress action, grounded on
// the reference implementation's coord_prof.hh: a running byte and
// stripe counter sampled against wall-clock elapsed time.
type Profiler struct {
	start      time.Time
	bytesDone  atomic.Int64
	unitsDone  atomic.Int64
	unitLabel  string
}

// NewProfiler starts a profiler counting units labeled unitLabel
// (e.g. "stripes", "blobs").
func NewProfiler(unitLabel string) *Profiler {
	return &Profiler{start: time.Now(), unitLabel: unitLabel}
}

// Add records one more unit of work of the given byte size.
func (p *Profiler) Add(bytes int64) {
	p.bytesDone.Add(bytes)
	p.unitsDone.Add(1)
}

// Report returns a human-readable throughput summary.
func (p *Profiler) Report() string {
	elapsed := time.Since(p.start).Seconds()
	if elapsed <= 0 {
		elapsed = 1e-9
	}
	bytes := p.bytesDone.Load()
	units := p.unitsDone.Load()
	mbPerSec := float64(bytes) / (1 << 20) / elapsed
	return fmt.Sprintf("%d %s, %d bytes in %.2fs (%.2f MiB/s)", units, p.unitLabel, bytes, elapsed, mbPerSec)
}

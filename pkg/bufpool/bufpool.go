// Copyright (c) 2017 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

// Package bufpool provides size-tiered byte-slice pools for the
// worker's pipeline stages, which allocate one buffer per chunk (or
// sub-chunk) read/fetched. chunk_size is a run-time TOML knob rather
// than a handful of fixed tract sizes, so the tiers here are spaced
// geometrically instead of naming specific chunk sizes.
package bufpool

import (
	"sync"

	"github.com/westerndigitalcorporation/blobstripe/pkg/disk"
)

const (
	tier64K  = 64<<10 + disk.ExtraRoom
	tier256K = 256<<10 + disk.ExtraRoom
	tier1M   = 1<<20 + disk.ExtraRoom
	tier4M   = 4<<20 + disk.ExtraRoom
	tier16M  = 16<<20 + disk.ExtraRoom
)

var pools = []struct {
	size int
	pool *sync.Pool
}{
	{tier64K, &sync.Pool{New: func() interface{} { b := make([]byte, tier64K); return &b }}},
	{tier256K, &sync.Pool{New: func() interface{} { b := make([]byte, tier256K); return &b }}},
	{tier1M, &sync.Pool{New: func() interface{} { b := make([]byte, tier1M); return &b }}},
	{tier4M, &sync.Pool{New: func() interface{} { b := make([]byte, tier4M); return &b }}},
	{tier16M, &sync.Pool{New: func() interface{} { b := make([]byte, tier16M); return &b }}},
}

// Get returns a []byte with length n and capacity >= n. The buffer's
// contents are not zeroed.
func Get(n int) []byte {
	for _, t := range pools {
		if n <= t.size {
			return (*t.pool.Get().(*[]byte))[:n]
		}
	}
	return make([]byte, n)
}

// Put returns b to the pool matching its capacity. It is a no-op for
// buffers Get did not hand out (e.g. oversized ones), so it is always
// safe to call.
func Put(b []byte) {
	for _, t := range pools {
		if cap(b) == t.size {
			t.pool.Put(&b)
			return
		}
	}
}

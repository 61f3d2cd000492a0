// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package merge

import (
	"math/rand"

	"github.com/golang/groupcache/lru"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/trace"
)

// interLocalityStream maintains a size-bounded LRU keyed by user_id. A
// user present in the LRU ("has locality") gets its own per-user
// ChunkMerger, flushed (Horizontal) when that buffer fills. A user
// absent from the LRU is routed through a shared split-before-merge
// buffer, padded, and on fill rearranged into k column-major slices
// (Vertical) before being emitted (spec.md §4.4.2 InterLocality).
type interLocalityStream struct {
	reader     trace.Reader
	mergeSize  int64
	atomicSize int64
	k          int
	rng        *rand.Rand

	lru      *lru.Cache
	// users mirrors the LRU's key set so a final flush can walk every
	// still-active per-user merger; groupcache/lru does not expose its
	// own key ordering. OnEvicted keeps this set in sync.
	users   map[string]struct{}
	missBuf *ChunkMerger
	lastHit bool
}

// NewInterLocalityStream returns the InterLocality merge strategy.
// lruCapacity bounds how many distinct user_ids the locality LRU
// tracks; k is the number of column-major slices the rearrangement
// step produces for a locality-miss group (the stripe's EC k).
func NewInterLocalityStream(reader trace.Reader, mergeSize, atomicSize int64, k, lruCapacity int) Stream {
	s := &interLocalityStream{
		reader:     reader,
		mergeSize:  mergeSize,
		atomicSize: atomicSize,
		k:          k,
		rng:        newRand(),
		users:      make(map[string]struct{}),
		missBuf:    NewChunkMerger(mergeSize),
	}
	s.lru = lru.New(lruCapacity)
	s.lru.OnEvicted = func(key lru.Key, _ interface{}) {
		delete(s.users, key.(string))
	}
	return s
}

// LastHit reports whether the most recently emitted group came from a
// per-user locality hit (Horizontal) rather than the miss path
// (Vertical) — spec.md §8 invariant 8.
func (s *interLocalityStream) LastHit() bool { return s.lastHit }

func (s *interLocalityStream) Next() (Group, error) {
	for {
		rec, err := s.reader.Next()
		if err != nil {
			if g, ok := s.flushAnyPartial(); ok {
				return g, nil
			}
			return Group{}, err
		}
		if rec.Size < core.SmallBlobThreshold {
			continue
		}
		padded := padSize(int64(rec.Size), s.atomicSize)
		data := synthesize(s.rng, padded)

		if v, ok := s.lru.Get(rec.UserID); ok {
			merger := v.(*ChunkMerger)
			if merger.WouldFill(padded) && !merger.Empty() {
				flushed := merger.Flush()
				merger.Add(core.BlobID(rec.BlobID), data)
				s.lastHit = true
				flushed.LocalityHit = true
				return flushed, nil
			}
			merger.Add(core.BlobID(rec.BlobID), data)
			continue
		}

		// Locality miss: admit the user to the LRU with a fresh
		// per-user merger, and route this blob through the shared
		// split-before-merge buffer instead.
		s.lru.Add(rec.UserID, NewChunkMerger(s.mergeSize))
		s.users[rec.UserID] = struct{}{}

		if s.missBuf.WouldFill(padded) && !s.missBuf.Empty() {
			flushed := s.rearrange(s.missBuf.Flush())
			s.missBuf.Add(core.BlobID(rec.BlobID), data)
			s.lastHit = false
			flushed.LocalityHit = false
			return flushed, nil
		}
		s.missBuf.Add(core.BlobID(rec.BlobID), data)
	}
}

// flushAnyPartial drains whichever buffer (a per-user merger or the
// miss buffer) still holds data once the trace is exhausted.
func (s *interLocalityStream) flushAnyPartial() (Group, bool) {
	if !s.missBuf.Empty() {
		s.lastHit = false
		g := s.rearrange(s.missBuf.Flush())
		g.LocalityHit = false
		return g, true
	}
	for key := range s.users {
		v, ok := s.lru.Get(key)
		if !ok {
			continue
		}
		merger := v.(*ChunkMerger)
		if !merger.Empty() {
			s.lastHit = true
			g := merger.Flush()
			g.LocalityHit = true
			return g, true
		}
	}
	return Group{}, false
}

func (s *interLocalityStream) rearrange(g Group) Group {
	return RearrangeColumnMajor(g, s.k)
}

// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT
//
// Package merge implements the blob merge strategies that turn a stream
// of trace records into merged byte groups ready for stripe encoding
// (spec.md §4.4.2). Blob bytes are synthesized (sizes and ids are what
// matter, not content), using a per-stream pseudo-random generator
// seeded by the fixed constant core.MergeStreamSeed so a given trace
// produces reproducible merge output.
package merge

import (
	"math/rand"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
)

// Group is one merged batch of blob bytes, ready to be handed to a
// stripe-stream strategy for encoding.
type Group struct {
	Blobs []core.BlobMeta

	// Data is the merged (and possibly padded or rearranged) byte
	// buffer. StripeID on each Blobs entry is left zero; it is filled
	// in by metadata.Core.RegisterStripe.
	Data []byte

	// LocalityHit records whether this group was produced by an
	// InterLocality per-user buffer (true) or the split-before-merge
	// fallback path (false). Meaningful only for the InterLocality
	// stream; other strategies leave it false.
	LocalityHit bool
}

// Stream yields merged groups until the underlying trace is exhausted.
type Stream interface {
	// Next returns the next merged group, or the trace reader's
	// exhaustion error (typically core.ErrTraceExhaust) once no more
	// groups remain, having first flushed any partial buffer.
	Next() (Group, error)
}

// ChunkMerger accumulates blobs into a single reusable byte buffer,
// the building block Basic and Padding streams are described in terms
// of (spec.md §4.4.2 "uses a chunk merger").
type ChunkMerger struct {
	capacity int64
	buf      []byte
	blobs    []core.BlobMeta
}

// NewChunkMerger returns an empty merger with the given target
// capacity.
func NewChunkMerger(capacity int64) *ChunkMerger {
	return &ChunkMerger{capacity: capacity}
}

// Len reports how many bytes are currently buffered.
func (m *ChunkMerger) Len() int64 { return int64(len(m.buf)) }

// Remaining reports how many more bytes fit before the buffer is full.
func (m *ChunkMerger) Remaining() int64 {
	r := m.capacity - m.Len()
	if r < 0 {
		return 0
	}
	return r
}

// WouldFill reports whether appending size more bytes would fill or
// overflow the buffer.
func (m *ChunkMerger) WouldFill(size int64) bool {
	return m.Len()+size >= m.capacity
}

// Empty reports whether the merger currently holds no blobs.
func (m *ChunkMerger) Empty() bool { return len(m.blobs) == 0 }

// Add appends one blob's bytes to the buffer, recording its offset and
// index within the eventual group.
func (m *ChunkMerger) Add(blobID core.BlobID, data []byte) {
	m.blobs = append(m.blobs, core.BlobMeta{
		BlobID:    blobID,
		BlobIndex: len(m.blobs),
		Offset:    int64(len(m.buf)),
		Size:      int64(len(data)),
	})
	m.buf = append(m.buf, data...)
}

// Flush returns the accumulated group and resets the merger for reuse.
func (m *ChunkMerger) Flush() Group {
	g := Group{Blobs: m.blobs, Data: m.buf}
	m.blobs = nil
	m.buf = nil
	return g
}

// synthesize fills size pseudo-random bytes from rng. Merge strategies
// care only about blob sizes and ids, never content, so the bytes
// themselves are arbitrary but reproducible given rng's seed.
func synthesize(rng *rand.Rand, size int64) []byte {
	data := make([]byte, size)
	rng.Read(data)
	return data
}

// newRand returns the fixed-seed generator every merge stream uses, so
// multi-stream runs reproduce the same synthesized bytes.
func newRand() *rand.Rand {
	return rand.New(rand.NewSource(core.MergeStreamSeed))
}

// RearrangeColumnMajor reshapes a merged group's buffer of total length
// L = sum(blob sizes) into k column-major slices: for each of the k
// slots, the i-th equal slice of every blob is concatenated in blob
// order. This is the "split-before-merge" rearrangement spec.md
// §4.4.2 describes for InterLocality misses and §4.4.3 reuses for
// IntraLocality's small-merge path. Each blob's size must be a
// multiple of k for the split to be even.
func RearrangeColumnMajor(g Group, k int) Group {
	if k <= 1 || len(g.Blobs) == 0 {
		return g
	}
	out := make([]byte, 0, len(g.Data))
	for slot := 0; slot < k; slot++ {
		for _, b := range g.Blobs {
			sliceLen := b.Size / int64(k)
			start := b.Offset + int64(slot)*sliceLen
			out = append(out, g.Data[start:start+sliceLen]...)
		}
	}
	g.Data = out
	return g
}

// padSize rounds size up to the next multiple of atomic (spec.md
// §4.4.2's Padding strategy). atomic <= 0 disables padding.
func padSize(size, atomic int64) int64 {
	if atomic <= 0 {
		return size
	}
	if rem := size % atomic; rem != 0 {
		return size + (atomic - rem)
	}
	return size
}

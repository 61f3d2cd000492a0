// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package taskbuilder

import (
	"math/rand"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/ec"
	"github.com/westerndigitalcorporation/blobstripe/internal/metadata"
)

// chunkRange is one (chunk_index, in_chunk_offset, length) piece of a
// blob's byte range as it lands within a single logical chunk.
type chunkRange struct {
	Index  core.ChunkIndex
	Offset int64
	Length int64
}

// splitByChunk carves [start,start+size) into per-chunk sub-ranges of
// a Horizontal-layout stripe, where chunk i covers global bytes
// [i*chunkSize, (i+1)*chunkSize).
func splitByChunk(start, size, chunkSize int64) []chunkRange {
	var out []chunkRange
	end := start + size
	for pos := start; pos < end; {
		idx := pos / chunkSize
		inChunkOffset := pos % chunkSize
		remaining := (idx+1)*chunkSize - pos
		length := end - pos
		if length > remaining {
			length = remaining
		}
		out = append(out, chunkRange{Index: core.ChunkIndex(idx), Offset: inChunkOffset, Length: length})
		pos += length
	}
	return out
}

// directReadPlan reads a blob's byte range straight from the chunk
// that already holds it, with no reconstruction: RS is systematic, so
// a plain (non-degraded) read of chunk idx needs nothing beyond its
// own bytes. Modeled as a one-survivor gather plan (the chunk reading
// itself) purely to reuse the FETCHANDCOMPUTEANDWRITEBLOCK pipeline's
// read-ack behavior.
func directReadPlan(meta metadata.StripeMeta, pg PG, idx core.ChunkIndex, offset, length int64) (core.Plan, error) {
	return buildGatherPlan(meta, pg, idx, []int{int(idx)}, core.RSRead, 1, offset, length)
}

// BuildRSReadPlans carves a blob's byte range into per-chunk
// sub-ranges and returns one direct (non-reconstructing) read plan per
// sub-range, since RS's systematic layout means an ordinary read never
// needs to decode.
func BuildRSReadPlans(meta metadata.StripeMeta, pg PG, blob core.BlobMeta, rng *rand.Rand) ([]core.Plan, error) {
	ranges := splitByChunk(blob.Offset, blob.Size, meta.ChunkSize)
	plans := make([]core.Plan, 0, len(ranges))
	for _, r := range ranges {
		plan, err := directReadPlan(meta, pg, r.Index, r.Offset, r.Length)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// BuildRSDegradeReadPlans is BuildRSReadPlans for a stripe with chunk
// index failed assumed lost: sub-ranges landing in the failed chunk are
// reconstructed via BuildCentralizedRSRange; every other sub-range is
// still read directly (spec.md §4.6 DegradeRead "RS falls back to
// repair plan").
func BuildRSDegradeReadPlans(meta metadata.StripeMeta, pg PG, failed core.ChunkIndex, blob core.BlobMeta, rng *rand.Rand) ([]core.Plan, error) {
	ranges := splitByChunk(blob.Offset, blob.Size, meta.ChunkSize)
	plans := make([]core.Plan, 0, len(ranges))
	for _, r := range ranges {
		var plan core.Plan
		var err error
		if r.Index == failed {
			plan, err = BuildCentralizedRSRange(meta, pg, failed, r.Offset, r.Length, core.RSRepair, rng)
		} else {
			plan, err = directReadPlan(meta, pg, r.Index, r.Offset, r.Length)
		}
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// BuildNSYSReadPlans carves a blob's byte range into per-chunk
// sub-ranges and returns one centralized NSYS read plan per sub-range
// (spec.md §4.5 "NSYS read").
func BuildNSYSReadPlans(meta metadata.StripeMeta, pg PG, blob core.BlobMeta, rng *rand.Rand) ([]core.Plan, error) {
	ranges := splitByChunk(blob.Offset, blob.Size, meta.ChunkSize)
	plans := make([]core.Plan, 0, len(ranges))
	for _, r := range ranges {
		plan, err := BuildCentralizedNSYSRange(meta, pg, r.Index, r.Offset, r.Length, core.NsysRead, rng)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// BuildClayReadPlans emits one centralized CLAY read (over the whole
// chunk; Clay has no partial-read mode) for every chunk index the
// blob's byte range overlaps.
func BuildClayReadPlans(meta metadata.StripeMeta, pg PG, blob core.BlobMeta, enc ec.ClayEncoder, rng *rand.Rand) ([]core.Plan, error) {
	firstChunk := core.ChunkIndex(blob.Offset / meta.ChunkSize)
	lastChunk := core.ChunkIndex((blob.Offset + blob.Size - 1) / meta.ChunkSize)

	plans := make([]core.Plan, 0, int(lastChunk-firstChunk)+1)
	for idx := firstChunk; idx <= lastChunk; idx++ {
		plan, err := BuildCentralizedClay(meta, pg, idx, enc, core.ClayRead, rng)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// BuildVerticalNSYSReadPlans translates a Vertical blob's request into
// the sub-chunk byte range [blob.offset/k, (blob.offset+blob.size)/k)
// applied to every one of the stripe's k+m chunks (spec.md §4.5
// "Vertical NSYS read").
func BuildVerticalNSYSReadPlans(meta metadata.StripeMeta, pg PG, blob core.BlobMeta, rng *rand.Rand) ([]core.Plan, error) {
	k := int64(meta.K)
	start := blob.Offset / k
	length := (blob.Offset + blob.Size) / k - start

	total := meta.K + meta.M
	plans := make([]core.Plan, 0, total)
	for idx := 0; idx < total; idx++ {
		plan, err := BuildCentralizedNSYSRange(meta, pg, core.ChunkIndex(idx), start, length, core.NsysRead, rng)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

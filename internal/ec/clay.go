// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package ec

import "github.com/westerndigitalcorporation/blobstripe/internal/core"

// clayEncoder is the Clay code stand-in. Clay always reads and writes a
// chunk as w aligned sub-chunks rather than one contiguous span (spec.md
// §4.5 "Clay does not support partial reads"), so it is modeled as w
// independent MDS array-code planes sharing one (k+m) x k Vandermonde
// generator matrix: plane p of every chunk is an independent linear
// combination of plane p of the k data shards. This preserves Clay's
// defining interface shape (a sub-chunk count w, and a
// MinimumToDecode that names which sub-chunks each survivor must supply)
// without attempting to reproduce the coupling transform that gives real
// Clay codes their reduced repair bandwidth — that numeric kernel is
// out of scope per spec.md §1.
type clayEncoder struct {
	k, m, w int
	gen     *gfMatrix
}

func newClayEncoder(k, m int) (Encoder, error) {
	w, ok := core.SubChunkCount(k, m)
	if !ok {
		return nil, core.ErrUnsupportedCombination.Error()
	}
	return &clayEncoder{k: k, m: m, w: w, gen: vandermonde(k+m, k)}, nil
}

func (c *clayEncoder) EcType() core.EcType { return core.CLAY }
func (c *clayEncoder) K() int              { return c.k }
func (c *clayEncoder) M() int              { return c.m }
func (c *clayEncoder) SubChunkCount() int  { return c.w }

// Encode requires len(data) to be a multiple of k*w so each of the w
// planes can be split evenly across the k data shards.
func (c *clayEncoder) Encode(data []byte) ([][]byte, error) {
	if len(data)%(c.k*c.w) != 0 {
		return nil, core.ErrInvalidArgument.Error()
	}
	planeLen := len(data) / (c.k * c.w)
	subChunkLen := planeLen * c.w

	out := make([][]byte, c.k+c.m)
	for i := range out {
		out[i] = make([]byte, subChunkLen)
	}
	for p := 0; p < c.w; p++ {
		dataShards := make([][]byte, c.k)
		for i := 0; i < c.k; i++ {
			start := (i*c.w + p) * planeLen
			dataShards[i] = data[start : start+planeLen]
		}
		for row := 0; row < c.k+c.m; row++ {
			plane := c.gen.mulBytes(dataShards, row, planeLen)
			copy(out[row][p*planeLen:(p+1)*planeLen], plane)
		}
	}
	return out, nil
}

func (c *clayEncoder) Reconstruct(shards [][]byte, missing []int) error {
	present := presentIndices(shards, c.k+c.m)
	if len(present) < c.k {
		return core.ErrInvalidArgument.Error()
	}
	use := present[:c.k]
	sub := c.gen.subMatrix(use)
	inv, err := sub.invert()
	if err != nil {
		return err
	}
	subChunkLen := len(shards[use[0]])
	planeLen := subChunkLen / c.w
	for _, idx := range missing {
		shards[idx] = make([]byte, subChunkLen)
	}
	// Re-derive each missing output row directly from the recovered data
	// shards, one plane at a time (mirrors nsysEncoder.Reconstruct).
	for p := 0; p < c.w; p++ {
		planeShards := make([][]byte, c.k)
		for i, idx := range use {
			planeShards[i] = shards[idx][p*planeLen : (p+1)*planeLen]
		}
		data := make([][]byte, c.k)
		for i := 0; i < c.k; i++ {
			data[i] = inv.mulBytes(planeShards, i, planeLen)
		}
		for _, idx := range missing {
			copy(shards[idx][p*planeLen:(p+1)*planeLen], c.gen.mulBytes(data, idx, planeLen))
		}
	}
	return nil
}

// MinimumToDecode computes the survivor/sub-chunk plan for repairing (or
// reading through) a chunk from the given surviving chunk indices.
// Because Clay only ever performs aligned sub-chunk reads, every
// survivor contributes all w sub-chunks: the "minimum" is in which
// survivors are asked at all (exactly the given set), not in how much of
// each survivor's chunk is read.
func (c *clayEncoder) MinimumToDecode(survivors []int) map[int][]int {
	plan := make(map[int][]int, len(survivors))
	offsets := make([]int, c.w)
	for i := range offsets {
		offsets[i] = i
	}
	for _, s := range survivors {
		cp := make([]int, c.w)
		copy(cp, offsets)
		plan[s] = cp
	}
	return plan
}

// ClayEncoder exposes the Clay-specific MinimumToDecode planning method to
// callers (internal/taskbuilder) that need it beyond the generic Encoder
// interface.
type ClayEncoder interface {
	Encoder
	MinimumToDecode(survivors []int) map[int][]int
}

var _ ClayEncoder = (*clayEncoder)(nil)

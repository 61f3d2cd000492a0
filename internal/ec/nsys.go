// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package ec

import (
	"errors"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
)

var errSingularMatrix = errors.New("ec: singular generator sub-matrix")

// nsysEncoder is the non-systematic code: spec.md calls it out as a
// distinct EC family from RS whose defining property is that none of its
// k+m output chunks are a verbatim copy of input data (unlike RS's first
// k shards). It is built from a Vandermonde generator matrix over
// GF(256): every row of the generator is a distinct point's increasing
// powers, so any k of the k+m output rows are linearly independent
// (MDS), and no single row is a standard basis vector.
type nsysEncoder struct {
	k, m int
	gen  *gfMatrix // (k+m) x k
}

func newNsysEncoder(k, m int) (Encoder, error) {
	return &nsysEncoder{k: k, m: m, gen: vandermonde(k+m, k)}, nil
}

func (n *nsysEncoder) EcType() core.EcType { return core.NSYS }
func (n *nsysEncoder) K() int              { return n.k }
func (n *nsysEncoder) M() int              { return n.m }
func (n *nsysEncoder) SubChunkCount() int  { return 1 }

func (n *nsysEncoder) Encode(data []byte) ([][]byte, error) {
	if len(data)%n.k != 0 {
		return nil, core.ErrInvalidArgument.Error()
	}
	shardLen := len(data) / n.k
	dataShards := make([][]byte, n.k)
	for i := range dataShards {
		dataShards[i] = data[i*shardLen : (i+1)*shardLen]
	}
	out := make([][]byte, n.k+n.m)
	for row := 0; row < n.k+n.m; row++ {
		out[row] = n.gen.mulBytes(dataShards, row, shardLen)
	}
	return out, nil
}

func (n *nsysEncoder) Reconstruct(shards [][]byte, missing []int) error {
	present := presentIndices(shards, n.k+n.m)
	if len(present) < n.k {
		return core.ErrInvalidArgument.Error()
	}
	use := present[:n.k]
	sub := n.gen.subMatrix(use)
	inv, err := sub.invert()
	if err != nil {
		return err
	}
	shardLen := len(shards[use[0]])
	srcShards := make([][]byte, n.k)
	for i, idx := range use {
		srcShards[i] = shards[idx]
	}
	// Recover the original k data shards, then re-derive any missing
	// output row directly from the generator matrix.
	data := make([][]byte, n.k)
	for i := 0; i < n.k; i++ {
		data[i] = inv.mulBytes(srcShards, i, shardLen)
	}
	for _, idx := range missing {
		shards[idx] = n.gen.mulBytes(data, idx, shardLen)
	}
	return nil
}

func presentIndices(shards [][]byte, n int) []int {
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if shards[i] != nil {
			out = append(out, i)
		}
	}
	return out
}

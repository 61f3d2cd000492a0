// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package worker

import (
	"context"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/transport"
)

// gatherShards implements doFetch for FETCHANDCOMPUTEANDWRITEBLOCK: it
// pops one payload per src_block_id, folding any prior pipelined
// accumulator it finds among them into the same shard set a centralized
// plan would have gathered in one hop (spec.md §4.5, and see
// accumulator.go). A centralized plan's single hop is the degenerate
// case of this fold: every src_block_id is a real chunk index and no
// accumulator is decoded.
func gatherShards(ctx context.Context, queue *transport.Queue, cmd core.BlockCommand) (accumulator, error) {
	acc := make(accumulator, len(cmd.SrcBlockIDs))
	for _, blockID := range cmd.SrcBlockIDs {
		payload, err := queue.Pop(ctx, core.ChunkDataQueue(cmd.StripeID, blockID, int(cmd.Size)), 0)
		if err != nil {
			return nil, err
		}
		if blockID == core.PipelineAccumulatorBlockID {
			prev, err := decodeAccumulator(payload)
			if err != nil {
				return nil, err
			}
			for idx, data := range prev {
				acc[idx] = data
			}
			continue
		}
		acc[blockID] = payload
	}
	return acc, nil
}

// forwardAccumulator pushes acc to the next pipelined hop's queue,
// executed instead of a write+ack when cmd.dest_block_id is the
// reserved accumulator id, i.e. this hop is not the chain's terminus.
func forwardAccumulator(ctx context.Context, queue *transport.Queue, cmd core.BlockCommand, acc accumulator) error {
	raw, err := encodeAccumulator(acc)
	if err != nil {
		return err
	}
	return queue.Push(ctx, core.ChunkDataQueue(cmd.StripeID, cmd.DestBlockID, int(cmd.Size)), raw)
}

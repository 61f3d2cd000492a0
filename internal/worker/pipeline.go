// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package worker

import (
	"context"

	"github.com/westerndigitalcorporation/blobstripe/internal/blobstore"
	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/transport"
	"github.com/westerndigitalcorporation/blobstripe/pkg/bufpool"
)

// sharedVecSize is the piece size a stage splits a chunk buffer into
// before streaming it down an SPSC channel to the next stage (spec.md
// §4.7 "bounded SPSC byte channels (capacity 64 SharedVec slots)"). Not
// named by spec.md beyond the channel's slot count, so it is a fixed
// implementation constant.
const sharedVecSize = 4 << 10

// pipe is one SPSC byte channel wiring two pipeline stages, buffered to
// core.PipelineChannelCapacity slots so a fast producer cannot outrun a
// slow consumer without blocking (spec.md §5 "channels provide natural
// backpressure").
type pipe chan []byte

func newPipe() pipe {
	return make(pipe, core.PipelineChannelCapacity)
}

// feed splits data into sharedVecSize pieces and streams them into p in
// order, closing p once every piece has been sent or ctx is canceled.
func feed(ctx context.Context, p pipe, data []byte) {
	defer close(p)
	for len(data) > 0 {
		n := sharedVecSize
		if n > len(data) {
			n = len(data)
		}
		select {
		case p <- data[:n]:
			data = data[n:]
		case <-ctx.Done():
			return
		}
	}
}

// drain reassembles the pieces p delivers, in the order the producing
// stage sent them, into one contiguous buffer.
func drain(p pipe, sizeHint int64) []byte {
	buf := make([]byte, 0, sizeHint)
	for piece := range p {
		buf = append(buf, piece...)
	}
	return buf
}

// doRead reads cmd's [offset, offset+size) byte range out of the disk
// holding block_key(stripe_id, block_id) and streams it into out
// (spec.md §4.7 READANDCACHEBLOCK).
func doRead(ctx context.Context, store blobstore.Store, cmd core.BlockCommand, out pipe) error {
	// buf is handed piecewise into out and consumed by another goroutine
	// (doCache), so it cannot return to bufpool until that reader has
	// copied every piece out; plain allocation keeps its lifetime simple.
	buf := make([]byte, cmd.Size)
	n, err := store.GetOffset(blockKey(cmd.StripeID, cmd.BlockID), buf, cmd.Offset)
	if err != nil {
		return err
	}
	feed(ctx, out, buf[:n])
	return nil
}

// doReadClay performs one get_offset call per Clay sub-chunk offset and
// streams the concatenated result into out (spec.md §4.7
// READANDCACHEBLOCKCLAY).
func doReadClay(ctx context.Context, store blobstore.Store, cmd core.BlockCommand, out pipe) error {
	key := blockKey(cmd.StripeID, cmd.BlockID)
	full := make([]byte, 0, int64(len(cmd.ClayOffsets))*cmd.Size)
	for _, off := range cmd.ClayOffsets {
		buf := bufpool.Get(int(cmd.Size))
		n, err := store.GetOffset(key, buf, off)
		if err != nil {
			bufpool.Put(buf)
			return err
		}
		full = append(full, buf[:n]...)
		bufpool.Put(buf)
	}
	feed(ctx, out, full)
	return nil
}

// doCache drains in and pushes the reassembled bytes to the chunk data
// queue this (stripe, block) pair caches under, at the size the
// downstream doFetch will ask for (spec.md §4.7 "pushes the bytes to
// stripeid_{S}blockid_{I}sz_{N}").
func doCache(ctx context.Context, queue *transport.Queue, cmd core.BlockCommand, in pipe) error {
	data := drain(in, cmd.Size)
	return queue.Push(ctx, core.ChunkDataQueue(cmd.StripeID, cmd.BlockID, len(data)), data)
}

// doFetch blocking-pops one payload per (src_ip, src_block_id) pair, in
// order, and places each into a k+m-wide shard slice at its source's
// block index, leaving every other slot nil (spec.md §4.7 "blocking-pops
// from each src_ip's queue in order").
func doFetch(ctx context.Context, queue *transport.Queue, cmd core.BlockCommand) ([][]byte, error) {
	shards := make([][]byte, cmd.K+cmd.M)
	for _, blockID := range cmd.SrcBlockIDs {
		payload, err := queue.Pop(ctx, core.ChunkDataQueue(cmd.StripeID, blockID, int(cmd.Size)), 0)
		if err != nil {
			return nil, err
		}
		shards[blockID] = payload
	}
	return shards, nil
}

// doWrite calls put_or_create(block_key, bytes) on the disk assigned to
// cmd's destination chunk (spec.md §4.7 "doWrite calls
// put_or_create(block_key, bytes)").
func doWrite(store blobstore.Store, cmd core.BlockCommand, data []byte) error {
	return store.PutOrCreate(blockKey(cmd.StripeID, cmd.DestBlockID), data)
}

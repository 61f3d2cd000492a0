// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package stripestream

import (
	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/ec"
	"github.com/westerndigitalcorporation/blobstripe/internal/merge"
)

// partitionStream carves each large merged group into descending
// powers-of-two multiples of partitionSize, encoding each carved slice
// with the large-blob encoder, and any residual tail with the
// small-blob encoder (spec.md §4.4.3 Partition). Carved items queue up
// in FIFO order and are drained before the next merge is pulled.
type partitionStream struct {
	merge         merge.Stream
	partitionSize int64
	largeEnc      ec.Encoder
	smallEnc      ec.Encoder

	queue []Item
}

// NewPartitionStream returns the Partition stripe-stream strategy.
func NewPartitionStream(m merge.Stream, partitionSize int64, largeEnc, smallEnc ec.Encoder) Stream {
	return &partitionStream{merge: m, partitionSize: partitionSize, largeEnc: largeEnc, smallEnc: smallEnc}
}

func (s *partitionStream) NextStripe() (Item, error) {
	if len(s.queue) > 0 {
		item := s.queue[0]
		s.queue = s.queue[1:]
		return item, nil
	}

	g, err := s.merge.Next()
	if err != nil {
		return Item{}, err
	}

	begin, err := s.carve(g, 0, int64(len(g.Data)), s.partitionSize)
	if err != nil {
		return Item{}, err
	}
	if tail := g.Data[begin:]; len(tail) > 0 {
		item, err := encodeItem(s.smallEnc, g.Blobs, tail, core.Horizontal)
		if err != nil {
			return Item{}, err
		}
		s.queue = append(s.queue, item)
	}

	if len(s.queue) == 0 {
		return s.NextStripe()
	}
	item := s.queue[0]
	s.queue = s.queue[1:]
	return item, nil
}

// carve recursively splits g.Data[begin:end) into p-sized slices,
// largest power-of-two multiple of p first, queuing an encoded item
// per slice. It returns the updated begin once no more p-sized slices
// fit in the remaining range.
//
// Blob attribution across carved slices is approximate: every carved
// item is stamped with the full merged group's blob list rather than
// the subset whose bytes literally fall in that slice, since a carve
// boundary can land inside a blob.
func (s *partitionStream) carve(g merge.Group, begin, end, p int64) (int64, error) {
	if end-begin >= 2*p {
		next, err := s.carve(g, begin, end, 2*p)
		if err != nil {
			return 0, err
		}
		begin = next
	}
	for end-begin >= p {
		item, err := encodeItem(s.largeEnc, g.Blobs, g.Data[begin:begin+p], core.Horizontal)
		if err != nil {
			return 0, err
		}
		s.queue = append(s.queue, item)
		begin += p
	}
	return begin, nil
}

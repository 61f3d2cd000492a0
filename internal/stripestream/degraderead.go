// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package stripestream

import (
	"fmt"
	"math/rand"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/ec"
)

// intraForDegradeReadStream synthesizes numStripes single-stripe items
// of deterministic pseudo-random data, one Horizontal blob per stripe
// (spec.md §4.4.3 Intra/InterForDegradeRead). Restricted to CLAY: a
// DegradeRead run exercising Intra repair needs a code that actually
// supports single-chunk repair by interference alignment.
type intraForDegradeReadStream struct {
	enc        ec.Encoder
	blockSize  int64
	numStripes int
	emitted    int
	rng        *rand.Rand
	nextBlobID uint64
}

// NewIntraForDegradeReadStream returns the IntraForDegradeRead
// synthetic stream. blockSize is k*chunk_size.
func NewIntraForDegradeReadStream(enc ec.Encoder, chunkSize int64, numStripes int) (Stream, error) {
	if enc.EcType() != core.CLAY {
		return nil, fmt.Errorf("stripestream: IntraForDegradeRead requires CLAY, got %s", enc.EcType())
	}
	return &intraForDegradeReadStream{
		enc:        enc,
		blockSize:  int64(enc.K()) * chunkSize,
		numStripes: numStripes,
		rng:        degradeReadRNG(),
	}, nil
}

func (s *intraForDegradeReadStream) NextStripe() (Item, error) {
	if s.emitted >= s.numStripes {
		return Item{}, core.ErrTraceExhaust.Error()
	}
	s.emitted++
	s.nextBlobID++
	data := synthesize(s.rng, s.blockSize)
	blob := core.BlobMeta{BlobID: core.BlobID(s.nextBlobID), BlobIndex: 0, Size: s.blockSize}
	return encodeItem(s.enc, []core.BlobMeta{blob}, data, core.Horizontal)
}

// interForDegradeReadStream synthesizes numStripes single-stripe items
// split into block_size/blob_size equal Vertical blobs. Restricted to
// the non-systematic code: Inter repair needs every chunk's data to
// already be a uniform interleave of each blob's bytes.
type interForDegradeReadStream struct {
	enc        ec.Encoder
	blockSize  int64
	blobSize   int64
	numStripes int
	emitted    int
	rng        *rand.Rand
	nextBlobID uint64
}

// NewInterForDegradeReadStream returns the InterForDegradeRead
// synthetic stream. blockSize is k*chunk_size and must be an exact
// multiple of blobSize.
func NewInterForDegradeReadStream(enc ec.Encoder, chunkSize, blobSize int64, numStripes int) (Stream, error) {
	if enc.EcType() != core.NSYS {
		return nil, fmt.Errorf("stripestream: InterForDegradeRead requires NSYS, got %s", enc.EcType())
	}
	blockSize := int64(enc.K()) * chunkSize
	if blockSize%blobSize != 0 {
		return nil, fmt.Errorf("stripestream: block_size %d not a multiple of blob_size %d", blockSize, blobSize)
	}
	return &interForDegradeReadStream{
		enc:        enc,
		blockSize:  blockSize,
		blobSize:   blobSize,
		numStripes: numStripes,
		rng:        degradeReadRNG(),
	}, nil
}

func (s *interForDegradeReadStream) NextStripe() (Item, error) {
	if s.emitted >= s.numStripes {
		return Item{}, core.ErrTraceExhaust.Error()
	}
	s.emitted++

	data := synthesize(s.rng, s.blockSize)
	n := s.blockSize / s.blobSize
	blobs := make([]core.BlobMeta, n)
	for i := int64(0); i < n; i++ {
		s.nextBlobID++
		blobs[i] = core.BlobMeta{
			BlobID:    core.BlobID(s.nextBlobID),
			BlobIndex: int(i),
			Offset:    i * s.blobSize,
			Size:      s.blobSize,
		}
	}
	return encodeItem(s.enc, blobs, data, core.Vertical)
}

// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package merge

import (
	"math/rand"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/trace"
)

// paddingStream behaves like Basic, but every blob's size is rounded up
// to the next multiple of atomicSize before merging; the padding bytes
// themselves are opaque (spec.md §4.4.2 Padding).
type paddingStream struct {
	reader     trace.Reader
	mergeSize  int64
	atomicSize int64
	rng        *rand.Rand
	merger     *ChunkMerger
}

// NewPaddingStream returns the Padding merge strategy.
func NewPaddingStream(reader trace.Reader, mergeSize, atomicSize int64) Stream {
	return &paddingStream{
		reader:     reader,
		mergeSize:  mergeSize,
		atomicSize: atomicSize,
		rng:        newRand(),
		merger:     NewChunkMerger(mergeSize),
	}
}

func (s *paddingStream) Next() (Group, error) {
	for {
		rec, err := s.reader.Next()
		if err != nil {
			if !s.merger.Empty() {
				return s.merger.Flush(), nil
			}
			return Group{}, err
		}
		if rec.Size < core.SmallBlobThreshold {
			continue
		}
		padded := padSize(int64(rec.Size), s.atomicSize)
		if padded > s.mergeSize {
			data := synthesize(s.rng, s.mergeSize)
			return Group{
				Blobs: []core.BlobMeta{{BlobID: core.BlobID(rec.BlobID), BlobIndex: 0, Size: s.mergeSize}},
				Data:  data,
			}, nil
		}

		if s.merger.WouldFill(padded) && !s.merger.Empty() {
			flushed := s.merger.Flush()
			s.merger.Add(core.BlobID(rec.BlobID), synthesize(s.rng, padded))
			return flushed, nil
		}
		s.merger.Add(core.BlobID(rec.BlobID), synthesize(s.rng, padded))
	}
}

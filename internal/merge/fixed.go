// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package merge

import (
	"math/rand"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/trace"
)

// fixedStream appends blobs with truncation so every emitted group is
// exactly mergeSize: the blob that crosses the boundary is cut and the
// internal buffer reused for the next group (spec.md §4.4.2 Fixed).
type fixedStream struct {
	reader    trace.Reader
	mergeSize int64
	rng       *rand.Rand
	merger    *ChunkMerger
}

// NewFixedStream returns the Fixed merge strategy, emitting groups of
// exactly mergeSize bytes.
func NewFixedStream(reader trace.Reader, mergeSize int64) Stream {
	return &fixedStream{reader: reader, mergeSize: mergeSize, rng: newRand(), merger: NewChunkMerger(mergeSize)}
}

func (s *fixedStream) Next() (Group, error) {
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
		if int64(rec.Size) > s.mergeSize {
			data := synthesize(s.rng, s.mergeSize)
			return Group{
				Blobs: []core.BlobMeta{{BlobID: core.BlobID(rec.BlobID), BlobIndex: 0, Size: s.mergeSize}},
				Data:  data,
			}, nil
		}

		data := synthesize(s.rng, int64(rec.Size))
		remaining := s.merger.Remaining()
		if int64(len(data)) >= remaining {
			s.merger.Add(core.BlobID(rec.BlobID), data[:remaining])
			return s.merger.Flush(), nil
		}
		s.merger.Add(core.BlobID(rec.BlobID), data)
	}
}

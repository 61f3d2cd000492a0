// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package merge

import (
	"math/rand"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/trace"
)

// basicStream uses a ChunkMerger, emitting a group as soon as adding
// the next blob would fill it rather than truncating mid-blob (spec.md
// §4.4.2 Basic).
type basicStream struct {
	reader    trace.Reader
	mergeSize int64
	rng       *rand.Rand
	merger    *ChunkMerger
}

// NewBasicStream returns the Basic merge strategy.
func NewBasicStream(reader trace.Reader, mergeSize int64) Stream {
	return &basicStream{reader: reader, mergeSize: mergeSize, rng: newRand(), merger: NewChunkMerger(mergeSize)}
}

func (s *basicStream) Next() (Group, error) {
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

		if s.merger.WouldFill(int64(rec.Size)) && !s.merger.Empty() {
			flushed := s.merger.Flush()
			s.merger.Add(core.BlobID(rec.BlobID), synthesize(s.rng, int64(rec.Size)))
			return flushed, nil
		}
		s.merger.Add(core.BlobID(rec.BlobID), synthesize(s.rng, int64(rec.Size)))
	}
}

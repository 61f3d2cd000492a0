// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package merge

import (
	"math/rand"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/trace"
)

// noneStream emits every eligible record immediately as a one-blob
// group of its own size: no merging at all.
type noneStream struct {
	reader trace.Reader
	rng    *rand.Rand
}

// NewNoneStream returns the None merge strategy over reader.
func NewNoneStream(reader trace.Reader) Stream {
	return &noneStream{reader: reader, rng: newRand()}
}

func (s *noneStream) Next() (Group, error) {
	for {
		rec, err := s.reader.Next()
		if err != nil {
			return Group{}, err
		}
		if rec.Size < core.SmallBlobThreshold {
			continue
		}
		data := synthesize(s.rng, int64(rec.Size))
		return Group{
			Blobs: []core.BlobMeta{{BlobID: core.BlobID(rec.BlobID), BlobIndex: 0, Size: int64(rec.Size)}},
			Data:  data,
		}, nil
	}
}

// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT
//
// Package stripestream implements the stripe-stream strategies that sit
// downstream of a merge.Stream (spec.md §4.4.3): each turns merged blob
// groups into one or more encoded stripe Items, padding raw data to a
// multiple of k before delegating encoding to an ec.Encoder.
package stripestream

import (
	"math/rand"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/ec"
	"github.com/westerndigitalcorporation/blobstripe/internal/merge"
)

// Item is one fully encoded stripe, ready for metadata.Core.RegisterStripe.
type Item struct {
	Blobs     []core.BlobMeta
	Chunks    [][]byte
	EcType    core.EcType
	Layout    core.BlobLayout
	ChunkSize int64
}

// Stream yields stripe Items until the underlying merge stream (or, for
// the DegradeRead synthetic streams, a fixed stripe count) is
// exhausted.
type Stream interface {
	NextStripe() (Item, error)
}

// padToK zero-pads data to a multiple of k bytes, the raw-data
// precondition every stripe-stream strategy applies before handing
// bytes to an Encoder. The result is always a freshly allocated slice,
// since data may be a sub-slice sharing a backing array with bytes a
// caller (e.g. partitionStream) has not finished reading yet.
func padToK(data []byte, k int) []byte {
	rem := len(data) % k
	out := make([]byte, len(data), len(data)+(k-rem)%k)
	copy(out, data)
	if rem != 0 {
		out = append(out, make([]byte, k-rem)...)
	}
	return out
}

// encodeItem pads data to a multiple of enc.K(), encodes it, and
// packages the result as an Item under the given blobs and layout.
func encodeItem(enc ec.Encoder, blobs []core.BlobMeta, data []byte, layout core.BlobLayout) (Item, error) {
	padded := padToK(data, enc.K())
	chunks, err := enc.Encode(padded)
	if err != nil {
		return Item{}, err
	}
	return Item{
		Blobs:     blobs,
		Chunks:    chunks,
		EcType:    enc.EcType(),
		Layout:    layout,
		ChunkSize: int64(len(chunks[0])),
	}, nil
}

// baselineStream encodes every merged group with a single encoder,
// always Horizontal (spec.md §4.4.3 Baseline).
type baselineStream struct {
	merge merge.Stream
	enc   ec.Encoder
}

// NewBaselineStream returns the Baseline stripe-stream strategy.
func NewBaselineStream(m merge.Stream, enc ec.Encoder) Stream {
	return &baselineStream{merge: m, enc: enc}
}

func (s *baselineStream) NextStripe() (Item, error) {
	g, err := s.merge.Next()
	if err != nil {
		return Item{}, err
	}
	return encodeItem(s.enc, g.Blobs, g.Data, core.Horizontal)
}

// intraLocalityStream merges with Padding, then routes each group by
// size: a group larger than merge_size goes to the large encoder,
// Horizontal; a merged ("small") group is rearranged column-major and
// goes to the small encoder, Vertical (spec.md §4.4.3 IntraLocality).
type intraLocalityStream struct {
	merge     merge.Stream
	mergeSize int64
	largeEnc  ec.Encoder
	smallEnc  ec.Encoder
}

// NewIntraLocalityStream returns the IntraLocality stripe-stream
// strategy. m must be a merge.NewPaddingStream-backed stream per
// spec.md §4.4.3.
func NewIntraLocalityStream(m merge.Stream, mergeSize int64, largeEnc, smallEnc ec.Encoder) Stream {
	return &intraLocalityStream{merge: m, mergeSize: mergeSize, largeEnc: largeEnc, smallEnc: smallEnc}
}

func (s *intraLocalityStream) NextStripe() (Item, error) {
	g, err := s.merge.Next()
	if err != nil {
		return Item{}, err
	}
	if int64(len(g.Data)) > s.mergeSize {
		return encodeItem(s.largeEnc, g.Blobs, g.Data, core.Horizontal)
	}
	g = merge.RearrangeColumnMajor(g, s.smallEnc.K())
	return encodeItem(s.smallEnc, g.Blobs, g.Data, core.Vertical)
}

// interLocalityStream delegates to an InterLocality merge stream: a
// large group goes to the large encoder Horizontal; a small group goes
// to the small encoder with layout Horizontal if the merge came from a
// locality hit, else Vertical (spec.md §4.4.3 InterLocality).
type interLocalityStream struct {
	merge     merge.Stream
	mergeSize int64
	largeEnc  ec.Encoder
	smallEnc  ec.Encoder
}

// NewInterLocalityStream returns the InterLocality stripe-stream
// strategy. m must be a merge.NewInterLocalityStream-backed stream.
func NewInterLocalityStream(m merge.Stream, mergeSize int64, largeEnc, smallEnc ec.Encoder) Stream {
	return &interLocalityStream{merge: m, mergeSize: mergeSize, largeEnc: largeEnc, smallEnc: smallEnc}
}

func (s *interLocalityStream) NextStripe() (Item, error) {
	g, err := s.merge.Next()
	if err != nil {
		return Item{}, err
	}
	if int64(len(g.Data)) > s.mergeSize {
		return encodeItem(s.largeEnc, g.Blobs, g.Data, core.Horizontal)
	}
	layout := core.Vertical
	if g.LocalityHit {
		layout = core.Horizontal
	}
	return encodeItem(s.smallEnc, g.Blobs, g.Data, layout)
}

// degradeReadRNG is the fixed-seed generator the degrade-read synthetic
// streams use, mirroring merge streams' reproducibility requirement.
func degradeReadRNG() *rand.Rand {
	return rand.New(rand.NewSource(core.MergeStreamSeed))
}

// synthesize fills size pseudo-random bytes from rng, mirroring
// merge's own helper of the same name: the degrade-read streams care
// only about data size, not content.
func synthesize(rng *rand.Rand, size int64) []byte {
	data := make([]byte, size)
	rng.Read(data)
	return data
}

// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package ec

import (
	"github.com/klauspost/reedsolomon"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
)

// rsEncoder is the systematic Reed-Solomon code, delegating to
// klauspost/reedsolomon exactly as the teacher's client-side
// reconstruction path does (client/blb/reconstruct.go).
type rsEncoder struct {
	k, m int
	enc  reedsolomon.Encoder
}

func newRSEncoder(k, m int) (Encoder, error) {
	enc, err := reedsolomon.New(k, m)
	if err != nil {
		return nil, err
	}
	return &rsEncoder{k: k, m: m, enc: enc}, nil
}

func (r *rsEncoder) EcType() core.EcType { return core.RS }
func (r *rsEncoder) K() int              { return r.k }
func (r *rsEncoder) M() int              { return r.m }
func (r *rsEncoder) SubChunkCount() int  { return 1 }

func (r *rsEncoder) Encode(data []byte) ([][]byte, error) {
	shards, err := r.enc.Split(data)
	if err != nil {
		return nil, err
	}
	if err := r.enc.Encode(shards); err != nil {
		return nil, err
	}
	return shards, nil
}

func (r *rsEncoder) Reconstruct(shards [][]byte, missing []int) error {
	present := make([][]byte, len(shards))
	copy(present, shards)
	for _, idx := range missing {
		present[idx] = nil
	}
	if err := r.enc.Reconstruct(present); err != nil {
		return err
	}
	for _, idx := range missing {
		shards[idx] = present[idx]
	}
	return nil
}

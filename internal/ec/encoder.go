// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ec provides the erasure-code encoders the stripe-stream and
// worker compute stages delegate to. Per spec.md §1, the numeric kernels
// themselves are out of scope ("treated as black-box encoders/decoders
// with known sub-chunk counts"); this package gives each EC family a
// concrete, self-contained implementation behind one small interface so
// the rest of the system (task builders, worker doCompute) has something
// real to call.
package ec

import "github.com/westerndigitalcorporation/blobstripe/internal/core"

// Encoder turns k data shards into k+m shards (data followed by parity)
// and can reconstruct missing shards given enough survivors. It replaces
// a class hierarchy with a single dynamic-dispatch interface, tagged
// elsewhere by EcType (spec.md §9).
type Encoder interface {
	// EcType reports which EC family this Encoder implements.
	EcType() core.EcType

	// K and M report the data/parity shard counts.
	K() int
	M() int

	// SubChunkCount returns w, the number of sub-chunks each chunk is
	// divided into for this encoder. RS and NSYS always report 1; CLAY
	// reports the w from core.SubChunkCount(k, m).
	SubChunkCount() int

	// Encode splits data (len(data) must be a multiple of K()) into K()
	// data shards and produces M() parity shards, returning all K()+M()
	// shards of equal length.
	Encode(data []byte) ([][]byte, error)

	// Reconstruct fills in the shards at indices given by 'missing' using
	// whichever entries of 'shards' are non-nil. len(shards) must be
	// K()+M(). At least K() shards must be present.
	Reconstruct(shards [][]byte, missing []int) error
}

// NewEncoder is the factory the coordinator and task builders use to pick
// an Encoder by EcType, mirroring the reference implementation's
// ec/include/erasure_code_factory.hpp.
func NewEncoder(t core.EcType, k, m int) (Encoder, error) {
	switch t {
	case core.RS:
		return newRSEncoder(k, m)
	case core.NSYS:
		return newNsysEncoder(k, m)
	case core.CLAY:
		return newClayEncoder(k, m)
	default:
		return nil, core.ErrUnsupportedCombination.Error()
	}
}

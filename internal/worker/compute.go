// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package worker

import (
	"fmt"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/ec"
)

// computeEcType maps a compute subtype to the EC family whose Encoder
// doCompute should build (spec.md §4.7 "constructs a decoder for the
// compute subtype with {k, m}").
func computeEcType(t core.ComputeType) (core.EcType, error) {
	switch t {
	case core.ClayRepair, core.ClayRead:
		return core.CLAY, nil
	case core.RSRepair, core.RSRead:
		return core.RS, nil
	case core.NsysRepair, core.NsysRead:
		return core.NSYS, nil
	default:
		return 0, fmt.Errorf("worker: unknown compute type %v", t)
	}
}

// doCompute reconstructs the shard at cmd.dest_block_id from shards
// (indexed by chunk index, nil where absent) using the EC family
// cmd.compute_type names. Both a repair and a read ask for exactly the
// one shard named by dest_block_id — a *_REPAIR treats it as genuinely
// lost, a *_READ treats it as the chunk the blob's bytes live in and
// asks the encoder to reconstruct it from the survivors gathered by the
// task builder the same way (spec.md §4.5's centralized plans always
// exclude the target chunk from the survivor set).
func doCompute(cmd core.BlockCommand, shards [][]byte) ([]byte, error) {
	ecType, err := computeEcType(cmd.ComputeType)
	if err != nil {
		return nil, err
	}
	enc, err := ec.NewEncoder(ecType, cmd.K, cmd.M)
	if err != nil {
		return nil, err
	}
	dest := int(cmd.DestBlockID)
	if err := enc.Reconstruct(shards, []int{dest}); err != nil {
		return nil, err
	}
	return shards[dest], nil
}

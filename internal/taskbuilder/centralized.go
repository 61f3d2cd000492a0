// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package taskbuilder

import (
	"math/rand"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/ec"
	"github.com/westerndigitalcorporation/blobstripe/internal/metadata"
)

// BuildCentralizedRS builds the RS centralized plan (spec.md §4.5): k
// random surviving chunks are read-and-cached, then one
// FetchAndComputeAndWriteBlock with compute RSRepair or RSRead targets
// disk_list[failed]. Used for both RS repair and RS degraded reads.
func BuildCentralizedRS(meta metadata.StripeMeta, pg PG, failed core.ChunkIndex, compute core.ComputeType, rng *rand.Rand) (core.Plan, error) {
	total := meta.K + meta.M
	survivors := randomSurvivors(rng, total, int(failed), meta.K)
	return buildGatherPlan(meta, pg, failed, survivors, compute, meta.K, 0, meta.ChunkSize)
}

// BuildCentralizedNSYS builds the NSYS centralized plan: identical
// shape to RS, but every surviving chunk (k+m-1 of them) is read
// rather than a random k-subset, since the non-systematic code needs
// all survivors to reconstruct any one chunk.
func BuildCentralizedNSYS(meta metadata.StripeMeta, pg PG, failed core.ChunkIndex, compute core.ComputeType, rng *rand.Rand) (core.Plan, error) {
	total := meta.K + meta.M
	survivors := randomSurvivors(rng, total, int(failed), total-1)
	return buildGatherPlan(meta, pg, failed, survivors, compute, total-1, 0, meta.ChunkSize)
}

// BuildCentralizedNSYSRange is BuildCentralizedNSYS restricted to a
// byte sub-range of the target chunk, the building block NSYS read
// plans carve a blob's byte range into (spec.md §4.5 "NSYS read").
func BuildCentralizedNSYSRange(meta metadata.StripeMeta, pg PG, failed core.ChunkIndex, offset, length int64, compute core.ComputeType, rng *rand.Rand) (core.Plan, error) {
	total := meta.K + meta.M
	survivors := randomSurvivors(rng, total, int(failed), total-1)
	return buildGatherPlan(meta, pg, failed, survivors, compute, total-1, offset, length)
}

// BuildCentralizedRSRange is BuildCentralizedRS restricted to a byte
// sub-range of the target chunk, used by a degraded read over an RS
// stripe that only needs to reconstruct the bytes a blob actually
// occupies rather than the whole chunk.
func BuildCentralizedRSRange(meta metadata.StripeMeta, pg PG, failed core.ChunkIndex, offset, length int64, compute core.ComputeType, rng *rand.Rand) (core.Plan, error) {
	total := meta.K + meta.M
	survivors := randomSurvivors(rng, total, int(failed), meta.K)
	return buildGatherPlan(meta, pg, failed, survivors, compute, meta.K, offset, length)
}

// buildGatherPlan is the common RS/NSYS shape: one READANDCACHEBLOCK
// per survivor over [offset,offset+length) of its chunk, then one
// gathering FETCHANDCOMPUTEANDWRITEBLOCK targeting the failed chunk's
// disk over that same range.
func buildGatherPlan(meta metadata.StripeMeta, pg PG, failed core.ChunkIndex, survivors []int, compute core.ComputeType, blockNum int, offset, length int64) (core.Plan, error) {
	commands := make([]core.BlockCommand, 0, len(survivors)+1)
	ips := make([]string, 0, len(survivors)+1)
	srcIPs := make([]string, 0, len(survivors))
	srcBlockIDs := make([]uint8, 0, len(survivors))

	for _, s := range survivors {
		cmd := buildCommand(meta.StripeID, meta.K, meta.M)
		cmd.Type = core.ReadAndCacheBlock
		cmd.BlockID = uint8(s)
		cmd.Offset = offset
		cmd.Size = length
		cmd.DiskID = pg.Disks[s]
		commands = append(commands, cmd)
		ips = append(ips, pg.IPs[s])
		srcIPs = append(srcIPs, pg.IPs[s])
		srcBlockIDs = append(srcBlockIDs, uint8(s))
	}

	final := buildCommand(meta.StripeID, meta.K, meta.M)
	final.Type = core.FetchAndComputeAndWriteBlock
	final.ComputeType = compute
	final.SrcIPs = srcIPs
	final.SrcBlockIDs = srcBlockIDs
	final.DestBlockID = uint8(failed)
	final.BlockNum = blockNum
	final.Offset = offset
	final.Size = length
	final.DiskID = pg.Disks[failed]
	commands = append(commands, final)
	ips = append(ips, pg.IPs[failed])

	return core.Plan{Commands: commands, IPs: ips}, nil
}

// BuildCentralizedClay builds the CLAY centralized plan: every surviving
// chunk (k+m-1 of them) is fed to MinimumToDecode, since Clay's local
// repair, like NSYS's, needs all survivors rather than a random k-subset
// — each survivor gets a READANDCACHEBLOCKCLAY, and the final
// FETCHANDCOMPUTEANDWRITEBLOCK carries compute ClayRepair or ClayRead.
func BuildCentralizedClay(meta metadata.StripeMeta, pg PG, failed core.ChunkIndex, enc ec.ClayEncoder, compute core.ComputeType, rng *rand.Rand) (core.Plan, error) {
	total := meta.K + meta.M
	survivors := randomSurvivors(rng, total, int(failed), total-1)
	plan := enc.MinimumToDecode(survivors)

	w := enc.SubChunkCount()
	subChunkSize := meta.ChunkSize / int64(w)

	commands := make([]core.BlockCommand, 0, len(survivors)+1)
	ips := make([]string, 0, len(survivors)+1)
	srcIPs := make([]string, 0, len(survivors))
	srcBlockIDs := make([]uint8, 0, len(survivors))

	for _, s := range survivors {
		offsets := plan[s]
		byteOffsets := make([]int64, len(offsets))
		for i, o := range offsets {
			byteOffsets[i] = int64(o) * subChunkSize
		}
		cmd := buildCommand(meta.StripeID, meta.K, meta.M)
		cmd.Type = core.ReadAndCacheBlockClay
		cmd.BlockID = uint8(s)
		cmd.Size = subChunkSize
		cmd.ClayOffsets = byteOffsets
		cmd.DiskID = pg.Disks[s]
		commands = append(commands, cmd)
		ips = append(ips, pg.IPs[s])
		srcIPs = append(srcIPs, pg.IPs[s])
		srcBlockIDs = append(srcBlockIDs, uint8(s))
	}

	final := buildCommand(meta.StripeID, meta.K, meta.M)
	final.Type = core.FetchAndComputeAndWriteBlock
	final.ComputeType = compute
	final.SrcIPs = srcIPs
	final.SrcBlockIDs = srcBlockIDs
	final.DestBlockID = uint8(failed)
	final.BlockNum = total - 1
	final.Size = meta.ChunkSize
	final.DiskID = pg.Disks[failed]
	commands = append(commands, final)
	ips = append(ips, pg.IPs[failed])

	return core.Plan{Commands: commands, IPs: ips}, nil
}

// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package taskbuilder

import (
	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/metadata"
)

// BuildPipelinedRS builds the RS pipelined plan: one READANDCACHE per
// source, then a chain of FETCHANDCOMPUTE hops each folding one more
// survivor's data into a running accumulator forwarded to the next
// hop's node, terminated by the hop that writes disk_list[failed].
func BuildPipelinedRS(meta metadata.StripeMeta, pg PG, failed core.ChunkIndex) (core.Plan, error) {
	total := meta.K + meta.M
	survivors := orderedSurvivors(total, int(failed))[:meta.K]
	return buildPipelinedPlan(meta, pg, failed, survivors, core.RSRepair, meta.K)
}

// BuildPipelinedNSYS builds the NSYS pipelined plan, identical in
// shape but chaining through every surviving chunk.
func BuildPipelinedNSYS(meta metadata.StripeMeta, pg PG, failed core.ChunkIndex) (core.Plan, error) {
	total := meta.K + meta.M
	survivors := orderedSurvivors(total, int(failed))
	return buildPipelinedPlan(meta, pg, failed, survivors, core.NsysRepair, total-1)
}

// orderedSurvivors returns every chunk index in [0,total) except
// failed, in increasing order — the pipelined hop chain's order needs
// to be deterministic, unlike the centralized plans' random subset.
func orderedSurvivors(total, failed int) []int {
	out := make([]int, 0, total-1)
	for i := 0; i < total; i++ {
		if i != failed {
			out = append(out, i)
		}
	}
	return out
}

func buildPipelinedPlan(meta metadata.StripeMeta, pg PG, failed core.ChunkIndex, survivors []int, compute core.ComputeType, blockNum int) (core.Plan, error) {
	commands := make([]core.BlockCommand, 0, 2*len(survivors))
	ips := make([]string, 0, 2*len(survivors))

	for _, s := range survivors {
		cmd := buildCommand(meta.StripeID, meta.K, meta.M)
		cmd.Type = core.ReadAndCacheBlock
		cmd.BlockID = uint8(s)
		cmd.Size = meta.ChunkSize
		cmd.DiskID = pg.Disks[s]
		commands = append(commands, cmd)
		ips = append(ips, pg.IPs[s])
	}

	for i, s := range survivors {
		cmd := buildCommand(meta.StripeID, meta.K, meta.M)
		cmd.Type = core.FetchAndComputeAndWriteBlock
		cmd.ComputeType = compute
		cmd.BlockNum = blockNum
		cmd.Size = meta.ChunkSize

		if i == 0 {
			cmd.SrcIPs = []string{pg.IPs[s]}
			cmd.SrcBlockIDs = []uint8{uint8(s)}
		} else {
			cmd.SrcIPs = []string{pg.IPs[survivors[i-1]], pg.IPs[s]}
			cmd.SrcBlockIDs = []uint8{core.PipelineAccumulatorBlockID, uint8(s)}
		}

		if i == len(survivors)-1 {
			cmd.DestBlockID = uint8(failed)
			cmd.DiskID = pg.Disks[failed]
			ips = append(ips, pg.IPs[failed])
		} else {
			cmd.DestBlockID = core.PipelineAccumulatorBlockID
			cmd.DiskID = pg.Disks[s]
			ips = append(ips, pg.IPs[s])
		}
		commands = append(commands, cmd)
	}

	return core.Plan{Commands: commands, IPs: ips}, nil
}

// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package taskbuilder

import (
	"math/rand"
	"testing"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/ec"
	"github.com/westerndigitalcorporation/blobstripe/internal/metadata"
)

func testPG(n int) PG {
	disks := make([]core.DiskID, n)
	ips := make([]string, n)
	for i := 0; i < n; i++ {
		disks[i] = core.DiskID(i + 1)
		ips[i] = "10.0.0." + itoa(i+1)
	}
	return PG{Disks: disks, IPs: ips}
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

func testStripeMeta(k, m int) metadata.StripeMeta {
	return metadata.StripeMeta{
		StripeID: 1,
		EcType:   core.RS,
		K:        k,
		M:        m,
		Layout:   core.Horizontal,
		ChunkSize: 4096,
	}
}

func TestBuildCentralizedRS(t *testing.T) {
	meta := testStripeMeta(4, 2)
	pg := testPG(6)
	rng := rand.New(rand.NewSource(1))

	plan, err := BuildCentralizedRS(meta, pg, 2, core.RSRepair, rng)
	if err != nil {
		t.Fatalf("BuildCentralizedRS: %v", err)
	}
	if len(plan.Commands) != 5 {
		t.Fatalf("got %d commands, want k+1=5", len(plan.Commands))
	}
	final := plan.Commands[len(plan.Commands)-1]
	if final.Type != core.FetchAndComputeAndWriteBlock || final.ComputeType != core.RSRepair {
		t.Fatalf("final command = %+v, want gathering RS repair", final)
	}
	if final.DestBlockID != 2 {
		t.Fatalf("DestBlockID = %d, want failed index 2", final.DestBlockID)
	}
	if plan.SinkIP() != pg.IPs[2] {
		t.Fatalf("SinkIP = %s, want repair target's IP %s", plan.SinkIP(), pg.IPs[2])
	}
	for _, id := range final.SrcBlockIDs {
		if id == 2 {
			t.Fatalf("survivor set must exclude the failed index, got %v", final.SrcBlockIDs)
		}
	}
}

func TestBuildCentralizedNSYSUsesAllSurvivors(t *testing.T) {
	meta := testStripeMeta(4, 2)
	pg := testPG(6)
	rng := rand.New(rand.NewSource(1))

	plan, err := BuildCentralizedNSYS(meta, pg, 0, core.NsysRepair, rng)
	if err != nil {
		t.Fatalf("BuildCentralizedNSYS: %v", err)
	}
	// 5 survivor reads + 1 gathering command.
	if len(plan.Commands) != 6 {
		t.Fatalf("got %d commands, want 6", len(plan.Commands))
	}
}

func TestBuildCentralizedClay(t *testing.T) {
	meta := testStripeMeta(4, 2)
	meta.EcType = core.CLAY
	pg := testPG(6)
	rng := rand.New(rand.NewSource(1))

	enc, err := ec.NewEncoder(core.CLAY, 4, 2)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	clayEnc := enc.(ec.ClayEncoder)

	plan, err := BuildCentralizedClay(meta, pg, 1, clayEnc, core.ClayRepair, rng)
	if err != nil {
		t.Fatalf("BuildCentralizedClay: %v", err)
	}
	// k+m-1 = 5 survivor reads + 1 gathering command: Clay's local repair
	// needs every survivor, not a random k-subset.
	if len(plan.Commands) != 6 {
		t.Fatalf("got %d commands, want 6", len(plan.Commands))
	}
	for _, cmd := range plan.Commands[:len(plan.Commands)-1] {
		if cmd.Type != core.ReadAndCacheBlockClay {
			t.Fatalf("survivor commands must be READANDCACHEBLOCKCLAY, got %s", cmd.Type)
		}
		if len(cmd.ClayOffsets) != clayEnc.SubChunkCount() {
			t.Fatalf("got %d clay offsets, want w=%d", len(cmd.ClayOffsets), clayEnc.SubChunkCount())
		}
	}
}

func TestBuildPipelinedRSChainsHops(t *testing.T) {
	meta := testStripeMeta(4, 2)
	pg := testPG(6)

	plan, err := BuildPipelinedRS(meta, pg, 3)
	if err != nil {
		t.Fatalf("BuildPipelinedRS: %v", err)
	}
	// k reads + k compute hops.
	if len(plan.Commands) != 8 {
		t.Fatalf("got %d commands, want 2k=8", len(plan.Commands))
	}
	last := plan.Commands[len(plan.Commands)-1]
	if last.DestBlockID != 3 {
		t.Fatalf("final hop DestBlockID = %d, want failed index 3", last.DestBlockID)
	}
	if plan.SinkIP() != pg.IPs[3] {
		t.Fatalf("SinkIP = %s, want repair target's IP", plan.SinkIP())
	}
}

func TestBuildNSYSReadPlansSplitsAcrossChunks(t *testing.T) {
	meta := testStripeMeta(4, 2)
	pg := testPG(6)
	rng := rand.New(rand.NewSource(1))

	// chunk_size 4096; blob spans [4000, 4000+200) -> crosses one chunk
	// boundary, so two sub-range plans.
	blob := core.BlobMeta{BlobID: 1, Offset: 4000, Size: 200}
	plans, err := BuildNSYSReadPlans(meta, pg, blob, rng)
	if err != nil {
		t.Fatalf("BuildNSYSReadPlans: %v", err)
	}
	if len(plans) != 2 {
		t.Fatalf("got %d plans, want 2 (blob crosses a chunk boundary)", len(plans))
	}
}

func TestBuildClayReadPlansOneChunk(t *testing.T) {
	meta := testStripeMeta(4, 2)
	meta.EcType = core.CLAY
	pg := testPG(6)
	rng := rand.New(rand.NewSource(1))

	enc, _ := ec.NewEncoder(core.CLAY, 4, 2)
	clayEnc := enc.(ec.ClayEncoder)

	blob := core.BlobMeta{BlobID: 1, Offset: 100, Size: 50}
	plans, err := BuildClayReadPlans(meta, pg, blob, clayEnc, rng)
	if err != nil {
		t.Fatalf("BuildClayReadPlans: %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("got %d plans, want 1 (blob fits in one chunk)", len(plans))
	}
}

func TestBuildVerticalNSYSReadPlansCoversEveryChunk(t *testing.T) {
	meta := testStripeMeta(4, 2)
	pg := testPG(6)
	rng := rand.New(rand.NewSource(1))

	blob := core.BlobMeta{BlobID: 1, Offset: 0, Size: 400}
	plans, err := BuildVerticalNSYSReadPlans(meta, pg, blob, rng)
	if err != nil {
		t.Fatalf("BuildVerticalNSYSReadPlans: %v", err)
	}
	if len(plans) != meta.K+meta.M {
		t.Fatalf("got %d plans, want one per chunk (k+m=%d)", len(plans), meta.K+meta.M)
	}
}

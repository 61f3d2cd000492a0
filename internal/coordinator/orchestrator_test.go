// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package coordinator

import (
	"math/rand"
	"testing"
	"time"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
)

func TestRandomDiskPicksFromTopology(t *testing.T) {
	o := &Orchestrator{
		cfg: Parsed{Config: Config{DiskList: [][]int{{0, 1}, {2, 3}}}},
		rng: rand.New(rand.NewSource(1)),
	}
	seen := map[core.DiskID]bool{}
	for i := 0; i < 50; i++ {
		seen[o.randomDisk()] = true
	}
	for _, want := range []core.DiskID{0, 1, 2, 3} {
		if !seen[want] {
			t.Fatalf("randomDisk never returned disk %d over 50 draws", want)
		}
	}
}

func TestAckQueueForRepairVsRead(t *testing.T) {
	o := &Orchestrator{}

	repairPlan := core.Plan{
		Commands: []core.BlockCommand{{
			Type:        core.FetchAndComputeAndWriteBlock,
			ComputeType: core.RSRepair,
		}},
		IPs: []string{"10.0.0.1"},
	}
	if got := o.ackQueueFor(repairPlan); got != core.QueueRepairAck {
		t.Fatalf("ackQueueFor(repair) = %q, want %q", got, core.QueueRepairAck)
	}

	readPlan := core.Plan{
		Commands: []core.BlockCommand{{
			Type:        core.FetchAndComputeAndWriteBlock,
			ComputeType: core.RSRead,
		}},
		IPs: []string{"10.0.0.1"},
	}
	if got := o.ackQueueFor(readPlan); got != core.QueueReadAck {
		t.Fatalf("ackQueueFor(read) = %q, want %q", got, core.QueueReadAck)
	}
}

func TestThrottleRepairDisabledByDefault(t *testing.T) {
	o := &Orchestrator{cfg: Parsed{Config: Config{ChunkSize: 4096}}}
	done := make(chan struct{})
	go func() {
		o.throttleRepair()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("throttleRepair blocked with repair_bandwidth_mbps unset")
	}
}

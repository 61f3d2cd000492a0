// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT
//
// Package taskbuilder turns a stripe's metadata and a requested
// operation into an ordered core.Plan of BlockCommands and recipient
// IPs, ready for the coordinator to push to worker _LIST_BLK_CMD
// queues (spec.md §4.5). Builders never talk to transport or metadata
// themselves; they are pure functions over metadata.StripeMeta plus
// the PG's disk/IP lists, so the coordinator stays the only place that
// drives I/O.
package taskbuilder

import (
	"math/rand"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/metadata"
)

// PG carries the placement information a builder needs alongside a
// stripe's own metadata: which disk and which worker IP backs each
// chunk index.
type PG struct {
	Disks []core.DiskID
	IPs   []string
}

// FromMetadata adapts a metadata.Core's PG lookups into a PG value.
func FromMetadata(c *metadata.Core, pg core.PGID) (PG, error) {
	disks, err := c.PGToDisks(pg)
	if err != nil {
		return PG{}, err
	}
	ips, err := c.PGToWorkerIPs(pg)
	if err != nil {
		return PG{}, err
	}
	return PG{Disks: disks, IPs: ips}, nil
}

// randomSurvivors picks n distinct indices from [0,total) excluding
// failed, using rng. Centralized RS plans pick a random k-subset of
// survivors (spec.md §4.5 "pick k random surviving chunk indices");
// NSYS centralized plans call this with n == total-1 (all survivors).
func randomSurvivors(rng *rand.Rand, total, failed, n int) []int {
	pool := make([]int, 0, total-1)
	for i := 0; i < total; i++ {
		if i != failed {
			pool = append(pool, i)
		}
	}
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	out := pool[:n]
	// The chosen survivors keep their shuffled order, which is
	// reproducible for a given rng seed.
	ints := make([]int, len(out))
	copy(ints, out)
	return ints
}

// buildCommand is the shared zero-value BlockCommand for a stripe,
// filled in per command type by each builder.
func buildCommand(stripeID core.StripeID, k, m int) core.BlockCommand {
	return core.BlockCommand{StripeID: stripeID, K: k, M: m}
}

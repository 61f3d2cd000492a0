// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package coordinator

import (
	"context"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/metadata"
	"github.com/westerndigitalcorporation/blobstripe/internal/taskbuilder"
)

// DegradeRead replays the blob-access log assuming one fixed chunk
// index per stripe's EC width has been lost (spec.md §4.6): RS falls
// back to a repair plan over just the bytes the blob needs, NSYS/CLAY
// reuse their ordinary read plans since those codes already gather
// every survivor to decode any one chunk. Unlike Read, this action
// does not call Load: blob and stripe records are read straight from
// the durable store, and placement groups come from the coordinator's
// own RegisterPG call.
func (o *Orchestrator) DegradeRead(ctx context.Context) error {
	failed := core.ChunkIndex(o.degradeFailedChunk())

	var cachedID core.StripeID
	var cachedMeta metadata.StripeMeta
	var cachedPG taskbuilder.PG
	haveCached := false

	err := o.blobLog.Iterate(func(blobID core.BlobID) error {
		blob, err := o.meta.BlobMetaByID(blobID)
		if err != nil {
			return err
		}

		sm, pg, err := o.cachedStripe(blob.StripeID, &cachedID, &cachedMeta, &cachedPG, &haveCached)
		if err != nil {
			return err
		}

		var plans []core.Plan
		if sm.EcType == core.RS {
			plans, err = taskbuilder.BuildRSDegradeReadPlans(sm, pg, failed, blob, o.rng)
		} else {
			plans, err = o.readPlan(sm, pg, blob)
		}
		if err != nil {
			return err
		}

		for _, plan := range plans {
			p := plan
			if err := o.pool.Submit(ctx, func() error { return o.dispatchPlan(ctx, p) }); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return o.pool.Drain()
}

// degradeFailedChunk picks the one chunk index assumed lost for the
// whole DegradeRead run. spec.md's TOML keys do not name a dedicated
// field for this (chunk_index/failed_disk are repair_chunk/
// repair_failure_domain-only), so it is derived deterministically from
// the fixed merge-stream seed rather than left unconfigurable at
// random per call.
func (o *Orchestrator) degradeFailedChunk() int {
	total := o.cfg.EcK + o.cfg.EcM
	return o.rng.Intn(total)
}

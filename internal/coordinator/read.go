// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package coordinator

import (
	"context"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/metadata"
	"github.com/westerndigitalcorporation/blobstripe/internal/taskbuilder"
)

// Read replays the blob-access log, dispatching the configured EC
// type's read plan for every blob and popping one ACK per sink
// (spec.md §4.6). A prior BuildData run persisted the metadata this
// action resumes from disk.
func (o *Orchestrator) Read(ctx context.Context) error {
	if err := o.meta.Load(); err != nil {
		return err
	}

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

		plans, err := o.readPlan(sm, pg, blob)
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

// cachedStripe resolves stripeID's metadata and PG, reusing *id/*meta/
// *pg when stripeID matches what was cached on the previous call
// (spec.md §4.6 "reuses the previously fetched stripe meta when the
// stripe_id matches the cached one").
func (o *Orchestrator) cachedStripe(stripeID core.StripeID, id *core.StripeID, meta *metadata.StripeMeta, pg *taskbuilder.PG, have *bool) (metadata.StripeMeta, taskbuilder.PG, error) {
	if *have && *id == stripeID {
		return *meta, *pg, nil
	}

	sm, err := o.meta.StripeMetaByID(stripeID)
	if err != nil {
		return metadata.StripeMeta{}, taskbuilder.PG{}, err
	}
	p, err := o.stripePG(stripeID)
	if err != nil {
		return metadata.StripeMeta{}, taskbuilder.PG{}, err
	}

	*id, *meta, *pg, *have = stripeID, sm, p, true
	return sm, p, nil
}

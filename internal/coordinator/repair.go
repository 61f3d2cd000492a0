// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/metadata"
	"github.com/westerndigitalcorporation/blobstripe/internal/taskbuilder"
)

// RepairChunk rebuilds one fixed chunk index across a run of stripes
// starting at start_at (spec.md §4.6): centralized plans use the
// matching BuildCentralized* builder directly, pipelined plans chain
// hops for RS/NSYS or look up a precomputed plan for CLAY. Plan
// construction stays on this single goroutine (it touches o.rng); only
// each plan's dispatch is handed to the pool.
func (o *Orchestrator) RepairChunk(ctx context.Context) error {
	if err := o.meta.Load(); err != nil {
		return err
	}

	failed := core.ChunkIndex(o.cfg.ChunkIndex)

	n := uint64(0)
	for o.cfg.TestLoad <= 0 || float64(n) < o.cfg.TestLoad {
		stripeID := core.StripeID(o.cfg.StartAt + n)
		n++

		sm, err := o.meta.StripeMetaByID(stripeID)
		if err != nil {
			if errors.Is(err, core.ErrKeyNotFound.Error()) {
				break
			}
			return err
		}
		pg, err := o.stripePG(stripeID)
		if err != nil {
			return err
		}

		plan, err := o.repairPlan(sm, pg, failed)
		if err != nil {
			return err
		}

		o.throttleRepair()
		p := plan
		if err := o.pool.Submit(ctx, func() error { return o.dispatchPlan(ctx, p) }); err != nil {
			return err
		}
	}
	return o.pool.Drain()
}

// repairPlan picks the centralized or pipelined repair-plan builder for
// sm's EC type, per the configured manner (spec.md §4.5, §4.6).
func (o *Orchestrator) repairPlan(sm metadata.StripeMeta, pg taskbuilder.PG, failed core.ChunkIndex) (core.Plan, error) {
	switch o.cfg.Manner {
	case core.Centralized:
		switch sm.EcType {
		case core.RS:
			return taskbuilder.BuildCentralizedRS(sm, pg, failed, core.RSRepair, o.rng)
		case core.NSYS:
			return taskbuilder.BuildCentralizedNSYS(sm, pg, failed, core.NsysRepair, o.rng)
		case core.CLAY:
			clayEnc, err := o.clayEncoder()
			if err != nil {
				return core.Plan{}, err
			}
			return taskbuilder.BuildCentralizedClay(sm, pg, failed, clayEnc, core.ClayRepair, o.rng)
		default:
			return core.Plan{}, fmt.Errorf("coordinator: unhandled ec_type %v", sm.EcType)
		}
	case core.Pipelined:
		switch sm.EcType {
		case core.RS:
			return taskbuilder.BuildPipelinedRS(sm, pg, failed)
		case core.NSYS:
			return taskbuilder.BuildPipelinedNSYS(sm, pg, failed)
		case core.CLAY:
			store, err := o.clayPlanStore()
			if err != nil {
				return core.Plan{}, err
			}
			return store.ForStripe(sm.K+sm.M, int(failed), pg)
		default:
			return core.Plan{}, fmt.Errorf("coordinator: unhandled ec_type %v", sm.EcType)
		}
	default:
		return core.Plan{}, fmt.Errorf("coordinator: unhandled manner %v", o.cfg.Manner)
	}
}

// RepairFailureDomain rebuilds every chunk a failed disk held (spec.md
// §4.6): failed_disk selects the disk (-1 picks one at random), then
// every affected placement group's stripes are repaired at that PG's
// chunk index for the disk, one centralized plan per stripe.
func (o *Orchestrator) RepairFailureDomain(ctx context.Context) error {
	if err := o.meta.Load(); err != nil {
		return err
	}

	diskID := core.DiskID(o.cfg.FailedDisk)
	if o.cfg.FailedDisk < 0 {
		diskID = o.randomDisk()
	}

	targets := o.meta.DiskRepair(diskID)
	for _, target := range targets {
		ips, err := o.meta.PGToWorkerIPs(target.PG.PGID)
		if err != nil {
			return err
		}
		pg := taskbuilder.PG{Disks: target.PG.DiskList, IPs: ips}

		for _, stripeID := range target.Stripes {
			sm, err := o.meta.StripeMetaByID(stripeID)
			if err != nil {
				return err
			}

			plan, err := o.repairPlan(sm, pg, target.ChunkIndex)
			if err != nil {
				return err
			}

			o.throttleRepair()
			p := plan
			if err := o.pool.Submit(ctx, func() error { return o.dispatchPlan(ctx, p) }); err != nil {
				return err
			}
		}
	}
	return o.pool.Drain()
}

// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package coordinator

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"time"

	log "github.com/golang/glog"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/durable"
	"github.com/westerndigitalcorporation/blobstripe/internal/ec"
	"github.com/westerndigitalcorporation/blobstripe/internal/metadata"
	"github.com/westerndigitalcorporation/blobstripe/internal/taskbuilder"
	"github.com/westerndigitalcorporation/blobstripe/internal/transport"
	"github.com/westerndigitalcorporation/blobstripe/pkg/reqid"
	"github.com/westerndigitalcorporation/blobstripe/pkg/tokenbucket"
)

// ackTimeout bounds how long the coordinator waits for a single ACK.
// spec.md §5 says cancellation/timeouts are out of scope for the
// core's suspension points ("transport.pop blocks indefinitely"); this
// is a practical ceiling so a hung worker does not wedge the process
// forever, kept generous relative to any real pipeline stage.
const ackTimeout = 30 * time.Second

// Orchestrator owns every shared resource an action needs: the
// metadata core, the transport connection, the blob-access log, and a
// bounded task pool (spec.md §4.6, §9 "coordinator ↔ metadata core ↔
// transport form a star").
//
// rng is shared and not safe for concurrent use: every call site must
// be on the single goroutine driving an action's main loop (plan
// construction happens before a unit of work is handed to pool.Submit,
// never inside the submitted closure).
type Orchestrator struct {
	cfg       Parsed
	meta      *metadata.Core
	store     *durable.Store
	queue     *transport.Queue
	blobLog   *BlobLog
	pool      *TaskPool
	rng       *rand.Rand
	clayPlans *taskbuilder.ClayPlanStore

	// repairBwLim throttles RepairChunk/RepairFailureDomain, mirroring
	// the teacher's curator.rsEncodeBwLim/recoveryBwLim rate limiters.
	// Built lazily (not in New) since it is only needed by those two
	// actions.
	repairBwLim *tokenbucket.TokenBucket
}

// New constructs an Orchestrator from a validated config: opens the
// durable store, builds the in-memory metadata core from worker_ip/
// disk_list, and registers the placement groups.
func New(cfg Parsed) (*Orchestrator, error) {
	store, err := durable.Open(filepath.Join(cfg.WorkingDir, "meta"))
	if err != nil {
		return nil, fmt.Errorf("coordinator: opening metadata store: %w", err)
	}

	meta := metadata.NewCore(store, core.StripeID(cfg.StartAt))
	for i, ip := range cfg.WorkerIP {
		node := core.NodeID(i)
		meta.RegisterWorker(node, ip)
		for _, d := range cfg.DiskList[i] {
			meta.RegisterDisk(node, core.DiskID(d))
		}
	}
	if err := meta.RegisterPG(cfg.PGNum, cfg.EcK, cfg.EcM); err != nil {
		return nil, fmt.Errorf("coordinator: registering placement groups: %w", err)
	}

	opts := transport.DefaultOptions()
	opts.Workspace = cfg.WorkspaceName
	if cfg.RedisAddr != "" {
		opts.Address = cfg.RedisAddr
	}
	opts.Password = cfg.RedisPassword
	opts.DB = cfg.RedisDB
	queue := transport.Open(opts)

	return &Orchestrator{
		cfg:     cfg,
		meta:    meta,
		store:   store,
		queue:   queue,
		blobLog: NewBlobLog(cfg.WorkingDir),
		pool:    NewTaskPool(DefaultCapacity),
		rng:     rand.New(rand.NewSource(core.MergeStreamSeed)),
	}, nil
}

// Close releases the orchestrator's store and transport connection.
func (o *Orchestrator) Close() error {
	o.queue.Close()
	return o.store.Close()
}

// Run dispatches to the configured action.
func (o *Orchestrator) Run(ctx context.Context) error {
	log.Infof("coordinator: starting action %s", o.cfg.Action)
	switch o.cfg.Action {
	case core.ActionBuildData:
		return o.BuildData(ctx)
	case core.ActionRead:
		return o.Read(ctx)
	case core.ActionDegradeRead:
		return o.DegradeRead(ctx)
	case core.ActionRepairChunk:
		return o.RepairChunk(ctx)
	case core.ActionRepairFailureDomain:
		return o.RepairFailureDomain(ctx)
	default:
		return fmt.Errorf("coordinator: unhandled action %v", o.cfg.Action)
	}
}

// newEncoder builds the configured EC encoder.
func (o *Orchestrator) newEncoder() (ec.Encoder, error) {
	return ec.NewEncoder(o.cfg.EcType, o.cfg.EcK, o.cfg.EcM)
}

// clayEncoder builds the configured encoder and asserts it implements
// ec.ClayEncoder, the interface Clay read/repair plans need for
// MinimumToDecode.
func (o *Orchestrator) clayEncoder() (ec.ClayEncoder, error) {
	enc, err := o.newEncoder()
	if err != nil {
		return nil, err
	}
	clayEnc, ok := enc.(ec.ClayEncoder)
	if !ok {
		return nil, fmt.Errorf("coordinator: ec_type %s does not implement ec.ClayEncoder", o.cfg.EcType)
	}
	return clayEnc, nil
}

// clayPlanStore lazily loads the pipelined-Clay plan file named by
// cfg.ClayPlanFile, the only place the core accepts precomputed plans
// as input.
func (o *Orchestrator) clayPlanStore() (*taskbuilder.ClayPlanStore, error) {
	if o.clayPlans != nil {
		return o.clayPlans, nil
	}
	if o.cfg.ClayPlanFile == "" {
		return nil, fmt.Errorf("coordinator: clay_plan_file is required for pipelined CLAY repair")
	}
	store, err := taskbuilder.LoadClayPlanFile(o.cfg.ClayPlanFile)
	if err != nil {
		return nil, err
	}
	o.clayPlans = store
	return store, nil
}

// throttleRepair blocks until repair_bandwidth_mbps allows dispatching
// another chunk_size's worth of repair data, a no-op if unconfigured.
func (o *Orchestrator) throttleRepair() {
	if o.cfg.RepairBandwidthMBps <= 0 {
		return
	}
	if o.repairBwLim == nil {
		const mb = 1 << 20
		o.repairBwLim = tokenbucket.New(float32(o.cfg.RepairBandwidthMBps*mb), float32(o.cfg.ChunkSize))
	}
	o.repairBwLim.Take(float32(o.cfg.ChunkSize))
}

// randomDisk picks a uniformly random disk from the configured
// topology, used when failed_disk is -1.
func (o *Orchestrator) randomDisk() core.DiskID {
	var all []int
	for _, disks := range o.cfg.DiskList {
		all = append(all, disks...)
	}
	return core.DiskID(all[o.rng.Intn(len(all))])
}

// ackQueueFor derives which ACK queue a plan's worker-side pipeline
// pushes to from its final command (spec.md §4.7): a repair compute
// subtype acks on QueueRepairAck, everything else (reads, and the
// FetchWriteBlock build pipeline handled separately by buildStripe) on
// QueueReadAck.
func (o *Orchestrator) ackQueueFor(plan core.Plan) string {
	last := plan.Commands[len(plan.Commands)-1]
	if last.Type == core.FetchAndComputeAndWriteBlock && last.ComputeType.IsRepair() {
		return core.QueueRepairAck
	}
	return core.QueueReadAck
}

// dispatchPlan pushes every command in plan to its recipient's
// block-command queue, in order, then waits for the single ACK the
// plan's sink IP posts once its pipeline completes.
func (o *Orchestrator) dispatchPlan(ctx context.Context, plan core.Plan) error {
	id := reqid.GenID()
	var stripeID core.StripeID
	if len(plan.Commands) > 0 {
		stripeID = plan.Commands[0].StripeID
	}
	log.V(1).Infof("coordinator: dispatch %s stripe=%s hops=%d", id, stripeID, len(plan.Commands))

	for i, cmd := range plan.Commands {
		queue := core.WorkerQueue(core.QueueBlockCmd, plan.IPs[i])
		if err := o.queue.PushCommand(ctx, queue, cmd); err != nil {
			return fmt.Errorf("dispatch %s: %w", id, err)
		}
	}
	ackQueue := core.WorkerQueue(o.ackQueueFor(plan), plan.SinkIP())
	if err := o.queue.WaitAck(ctx, ackQueue, ackTimeout); err != nil {
		return fmt.Errorf("dispatch %s: %w", id, err)
	}
	return nil
}

// readPlan picks the read-plan builder for sm's EC type and layout.
func (o *Orchestrator) readPlan(sm metadata.StripeMeta, pg taskbuilder.PG, blob core.BlobMeta) ([]core.Plan, error) {
	switch sm.EcType {
	case core.RS:
		return taskbuilder.BuildRSReadPlans(sm, pg, blob, o.rng)
	case core.NSYS:
		if sm.Layout == core.Vertical {
			return taskbuilder.BuildVerticalNSYSReadPlans(sm, pg, blob, o.rng)
		}
		return taskbuilder.BuildNSYSReadPlans(sm, pg, blob, o.rng)
	case core.CLAY:
		clayEnc, err := o.clayEncoder()
		if err != nil {
			return nil, err
		}
		return taskbuilder.BuildClayReadPlans(sm, pg, blob, clayEnc, o.rng)
	default:
		return nil, fmt.Errorf("coordinator: unhandled ec_type %v", sm.EcType)
	}
}

// stripePG resolves a stripe's placement group, the disk/IP lookup
// every action needs once it knows a stripe id.
func (o *Orchestrator) stripePG(stripeID core.StripeID) (taskbuilder.PG, error) {
	pgID := o.meta.SelectPG(stripeID)
	return taskbuilder.FromMetadata(o.meta, pgID)
}

// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT
//
// Package metadata implements the coordinator's in-memory cluster map
// and stripe registration logic (spec.md §4.3): node/disk topology,
// placement group construction and selection, stripe-id allocation, and
// the queries a repair action needs (which stripes touch a failed disk
// or chunk). Durable persistence of what this package builds is
// internal/durable's job; Core reads/writes through a *durable.Store so
// a restarted coordinator can rebuild its in-memory view.
package metadata

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/durable"
	"github.com/westerndigitalcorporation/blobstripe/pkg/rjenkins"
)

// PGMeta describes one placement group: the K+M disks its stripes are
// striped across, in chunk-index order.
type PGMeta struct {
	PGID     core.PGID
	K, M     int
	DiskList []core.DiskID
}

// StripeMeta is the full durable record for one stripe.
type StripeMeta struct {
	StripeID  core.StripeID
	EcType    core.EcType
	K, M      int
	Layout    core.BlobLayout
	ChunkSize int64
	PG        core.PGID
	Chunks    []core.ChunkMeta
	Blobs     []core.BlobMeta
}

// StripeRecord is the builder a caller fills in to register a new
// stripe, mirroring the reference implementation's StripeMetaRecord:
// every With* call returns the receiver so calls chain, and
// RegisterStripe validates that all required fields were set.
type StripeRecord struct {
	stripeID  core.StripeID
	hasStripe bool
	ecType    core.EcType
	hasEcType bool
	k, m      int
	hasKM     bool
	layout    core.BlobLayout
	hasLayout bool
	chunkSize int64
	hasSize   bool
	pg        core.PGID
	hasPG     bool
	chunks    []core.ChunkMeta
	blobs     []core.BlobMeta
}

// NewStripeRecord starts an empty StripeRecord builder.
func NewStripeRecord() *StripeRecord {
	return &StripeRecord{}
}

func (r *StripeRecord) WithStripeID(id core.StripeID) *StripeRecord {
	r.stripeID, r.hasStripe = id, true
	return r
}

func (r *StripeRecord) WithEcType(t core.EcType) *StripeRecord {
	r.ecType, r.hasEcType = t, true
	return r
}

func (r *StripeRecord) WithEcKM(k, m int) *StripeRecord {
	r.k, r.m, r.hasKM = k, m, true
	return r
}

func (r *StripeRecord) WithBlobLayout(l core.BlobLayout) *StripeRecord {
	r.layout, r.hasLayout = l, true
	return r
}

func (r *StripeRecord) WithChunkSize(size int64) *StripeRecord {
	r.chunkSize, r.hasSize = size, true
	return r
}

func (r *StripeRecord) WithPG(pg core.PGID) *StripeRecord {
	r.pg, r.hasPG = pg, true
	return r
}

func (r *StripeRecord) WithChunks(chunks []core.ChunkMeta) *StripeRecord {
	r.chunks = chunks
	return r
}

func (r *StripeRecord) WithBlobs(blobs []core.BlobMeta) *StripeRecord {
	r.blobs = blobs
	return r
}

func (r *StripeRecord) validate() error {
	if !r.hasEcType || !r.hasKM || !r.hasLayout || !r.hasSize || !r.hasPG {
		return core.ErrInvalidArgument.Error()
	}
	if len(r.chunks) == 0 || len(r.blobs) == 0 {
		return core.ErrInvalidArgument.Error()
	}
	return nil
}

// Core is the coordinator's in-memory cluster map, mirrored to a
// durable.Store for crash recovery.
type Core struct {
	store *durable.Store

	mu sync.RWMutex

	pgNum int
	k, m  int

	pg           map[core.PGID]PGMeta
	workerToIP   map[core.NodeID]string
	nodeToDisks  map[core.NodeID][]core.DiskID
	diskToNode   map[core.DiskID]core.NodeID
	stripeToPG   map[core.StripeID]core.PGID
	pgToStripes  map[core.PGID][]core.StripeID
	startAt      core.StripeID
	stripeCursor core.StripeID
}

// NewCore returns an empty Core backed by store, with its stripe-id
// allocator seeded at startAt (config's start_at, spec.md's "stripe_id
// monotonic, starts at config start_at"). A subsequent Load overrides
// this seed only if a stripe-range watermark was actually persisted, so
// a fresh cluster still honors a non-zero start_at.
func NewCore(store *durable.Store, startAt core.StripeID) *Core {
	return &Core{
		store:        store,
		pg:           make(map[core.PGID]PGMeta),
		workerToIP:   make(map[core.NodeID]string),
		nodeToDisks:  make(map[core.NodeID][]core.DiskID),
		diskToNode:   make(map[core.DiskID]core.NodeID),
		stripeToPG:   make(map[core.StripeID]core.PGID),
		pgToStripes:  make(map[core.PGID][]core.StripeID),
		startAt:      startAt,
		stripeCursor: startAt,
	}
}

// RegisterWorker records the IP address a worker node listens on.
func (c *Core) RegisterWorker(node core.NodeID, ip string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workerToIP[node] = ip
}

// RegisterDisk attaches a disk to the node that hosts it.
func (c *Core) RegisterDisk(node core.NodeID, disk core.DiskID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodeToDisks[node] = append(c.nodeToDisks[node], disk)
	c.diskToNode[disk] = node
}

// RegisterPG constructs pgNum placement groups, each a seeded-random
// selection of one disk from k+m distinct nodes. The seed
// (core.PGSeed) is fixed so two coordinators given the same topology
// compute the same assignment deterministically.
func (c *Core) RegisterPG(pgNum, k, m int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pgNum, c.k, c.m = pgNum, k, m

	nodes := make([]core.NodeID, 0, len(c.nodeToDisks))
	for n := range c.nodeToDisks {
		nodes = append(nodes, n)
	}
	// Map iteration order is random; sort so the seeded shuffle below
	// always starts from the same node order.
	sort.Slice(nodes, func(a, b int) bool { return nodes[a] < nodes[b] })
	if len(nodes) < k+m {
		return core.ErrInvalidArgument.Error()
	}

	rng := rand.New(rand.NewSource(core.PGSeed))
	indices := make([]int, len(nodes))
	for i := range indices {
		indices[i] = i
	}

	for i := 0; i < pgNum; i++ {
		rng.Shuffle(len(indices), func(a, b int) { indices[a], indices[b] = indices[b], indices[a] })

		disks := make([]core.DiskID, 0, k+m)
		for j := 0; j < k+m; j++ {
			node := nodes[indices[j]]
			candidates := c.nodeToDisks[node]
			disks = append(disks, candidates[rng.Intn(len(candidates))])
		}
		c.pg[core.PGID(i)] = PGMeta{PGID: core.PGID(i), K: k, M: m, DiskList: disks}
	}
	return nil
}

// SelectPG picks the placement group for stripeID using the same
// rjenkins-hash-mod scheme as the reference metadata core, so repair
// and read paths agree on PG ownership without an extra lookup.
func (c *Core) SelectPG(stripeID core.StripeID) core.PGID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h := rjenkins.Hash(stripeID.String())
	return core.PGID(h % uint32(c.pgNum))
}

// PGToDisks returns the disk list for pg.
func (c *Core) PGToDisks(pg core.PGID) ([]core.DiskID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	meta, ok := c.pg[pg]
	if !ok {
		return nil, core.ErrInvalidArgument.Error()
	}
	return meta.DiskList, nil
}

// PGToWorkerIPs returns the IP address of the worker hosting each disk
// in pg's disk list, in chunk-index order.
func (c *Core) PGToWorkerIPs(pg core.PGID) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	meta, ok := c.pg[pg]
	if !ok {
		return nil, core.ErrInvalidArgument.Error()
	}
	ips := make([]string, len(meta.DiskList))
	for i, d := range meta.DiskList {
		node, ok := c.diskToNode[d]
		if !ok {
			return nil, core.ErrNoSuchDisk.Error()
		}
		ips[i] = c.workerToIP[node]
	}
	return ips, nil
}

// NextStripeID allocates the next unique stripe id.
func (c *Core) NextStripeID() core.StripeID {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.stripeCursor
	c.stripeCursor++
	return id
}

// RegisterStripe validates record, assigns a stripe id if one was not
// given, persists the stripe/blob/chunk records in one atomic batch,
// and updates the in-memory PG membership index.
func (c *Core) RegisterStripe(record *StripeRecord) (core.StripeID, error) {
	if err := record.validate(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	stripeID := record.stripeID
	if !record.hasStripe {
		stripeID = c.stripeCursor
		c.stripeCursor++
	}
	c.mu.Unlock()

	for i := range record.blobs {
		record.blobs[i].StripeID = stripeID
	}
	for i := range record.chunks {
		record.chunks[i].StripeID = stripeID
		record.chunks[i].ChunkIndex = core.ChunkIndex(i)
	}

	meta := StripeMeta{
		StripeID:  stripeID,
		EcType:    record.ecType,
		K:         record.k,
		M:         record.m,
		Layout:    record.layout,
		ChunkSize: record.chunkSize,
		PG:        record.pg,
		Chunks:    record.chunks,
		Blobs:     record.blobs,
	}

	stripeBytes, err := msgpack.Marshal(&meta)
	if err != nil {
		return 0, err
	}

	batch := c.store.NewBatch()
	if err := batch.Put(durable.MetaStripe, uint64(stripeID), stripeBytes); err != nil {
		return 0, err
	}
	for _, blob := range record.blobs {
		b, err := msgpack.Marshal(&blob)
		if err != nil {
			return 0, err
		}
		if err := batch.Put(durable.MetaBlob, uint64(blob.BlobID), b); err != nil {
			return 0, err
		}
	}
	for _, chunk := range record.chunks {
		ch, err := msgpack.Marshal(&chunk)
		if err != nil {
			return 0, err
		}
		key := chunkKey(stripeID, chunk.ChunkIndex)
		if err := batch.Put(durable.MetaChunk, key, ch); err != nil {
			return 0, err
		}
	}
	if err := batch.PutPGStripe(record.pg, stripeID); err != nil {
		return 0, err
	}
	if err := batch.Commit(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.stripeToPG[stripeID] = record.pg
	c.pgToStripes[record.pg] = append(c.pgToStripes[record.pg], stripeID)
	c.mu.Unlock()

	return stripeID, nil
}

// chunkKey packs a (stripe, chunk index) pair into the uint64 id space
// MetaChunk records are keyed by: the high 8 bits hold the chunk index,
// matching core.ChunkIndex's uint8 range, and the low 56 bits the
// stripe id.
func chunkKey(stripeID core.StripeID, idx core.ChunkIndex) uint64 {
	return uint64(idx)<<56 | uint64(stripeID)&0x00ffffffffffffff
}

// StripeMetaByID reads a stripe's full metadata.
func (c *Core) StripeMetaByID(stripeID core.StripeID) (StripeMeta, error) {
	raw, err := c.store.Get(durable.MetaStripe, uint64(stripeID))
	if err != nil {
		return StripeMeta{}, err
	}
	var meta StripeMeta
	if err := msgpack.Unmarshal(raw, &meta); err != nil {
		return StripeMeta{}, err
	}
	return meta, nil
}

// BlobMetaByID reads one blob's metadata.
func (c *Core) BlobMetaByID(blobID core.BlobID) (core.BlobMeta, error) {
	raw, err := c.store.Get(durable.MetaBlob, uint64(blobID))
	if err != nil {
		return core.BlobMeta{}, err
	}
	var meta core.BlobMeta
	if err := msgpack.Unmarshal(raw, &meta); err != nil {
		return core.BlobMeta{}, err
	}
	return meta, nil
}

// ChunkRepair returns the stripe metadata a failed chunk belongs to, the
// starting point for building a single-chunk repair plan.
func (c *Core) ChunkRepair(stripeID core.StripeID) (StripeMeta, error) {
	return c.StripeMetaByID(stripeID)
}

// DiskRepairTarget names one placement group affected by a failed disk:
// which chunk index that disk held, and every stripe in the PG that
// needs repairing.
type DiskRepairTarget struct {
	PG         PGMeta
	ChunkIndex core.ChunkIndex
	Stripes    []core.StripeID
}

// DiskRepair finds every placement group containing diskID and returns,
// for each, the chunk index the disk held and the stripes that must be
// repaired.
func (c *Core) DiskRepair(diskID core.DiskID) []DiskRepairTarget {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var targets []DiskRepairTarget
	for _, meta := range c.pg {
		for i, d := range meta.DiskList {
			if d == diskID {
				stripes := c.pgToStripes[meta.PGID]
				if len(stripes) > 0 {
					cp := append([]core.StripeID(nil), stripes...)
					targets = append(targets, DiskRepairTarget{
						PG:         meta,
						ChunkIndex: core.ChunkIndex(i),
						Stripes:    cp,
					})
				}
				break
			}
		}
	}
	return targets
}

// Persist writes the PG assignment table and stripe-id allocator
// watermark to the durable store, so a restarted coordinator can
// rebuild this Core with Load. The pg -> stripes reverse index needs no
// separate flush here: RegisterStripe writes its (pg_id, stripe_id)
// entry durably as part of the same atomic batch as the stripe record.
func (c *Core) Persist() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pgBytes, err := msgpack.Marshal(c.pg)
	if err != nil {
		return err
	}
	if err := c.store.SavePGMap(pgBytes); err != nil {
		return err
	}

	rng := [2]uint64{uint64(c.startAt), uint64(c.stripeCursor)}
	rangeBytes, err := msgpack.Marshal(&rng)
	if err != nil {
		return err
	}
	return c.store.SaveStripeRange(rangeBytes)
}

// Load rebuilds the PG assignment table, stripe-id allocator watermark,
// and pg -> stripes reverse index from the durable store. It is a no-op
// for any of the three that was never persisted (a freshly created
// cluster).
func (c *Core) Load() error {
	pgBytes, err := c.store.GetPGMap()
	if err != nil {
		return err
	}
	if pgBytes != nil {
		c.mu.Lock()
		if err := msgpack.Unmarshal(pgBytes, &c.pg); err != nil {
			c.mu.Unlock()
			return err
		}
		c.mu.Unlock()
	}

	rangeBytes, err := c.store.GetStripeRange()
	if err != nil {
		return err
	}
	if rangeBytes != nil {
		var rng [2]uint64
		if err := msgpack.Unmarshal(rangeBytes, &rng); err != nil {
			return err
		}
		c.mu.Lock()
		c.startAt = core.StripeID(rng[0])
		c.stripeCursor = core.StripeID(rng[1])
		c.mu.Unlock()
	}

	pgToStripes := make(map[core.PGID][]core.StripeID)
	stripeToPG := make(map[core.StripeID]core.PGID)
	if err := c.store.ScanPGStripes(func(pg core.PGID, stripeID core.StripeID) error {
		pgToStripes[pg] = append(pgToStripes[pg], stripeID)
		stripeToPG[stripeID] = pg
		return nil
	}); err != nil {
		return err
	}
	c.mu.Lock()
	c.pgToStripes = pgToStripes
	c.stripeToPG = stripeToPG
	c.mu.Unlock()

	return nil
}

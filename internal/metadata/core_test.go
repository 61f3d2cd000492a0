// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package metadata

import (
	"testing"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/durable"
)

func newTestCore(t *testing.T) *Core {
	store, err := durable.Open(t.TempDir())
	if err != nil {
		t.Fatalf("durable.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewCore(store, 0)
}

func topology(c *Core, nodes, disksPerNode int) {
	for n := 0; n < nodes; n++ {
		node := core.NodeID(n)
		c.RegisterWorker(node, "10.0.0.1")
		for d := 0; d < disksPerNode; d++ {
			c.RegisterDisk(node, core.DiskID(n*disksPerNode+d))
		}
	}
}

func TestRegisterPGDeterministic(t *testing.T) {
	c1 := newTestCore(t)
	topology(c1, 8, 2)
	if err := c1.RegisterPG(4, 4, 2); err != nil {
		t.Fatalf("RegisterPG: %v", err)
	}

	c2 := newTestCore(t)
	topology(c2, 8, 2)
	if err := c2.RegisterPG(4, 4, 2); err != nil {
		t.Fatalf("RegisterPG: %v", err)
	}

	for pg := core.PGID(0); pg < 4; pg++ {
		d1, err := c1.PGToDisks(pg)
		if err != nil {
			t.Fatalf("PGToDisks: %v", err)
		}
		d2, err := c2.PGToDisks(pg)
		if err != nil {
			t.Fatalf("PGToDisks: %v", err)
		}
		if len(d1) != len(d2) {
			t.Fatalf("pg %d: disk list length mismatch", pg)
		}
		for i := range d1 {
			if d1[i] != d2[i] {
				t.Fatalf("pg %d: disk list diverges at %d: %v vs %v", pg, i, d1, d2)
			}
		}
	}
}

func TestRegisterPGTooFewNodes(t *testing.T) {
	c := newTestCore(t)
	topology(c, 3, 1)
	if err := c.RegisterPG(1, 4, 2); err == nil {
		t.Fatalf("expected error registering PG with fewer nodes than k+m")
	}
}

func TestSelectPGStable(t *testing.T) {
	c := newTestCore(t)
	topology(c, 8, 2)
	if err := c.RegisterPG(16, 4, 2); err != nil {
		t.Fatalf("RegisterPG: %v", err)
	}
	pg1 := c.SelectPG(core.StripeID(42))
	pg2 := c.SelectPG(core.StripeID(42))
	if pg1 != pg2 {
		t.Fatalf("SelectPG not stable: %d vs %d", pg1, pg2)
	}
}

func TestRegisterStripeRoundTrip(t *testing.T) {
	c := newTestCore(t)
	topology(c, 8, 2)
	if err := c.RegisterPG(4, 4, 2); err != nil {
		t.Fatalf("RegisterPG: %v", err)
	}

	rec := NewStripeRecord().
		WithEcType(core.RS).
		WithEcKM(4, 2).
		WithBlobLayout(core.Horizontal).
		WithChunkSize(4096).
		WithPG(core.PGID(0)).
		WithBlobs([]core.BlobMeta{{BlobID: 7, Size: 100}}).
		WithChunks([]core.ChunkMeta{{Size: 4096}, {Size: 4096}, {Size: 4096}, {Size: 4096}, {Size: 4096}, {Size: 4096}})

	stripeID, err := c.RegisterStripe(rec)
	if err != nil {
		t.Fatalf("RegisterStripe: %v", err)
	}

	meta, err := c.StripeMetaByID(stripeID)
	if err != nil {
		t.Fatalf("StripeMetaByID: %v", err)
	}
	if meta.K != 4 || meta.M != 2 {
		t.Fatalf("StripeMeta K/M = %d/%d, want 4/2", meta.K, meta.M)
	}
	if len(meta.Chunks) != 6 {
		t.Fatalf("StripeMeta has %d chunks, want 6", len(meta.Chunks))
	}

	blob, err := c.BlobMetaByID(7)
	if err != nil {
		t.Fatalf("BlobMetaByID: %v", err)
	}
	if blob.StripeID != stripeID {
		t.Fatalf("BlobMeta.StripeID = %v, want %v", blob.StripeID, stripeID)
	}
}

func TestRegisterStripeMissingField(t *testing.T) {
	c := newTestCore(t)
	rec := NewStripeRecord().WithEcType(core.RS)
	if _, err := c.RegisterStripe(rec); err == nil {
		t.Fatalf("expected validation error for incomplete StripeRecord")
	}
}

func TestDiskRepair(t *testing.T) {
	c := newTestCore(t)
	topology(c, 8, 2)
	if err := c.RegisterPG(4, 4, 2); err != nil {
		t.Fatalf("RegisterPG: %v", err)
	}

	rec := NewStripeRecord().
		WithEcType(core.RS).
		WithEcKM(4, 2).
		WithBlobLayout(core.Horizontal).
		WithChunkSize(4096).
		WithPG(core.PGID(0)).
		WithBlobs([]core.BlobMeta{{BlobID: 1, Size: 10}}).
		WithChunks(make([]core.ChunkMeta, 6))
	if _, err := c.RegisterStripe(rec); err != nil {
		t.Fatalf("RegisterStripe: %v", err)
	}

	disks, err := c.PGToDisks(core.PGID(0))
	if err != nil {
		t.Fatalf("PGToDisks: %v", err)
	}
	targets := c.DiskRepair(disks[0])
	if len(targets) != 1 {
		t.Fatalf("DiskRepair found %d targets, want 1", len(targets))
	}
	if len(targets[0].Stripes) != 1 {
		t.Fatalf("DiskRepair target has %d stripes, want 1", len(targets[0].Stripes))
	}
}

func TestPersistLoad(t *testing.T) {
	store, err := durable.Open(t.TempDir())
	if err != nil {
		t.Fatalf("durable.Open: %v", err)
	}
	defer store.Close()

	c := NewCore(store, 0)
	topology(c, 8, 2)
	if err := c.RegisterPG(4, 4, 2); err != nil {
		t.Fatalf("RegisterPG: %v", err)
	}
	c.NextStripeID()
	c.NextStripeID()

	rec := NewStripeRecord().
		WithEcType(core.RS).
		WithEcKM(4, 2).
		WithBlobLayout(core.Horizontal).
		WithChunkSize(4096).
		WithPG(core.PGID(0)).
		WithBlobs([]core.BlobMeta{{BlobID: 1, Size: 10}}).
		WithChunks(make([]core.ChunkMeta, 6))
	stripeID, err := c.RegisterStripe(rec)
	if err != nil {
		t.Fatalf("RegisterStripe: %v", err)
	}

	if err := c.Persist(); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	c2 := NewCore(store, 0)
	if err := c2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c2.NextStripeID() != core.StripeID(3) {
		t.Fatalf("stripe id allocator did not survive Persist/Load")
	}
	disks, err := c2.PGToDisks(core.PGID(0))
	if err != nil {
		t.Fatalf("PGToDisks after Load: %v", err)
	}
	if len(disks) != 6 {
		t.Fatalf("PG disk list did not survive Persist/Load: got %d disks", len(disks))
	}

	// pg -> stripes must survive Persist/Load too (invariant 5): DiskRepair
	// joins the disk's PG against this reverse index, so an empty index
	// after Load would make it silently find no repair targets.
	targets := c2.DiskRepair(disks[0])
	if len(targets) != 1 {
		t.Fatalf("DiskRepair after Load found %d targets, want 1", len(targets))
	}
	if len(targets[0].Stripes) != 1 || targets[0].Stripes[0] != stripeID {
		t.Fatalf("DiskRepair after Load returned stripes %v, want [%v]", targets[0].Stripes, stripeID)
	}
}

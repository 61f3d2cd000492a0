// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package worker

import (
	"testing"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
)

func TestBlockKeyDistinguishesStripeAndBlock(t *testing.T) {
	a := blockKey(core.StripeID(1), 0)
	b := blockKey(core.StripeID(1), 1)
	c := blockKey(core.StripeID(2), 0)
	if a == b || a == c || b == c {
		t.Fatalf("blockKey collided: a=%q b=%q c=%q", a, b, c)
	}
}

func TestDiskManagerUnknownDisk(t *testing.T) {
	cfg := Config{WorkingDir: t.TempDir(), DiskList: []int{0}}
	dm, err := newDiskManager(cfg)
	if err != nil {
		t.Fatalf("newDiskManager: %v", err)
	}
	if _, err := dm.get(core.DiskID(1)); err == nil {
		t.Fatalf("get(1): expected error for unregistered disk")
	}
	if _, err := dm.get(core.DiskID(0)); err != nil {
		t.Fatalf("get(0): %v", err)
	}
}

func TestDiskManagerFaultInjection(t *testing.T) {
	cfg := Config{WorkingDir: t.TempDir(), DiskList: []int{0, 1}}
	dm, err := newDiskManager(cfg)
	if err != nil {
		t.Fatalf("newDiskManager: %v", err)
	}

	if err := dm.faults.setDownDisks([]byte("[1]")); err != nil {
		t.Fatalf("setDownDisks: %v", err)
	}
	if _, err := dm.get(core.DiskID(1)); err == nil {
		t.Fatalf("get(1): expected error, disk marked down")
	}
	if _, err := dm.get(core.DiskID(0)); err != nil {
		t.Fatalf("get(0): %v", err)
	}

	if err := dm.faults.setDownDisks(nil); err != nil {
		t.Fatalf("setDownDisks(nil): %v", err)
	}
	if _, err := dm.get(core.DiskID(1)); err != nil {
		t.Fatalf("get(1) after reset: %v", err)
	}
}

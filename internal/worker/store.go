// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package worker

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/westerndigitalcorporation/blobstripe/internal/blobstore"
	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/server"
)

// perDiskIOLimit bounds how many pipeline stages may be touching one
// disk's blobstore.Store concurrently, independent of the server-wide
// NumThreads bound on pipelines themselves: many pipelines can be
// in flight while only a handful actually hit any one spindle at once.
const perDiskIOLimit = 4

// diskManager owns one blobstore.Store per local disk, each rooted at
// its own working_dir/disk<N> subdirectory so a worker's disks never
// share a directory. Two workers given the same working_dir and disk_id
// share that directory.
type diskManager struct {
	stores map[core.DiskID]blobstore.Store
	io     map[core.DiskID]server.Semaphore
	faults *faultInjector
}

func newDiskManager(cfg Config) (*diskManager, error) {
	dm := &diskManager{
		stores: make(map[core.DiskID]blobstore.Store, len(cfg.DiskList)),
		io:     make(map[core.DiskID]server.Semaphore, len(cfg.DiskList)),
		faults: newFaultInjector(),
	}
	for _, d := range cfg.DiskList {
		dir := filepath.Join(cfg.WorkingDir, "disk"+strconv.Itoa(d))
		fs, err := blobstore.NewFileStore(dir)
		if err != nil {
			return nil, fmt.Errorf("worker: opening disk %d store: %w", d, err)
		}
		dm.stores[core.DiskID(d)] = blobstore.NewCachedStore(fs, cfg.cacheCapacity(), cfg.LargeChunkSize)
		dm.io[core.DiskID(d)] = server.NewSemaphore(perDiskIOLimit)
	}
	return dm, nil
}

func (dm *diskManager) get(disk core.DiskID) (blobstore.Store, error) {
	if dm.faults.isDown(disk) {
		return nil, fmt.Errorf("worker: disk %d is down (down_disks)", disk)
	}
	s, ok := dm.stores[disk]
	if !ok {
		return nil, fmt.Errorf("worker: unknown disk_id %d", disk)
	}
	return s, nil
}

// withDisk acquires disk's IO semaphore for the duration of fn, so at
// most perDiskIOLimit pipeline stages touch its blobstore.Store at once.
func (dm *diskManager) withDisk(disk core.DiskID, fn func(blobstore.Store) error) error {
	store, err := dm.get(disk)
	if err != nil {
		return err
	}
	sem := dm.io[disk]
	sem.Acquire()
	defer sem.Release()
	return fn(store)
}

// blockKey names the local blobstore key a chunk (stripe_id, block_id)
// is stored under (spec.md §4.7's "block_key(stripe_id, block_id)").
func blockKey(stripeID core.StripeID, blockID uint8) string {
	return "stripeid_" + strconv.FormatUint(uint64(stripeID), 10) + "_blockid_" + strconv.Itoa(int(blockID))
}

// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

// Package worker implements the block worker (spec.md §4.7): a command
// dispatcher that pops BlockCommands and assembles read/fetch/compute/
// write/cache stages into concurrent pipelines, backed by
// internal/blobstore for local chunk storage.
package worker

import (
	"fmt"
)

// Config is the worker's TOML configuration (spec.md §6).
type Config struct {
	WorkspaceName string `toml:"workspace_name"`
	IP            string `toml:"ip"`
	WorkingDir    string `toml:"working_dir"`
	DiskList      []int  `toml:"disk_list"`
	CreateNew     bool   `toml:"create_new"`

	// NumThreads bounds how many BlockCommand pipelines run concurrently.
	NumThreads int `toml:"num_threads"`

	// CacheSizeMB bounds the per-disk blobstore.CachedStore LRU, in
	// megabytes of BypassThreshold-eligible blobs.
	CacheSizeMB int `toml:"cache_size"`

	// LargeChunkSize is the blob-size cutoff past which CachedStore
	// bypasses the LRU entirely (spec.md §4.1).
	LargeChunkSize int64 `toml:"large_chunk_size"`

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	// FailurePort mounts a pkg/failures HTTP endpoint for toggling
	// simulated disk failures at runtime, so a RepairChunk or
	// RepairFailureDomain run can be exercised without destroying real
	// disks. 0 disables it.
	FailurePort int `toml:"failure_port"`
}

// Validate checks cfg for the fields the server cannot safely default.
func (cfg Config) Validate() error {
	if cfg.IP == "" {
		return fmt.Errorf("worker: ip is required")
	}
	if cfg.WorkingDir == "" {
		return fmt.Errorf("worker: working_dir is required")
	}
	if len(cfg.DiskList) == 0 {
		return fmt.Errorf("worker: disk_list must be non-empty")
	}
	if cfg.NumThreads <= 0 {
		return fmt.Errorf("worker: num_threads must be > 0")
	}
	return nil
}

// cacheCapacity returns the number of blob entries the LRU holds,
// approximating cache_size MB at a rough small-blob size so the TOML
// knob stays a byte budget rather than an entry count (matching
// spec.md §6's cache_size being a byte budget, not an LRU size).
func (cfg Config) cacheCapacity() int {
	const assumedEntrySize = 4096
	n := int(cfg.CacheSizeMB) * (1 << 20) / assumedEntrySize
	if n <= 0 {
		n = 1
	}
	return n
}

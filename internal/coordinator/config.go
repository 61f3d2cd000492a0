// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT
//
// Package coordinator drives the configured action (BuildData, Read,
// DegradeRead, RepairChunk, RepairFailureDomain) against a cluster of
// workers reachable over internal/transport, using internal/metadata
// for placement and internal/taskbuilder to produce the commands it
// pushes (spec.md §4.6).
package coordinator

import (
	"fmt"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/pkg/slices"
)

// Config is the coordinator's TOML configuration (spec.md §6). All
// fields are required unless their zero value has a documented
// meaning below.
type Config struct {
	WorkspaceName string   `toml:"workspace_name"`
	IP            string   `toml:"ip"`
	WorkingDir    string   `toml:"working_dir"`
	WorkerIP      []string `toml:"worker_ip"`
	DiskList      [][]int  `toml:"disk_list"`

	Action string `toml:"action"`

	LogFile string `toml:"log_file"`

	EcK    int    `toml:"ec_k"`
	EcM    int    `toml:"ec_m"`
	EcType string `toml:"ec_type"`

	// PartitionSize defaults to 0, which leaves the Partition merge
	// scheme unusable: Parse rejects merge_scheme=Partition unless
	// partition_size > 0.
	PartitionSize int64 `toml:"partition_size"`

	LoadType string  `toml:"load_type"`
	TestLoad float64 `toml:"test_load"`

	// StartAt defaults to 0.
	StartAt uint64 `toml:"start_at"`

	Trace       string `toml:"trace"`
	MergeSize   int64  `toml:"merge_size"`
	MergeScheme string `toml:"merge_scheme"`

	BlobSize  int64 `toml:"blob_size"`
	ChunkSize int64 `toml:"chunk_size"`
	PGNum     int   `toml:"pg_num"`

	// repair_chunk-only.
	Manner     string `toml:"manner"`
	ChunkIndex int    `toml:"chunk_index"`

	// repair_failure_domain-only. -1 selects a random disk.
	FailedDisk int `toml:"failed_disk"`

	// RepairBandwidthMBps throttles how fast repair_chunk/
	// repair_failure_domain dispatch new plans, in MB/s of chunk data
	// repaired. 0 disables throttling.
	RepairBandwidthMBps float64 `toml:"repair_bandwidth_mbps"`

	// ClayPlanFile names the precomputed pipelined-Clay plan file
	// (spec.md §4.5 "the only place the core accepts precomputed plans
	// as input"), required only for repair_chunk with
	// ec_type=CLAY, manner=Pipelined.
	ClayPlanFile string `toml:"clay_plan_file"`

	// Transport connection settings. Not named by spec.md's abstract
	// transport contract, only by its concrete internal/transport
	// realization (Redis-backed queues), so these default to a local,
	// unauthenticated instance when left unset.
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// Parsed is a Config with its string enums resolved and validated
// (spec.md §6 "Validation").
type Parsed struct {
	Config
	Action      core.ActionType
	EcType      core.EcType
	LoadType    core.LoadType
	MergeScheme core.MergeScheme
	Manner      core.RepairManner
}

// Parse validates c and resolves its enum fields.
func Parse(c Config) (Parsed, error) {
	if len(c.WorkerIP) == 0 || len(c.DiskList) == 0 || len(c.WorkerIP) != len(c.DiskList) {
		return Parsed{}, fmt.Errorf("coordinator: worker_ip and disk_list must be non-empty and the same length")
	}
	for i, ip := range c.WorkerIP {
		if slices.ContainsString(c.WorkerIP[:i], ip) {
			return Parsed{}, fmt.Errorf("coordinator: worker_ip lists %q more than once", ip)
		}
	}
	if c.EcK+c.EcM > len(c.WorkerIP) {
		return Parsed{}, fmt.Errorf("coordinator: ec_k+ec_m (%d) exceeds worker count (%d)", c.EcK+c.EcM, len(c.WorkerIP))
	}
	if c.PGNum <= 0 {
		return Parsed{}, fmt.Errorf("coordinator: pg_num must be > 0")
	}
	if c.MergeSize <= 0 {
		return Parsed{}, fmt.Errorf("coordinator: merge_size must be > 0")
	}
	if c.TestLoad < 0 {
		return Parsed{}, fmt.Errorf("coordinator: test_load must be >= 0")
	}

	action, err := core.ParseActionType(c.Action)
	if err != nil {
		return Parsed{}, err
	}
	ecType, err := core.ParseEcType(c.EcType)
	if err != nil {
		return Parsed{}, err
	}
	loadType, err := core.ParseLoadType(c.LoadType)
	if err != nil {
		return Parsed{}, err
	}
	mergeScheme, err := core.ParseMergeScheme(c.MergeScheme)
	if err != nil {
		return Parsed{}, err
	}

	isDegradeRead := mergeScheme == core.SchemeIntraForDegradeRead || mergeScheme == core.SchemeInterForDegradeRead
	if isDegradeRead && c.ChunkSize <= 0 {
		return Parsed{}, fmt.Errorf("coordinator: chunk_size is required for %s", c.MergeScheme)
	}
	if mergeScheme == core.SchemePartition && c.PartitionSize <= 0 {
		return Parsed{}, fmt.Errorf("coordinator: partition_size must be > 0 for %s", c.MergeScheme)
	}

	var manner core.RepairManner
	if action == core.ActionRepairChunk {
		manner, err = core.ParseRepairManner(c.Manner)
		if err != nil {
			return Parsed{}, err
		}
	}

	return Parsed{
		Config:      c,
		Action:      action,
		EcType:      ecType,
		LoadType:    loadType,
		MergeScheme: mergeScheme,
		Manner:      manner,
	}, nil
}

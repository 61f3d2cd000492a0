// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package core

import (
	"strconv"
	"time"
)

// Global constants that several components need to agree on are defined here.
// If a constant is only needed for a single component, it probably should not
// be placed here.
const (
	// PGSeed is the fixed seed used to shuffle node indices when building
	// placement groups at startup. It must never change: changing it breaks
	// placement compatibility with data written under the old seed.
	PGSeed = 0x1234

	// MergeStreamSeed seeds the thread-local pseudo-random generator used to
	// synthesize blob bytes, so multi-threaded builds are reproducible per
	// thread.
	MergeStreamSeed = 0x9b648

	// SmallBlobThreshold is the minimum record size considered for merging.
	// Records smaller than this are always skipped ("extra-small").
	SmallBlobThreshold = 32

	// TrafficControlHighWater is the queue length above which Push spins,
	// yielding, when traffic control is enabled.
	TrafficControlHighWater = 512

	// AckPayload is the literal payload pushed to an ACK queue.
	AckPayload = "ACK"

	// QueueThresholdLow and QueueThresholdHigh bound the number of
	// outstanding futures an action driver keeps in flight before draining.
	QueueThresholdLow  = 32
	QueueThresholdHigh = 64

	// PipelineChannelCapacity is the number of SharedVec-sized slots
	// buffered in each SPSC byte channel wiring worker pipeline stages.
	PipelineChannelCapacity = 64

	// BuildSizeUnit is the unit BySize load accounting multiplies
	// test_load by (1 GiB).
	BuildSizeUnit = 1 << 30

	// RPCDialTimeout bounds how long a transport connection attempt may
	// take before it is treated as a transport error.
	RPCDialTimeout = 5 * time.Second

	// PipelineAccumulatorBlockID is the reserved block id a pipelined
	// repair plan's intermediate hops cache their running accumulator
	// under, so the worker executing the next hop can fetch it by name
	// (spec.md §4.5 "a chain of FETCHANDCOMPUTE hops").
	PipelineAccumulatorBlockID uint8 = 0xFE
)

// Well-known queue names, shared verbatim between coordinator and workers.
const (
	QueueCmd      = "_LIST_CMD"
	QueueBlockCmd = "_LIST_BLK_CMD"
	QueueBuildAck = "_BD_L_ACK"
	QueueReadAck  = "_RD_L_ACK"
	QueueRepairAck = "_RP_L_ACK"
)

// ChunkDataQueue returns the name of the per-chunk data queue a chunk
// payload for (stripeID, blockID) of size sz is pushed/popped on.
func ChunkDataQueue(stripeID StripeID, blockID uint8, sz int) string {
	return "stripeid_" + strconv.FormatUint(uint64(stripeID), 10) +
		"blockid_" + strconv.FormatUint(uint64(blockID), 10) +
		"sz_" + strconv.Itoa(sz)
}

// WorkerQueue namespaces one of the well-known queue names (QueueCmd,
// QueueBlockCmd, QueueBuildAck, QueueReadAck, QueueRepairAck) by the
// worker that owns it. The reference implementation gives every
// worker its own transport endpoint, so e.g. "_LIST_BLK_CMD" or
// "_BD_L_ACK" unambiguously means "my local queue"; this core shares
// one transport across all workers (internal/transport.Queue), so
// every per-worker queue name must be disambiguated explicitly.
func WorkerQueue(base, workerIP string) string {
	return base + "@" + workerIP
}

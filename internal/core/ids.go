// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package core

import "fmt"

/*

Identity types for the placement and metadata core (spec.md §3):

  - StripeID identifies a stripe, monotonically assigned starting at a
    configured start_at.
  - BlobID identifies a blob synthesized from the trace; 0 is reserved.
  - ChunkIndex is a chunk's position within its stripe, 0 <= idx < k+m.
  - DiskID/NodeID identify physical placement targets.
  - PGID identifies a placement group, a fixed tuple of k+m disks.

*/

// StripeID identifies a stripe. Valid StripeIDs start at the configured
// start_at value (default 0).
type StripeID uint64

// BlobID identifies a synthesized blob. 0 is reserved and never assigned.
type BlobID uint64

// ChunkIndex is a chunk's position within its stripe.
type ChunkIndex uint8

// DiskID identifies a physical disk on a worker node.
type DiskID uint32

// NodeID identifies a worker node.
type NodeID uint64

// PGID identifies a placement group.
type PGID uint32

func (s StripeID) String() string { return fmt.Sprintf("%d", uint64(s)) }
func (b BlobID) String() string   { return fmt.Sprintf("%d", uint64(b)) }
func (d DiskID) String() string   { return fmt.Sprintf("%d", uint32(d)) }
func (n NodeID) String() string   { return fmt.Sprintf("%d", uint64(n)) }
func (p PGID) String() string     { return fmt.Sprintf("%d", uint32(p)) }

// EcType names an erasure code family.
type EcType uint8

const (
	// RS is systematic Reed-Solomon.
	RS EcType = iota
	// NSYS is a non-systematic erasure code.
	NSYS
	// CLAY is the Clay code.
	CLAY
)

func (t EcType) String() string {
	switch t {
	case RS:
		return "RS"
	case NSYS:
		return "NSYS"
	case CLAY:
		return "CLAY"
	default:
		return "UNKNOWN_EC_TYPE"
	}
}

// ParseEcType parses the TOML ec_type enum value.
func ParseEcType(s string) (EcType, error) {
	switch s {
	case "RS":
		return RS, nil
	case "NSYS":
		return NSYS, nil
	case "CLAY":
		return CLAY, nil
	default:
		return 0, fmt.Errorf("invalid ec_type %q", s)
	}
}

// SubChunkCount returns w(k, m), the number of Clay sub-chunks per chunk,
// per spec.md §8 invariant 3. Only defined for the four (k, m) pairs the
// spec enumerates.
func SubChunkCount(k, m int) (int, bool) {
	switch {
	case k == 4 && m == 2:
		return 8, true
	case k == 6 && m == 3:
		return 27, true
	case k == 8 && m == 4:
		return 64, true
	case k == 10 && m == 4:
		return 256, true
	default:
		return 0, false
	}
}

// BlobLayout describes how a blob's bytes span its stripe's chunks.
type BlobLayout uint8

const (
	// Horizontal means merge-before-split: blob bytes are concatenated
	// then sliced across chunks.
	Horizontal BlobLayout = iota
	// Vertical means split-before-merge: each blob contributes an equal
	// slice to every chunk.
	Vertical
)

func (l BlobLayout) String() string {
	if l == Horizontal {
		return "Horizontal"
	}
	return "Vertical"
}

// MergeScheme selects a merge-stream (and by extension stripe-stream)
// strategy, per spec.md §4.4 and the coordinator's TOML config.
type MergeScheme uint8

const (
	// SchemeFixed truncate-and-append merges into exactly merge_size groups.
	SchemeFixed MergeScheme = iota
	// SchemePartition recursively splits large merges into powers of two.
	SchemePartition
	// SchemeBaseline emits every eligible record as its own stripe.
	SchemeBaseline
	// SchemeIntraLocality is the split-before-merge mixed-locality scheme.
	SchemeIntraLocality
	// SchemeInterLocality is the LRU-on-user-id mixed-locality scheme.
	SchemeInterLocality
	// SchemeIntraForDegradeRead synthesizes a single CLAY stripe for
	// degraded-read benchmarking.
	SchemeIntraForDegradeRead
	// SchemeInterForDegradeRead synthesizes a single NSYS stripe for
	// degraded-read benchmarking.
	SchemeInterForDegradeRead
)

// ParseMergeScheme parses the TOML merge_scheme enum value.
func ParseMergeScheme(s string) (MergeScheme, error) {
	switch s {
	case "Fixed":
		return SchemeFixed, nil
	case "Partition":
		return SchemePartition, nil
	case "Baseline":
		return SchemeBaseline, nil
	case "IntraLocality":
		return SchemeIntraLocality, nil
	case "InterLocality":
		return SchemeInterLocality, nil
	case "IntraForDegradeRead":
		return SchemeIntraForDegradeRead, nil
	case "InterForDegradeRead":
		return SchemeInterForDegradeRead, nil
	default:
		return 0, fmt.Errorf("invalid merge_scheme %q", s)
	}
}

// LoadType selects how load_cnt advances during BuildData.
type LoadType uint8

const (
	// ByStripe advances load_cnt by 1 per stripe built.
	ByStripe LoadType = iota
	// BySize advances load_cnt by the stripe's merged byte size.
	BySize
)

// ParseLoadType parses the TOML load_type enum value.
func ParseLoadType(s string) (LoadType, error) {
	switch s {
	case "ByStripe":
		return ByStripe, nil
	case "BySize":
		return BySize, nil
	default:
		return 0, fmt.Errorf("invalid load_type %q", s)
	}
}

// ActionType selects what the coordinator does with the configured stripe
// stream, per spec.md §4.6.
type ActionType uint8

const (
	// ActionBuildData drives the write path end to end.
	ActionBuildData ActionType = iota
	// ActionRead replays the blob-access log with normal reads.
	ActionRead
	// ActionDegradeRead replays the blob-access log assuming a chunk loss.
	ActionDegradeRead
	// ActionRepairChunk repairs one chunk index over a stripe range.
	ActionRepairChunk
	// ActionRepairFailureDomain repairs every chunk on a failed disk.
	ActionRepairFailureDomain
)

// ParseActionType parses the TOML action enum value.
func ParseActionType(s string) (ActionType, error) {
	switch s {
	case "BuildData":
		return ActionBuildData, nil
	case "Read":
		return ActionRead, nil
	case "DegradeRead":
		return ActionDegradeRead, nil
	case "RepairChunk":
		return ActionRepairChunk, nil
	case "RepairFailureDomain":
		return ActionRepairFailureDomain, nil
	default:
		return 0, fmt.Errorf("invalid action %q", s)
	}
}

// RepairManner selects whether a repair/read task-plan gathers all
// survivors at the target (Centralized) or forwards partial results
// hop-by-hop (Pipelined).
type RepairManner uint8

const (
	// Centralized gathers all survivors at the target.
	Centralized RepairManner = iota
	// Pipelined forwards partial parities hop-by-hop.
	Pipelined
)

// ParseRepairManner parses the TOML manner enum value.
func ParseRepairManner(s string) (RepairManner, error) {
	switch s {
	case "Centralized":
		return Centralized, nil
	case "Pipelined":
		return Pipelined, nil
	default:
		return 0, fmt.Errorf("invalid manner %q", s)
	}
}

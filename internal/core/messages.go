// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package core

// TraceRecord is one record yielded by the trace reader chain (spec.md
// §4.4.1). Records with Size == 0 are skipped by the base reader itself.
type TraceRecord struct {
	Time     int64
	Region   string
	UserID   string
	AppID    string
	FuncID   string
	BlobID   uint64
	BlobType string
	Version  int
	Size     int
	Read     bool
	Write    bool
}

// BlobMeta is the metadata of one blob merged into a stripe.
type BlobMeta struct {
	BlobID    BlobID
	StripeID  StripeID
	BlobIndex int
	Size      int64
	Offset    int64
}

// ChunkMeta is the metadata of one of a stripe's k+m chunks.
type ChunkMeta struct {
	StripeID   StripeID
	ChunkIndex ChunkIndex
	Size       int64
}

// BlockCommand is the wire command the coordinator pushes to a worker's
// _LIST_BLK_CMD queue (spec.md §4.5). Field order and types are stable;
// the exact encoded bytes are not prescribed (internal/core/codec.go picks
// msgpack, mirroring the reference implementation's own MSGPACK_DEFINE
// field list in protocol/BlockCommand.hh).
type BlockCommand struct {
	Type CommandType

	// read-and-cache fields (types READANDCACHEBLOCK/READANDCACHEBLOCKCLAY)
	BlockID  uint8
	Offset   int64
	Size     int64
	StripeID StripeID
	DiskID   DiskID
	K        int
	M        int

	// fetch-and-compute fields (type FETCHANDCOMPUTEANDWRITEBLOCK)
	ComputeType  ComputeType
	SrcIPs       []string
	SrcBlockIDs  []uint8
	DestBlockID  uint8
	BlockNum     int

	// Clay read-and-cache sub-chunk byte offsets, paired with Size as the
	// per-offset read length.
	ClayOffsets []int64
}

// CommandType is the BlockCommand dispatch tag (spec.md §4.5).
type CommandType int32

const (
	// ReadAndCacheBlock reads a contiguous chunk byte range and caches it.
	ReadAndCacheBlock CommandType = 0
	// FetchAndComputeAndWriteBlock fetches cached pieces, decodes/computes,
	// and writes or ACKs a read.
	FetchAndComputeAndWriteBlock CommandType = 1
	// ReadAndCacheBlockClay reads a set of discrete Clay sub-chunk offsets
	// and caches the concatenated result.
	ReadAndCacheBlockClay CommandType = 2
	// FetchWriteBlock fetches chunk payload pieces pushed at build time and
	// writes the assembled chunk, then ACKs the build.
	FetchWriteBlock CommandType = 3
)

func (t CommandType) String() string {
	switch t {
	case ReadAndCacheBlock:
		return "READANDCACHEBLOCK"
	case FetchAndComputeAndWriteBlock:
		return "FETCHANDCOMPUTEANDWRITEBLOCK"
	case ReadAndCacheBlockClay:
		return "READANDCACHEBLOCKCLAY"
	case FetchWriteBlock:
		return "FETCH_WRITE_BLOCK"
	default:
		return "UNKNOWN_COMMAND_TYPE"
	}
}

// ComputeType is the FetchAndComputeAndWriteBlock compute subtype.
type ComputeType int32

const (
	ClayRepair ComputeType = 0
	RSRepair   ComputeType = 1
	NsysRepair ComputeType = 2
	NsysRead   ComputeType = 3
	ClayRead   ComputeType = 4
	RSRead     ComputeType = 5
)

func (t ComputeType) String() string {
	switch t {
	case ClayRepair:
		return "CLAY_REPAIR"
	case RSRepair:
		return "RS_REPAIR"
	case NsysRepair:
		return "NSYS_REPAIR"
	case NsysRead:
		return "NSYS_READ"
	case ClayRead:
		return "CLAY_READ"
	case RSRead:
		return "RS_READ"
	default:
		return "UNKNOWN_COMPUTE_TYPE"
	}
}

// IsRepair reports whether the compute subtype is a repair (vs. a read).
func (t ComputeType) IsRepair() bool {
	switch t {
	case ClayRepair, RSRepair, NsysRepair:
		return true
	}
	return false
}

// Plan is an ordered list of per-worker commands and the parallel list of
// recipient worker IPs they are pushed to. Every Plan is non-empty; the
// last element is the ACK sink whose queue the coordinator pops to learn
// completion (spec.md §4.5).
type Plan struct {
	Commands []BlockCommand
	IPs      []string
}

// SinkIP returns the IP of the ACK sink, the last recipient in the plan.
func (p *Plan) SinkIP() string {
	return p.IPs[len(p.IPs)-1]
}

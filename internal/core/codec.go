// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package core

import "github.com/vmihailenco/msgpack/v5"

// EncodeCommand serializes a BlockCommand with the compact binary codec the
// transport carries it over. The wire layout is not prescribed by spec.md,
// only that field order and types are stable, so this follows the reference
// implementation's own choice of msgpack (protocol/BlockCommand.hh's
// MSGPACK_DEFINE) field for field.
func EncodeCommand(cmd *BlockCommand) ([]byte, error) {
	return msgpack.Marshal(cmd)
}

// DecodeCommand deserializes a BlockCommand previously produced by
// EncodeCommand.
func DecodeCommand(b []byte) (BlockCommand, error) {
	var cmd BlockCommand
	err := msgpack.Unmarshal(b, &cmd)
	return cmd, err
}

// ClayPlan is the only opaque binary input the core accepts from outside
// (spec.md §4.5, §9): a precomputed pipelined plan for Clay, keyed by
// (n, shard) and loaded from a file by internal/taskbuilder/clayplan.go.
type ClayPlan struct {
	Commands  []BlockCommand
	NodeOrder []int
}

// EncodeClayPlan re-serializes a ClayPlan with the same stable format used
// for BlockCommand, per spec.md §9's requirement that implementations
// re-serialize the plan file with a stable format.
func EncodeClayPlan(p *ClayPlan) ([]byte, error) {
	return msgpack.Marshal(p)
}

// DecodeClayPlan deserializes a ClayPlan file.
func DecodeClayPlan(b []byte) (ClayPlan, error) {
	var p ClayPlan
	err := msgpack.Unmarshal(b, &p)
	return p, err
}

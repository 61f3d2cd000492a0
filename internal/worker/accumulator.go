// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package worker

import (
	"github.com/vmihailenco/msgpack/v5"
)

// accumulator is the running state a pipelined repair hop forwards to
// the next one: every raw shard collected by the chain so far, keyed by
// chunk index (spec.md §4.5 "a chain of FETCHANDCOMPUTE hops... folding
// one more survivor's data into a running accumulator"). Real Clay-style
// pipelines fold parity incrementally in the field; since spec.md's Open
// Questions mark pipelined repair beyond RS as optional to reproduce
// exactly, this collects the raw shards and defers the actual
// Reconstruct to the terminal hop, which sees the same complete
// survivor set a centralized plan would have gathered at once.
type accumulator map[uint8][]byte

func encodeAccumulator(a accumulator) ([]byte, error) {
	return msgpack.Marshal(map[uint8][]byte(a))
}

func decodeAccumulator(raw []byte) (accumulator, error) {
	var m map[uint8][]byte
	if err := msgpack.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return accumulator(m), nil
}

// toShards expands a into a k+m-wide shard slice, nil where absent.
func (a accumulator) toShards(k, m int) [][]byte {
	shards := make([][]byte, k+m)
	for idx, data := range a {
		shards[idx] = data
	}
	return shards
}

// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package worker

import (
	"bytes"
	"testing"
)

func TestAccumulatorRoundTrip(t *testing.T) {
	a := accumulator{
		0: []byte("survivor-zero"),
		2: []byte("survivor-two"),
	}

	raw, err := encodeAccumulator(a)
	if err != nil {
		t.Fatalf("encodeAccumulator: %v", err)
	}

	got, err := decodeAccumulator(raw)
	if err != nil {
		t.Fatalf("decodeAccumulator: %v", err)
	}
	if len(got) != len(a) {
		t.Fatalf("got %d entries, want %d", len(got), len(a))
	}
	for idx, data := range a {
		if !bytes.Equal(got[idx], data) {
			t.Fatalf("entry %d: got %q, want %q", idx, got[idx], data)
		}
	}
}

func TestAccumulatorToShards(t *testing.T) {
	a := accumulator{1: []byte("one"), 3: []byte("three")}
	shards := a.toShards(4, 2)
	if len(shards) != 6 {
		t.Fatalf("len(shards) = %d, want 6", len(shards))
	}
	for i, s := range shards {
		switch i {
		case 1, 3:
			if s == nil {
				t.Fatalf("shard %d: expected non-nil", i)
			}
		default:
			if s != nil {
				t.Fatalf("shard %d: expected nil, got %q", i, s)
			}
		}
	}
}

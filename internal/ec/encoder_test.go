// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package ec

import (
	"bytes"
	"testing"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
)

func roundTrip(t *testing.T, enc Encoder, data []byte, missing []int) {
	shards, err := enc.Encode(data)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(shards) != enc.K()+enc.M() {
		t.Fatalf("got %d shards, want %d", len(shards), enc.K()+enc.M())
	}
	want := make([][]byte, len(shards))
	for i, s := range shards {
		want[i] = append([]byte(nil), s...)
	}
	damaged := make([][]byte, len(shards))
	copy(damaged, shards)
	for _, idx := range missing {
		damaged[idx] = nil
	}
	if err := enc.Reconstruct(damaged, missing); err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	for _, idx := range missing {
		if !bytes.Equal(damaged[idx], want[idx]) {
			t.Fatalf("shard %d reconstructed incorrectly", idx)
		}
	}
}

func TestRSRoundTrip(t *testing.T) {
	enc, err := NewEncoder(core.RS, 4, 2)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	data := make([]byte, 4*1024)
	for i := range data {
		data[i] = byte(i)
	}
	roundTrip(t, enc, data, []int{3})
	roundTrip(t, enc, data, []int{0, 5})
}

func TestNsysRoundTrip(t *testing.T) {
	enc, err := NewEncoder(core.NSYS, 4, 2)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	data := make([]byte, 4*1024)
	for i := range data {
		data[i] = byte(255 - i)
	}
	roundTrip(t, enc, data, []int{2})
	shards, _ := enc.Encode(data)
	for i := 0; i < enc.K(); i++ {
		dataShard := data[i*1024 : (i+1)*1024]
		if bytes.Equal(shards[i], dataShard) {
			t.Fatalf("NSYS shard %d equals raw data shard; expected non-systematic output", i)
		}
	}
}

func TestClayRoundTrip(t *testing.T) {
	enc, err := NewEncoder(core.CLAY, 4, 2)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	w := enc.SubChunkCount()
	if w != 8 {
		t.Fatalf("SubChunkCount() = %d, want 8", w)
	}
	// len(data) must be a multiple of k*w.
	data := make([]byte, 4*8*16)
	for i := range data {
		data[i] = byte(i * 7)
	}
	roundTrip(t, enc, data, []int{3})
}

func TestClayMinimumToDecode(t *testing.T) {
	enc, err := NewEncoder(core.CLAY, 4, 2)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	clay := enc.(ClayEncoder)
	survivors := []int{0, 1, 2, 4, 5}
	plan := clay.MinimumToDecode(survivors)
	if len(plan) != len(survivors) {
		t.Fatalf("plan has %d entries, want %d", len(plan), len(survivors))
	}
	for _, s := range survivors {
		offsets, ok := plan[s]
		if !ok {
			t.Fatalf("survivor %d missing from plan", s)
		}
		if len(offsets) != enc.SubChunkCount() {
			t.Fatalf("survivor %d has %d offsets, want %d", s, len(offsets), enc.SubChunkCount())
		}
	}
}

func TestUnsupportedCombination(t *testing.T) {
	if _, err := NewEncoder(core.CLAY, 3, 1); err == nil {
		t.Fatalf("expected error for unsupported (k, m) pair")
	}
}

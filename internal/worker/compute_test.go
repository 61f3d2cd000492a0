// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package worker

import (
	"bytes"
	"testing"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/ec"
)

func TestComputeEcTypeMapping(t *testing.T) {
	cases := []struct {
		in   core.ComputeType
		want core.EcType
	}{
		{core.RSRepair, core.RS},
		{core.RSRead, core.RS},
		{core.NsysRepair, core.NSYS},
		{core.NsysRead, core.NSYS},
		{core.ClayRepair, core.CLAY},
		{core.ClayRead, core.CLAY},
	}
	for _, c := range cases {
		got, err := computeEcType(c.in)
		if err != nil {
			t.Fatalf("computeEcType(%v): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("computeEcType(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestDoComputeReconstructsMissingShard(t *testing.T) {
	enc, err := ec.NewEncoder(core.RS, 4, 2)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	data := make([]byte, 4*1024)
	for i := range data {
		data[i] = byte(i)
	}
	shards, err := enc.Encode(data)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := append([]byte(nil), shards[3]...)
	shards[3] = nil

	cmd := core.BlockCommand{
		K:           4,
		M:           2,
		ComputeType: core.RSRepair,
		DestBlockID: 3,
	}
	got, err := doCompute(cmd, shards)
	if err != nil {
		t.Fatalf("doCompute: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("doCompute produced wrong shard")
	}
}

// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package coordinator

import (
	"testing"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
)

func validConfig() Config {
	return Config{
		WorkerIP:    []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"},
		DiskList:    [][]int{{0}, {1}, {2}},
		Action:      "BuildData",
		EcK:         2,
		EcM:         1,
		EcType:      "RS",
		LoadType:    "ByStripe",
		TestLoad:    0,
		MergeSize:   1 << 20,
		MergeScheme: "Fixed",
		PGNum:       1,
	}
}

func TestParseValidConfig(t *testing.T) {
	if _, err := Parse(validConfig()); err != nil {
		t.Fatalf("Parse: %v", err)
	}
}

func TestParseRejectsDuplicateWorkerIP(t *testing.T) {
	c := validConfig()
	c.WorkerIP = []string{"10.0.0.1", "10.0.0.2", "10.0.0.1"}
	c.DiskList = [][]int{{0}, {1}, {2}}
	if _, err := Parse(c); err == nil {
		t.Fatalf("Parse: expected error for duplicate worker_ip")
	}
}

func TestParseRejectsMismatchedWorkerAndDiskLists(t *testing.T) {
	c := validConfig()
	c.DiskList = [][]int{{0}, {1}}
	if _, err := Parse(c); err == nil {
		t.Fatalf("Parse: expected error for length mismatch")
	}
}

func TestParseRejectsInsufficientWorkersForEcWidth(t *testing.T) {
	c := validConfig()
	c.EcK, c.EcM = 4, 4
	if _, err := Parse(c); err == nil {
		t.Fatalf("Parse: expected error, ec_k+ec_m exceeds worker count")
	}
}

func TestParseRepairChunkRequiresManner(t *testing.T) {
	c := validConfig()
	c.Action = "RepairChunk"
	c.Manner = "bogus"
	if _, err := Parse(c); err == nil {
		t.Fatalf("Parse: expected error for invalid manner")
	}

	c.Manner = "Centralized"
	parsed, err := Parse(c)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Manner != core.Centralized {
		t.Fatalf("Manner = %v, want Centralized", parsed.Manner)
	}
}

func TestParseDegradeReadRequiresChunkSize(t *testing.T) {
	c := validConfig()
	c.MergeScheme = "IntraForDegradeRead"
	if _, err := Parse(c); err == nil {
		t.Fatalf("Parse: expected error, chunk_size required for degrade-read merge scheme")
	}

	c.ChunkSize = 4096
	if _, err := Parse(c); err != nil {
		t.Fatalf("Parse: %v", err)
	}
}

// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package taskbuilder

import (
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
)

// ClayPlanStore holds precomputed Clay pipelined plans loaded from an
// external configuration file, keyed by (n, shard) — spec.md §4.5's
// "the only place the core accepts precomputed plans as input", and
// §9's requirement that the file be re-serialized with the same
// stable codec as every other wire command.
type ClayPlanStore struct {
	plans map[clayPlanKey]core.ClayPlan
}

type clayPlanKey struct {
	n, shard int
}

// clayPlanFileEntry is one (n, shard) -> plan record in the file.
type clayPlanFileEntry struct {
	N     int
	Shard int
	Plan  core.ClayPlan
}

// EncodeClayPlanFile serializes a set of (n, shard) plans into the
// file format LoadClayPlanFile reads back.
func EncodeClayPlanFile(entries map[[2]int]core.ClayPlan) ([]byte, error) {
	list := make([]clayPlanFileEntry, 0, len(entries))
	for k, v := range entries {
		list = append(list, clayPlanFileEntry{N: k[0], Shard: k[1], Plan: v})
	}
	return msgpack.Marshal(list)
}

// LoadClayPlanFile reads a file produced by EncodeClayPlanFile: a
// msgpack-encoded list of (n, shard) plan entries.
func LoadClayPlanFile(path string) (*ClayPlanStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("taskbuilder: reading clay plan file: %w", err)
	}
	var entries []clayPlanFileEntry
	if err := msgpack.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("taskbuilder: decoding clay plan file: %w", err)
	}
	store := &ClayPlanStore{plans: make(map[clayPlanKey]core.ClayPlan, len(entries))}
	for _, e := range entries {
		store.plans[clayPlanKey{n: e.N, shard: e.Shard}] = e.Plan
	}
	return store, nil
}

// Lookup returns the precomputed pipelined plan for (n, shard), if
// the loaded file has one.
func (s *ClayPlanStore) Lookup(n, shard int) (core.ClayPlan, bool) {
	p, ok := s.plans[clayPlanKey{n: n, shard: shard}]
	return p, ok
}

// ForStripe resolves the plan for a stripe's (k+m, failed chunk index)
// and rewrites its node order against the stripe's actual PG disk/IP
// assignment, producing a ready-to-push core.Plan. The file's plan is
// stored generically over NodeOrder positions 0..n-1; ForStripe maps
// those positions onto pg's concrete IPs in order.
func (s *ClayPlanStore) ForStripe(n, shard int, pg PG) (core.Plan, error) {
	cp, ok := s.Lookup(n, shard)
	if !ok {
		return core.Plan{}, fmt.Errorf("taskbuilder: no clay pipelined plan for n=%d shard=%d", n, shard)
	}
	ips := make([]string, len(cp.NodeOrder))
	for i, pos := range cp.NodeOrder {
		if pos < 0 || pos >= len(pg.IPs) {
			return core.Plan{}, fmt.Errorf("taskbuilder: clay plan node order index %d out of range", pos)
		}
		ips[i] = pg.IPs[pos]
	}
	return core.Plan{Commands: cp.Commands, IPs: ips}, nil
}

// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT
//
// Package durable implements the coordinator's metadata store, the
// persistence layer under internal/metadata's core (spec.md §4.3): an ordered key-value store of stripe, blob, chunk, placement
// group, and node/disk records, persisted with atomic write batches so
// a crash mid-update never leaves half-applied metadata behind. It is
// backed by cockroachdb/pebble, an embedded ordered KV engine with the
// same Batch/Commit shape the spec calls for.
package durable

import (
	"encoding/binary"

	"github.com/cockroachdb/pebble"
	log "github.com/golang/glog"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
)

// MetaType distinguishes the record families sharing one pebble
// keyspace. Keys are built as metaType || big-endian id, so a prefix
// scan over a single MetaType yields all records of that kind in id
// order.
type MetaType byte

const (
	MetaStripe MetaType = iota + 1
	MetaBlob
	MetaChunk
	MetaPG
	MetaNode
	MetaDisk
)

// Special, non-id-keyed records.
var (
	keyPGMap       = []byte{0xff, 'P', 'G', 'M', 'A', 'P'}
	keyStripeRange = []byte{0xff, 'S', 'T', 'R', 'N', 'G'}
	keyPGStripePfx = []byte{0xfe, 'P', 'G', 'S', 'T', 'R'}
)

// pgStripeKey builds the key for one pg_id -> stripe_id reverse-index
// entry: the fixed prefix above, then the PG id, then the stripe id,
// both big-endian, so a prefix scan over keyPGStripePfx yields every
// entry in (pg, stripe) order.
func pgStripeKey(pg core.PGID, stripeID core.StripeID) []byte {
	key := make([]byte, len(keyPGStripePfx)+4+8)
	n := copy(key, keyPGStripePfx)
	binary.BigEndian.PutUint32(key[n:], uint32(pg))
	binary.BigEndian.PutUint64(key[n+4:], uint64(stripeID))
	return key
}

// Store is the coordinator's durable metadata store.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) a pebble database at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

func recordKey(t MetaType, id uint64) []byte {
	key := make([]byte, 9)
	key[0] = byte(t)
	binary.BigEndian.PutUint64(key[1:], id)
	return key
}

// Get reads the raw record bytes for (t, id).
func (s *Store) Get(t MetaType, id uint64) ([]byte, error) {
	v, closer, err := s.db.Get(recordKey(t, id))
	if err == pebble.ErrNotFound {
		return nil, core.ErrKeyNotFound.Error()
	}
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), v...)
	closer.Close()
	return out, nil
}

// Put writes record bytes for (t, id) with pebble.Sync, so the record is
// durable once Put returns.
func (s *Store) Put(t MetaType, id uint64, value []byte) error {
	if err := s.db.Set(recordKey(t, id), value, pebble.Sync); err != nil {
		log.Errorf("durable: Set(%d,%d) failed: %+v", t, id, err)
		return err
	}
	return nil
}

// Delete removes the record for (t, id).
func (s *Store) Delete(t MetaType, id uint64) error {
	return s.db.Delete(recordKey(t, id), pebble.Sync)
}

// Scan iterates every record of type t in ascending id order, calling
// fn with each (id, value). Iteration stops early if fn returns an
// error.
func (s *Store) Scan(t MetaType, fn func(id uint64, value []byte) error) error {
	lower := []byte{byte(t)}
	upper := []byte{byte(t) + 1}
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return err
	}
	defer iter.Close()

	for valid := iter.First(); valid; valid = iter.Next() {
		key := iter.Key()
		id := binary.BigEndian.Uint64(key[1:])
		if err := fn(id, iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// GetPGMap reads the serialized placement-group-to-disk assignment
// table written by SavePGMap.
func (s *Store) GetPGMap() ([]byte, error) {
	v, closer, err := s.db.Get(keyPGMap)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), v...)
	closer.Close()
	return out, nil
}

// SavePGMap persists the serialized placement-group-to-disk assignment
// table.
func (s *Store) SavePGMap(value []byte) error {
	return s.db.Set(keyPGMap, value, pebble.Sync)
}

// ScanPGStripes iterates every pg_id -> stripe_id reverse-index entry,
// in (pg, stripe) order, calling fn with each pair. Load uses this to
// rebuild the in-memory pg -> stripes map after a restart.
func (s *Store) ScanPGStripes(fn func(pg core.PGID, stripeID core.StripeID) error) error {
	upper := append([]byte(nil), keyPGStripePfx...)
	upper[len(upper)-1]++
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: keyPGStripePfx, UpperBound: upper})
	if err != nil {
		return err
	}
	defer iter.Close()

	for valid := iter.First(); valid; valid = iter.Next() {
		key := iter.Key()
		rest := key[len(keyPGStripePfx):]
		pg := core.PGID(binary.BigEndian.Uint32(rest))
		stripeID := core.StripeID(binary.BigEndian.Uint64(rest[4:]))
		if err := fn(pg, stripeID); err != nil {
			return err
		}
	}
	return iter.Error()
}

// GetStripeRange reads the serialized stripe-id allocator watermark.
func (s *Store) GetStripeRange() ([]byte, error) {
	v, closer, err := s.db.Get(keyStripeRange)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), v...)
	closer.Close()
	return out, nil
}

// SaveStripeRange persists the serialized stripe-id allocator
// watermark.
func (s *Store) SaveStripeRange(value []byte) error {
	return s.db.Set(keyStripeRange, value, pebble.Sync)
}

// Batch groups several record mutations into one atomic write.
type Batch struct {
	b *pebble.Batch
}

// NewBatch starts a new atomic write batch.
func (s *Store) NewBatch() *Batch {
	return &Batch{b: s.db.NewBatch()}
}

// Put stages a record write within the batch.
func (b *Batch) Put(t MetaType, id uint64, value []byte) error {
	return b.b.Set(recordKey(t, id), value, nil)
}

// Delete stages a record removal within the batch.
func (b *Batch) Delete(t MetaType, id uint64) error {
	return b.b.Delete(recordKey(t, id), nil)
}

// PutPGStripe stages one pg_id -> stripe_id reverse-index entry within
// the batch, so RegisterStripe's atomic write includes it alongside the
// stripe/blob/chunk records it registers (spec.md §4.3). The value is
// empty; membership is the key's existence, mirroring the reference
// implementation's pg -> sorted-set<stripe_id> index.
func (b *Batch) PutPGStripe(pg core.PGID, stripeID core.StripeID) error {
	return b.b.Set(pgStripeKey(pg, stripeID), nil, nil)
}

// Commit atomically applies every staged mutation.
func (b *Batch) Commit() error {
	return b.b.Commit(pebble.Sync)
}

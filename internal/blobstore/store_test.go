// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package blobstore

import (
	"bytes"
	"testing"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
)

func newTestStore(t *testing.T) *FileStore {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func TestCreateGetAll(t *testing.T) {
	s := newTestStore(t)
	data := []byte("hello stripe")
	if err := s.Create("k1", data); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !s.Contains("k1") {
		t.Fatalf("Contains: expected true")
	}
	got, err := s.GetAll("k1", nil)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("GetAll = %q, want %q", got, data)
	}
}

func TestCreateExisting(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create("k1", []byte("a")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := s.Create("k1", []byte("b"))
	if got, ok := core.FromError(err); !ok || got != core.ErrKeyExists {
		t.Fatalf("Create over existing key: got %v, want ErrKeyExists", err)
	}
}

func TestGetAllMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetAll("nope", nil)
	if got, ok := core.FromError(err); !ok || got != core.ErrNoSuchBlob {
		t.Fatalf("GetAll on missing key: got %v, want ErrNoSuchBlob", err)
	}
}

func TestPutOffset(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create("k1", []byte("0123456789")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Put("k1", []byte("XY"), 3); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.GetAll("k1", nil)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if want := []byte("012XY56789"); !bytes.Equal(got, want) {
		t.Fatalf("GetAll = %q, want %q", got, want)
	}
}

func TestGetOffset(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create("k1", []byte("0123456789")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	buf := make([]byte, 4)
	n, err := s.GetOffset("k1", buf, 3)
	if err != nil {
		t.Fatalf("GetOffset: %v", err)
	}
	if got := string(buf[:n]); got != "3456" {
		t.Fatalf("GetOffset = %q, want %q", got, "3456")
	}
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create("k1", []byte("x")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Remove("k1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if s.Contains("k1") {
		t.Fatalf("Contains: expected false after Remove")
	}
	if err := s.Remove("k1"); err != nil {
		t.Fatalf("Remove of missing key should be a no-op: %v", err)
	}
}

func TestCachedStoreBypass(t *testing.T) {
	backing := newTestStore(t)
	cached := NewCachedStore(backing, 16, 4)

	if err := cached.Create("small", []byte("ab")); err != nil {
		t.Fatalf("Create small: %v", err)
	}
	if err := cached.Create("large", []byte("abcdefgh")); err != nil {
		t.Fatalf("Create large: %v", err)
	}

	// Corrupt the backing copy directly to distinguish a cache hit
	// (returns "ab") from a cache bypass (would return the corrupted
	// bytes read back from the backing store).
	if err := backing.Put("small", []byte("zz"), 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := cached.GetAll("small", nil)
	if err != nil {
		t.Fatalf("GetAll small: %v", err)
	}
	if string(got) != "ab" {
		t.Fatalf("expected cached value %q, got %q", "ab", got)
	}

	if err := backing.Put("large", []byte("ZZZZZZZZ"), 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err = cached.GetAll("large", nil)
	if err != nil {
		t.Fatalf("GetAll large: %v", err)
	}
	if string(got) != "ZZZZZZZZ" {
		t.Fatalf("expected bypassed read %q, got %q", "ZZZZZZZZ", got)
	}
}

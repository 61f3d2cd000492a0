// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT
//
// Package blobstore implements the byte-addressed key-value store that
// backs a single worker's local disks (spec.md §4.1). Each key is a
// chunk identity (stripe/block) and is stored as its own checksummed
// segment file, reusing pkg/disk's ChecksumFile rather than a raw
// os.File so silent bitrot on a worker's disk surfaces as ErrCorruptData
// instead of feeding bad bytes into decode.
package blobstore

import (
	"os"
	"path/filepath"
	"sync"

	log "github.com/golang/glog"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/pkg/disk"
)

// Store is the byte-addressed key-value interface a worker uses to keep
// chunk data on a local disk.
type Store interface {
	// Contains reports whether key currently has data.
	Contains(key string) bool

	// BlobSize returns the number of user bytes stored under key.
	BlobSize(key string) (int64, error)

	// Create atomically creates key with the given bytes. It is an error
	// for key to already exist.
	Create(key string, data []byte) error

	// Put overwrites data at offset within an existing blob, growing it
	// if the write extends past the current end.
	Put(key string, data []byte, offset int64) error

	// PutOrCreate writes data at offset 0, creating key if it does not
	// already exist and overwriting it from the start otherwise.
	PutOrCreate(key string, data []byte) error

	// GetAll reads the entirety of key into buf, which is grown as
	// needed, returning the slice actually populated.
	GetAll(key string, buf []byte) ([]byte, error)

	// GetOffset reads len(buf) bytes of key starting at offset into buf.
	GetOffset(key string, buf []byte, offset int64) (int, error)

	// Remove deletes key. Removing a key that does not exist is not an
	// error.
	Remove(key string) error
}

// FileStore is a Store backed by one ChecksumFile per key under a single
// root directory on a local disk.
type FileStore struct {
	root string

	// mu serializes create/remove against each other; ChecksumFile
	// itself is not safe for concurrent use on the same key, which
	// matches how a worker pipeline stage owns one chunk at a time.
	mu sync.Mutex
}

// NewFileStore returns a FileStore rooted at dir, creating dir if it
// does not exist.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &FileStore{root: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.root, key)
}

// Contains implements Store.
func (s *FileStore) Contains(key string) bool {
	_, err := os.Stat(s.path(key))
	return err == nil
}

// BlobSize implements Store.
func (s *FileStore) BlobSize(key string) (int64, error) {
	f, err := disk.NewChecksumFile(s.path(key), os.O_RDONLY)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, core.ErrNoSuchBlob.Error()
		}
		return 0, err
	}
	defer f.Close()
	return f.Size()
}

// Create implements Store.
func (s *FileStore) Create(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := disk.NewChecksumFile(s.path(key), os.O_RDWR|os.O_CREATE|os.O_EXCL)
	if err != nil {
		if os.IsExist(err) {
			return core.ErrKeyExists.Error()
		}
		return err
	}
	defer f.Close()
	if _, err := f.WriteAt(data, 0); err != nil {
		log.Errorf("blobstore: create %s failed writing %d bytes: %+v", key, len(data), err)
		return err
	}
	return nil
}

// Put implements Store.
func (s *FileStore) Put(key string, data []byte, offset int64) error {
	f, err := disk.NewChecksumFile(s.path(key), os.O_RDWR)
	if err != nil {
		if os.IsNotExist(err) {
			return core.ErrNoSuchBlob.Error()
		}
		return err
	}
	defer f.Close()
	_, err = f.WriteAt(data, offset)
	return err
}

// PutOrCreate implements Store.
func (s *FileStore) PutOrCreate(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := disk.NewChecksumFile(s.path(key), os.O_RDWR|os.O_CREATE)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteAt(data, 0)
	return err
}

// GetAll implements Store.
func (s *FileStore) GetAll(key string, buf []byte) ([]byte, error) {
	f, err := disk.NewChecksumFile(s.path(key), os.O_RDONLY)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrNoSuchBlob.Error()
		}
		return nil, err
	}
	defer f.Close()

	size, err := f.Size()
	if err != nil {
		return nil, err
	}
	if int64(cap(buf)) < size {
		buf = make([]byte, size)
	}
	buf = buf[:size]
	if _, err := f.ReadAt(buf, 0); err != nil {
		return nil, err
	}
	return buf, nil
}

// GetOffset implements Store.
func (s *FileStore) GetOffset(key string, buf []byte, offset int64) (int, error) {
	f, err := disk.NewChecksumFile(s.path(key), os.O_RDONLY)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, core.ErrNoSuchBlob.Error()
		}
		return 0, err
	}
	defer f.Close()
	return f.ReadAt(buf, offset)
}

// Remove implements Store.
func (s *FileStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

var _ Store = (*FileStore)(nil)

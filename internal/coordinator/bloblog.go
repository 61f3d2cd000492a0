// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package coordinator

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
)

// BlobLog is the blob-access log: a text file under working_dir
// holding one decimal blob_id per line (spec.md §6 "Persisted state
// layout"). BuildData clears it at the start of a run and appends
// every blob it merges; Read/DegradeRead replay it in order.
type BlobLog struct {
	path string
}

// NewBlobLog returns the blob-access log under workingDir.
func NewBlobLog(workingDir string) *BlobLog {
	return &BlobLog{path: filepath.Join(workingDir, "blob_record")}
}

// Clear truncates the log, per BuildData's "clears the blob-access
// log" precondition.
func (l *BlobLog) Clear() error {
	f, err := os.Create(l.path)
	if err != nil {
		return err
	}
	return f.Close()
}

// Append adds one blob id to the log.
func (l *BlobLog) Append(blobID core.BlobID) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(strconv.FormatUint(uint64(blobID), 10) + "\n")
	return err
}

// Iterate calls fn once per blob id in the log, in file order
// (insertion order, satisfying the dedup invariant that every
// blob_id appears at most once since merge streams only ever emit a
// blob once).
func (l *BlobLog) Iterate(fn func(core.BlobID) error) error {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		id, err := strconv.ParseUint(scanner.Text(), 10, 64)
		if err != nil {
			continue
		}
		if err := fn(core.BlobID(id)); err != nil {
			return err
		}
	}
	return scanner.Err()
}

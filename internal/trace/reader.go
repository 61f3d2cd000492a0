// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT
//
// Package trace implements the access-trace reader chain (spec.md
// §4.4.1) that feeds merge streams: a base reader yielding structured
// records, composed with a dedup-by-blob-id filter and an optional
// step-by-N skipper. Exhaustion is a typed error so callers (BuildData)
// can treat it as a graceful stop rather than a failure.
package trace

import (
	"bufio"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
)

// Reader yields TraceRecords until exhausted.
type Reader interface {
	// Next returns the next eligible record, or core.ErrTraceExhaust once
	// the underlying source is drained.
	Next() (core.TraceRecord, error)
}

// baseReader parses one CSV-formatted access-trace line per record,
// columns {time, region, user_id, app_id, func_id, blob_id, blob_type,
// version, size, read, write}. Records with size == 0 are skipped
// transparently, matching the reference trace reader.
type baseReader struct {
	csv *csv.Reader
}

// NewBaseReader wraps r as a trace.Reader over CSV-formatted records.
func NewBaseReader(r io.Reader) Reader {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = 11
	cr.ReuseRecord = true
	return &baseReader{csv: cr}
}

func (b *baseReader) Next() (core.TraceRecord, error) {
	for {
		fields, err := b.csv.Read()
		if err == io.EOF {
			return core.TraceRecord{}, core.ErrTraceExhaust.Error()
		}
		if err != nil {
			return core.TraceRecord{}, err
		}

		rec, err := parseRecord(fields)
		if err != nil {
			return core.TraceRecord{}, err
		}
		if rec.Size == 0 {
			continue
		}
		return rec, nil
	}
}

func parseRecord(f []string) (core.TraceRecord, error) {
	t, err := strconv.ParseInt(f[0], 10, 64)
	if err != nil {
		return core.TraceRecord{}, err
	}
	blobID, err := strconv.ParseUint(f[5], 10, 64)
	if err != nil {
		return core.TraceRecord{}, err
	}
	version, err := strconv.Atoi(f[7])
	if err != nil {
		return core.TraceRecord{}, err
	}
	size, err := strconv.Atoi(f[8])
	if err != nil {
		return core.TraceRecord{}, err
	}
	read, err := strconv.ParseBool(f[9])
	if err != nil {
		return core.TraceRecord{}, err
	}
	write, err := strconv.ParseBool(f[10])
	if err != nil {
		return core.TraceRecord{}, err
	}
	return core.TraceRecord{
		Time:     t,
		Region:   f[1],
		UserID:   f[2],
		AppID:    f[3],
		FuncID:   f[4],
		BlobID:   blobID,
		BlobType: f[6],
		Version:  version,
		Size:     size,
		Read:     read,
		Write:    write,
	}, nil
}

// dedupReader emits each distinct blob_id at most once, dropping later
// records for a blob_id already seen.
type dedupReader struct {
	inner Reader
	seen  map[uint64]struct{}
}

// NewDedupReader wraps inner so at most one record per blob_id passes
// through.
func NewDedupReader(inner Reader) Reader {
	return &dedupReader{inner: inner, seen: make(map[uint64]struct{})}
}

func (d *dedupReader) Next() (core.TraceRecord, error) {
	for {
		rec, err := d.inner.Next()
		if err != nil {
			return core.TraceRecord{}, err
		}
		if _, ok := d.seen[rec.BlobID]; ok {
			continue
		}
		d.seen[rec.BlobID] = struct{}{}
		return rec, nil
	}
}

// stepByReader consumes n records for every one it yields.
type stepByReader struct {
	inner Reader
	n     int
}

// NewStepByReader wraps inner so that for every record returned, n-1
// further records are consumed and discarded first. n <= 1 is a no-op
// pass-through.
func NewStepByReader(inner Reader, n int) Reader {
	if n <= 1 {
		return inner
	}
	return &stepByReader{inner: inner, n: n}
}

func (s *stepByReader) Next() (core.TraceRecord, error) {
	for i := 1; i < s.n; i++ {
		if _, err := s.inner.Next(); err != nil {
			return core.TraceRecord{}, err
		}
	}
	return s.inner.Next()
}

// NewChain builds the standard base → dedup → step-by composition. A
// stepBy of 0 or 1 disables the skipper.
func NewChain(r io.Reader, stepBy int) Reader {
	return NewStepByReader(NewDedupReader(NewBaseReader(r)), stepBy)
}

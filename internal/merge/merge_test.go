// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package merge

import (
	"strings"
	"testing"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/trace"
)

func csvLine(blobID uint64, userID string, size int) string {
	return "1,r," + userID + ",a,f," + itoa(blobID) + ",b,1," + itoa(uint64(size)) + ",true,false\n"
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

func TestNoneStream(t *testing.T) {
	csv := csvLine(1, "u", 10) + csvLine(2, "u", 100)
	r := trace.NewBaseReader(strings.NewReader(csv))
	s := NewNoneStream(r)

	g, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(g.Blobs) != 1 || g.Blobs[0].Size != 100 {
		t.Fatalf("got %+v, want one 100-byte blob (size<32 skipped)", g)
	}
}

func TestFixedStreamExactSize(t *testing.T) {
	csv := csvLine(1, "u", 60) + csvLine(2, "u", 60)
	r := trace.NewBaseReader(strings.NewReader(csv))
	s := NewFixedStream(r, 100)

	g, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if int64(len(g.Data)) != 100 {
		t.Fatalf("Fixed group len = %d, want exactly 100", len(g.Data))
	}
	if len(g.Blobs) != 2 {
		t.Fatalf("Fixed group has %d blobs, want 2 (second truncated)", len(g.Blobs))
	}
}

func TestFixedStreamLargeBlobClamped(t *testing.T) {
	csv := csvLine(1, "u", 500)
	r := trace.NewBaseReader(strings.NewReader(csv))
	s := NewFixedStream(r, 100)

	g, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if g.Blobs[0].Size != 100 || g.Blobs[0].BlobIndex != 0 {
		t.Fatalf("large blob should be clamped to merge_size as blob index 0, got %+v", g.Blobs[0])
	}
}

func TestBasicStreamFlushOnExhaust(t *testing.T) {
	csv := csvLine(1, "u", 40)
	r := trace.NewBaseReader(strings.NewReader(csv))
	s := NewBasicStream(r, 1000)

	g, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(g.Blobs) != 1 {
		t.Fatalf("expected a partial flush of 1 blob on exhaust, got %+v", g)
	}

	_, err = s.Next()
	if got, ok := core.FromError(err); !ok || got != core.ErrTraceExhaust {
		t.Fatalf("expected ErrTraceExhaust after flush, got %v", err)
	}
}

func TestPaddingStreamRoundsUp(t *testing.T) {
	csv := csvLine(1, "u", 50)
	r := trace.NewBaseReader(strings.NewReader(csv))
	s := NewPaddingStream(r, 1000, 64)

	g, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if g.Blobs[0].Size != 64 {
		t.Fatalf("padded size = %d, want 64", g.Blobs[0].Size)
	}
}

func TestInterLocalityMissBufferFlushOnExhaust(t *testing.T) {
	// u1's first blob is a miss (not yet admitted to the LRU), routed
	// to the shared miss buffer; its second blob hits the freshly
	// admitted per-user entry, but neither buffer fills before the
	// trace is exhausted, so the final Next() drains the miss buffer.
	csv := csvLine(1, "u1", 64) + csvLine(2, "u1", 64)
	r := trace.NewBaseReader(strings.NewReader(csv))
	s := NewInterLocalityStream(r, 128, 64, 2, 4)

	g, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(g.Blobs) != 1 || g.Blobs[0].BlobID != 1 {
		t.Fatalf("expected the miss-path blob to flush on exhaust, got %+v", g)
	}
	if g.LocalityHit {
		t.Fatalf("miss-path flush must not report LocalityHit")
	}
}

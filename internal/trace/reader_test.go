// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package trace

import (
	"strings"
	"testing"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
)

func TestBaseReaderSkipsZeroSize(t *testing.T) {
	csv := "1,r,u1,a1,f1,1,blob,1,0,true,false\n" +
		"2,r,u1,a1,f1,2,blob,1,100,true,false\n"
	r := NewBaseReader(strings.NewReader(csv))

	rec, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if rec.BlobID != 2 || rec.Size != 100 {
		t.Fatalf("got %+v, want blob_id=2 size=100", rec)
	}

	_, err = r.Next()
	if got, ok := core.FromError(err); !ok || got != core.ErrTraceExhaust {
		t.Fatalf("expected ErrTraceExhaust, got %v", err)
	}
}

func TestDedupReader(t *testing.T) {
	csv := "1,r,u1,a1,f1,1,blob,1,10,true,false\n" +
		"2,r,u1,a1,f1,1,blob,1,10,true,false\n" +
		"3,r,u1,a1,f1,2,blob,1,10,true,false\n"
	r := NewDedupReader(NewBaseReader(strings.NewReader(csv)))

	rec, err := r.Next()
	if err != nil || rec.BlobID != 1 {
		t.Fatalf("first Next() = %+v, %v", rec, err)
	}
	rec, err = r.Next()
	if err != nil || rec.BlobID != 2 {
		t.Fatalf("second Next() should skip the repeated blob_id 1, got %+v, %v", rec, err)
	}
	_, err = r.Next()
	if got, ok := core.FromError(err); !ok || got != core.ErrTraceExhaust {
		t.Fatalf("expected ErrTraceExhaust, got %v", err)
	}
}

func TestStepByReader(t *testing.T) {
	csv := "1,r,u,a,f,1,b,1,10,true,false\n" +
		"2,r,u,a,f,2,b,1,10,true,false\n" +
		"3,r,u,a,f,3,b,1,10,true,false\n" +
		"4,r,u,a,f,4,b,1,10,true,false\n"
	r := NewStepByReader(NewBaseReader(strings.NewReader(csv)), 2)

	rec, err := r.Next()
	if err != nil || rec.BlobID != 2 {
		t.Fatalf("first Next() should consume blob 1 and return blob 2, got %+v, %v", rec, err)
	}
	rec, err = r.Next()
	if err != nil || rec.BlobID != 4 {
		t.Fatalf("second Next() should consume blob 3 and return blob 4, got %+v, %v", rec, err)
	}
}

func TestChainNoStep(t *testing.T) {
	r := NewChain(strings.NewReader("1,r,u,a,f,1,b,1,10,true,false\n"), 0)
	rec, err := r.Next()
	if err != nil || rec.BlobID != 1 {
		t.Fatalf("NewChain with stepBy=0: got %+v, %v", rec, err)
	}
}

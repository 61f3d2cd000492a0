// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package worker

import (
	"bytes"
	"context"
	"testing"

	"github.com/westerndigitalcorporation/blobstripe/internal/blobstore"
	"github.com/westerndigitalcorporation/blobstripe/internal/core"
)

func TestFeedDrainRoundTrip(t *testing.T) {
	data := make([]byte, 3*sharedVecSize+123)
	for i := range data {
		data[i] = byte(i)
	}

	p := newPipe()
	go feed(context.Background(), p, data)
	got := drain(p, int64(len(data)))

	if !bytes.Equal(got, data) {
		t.Fatalf("drain(feed(data)) did not round trip, got %d bytes want %d", len(got), len(data))
	}
}

func TestFeedRespectsCancellation(t *testing.T) {
	data := make([]byte, sharedVecSize*4)
	p := make(pipe) // unbuffered, so feed blocks until canceled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		feed(ctx, p, data)
		close(done)
	}()
	<-done // must return promptly instead of blocking forever on a full send
}

func TestDoReadThenDoWriteRoundTrip(t *testing.T) {
	store, err := blobstore.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	payload := []byte("chunk payload bytes")
	if err := store.PutOrCreate(blockKey(7, 2), payload); err != nil {
		t.Fatalf("PutOrCreate: %v", err)
	}

	cmd := core.BlockCommand{StripeID: 7, BlockID: 2, Size: int64(len(payload))}
	p := newPipe()
	go func() {
		if err := doRead(context.Background(), store, cmd, p); err != nil {
			t.Errorf("doRead: %v", err)
		}
	}()
	got := drain(p, cmd.Size)
	if !bytes.Equal(got, payload) {
		t.Fatalf("doRead returned %q, want %q", got, payload)
	}

	writeCmd := core.BlockCommand{StripeID: 7, DestBlockID: 9}
	if err := doWrite(store, writeCmd, got); err != nil {
		t.Fatalf("doWrite: %v", err)
	}
	buf := make([]byte, len(payload))
	n, err := store.GetOffset(blockKey(7, 9), buf, 0)
	if err != nil {
		t.Fatalf("GetOffset: %v", err)
	}
	if !bytes.Equal(buf[:n], payload) {
		t.Fatalf("doWrite wrote %q, want %q", buf[:n], payload)
	}
}

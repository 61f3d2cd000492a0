// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package transport

import (
	"context"
	"time"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
)

// PushCommand encodes and enqueues a BlockCommand for delivery to a
// worker's command queue.
func (q *Queue) PushCommand(ctx context.Context, queue string, cmd core.BlockCommand) error {
	payload, err := core.EncodeCommand(&cmd)
	if err != nil {
		return err
	}
	return q.Push(ctx, queue, payload)
}

// PopCommand blocks for a BlockCommand on the named queue and decodes it.
func (q *Queue) PopCommand(ctx context.Context, queue string, timeout time.Duration) (core.BlockCommand, error) {
	payload, err := q.Pop(ctx, queue, timeout)
	if err != nil {
		return core.BlockCommand{}, err
	}
	return core.DecodeCommand(payload)
}

// PushAck posts the well-known ACK payload to queue, signaling one unit
// of completed work to whichever coordinator goroutine is counting
// acknowledgements on it.
func (q *Queue) PushAck(ctx context.Context, queue string) error {
	return q.Push(ctx, queue, []byte(core.AckPayload))
}

// WaitAck blocks for a single ACK on queue.
func (q *Queue) WaitAck(ctx context.Context, queue string, timeout time.Duration) error {
	_, err := q.Pop(ctx, queue, timeout)
	return err
}

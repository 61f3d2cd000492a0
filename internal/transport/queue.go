// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT
//
// Package transport implements the named blocking queue service that
// coordinators and workers use to exchange BlockCommands and ACKs
// (spec.md §4.2). It is a thin wrapper over Redis lists: Push is RPUSH,
// Pop is a blocking BLPOP, and queue names are namespaced per workspace
// so multiple clusters can share one Redis instance without collision.
package transport

import (
	"context"
	"time"

	log "github.com/golang/glog"
	"github.com/redis/go-redis/v9"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
)

// Options configures a connection to the Redis instance backing the
// queue service.
type Options struct {
	// Address is host:port of the Redis server.
	Address string

	// Password authenticates the connection. Empty means no AUTH.
	Password string

	// DB selects the logical Redis database.
	DB int

	// Workspace namespaces every queue name so unrelated clusters can
	// share a Redis instance.
	Workspace string
}

// DefaultOptions returns Options pointed at a local, unauthenticated
// Redis instance in the "default" workspace.
func DefaultOptions() Options {
	return Options{
		Address:   "localhost:6379",
		Password:  "",
		DB:        0,
		Workspace: "default",
	}
}

// Queue is a named blocking queue client.
type Queue struct {
	client *redis.Client
	opts   Options
}

// Open connects to Redis and returns a Queue client. The connection is
// not verified until the first command.
func Open(opts Options) *Queue {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &Queue{client: client, opts: opts}
}

// Close releases the underlying Redis connection.
func (q *Queue) Close() error {
	return q.client.Close()
}

// name namespaces a well-known queue key by workspace so two
// clusters sharing a Redis instance never see each other's traffic.
func (q *Queue) name(key string) string {
	return q.opts.Workspace + "||" + key
}

// Push enqueues payload onto the named queue.
func (q *Queue) Push(ctx context.Context, key string, payload []byte) error {
	if err := q.client.RPush(ctx, q.name(key), payload).Err(); err != nil {
		log.Errorf("transport: RPUSH %s failed: %+v", key, err)
		return core.ErrTransport.Error()
	}
	return nil
}

// Pop blocks until a payload is available on the named queue, or ctx is
// canceled, or timeout elapses (0 means block indefinitely).
func (q *Queue) Pop(ctx context.Context, key string, timeout time.Duration) ([]byte, error) {
	res, err := q.client.BLPop(ctx, timeout, q.name(key)).Result()
	if err == redis.Nil {
		return nil, core.ErrTraceExhaust.Error()
	}
	if err != nil {
		log.Errorf("transport: BLPOP %s failed: %+v", key, err)
		return nil, core.ErrTransport.Error()
	}
	// BLPop returns [key, value].
	return []byte(res[1]), nil
}

// Len reports the number of payloads currently queued under key.
func (q *Queue) Len(ctx context.Context, key string) (int64, error) {
	n, err := q.client.LLen(ctx, q.name(key)).Result()
	if err != nil {
		log.Errorf("transport: LLEN %s failed: %+v", key, err)
		return 0, core.ErrTransport.Error()
	}
	return n, nil
}

// WaitUntilBelow spins, sleeping pollInterval between checks, until the
// named queue's length drops below highWater. This is the traffic
// control mechanism spec.md §4.2 describes: a producer outrunning its
// consumers stalls here instead of growing the queue without bound.
func (q *Queue) WaitUntilBelow(ctx context.Context, key string, highWater int64, pollInterval time.Duration) error {
	for {
		n, err := q.Len(ctx, key)
		if err != nil {
			return err
		}
		if n < highWater {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

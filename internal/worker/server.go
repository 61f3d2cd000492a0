// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package worker

import (
	"context"
	"fmt"
	"sync"

	log "github.com/golang/glog"
	"golang.org/x/sync/semaphore"

	"github.com/westerndigitalcorporation/blobstripe/internal/blobstore"
	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/transport"
	"github.com/westerndigitalcorporation/blobstripe/pkg/reqid"
)

// Server is the block worker (spec.md §4.7): it loops on its own
// namespaced _LIST_BLK_CMD queue, dispatching each BlockCommand into a
// pipeline of stages and bounding how many run concurrently with a
// weighted semaphore, mirroring internal/coordinator.TaskPool's shape.
type Server struct {
	cfg   Config
	disks *diskManager
	queue *transport.Queue
	sem   *semaphore.Weighted
	wg    sync.WaitGroup
}

// New constructs a Server from a validated Config, opening one
// blobstore per configured disk.
func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	disks, err := newDiskManager(cfg)
	if err != nil {
		return nil, err
	}
	serveFailureEndpoint(cfg.FailurePort)

	opts := transport.DefaultOptions()
	opts.Workspace = cfg.WorkspaceName
	if cfg.RedisAddr != "" {
		opts.Address = cfg.RedisAddr
	}
	opts.Password = cfg.RedisPassword
	opts.DB = cfg.RedisDB

	return &Server{
		cfg:   cfg,
		disks: disks,
		queue: transport.Open(opts),
		sem:   semaphore.NewWeighted(int64(cfg.NumThreads)),
	}, nil
}

// Close releases the worker's transport connection.
func (s *Server) Close() error {
	return s.queue.Close()
}

// Run loops popping commands off this worker's block-command queue and
// dispatching each into its own pipeline goroutine, until ctx is
// canceled. It blocks until every in-flight pipeline has finished
// before returning, so a caller wiring this to an OS signal gets an
// orderly shutdown (spec.md §9's Open Question about the reference's
// unjoined repair-ack thread).
func (s *Server) Run(ctx context.Context) error {
	cmdQueue := core.WorkerQueue(core.QueueBlockCmd, s.cfg.IP)
	log.Infof("worker: listening on %s", cmdQueue)

	for {
		cmd, err := s.queue.PopCommand(ctx, cmdQueue, 0)
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			log.Errorf("worker: pop command failed: %+v", err)
			continue
		}

		if err := s.sem.Acquire(ctx, 1); err != nil {
			s.wg.Wait()
			return ctx.Err()
		}
		s.wg.Add(1)
		go func(cmd core.BlockCommand) {
			defer s.sem.Release(1)
			defer s.wg.Done()
			id := reqid.GenID()
			log.V(1).Infof("worker: handle %s stripe=%s type=%s", id, cmd.StripeID, cmd.Type)
			if err := s.handle(ctx, cmd); err != nil {
				log.Errorf("worker: command %s (%s) failed: %+v", id, cmd.Type, err)
			}
		}(cmd)
	}
}

// handle dispatches cmd to the pipeline its command type names (spec.md
// §4.7).
func (s *Server) handle(ctx context.Context, cmd core.BlockCommand) error {
	switch cmd.Type {
	case core.ReadAndCacheBlock:
		return s.handleReadAndCache(ctx, cmd)
	case core.ReadAndCacheBlockClay:
		return s.handleReadAndCacheClay(ctx, cmd)
	case core.FetchWriteBlock:
		return s.handleFetchWrite(ctx, cmd)
	case core.FetchAndComputeAndWriteBlock:
		return s.handleFetchComputeWrite(ctx, cmd)
	default:
		return fmt.Errorf("worker: %w", core.ErrUnknownCommand.Error())
	}
}

// handleReadAndCache is the READANDCACHEBLOCK pipeline: doRead → doCache.
func (s *Server) handleReadAndCache(ctx context.Context, cmd core.BlockCommand) error {
	if _, err := s.disks.get(cmd.DiskID); err != nil {
		return err
	}
	p := newPipe()
	go func() {
		if err := s.disks.withDisk(cmd.DiskID, func(store blobstore.Store) error {
			return doRead(ctx, store, cmd, p)
		}); err != nil {
			log.Errorf("worker: doRead stripe=%s block=%d: %+v", cmd.StripeID, cmd.BlockID, err)
			close(p)
		}
	}()
	return doCache(ctx, s.queue, cmd, p)
}

// handleReadAndCacheClay is the READANDCACHEBLOCKCLAY pipeline:
// doReadClay → doCache.
func (s *Server) handleReadAndCacheClay(ctx context.Context, cmd core.BlockCommand) error {
	if _, err := s.disks.get(cmd.DiskID); err != nil {
		return err
	}
	p := newPipe()
	go func() {
		if err := s.disks.withDisk(cmd.DiskID, func(store blobstore.Store) error {
			return doReadClay(ctx, store, cmd, p)
		}); err != nil {
			log.Errorf("worker: doReadClay stripe=%s block=%d: %+v", cmd.StripeID, cmd.BlockID, err)
			close(p)
		}
	}()
	return doCache(ctx, s.queue, cmd, p)
}

// handleFetchWrite is the FETCH_WRITE_BLOCK pipeline: doFetch → doWrite,
// then ack the build (spec.md §4.7).
func (s *Server) handleFetchWrite(ctx context.Context, cmd core.BlockCommand) error {
	shards, err := doFetch(ctx, s.queue, cmd)
	if err != nil {
		return err
	}
	if err := s.disks.withDisk(cmd.DiskID, func(store blobstore.Store) error {
		return doWrite(store, cmd, shards[cmd.SrcBlockIDs[0]])
	}); err != nil {
		return err
	}
	return s.queue.PushAck(ctx, core.WorkerQueue(core.QueueBuildAck, s.cfg.IP))
}

// handleFetchComputeWrite is the FETCHANDCOMPUTEANDWRITEBLOCK pipeline:
// doFetch → doCompute → {doWrite+ack or ack-only}, or, for a
// non-terminal pipelined hop, doFetch → forward (spec.md §4.7).
func (s *Server) handleFetchComputeWrite(ctx context.Context, cmd core.BlockCommand) error {
	acc, err := gatherShards(ctx, s.queue, cmd)
	if err != nil {
		return err
	}

	if cmd.DestBlockID == core.PipelineAccumulatorBlockID {
		return forwardAccumulator(ctx, s.queue, cmd, acc)
	}

	shards := acc.toShards(cmd.K, cmd.M)
	result, err := doCompute(cmd, shards)
	if err != nil {
		return err
	}

	if cmd.ComputeType.IsRepair() {
		if err := s.disks.withDisk(cmd.DiskID, func(store blobstore.Store) error {
			return doWrite(store, cmd, result)
		}); err != nil {
			return err
		}
		return s.queue.PushAck(ctx, core.WorkerQueue(core.QueueRepairAck, s.cfg.IP))
	}
	return s.queue.PushAck(ctx, core.WorkerQueue(core.QueueReadAck, s.cfg.IP))
}

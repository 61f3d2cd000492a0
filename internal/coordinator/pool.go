// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package coordinator

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
)

// TaskPool bounds the number of outstanding futures an action driver
// keeps in flight, per spec.md §4.6/§5: a Weighted semaphore sized to
// core.QueueThresholdHigh blocks new submissions once that many tasks
// are outstanding, which is the draining behavior the spec describes
// ("draining completed futures when the threshold is crossed") —
// bounded submission and explicit draining collapse to the same thing
// once the cap is a semaphore rather than a counter checked after the
// fact.
type TaskPool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu   sync.Mutex
	errs []error
}

// NewTaskPool returns a pool that allows up to capacity outstanding
// tasks at once.
func NewTaskPool(capacity int64) *TaskPool {
	return &TaskPool{sem: semaphore.NewWeighted(capacity)}
}

// Submit blocks until a slot is free, then runs fn in its own
// goroutine. A non-nil error from fn is recorded and surfaced by
// Drain.
func (p *TaskPool) Submit(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.wg.Add(1)
	go func() {
		defer p.sem.Release(1)
		defer p.wg.Done()
		if err := fn(); err != nil {
			p.mu.Lock()
			p.errs = append(p.errs, err)
			p.mu.Unlock()
		}
	}()
	return nil
}

// Drain waits for every outstanding task to finish (spec.md §5 "Build
// threads must drain all outstanding futures before returning") and
// returns the first recorded error, if any.
func (p *TaskPool) Drain() error {
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.errs) == 0 {
		return nil
	}
	return p.errs[0]
}

// DefaultCapacity is core.QueueThresholdHigh, the upper bound on
// outstanding futures spec.md §4.6 names.
const DefaultCapacity = core.QueueThresholdHigh

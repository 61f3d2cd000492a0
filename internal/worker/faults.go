// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package worker

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	log "github.com/golang/glog"

	"github.com/westerndigitalcorporation/blobstripe/internal/core"
	"github.com/westerndigitalcorporation/blobstripe/internal/server"
	"github.com/westerndigitalcorporation/blobstripe/pkg/failures"
)

// faultInjector tracks which local disks should behave as failed,
// toggled live over pkg/failures' HTTP endpoint so a RepairChunk or
// RepairFailureDomain run (spec.md §4.6) can be exercised against a
// worker without actually destroying its disks.
type faultInjector struct {
	mu   sync.RWMutex
	down map[core.DiskID]bool
}

func newFaultInjector() *faultInjector {
	f := &faultInjector{down: make(map[core.DiskID]bool)}
	// The key can be registered once per process; a later injector (as
	// when tests build several diskManagers) works through setDownDisks
	// but is not reachable over HTTP.
	if err := failures.Register("down_disks", f.setDownDisks); err != nil {
		log.Warningf("worker: registering down_disks failure handler: %v", err)
	}
	return f
}

// setDownDisks is the pkg/failures handler for the "down_disks" key: a
// POST of {"down_disks": [1, 3]} marks disks 1 and 3 down until reset
// with an empty POST.
func (f *faultInjector) setDownDisks(value json.RawMessage) error {
	var ids []int
	if value != nil {
		if err := json.Unmarshal(value, &ids); err != nil {
			return err
		}
	}
	down := make(map[core.DiskID]bool, len(ids))
	for _, id := range ids {
		down[core.DiskID(id)] = true
	}
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
	log.Infof("worker: down_disks set to %v", ids)
	return nil
}

func (f *faultInjector) isDown(disk core.DiskID) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.down[disk]
}

// serveFailureEndpoint mounts pkg/failures on port, if configured.
// This is a testing aid only; a zero port disables it.
func serveFailureEndpoint(port int) {
	if port <= 0 {
		return
	}
	mux := http.NewServeMux()
	failures.InitWithPathAndMux(mux, failures.DefaultFailureServicePath)
	mux.HandleFunc("/quitquitquit", server.QuitHandler)
	addr := fmt.Sprintf(":%d", port)
	go func() {
		log.Infof("worker: failure injection endpoint on %s%s", addr, failures.DefaultFailureServicePath)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Errorf("worker: failure endpoint stopped: %+v", err)
		}
	}()
}

// Copyright (c) 2017 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

// Package reqid generates short, unique identifiers for correlating the
// log lines a single dispatched plan produces across the coordinator
// and the workers that execute it.
package reqid

import (
	"crypto/rand"
	"encoding/base64"
	"strconv"
	"sync/atomic"
)

var (
	processIDPrefix = makePrefix()
	nextID          uint64
)

func makePrefix() string {
	buf := make([]byte, 15)
	rand.Read(buf)
	return base64.StdEncoding.EncodeToString(buf)
}

// GenID returns a unique, printable string combining a per-process
// random prefix with a monotonic sequence number, cheap enough to call
// on every plan dispatch or command handled.
func GenID() string {
	id := atomic.AddUint64(&nextID, 1)
	return processIDPrefix + strconv.FormatUint(id, 36)
}

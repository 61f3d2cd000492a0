// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/toml"
	log "github.com/golang/glog"

	"github.com/westerndigitalcorporation/blobstripe/internal/worker"
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		log.Exitf("usage: worker <config.toml>")
	}

	var cfg worker.Config
	if _, err := toml.DecodeFile(flag.Arg(0), &cfg); err != nil {
		log.Exitf("worker: reading %s: %v", flag.Arg(0), err)
	}

	s, err := worker.New(cfg)
	if err != nil {
		log.Exitf("worker: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Infof("worker: shutting down")
		cancel()
	}()

	if err := s.Run(ctx); err != nil {
		log.Exitf("worker: %v", err)
	}
}

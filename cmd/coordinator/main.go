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

	"github.com/westerndigitalcorporation/blobstripe/internal/coordinator"
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		log.Exitf("usage: coordinator <config.toml>")
	}

	var raw coordinator.Config
	if _, err := toml.DecodeFile(flag.Arg(0), &raw); err != nil {
		log.Exitf("coordinator: reading %s: %v", flag.Arg(0), err)
	}

	cfg, err := coordinator.Parse(raw)
	if err != nil {
		log.Exitf("coordinator: %v", err)
	}

	o, err := coordinator.New(cfg)
	if err != nil {
		log.Exitf("coordinator: %v", err)
	}
	defer o.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Infof("coordinator: shutting down")
		cancel()
	}()

	if err := o.Run(ctx); err != nil {
		log.Exitf("coordinator: %v", err)
	}
}

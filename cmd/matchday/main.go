// Package main starts the match day service and handles termination.
//
// The process serves the JSON API, the live viewer websockets and a gRPC
// health endpoint over one SQLite store. With -probe it instead checks a
// running server's health endpoint, for container health checks.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	matchdaycmd "github.com/louisbranch/matchday/internal/cmd/matchday"
	"github.com/louisbranch/matchday/internal/platform/config"
)

func main() {
	cfg, err := matchdaycmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[MATCHDAY] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Probe {
		if err := matchdaycmd.RunProbe(ctx, cfg); err != nil {
			config.Exitf("%v", err)
		}
		return
	}
	if err := matchdaycmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// coreinit is the PID-1 supervisor: it starts and restarts declared
// services, ingests boot-time properties, and serves the property
// socket that those services and external clients write to.
//
// Usage:
//
//	coreinit [--config path] [--version]
//	coreinit childinit     (hidden re-exec shim, never invoked directly)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/coreinit/coreinit/lib/process"
	"github.com/coreinit/coreinit/lib/version"
	"github.com/coreinit/coreinit/sandbox"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == sandbox.ChildInitArg {
		sandbox.RunChildInit()
		return
	}

	flags := pflag.NewFlagSet("coreinit", pflag.ExitOnError)
	configPath := flags.String("config", "", "path to coreinit.yaml (overrides COREINIT_CONFIG)")
	showVersion := flags.Bool("version", false, "print version and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		process.Fatal(err)
	}

	if *showVersion {
		fmt.Println("coreinit", version.Info())
		return
	}

	logLevel := slog.LevelInfo
	if os.Getenv("COREINIT_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, logger); err != nil {
		process.Fatal(err)
	}
}

// Package main provides a CLI for activity roster maintenance.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/gathering.space/internal/platform/config"

	activityctlcmd "github.com/louisbranch/gathering.space/internal/cmd/activityctl"
)

func main() {
	fs := flag.CommandLine
	cfg, err := activityctlcmd.ParseConfig(fs, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := activityctlcmd.Run(ctx, cfg, fs.Args()); err != nil {
		config.Exitf("Error: %v", err)
	}
}

// Satchel - offline-first sync client for school management.
//
// Keeps a durable local copy of school data, queues changes made while
// offline, and reconciles with the server when a connection is available.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/satchel-app/satchel/internal/cli"
	"github.com/satchel-app/satchel/internal/config"
	"github.com/satchel-app/satchel/internal/log"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Route library noise to the log file before any command runs.
	if cfg, err := config.Load(); err == nil {
		paths := config.GetPaths(cfg)
		if err := log.Init(paths.LogDir, cfg.Debug); err == nil {
			defer log.Close()
		}
	}

	if err := cli.Execute(ctx); err != nil {
		os.Exit(1)
	}
}

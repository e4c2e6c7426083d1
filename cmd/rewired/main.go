// Package main provides the entry point for the Rewire streak server.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/rewireapp/rewire-server/internal/di"
	"github.com/rewireapp/rewire-server/internal/di/providers"
	"github.com/rewireapp/rewire-server/internal/logger"
)

func main() {
	injector := di.NewContainer()

	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap server: %v\n", err)
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server gracefully...")

	// Capture the final elapsed value before the poller goes away so the
	// shutdown line records where the streak stood.
	if poller, err := do.Invoke[*providers.StreakPollerHandle](injector); err == nil {
		log.Info("Final streak", "elapsed_seconds", poller.Elapsed())
	}

	// Handles implementing do.Shutdownable are closed in reverse
	// dependency order: HTTP server, poller, achievements, cache, remote.
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	log.Info("Streak saved. See you tomorrow.")
}

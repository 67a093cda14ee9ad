//go:build unix

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/zulhijaya18/wa-service-api/internal/supervisor"
)

// handleSupervisorSignals maps SIGUSR1 to pausing recovery and SIGUSR2 to
// resuming it, so an operator can hold the session down for maintenance.
func handleSupervisorSignals(ctx context.Context, sup *supervisor.Supervisor) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-ch:
				if sig == syscall.SIGUSR1 {
					sup.Pause()
					log.Info().Msg("Session recovery paused")
				} else {
					sup.Resume()
					log.Info().Msg("Session recovery resumed")
				}
			}
		}
	}()
	return func() { signal.Stop(ch) }
}

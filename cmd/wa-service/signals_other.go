//go:build !unix

package main

import (
	"context"

	"github.com/zulhijaya18/wa-service-api/internal/supervisor"
)

func handleSupervisorSignals(context.Context, *supervisor.Supervisor) func() {
	return func() {}
}

package app

import (
	"context"
	"log"
	"time"

	"github.com/nickbooth1/airport-capacity-planner/internal/memory"
)

// runMaintenance sweeps expired contexts, memories and resolved operations on
// a fixed interval until the context is canceled.
func runMaintenance(ctx context.Context, store memory.Store, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := store.PerformMaintenance(ctx, time.Now().UTC())
			if err != nil {
				log.Printf("app: retention maintenance: %v", err)
				continue
			}
			if report.ContextsRemoved+report.MemoriesRemoved+report.OperationsRemoved > 0 {
				log.Printf("app: retention maintenance removed %d contexts, %d memories, %d operations",
					report.ContextsRemoved, report.MemoriesRemoved, report.OperationsRemoved)
			}
		}
	}
}

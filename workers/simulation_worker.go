package workers

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"trust-game-system/services"
)

// SimulationWorker grows the behavioral dataset in the background: every
// tick it plays a small batch of simulated games, alternating between
// bot-vs-bot and bot-vs-synthetic-user so the dataset covers both actor
// populations.
type SimulationWorker struct {
	Simulator *services.SimulatorService
	BatchSize int
}

func NewSimulationWorker(sim *services.SimulatorService) *SimulationWorker {
	batch := 5
	if v := os.Getenv("SIM_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			batch = n
		}
	}
	return &SimulationWorker{Simulator: sim, BatchSize: batch}
}

// Run loops until the context is cancelled. Batch failures are logged and
// the next tick retries; the worker never brings the process down.
func (w *SimulationWorker) Run(ctx context.Context, interval time.Duration) {
	log.Printf("Starting simulation worker (batch=%d, interval=%s)...", w.BatchSize, interval)

	modes := []string{services.SimModeBotVsBot, services.SimModeBotVsUser}
	next := 0

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Simulation worker stopped.")
			return
		case <-ticker.C:
			mode := modes[next%len(modes)]
			next++

			res, err := w.Simulator.RunBatch(mode, w.BatchSize)
			if err != nil {
				log.Printf("❌ Simulation batch (%s) failed: %v", mode, err)
				continue
			}
			if res.FailureCount > 0 {
				log.Printf("⚠️  Simulation batch (%s): %d/%d games failed", mode, res.FailureCount, res.GamesRequested)
			}
		}
	}
}

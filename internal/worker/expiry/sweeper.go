// Package expiry runs the periodic sweep that force-expires overdue
// contracts.
package expiry

import (
	"context"
	"time"

	"github.com/covenant-ai/be-contracts/internal/logger"
)

// Sweeper is the minimal surface the worker needs from the lifecycle engine.
type Sweeper interface {
	CheckExpiredContracts(ctx context.Context) (int, error)
}

// Run sweeps immediately and then on every tick until ctx is cancelled. The
// engine serializes concurrent sweeps itself, so overlapping ticks are safe.
func Run(ctx context.Context, sweeper Sweeper, interval time.Duration, log *logger.Logger) {
	if interval <= 0 {
		return
	}

	sweep := func() {
		expired, err := sweeper.CheckExpiredContracts(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Expiry sweep failed")
			return
		}
		if expired > 0 {
			log.Info().Int("expired", expired).Msg("Expiry sweep expired contracts")
		}
	}

	sweep()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

// Package hostloop drives a simulated host: it runs the host's own systems
// and then the bridge tick, once per interval, on the calling goroutine.
package hostloop

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-drift/hostbridge/internal/logging"
	"github.com/go-drift/hostbridge/pkg/bridge"
	"github.com/go-drift/hostbridge/pkg/host"
)

// Loop is a fixed-rate host loop.
type Loop struct {
	World   *host.World
	Runtime *bridge.Runtime
	// Interval between ticks.
	Interval time.Duration
	// Count stops the loop after this many ticks. Zero runs until ctx is done.
	Count int
	// Step runs the host's systems before each bridge tick.
	Step   func(w *host.World)
	Logger *slog.Logger
}

// Run ticks until Count is reached or ctx is done and returns the number of
// ticks run. Failed ticks are logged and do not stop the loop; the runtime has
// already recovered and reported them. Run must be called on the goroutine
// that created the runtime.
func (l *Loop) Run(ctx context.Context) int {
	logger := l.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()

	ran := 0
	for {
		if l.Step != nil {
			l.Step(l.World)
		}
		stats, err := l.Runtime.Tick(l.World)
		ran++
		if err != nil {
			logger.Warn("tick failed", "tick", stats.Tick, "error", err)
		} else {
			logger.Debug("tick",
				"tick", stats.Tick,
				"duration", stats.Duration,
				"fired", stats.Fired,
				"polled", stats.Flush.Polled,
			)
		}
		if (l.Count > 0 && ran >= l.Count) || ctx.Err() != nil {
			return ran
		}

		select {
		case <-ctx.Done():
			return ran
		case <-ticker.C:
		}
	}
}

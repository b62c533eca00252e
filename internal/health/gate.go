// Package health gates requests on the availability of the AI service.
package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Prober is satisfied by the upstream client.
type Prober interface {
	Health(ctx context.Context) error
}

// Gate performs short-timeout upstream probes before mutating calls and
// keeps an advisory last-known status. The live probe result, not the cached
// flag, decides whether a request proceeds.
type Gate struct {
	prober  Prober
	healthy atomic.Int32
	log     zerolog.Logger
}

func NewGate(p Prober, log zerolog.Logger) *Gate {
	g := &Gate{prober: p, log: log}
	g.healthy.Store(0)
	return g
}

// Probe performs a live upstream probe, records the outcome, and returns the
// probe error. The prober enforces its own short timeout.
func (g *Gate) Probe(ctx context.Context) error {
	err := g.prober.Health(ctx)
	if err != nil {
		g.healthy.Store(0)
		return err
	}
	g.healthy.Store(1)
	return nil
}

// IsHealthy returns the cached last-known status (advisory).
func (g *Gate) IsHealthy() bool { return g.healthy.Load() == 1 }

// Start probes the upstream periodically, logging transitions, until ctx is
// cancelled. A slow probe only delays its own cycle.
func (g *Gate) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev := int32(-1)
	eval := func() {
		_ = g.Probe(ctx)
		cur := g.healthy.Load()
		if cur != prev {
			if cur == 1 {
				g.log.Info().Msg("upstream health: UP")
			} else {
				g.log.Error().Msg("upstream health: DOWN")
			}
			prev = cur
		}
	}

	eval()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eval()
		}
	}
}
